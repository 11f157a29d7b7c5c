package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the engine.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Cases    CaseConfig
	Sweeps   SweepConfig
	Gateway  GatewayConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects and parameterizes the ticket repository backend.
type StoreConfig struct {
	// Backend is one of "file", "postgres", "memory".
	Backend   string
	IndexPath string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	AuditStream string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines trigger-API authentication parameters.
type AuthConfig struct {
	JWTSecret            string
	ServiceTokenTTLMin   int
	APIKeyHash           string
	AllowUnauthenticated bool
}

// CaseConfig collects the policy knobs the engine consults at runtime.
// Everything the dedup/cooldown policy and the orchestrator need is
// enumerated here once, injected at construction.
type CaseConfig struct {
	DedupEnabled    bool
	CooldownByType  map[string]time.Duration
	DefaultCooldown time.Duration

	// AutoCloseTypes lists ticket types the inactivity sweep may close.
	AutoCloseTypes []string

	InactivityThreshold    time.Duration
	AckDelay               time.Duration
	ProvisionDeadline      time.Duration
	ResolvedGrace          time.Duration
	ResolveRetryThrottle   time.Duration
	AckTemplateByType      map[string]string
	FollowupTemplateByType map[string]string

	// CategoryByType and RoleByType map ticket types to the platform
	// category a surface is created under and the side-effect role
	// applied while the case is open.
	CategoryByType map[string]string
	RoleByType     map[string]string

	// ArchiveSurfaceByType routes transcripts per type; DefaultArchive
	// is the fallback destination.
	ArchiveSurfaceByType map[string]string
	DefaultArchive       string

	StaffRoleRef string
}

// SweepConfig holds the periodic pass intervals.
type SweepConfig struct {
	AckInterval        time.Duration
	InactivityInterval time.Duration
	ResolvedInterval   time.Duration
}

// GatewayConfig points at the chat-platform gateway sidecar.
type GatewayConfig struct {
	BaseURL        string
	Token          string
	TimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults
// where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cooldowns, err := getEnvAsDurationMap("CASE_COOLDOWN_SECONDS_BY_TYPE",
		map[string]time.Duration{
			"cancellation": 86400 * time.Second,
			"billing":      21600 * time.Second,
			"free_pass":    86400 * time.Second,
		})
	if err != nil {
		return nil, fmt.Errorf("invalid CASE_COOLDOWN_SECONDS_BY_TYPE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-case-engine"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Backend:   strings.ToLower(getEnv("STORE_BACKEND", "file")),
			IndexPath: getEnv("STORE_INDEX_PATH", "data/tickets_index.json"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			AuditStream: getEnv("REDIS_AUDIT_STREAM", "case-engine.audit"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("AUTH_JWT_SECRET", "dev-secret"),
			ServiceTokenTTLMin:   getEnvAsInt("AUTH_SERVICE_TOKEN_TTL_MINUTES", 60),
			APIKeyHash:           os.Getenv("AUTH_API_KEY_BCRYPT_HASH"),
			AllowUnauthenticated: getEnvAsBool("AUTH_ALLOW_UNAUTHENTICATED", false),
		},
		Cases: CaseConfig{
			DedupEnabled:           getEnvAsBool("CASE_DEDUP_ENABLED", true),
			CooldownByType:         cooldowns,
			DefaultCooldown:        getEnvAsDuration("CASE_DEFAULT_COOLDOWN_SECONDS", 86400),
			AutoCloseTypes:         getEnvAsList("CASE_AUTO_CLOSE_TYPES", []string{"free_pass"}),
			InactivityThreshold:    clampDuration(getEnvAsDuration("CASE_INACTIVITY_SECONDS", 86400), 60*time.Second),
			AckDelay:               clampDuration(getEnvAsDuration("CASE_ACK_DELAY_SECONDS", 300), 5*time.Second),
			ProvisionDeadline:      clampDuration(getEnvAsDuration("CASE_PROVISION_DEADLINE_SECONDS", 600), 60*time.Second),
			ResolvedGrace:          getEnvAsDuration("CASE_RESOLVED_GRACE_SECONDS", 1800),
			ResolveRetryThrottle:   getEnvAsDuration("CASE_RESOLVE_RETRY_THROTTLE_SECONDS", 300),
			AckTemplateByType:      getEnvAsStringMap("CASE_ACK_TEMPLATE_BY_TYPE", nil),
			FollowupTemplateByType: getEnvAsStringMap("CASE_FOLLOWUP_TEMPLATE_BY_TYPE", nil),
			CategoryByType:         getEnvAsStringMap("CASE_CATEGORY_BY_TYPE", nil),
			RoleByType:             getEnvAsStringMap("CASE_ROLE_BY_TYPE", nil),
			ArchiveSurfaceByType:   getEnvAsStringMap("CASE_ARCHIVE_SURFACE_BY_TYPE", nil),
			DefaultArchive:         os.Getenv("CASE_DEFAULT_ARCHIVE_SURFACE"),
			StaffRoleRef:           os.Getenv("CASE_STAFF_ROLE_REF"),
		},
		Sweeps: SweepConfig{
			AckInterval:        clampDuration(getEnvAsDuration("SWEEP_ACK_INTERVAL_SECONDS", 60), 10*time.Second),
			InactivityInterval: clampDuration(getEnvAsDuration("SWEEP_INACTIVITY_INTERVAL_SECONDS", 600), 30*time.Second),
			ResolvedInterval:   clampDuration(getEnvAsDuration("SWEEP_RESOLVED_INTERVAL_SECONDS", 120), 10*time.Second),
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnv("GATEWAY_BASE_URL", "http://127.0.0.1:9000"),
			Token:          os.Getenv("GATEWAY_TOKEN"),
			TimeoutSeconds: getEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 10),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the gateway client timeout.
func (g GatewayConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// CooldownFor returns the cooldown window for a ticket type.
func (c CaseConfig) CooldownFor(ticketType string) time.Duration {
	if d, ok := c.CooldownByType[strings.ToLower(strings.TrimSpace(ticketType))]; ok {
		return d
	}
	return c.DefaultCooldown
}

// AutoCloseEnabled reports whether the inactivity sweep may close the type.
func (c CaseConfig) AutoCloseEnabled(ticketType string) bool {
	t := strings.ToLower(strings.TrimSpace(ticketType))
	for _, candidate := range c.AutoCloseTypes {
		if strings.ToLower(strings.TrimSpace(candidate)) == t {
			return true
		}
	}
	return false
}

// ArchiveFor returns the transcript destination for a ticket type.
func (c CaseConfig) ArchiveFor(ticketType string) string {
	if ref, ok := c.ArchiveSurfaceByType[strings.ToLower(strings.TrimSpace(ticketType))]; ok && ref != "" {
		return ref
	}
	return c.DefaultArchive
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallbackSeconds)) * time.Second
}

func clampDuration(d, min time.Duration) time.Duration {
	if d < min {
		return min
	}
	return d
}

// getEnvAsList parses a comma-separated list.
func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnvAsStringMap parses "key=value,key=value" pairs.
func getEnvAsStringMap(key string, fallback map[string]string) map[string]string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	out := map[string]string{}
	for _, pair := range strings.Split(val, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// getEnvAsDurationMap parses "type=seconds,type=seconds" pairs.
func getEnvAsDurationMap(key string, fallback map[string]time.Duration) (map[string]time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	out := map[string]time.Duration{}
	for _, pair := range strings.Split(val, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("malformed seconds in %q: %w", pair, err)
		}
		if seconds < 0 {
			seconds = 0
		}
		out[strings.ToLower(strings.TrimSpace(kv[0]))] = time.Duration(seconds) * time.Second
	}
	return out, nil
}
