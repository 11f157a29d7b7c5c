package auth

import "golang.org/x/crypto/bcrypt"

// VerifyAPIKey checks a presented API key against the configured bcrypt
// hash. An empty hash means no key auth is configured.
func VerifyAPIKey(presented, storedHash string) bool {
	if storedHash == "" || presented == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(presented)) == nil
}

// HashAPIKey produces a bcrypt hash for provisioning a new API key.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
