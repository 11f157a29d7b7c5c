package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/casekit/case-engine/internal/config"
)

// gatewayClient talks JSON over HTTP to the platform gateway sidecar that
// fronts the actual chat platform.
type gatewayClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewGatewayClient constructs a Client from gateway configuration.
func NewGatewayClient(cfg config.GatewayConfig) Client {
	return &gatewayClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout()},
	}
}

func (c *gatewayClient) CreateSurface(ctx context.Context, spec SurfaceSpec) (string, error) {
	var out struct {
		SurfaceRef string `json:"surface_ref"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/surfaces", spec, &out); err != nil {
		return "", err
	}
	return out.SurfaceRef, nil
}

func (c *gatewayClient) SendMessage(ctx context.Context, surfaceRef string, msg Message) (string, error) {
	var out struct {
		MessageRef string `json:"message_ref"`
	}
	path := "/v1/surfaces/" + url.PathEscape(surfaceRef) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, msg, &out); err != nil {
		return "", err
	}
	return out.MessageRef, nil
}

func (c *gatewayClient) DeleteSurface(ctx context.Context, surfaceRef string) error {
	return c.do(ctx, http.MethodDelete, "/v1/surfaces/"+url.PathEscape(surfaceRef), nil, nil)
}

func (c *gatewayClient) GrantRole(ctx context.Context, userRef, roleRef string) error {
	body := map[string]string{"user_ref": userRef, "role_ref": roleRef}
	return c.do(ctx, http.MethodPost, "/v1/roles/grant", body, nil)
}

func (c *gatewayClient) RevokeRole(ctx context.Context, userRef, roleRef string) error {
	body := map[string]string{"user_ref": userRef, "role_ref": roleRef}
	return c.do(ctx, http.MethodPost, "/v1/roles/revoke", body, nil)
}

func (c *gatewayClient) FetchHistory(ctx context.Context, surfaceRef string) ([]HistoryMessage, error) {
	var out struct {
		Messages []HistoryMessage `json:"messages"`
	}
	path := "/v1/surfaces/" + url.PathEscape(surfaceRef) + "/history"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *gatewayClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrSurfaceNotFound
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
