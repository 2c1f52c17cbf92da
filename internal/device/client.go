package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUnavailable marks a failed call to the device provider. Wrapped errors
// carry the transport detail; callers branch on this sentinel.
var ErrUnavailable = errors.New("device provider unavailable")

// Controller is the external device-control capability: starting and stopping
// remote devices by their identity codes. Calls go out before any local state
// mutation; a failure leaves local state untouched.
type Controller interface {
	Start(ctx context.Context, codes []string) error
	Stop(ctx context.Context, codes []string) error
	List(ctx context.Context) ([]Device, error)
}

// Device is one remote device as reported by the fleet provider.
type Device struct {
	Code   string `json:"code"`
	Status string `json:"status"`
}

// Client talks to the fleet provider's HTTP API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessKey   string
	secretKey   string
	packageName string
}

func NewClient(baseURL, accessKey, secretKey, packageName string) *Client {
	return &Client{
		httpClient:  &http.Client{},
		baseURL:     baseURL,
		accessKey:   accessKey,
		secretKey:   secretKey,
		packageName: packageName,
	}
}

// Start launches the configured application package on the given devices.
func (c *Client) Start(ctx context.Context, codes []string) error {
	payload := map[string]any{
		"padCodes": codes,
		"pkgName":  c.packageName,
	}
	return c.post(ctx, "/vcpcloud/api/padApi/startApp", payload)
}

// Stop halts the application on the given devices.
func (c *Client) Stop(ctx context.Context, codes []string) error {
	payload := map[string]any{
		"padCodes": codes,
	}
	return c.post(ctx, "/vcpcloud/api/padApi/stopApp", payload)
}

// List fetches the provider's device inventory. Used by config connectivity
// tests.
func (c *Client) List(ctx context.Context) ([]Device, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/vcpcloud/api/padApi/infos", nil)
	if err != nil {
		return nil, fmt.Errorf("list devices request: %w", err)
	}
	c.sign(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list devices: %w: status %d: %s", ErrUnavailable, resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Data []Device `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}
	return parsed.Data, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal device request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("device request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("device call %s: %w: %w", path, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("device call %s: %w: status %d: %s", path, ErrUnavailable, resp.StatusCode, string(respBody))
	}
	return nil
}

func (c *Client) sign(req *http.Request) {
	req.Header.Set("X-Access-Key", c.accessKey)
	req.Header.Set("X-Secret-Key", c.secretKey)
}
