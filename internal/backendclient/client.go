// Package backendclient talks to the provisioning/authority backend: device
// registration, credential refresh, and revocation lookups. Grounded on the
// provisioning tool's Cloudflare Access-fronted HTTP client pattern.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a minimal HTTP client for the door-access backend API.
type Client struct {
	endpoint       string
	cfClientID     string
	cfClientSecret string
	httpClient     *http.Client
}

func New(endpoint, cfClientID, cfClientSecret string) *Client {
	return &Client{
		endpoint:       endpoint,
		cfClientID:     cfClientID,
		cfClientSecret: cfClientSecret,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// DeviceRegistration is the payload sent to POST /device/register when a
// mobile device first provisions against a door.
type DeviceRegistration struct {
	DeviceID     string `json:"device_id"`
	DevicePubKey string `json:"device_pub_key"` // hex-encoded uncompressed P-256 point
	DoorID       string `json:"door_id"`
}

// CredentialRecord mirrors the wire form of a backend-issued CredentialA,
// with byte fields hex-encoded for JSON transport.
type CredentialRecord struct {
	CredentialID  string `json:"credential_id"`
	DevicePubKey  string `json:"device_pub_key"`
	DoorID        string `json:"door_id"`
	NotBefore     int64  `json:"not_before"`
	NotAfter      int64  `json:"not_after"`
	GracePeriod   int64  `json:"grace_period_seconds"`
	RevocationRef string `json:"revocation_ref"`
	Signature     string `json:"signature"`
}

// Register registers a device and returns the freshly minted credential.
func (c *Client) Register(ctx context.Context, reg DeviceRegistration) (CredentialRecord, error) {
	var out CredentialRecord
	if err := c.doJSON(ctx, "POST", "/device/register", reg, &out); err != nil {
		return CredentialRecord{}, err
	}
	return out, nil
}

// Refresh requests a renewed credential ahead of the current one's expiry.
func (c *Client) Refresh(ctx context.Context, credentialID string) (CredentialRecord, error) {
	var out CredentialRecord
	body := map[string]string{"credential_id": credentialID}
	if err := c.doJSON(ctx, "POST", "/device/refresh", body, &out); err != nil {
		return CredentialRecord{}, err
	}
	return out, nil
}

// Revoke marks a credential as revoked so its RevocationRef rejects future
// allowlist reloads and IsRevoked checks at every door that has since synced.
func (c *Client) Revoke(ctx context.Context, credentialID string) error {
	body := map[string]string{"credential_id": credentialID}
	return c.doJSON(ctx, "POST", "/device/revoke", body, nil)
}

// FetchAllowlist pulls the full current credential set for doorID, used to
// seed or reconcile the peripheral's cache (spec §6).
func (c *Client) FetchAllowlist(ctx context.Context, doorID string) ([]CredentialRecord, error) {
	var out []CredentialRecord
	path := fmt.Sprintf("/door/%s/allowlist", doorID)
	if err := c.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("CF-Access-Client-Id", c.cfClientID)
	req.Header.Set("CF-Access-Client-Secret", c.cfClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned non-2xx status: %d %s", resp.StatusCode, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
