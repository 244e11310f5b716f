// Package cacherefresh listens for backend cache-refresh push notifications
// over a WebSocket connection and triggers the peripheral engine to reload
// its credential allowlist (spec §6).
package cacherefresh

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nhooyr.io/websocket"

	"github.com/barnettlynn/doorlink/internal/backendclient"
)

// Notification is one pushed message: either a full reload signal or an
// individual revocation toggle.
type Notification struct {
	Type             string                          `json:"type"` // "reload" | "revoke"
	CredentialID     string                          `json:"credential_id,omitempty"`
	Revoked          bool                            `json:"revoked,omitempty"`
	AllowlistEntries []backendclient.CredentialRecord `json:"allowlist_entries,omitempty"`
}

// ReloadHandler is invoked once per received notification.
type ReloadHandler interface {
	OnReload(n Notification)
}

// Listener maintains a long-lived WebSocket connection to the backend's
// cache-refresh endpoint, reconnecting with backoff on disconnect.
type Listener struct {
	url         string
	handler     ReloadHandler
	reconnectAt time.Duration
}

func New(url string, handler ReloadHandler) *Listener {
	return &Listener{url: url, handler: handler, reconnectAt: 5 * time.Second}
}

// Run blocks, dispatching notifications to the handler until ctx is
// cancelled, reconnecting on any read/dial error.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.runOnce(ctx); err != nil {
			select {
			case <-time.After(l.reconnectAt):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (l *Listener) runOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, l.url, nil)
	if err != nil {
		return fmt.Errorf("dial cache-refresh endpoint: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "listener stopped")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read cache-refresh message: %w", err)
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			continue
		}
		l.handler.OnReload(n)
	}
}
