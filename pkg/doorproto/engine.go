package doorproto

import (
	"context"
	"sync"
	"time"
)

// MetricsSink receives protocol-level events for observability. A nil sink is
// valid; every call site on it is nil-checked.
type MetricsSink interface {
	UnlockGranted(doorID string)
	UnlockDenied(status StatusCode)
	AuthAttempt()
}

// PeripheralEngine is the top-level, transport-agnostic door-unlock protocol
// engine. One engine instance serves one physical door and dispatches across
// whichever Variant it was constructed with; transport adapters (the actual
// BLE GATT server) call its On* methods from their own connection callbacks.
type PeripheralEngine struct {
	variant              Variant
	rateLimiter          *RateLimiter
	actuator             Actuator
	credentialVerifier   *CredentialVerifier
	credStore            *CredentialStore
	diversifiedAllowlist DiversifiedAllowlist
	metrics              MetricsSink

	mu       sync.Mutex
	sessions map[string]*Session
}

// EngineConfig collects the collaborators a PeripheralEngine is built from.
type EngineConfig struct {
	Variant              Variant
	RateLimiter          *RateLimiter
	Actuator             Actuator
	CredentialVerifier   *CredentialVerifier
	CredentialStore      *CredentialStore
	DiversifiedAllowlist DiversifiedAllowlist
	Metrics              MetricsSink
}

func NewPeripheralEngine(cfg EngineConfig) *PeripheralEngine {
	if cfg.RateLimiter == nil {
		cfg.RateLimiter = NewRateLimiter(5, 60, 50, 60)
	}
	return &PeripheralEngine{
		variant:              cfg.Variant,
		rateLimiter:          cfg.RateLimiter,
		actuator:             cfg.Actuator,
		credentialVerifier:   cfg.CredentialVerifier,
		credStore:            cfg.CredentialStore,
		diversifiedAllowlist: cfg.DiversifiedAllowlist,
		metrics:              cfg.Metrics,
		sessions:             make(map[string]*Session),
	}
}

// OnConnect registers a new peripheral connection and returns its session
// handle. peerHandle is whatever opaque per-connection identifier the
// transport layer assigns (e.g. a GATT connection handle). Only one session
// may be live at a time across the whole engine: a connect attempt while
// another session is still open is rejected with ErrBusy rather than
// clobbering or multiplexing it (spec §4.3, §5, §8 "one live session").
func (e *PeripheralEngine) OnConnect(peerHandle string, mtu int) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sessions) > 0 {
		return nil, wrap(ErrBusy, nil)
	}
	s := newSession(peerHandle, mtu)
	e.sessions[peerHandle] = s
	return s, nil
}

// OnDisconnect tears down a session's state: invalidates its nonce, zeroizes
// keys, and evicts its rate-limiter bucket (spec §4.3, §5).
func (e *PeripheralEngine) OnDisconnect(peerHandle string) {
	e.mu.Lock()
	s, ok := e.sessions[peerHandle]
	delete(e.sessions, peerHandle)
	e.mu.Unlock()
	if !ok {
		return
	}
	s.teardown()
	if s.PeerPubKey != nil {
		e.rateLimiter.Forget(s.PeerPubKey)
	}
	if s.DUID != nil {
		e.rateLimiter.Forget(s.DUID)
	}
}

// OnSubscribeChallenge issues (or re-sends, if one is already live) the
// session's Challenge nonce on a central's notify-subscribe (spec §4.3).
func (e *PeripheralEngine) OnSubscribeChallenge(s *Session) ([16]byte, error) {
	return e.currentOrNewNonce(s)
}

// OnReadChallenge serves the same nonce on a characteristic read (spec §4.3:
// on_subscribe/on_read re-send the same nonce without regenerating).
func (e *PeripheralEngine) OnReadChallenge(s *Session) ([16]byte, error) {
	return e.currentOrNewNonce(s)
}

func (e *PeripheralEngine) currentOrNewNonce(s *Session) ([16]byte, error) {
	if n, ok := s.currentNonce(time.Now()); ok {
		return n, nil
	}
	if err := s.issueNonce(func() { e.onNonceExpire(s) }); err != nil {
		return [16]byte{}, err
	}
	n, _ := s.currentNonce(time.Now())
	return n, nil
}

func (e *PeripheralEngine) onNonceExpire(s *Session) {
	if s.expireNonce(time.Now()) {
		s.teardown()
	}
}

// OnTimerTick lets a transport driver poll session timeouts in environments
// without a reliable per-session timer callback; it is otherwise a no-op
// since issueNonce already schedules its own expiry via time.AfterFunc.
func (e *PeripheralEngine) OnTimerTick(s *Session) {
	e.onNonceExpire(s)
}

// OnWriteAuth handles one inbound Auth-characteristic write, dispatching to
// the variant-specific handshake and returning the bytes (if any) to send
// back on the Response characteristic.
func (e *PeripheralEngine) OnWriteAuth(ctx context.Context, s *Session, raw []byte) ([]byte, error) {
	if e.metrics != nil {
		e.metrics.AuthAttempt()
	}
	var out []byte
	var err error
	switch e.variant.(type) {
	case EcdhGcm:
		out, err = e.handleAuthA(ctx, s, raw)
	case DiversifiedCbc:
		out, err = e.handleFrameB(ctx, s, raw)
	case SymmetricDemo:
		out, err = e.handleAuthSym(ctx, s, raw)
	default:
		return nil, wrap(ErrInternal, nil)
	}
	if err != nil && e.metrics != nil {
		e.metrics.UnlockDenied(StatusFor(err))
	}
	return out, err
}

// ReloadAllowlist atomically replaces the engine's cached Variant-A
// credential allowlist, driven by a backend cache-refresh push (spec §6).
func (e *PeripheralEngine) ReloadAllowlist(records []CredentialA, now time.Time) {
	if e.credStore != nil {
		e.credStore.ReloadAllowlist(records, now)
	}
}

// RevokeCredential marks credential id revoked and evicts it from the
// allowlist cache immediately, driven by a backend "revoke" cache-refresh
// push (spec §6). It resolves id's RevocationRef from whatever cached record
// is still on hand before evicting, since CredentialID and RevocationRef are
// distinct fields and only the cached record's RevocationRef is what
// CredentialVerifier.Verify's revocation check consults.
func (e *PeripheralEngine) RevokeCredential(id [16]byte, revoked bool) {
	if e.credStore == nil {
		return
	}
	if c, ok := e.credStore.Get(id); ok {
		e.credStore.SetRevoked(c.RevocationRef, revoked)
	}
	if revoked {
		e.credStore.Evict(id)
	}
}
