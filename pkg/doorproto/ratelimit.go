package doorproto

import (
	"encoding/hex"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces the per-peer token bucket plus a global cap across
// all keys, bounding DoS on the engine's crypto paths (spec §3, §4.4).
// Grounded on golang.org/x/time/rate, which already implements a token
// bucket; this wraps one limiter per peer key plus one shared global
// limiter.
//
// Check and Record are split because the protocol checks the bucket before
// running any expensive crypto (spec §4.4 step 3) but must account every
// *finished* attempt regardless of outcome, including a cancelled in-flight
// attempt (spec §5, §7) — a single Allow-on-check-and-consume call can't
// express both.
type RateLimiter struct {
	mu        sync.Mutex
	perPeer   map[string]*rate.Limiter
	peerRate  rate.Limit
	peerBurst int
	global    *rate.Limiter
}

// NewRateLimiter builds a limiter allowing perPeerN attempts per window
// (seconds) for each distinct peer key, and globalN attempts per
// globalWindow seconds across all peers.
func NewRateLimiter(perPeerN int, window float64, globalN int, globalWindow float64) *RateLimiter {
	return &RateLimiter{
		perPeer:   make(map[string]*rate.Limiter),
		peerRate:  rate.Limit(float64(perPeerN) / window),
		peerBurst: perPeerN,
		global:    rate.NewLimiter(rate.Limit(float64(globalN)/globalWindow), globalN),
	}
}

func peerKey(peer []byte) string { return hex.EncodeToString(peer) }

func (r *RateLimiter) limiterFor(peer []byte) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	lim, ok := r.perPeer[peerKey(peer)]
	if !ok {
		lim = rate.NewLimiter(r.peerRate, r.peerBurst)
		r.perPeer[peerKey(peer)] = lim
	}
	return lim
}

// Check peeks whether peer has bucket capacity without consuming it (spec
// §4.4 step 3, run before any expensive crypto).
func (r *RateLimiter) Check(peer []byte) bool {
	lim := r.limiterFor(peer)
	return lim.Tokens() >= 1 && r.global.Tokens() >= 1
}

// Record consumes one token for peer's bucket and the global bucket,
// accounting a finished (successful, failed, or cancelled) auth attempt
// (spec §7: "the peripheral increments its rate bucket for every finished
// auth attempt regardless of outcome").
func (r *RateLimiter) Record(peer []byte) {
	lim := r.limiterFor(peer)
	lim.Allow()
	r.global.Allow()
}

// Forget evicts a peer's bucket, called on disconnect to bound the map's
// growth and to clear the per-peer token references (spec §5 cancellation
// semantics).
func (r *RateLimiter) Forget(peer []byte) {
	r.mu.Lock()
	delete(r.perPeer, peerKey(peer))
	r.mu.Unlock()
}
