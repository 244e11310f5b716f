package doorproto

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionID identifies a peripheral connection.
type SessionID uuid.UUID

func newSessionID() SessionID { return SessionID(uuid.New()) }

func (s SessionID) String() string { return uuid.UUID(s).String() }

// SessionKeys holds the keys derived for one authenticated session. Exactly
// one of (M2I/I2M) or DK is populated, depending on variant.
type SessionKeys struct {
	M2I [32]byte // Variant A: mobile -> intercom
	I2M [32]byte // Variant A: intercom -> mobile
	DK  [16]byte // Variant B / SymmetricDemo
	set bool
}

func (k *SessionKeys) zero() {
	for i := range k.M2I {
		k.M2I[i] = 0
	}
	for i := range k.I2M {
		k.I2M[i] = 0
	}
	for i := range k.DK {
		k.DK[i] = 0
	}
	k.set = false
}

// Session is the peripheral's per-connection state (spec §3). A nonce is
// single-use; the session holds at most one live nonce; keys are derivable
// from at most one authenticated key agreement per session.
type Session struct {
	mu sync.Mutex

	ID         SessionID
	PeerHandle string
	MTU        int
	Phase      Phase

	nonce        [16]byte
	nonceValid   bool
	nonceIssued  time.Time

	Keys SessionKeys

	PeerPubKey []byte // Variant A PubM, once seen
	DUID       []byte // Variant B device UID, once seen

	lastSeq    map[Direction]byte
	haveSeq    map[Direction]bool

	// b5Rb is the intercom-chosen challenge in Variant B's second round,
	// held only between steps 2 and 4 of the mutual-auth handshake.
	pendingRb    [16]byte
	pendingRbSet bool

	timer *time.Timer
}

func newSession(peerHandle string, mtu int) *Session {
	return &Session{
		ID:         newSessionID(),
		PeerHandle: peerHandle,
		MTU:        mtu,
		Phase:      PhaseIdle,
		lastSeq:    make(map[Direction]byte),
		haveSeq:    make(map[Direction]bool),
	}
}

// issueNonce generates and stores a fresh 16-byte Challenge nonce, starting
// its 30-second lifetime (spec §4.3). onExpire is invoked exactly once, off
// the caller's goroutine, if the nonce is not invalidated first.
func (s *Session) issueNonce(onExpire func()) error {
	n, err := randomBytes(16)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.nonce[:], n)
	s.nonceValid = true
	s.nonceIssued = time.Now()
	s.Phase = PhaseNonceIssued
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(NonceLifetime, onExpire)
	return nil
}

// currentNonce returns the live nonce, or ok=false if none is issued or it
// has expired/been invalidated (spec §4.3: on_subscribe/on_read re-send the
// same nonce without regenerating).
func (s *Session) currentNonce(now time.Time) (nonce [16]byte, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.nonceValid {
		return nonce, false
	}
	if now.Sub(s.nonceIssued) >= NonceLifetime {
		return nonce, false
	}
	return s.nonce, true
}

// expireNonce invalidates the nonce if it is still in NonceIssued phase and
// past its lifetime (spec §4.3 on_timer). It is idempotent.
func (s *Session) expireNonce(now time.Time) (expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonceValid && s.Phase == PhaseNonceIssued && now.Sub(s.nonceIssued) >= NonceLifetime {
		s.nonceValid = false
		return true
	}
	return false
}

// invalidateNonce erases the current nonce unconditionally: success,
// failure, timeout, or disconnect all invalidate it (spec §4.3).
func (s *Session) invalidateNonce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonceValid = false
	for i := range s.nonce {
		s.nonce[i] = 0
	}
}

// checkSeq enforces "prev+1 mod 256" discipline for one direction, rejecting
// duplicates, skips, and reorders (spec §4.1, §4.4, §8).
func (s *Session) checkSeq(dir Direction, seq byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveSeq[dir] {
		s.haveSeq[dir] = true
		s.lastSeq[dir] = seq
		return nil
	}
	if !SeqOK(s.lastSeq[dir], seq) {
		return wrap(ErrSequenceViolation, nil)
	}
	s.lastSeq[dir] = seq
	return nil
}

// resetSeq clears the sequence counters for both directions, used on an
// `ivreset` tag (Variant B, spec §4.1).
func (s *Session) resetSeq() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.haveSeq[DirMobileToIntercom] = false
	s.haveSeq[DirIntercomToMobile] = false
}

// teardown invalidates everything: nonce, derived keys, pending challenge
// state, and stops the expiry timer. Called on disconnect or any protocol
// error that terminates the session (spec §4.3, §5).
func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonceValid = false
	for i := range s.nonce {
		s.nonce[i] = 0
	}
	s.Keys.zero()
	s.pendingRbSet = false
	for i := range s.pendingRb {
		s.pendingRb[i] = 0
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.Phase = PhaseIdle
}

// checkMTU validates an outbound frame against the session's negotiated ATT
// MTU: the encoded frame must not exceed MTU-3, the three bytes of ATT
// opcode/handle overhead a GATT write/notify consumes (spec §4.1). An unset
// MTU (0, the zero value for transports that never negotiate one) skips the
// check.
func (s *Session) checkMTU(frame []byte) ([]byte, error) {
	if s.MTU > 0 && len(frame) > s.MTU-3 {
		return nil, wrap(ErrMtuExceeded, nil)
	}
	return frame, nil
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.Phase = p
	s.mu.Unlock()
}

func (s *Session) phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Phase
}
