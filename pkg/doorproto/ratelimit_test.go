package doorproto

import "testing"

func TestRateLimiterPerPeerBucket(t *testing.T) {
	rl := NewRateLimiter(2, 60, 100, 60)
	peer := []byte{0x01, 0x02}

	if !rl.Check(peer) {
		t.Fatal("expected capacity before any attempts")
	}
	rl.Record(peer)
	if !rl.Check(peer) {
		t.Fatal("expected capacity for the second of 2 allowed attempts")
	}
	rl.Record(peer)
	if rl.Check(peer) {
		t.Fatal("expected bucket exhausted after 2 recorded attempts with burst 2")
	}
}

func TestRateLimiterPeersAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, 60, 100, 60)
	peerA := []byte{0xAA}
	peerB := []byte{0xBB}

	rl.Record(peerA)
	if !rl.Check(peerB) {
		t.Fatal("a different peer's bucket must not be affected by peerA's consumption")
	}
}

func TestRateLimiterGlobalCapSharedAcrossPeers(t *testing.T) {
	rl := NewRateLimiter(100, 60, 1, 60)
	peerA := []byte{0x01}
	peerB := []byte{0x02}

	rl.Record(peerA)
	if rl.Check(peerB) {
		t.Fatal("global bucket exhaustion must deny a fresh peer too")
	}
}

func TestRateLimiterForgetEvictsPeerBucket(t *testing.T) {
	rl := NewRateLimiter(1, 60, 100, 60)
	peer := []byte{0x01, 0x02, 0x03}

	rl.Record(peer)
	if rl.Check(peer) {
		t.Fatal("expected bucket exhausted before Forget")
	}
	rl.Forget(peer)
	if !rl.Check(peer) {
		t.Fatal("expected a fresh bucket after Forget")
	}
}
