// Package simactuator provides an in-memory door-strike actuator for tests
// and the intercomd demo binary. A real GPIO/relay driver is out of scope
// per spec.md §1; this only exists so PeripheralEngine has something to call.
package simactuator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/barnettlynn/doorlink/pkg/doorproto"
)

// Simulated is a configurable fake Actuator.
type Simulated struct {
	Delay     time.Duration
	FailEvery uint32 // if > 0, every Nth call fails with a jam
	calls     atomic.Uint32
	unlocks   atomic.Uint32
}

func New() *Simulated { return &Simulated{} }

func (s *Simulated) Actuate(ctx context.Context) (doorproto.DoorState, error) {
	n := s.calls.Add(1)
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return doorproto.DoorStateUnknown, ctx.Err()
		}
	}
	if s.FailEvery > 0 && n%s.FailEvery == 0 {
		return doorproto.DoorStateUnknown, errJammed{}
	}
	s.unlocks.Add(1)
	return doorproto.DoorStateUnlocked, nil
}

// Unlocks returns how many times the actuator successfully unlocked.
func (s *Simulated) Unlocks() uint32 { return s.unlocks.Load() }

// Calls returns how many times Actuate was invoked.
func (s *Simulated) Calls() uint32 { return s.calls.Load() }

type errJammed struct{}

func (errJammed) Error() string { return "door strike jammed" }
