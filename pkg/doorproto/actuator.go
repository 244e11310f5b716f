package doorproto

import "context"

// Actuator drives the physical door-strike hardware. It is an external
// collaborator per spec §1: this package only defines the interface and
// bounds the call with ActuatorTimeout (spec §5); the GPIO/relay driver
// itself lives outside the core.
type Actuator interface {
	Actuate(ctx context.Context) (DoorState, error)
}

// actuateWithTimeout bounds a door-strike call to ActuatorTimeout, mapping a
// context deadline or actuator-reported failure to ErrActuatorFault.
func actuateWithTimeout(ctx context.Context, a Actuator) (DoorState, error) {
	ctx, cancel := context.WithTimeout(ctx, ActuatorTimeout)
	defer cancel()

	type result struct {
		state DoorState
		err   error
	}
	done := make(chan result, 1)
	go func() {
		state, err := a.Actuate(ctx)
		done <- result{state, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return DoorStateUnknown, wrap(ErrActuatorFault, r.err)
		}
		return r.state, nil
	case <-ctx.Done():
		return DoorStateUnknown, wrap(ErrActuatorFault, ctx.Err())
	}
}
