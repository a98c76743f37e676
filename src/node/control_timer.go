package node

import (
	"context"
	"math/rand"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer drives the maintenance work of the node. It ticks once per
// period, then rearms itself.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{} //sends a signal to the reactor
}

// NewControlTimer creates a ControlTimer that arms itself with timerFactory.
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}, 1),
	}
}

// NewRandomControlTimer returns a ControlTimer whose ticks are spread over
// [period, 1.25*period) so that nodes started together do not refresh in
// lockstep.
func NewRandomControlTimer() *ControlTimer {
	randomTimeout := func(min time.Duration) <-chan time.Time {
		if min <= 0 {
			return nil
		}
		extra := time.Duration(rand.Int63n(int64(min)/4 + 1))
		return time.After(min + extra)
	}
	return NewControlTimer(randomTimeout)
}

// TickCh returns the channel the timer signals on. A tick that nobody has
// read yet absorbs the following ones.
func (c *ControlTimer) TickCh() <-chan struct{} {
	return c.tickCh
}

// Run ticks every period until ctx is done.
func (c *ControlTimer) Run(ctx context.Context, period time.Duration) {
	timer := c.timerFactory(period)
	for {
		select {
		case <-timer:
			select {
			case c.tickCh <- struct{}{}:
			default:
			}
			timer = c.timerFactory(period)
		case <-ctx.Done():
			return
		}
	}
}
