package observer

import (
	"sync/atomic"
	"time"
)

// throttle admits the first trigger of a burst and drops the rest until a
// cooldown has passed. Dropped triggers are not replayed.
type throttle struct {
	timer    Timer
	cooldown time.Duration
	action   func() error
	blocked  atomic.Bool
	dropped  atomic.Int64
}

func newThrottle(timer Timer, cooldown time.Duration, action func() error) *throttle {
	return &throttle{
		timer:    timer,
		cooldown: cooldown,
		action:   action,
	}
}

// trigger runs the action if the gate is open. The gate is closed and the
// reset scheduled before the action runs, so a failing action cannot leave
// the gate shut for good.
func (t *throttle) trigger() (ran bool, err error) {
	if !t.blocked.CompareAndSwap(false, true) {
		t.dropped.Add(1)
		return false, nil
	}
	t.timer.AfterFunc(t.cooldown, t.reset)
	return true, t.action()
}

func (t *throttle) reset() {
	t.blocked.Store(false)
}
