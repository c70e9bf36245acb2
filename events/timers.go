package events

import (
	"sort"
	"sync"
	"time"
)

// timer represents a scheduled one-shot callback.
type timer struct {
	id       int
	callback func()
	dueTime  time.Duration
}

// TimerQueue is a set of one-shot timers on a virtual clock. Nothing fires
// until the clock is moved with Advance, which makes it suitable for
// deterministic replays and tests.
type TimerQueue struct {
	timers map[int]*timer
	now    time.Duration
	nextID int
	mu     sync.Mutex
}

// NewTimerQueue creates a new timer queue with its clock at zero.
func NewTimerQueue() *TimerQueue {
	return &TimerQueue{
		timers: make(map[int]*timer),
		nextID: 1,
	}
}

// SetTimeout schedules callback to run once the clock has advanced by delay.
// It returns an id usable with Clear.
func (tq *TimerQueue) SetTimeout(callback func(), delay time.Duration) int {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	if delay < 0 {
		delay = 0
	}

	id := tq.nextID
	tq.nextID++

	tq.timers[id] = &timer{
		id:       id,
		callback: callback,
		dueTime:  tq.now + delay,
	}
	return id
}

// AfterFunc schedules f to run after d. It satisfies observer.Timer.
func (tq *TimerQueue) AfterFunc(d time.Duration, f func()) {
	tq.SetTimeout(f, d)
}

// Clear cancels a timer by id.
func (tq *TimerQueue) Clear(id int) {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	delete(tq.timers, id)
}

// Now returns the current virtual time.
func (tq *TimerQueue) Now() time.Duration {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return tq.now
}

// Advance moves the clock forward by d and runs every timer that became due,
// in due order. Timers scheduled by a callback run in the same call if they
// fall due before the new time. It returns the number of callbacks run.
func (tq *TimerQueue) Advance(d time.Duration) int {
	tq.mu.Lock()
	if d < 0 {
		d = 0
	}
	target := tq.now + d
	tq.mu.Unlock()

	fired := 0
	for {
		t := tq.popDue(target)
		if t == nil {
			break
		}
		// Execute outside the lock; the callback may schedule more timers.
		t.callback()
		fired++
	}

	tq.mu.Lock()
	tq.now = target
	tq.mu.Unlock()
	return fired
}

// popDue removes and returns the earliest timer due at or before target and
// moves the clock to its due time.
func (tq *TimerQueue) popDue(target time.Duration) *timer {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	var due []*timer
	for _, t := range tq.timers {
		if t.dueTime <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].dueTime == due[j].dueTime {
			return due[i].id < due[j].id
		}
		return due[i].dueTime < due[j].dueTime
	})

	t := due[0]
	delete(tq.timers, t.id)
	if t.dueTime > tq.now {
		tq.now = t.dueTime
	}
	return t
}

// Pending returns the number of scheduled timers.
func (tq *TimerQueue) Pending() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return len(tq.timers)
}

// NextDue returns the time until the next timer is due and whether any timer
// is pending.
func (tq *TimerQueue) NextDue() (time.Duration, bool) {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	var next time.Duration = -1
	for _, t := range tq.timers {
		d := t.dueTime - tq.now
		if next < 0 || d < next {
			next = d
		}
	}
	if next < 0 {
		return 0, false
	}
	return next, true
}
