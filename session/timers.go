package session

import "time"

// Timer is a cancellable one-shot scheduled task.
type Timer interface {
	Stop() bool
}

// TimerFactory schedules fn to run once after d. Replaced in tests with a
// manual implementation so timer behavior is deterministic.
type TimerFactory func(d time.Duration, fn func()) Timer

func afterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// timerSlot holds at most one pending timer of a kind. The generation
// counter increments on every arm and cancel, so a fire from a superseded
// timer can recognize itself as stale and do nothing.
type timerSlot struct {
	timer Timer
	gen   uint64
}

// arm cancels any pending timer in the slot and schedules a new one. fire
// receives the generation it was armed with. Callers hold the service lock.
func (ts *timerSlot) arm(factory TimerFactory, d time.Duration, fire func(gen uint64)) {
	if ts.timer != nil {
		ts.timer.Stop()
	}
	ts.gen++
	gen := ts.gen
	ts.timer = factory(d, func() { fire(gen) })
}

// cancel stops any pending timer and invalidates outstanding fires.
func (ts *timerSlot) cancel() {
	if ts.timer != nil {
		ts.timer.Stop()
		ts.timer = nil
	}
	ts.gen++
}
