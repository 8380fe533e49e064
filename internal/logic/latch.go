package logic

// Latch tracks the last notified door state and reports transitions.
//
// The comparison is always against the last *notified* state, never the
// last polled one, so a run of identical readings emits at most once.
// There is no debounce window beyond the caller's sampling interval.
type Latch struct {
	notified bool // true = open was the last reported state
	counts   EventCounts
}

// NewLatch creates a latch whose baseline is the given level.
// NewLatch(false) assumes the door starts closed.
func NewLatch(open bool) *Latch {
	return &Latch{notified: open}
}

// Observe takes one raw reading (true = high = open) and returns the event
// to emit, if any. The latch is updated before returning, so a failed
// write of the returned event is never retried by a later reading.
func (l *Latch) Observe(open bool) (EventType, bool) {
	if open == l.notified {
		return "", false
	}
	l.notified = open
	if open {
		l.counts.Opened++
		return EventDoorOpened, true
	}
	l.counts.Closed++
	return EventDoorClosed, true
}

// State returns the currently latched door state.
func (l *Latch) State() DoorState {
	if l.notified {
		return DoorOpen
	}
	return DoorClosed
}

// Counts returns the number of events emitted so far.
func (l *Latch) Counts() EventCounts {
	return l.counts
}

// StateFromLevel maps a raw pin level to a door state.
func StateFromLevel(open bool) DoorState {
	if open {
		return DoorOpen
	}
	return DoorClosed
}
