package playback

import "time"

// timerSlot names a single-flight timer owned by a controller.
type timerSlot string

const (
	slotStall timerSlot = "stall"
	slotPlay  timerSlot = "play"
)

type timerHandle struct {
	id    uint64
	timer Timer
}

// timerSet keeps at most one live timer per slot. Callers must serialise
// access (the controller lock does this).
type timerSet struct {
	clock   Clock
	next    uint64
	handles map[timerSlot]timerHandle
}

func newTimerSet(clock Clock) *timerSet {
	return &timerSet{
		clock:   clock,
		handles: make(map[timerSlot]timerHandle),
	}
}

// schedule stops whatever occupies slot and arms fn after d. fn receives the
// handle id so it can verify it is still the slot's current timer.
func (ts *timerSet) schedule(slot timerSlot, d time.Duration, fn func(id uint64)) uint64 {
	ts.cancel(slot)
	ts.next++
	id := ts.next
	ts.handles[slot] = timerHandle{
		id:    id,
		timer: ts.clock.AfterFunc(d, func() { fn(id) }),
	}
	return id
}

// release removes the slot entry if id is still current. A false return means
// the timer was cancelled or superseded and its callback must do nothing.
func (ts *timerSet) release(slot timerSlot, id uint64) bool {
	h, ok := ts.handles[slot]
	if !ok || h.id != id {
		return false
	}
	delete(ts.handles, slot)
	return true
}

func (ts *timerSet) cancel(slot timerSlot) bool {
	h, ok := ts.handles[slot]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(ts.handles, slot)
	return true
}

// cancelAll stops every live timer and returns how many there were.
func (ts *timerSet) cancelAll() int {
	n := len(ts.handles)
	for slot, h := range ts.handles {
		h.timer.Stop()
		delete(ts.handles, slot)
	}
	return n
}

func (ts *timerSet) pending() int {
	return len(ts.handles)
}

func (ts *timerSet) has(slot timerSlot) bool {
	_, ok := ts.handles[slot]
	return ok
}
