package dispatch

import "sync"

// bookingLocks serializes state-mutating operations per booking. Bookings
// are independent; within one booking the one-pending-assignment rule only
// holds if responses, timeouts and supersessions take turns.
type bookingLocks struct {
	m sync.Map // bookingID -> *sync.Mutex
}

// lock acquires the mutex for a booking and returns its unlock func.
func (l *bookingLocks) lock(bookingID string) func() {
	v, _ := l.m.LoadOrStore(bookingID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
