package chat

import "sync"

// laneLock serializes work per session id while letting different sessions
// run in parallel. A lane is dropped as soon as nobody holds or waits on it,
// so the map only ever holds sessions with a turn in flight.
type laneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	mu   sync.Mutex
	refs int
}

func newLaneLock() *laneLock {
	return &laneLock{lanes: make(map[string]*lane)}
}

// acquire blocks until the caller owns the lane for id.
func (l *laneLock) acquire(id string) {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	if !ok {
		ln = &lane{}
		l.lanes[id] = ln
	}
	ln.refs++
	l.mu.Unlock()

	// Lock outside the global mutex so other sessions are not blocked.
	ln.mu.Lock()
}

// release gives up the lane for id.
func (l *laneLock) release(id string) {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	ln.refs--
	if ln.refs == 0 {
		delete(l.lanes, id)
	}
	l.mu.Unlock()

	ln.mu.Unlock()
}

// size returns the number of live lanes.
func (l *laneLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
