package assistant

import (
	"strings"
	"sync"
)

// sessionLocks hands out one mutex per session id. Entries are dropped when
// the last holder or waiter releases them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (l *sessionLocks) lock(sessionID string) (unlock func()) {
	key := strings.TrimSpace(sessionID)

	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sessionLock)
	}
	sl, ok := l.locks[key]
	if !ok {
		sl = &sessionLock{}
		l.locks[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
