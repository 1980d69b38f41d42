// Package roomlock serializes mutations of the same room inside one process.
package roomlock

import (
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per room. Entries are dropped once nobody holds
// or waits for them.
type Locker struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*entry
}

func New() *Locker {
	return &Locker{rooms: make(map[uuid.UUID]*entry)}
}

// Lock blocks until the room is free and returns the matching unlock.
func (l *Locker) Lock(roomID uuid.UUID) func() {
	l.mu.Lock()
	e, ok := l.rooms[roomID]
	if !ok {
		e = &entry{}
		l.rooms[roomID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.rooms, roomID)
			}
			l.mu.Unlock()
		})
	}
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
