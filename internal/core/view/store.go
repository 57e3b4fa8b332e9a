package view

import (
	"log"
	"sync"
)

// Snapshot is a consistent copy of a Store's contents.
type Snapshot struct {
	State     State
	Drilldown Drilldown
	// Version increases by one with every applied event.
	Version uint64
}

// Listener is called after each applied event with the resulting snapshot.
type Listener func(Snapshot) error

// Store owns the State and Drilldown of one session. It is safe for
// concurrent use; events are applied one at a time in arrival order.
type Store struct {
	mu        sync.Mutex
	state     State
	drilldown Drilldown
	version   uint64

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
}

// NewStore returns a Store with empty collections and all flags cleared.
func NewStore() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state.Clone(), Drilldown: s.drilldown, Version: s.version}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	return s.Snapshot().State
}

// Apply runs ev through Transition and the drill-down machine, then notifies
// listeners. It returns the resulting snapshot.
func (s *Store) Apply(ev Event) Snapshot {
	s.mu.Lock()
	s.state = Transition(s.state, ev)
	s.drilldown = advanceDrilldown(s.drilldown, ev)
	s.version++
	snap := Snapshot{State: s.state.Clone(), Drilldown: s.drilldown, Version: s.version}
	s.mu.Unlock()

	s.emit(snap)
	return snap
}

func advanceDrilldown(d Drilldown, ev Event) Drilldown {
	switch ev := ev.(type) {
	case HistoryStarted:
		return d.Request(ev.ID)
	case HistorySucceeded:
		return d.Succeed(ev.ID)
	case HistoryFailed:
		return d.Fail(ev.ID)
	case FetchAllStarted:
		return d.Deselect()
	default:
		return d
	}
}

// Subscribe registers l and returns a function that removes it. Listeners are
// called synchronously, outside the state lock, after every applied event.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) emit(snap Snapshot) {
	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		if err := l(snap); err != nil {
			log.Printf("View listener error at version %d: %v", snap.Version, err)
		}
	}
}
