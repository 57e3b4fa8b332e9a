package db

import "log"

// ------------------------------
// Event System
// ------------------------------
//
// The DB emits typed events when URLs are first seen and when checks are
// recorded. Register listeners to react to these changes.
//
// Example usage:
//
//	db.RegisterEventListener(db.OnCheckRecordedEvent, func(event db.Event) error {
//	    ev := event.(db.CheckRecordedEvent)
//	    log.Printf("Checked %s: %s", ev.URL.URL, ev.Check.Status)
//	    return nil
//	})
//
// Event is the common interface for all database events.
type Event interface {
	Kind() EventKind
}

// EventKind represents all the kinds of events that can be emitted by the DB.
type EventKind int

const (
	// OnURLCreatedEvent is emitted when a URL is checked for the first time.
	OnURLCreatedEvent EventKind = iota
	// OnCheckRecordedEvent is emitted when a check is recorded.
	OnCheckRecordedEvent
)

func (k EventKind) String() string {
	switch k {
	case OnURLCreatedEvent:
		return "url_created"
	case OnCheckRecordedEvent:
		return "check_recorded"
	default:
		return "unknown"
	}
}

// URLCreatedEvent is emitted after a new URL row is inserted.
type URLCreatedEvent struct {
	URL URL
}

func (e URLCreatedEvent) Kind() EventKind { return OnURLCreatedEvent }

// CheckRecordedEvent is emitted after a check is committed. URL holds the
// row as updated by the check.
type CheckRecordedEvent struct {
	URL   URL
	Check Check
}

func (e CheckRecordedEvent) Kind() EventKind { return OnCheckRecordedEvent }

// EventListener is a callback that handles events of a specific kind.
type EventListener func(event Event) error

// RegisterEventListener adds a listener for a specific event kind.
// Listeners are called synchronously in registration order after the DB operation succeeds.
// Register listeners before the DB is used concurrently.
func (db *DB) RegisterEventListener(eventKind EventKind, listener EventListener) {
	if db.eventListeners == nil {
		db.eventListeners = make(map[EventKind][]EventListener)
	}
	db.eventListeners[eventKind] = append(db.eventListeners[eventKind], listener)
}

// emit dispatches an event to all registered listeners for that event kind.
func (db *DB) emit(event Event) {
	listeners := db.eventListeners[event.Kind()]
	for _, listener := range listeners {
		if err := listener(event); err != nil {
			log.Printf("Event listener error for %s: %v", event.Kind(), err)
		}
	}
}
