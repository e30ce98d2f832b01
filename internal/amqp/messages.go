package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"whomst/internal/core"
)

// EventType names what happened to an entry.
type EventType string

const (
	EventEntryCreated EventType = "entry.created"
	EventEntryRemoved EventType = "entry.removed"
)

// EntryEvent is published after a store change. Created events carry the
// full record so consumers never have to read the store.
type EntryEvent struct {
	Type      EventType    `json:"type"`
	ID        string       `json:"id"`
	Entry     *core.Record `json:"entry,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewEntryCreatedEvent wraps a freshly stored entry.
func NewEntryCreatedEvent(e core.Entry) *EntryEvent {
	rec := e.ToRecord()
	return &EntryEvent{
		Type:      EventEntryCreated,
		ID:        e.TS,
		Entry:     &rec,
		Timestamp: time.Now(),
	}
}

// NewEntryRemovedEvent announces a soft delete.
func NewEntryRemovedEvent(id string) *EntryEvent {
	return &EntryEvent{
		Type:      EventEntryRemoved,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate checks the fields a consumer relies on.
func (m *EntryEvent) Validate() error {
	if m.ID == "" {
		return errors.New("event has no entry id")
	}
	switch m.Type {
	case EventEntryCreated:
		if m.Entry == nil {
			return errors.New("created event has no entry")
		}
		if m.Entry.TS != m.ID {
			return fmt.Errorf("created event id %q does not match entry ts %q", m.ID, m.Entry.TS)
		}
	case EventEntryRemoved:
	default:
		return fmt.Errorf("unknown event type %q", m.Type)
	}
	return nil
}

// EntryEventFromJSON parses and validates a message body.
func EntryEventFromJSON(data []byte) (*EntryEvent, error) {
	var msg EntryEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
