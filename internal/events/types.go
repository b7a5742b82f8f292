// Package events defines the lifecycle and status events the extension
// manager emits toward the player UI, and an in-process broker that fans
// them out to subscribers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of event. These names are the message names on
// the IPC channel; the UI dispatches on them.
type Type string

// Extension lifecycle events.
const (
	TypeInstalled  Type = "extension_installed"
	TypeRemoved    Type = "extension_removed"
	TypeStatus     Type = "extension_status"
	TypeError      Type = "extension_error"
	TypePopupShown Type = "popup_shown"
)

// Component events.
const (
	TypeCDMStatus Type = "cdm_status"
)

// Event is one message relayed to the UI.
type Event struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	ExtensionID string         `json:"extension_id,omitempty"`
	Session     string         `json:"session,omitempty"`
	Time        time.Time      `json:"time"`
	Data        map[string]any `json:"data,omitempty"`
}

// New builds an event with a fresh id and the current time.
func New(t Type, extensionID string) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		ExtensionID: extensionID,
		Time:        time.Now().UTC(),
	}
}

// WithData attaches a payload field and returns the event for chaining.
func (e Event) WithData(key string, value any) Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// WithSession tags the event with a browsing session name.
func (e Event) WithSession(session string) Event {
	e.Session = session
	return e
}
