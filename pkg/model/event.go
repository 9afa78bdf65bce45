// Package model defines ilagent's canonical event record, the two JSON
// shapes consumers and the HTTP ingress exchange it as, and the store
// conversions between them. See EventJSON (strict) and TransitionJSON
// (all fields optional, used while remapping raw broker payloads).
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType is one of the three canonical event transitions.
type EventType string

const (
	EventTypeAlert   EventType = "ALERT"
	EventTypeAccept  EventType = "ACCEPT"
	EventTypeResolve EventType = "RESOLVE"
)

// ParseEventType validates s against the known EventType values.
func ParseEventType(s string) (EventType, bool) {
	switch EventType(s) {
	case EventTypeAlert, EventTypeAccept, EventTypeResolve:
		return EventType(s), true
	default:
		return "", false
	}
}

// Priority is one of the two canonical priority values.
type Priority string

const (
	PriorityLow  Priority = "LOW"
	PriorityHigh Priority = "HIGH"
)

// ParsePriority validates s against the known Priority values.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityLow, PriorityHigh:
		return Priority(s), true
	default:
		return "", false
	}
}

// Image is one entry of an event's images array.
type Image struct {
	Src  string `json:"src"`
	Href string `json:"href,omitempty"`
	Alt  string `json:"alt,omitempty"`
}

// Link is one entry of an event's links array.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// EventJSON is the strict canonical shape: the wire format used by the HTTP
// ingress and the upstream API. Required fields are non-pointer; optional
// string fields are pointers so that "absent" and "present-but-empty" stay
// distinguishable through a JSON round trip. Empty images/links arrays and
// an empty customDetails are omitted on output, the same as absent ones.
type EventJSON struct {
	APIKey        string          `json:"apiKey"`
	EventType     string          `json:"eventType"`
	Summary       string          `json:"summary"`
	Details       *string         `json:"details,omitempty"`
	AlertKey      *string         `json:"alertKey,omitempty"`
	Priority      *string         `json:"priority,omitempty"`
	Images        []Image         `json:"images,omitempty"`
	Links         []Link          `json:"links,omitempty"`
	CustomDetails json.RawMessage `json:"customDetails,omitempty"`
}

// TransitionJSON is the all-optional shape used while remapping raw broker
// payloads into a canonical event, before the required-field defaults have
// been applied.
type TransitionJSON struct {
	APIKey        *string         `json:"apiKey,omitempty"`
	EventType     *string         `json:"eventType,omitempty"`
	Summary       *string         `json:"summary,omitempty"`
	Details       *string         `json:"details,omitempty"`
	AlertKey      *string         `json:"alertKey,omitempty"`
	Priority      *string         `json:"priority,omitempty"`
	Images        []Image         `json:"images,omitempty"`
	Links         []Link          `json:"links,omitempty"`
	CustomDetails json.RawMessage `json:"customDetails,omitempty"`
}

// FromTransition applies the remapper's final required-field defaults:
// missing eventType defaults to ALERT, missing apiKey becomes empty.
func FromTransition(t TransitionJSON) EventJSON {
	e := EventJSON{
		EventType:     "ALERT",
		Details:       t.Details,
		AlertKey:      t.AlertKey,
		Priority:      t.Priority,
		Images:        t.Images,
		Links:         t.Links,
		CustomDetails: t.CustomDetails,
	}
	if t.APIKey != nil {
		e.APIKey = *t.APIKey
	}
	if t.EventType != nil {
		e.EventType = *t.EventType
	}
	if t.Summary != nil {
		e.Summary = *t.Summary
	}
	return e
}

// QueueItem is the canonical event as stored by the durable queue:
// store-facing field names, JSON-serialized-to-text array/object fields,
// and an id/created_at pair the store assigns when absent.
type QueueItem struct {
	ID            string
	APIKey        string
	EventType     string
	AlertKey      *string
	Summary       string
	Details       *string
	CreatedAt     string
	InsertedAt    string
	Priority      *string
	Images        *string // JSON-encoded []Image
	Links         *string // JSON-encoded []Link
	CustomDetails *string // JSON-encoded arbitrary value
	EventAPIPath  *string
}

// NewQueueItem returns a zero-value QueueItem defaulted to EventTypeAlert.
func NewQueueItem() QueueItem {
	return QueueItem{EventType: string(EventTypeAlert)}
}

// ToStore converts the strict wire shape into the store shape, JSON-encoding
// Images/Links/CustomDetails to text. eventAPIPath, when non-empty, becomes
// the per-event upstream path override that the dispatcher honors; the
// store does not persist it, so rows read back from the queue carry none.
func ToStore(e EventJSON, eventAPIPath string) QueueItem {
	item := QueueItem{
		APIKey:        e.APIKey,
		EventType:     e.EventType,
		AlertKey:      e.AlertKey,
		Summary:       e.Summary,
		Details:       e.Details,
		Priority:      e.Priority,
		Images:        encodeJSON(e.Images),
		Links:         encodeJSON(e.Links),
		CustomDetails: encodeRaw(e.CustomDetails),
	}
	if eventAPIPath != "" {
		item.EventAPIPath = &eventAPIPath
	}
	return item
}

// FromStore converts a stored QueueItem back into the strict wire shape,
// decoding Images/Links/CustomDetails from text. A decode failure degrades
// silently to nil rather than propagating an error: malformed stored JSON
// should never block delivery of the rest of the event.
func FromStore(item QueueItem) EventJSON {
	e := EventJSON{
		APIKey:    item.APIKey,
		EventType: item.EventType,
		Summary:   item.Summary,
		Details:   item.Details,
		AlertKey:  item.AlertKey,
		Priority:  item.Priority,
	}
	if item.Images != nil {
		var images []Image
		if err := json.Unmarshal([]byte(*item.Images), &images); err == nil {
			e.Images = images
		}
	}
	if item.Links != nil {
		var links []Link
		if err := json.Unmarshal([]byte(*item.Links), &links); err == nil {
			e.Links = links
		}
	}
	if item.CustomDetails != nil {
		var v json.RawMessage
		if err := json.Unmarshal([]byte(*item.CustomDetails), &v); err == nil {
			e.CustomDetails = v
		}
	}
	return e
}

// NewID returns a UUIDv4-shaped event id, assigned by the store on insert
// when the caller did not already supply one.
func NewID() string {
	return uuid.NewString()
}

// NowStamp returns the wall-clock timestamp string assigned to created_at
// when the caller did not already supply one.
func NowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func encodeJSON[T any](v []T) *string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func encodeRaw(v json.RawMessage) *string {
	if len(v) == 0 {
		return nil
	}
	s := string(v)
	return &s
}
