// Package events provides the event bus used to fan out gallery state
// changes to the query cache, the websocket hub, and the activity log.
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// Gallery record lifecycle. Added/Removed/Cleared change store
	// membership; Updated is a field-only mutation.
	EventImageAdded   EventType = "gallery.image.added"
	EventImageUpdated EventType = "gallery.image.updated"
	EventImageRemoved EventType = "gallery.image.removed"
	EventStoreCleared EventType = "gallery.store.cleared"

	// Enrichment pipeline events
	EventEnrichStarted  EventType = "enrich.record.started"
	EventEnrichFinished EventType = "enrich.record.finished"
	EventEnrichFailed   EventType = "enrich.record.failed"

	// Watcher events
	EventWatchStarted    EventType = "watch.started"
	EventReconcileDone   EventType = "watch.reconcile.completed"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"
)

// MembershipEvents are the types that change the set of record ids and
// therefore invalidate query ordering caches.
var MembershipEvents = []EventType{
	EventImageAdded,
	EventImageRemoved,
	EventStoreCleared,
}

// EventPriority represents the priority level of an event
type EventPriority int

const (
	PriorityLow      EventPriority = 1
	PriorityNormal   EventPriority = 5
	PriorityHigh     EventPriority = 10
	PriorityCritical EventPriority = 20
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"` // system, store, watcher, enrich, api
	Target    string                 `json:"target"` // record id when applicable
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Priority  EventPriority          `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event) error

// EventFilter represents filters for event subscriptions
type EventFilter struct {
	Types    []EventType    `json:"types,omitempty"`
	Sources  []string       `json:"sources,omitempty"`
	Priority *EventPriority `json:"priority,omitempty"`
}

// Subscription represents an event subscription
type Subscription struct {
	ID            string       `json:"id"`
	Filter        EventFilter  `json:"filter"`
	Handler       EventHandler `json:"-"`
	Subscriber    string       `json:"subscriber"`
	Created       time.Time    `json:"created"`
	LastTriggered *time.Time   `json:"last_triggered,omitempty"`
	TriggerCount  int64        `json:"trigger_count"`
}

// EventStats represents statistics about events
type EventStats struct {
	TotalEvents         int64            `json:"total_events"`
	EventsByType        map[string]int64 `json:"events_by_type"`
	EventsBySource      map[string]int64 `json:"events_by_source"`
	RecentEvents        []Event          `json:"recent_events"`
	ActiveSubscriptions int              `json:"active_subscriptions"`
}

// EventBusConfig represents configuration for the event bus
type EventBusConfig struct {
	BufferSize        int           `json:"buffer_size"`
	MaxEventAge       time.Duration `json:"max_event_age"`
	EnablePersistence bool          `json:"enable_persistence"`
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		BufferSize:        1000,
		MaxEventAge:       24 * time.Hour,
		EnablePersistence: true,
	}
}
