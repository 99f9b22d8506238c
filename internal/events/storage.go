// Package events provides database storage implementation for events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// GalleryEvent represents a persisted gallery event row
type GalleryEvent struct {
	ID        uint32    `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"uniqueIndex;not null" json:"event_id"`
	Type      string    `gorm:"not null;index" json:"type"`
	Source    string    `gorm:"not null;index" json:"source"`
	Target    string    `gorm:"index" json:"target"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Data      string    `gorm:"type:text" json:"data"` // JSON-encoded event data
	Priority  int       `gorm:"not null;index" json:"priority"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GalleryEvent
func (GalleryEvent) TableName() string {
	return "gallery_events"
}

// ToEvent converts a GalleryEvent to an Event
func (ge *GalleryEvent) ToEvent() (Event, error) {
	event := Event{
		ID:        ge.EventID,
		Type:      EventType(ge.Type),
		Source:    ge.Source,
		Target:    ge.Target,
		Title:     ge.Title,
		Message:   ge.Message,
		Priority:  EventPriority(ge.Priority),
		Timestamp: ge.CreatedAt,
	}

	if ge.Data != "" {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(ge.Data), &data); err != nil {
			return event, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		event.Data = data
	} else {
		event.Data = make(map[string]interface{})
	}

	return event, nil
}

// fromEvent converts an Event to a GalleryEvent row
func fromEvent(event Event) (GalleryEvent, error) {
	row := GalleryEvent{
		EventID:   event.ID,
		Type:      string(event.Type),
		Source:    event.Source,
		Target:    event.Target,
		Title:     event.Title,
		Message:   event.Message,
		Priority:  int(event.Priority),
		CreatedAt: event.Timestamp,
	}

	if len(event.Data) > 0 {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return row, fmt.Errorf("failed to marshal event data: %w", err)
		}
		row.Data = string(data)
	}

	return row, nil
}

// databaseStorage implements EventStorage backed by gorm
type databaseStorage struct {
	db *gorm.DB
	mu sync.RWMutex
}

// NewDatabaseStorage creates a gorm-backed event storage and migrates
// its table.
func NewDatabaseStorage(db *gorm.DB) (EventStorage, error) {
	if err := db.AutoMigrate(&GalleryEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate event table: %w", err)
	}
	return &databaseStorage{db: db}, nil
}

// Store stores an event
func (s *databaseStorage) Store(ctx context.Context, event Event) error {
	row, err := fromEvent(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to store event %s: %w", event.ID, err)
	}
	return nil
}

// Get retrieves events based on filter
func (s *databaseStorage) Get(ctx context.Context, filter EventFilter, limit, offset int) ([]Event, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := s.db.WithContext(ctx).Model(&GalleryEvent{})

	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		query = query.Where("type IN ?", types)
	}
	if len(filter.Sources) > 0 {
		query = query.Where("source IN ?", filter.Sources)
	}
	if filter.Priority != nil {
		query = query.Where("priority >= ?", int(*filter.Priority))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	var rows []GalleryEvent
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}

	result := make([]Event, 0, len(rows))
	for i := range rows {
		event, err := rows[i].ToEvent()
		if err != nil {
			// Skip rows with unreadable payloads rather than failing the page
			continue
		}
		result = append(result, event)
	}

	return result, total, nil
}

// Delete removes events older than the specified duration
func (s *databaseStorage) Delete(ctx context.Context, olderThan time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	if err := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&GalleryEvent{}).Error; err != nil {
		return fmt.Errorf("failed to delete old events: %w", err)
	}
	return nil
}

// DeleteAllEvents removes all events from storage
func (s *databaseStorage) DeleteAllEvents(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&GalleryEvent{}).Error; err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

// Count returns the total number of stored events
func (s *databaseStorage) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	if err := s.db.WithContext(ctx).Model(&GalleryEvent{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// Close closes the storage
func (s *databaseStorage) Close() error {
	return nil
}
