package storemodule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lumengallery/lumen/internal/events"
	"github.com/lumengallery/lumen/internal/logger"
)

// ErrRecordNotFound is returned when a record id is absent from the
// store. Handlers map it to a 404; it is never fatal.
var ErrRecordNotFound = errors.New("image record not found")

// Store is the single source of truth for image metadata. All mutation
// goes through its methods; each commits the whole-record replacement,
// persists, and publishes a change event before releasing the lock, so
// subscribers observe mutations in commit order.
type Store struct {
	mu       sync.RWMutex
	records  map[string]*ImageRecord
	dataFile string
	eventBus events.EventBus
}

// NewStore creates a store bound to a data file. Existing data is
// loaded immediately; unreadable persisted data is a hard error.
func NewStore(dataFile string, eventBus events.EventBus) (*Store, error) {
	s := &Store{
		records:  make(map[string]*ImageRecord),
		dataFile: dataFile,
		eventBus: eventBus,
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load image data: %w", err)
	}
	logger.Info("Loaded data for %d images", len(s.records))
	return s, nil
}

// Create adds a base record for a newly seen file. It is idempotent:
// if the id already exists the stored record is returned unchanged and
// created is false.
func (s *Store) Create(id, filePath string) (rec *ImageRecord, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[id]; ok {
		return existing.Clone(), false, nil
	}

	newRec := NewBaseRecord(id, filePath)
	s.records[id] = newRec

	if err := s.persistLocked(); err != nil {
		delete(s.records, id)
		return nil, false, err
	}

	s.publishLocked(events.EventImageAdded, newRec, "new image detected")
	return newRec.Clone(), true, nil
}

// Get returns a copy of a record, or ErrRecordNotFound.
func (s *Store) Get(id string) (*ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// GetAll returns a point-in-time snapshot of all records. Ordering is
// unspecified beyond being deterministic by id; callers sort.
func (s *Store) GetAll() []*ImageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ImageRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the current record count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// mutate commits a copy-on-write field update: the record is cloned,
// changed by fn, swapped in whole, persisted, and announced. On persist
// failure the previous record is restored and the error returned.
func (s *Store) mutate(id string, fn func(*ImageRecord)) (*ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}

	next := prev.Clone()
	fn(next)
	s.records[id] = next

	if err := s.persistLocked(); err != nil {
		s.records[id] = prev
		return nil, err
	}

	s.publishLocked(events.EventImageUpdated, next, "record updated")
	return next.Clone(), nil
}

// SetOCRText stores the OCR result and marks the record processed.
func (s *Store) SetOCRText(id, text string) (*ImageRecord, error) {
	return s.mutate(id, func(r *ImageRecord) {
		r.OCRText = text
		r.Processed = true
	})
}

// SetTitle stores an AI or user supplied title.
func (s *Store) SetTitle(id, title string) (*ImageRecord, error) {
	return s.mutate(id, func(r *ImageRecord) {
		r.Title = title
		r.AIProcessed = true
	})
}

// SetDescription stores an AI or user supplied description.
func (s *Store) SetDescription(id, description string) (*ImageRecord, error) {
	return s.mutate(id, func(r *ImageRecord) {
		r.Description = description
		r.AIProcessed = true
	})
}

// SetTags replaces the tag list wholesale; a successful tagging pass
// completes enrichment for the record.
func (s *Store) SetTags(id string, tags []string) (*ImageRecord, error) {
	return s.mutate(id, func(r *ImageRecord) {
		r.Tags = dedupeTags(tags)
		r.AIProcessed = true
		r.Processed = true
		r.NeedsTagging = false
	})
}

// SetColors stores the advisory palette colors.
func (s *Store) SetColors(id string, colors []string) (*ImageRecord, error) {
	return s.mutate(id, func(r *ImageRecord) {
		r.Colors = append([]string(nil), colors...)
	})
}

// AddTag appends a tag unless an equal tag (case-insensitive) already
// exists. Insertion order is preserved for display.
func (s *Store) AddTag(id, tag string) (*ImageRecord, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, fmt.Errorf("empty tag")
	}
	return s.mutate(id, func(r *ImageRecord) {
		if !r.HasTag(tag) {
			r.Tags = append(r.Tags, tag)
		}
	})
}

// RemoveTag removes exact matches of tag from the record.
func (s *Store) RemoveTag(id, tag string) (*ImageRecord, error) {
	return s.mutate(id, func(r *ImageRecord) {
		kept := r.Tags[:0]
		for _, t := range r.Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		r.Tags = kept
	})
}

// Delete removes a record, persists, and announces the removal.
// Deleting an absent id is a no-op returning false.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.records[id]
	if !ok {
		return false, nil
	}

	delete(s.records, id)
	if err := s.persistLocked(); err != nil {
		s.records[id] = prev
		return false, err
	}

	s.publishLocked(events.EventImageRemoved, prev, "image removed")
	return true, nil
}

// Clear empties the store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.records
	s.records = make(map[string]*ImageRecord)
	if err := s.persistLocked(); err != nil {
		s.records = prev
		return err
	}

	if s.eventBus != nil {
		s.eventBus.PublishAsync(events.NewSystemEvent(events.EventStoreCleared,
			"Store cleared", "all image metadata removed"))
	}
	logger.Info("Cleared all image data")
	return nil
}

// Touch re-announces an existing record without mutating it. Used when
// file contents change on disk and served thumbnails go stale.
func (s *Store) Touch(id string) error {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return ErrRecordNotFound
	}

	if s.eventBus != nil {
		s.eventBus.PublishAsync(events.NewRecordEvent(events.EventImageUpdated,
			"store", rec.Name, "file contents changed"))
	}
	return nil
}

func (s *Store) publishLocked(eventType events.EventType, rec *ImageRecord, message string) {
	if s.eventBus == nil {
		return
	}
	event := events.NewRecordEvent(eventType, "store", rec.Name, message)
	event.Data["filePath"] = rec.FilePath
	if err := s.eventBus.PublishAsync(event); err != nil {
		logger.Warn("Failed to publish store event: %v", err)
	}
}

func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
