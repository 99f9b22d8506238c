package storemodule

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ImageRecord is the metadata unit for one image file. The record id is
// the filename, stable for the life of the file.
type ImageRecord struct {
	Name         string    `json:"name"`
	FilePath     string    `json:"filePath"`
	FileURL      string    `json:"fileUrl"`
	Date         time.Time `json:"date"`
	Tags         []string  `json:"tags"`
	Colors       []string  `json:"colors,omitempty"`
	OCRText      string    `json:"ocrText"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	AIProcessed  bool      `json:"aiProcessed"`
	Processed    bool      `json:"processed"`
	NeedsTagging bool      `json:"needsTagging"`
}

// Clone returns a deep copy so callers never share tag slices with the
// store's committed state.
func (r *ImageRecord) Clone() *ImageRecord {
	c := *r
	c.Tags = append([]string(nil), r.Tags...)
	c.Colors = append([]string(nil), r.Colors...)
	return &c
}

// HasTag reports tag membership, case-insensitive.
func (r *ImageRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// NewBaseRecord creates the record written when a file is first seen.
func NewBaseRecord(name, filePath string) *ImageRecord {
	return &ImageRecord{
		Name:         name,
		FilePath:     filePath,
		FileURL:      "file://" + (&url.URL{Path: filePath}).EscapedPath(),
		Date:         time.Now(),
		Tags:         []string{},
		OCRText:      "",
		Title:        "",
		Description:  "",
		AIProcessed:  false,
		Processed:    false,
		NeedsTagging: true,
	}
}

// legacyRecord is the nested shape written by earlier versions of the
// data file: {text, tags: {tags, context, colors}, date, needsTagging}.
type legacyRecord struct {
	Name     string `json:"name"`
	FilePath string `json:"filePath"`
	FileURL  string `json:"fileUrl"`
	Text     string `json:"text"`
	Tags     struct {
		Tags    []string `json:"tags"`
		Context string   `json:"context"`
		Colors  []string `json:"colors"`
	} `json:"tags"`
	Date         time.Time `json:"date"`
	NeedsTagging bool      `json:"needsTagging"`
}

// decodeRecord parses a single persisted entry, upgrading the legacy
// nested shape when present. The id keys the entry in the data file and
// wins over any name stored inside it.
func decodeRecord(id string, raw json.RawMessage) (*ImageRecord, error) {
	// The two shapes differ in the type of the "tags" field: flat
	// records hold an array, legacy records hold an object.
	var probe struct {
		Tags json.RawMessage `json:"tags"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("malformed record %q: %w", id, err)
	}

	if len(probe.Tags) > 0 && probe.Tags[0] == '{' {
		var legacy legacyRecord
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return nil, fmt.Errorf("malformed legacy record %q: %w", id, err)
		}
		return upgradeLegacy(id, &legacy), nil
	}

	var rec ImageRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("malformed record %q: %w", id, err)
	}
	rec.Name = id
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return &rec, nil
}

// upgradeLegacy maps the nested shape onto the canonical flat record.
// Legacy "context" becomes the description and "text" the OCR text; a
// record that already holds text counts as processed.
func upgradeLegacy(id string, legacy *legacyRecord) *ImageRecord {
	rec := &ImageRecord{
		Name:         id,
		FilePath:     legacy.FilePath,
		FileURL:      legacy.FileURL,
		Date:         legacy.Date,
		Tags:         legacy.Tags.Tags,
		Colors:       legacy.Tags.Colors,
		OCRText:      legacy.Text,
		Description:  legacy.Tags.Context,
		NeedsTagging: legacy.NeedsTagging,
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if rec.OCRText != "" {
		rec.Processed = true
	}
	if len(rec.Tags) > 0 || rec.Description != "" {
		rec.AIProcessed = true
	}
	return rec
}
