// Package enrichmodule drives OCR and AI-vision enrichment of image
// records through a bounded-concurrency scheduler.
package enrichmodule

import (
	"context"
	"errors"
	"fmt"
)

// Result is the uniform output of an enrichment provider. Providers
// fill only the fields they produce; empty fields are not written back.
type Result struct {
	Title       string
	Description string
	Tags        []string
	Colors      []string
	OCRText     string
	HasOCRText  bool // distinguishes "no text found" from "not an OCR provider"
}

// Provider is a single enrichment backend. Implementations own their
// rate limiting, retries, and media handling; callers see either a
// Result or a typed error.
type Provider interface {
	Name() string
	Enrich(ctx context.Context, imageBytes []byte, mimeType string) (Result, error)
}

// ErrUnsupportedMediaType is returned when a provider cannot accept or
// transcode the submitted media type.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// ErrAlreadyInFlight is returned when enrichment is requested for a
// record that is already being enriched.
var ErrAlreadyInFlight = errors.New("record enrichment already in flight")

// EnrichmentFailedError surfaces a provider failure after retries are
// exhausted. It is isolated per record and never aborts a batch.
type EnrichmentFailedError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *EnrichmentFailedError) Error() string {
	return fmt.Sprintf("enrichment via %s failed after %d attempts: %v", e.Provider, e.Attempts, e.Err)
}

func (e *EnrichmentFailedError) Unwrap() error { return e.Err }
