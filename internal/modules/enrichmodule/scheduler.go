package enrichmodule

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/lumengallery/lumen/internal/events"
	"github.com/lumengallery/lumen/internal/modules/storemodule"
	"github.com/lumengallery/lumen/internal/utils"
)

// Scheduler walks enrichment candidates in small batches and runs the
// OCR and vision providers concurrently per record. An in-flight set
// guarantees at most one enrichment per record at a time; each
// provider's output is written back as soon as it lands, so a record
// keeps partial results when the other provider fails.
type Scheduler struct {
	store     *storemodule.Store
	ocr       Provider
	vision    Provider
	eventBus  events.EventBus
	throttler *loadThrottler
	batchSize int
	log       hclog.Logger

	mu       sync.Mutex
	inFlight map[string]bool

	readFile func(path string) ([]byte, error)
}

func NewScheduler(store *storemodule.Store, ocr, vision Provider, eventBus events.EventBus, throttler *loadThrottler, batchSize int, log hclog.Logger) *Scheduler {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Scheduler{
		store:     store,
		ocr:       ocr,
		vision:    vision,
		eventBus:  eventBus,
		throttler: throttler,
		batchSize: batchSize,
		log:       log.Named("scheduler"),
		inFlight:  make(map[string]bool),
		readFile:  os.ReadFile,
	}
}

// tryAcquire marks id in flight, or reports ErrAlreadyInFlight.
func (s *Scheduler) tryAcquire(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[id] {
		return ErrAlreadyInFlight
	}
	s.inFlight[id] = true
	return nil
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// InFlight reports whether id is currently being enriched.
func (s *Scheduler) InFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[id]
}

// ProcessBacklog enriches every record that still needs work, in
// batches. Between batches the scheduler yields while the host is
// under load. Individual record failures are logged and skipped.
func (s *Scheduler) ProcessBacklog(ctx context.Context) error {
	var pending []*storemodule.ImageRecord
	for _, rec := range s.store.GetAll() {
		if !rec.Processed || rec.NeedsTagging {
			pending = append(pending, rec)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	s.log.Info("processing enrichment backlog", "pending", len(pending), "batch_size", s.batchSize)

	for start := 0; start < len(pending); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.throttler != nil {
			if err := s.throttler.waitUntilIdle(ctx); err != nil {
				return err
			}
		}

		end := start + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}

		var wg sync.WaitGroup
		for _, rec := range pending[start:end] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if err := s.Process(ctx, id, false); err != nil &&
					!errors.Is(err, ErrAlreadyInFlight) && !errors.Is(err, context.Canceled) {
					s.log.Warn("enrichment failed", "image", id, "error", err)
				}
			}(rec.Name)
		}
		wg.Wait()
	}
	return nil
}

// Process enriches one record. With force false, providers whose work
// is already recorded are skipped; force re-runs both regardless, which
// is how manual re-tagging works. The in-flight guard applies either
// way, so a retag request for a busy record fails fast.
func (s *Scheduler) Process(ctx context.Context, id string, force bool) error {
	if err := s.tryAcquire(id); err != nil {
		return err
	}
	defer s.release(id)

	rec, err := s.store.Get(id)
	if err != nil {
		return err
	}

	runOCR := force || !rec.Processed
	runVision := force || rec.NeedsTagging || !rec.AIProcessed
	if !runOCR && !runVision {
		return nil
	}

	data, err := s.readFile(rec.FilePath)
	if err != nil {
		s.publishFailed(id, err)
		return err
	}
	mimeType := utils.MimeType(rec.FilePath)

	s.publish(events.EventEnrichStarted, id, "enrichment started")

	var wg sync.WaitGroup
	var ocrErr, visionErr error

	if runOCR && s.ocr != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ocrErr = s.runProvider(ctx, s.ocr, id, data, mimeType)
		}()
	}
	if runVision && s.vision != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			visionErr = s.runProvider(ctx, s.vision, id, data, mimeType)
		}()
	}
	wg.Wait()

	if ocrErr != nil || visionErr != nil {
		err := errors.Join(ocrErr, visionErr)
		s.publishFailed(id, err)
		return err
	}

	s.publish(events.EventEnrichFinished, id, "enrichment finished")
	return nil
}

// runProvider executes one provider and writes whatever it produced
// straight into the store. Writes happen per field so a later failure
// elsewhere never rolls back landed results.
func (s *Scheduler) runProvider(ctx context.Context, p Provider, id string, data []byte, mimeType string) error {
	res, err := p.Enrich(ctx, data, mimeType)
	if err != nil {
		return err
	}
	return s.apply(id, res)
}

func (s *Scheduler) apply(id string, res Result) error {
	var firstErr error
	record := func(_ *storemodule.ImageRecord, err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if res.HasOCRText {
		record(s.store.SetOCRText(id, res.OCRText))
	}
	if res.Title != "" {
		record(s.store.SetTitle(id, res.Title))
	}
	if res.Description != "" {
		record(s.store.SetDescription(id, res.Description))
	}
	if len(res.Tags) > 0 {
		record(s.store.SetTags(id, res.Tags))
	}
	if len(res.Colors) > 0 {
		record(s.store.SetColors(id, res.Colors))
	}
	return firstErr
}

func (s *Scheduler) publish(eventType events.EventType, id, message string) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.PublishAsync(events.NewRecordEvent(eventType, "enrich", id, message))
}

func (s *Scheduler) publishFailed(id string, err error) {
	if s.eventBus == nil {
		return
	}
	event := events.NewRecordEvent(events.EventEnrichFailed, "enrich", id, "enrichment failed")
	event.Data["error"] = err.Error()
	s.eventBus.PublishAsync(event)
}
