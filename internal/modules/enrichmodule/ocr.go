package enrichmodule

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/lumengallery/lumen/internal/config"
)

// OCRProvider extracts text from images with the tesseract CLI. A
// channel semaphore caps concurrent runs process-wide; blocked callers
// are admitted in roughly arrival order.
type OCRProvider struct {
	bin    string
	maxDim int
	slots  chan struct{}
	log    hclog.Logger

	// runTesseract is swappable in tests.
	runTesseract func(ctx context.Context, bin, inputPath string) (string, error)
}

func NewOCRProvider(cfg *config.EnrichConfig, log hclog.Logger) *OCRProvider {
	concurrency := cfg.OCRConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &OCRProvider{
		bin:          cfg.TesseractBin,
		maxDim:       cfg.OCRMaxDim,
		slots:        make(chan struct{}, concurrency),
		log:          log.Named("ocr"),
		runTesseract: runTesseract,
	}
}

func (p *OCRProvider) Name() string { return "ocr" }

func (p *OCRProvider) Enrich(ctx context.Context, imageBytes []byte, mimeType string) (Result, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-p.slots }()

	prepared, err := prepareForOCR(imageBytes, mimeType, p.maxDim)
	if err != nil {
		return Result{}, err
	}

	tmp, err := os.CreateTemp("", "lumen-ocr-*.png")
	if err != nil {
		return Result{}, fmt.Errorf("create ocr temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(prepared); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("write ocr temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, err
	}

	text, err := p.runTesseract(ctx, p.bin, tmpPath)
	if err != nil {
		return Result{}, &EnrichmentFailedError{Provider: p.Name(), Attempts: 1, Err: err}
	}

	text = strings.TrimSpace(text)
	p.log.Debug("ocr completed", "chars", len(text))
	return Result{OCRText: text, HasOCRText: true}, nil
}

// runTesseract invokes tesseract writing to stdout and returns the
// recognized text. A missing binary surfaces as a normal exec error.
func runTesseract(ctx context.Context, bin, inputPath string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, inputPath, "stdout")
	cmd.Dir = filepath.Dir(inputPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(stderr.String(), 200))
	}
	return stdout.String(), nil
}
