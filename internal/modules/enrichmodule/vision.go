package enrichmodule

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/lumengallery/lumen/internal/config"
)

// visionPalette constrains the model to names the UI can render as
// swatches without a lookup table.
var visionPalette = []string{
	"Red", "Orange", "Yellow", "Green", "Teal", "Cyan", "Blue", "Navy Blue",
	"Purple", "Magenta", "Pink", "Brown", "Tan", "Beige", "Gold", "Silver",
	"Gray", "Charcoal", "Black", "White", "Cream", "Olive", "Maroon", "Turquoise",
}

const visionPromptTemplate = `Describe this image for a photo gallery.
Reply with a short prose description, then exactly these sections:
<title>a short title, five words or fewer</title>
<tags>8 to 15 comma-separated lowercase keywords covering subjects, setting, mood and style</tags>
<colors>the 2 to 4 dominant colors, chosen only from this palette: %s</colors>`

// VisionProvider enriches images through an OpenAI-style chat
// completions endpoint. It owns its sliding-window rate limit and a
// fixed-delay retry loop for transient backend overload.
type VisionProvider struct {
	endpoint   string
	model      string
	apiKey     string
	maxDim     int
	attempts   int
	retryDelay time.Duration
	limiter    *rateLimiter
	client     *http.Client
	log        hclog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewVisionProvider(cfg *config.EnrichConfig, log hclog.Logger) *VisionProvider {
	return &VisionProvider{
		endpoint:   cfg.VisionEndpoint,
		model:      cfg.VisionModel,
		apiKey:     cfg.APIKey,
		maxDim:     cfg.VisionMaxDim,
		attempts:   cfg.RetryAttempts,
		retryDelay: cfg.RetryDelay,
		limiter:    newRateLimiter(cfg.RateLimit, cfg.RateWindow),
		client:     &http.Client{Timeout: 120 * time.Second},
		log:        log.Named("vision"),
		sleep:      sleepCtx,
	}
}

func (p *VisionProvider) Name() string { return "vision" }

// Configure swaps the model and key at runtime, following the settings
// store. Empty values leave the current configuration untouched.
func (p *VisionProvider) Configure(model, apiKey string) {
	if model != "" {
		p.model = model
	}
	if apiKey != "" {
		p.apiKey = apiKey
	}
}

func (p *VisionProvider) Enrich(ctx context.Context, imageBytes []byte, mimeType string) (Result, error) {
	if p.apiKey == "" {
		return Result{}, &EnrichmentFailedError{Provider: p.Name(), Attempts: 0, Err: fmt.Errorf("no API key configured")}
	}

	payload, payloadMime, err := prepareForVision(imageBytes, mimeType, p.maxDim)
	if err != nil {
		return Result{}, err
	}

	reply, err := p.complete(ctx, payload, payloadMime)
	if err != nil {
		return Result{}, err
	}

	res, outcome := parseVisionReply(reply)
	if outcome == parseRawText {
		p.log.Warn("vision reply carried no structured sections, keeping description only")
	}
	return res, nil
}

// complete submits the chat request, retrying a fixed number of times
// with a constant delay when the backend reports overload.
func (p *VisionProvider) complete(ctx context.Context, payload []byte, mimeType string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", err
		}

		reply, retryable, err := p.completeOnce(ctx, payload, mimeType)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		p.log.Warn("vision backend overloaded, retrying", "attempt", attempt, "delay", p.retryDelay)
		if attempt < p.attempts {
			if serr := p.sleep(ctx, p.retryDelay); serr != nil {
				return "", serr
			}
		}
	}
	return "", &EnrichmentFailedError{Provider: p.Name(), Attempts: p.attempts, Err: lastErr}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *VisionProvider) completeOnce(ctx context.Context, payload []byte, mimeType string) (reply string, retryable bool, err error) {
	prompt := fmt.Sprintf(visionPromptTemplate, strings.Join(visionPalette, ", "))
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(payload))

	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContent{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
			},
		}},
	})
	if err != nil {
		return "", false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", true, err
	}

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("vision backend returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("vision backend returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", false, fmt.Errorf("decode vision response: %w", err)
	}
	if parsed.Error != nil {
		retryable := strings.Contains(parsed.Error.Type, "overloaded")
		return "", retryable, fmt.Errorf("vision backend error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("vision response carried no choices")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
