package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/local/illustrator/internal/config"
)

// Options overrides per-call generation parameters. Zero values fall back to
// the client defaults.
type Options struct {
	Width    int
	Height   int
	Steps    int
	Guidance float64
}

var ErrRateLimited = errors.New("rate_limited")

// The provider's response schema varies between models and versions; the
// result URL is probed from these paths in order.
var urlPaths = []string{"images.0.url", "data.image.url", "image.url", "output.0.url"}

// Client calls a FAL-hosted image model. One configured client is shared
// across requests; calls are paced by a rate limiter to respect provider
// limits.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	cfg     config.ImageGenConfig
}

func NewClient(cfg config.ImageGenConfig) *Client {
	perMin := cfg.PerMinute
	if perMin <= 0 {
		perMin = 20
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 1),
		cfg:     cfg,
	}
}

type falRequest struct {
	Prompt            string  `json:"prompt"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
}

// Generate synthesizes one image for prompt and returns its (ephemeral) URL.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.New("missing FAL_KEY")
	}
	if prompt == "" {
		return "", errors.New("empty prompt")
	}

	width := opts.Width
	if width <= 0 {
		width = c.cfg.Width
	}
	height := opts.Height
	if height <= 0 {
		height = c.cfg.Height
	}
	steps := opts.Steps
	if steps <= 0 {
		steps = c.cfg.Steps
	}
	guidance := opts.Guidance
	if guidance <= 0 {
		guidance = c.cfg.GuidanceScale
	}

	req := falRequest{
		Prompt:            prompt,
		GuidanceScale:     guidance,
		NumInferenceSteps: clampSteps(steps, c.cfg.MaxSteps),
		// the model rejects dimensions that are not multiples of 8
		Width:  roundDown8(width),
		Height: roundDown8(height),
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	body, _ := json.Marshal(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Key "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("fal request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("fal response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fal status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	url := probeURL(raw)
	if url == "" {
		return "", errors.New("fal response has no image url")
	}

	log.Debug().
		Int("width", req.Width).
		Int("height", req.Height).
		Int("steps", req.NumInferenceSteps).
		Dur("took", time.Since(start)).
		Msg("image generated")
	return url, nil
}

func probeURL(raw []byte) string {
	for _, path := range urlPaths {
		if v := gjson.GetBytes(raw, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// roundDown8 floors to the nearest multiple of 8. Values below 8 clamp up to
// the provider's minimum dimension instead of collapsing to zero.
func roundDown8(v int) int {
	if v < 8 {
		return 8
	}
	return v / 8 * 8
}

func clampSteps(steps, max int) int {
	if max <= 0 {
		max = 12
	}
	if steps < 1 {
		return 1
	}
	if steps > max {
		return max
	}
	return steps
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
