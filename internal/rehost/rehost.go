package rehost

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/illustrator/internal/config"
)

// ObjectStore is the durable storage rehosted images land in.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// Result maps each original URL to its stable URL. URLs absent from Mapping
// failed to rehost and appear in Failed; callers keep the original URL as a
// degraded fallback.
type Result struct {
	Mapping map[string]string `json:"map"`
	Failed  []string          `json:"failed"`
}

// Rehoster downloads ephemeral image URLs, validates them and stores the
// bytes content-addressed, so repeated runs on the same image are idempotent.
type Rehoster struct {
	store ObjectStore
	http  *http.Client
	cfg   config.RehostConfig
}

func New(store ObjectStore, cfg config.RehostConfig) *Rehoster {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	return &Rehoster{
		store: store,
		http:  &http.Client{Timeout: cfg.Timeout},
		cfg:   cfg,
	}
}

// Rehost processes every URL in the input regardless of individual failures;
// one bad URL never aborts the batch. Duplicates collapse to one fetch.
func (r *Rehoster) Rehost(ctx context.Context, urls []string) Result {
	unique := dedupe(urls)
	stable := make([]string, len(unique))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, u := range unique {
		g.Go(func() error {
			dst, err := r.rehostOne(gctx, u)
			if err != nil {
				log.Warn().Err(err).Str("url", u).Msg("rehost failed; keeping original url")
				return nil
			}
			mu.Lock()
			stable[i] = dst
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Mapping: make(map[string]string, len(unique))}
	for i, u := range unique {
		if stable[i] != "" {
			res.Mapping[u] = stable[i]
		} else {
			res.Failed = append(res.Failed, u)
		}
	}
	log.Info().
		Int("total", len(unique)).
		Int("ok", len(res.Mapping)).
		Int("failed", len(res.Failed)).
		Msg("rehost batch done")
	return res
}

func (r *Rehoster) rehostOne(ctx context.Context, url string) (string, error) {
	data, contentType, err := r.fetch(ctx, url)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])[:16]
	key := r.cfg.KeyPrefix + hash + "." + guessExt(url, contentType)

	if err := r.store.Upload(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return r.store.PublicURL(key), nil
}

// fetch downloads the URL with a browser identity, retrying transient
// failures with linearly increasing backoff, and validates size and type.
func (r *Rehoster) fetch(ctx context.Context, url string) ([]byte, string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(r.cfg.RetryDelay * time.Duration(attempt-1)):
			}
		}

		data, contentType, retryable, err := r.fetchOnce(ctx, url)
		if err == nil {
			return data, contentType, nil
		}
		lastErr = err
		if !retryable {
			return nil, "", err
		}
		log.Debug().Err(err).Str("url", url).Int("attempt", attempt).Msg("image download retry")
	}
	return nil, "", fmt.Errorf("fetch failed after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

func (r *Rehoster) fetchOnce(ctx context.Context, url string) (data []byte, contentType string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", false, err
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, "", retry, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxBytes+1))
	if err != nil {
		return nil, "", true, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > r.cfg.MaxBytes {
		return nil, "", false, fmt.Errorf("payload exceeds %d bytes", r.cfg.MaxBytes)
	}

	ct := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !strings.HasPrefix(ct, "image/") {
		// header is ambiguous or missing; trust the magic bytes instead
		sniffed := mimetype.Detect(body).String()
		if !strings.HasPrefix(sniffed, "image/") {
			return nil, "", false, fmt.Errorf("not an image: content-type %q, sniffed %q", ct, sniffed)
		}
		ct = sniffed
	}
	return body, ct, false, nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

var urlExtRe = regexp.MustCompile(`(?i)\.(png|webp|gif|jpe?g)(?:\?|#|$)`)

// guessExt derives the stored file extension from the content type, falling
// back to the URL path, then jpg.
func guessExt(url, contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "webp"):
		return "webp"
	case strings.Contains(ct, "gif"):
		return "gif"
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return "jpg"
	}
	if m := urlExtRe.FindStringSubmatch(url); len(m) == 2 {
		ext := strings.ToLower(m[1])
		if ext == "jpeg" {
			ext = "jpg"
		}
		return ext
	}
	return "jpg"
}
