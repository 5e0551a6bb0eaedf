package statuscheck

import (
	"context"
	"strings"
	"time"
)

// RedisPinger models the minimal redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// BucketChecker models the object store readiness probe.
type BucketChecker interface {
	HeadBucket(ctx context.Context) error
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Redis      Status `json:"redis"`
	Storage    Status `json:"storage"`
	OpenRouter Status `json:"openrouter"`
	FAL        Status `json:"fal"`
}

// Checker aggregates health checks for the external dependencies the
// illustration pipeline talks to.
type Checker struct {
	redis         RedisPinger
	storage       BucketChecker
	openRouterKey string
	falKey        string
}

// Options configures the Checker.
type Options struct {
	Redis         RedisPinger
	Storage       BucketChecker
	OpenRouterKey string
	FALKey        string
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	return &Checker{
		redis:         opts.Redis,
		storage:       opts.Storage,
		openRouterKey: strings.TrimSpace(opts.OpenRouterKey),
		falKey:        strings.TrimSpace(opts.FALKey),
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:      c.checkRedis(ctx),
		Storage:    c.checkStorage(ctx),
		OpenRouter: checkKey(c.openRouterKey, "OPENROUTER_API_KEY"),
		FAL:        checkKey(c.falKey, "FAL_KEY"),
	}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: false, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	return Status{OK: true, Message: "ok"}
}

func (c *Checker) checkStorage(ctx context.Context) Status {
	if c.storage == nil {
		return Status{OK: false, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.storage.HeadBucket(ctx); err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	return Status{OK: true, Message: "ok"}
}

// Key presence is all we can verify cheaply; a live probe would spend paid
// tokens on every status call.
func checkKey(key, name string) Status {
	if key == "" {
		return Status{OK: false, Message: name + " not set"}
	}
	return Status{OK: true, Message: "configured"}
}
