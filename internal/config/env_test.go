package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "https://fal.run/fal-ai/flux/schnell", cfg.ImageGen.Endpoint)
	assert.InDelta(t, 3.5, cfg.ImageGen.GuidanceScale, 0.001)
	assert.Equal(t, 900, cfg.ImageGen.CoverWidth)
	assert.Equal(t, 383, cfg.ImageGen.CoverHeight)

	assert.Equal(t, int64(10<<20), cfg.Rehost.MaxBytes)
	assert.Equal(t, 3, cfg.Rehost.MaxAttempts)
	assert.Equal(t, "articles/", cfg.Rehost.KeyPrefix)
	assert.Contains(t, cfg.Rehost.UserAgent, "Mozilla/5.0")

	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.Planner.BaseURL)
	assert.Equal(t, "images", cfg.Storage.Bucket)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FAL_WIDTH", "640")
	t.Setenv("REHOST_MAX_ATTEMPTS", "5")
	t.Setenv("REHOST_RETRY_DELAY", "250ms")
	t.Setenv("SEND_LOGS_TO_AXIOM", "1")
	t.Setenv("AXIOM_DATASET", "prod")

	cfg := FromEnv()
	assert.Equal(t, 640, cfg.ImageGen.Width)
	assert.Equal(t, 5, cfg.Rehost.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Rehost.RetryDelay)
	assert.True(t, cfg.Axiom.Send)
	assert.Equal(t, "prod_illustrator", cfg.Axiom.Dataset)
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("FAL_GUIDANCE_SCALE", "not-a-number")
	t.Setenv("REHOST_MAX_BYTES", "huge")
	t.Setenv("REHOST_RETRY_DELAY", "soon")

	cfg := FromEnv()
	assert.InDelta(t, 3.5, cfg.ImageGen.GuidanceScale, 0.001)
	assert.Equal(t, int64(10<<20), cfg.Rehost.MaxBytes)
	assert.Equal(t, time.Second, cfg.Rehost.RetryDelay)
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", " on "} {
		assert.True(t, parseBool(v), v)
	}
	for _, v := range []string{"", "0", "false", "off", "nope"} {
		assert.False(t, parseBool(v), v)
	}
}
