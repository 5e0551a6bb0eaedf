package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/illustrator/internal/config"
)

func cfgFor(endpoint string) config.ImageGenConfig {
	return config.ImageGenConfig{
		APIKey:        "test-key",
		Endpoint:      endpoint,
		GuidanceScale: 3.5,
		Steps:         12,
		MaxSteps:      12,
		Width:         896,
		Height:        504,
		Timeout:       5 * time.Second,
		PerMinute:     6000, // effectively unthrottled in tests
	}
}

// builds a client against a test server
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(cfgFor(srv.URL))
	return c, srv
}

func TestGenerateRoundsDimensionsDownToMultipleOf8(t *testing.T) {
	var got falRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeImage(w, "https://fal/img.png")
	})

	url, err := c.Generate(context.Background(), "a harbor", Options{Width: 900, Height: 383})
	require.NoError(t, err)
	assert.Equal(t, "https://fal/img.png", url)
	assert.Equal(t, 896, got.Width)
	assert.Equal(t, 376, got.Height)
}

func TestGenerateClampsSteps(t *testing.T) {
	var got falRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeImage(w, "https://fal/img.png")
	})

	_, err := c.Generate(context.Background(), "p", Options{Steps: 99})
	require.NoError(t, err)
	assert.Equal(t, 12, got.NumInferenceSteps)

	_, err = c.Generate(context.Background(), "p", Options{Steps: -5})
	require.NoError(t, err)
	// zero/negative fall back to the configured default, still within range
	assert.GreaterOrEqual(t, got.NumInferenceSteps, 1)
	assert.LessOrEqual(t, got.NumInferenceSteps, 12)
}

func TestGenerateSendsAuthAndPrompt(t *testing.T) {
	var auth string
	var got falRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeImage(w, "https://fal/img.png")
	})

	_, err := c.Generate(context.Background(), "boats at dawn", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Key test-key", auth)
	assert.Equal(t, "boats at dawn", got.Prompt)
	assert.InDelta(t, 3.5, got.GuidanceScale, 0.001)
}

func TestGenerateProbesResponseShapes(t *testing.T) {
	shapes := []string{
		`{"images":[{"url":"https://fal/a.png"}]}`,
		`{"data":{"image":{"url":"https://fal/a.png"}}}`,
		`{"image":{"url":"https://fal/a.png"}}`,
		`{"output":[{"url":"https://fal/a.png"}]}`,
	}
	for _, shape := range shapes {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(shape))
		})
		url, err := c.Generate(context.Background(), "p", Options{})
		require.NoError(t, err, "shape %s", shape)
		assert.Equal(t, "https://fal/a.png", url)
	}
}

func TestGenerateFailsWithoutRecognizableURL(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"something":"else"}`))
	})
	_, err := c.Generate(context.Background(), "p", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image url")
}

func TestGenerateFailsOnErrorStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.Generate(context.Background(), "p", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGenerateRateLimited(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	_, err := c.Generate(context.Background(), "p", Options{})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestRoundDown8(t *testing.T) {
	cases := []struct{ in, want int }{
		{900, 896},
		{383, 376},
		{1024, 1024},
		{8, 8},
		// below the provider minimum the dimension clamps up to 8
		{5, 8},
		{0, 8},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, roundDown8(c.in), "input %d", c.in)
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	c := NewClient(cfgFor("http://unused"))
	_, err := c.Generate(context.Background(), "", Options{})
	require.Error(t, err)
}

func writeImage(w http.ResponseWriter, url string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"images": []map[string]string{{"url": url}},
	})
}
