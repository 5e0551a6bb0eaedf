package orchestrator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/illustrator/internal/imagegen"
	"github.com/local/illustrator/internal/planner"
	"github.com/local/illustrator/internal/rehost"
	"github.com/local/illustrator/internal/store"
)

func newTestServer(cs ContentStore, rh Rehoster) *httptest.Server {
	o := New(Dependencies{
		Store:   cs,
		Planner: &fakePlanner{plan: planner.IllustrationPlan{CoverPrompt: "cover"}},
		Images: &fakeGen{fn: func(prompt string, opts imagegen.Options) (string, error) {
			return "https://tmp/img.png", nil
		}},
		Rehost: rh,
	})
	mux := http.NewServeMux()
	o.RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url, body string) (*http.Response, apiResponse) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHandleIllustrateSuccess(t *testing.T) {
	srv := newTestServer(&fakeContentStore{title: "t", body: "b"}, &fakeRehoster{})
	defer srv.Close()

	resp, out := postJSON(t, srv.URL+"/api/illustrate", `{"material_id":"m1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
	require.NotNil(t, out.Data)

	data, err := json.Marshal(out.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), "contentWithImages")
}

func TestHandleIllustrateMissingMaterialID(t *testing.T) {
	srv := newTestServer(&fakeContentStore{body: "b"}, &fakeRehoster{})
	defer srv.Close()

	resp, out := postJSON(t, srv.URL+"/api/illustrate", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "material_id")
}

func TestHandleIllustrateInvalidJSON(t *testing.T) {
	srv := newTestServer(&fakeContentStore{body: "b"}, &fakeRehoster{})
	defer srv.Close()

	resp, _ := postJSON(t, srv.URL+"/api/illustrate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleIllustrateNotFound(t *testing.T) {
	srv := newTestServer(&fakeContentStore{resolveErr: store.ErrNotFound}, &fakeRehoster{})
	defer srv.Close()

	resp, out := postJSON(t, srv.URL+"/api/illustrate", `{"material_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, out.Success)
}

func TestHandleIllustrateMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeContentStore{body: "b"}, &fakeRehoster{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/illustrate")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleRehost(t *testing.T) {
	rh := &fakeRehoster{result: rehost.Result{
		Mapping: map[string]string{"https://tmp/a.png": "https://cdn/articles/a.png"},
		Failed:  []string{"https://tmp/b.png"},
	}}
	srv := newTestServer(&fakeContentStore{body: "b"}, rh)
	defer srv.Close()

	resp, out := postJSON(t, srv.URL+"/api/rehost", `{"urls":["https://tmp/a.png","https://tmp/b.png"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)

	raw, err := json.Marshal(out.Data)
	require.NoError(t, err)
	var data rehostData
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, 2, data.Total)
	assert.Equal(t, 1, data.Success)
	assert.Equal(t, []string{"https://tmp/b.png"}, data.Failed)
	assert.Equal(t, "https://cdn/articles/a.png", data.Map["https://tmp/a.png"])
}

func TestHandleRehostMissingURLs(t *testing.T) {
	srv := newTestServer(&fakeContentStore{body: "b"}, &fakeRehoster{})
	defer srv.Close()

	resp, _ := postJSON(t, srv.URL+"/api/rehost", `{"urls":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeContentStore{body: "b"}, &fakeRehoster{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
