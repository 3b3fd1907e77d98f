package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storylinez/storylinez-go/pkg/apierr"
	"github.com/storylinez/storylinez-go/pkg/poller"
)

// recorded is one request seen by the fake platform.
type recorded struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   map[string]any
}

type fakePlatform struct {
	t      *testing.T
	srv    *httptest.Server
	mu     sync.Mutex
	calls  []recorded
	routes map[string]http.HandlerFunc
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	f := &fakePlatform{t: t, routes: map[string]http.HandlerFunc{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakePlatform) serve(w http.ResponseWriter, r *http.Request) {
	rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, rec)
	h, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no route"}`))
		return
	}
	h(w, r)
}

func (f *fakePlatform) handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = h
}

func (f *fakePlatform) json(method, path string, status int, body any) {
	f.handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, body)
	})
}

func (f *fakePlatform) requests() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.calls...)
}

func (f *fakePlatform) client(org string) *Client {
	return New(Config{APIKey: "key", APISecret: "secret", OrgID: org, BaseURL: f.srv.URL, Timeout: 5 * time.Second})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func fastPoll() poller.Options {
	return poller.Options{Interval: 5 * time.Millisecond, MaxInterval: 5 * time.Millisecond, Timeout: 2 * time.Second, MaxConsecutiveFailures: 2}
}

func TestDo_SendsAuthHeaders(t *testing.T) {
	f := newFakePlatform(t)
	f.json(http.MethodGet, "/user/me", http.StatusOK, map[string]any{"id": "u1"})

	u, err := f.client("org-1").GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	calls := f.requests()
	require.Len(t, calls, 1)
	h := calls[0].Header
	assert.Equal(t, "key", h.Get("X-API-Key"))
	assert.Equal(t, "secret", h.Get("X-API-Secret"))
	assert.Equal(t, "org-1", h.Get("X-Organization-ID"))
	assert.NotEmpty(t, h.Get("X-Request-ID"))
}

func TestDo_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   apierr.Kind
	}{
		{http.StatusUnauthorized, apierr.KindAuth},
		{http.StatusForbidden, apierr.KindAuth},
		{http.StatusBadRequest, apierr.KindValidation},
		{http.StatusNotFound, apierr.KindNotFound},
		{http.StatusTooManyRequests, apierr.KindRateLimit},
		{http.StatusInternalServerError, apierr.KindServer},
		{http.StatusBadGateway, apierr.KindServer},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			f := newFakePlatform(t)
			f.json(http.MethodGet, "/projects/get_one", tc.status, map[string]any{"error": "nope"})

			_, err := f.client("org").GetProject(context.Background(), "p1")
			require.Error(t, err)
			assert.Equal(t, tc.kind, apierr.KindOf(err))
			assert.Equal(t, "nope", apierr.MessageOf(err))
		})
	}
}

func TestDo_RetryAfterIsParsed(t *testing.T) {
	f := newFakePlatform(t)
	f.handle(http.MethodGet, "/user/me", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "3")
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": "slow down"})
	})

	_, err := f.client("").GetCurrentUser(context.Background())
	require.Error(t, err)
	assert.True(t, apierr.IsRetryable(err))
	assert.Equal(t, 3*time.Second, apierr.RetryAfterOf(err))
}

func TestDo_NetworkFailure(t *testing.T) {
	c := New(Config{APIKey: "k", APISecret: "s", BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.GetCurrentUser(context.Background())
	require.Error(t, err)
	assert.Equal(t, apierr.KindNetwork, apierr.KindOf(err))
}

func TestDo_CanceledContext(t *testing.T) {
	f := newFakePlatform(t)
	f.json(http.MethodGet, "/user/me", http.StatusOK, map[string]any{"id": "u1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.client("").GetCurrentUser(ctx)
	require.Error(t, err)
	assert.Equal(t, apierr.KindCanceled, apierr.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateStoryboard_TemperatureValidation(t *testing.T) {
	f := newFakePlatform(t)
	f.json(http.MethodPost, "/storyboard/create", http.StatusOK, map[string]any{
		"job_id":     "job-1",
		"storyboard": map[string]any{"storyboard_id": "sb-1", "status": "QUEUED"},
	})
	c := f.client("org")

	_, err := c.CreateStoryboard(context.Background(), &CreateStoryboardRequest{ProjectID: "p1", Temperature: Float(2.0)})
	require.Error(t, err)
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
	assert.Contains(t, err.Error(), "temperature")
	assert.Empty(t, f.requests())

	ack, err := c.CreateStoryboard(context.Background(), &CreateStoryboardRequest{ProjectID: "p1", Temperature: Float(0.7)})
	require.NoError(t, err)
	assert.Equal(t, "sb-1", ack.Storyboard.StoryboardID)
	require.Len(t, f.requests(), 1)
	assert.InDelta(t, 0.7, f.requests()[0].Body["temperature"], 1e-9)
}

func TestValidation_NoNetworkCalls(t *testing.T) {
	f := newFakePlatform(t)
	c := f.client("")
	ctx := context.Background()

	checks := map[string]error{
		"project without org": func() error {
			_, err := c.CreateProject(ctx, &CreateProjectRequest{Name: "x", Orientation: OrientationLandscape})
			return err
		}(),
		"bad orientation": func() error {
			_, err := c.CreateProject(ctx, &CreateProjectRequest{Name: "x", OrgID: "o", Orientation: "square"})
			return err
		}(),
		"storyboard ref": func() error {
			_, err := c.GetStoryboard(ctx, Ref{}, false)
			return err
		}(),
		"prompt length": func() error {
			_, err := c.CreateTextPrompt(ctx, &CreateTextPromptRequest{ProjectID: "p", MainPrompt: "m", TotalLength: Int(5)})
			return err
		}(),
		"grade type": func() error {
			_, err := c.CreateSequence(ctx, &CreateSequenceRequest{ProjectID: "p", GradeType: "triple"})
			return err
		}(),
		"render volume": func() error {
			_, err := c.CreateRender(ctx, &CreateRenderRequest{ProjectID: "p", RenderSettings: RenderSettings{VoiceoverVolume: Float(1.5)}})
			return err
		}(),
		"stock collection": func() error {
			_, err := c.SearchStock(ctx, &StockSearchRequest{Queries: []string{"sea"}, Collections: []MediaType{"fonts"}})
			return err
		}(),
		"stock batch": func() error {
			ids := make([]string, MaxStockBatch+1)
			types := make([]MediaType, MaxStockBatch+1)
			_, err := c.GetStockByIDs(ctx, ids, types)
			return err
		}(),
		"stock media type": func() error {
			_, err := c.AddStockFile(ctx, "p", "s", "gifs")
			return err
		}(),
		"settings empty": func() error {
			_, err := c.UpdateSettings(ctx, &Settings{})
			return err
		}(),
	}
	for name, err := range checks {
		assert.Truef(t, apierr.Is(err, apierr.KindValidation), "%s: got %v", name, err)
	}
	assert.Empty(t, f.requests())
}

func TestSetDefaultOrg_AffectsOnlyLaterCalls(t *testing.T) {
	f := newFakePlatform(t)
	release := make(chan struct{})
	var inFlight atomic.Int32
	f.handle(http.MethodGet, "/projects/get_all", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("org_id") == "org-a" {
			inFlight.Add(1)
			<-release
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": []any{}})
	})
	c := f.client("org-a")

	done := make(chan error, 1)
	go func() {
		_, err := c.ListProjects(context.Background(), ListProjectsOptions{})
		done <- err
	}()
	require.Eventually(t, func() bool { return inFlight.Load() == 1 }, time.Second, 5*time.Millisecond)

	c.SetDefaultOrg("org-b")
	_, err := c.ListProjects(context.Background(), ListProjectsOptions{})
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	calls := f.requests()
	require.Len(t, calls, 2)
	assert.Equal(t, "org-a", calls[0].Query["org_id"][0])
	assert.Equal(t, "org-a", calls[0].Header.Get("X-Organization-ID"))
	assert.Equal(t, "org-b", calls[1].Query["org_id"][0])
	assert.Equal(t, "org-b", c.DefaultOrg())
}

func TestIDsRoundTrip(t *testing.T) {
	const weird = "proj_01H/ä+=?&x"
	f := newFakePlatform(t)
	f.json(http.MethodPost, "/projects/create", http.StatusOK, map[string]any{"project": map[string]any{"project_id": weird, "name": "demo"}})
	f.handle(http.MethodGet, "/projects/get_one", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"project": map[string]any{"project_id": r.URL.Query().Get("project_id")}})
	})
	c := f.client("org")

	created, err := c.CreateProject(context.Background(), &CreateProjectRequest{Name: "demo", Orientation: OrientationPortrait})
	require.NoError(t, err)
	got, err := c.GetProject(context.Background(), created.Project.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, weird, got.Project.ProjectID)
}

func TestWaitForRender_FetchesLinksOnCompletion(t *testing.T) {
	f := newFakePlatform(t)
	var gets atomic.Int32
	f.handle(http.MethodGet, "/render/get", func(w http.ResponseWriter, r *http.Request) {
		n := gets.Add(1)
		body := map[string]any{"render_id": "r1", "status": "RENDERING"}
		if n >= 2 {
			body["status"] = "COMPLETED"
		}
		if r.URL.Query().Get("generate_download_link") == "true" {
			body["download_url"] = "https://cdn/r1.mp4"
			body["streamable_url"] = "https://cdn/r1.m3u8"
		}
		writeJSON(w, http.StatusOK, body)
	})

	r, err := f.client("org").WaitForRender(context.Background(), Ref{ID: "r1"}, fastPoll())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/r1.mp4", r.DownloadURL)
	assert.Equal(t, "https://cdn/r1.m3u8", r.StreamableURL)
	assert.EqualValues(t, 3, gets.Load())
}

func TestWaitForRender_LinkFetchFailureKeepsRender(t *testing.T) {
	f := newFakePlatform(t)
	f.handle(http.MethodGet, "/render/get", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("generate_download_link") == "true" {
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": "bad gateway"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"render_id": "r1", "status": "COMPLETED"})
	})

	r, err := f.client("org").WaitForRender(context.Background(), Ref{ID: "r1"}, fastPoll())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLinksUnavailable)
	assert.Equal(t, apierr.KindServer, apierr.KindOf(err))
	require.NotNil(t, r)
	assert.Equal(t, "r1", r.RenderID)
	assert.Equal(t, "COMPLETED", r.Status)
	assert.Empty(t, r.DownloadURL)
}

func TestWaitForSequence_RemoteFailure(t *testing.T) {
	f := newFakePlatform(t)
	f.json(http.MethodGet, "/sequence/get", http.StatusOK, map[string]any{
		"sequence_id": "s1",
		"status":      "PROCESSING",
		"job_result":  map[string]any{"status": "ERROR", "error_message": "no media attached"},
	})

	_, err := f.client("org").WaitForSequence(context.Background(), Ref{ProjectID: "p1"}, fastPoll())
	require.Error(t, err)
	assert.Equal(t, apierr.KindRemoteJob, apierr.KindOf(err))
	assert.Contains(t, err.Error(), "no media attached")
}

func TestCreateStoryboardAndWait(t *testing.T) {
	f := newFakePlatform(t)
	f.json(http.MethodPost, "/storyboard/create", http.StatusOK, map[string]any{
		"job_id":     "job-1",
		"storyboard": map[string]any{"storyboard_id": "sb-9"},
	})
	var polls atomic.Int32
	f.handle(http.MethodGet, "/storyboard/get", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sb-9", r.URL.Query().Get("storyboard_id"))
		status := "QUEUED"
		if polls.Add(1) == 3 {
			status = "completed"
		}
		writeJSON(w, http.StatusOK, map[string]any{"storyboard_id": "sb-9", "status": status})
	})

	ack, sb, err := f.client("org").CreateStoryboardAndWait(context.Background(), &CreateStoryboardRequest{ProjectID: "p1"}, fastPoll())
	require.NoError(t, err)
	assert.Equal(t, "job-1", ack.JobID)
	assert.Equal(t, "completed", sb.Status)
	assert.EqualValues(t, 3, polls.Load())
}

func TestSearchStock_EncodesParameters(t *testing.T) {
	f := newFakePlatform(t)
	f.json(http.MethodPost, "/stock/search", http.StatusOK, map[string]any{
		"videos": []any{map[string]any{"stock_id": "v1", "vector_similarity": 0.8}},
	})

	res, err := f.client("org").SearchStock(context.Background(), &StockSearchRequest{
		Queries:             []string{"ocean waves"},
		Collections:         []MediaType{MediaVideos},
		NumResultsVideos:    5,
		SimilarityThreshold: Float(0.25),
		Orientation:         OrientationLandscape,
	})
	require.NoError(t, err)
	require.Len(t, res.ForMediaType(MediaVideos), 1)
	assert.InDelta(t, 0.8, res.Videos[0].Relevance(), 1e-9)

	call := f.requests()[0]
	assert.Equal(t, []string{"videos"}, call.Query["collections"])
	assert.Equal(t, "5", call.Query["num_results_videos"][0])
	assert.Equal(t, "0.25", call.Query["similarity_threshold"][0])
	assert.Equal(t, []any{"ocean waves"}, call.Body["queries"])
}

func TestStockItem_Relevance(t *testing.T) {
	assert.Zero(t, StockItem{}.Relevance())
	assert.Equal(t, 0.4, StockItem{Score: Float(0.4)}.Relevance())
	assert.Equal(t, 0.9, StockItem{VectorSimilarity: Float(0.9), Score: Float(0.4)}.Relevance())
}

func TestStatusSets(t *testing.T) {
	assert.Equal(t, poller.PhaseProcessing, RenderStatuses.Phase("rendering"))
	assert.Equal(t, poller.PhaseUnknown, StoryboardStatuses.Phase("RENDERING"))
	assert.Equal(t, poller.PhaseFailed, RenderStatuses.Phase("CANCELLED"))
	assert.Equal(t, poller.PhaseUnknown, StoryboardStatuses.Phase("CANCELLED"))
	assert.Equal(t, poller.PhaseQueued, QueryGenStatuses.Phase(" pending "))
	assert.Equal(t, poller.PhaseUnknown, QueryGenStatuses.Phase("IN_PROGRESS"))
	assert.Equal(t, poller.PhaseUnknown, SequenceStatuses.Phase(""))
}

func TestRateLimitThrottles(t *testing.T) {
	f := newFakePlatform(t)
	f.json(http.MethodGet, "/user/me", http.StatusOK, map[string]any{"id": "u"})
	c := New(Config{APIKey: "k", APISecret: "s", BaseURL: f.srv.URL, RateLimit: 20})

	start := time.Now()
	for i := 0; i < 25; i++ {
		_, err := c.GetCurrentUser(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}
