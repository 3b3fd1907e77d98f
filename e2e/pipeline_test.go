package e2e

import (
	"net/http"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/storylinez/storylinez-go/internal/service"
)

const validSpec = `{"project":{"name":"e2e launch","orientation":"landscape"},"prompt":{"main_prompt":"a product teaser"}}`

func enqueue(t *testing.T, ta *testApp) string {
	t.Helper()
	resp, err := doRequest(ta.app, http.MethodPost, "/api/pipelines", validSpec)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	body := parseJSON(t, resp)
	runID, _ := body["id"].(string)
	if runID == "" {
		t.Fatalf("expected run id in response, got %v", body)
	}
	t.Cleanup(func() { _ = ta.inspector.DeleteTask(service.QueueName, runID) })
	return runID
}

func TestHealth(t *testing.T) {
	ta := setupApp(t, 100)

	resp, err := doRequest(ta.app, http.MethodGet, "/health", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	if body := parseJSON(t, resp); body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}
}

func TestEnqueue_TaskQueued(t *testing.T) {
	ta := setupApp(t, 100)
	runID := enqueue(t, ta)

	info, err := ta.inspector.GetTaskInfo(service.QueueName, runID)
	if err != nil {
		t.Fatalf("task not found in queue: %v", err)
	}
	if info.State != asynq.TaskStatePending {
		t.Errorf("expected pending task, got %v", info.State)
	}

	resp, err := doRequest(ta.app, http.MethodGet, "/api/pipelines/"+runID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", body["status"])
	}
	if body["attempts"] != float64(0) {
		t.Errorf("expected no attempts yet, got %v", body["attempts"])
	}
}

func TestEnqueue_DuplicateTaskID(t *testing.T) {
	ta := setupApp(t, 100)
	first := enqueue(t, ta)
	second := enqueue(t, ta)

	if first == second {
		t.Fatalf("expected distinct run ids, got %s twice", first)
	}
}

func TestCancel_Sticky(t *testing.T) {
	ta := setupApp(t, 100)
	runID := enqueue(t, ta)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/pipelines/"+runID+"/cancel", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	resp, err = doRequest(ta.app, http.MethodGet, "/api/pipelines/"+runID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if body := parseJSON(t, resp); body["status"] != "canceled" {
		t.Errorf("expected status 'canceled', got %v", body["status"])
	}

	resp, err = doRequest(ta.app, http.MethodPost, "/api/pipelines/"+runID+"/cancel", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
	assertErrorCode(t, resp, "CONFLICT")
}

func TestGet_UnknownRun(t *testing.T) {
	ta := setupApp(t, 100)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/pipelines/does-not-exist", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
	assertErrorCode(t, resp, "NOT_FOUND")
}

func TestEnqueue_RateLimited(t *testing.T) {
	ta := setupApp(t, 1)
	enqueue(t, ta)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/pipelines", validSpec)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusTooManyRequests)
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	assertErrorCode(t, resp, "RATE_LIMITED")
}
