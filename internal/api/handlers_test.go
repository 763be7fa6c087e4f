package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"svmmapper/internal/metrics"
	"svmmapper/internal/task"
)

type fixedStats struct {
	summary task.Summary
}

func (f fixedStats) Stats() task.Summary { return f.summary }

func setupRouter(m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	testRouter := NewRouter()
	stats := fixedStats{summary: task.Summary{
		Received:  4,
		Completed: 2,
		Skipped:   1,
		Failed:    1,
		Current:   "images/a/x.jpg",
		StartedAt: time.Now().Add(-time.Minute),
	}}
	NewAPI("run-1", stats, m.Handler()).RegisterRoutes(testRouter)
	return testRouter
}

func TestHealth(t *testing.T) {
	testRouter := setupRouter(metrics.New())

	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestStatus(t *testing.T) {
	testRouter := setupRouter(metrics.New())

	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.RunID != "run-1" || resp.Received != 4 || resp.Completed != 2 || resp.Skipped != 1 || resp.Failed != 1 {
		t.Fatalf("unexpected status %+v", resp)
	}
	if resp.Current != "images/a/x.jpg" {
		t.Fatalf("expected in-flight task, got %q", resp.Current)
	}
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	m.TaskFinished("completed")
	testRouter := setupRouter(m)

	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), `svmmapper_tasks_total{outcome="completed"} 1`) {
		t.Fatalf("metrics not exposed:\n%s", w.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	testRouter := setupRouter(metrics.New())

	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/status", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}
