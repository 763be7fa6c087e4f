package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := New()
	m.TaskFinished("completed")
	m.TaskFinished("completed")
	m.TaskFinished("skipped")
	m.ImageResized()
	m.ObserveStep("fetch", time.Now().Add(-time.Second))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	for _, want := range []string{
		`svmmapper_tasks_total{outcome="completed"} 2`,
		`svmmapper_tasks_total{outcome="skipped"} 1`,
		`svmmapper_images_resized_total 1`,
		`svmmapper_step_duration_seconds_count{step="fetch"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition:\n%s", want, body)
		}
	}
}

func TestRegistryGathersInstruments(t *testing.T) {
	m := New()
	m.TaskFinished("failed")

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	if !names["svmmapper_tasks_total"] {
		t.Fatalf("tasks counter not registered: %v", names)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.TaskFinished("completed")
	m.ImageResized()
	m.ObserveStep("compute", time.Now())
}
