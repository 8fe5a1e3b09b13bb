package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_Basic(t *testing.T) {
	m := NewMetrics()

	if m.TriggersFired != 0 {
		t.Error("initial triggers fired should be 0")
	}

	m.RecordJobExecuted(100 * time.Millisecond)
	if m.JobsExecuted != 1 {
		t.Error("expected 1 job executed")
	}

	testErr := errors.New("smtp timeout")
	m.RecordJobFailed(testErr)
	if m.JobsFailed != 1 {
		t.Error("expected 1 job failed")
	}
	if count := m.ErrorCounts["smtp timeout"]; count != 1 {
		t.Errorf("expected error count 1, got %d", count)
	}
}

func TestMetrics_Workers(t *testing.T) {
	m := NewMetrics()

	m.RecordWorkerStart()
	if m.ActiveWorkers != 1 {
		t.Error("expected 1 active worker")
	}
	if m.TotalWorkerRuns != 1 {
		t.Error("expected 1 total worker run")
	}

	m.RecordWorkerRejection()
	if m.WorkerRejections != 1 {
		t.Error("expected 1 worker rejection")
	}

	m.RecordWorkerStop()
	if m.ActiveWorkers != 0 {
		t.Error("expected 0 active workers")
	}
}

func TestMetrics_Batch(t *testing.T) {
	m := NewMetrics()

	m.RecordBatch(10)
	m.RecordBatch(15)

	if m.BatchesAcquired != 2 {
		t.Errorf("expected 2 batches acquired, got %d", m.BatchesAcquired)
	}

	expectedAvg := 12.5
	if m.AvgBatchSize != expectedAvg {
		t.Errorf("expected avg batch size %.1f, got %.1f", expectedAvg, m.AvgBatchSize)
	}
}

func TestMetrics_HTTPEndpoint(t *testing.T) {
	m := NewMetrics()

	m.RecordJobExecuted(200 * time.Millisecond)
	m.RecordJobFailed(errors.New("smtp error"))
	m.RecordBatch(25)

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()

	m.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, "jobs_executed") {
		t.Error("response should contain jobs_executed")
	}
	if !strings.Contains(body, "jobs_failed") {
		t.Error("response should contain jobs_failed")
	}
}

func TestMetrics_JSONOutput(t *testing.T) {
	m := NewMetrics()

	m.RecordJobExecuted(150 * time.Millisecond)

	stats := m.GetStats()

	if !strings.Contains(stats, "{") || !strings.Contains(stats, "}") {
		t.Error("output should be valid JSON")
	}
	if !strings.Contains(stats, "jobs_executed") {
		t.Error("JSON should contain jobs_executed field")
	}
}

func TestMetrics_PrometheusRegistry(t *testing.T) {
	m := NewMetrics()
	m.RecordTriggerFired()

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather prometheus metrics: %v", err)
	}

	var found bool
	for _, fam := range families {
		if fam.GetName() == "chronoq_triggers_fired_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected chronoq_triggers_fired_total to be registered")
	}
}
