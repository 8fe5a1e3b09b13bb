package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arjunv/chronoq"
)

func TestClientJobWasExecutedPostsPayload(t *testing.T) {
	var received atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p FirePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		received.Store(p)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	defer c.Close()

	ctx := &chronoq.JobExecutionContext{
		JobDetail:      chronoq.NewJobDetail(chronoq.NewJobKeyWithGroup("job1", "g1"), "test", nil),
		Trigger:        mustSimpleTrigger(),
		FireInstanceID: "fi-1",
		FireTime:       time.Now(),
	}
	c.JobWasExecuted(ctx, nil)
	c.Close()

	got, ok := received.Load().(FirePayload)
	if !ok {
		t.Fatal("expected webhook to receive a payload")
	}
	if got.JobName != "job1" || got.Event != "job.executed" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestClientEmptyURLIsNoop(t *testing.T) {
	c := NewClient("", nil)
	c.SchedulerShutdown()
	c.Close()
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL(""); err != nil {
		t.Errorf("empty url should be valid, got %v", err)
	}
	if err := ValidateURL("ftp://example.com"); err == nil {
		t.Error("expected error for non-http(s) scheme")
	}
	if err := ValidateURL("https://example.com/hook"); err != nil {
		t.Errorf("valid https url rejected: %v", err)
	}
}

type stubTrigger struct{ chronoq.Trigger }

func mustSimpleTrigger() chronoq.Trigger {
	return stubTrigger{}
}

func (stubTrigger) Key() chronoq.TriggerKey { return chronoq.NewTriggerKeyWithGroup("t1", "g1") }
