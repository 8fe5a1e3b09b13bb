// Package notify adapts the teacher's webhook.Client (async POST with a
// WaitGroup-tracked goroutine and a closed flag) into a
// listener.JobListener/listener.SchedulerListener pair that reports job
// fire outcomes and scheduler lifecycle events, generalized from a single
// CampaignResult payload to the FirePayload/ErrorPayload shapes named in
// SPEC_FULL.md's notify component.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/arjunv/chronoq"
	"github.com/arjunv/chronoq/logging"
)

// FirePayload is the JSON body posted after a job fire completes.
type FirePayload struct {
	Event          string    `json:"event"`
	JobName        string    `json:"job_name"`
	JobGroup       string    `json:"job_group"`
	TriggerName    string    `json:"trigger_name"`
	TriggerGroup   string    `json:"trigger_group"`
	FireInstanceID string    `json:"fire_instance_id"`
	FireTime       time.Time `json:"fire_time"`
	RunTime        string    `json:"run_time"`
	Vetoed         bool      `json:"vetoed,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// ErrorPayload is the JSON body posted for a scheduler-wide error.
type ErrorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Client POSTs FirePayload/ErrorPayload bodies to a configured webhook URL,
// tracking in-flight requests so Close can drain them before the process
// exits. Grounded on webhook.Client's wg/mu/closed shape.
type Client struct {
	url        string
	httpClient *http.Client
	log        *logging.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewClient builds a webhook-backed notifier. url == "" disables delivery;
// every listener callback then posts nothing.
func NewClient(url string, log *logging.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Name satisfies listener.JobListener.
func (c *Client) Name() string { return "chronoq.notify.webhook" }

func (c *Client) JobToBeExecuted(*chronoq.JobExecutionContext)  {}
func (c *Client) JobExecutionVetoed(ctx *chronoq.JobExecutionContext) {
	c.post(c.fireContextPayload(ctx, "job.vetoed", nil, true))
}

// JobWasExecuted satisfies listener.JobListener, posting the fire outcome.
func (c *Client) JobWasExecuted(ctx *chronoq.JobExecutionContext, err error) {
	c.post(c.fireContextPayload(ctx, "job.executed", err, false))
}

func (c *Client) fireContextPayload(ctx *chronoq.JobExecutionContext, event string, err error, vetoed bool) FirePayload {
	p := FirePayload{
		Event:          event,
		JobName:        ctx.JobDetail.Key.Name,
		JobGroup:       ctx.JobDetail.Key.Group,
		TriggerName:    ctx.Trigger.Key().Name,
		TriggerGroup:   ctx.Trigger.Key().Group,
		FireInstanceID: ctx.FireInstanceID,
		FireTime:       ctx.FireTime,
		RunTime:        ctx.JobRunTime.String(),
		Vetoed:         vetoed,
	}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

// JobScheduled, JobUnscheduled, JobDeleted, TriggerFinalized satisfy
// listener.SchedulerListener with no webhook delivery; only errors and
// shutdown are reported to keep payload volume low.
func (c *Client) JobScheduled(chronoq.Trigger)          {}
func (c *Client) JobUnscheduled(chronoq.TriggerKey)     {}
func (c *Client) JobDeleted(chronoq.JobKey)             {}
func (c *Client) TriggerFinalized(chronoq.Trigger)      {}

// SchedulerError posts an ErrorPayload.
func (c *Client) SchedulerError(msg string, cause error) {
	p := ErrorPayload{Event: "scheduler.error", Message: msg}
	if cause != nil {
		p.Cause = cause.Error()
	}
	c.post(p)
}

// SchedulerShutdown posts a shutdown notice.
func (c *Client) SchedulerShutdown() {
	c.post(ErrorPayload{Event: "scheduler.shutdown"})
}

// post marshals payload and sends it asynchronously, matching
// webhook.Client.SendNotification's non-blocking contract.
func (c *Client) post(payload any) {
	if c.url == "" {
		return
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		if c.log != nil {
			c.log.Errorf("marshal webhook payload: %v", err)
		}
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			if c.log != nil {
				c.log.Errorf("build webhook request: %v", err)
			}
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "chronoq-notify/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if c.log != nil {
				c.log.Warnf("webhook delivery failed: %v", err)
			}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if c.log != nil {
				c.log.Warnf("webhook %s returned status %d", c.url, resp.StatusCode)
			}
		}
	}()
}

// ValidateURL rejects anything but an empty, http, or https URL.
func ValidateURL(url string) error {
	if url == "" {
		return nil
	}
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("webhook url must use http or https scheme")
	}
	return nil
}

// Close drains in-flight requests, matching webhook.Client.Close.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.wg.Wait()
}
