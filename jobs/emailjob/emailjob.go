// Package emailjob is chronoq's reference chronoq.Job: a recurring mail
// merge that reads recipients from a CSV file, filters them with an
// expr-lang expression, renders a shared template per recipient via the
// teacher's cached utils/preview loader, and delivers over SMTP at a
// configured rate. Grounded on the teacher's email/smtp.go
// (ConnectSMTPWithContext), email/sender.go (SendWithClient),
// parser/csv.go, parser/expr.go, internal/ratelimit, offset/tracker.go,
// and utils/preview/template.go, wired together as one chronoq.Job
// instead of the teacher's one-shot cli/runner.go campaign flow.
package emailjob

import (
	"fmt"
	"sync/atomic"

	"github.com/arjunv/chronoq"
	"github.com/arjunv/chronoq/config"
	"github.com/arjunv/chronoq/email"
	"github.com/arjunv/chronoq/internal/ratelimit"
	"github.com/arjunv/chronoq/logging"
	"github.com/arjunv/chronoq/offset"
	"github.com/arjunv/chronoq/parser"
	"github.com/arjunv/chronoq/utils/preview"
	"github.com/pkg/errors"
)

// Result summarizes one fire, stored on JobExecutionContext.Result for
// listeners (e.g. notify.Client) to report.
type Result struct {
	Attempted int
	Delivered int
	Failed    int
	Skipped   int
}

// Job implements chronoq.Job and chronoq.InterruptableJob. Each fire
// resumes from the offset.Tracker's last position so a misfire or manual
// re-trigger does not resend mail already delivered by a prior fire.
type Job struct {
	cfg     config.EmailJobConfig
	log     *logging.Logger
	tracker *offset.Tracker
	limiter *ratelimit.RateLimiter

	interrupted atomic.Bool
}

// New builds a Job from config, opening (but not yet loading) its offset
// tracker at offsetPath.
func New(cfg config.EmailJobConfig, offsetPath string, log *logging.Logger) *Job {
	return &Job{
		cfg:     cfg,
		log:     log,
		tracker: offset.NewTracker(offsetPath),
		limiter: ratelimit.NewRateLimiter(cfg.RateLimit, cfg.BurstLimit),
	}
}

// Execute satisfies chronoq.Job.
func (j *Job) Execute(ctx *chronoq.JobExecutionContext) error {
	j.interrupted.Store(false)

	recipients, err := parser.ParseCSV(j.cfg.CSVPath)
	if err != nil {
		return errors.Wrapf(err, "parse recipients csv %s", j.cfg.CSVPath)
	}

	if j.cfg.FilterExpr != "" {
		expr, err := parser.ParseExpression(j.cfg.FilterExpr)
		if err != nil {
			return errors.Wrapf(err, "parse filter expression %q", j.cfg.FilterExpr)
		}
		recipients = filterRecipients(recipients, expr)
	}

	if err := j.tracker.Load(); err != nil {
		return errors.Wrap(err, "load offset tracker")
	}
	if j.tracker.GetJobID() != ctx.JobDetail.Key.String() {
		j.tracker.Reset()
		j.tracker.SetJobID(ctx.JobDetail.Key.String())
	}

	if _, err := preview.LoadTemplate(j.cfg.TemplatePath); err != nil {
		return errors.Wrapf(err, "parse template %s", j.cfg.TemplatePath)
	}

	client, err := email.ConnectSMTPWithContext(ctx.Context(), j.cfg.SMTP)
	if err != nil {
		return errors.Wrap(err, "connect smtp")
	}
	defer client.Close()

	result := &Result{}

	for i := j.tracker.GetOffset(); i < len(recipients); i++ {
		if j.interrupted.Load() || ctx.Context().Err() != nil {
			break
		}
		if err := j.limiter.Wait(ctx.Context()); err != nil {
			break
		}

		r := recipients[i]
		result.Attempted++

		body, err := preview.RenderTemplate(r, j.cfg.TemplatePath)
		if err != nil {
			result.Failed++
			if j.log != nil {
				j.log.Warnf("render template for %s: %v", r.Email, err)
			}
			j.tracker.UpdateOffset(i + 1)
			continue
		}

		task := email.Task{
			Recipient: r,
			Subject:   j.cfg.Subject,
			Body:      body,
		}
		if err := email.SendWithClient(client, j.cfg.SMTP, task); err != nil {
			result.Failed++
			if j.log != nil {
				j.log.Warnf("deliver to %s: %v", r.Email, err)
			}
		} else {
			result.Delivered++
		}
		j.tracker.UpdateOffset(i + 1)
	}
	result.Skipped = len(recipients) - result.Attempted

	if err := j.tracker.Save(); err != nil {
		if j.log != nil {
			j.log.Errorf("save offset tracker: %v", err)
		}
	}

	ctx.Result = result
	return nil
}

// Interrupt satisfies chronoq.InterruptableJob, stopping delivery before
// the next recipient without losing the offset already saved.
func (j *Job) Interrupt() error {
	j.interrupted.Store(true)
	return nil
}

func filterRecipients(recipients []parser.Recipient, expr parser.Expression) []parser.Recipient {
	out := make([]parser.Recipient, 0, len(recipients))
	for _, r := range recipients {
		data := make(map[string]string, len(r.Data)+1)
		data["email"] = r.Email
		for k, v := range r.Data {
			data[k] = v
		}
		if expr.Evaluate(data) {
			out = append(out, r)
		}
	}
	return out
}

// NewJobDetail builds the JobDetail recipe chronoq.Scheduler.ScheduleJob
// expects, wiring cfg/offsetPath/log into a fresh Job per instantiation so
// concurrent fires of different jobs sharing this factory don't race on
// tracker state.
func NewJobDetail(key chronoq.JobKey, cfg config.EmailJobConfig, offsetPath string, log *logging.Logger) *chronoq.JobDetail {
	return chronoq.NewJobDetail(key, "emailjob", func() chronoq.Job {
		return New(cfg, offsetPath, log)
	}).WithDescription(fmt.Sprintf("mail merge from %s", cfg.CSVPath)).
		WithConcurrentExecutionDisallowed(true)
}
