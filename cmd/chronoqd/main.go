// Command chronoqd is a small demo daemon wiring every package in this
// module into a runnable scheduler: parse flags, load config, build the
// app, run until a signal.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arjunv/chronoq"
	"github.com/arjunv/chronoq/config"
	"github.com/arjunv/chronoq/jobs/emailjob"
	"github.com/arjunv/chronoq/listener"
	"github.com/arjunv/chronoq/logging"
	"github.com/arjunv/chronoq/metrics"
	"github.com/arjunv/chronoq/notify"
	"github.com/arjunv/chronoq/store/boltstore"
	"github.com/arjunv/chronoq/store/ramstore"
	"github.com/arjunv/chronoq/trigger"
	simplepool "github.com/arjunv/chronoq/workerpool"
)

const version = "0.1.0"

func main() {
	args := parseFlags()

	if args.ShowVersion {
		fmt.Printf("chronoqd %s\n", version)
		return
	}

	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "chronoqd: %v\n", err)
		os.Exit(1)
	}
}

func run(args daemonArgs) error {
	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New("chronoqd", cfg.Log)
	log.Infof("starting chronoqd %s as %s", version, cfg.UniqueInstanceID())

	bus := listener.NewManager(func(msg string, cause error) {
		log.Errorf("%s: %v", msg, cause)
	})

	if cfg.Notify.Enabled {
		client := notify.NewClient(cfg.Notify.WebhookURL, log)
		bus.AddJobListener(client, listener.Any())
		bus.AddSchedulerListener(client)
		defer client.Close()
	}

	store, err := openStore(*cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	pool := simplepool.New(cfg.ThreadPool.Size)

	sched, err := chronoq.NewScheduler(store, bus, chronoq.SchedulerConfig{
		InstanceName: cfg.UniqueInstanceID(),
		WorkerPool:   pool,
		Logger:       log,
		Thread: chronoq.SchedulerThreadConfig{
			BatchTimeWindow:  time.Duration(cfg.Thread.BatchTimeWindowMs) * time.Millisecond,
			MaxBatchSize:     cfg.Thread.MaxBatchSize,
			IdleWaitTime:     time.Duration(cfg.Thread.IdleWaitTimeMs) * time.Millisecond,
			MisfireThreshold: time.Duration(cfg.Thread.MisfireThresholdMs) * time.Millisecond,
		},
		InterruptJobsOnShutdown: cfg.InterruptJobsOnShutdown,
	})
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	var mserver *metrics.Server
	if cfg.Metrics.Enabled {
		m := metrics.NewMetrics()
		mserver = metrics.NewServer(m, cfg.Metrics.Port)
		go func() {
			if err := mserver.Start(); err != nil {
				log.Warnf("metrics server stopped: %v", err)
			}
		}()
		log.Infof("metrics listening on :%d", cfg.Metrics.Port)
	}

	if cfg.Email.CSVPath != "" {
		if err := scheduleEmailJob(sched, *cfg, log); err != nil {
			return fmt.Errorf("schedule email job: %w", err)
		}
	}

	if err := scheduleHeartbeat(sched, log); err != nil {
		return fmt.Errorf("schedule heartbeat job: %w", err)
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Infof("scheduler started")

	waitForShutdown()

	log.Infof("shutting down")
	if err := sched.Shutdown(true); err != nil {
		log.Errorf("scheduler shutdown: %v", err)
	}
	return nil
}

func openStore(cfg config.AppConfig) (chronoq.JobStore, error) {
	misfireThreshold := time.Duration(cfg.Thread.MisfireThresholdMs) * time.Millisecond

	switch cfg.Store.Backend {
	case "bolt":
		factories := map[string]boltstore.JobFactory{
			"emailjob":  func() chronoq.Job { return emailjob.New(cfg.Email, cfg.Store.BoltPath+".offset", nil) },
			"heartbeat": func() chronoq.Job { return heartbeatJob{} },
		}
		return boltstore.Open(cfg.Store.BoltPath, misfireThreshold, factories)
	default:
		return ramstore.New(misfireThreshold), nil
	}
}

func scheduleEmailJob(sched *chronoq.Scheduler, cfg config.AppConfig, log *logging.Logger) error {
	key := chronoq.NewJobKeyWithGroup("campaign", "email")
	offsetPath := cfg.Store.BoltPath + ".offset"
	detail := emailjob.NewJobDetail(key, cfg.Email, offsetPath, log)

	trig, err := trigger.NewCron(
		chronoq.NewTriggerKeyWithGroup("campaign-trigger", "email"),
		key,
		"*/15 * * * *",
	)
	if err != nil {
		return err
	}

	_, err = sched.ScheduleJob(detail, trig)
	return err
}

// scheduleHeartbeat registers a trivial every-minute job so a fresh
// chronoqd checkout has a second, always-on trigger to observe besides
// the optional email campaign.
func scheduleHeartbeat(sched *chronoq.Scheduler, log *logging.Logger) error {
	key := chronoq.NewJobKeyWithGroup("heartbeat", "system")
	detail := chronoq.NewJobDetail(key, "heartbeat", func() chronoq.Job {
		return heartbeatJob{log: log}
	}).WithDescription("logs a liveness line every minute")

	trig := trigger.NewSimple(
		chronoq.NewTriggerKeyWithGroup("heartbeat-trigger", "system"),
		key,
		time.Now(),
		time.Minute,
		-1,
	)

	_, err := sched.ScheduleJob(detail, trig)
	return err
}

type heartbeatJob struct {
	log *logging.Logger
}

func (h heartbeatJob) Execute(ctx *chronoq.JobExecutionContext) error {
	if h.log != nil {
		h.log.Infof("heartbeat fired at %s", ctx.FireTime.Format(time.RFC3339))
	}
	return nil
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
