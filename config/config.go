// Package config loads chronoqd's JSON configuration file, grounded on the
// teacher's LoadConfig/setDefaults/validate trio, carrying the enumerated
// options of spec.md §6 (schedulerName, threadPool.size, batchTimeWindow,
// idleWaitTime, misfireThreshold, ...) instead of mailgrid's SMTP-only
// shape.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SMTPConfig configures the reference emailjob's outbound mail transport.
// Field set carried over unchanged from the teacher's config.SMTPConfig.
type SMTPConfig struct {
	Host               string        `json:"host"`
	Port               int           `json:"port"`
	Username           string        `json:"username"`
	Password           string        `json:"password"`
	From               string        `json:"from"`
	UseTLS             bool          `json:"use_tls"`
	InsecureSkipVerify bool          `json:"insecure_skip_verify"`
	ConnectionTimeout  time.Duration `json:"connection_timeout"`
	ReadTimeout        time.Duration `json:"read_timeout"`
	WriteTimeout       time.Duration `json:"write_timeout"`
}

// StoreConfig selects and configures a chronoq.JobStore backend.
type StoreConfig struct {
	// Backend is "ram" or "bolt".
	Backend  string `json:"backend"`
	BoltPath string `json:"bolt_path"`
}

// ThreadPoolConfig configures the worker pool: spec.md §6's
// threadPool.size. threadPool.threadPriority and threadPool.daemon have no
// Go analogue (goroutines have neither OS scheduling priority nor a
// daemon/non-daemon distinction) and are dropped.
type ThreadPoolConfig struct {
	Size int `json:"size"`
}

// ThreadTimingConfig configures the scheduler thread's acquisition
// batching and wait timing: spec.md §6's batchTimeWindow, maxBatchSize,
// idleWaitTime, misfireThreshold.
type ThreadTimingConfig struct {
	BatchTimeWindowMs  int `json:"batch_time_window_ms"`
	MaxBatchSize       int `json:"max_batch_size"`
	IdleWaitTimeMs     int `json:"idle_wait_time_ms"`
	MisfireThresholdMs int `json:"misfire_threshold_ms"`
}

// LogConfig configures the logging package. Field set carried over from
// the teacher's config.LogConfig.
type LogConfig struct {
	Level      string `json:"level"`          // debug, info, warn, error
	Format     string `json:"format"`         // json, text
	File       string `json:"file,omitempty"` // log file path
	MaxSize    int    `json:"max_size"`       // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
}

// MetricsConfig configures the metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// NotifyConfig configures the webhook scheduler listener.
type NotifyConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// EmailJobConfig configures the reference emailjob.Job: its recipient
// source, template, and delivery rate.
type EmailJobConfig struct {
	SMTP         SMTPConfig `json:"smtp"`
	CSVPath      string     `json:"csv_path"`
	TemplatePath string     `json:"template_path"`
	Subject      string     `json:"subject"`
	FilterExpr   string     `json:"filter_expr,omitempty"`
	RateLimit    int        `json:"rate_limit"`  // messages per second
	BurstLimit   int        `json:"burst_limit"` // burst size
}

// AppConfig is chronoqd's top-level configuration document.
type AppConfig struct {
	SchedulerName           string `json:"scheduler_name"`
	SchedulerInstanceID     string `json:"scheduler_instance_id"`
	InterruptJobsOnShutdown bool   `json:"interrupt_jobs_on_shutdown"`

	Store      StoreConfig        `json:"store"`
	ThreadPool ThreadPoolConfig   `json:"thread_pool"`
	Thread     ThreadTimingConfig `json:"thread"`
	Log        LogConfig          `json:"log"`
	Metrics    MetricsConfig      `json:"metrics"`
	Notify     NotifyConfig       `json:"notify"`
	Email      EmailJobConfig     `json:"email"`
}

// UniqueInstanceID matches spec.md §6's uniqueId = name + "_$_" + instanceId.
func (c *AppConfig) UniqueInstanceID() string {
	return c.SchedulerName + "_$_" + c.SchedulerInstanceID
}

// LoadConfig reads JSON config from disk and returns a parsed AppConfig.
// It never terminates the process; callers should handle returned errors.
func LoadConfig(path string) (*AppConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close config file: %v\n", closeErr)
		}
	}()

	var cfg AppConfig
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config JSON: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// setDefaults applies sensible defaults to missing config values.
func (c *AppConfig) setDefaults() {
	if c.SchedulerName == "" {
		c.SchedulerName = "chronoq"
	}
	if c.SchedulerInstanceID == "" {
		c.SchedulerInstanceID = "NON_CLUSTERED"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "ram"
	}
	if c.Store.BoltPath == "" {
		c.Store.BoltPath = "chronoq.db"
	}

	if c.ThreadPool.Size == 0 {
		c.ThreadPool.Size = 10
	}

	if c.Thread.MaxBatchSize == 0 {
		c.Thread.MaxBatchSize = 1
	}
	if c.Thread.IdleWaitTimeMs == 0 {
		c.Thread.IdleWaitTimeMs = 30_000
	}
	if c.Thread.MisfireThresholdMs == 0 {
		c.Thread.MisfireThresholdMs = 60_000
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.MaxSize == 0 {
		c.Log.MaxSize = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAge == 0 {
		c.Log.MaxAge = 28
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = 8090
	}

	if c.Email.SMTP.ConnectionTimeout == 0 {
		c.Email.SMTP.ConnectionTimeout = 10 * time.Second
	}
	if c.Email.SMTP.ReadTimeout == 0 {
		c.Email.SMTP.ReadTimeout = 30 * time.Second
	}
	if c.Email.SMTP.WriteTimeout == 0 {
		c.Email.SMTP.WriteTimeout = 30 * time.Second
	}
	if c.Email.SMTP.Port == 0 {
		if c.Email.SMTP.UseTLS {
			c.Email.SMTP.Port = 587
		} else {
			c.Email.SMTP.Port = 25
		}
	}
	if c.Email.RateLimit == 0 {
		c.Email.RateLimit = 10
	}
	if c.Email.BurstLimit == 0 {
		c.Email.BurstLimit = c.Email.RateLimit * 2
	}
}

// validate checks required config fields and limits.
func (c *AppConfig) validate() error {
	if c.Store.Backend != "ram" && c.Store.Backend != "bolt" {
		return fmt.Errorf("store.backend must be \"ram\" or \"bolt\", got %q", c.Store.Backend)
	}
	if c.ThreadPool.Size <= 0 {
		return fmt.Errorf("thread_pool.size must be at least 1")
	}
	if c.Thread.MaxBatchSize <= 0 {
		return fmt.Errorf("thread.max_batch_size must be at least 1")
	}
	if c.Thread.BatchTimeWindowMs < 0 {
		return fmt.Errorf("thread.batch_time_window_ms cannot be negative")
	}
	if c.Thread.IdleWaitTimeMs <= 0 {
		return fmt.Errorf("thread.idle_wait_time_ms must be positive")
	}
	if c.Thread.MisfireThresholdMs <= 0 {
		return fmt.Errorf("thread.misfire_threshold_ms must be positive")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}
	if c.Notify.Enabled && c.Notify.WebhookURL == "" {
		return fmt.Errorf("notify.webhook_url is required when notify.enabled is true")
	}
	if c.Email.RateLimit < 0 {
		return fmt.Errorf("email.rate_limit cannot be negative")
	}
	if c.Email.BurstLimit < 0 {
		return fmt.Errorf("email.burst_limit cannot be negative")
	}
	return nil
}
