package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePath points at a pipeline document or a directory of them.
	PipelinePath string
	// Format selects the document format: "hcl", "yaml" or "auto" (by
	// extension of PipelinePath).
	Format string

	// Trigger is the event this run reacts to (e.g. "push",
	// "pull_request"). Job templates filter on it.
	Trigger string

	// Workdir is the workspace root: checksum cache-key tokens resolve
	// against it and runner work directories are created beneath it.
	Workdir string

	// CacheDir enables the filesystem cache store; empty means an
	// in-memory store scoped to this run.
	CacheDir string

	// LogDir receives per-instance step logs; empty disables them.
	LogDir string

	StatusPort int
	LogFormat  string
	LogLevel   string

	// DefaultSlots bounds runner concurrency for environment classes the
	// pipeline document does not size explicitly.
	DefaultSlots int
	// AcquireTimeout bounds how long an instance waits for a runner slot
	// before failing with a runner acquisition timeout.
	AcquireTimeout time.Duration

	// ContainerRuntime is the CLI used for container environments.
	ContainerRuntime string

	// WebhookURL and SocketIOURL, when set, add reporting sinks that
	// receive the final run report.
	WebhookURL  string
	SocketIOURL string
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
