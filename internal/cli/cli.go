// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/vk/pipewright/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly (e.g. -help), or an
// error.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("pipewright", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
pipewright - a DAG-based CI job orchestration engine.

Usage:
  pipewright [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to a pipeline document (.hcl or .yaml) or a directory of them.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline document or directory.")
	formatFlag := flagSet.String("format", "auto", "Pipeline document format. Options: 'auto', 'hcl' or 'yaml'.")
	triggerFlag := flagSet.String("trigger", "push", "Trigger event for this run (e.g. 'push', 'pull_request').")
	workdirFlag := flagSet.String("workdir", ".", "Workspace root for checksum keys and runner work directories.")
	cacheDirFlag := flagSet.String("cache-dir", "", "Directory for the filesystem cache store. Empty uses an in-memory store.")
	logDirFlag := flagSet.String("log-dir", "", "Directory for per-instance step logs. Empty disables them.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP health/status server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	slotsFlag := flagSet.Int("runner-slots", 4, "Default runner slots per environment class not sized by the pipeline.")
	acquireTimeoutFlag := flagSet.Duration("acquire-timeout", 10*time.Minute, "How long an instance may wait for a runner slot.")
	runtimeFlag := flagSet.String("container-runtime", "docker", "Container CLI used for container environments.")
	webhookFlag := flagSet.String("webhook-url", "", "URL that receives the final run report as JSON.")
	socketIOFlag := flagSet.String("socketio-url", "", "socket.io endpoint that receives the final run report.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	pipelinePath := *pipelineFlag
	if pipelinePath == "" && flagSet.NArg() > 0 {
		pipelinePath = flagSet.Arg(0)
	}
	if pipelinePath == "" {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: "a pipeline path is required"}
	}

	cfg, err := app.NewConfig(app.Config{
		PipelinePath:     pipelinePath,
		Format:           *formatFlag,
		Trigger:          *triggerFlag,
		Workdir:          *workdirFlag,
		CacheDir:         *cacheDirFlag,
		LogDir:           *logDirFlag,
		StatusPort:       *statusPortFlag,
		LogFormat:        *logFormatFlag,
		LogLevel:         *logLevelFlag,
		DefaultSlots:     *slotsFlag,
		AcquireTimeout:   *acquireTimeoutFlag,
		ContainerRuntime: *runtimeFlag,
		WebhookURL:       *webhookFlag,
		SocketIOURL:      *socketIOFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, false, nil
}
