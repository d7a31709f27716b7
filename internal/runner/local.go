package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vk/pipewright/internal/config"
)

// LocalBackend runs steps as shell commands on the host, one throwaway work
// directory per execution context. It serves the bare-OS environment kind.
type LocalBackend struct {
	// BaseDir is where per-context work directories are created. Empty
	// means the OS temp directory.
	BaseDir string
}

// Open creates a fresh work directory and returns a context bound to it.
func (b *LocalBackend) Open(_ context.Context, env config.Environment) (ExecutionContext, error) {
	base := b.BaseDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(base, "run-"+sanitize(env.Ref)+"-")
	if err != nil {
		return nil, err
	}
	return &localContext{workdir: dir}, nil
}

type localContext struct {
	workdir string
}

func (c *localContext) RunStep(ctx context.Context, command string) (*StepResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = c.workdir

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &StepResult{ExitCode: exitErr.ExitCode(), Output: output}, nil
		}
		return nil, fmt.Errorf("starting step command: %w", err)
	}
	return &StepResult{ExitCode: 0, Output: output}, nil
}

func (c *localContext) RestoreCache(mountPath string, blob []byte) error {
	return untarPath(filepath.Join(c.workdir, mountPath), blob)
}

func (c *localContext) CollectCache(mountPath string) ([]byte, error) {
	return tarPath(filepath.Join(c.workdir, mountPath))
}

func (c *localContext) Close() error {
	return os.RemoveAll(c.workdir)
}

// sanitize makes an environment ref usable inside a directory name.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
