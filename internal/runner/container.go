package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/vk/pipewright/internal/config"
)

// ContainerBackend runs steps inside containers by shelling out to an
// external container runtime (docker by default). The image lifecycle
// (pulling, provisioning) belongs to that runtime, not to the engine. The
// work directory is bind-mounted so cache restore/collect stay host-side.
type ContainerBackend struct {
	// Runtime is the container CLI to invoke. Empty means "docker".
	Runtime string

	// BaseDir is where per-context work directories are created. Empty
	// means the OS temp directory.
	BaseDir string
}

// Open creates the context's work directory. No container is started yet;
// each step runs in its own short-lived container against the shared mount,
// matching the one-command-per-step contract.
func (b *ContainerBackend) Open(_ context.Context, env config.Environment) (ExecutionContext, error) {
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
	runtime := b.Runtime
	if runtime == "" {
		runtime = "docker"
	}
	return &containerContext{runtime: runtime, image: env.Ref, workdir: dir}, nil
}

type containerContext struct {
	runtime string
	image   string
	workdir string
}

func (c *containerContext) RunStep(ctx context.Context, command string) (*StepResult, error) {
	cmd := exec.CommandContext(ctx, c.runtime, "run", "--rm",
		"-v", c.workdir+":/workspace",
		"-w", "/workspace",
		c.image,
		"sh", "-c", command,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &StepResult{ExitCode: exitErr.ExitCode(), Output: output}, nil
		}
		return nil, fmt.Errorf("starting %s: %w", c.runtime, err)
	}
	return &StepResult{ExitCode: 0, Output: output}, nil
}

func (c *containerContext) RestoreCache(mountPath string, blob []byte) error {
	return untarPath(filepath.Join(c.workdir, mountPath), blob)
}

func (c *containerContext) CollectCache(mountPath string) ([]byte, error) {
	return tarPath(filepath.Join(c.workdir, mountPath))
}

func (c *containerContext) Close() error {
	return os.RemoveAll(c.workdir)
}
