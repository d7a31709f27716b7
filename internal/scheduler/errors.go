package scheduler

import "fmt"

// StepExecutionError reports the first failing step of a job instance.
type StepExecutionError struct {
	Instance string
	Step     string
	ExitCode int
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("instance %q: step %q exited with code %d", e.Instance, e.Step, e.ExitCode)
}

// UpstreamFailureError explains why an instance was skipped.
type UpstreamFailureError struct {
	Instance   string
	Dependency string
}

func (e *UpstreamFailureError) Error() string {
	return fmt.Sprintf("instance %q skipped: upstream %q did not succeed", e.Instance, e.Dependency)
}
