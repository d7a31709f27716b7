package scheduler

// State is the lifecycle position of one job instance.
//
// Pending -> Ready -> Running -> {Succeeded, Failed}
// Pending -----------------------> Skipped
type State int32

const (
	Pending State = iota
	Ready
	Running
	Succeeded
	Failed
	Skipped
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case Succeeded, Failed, Skipped:
		return true
	}
	return false
}

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}
