package pipeline

import (
	"time"

	"github.com/vk/pipewright/internal/scheduler"
)

// Status is the aggregate outcome of one pipeline run.
type Status string

const (
	// StatusSuccess: every instance succeeded outright.
	StatusSuccess Status = "success"
	// StatusDegraded: every instance is terminal-successful, but at least
	// one success was a tolerated (continue-on-error) failure.
	StatusDegraded Status = "degraded"
	// StatusFailed: at least one strict failure or skip.
	StatusFailed Status = "failed"
)

// InstanceReport is one row of the per-instance status table.
type InstanceReport struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	Tolerated  bool      `json:"tolerated,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	DurationMS int64     `json:"duration_ms"`
	LogPath    string    `json:"log_path,omitempty"`
}

// Report is the structured result handed to the reporting boundary. It is
// produced for every run that got past graph construction, even on partial
// failure or cancellation.
type Report struct {
	RunID      string           `json:"run_id"`
	Trigger    string           `json:"trigger"`
	Status     Status           `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Instances  []InstanceReport `json:"instances"`
}

// buildReport converts scheduler results into report rows and computes the
// aggregate status.
func buildReport(runID, trigger string, startedAt time.Time, results []scheduler.Result) *Report {
	report := &Report{
		RunID:      runID,
		Trigger:    trigger,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Instances:  make([]InstanceReport, 0, len(results)),
	}

	status := StatusSuccess
	for _, res := range results {
		row := InstanceReport{
			ID:         res.ID,
			State:      res.State.String(),
			Tolerated:  res.Tolerated,
			StartedAt:  res.StartedAt,
			FinishedAt: res.FinishedAt,
			LogPath:    res.LogPath,
		}
		if res.Err != nil {
			row.Error = res.Err.Error()
		}
		if !res.StartedAt.IsZero() && !res.FinishedAt.IsZero() {
			row.DurationMS = res.FinishedAt.Sub(res.StartedAt).Milliseconds()
		}
		report.Instances = append(report.Instances, row)

		switch {
		case res.State == scheduler.Failed || res.State == scheduler.Skipped:
			status = StatusFailed
		case res.Tolerated && status == StatusSuccess:
			status = StatusDegraded
		}
	}
	report.Status = status
	return report
}
