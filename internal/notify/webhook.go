// Package notify implements the reporting boundary: sinks that deliver the
// final pipeline report to external collaborators. Sinks are best-effort;
// the controller logs their errors and never fails a run over them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/pipeline"
)

// Webhook POSTs the report as JSON to a fixed URL.
type Webhook struct {
	URL string

	// Client defaults to a shared http.Client so repeated runs reuse TCP
	// connections.
	Client *http.Client
}

var defaultClient = &http.Client{}

// Notify implements pipeline.Notifier.
func (w *Webhook) Notify(ctx context.Context, report *pipeline.Report) error {
	logger := ctxlog.FromContext(ctx).With("notifier", "webhook", "url", w.URL)

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = defaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("posting report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected report with status %s", resp.Status)
	}
	logger.Info("Report delivered.", "status", resp.Status, "run_id", report.RunID)
	return nil
}
