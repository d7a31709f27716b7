package notify

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/pipeline"
)

// SocketIO emits the final report as a "pipeline:finished" event to a
// socket.io reporting collaborator. The connection is per-notification:
// pipeline runs are discrete, so there is nothing to keep alive between
// them.
type SocketIO struct {
	URL       string
	Namespace string
}

// Notify implements pipeline.Notifier.
func (s *SocketIO) Notify(ctx context.Context, report *pipeline.Report) error {
	logger := ctxlog.FromContext(ctx).With("notifier", "socketio", "url", s.URL)

	parsedURL, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("parsing socket.io URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(s.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("connect_error: %v", errs)
		}
		connectChan <- err
	})

	io.Connect()
	defer io.Disconnect()

	select {
	case err := <-connectChan:
		if err != nil {
			return fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(15 * time.Second):
		return fmt.Errorf("timed out after 15s waiting for socket.io connection")
	}

	if err := io.Emit("pipeline:finished", report); err != nil {
		return fmt.Errorf("emitting report: %w", err)
	}
	logger.Info("Report emitted.", "run_id", report.RunID, "status", report.Status)
	return nil
}
