package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/playwright-community/playwright-go"

	"github.com/sells-group/xray-ledger/internal/browser"
	"github.com/sells-group/xray-ledger/internal/models"
	"github.com/sells-group/xray-ledger/internal/queue"
)

// SessionNavigator drives one reusable browser tab for overlay reads.
type SessionNavigator struct {
	session *browser.Session
	page    playwright.Page
}

func NewSessionNavigator(session *browser.Session) *SessionNavigator {
	return &SessionNavigator{session: session}
}

func (n *SessionNavigator) Open(url string) error {
	if n.page == nil || n.page.IsClosed() {
		page, err := n.session.NewPage()
		if err != nil {
			return err
		}
		n.page = page
	}
	return n.session.NavigateWithRetry(n.page, url, 3)
}

// Worker drains the run queue one run at a time.
type Worker struct {
	queue       *queue.RunQueue
	coordinator *Coordinator
	logger      *slog.Logger
}

func NewWorker(q *queue.RunQueue, coordinator *Coordinator, logger *slog.Logger) *Worker {
	return &Worker{
		queue:       q,
		coordinator: coordinator,
		logger:      logger.With("component", "run-worker"),
	}
}

// Start blocks until the context is cancelled or the queue is closed.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker started")

	for {
		run, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				w.logger.Info("worker stopped", "reason", err)
				return nil
			}
			return err
		}

		w.queue.SetRunning(true)
		if err := w.coordinator.Run(ctx, run); err != nil {
			w.logger.Error("run aborted", "run_id", run.ID, "error", err)
		}
		w.queue.SetRunning(false)
		w.cleanupUploads(run)
	}
}

// cleanupUploads removes competitor CSVs the API stored for this run.
func (w *Worker) cleanupUploads(run *models.RunRequest) {
	for _, path := range run.UploadedFiles {
		if err := os.Remove(path); err != nil {
			w.logger.Warn("failed to remove uploaded csv", "path", path, "error", err)
		}
	}
}
