package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/clipper/clipper-server/internal/catalog"
	"github.com/clipper/clipper-server/internal/identity"
	"github.com/clipper/clipper-server/internal/project"
)

const (
	DefaultPollInterval = 30 * time.Second
	batchSize           = 20
)

// Runner retries queued remote saves on a fixed interval.
type Runner struct {
	outbox       *Outbox
	remote       Remote
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(outbox *Outbox, remote Remote, logger *slog.Logger) *Runner {
	return &Runner{
		outbox:       outbox,
		remote:       remote,
		logger:       logger,
		pollInterval: DefaultPollInterval,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("outbox runner started", "interval", r.pollInterval, "remote", r.remote.Name())

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.RunOnce(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("outbox runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("outbox runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// RunOnce sends one batch of pending entries and returns how many were
// delivered.
func (r *Runner) RunOnce(ctx context.Context) int {
	entries, err := r.outbox.repo.ListPendingOutbox(ctx, batchSize)
	if err != nil {
		r.logger.Error("failed to list pending outbox", "error", err)
		return 0
	}

	delivered := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if r.deliver(ctx, entry) {
			delivered++
		}
	}
	return delivered
}

func (r *Runner) deliver(ctx context.Context, entry *catalog.OutboxEntry) bool {
	repo := r.outbox.repo
	attempts := entry.Attempts + 1

	if err := repo.UpdateOutboxStatus(ctx, entry.ID, catalog.OutboxStatusSending, entry.LastError, attempts); err != nil {
		r.logger.Error("failed to claim outbox entry", "entry_id", entry.ID, "error", err)
		return false
	}

	err := r.send(ctx, entry)
	if err == nil {
		if err := repo.UpdateOutboxStatus(ctx, entry.ID, catalog.OutboxStatusDelivered, "", attempts); err != nil {
			r.logger.Error("failed to mark outbox entry delivered", "entry_id", entry.ID, "error", err)
		}
		r.logger.Info("queued save delivered", "kind", entry.Kind, "entity_id", entry.EntityID, "attempts", attempts)
		return true
	}

	status := catalog.OutboxStatusPending
	if attempts >= r.outbox.maxAttempts {
		status = catalog.OutboxStatusFailed
	}
	if uerr := repo.UpdateOutboxStatus(ctx, entry.ID, status, err.Error(), attempts); uerr != nil {
		r.logger.Error("failed to update outbox entry", "entry_id", entry.ID, "error", uerr)
	}
	r.logger.Warn("queued save failed",
		"kind", entry.Kind,
		"entity_id", entry.EntityID,
		"attempts", attempts,
		"status", status,
		"error", err,
	)
	return false
}

func (r *Runner) send(ctx context.Context, entry *catalog.OutboxEntry) error {
	switch entry.Kind {
	case catalog.OutboxKindProject:
		var p project.Project
		if err := json.Unmarshal([]byte(entry.Payload), &p); err != nil {
			return fmt.Errorf("decode project payload: %w", err)
		}
		return r.remote.SaveProject(ctx, p)
	case catalog.OutboxKindUser:
		var u identity.User
		if err := json.Unmarshal([]byte(entry.Payload), &u); err != nil {
			return fmt.Errorf("decode user payload: %w", err)
		}
		return r.remote.SaveUser(ctx, u)
	default:
		return fmt.Errorf("unknown outbox kind %q", entry.Kind)
	}
}
