package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipper/clipper-server/internal/catalog"
	"github.com/clipper/clipper-server/internal/identity"
	"github.com/clipper/clipper-server/internal/logging"
	"github.com/clipper/clipper-server/internal/project"
)

// Outbox records documents whose remote save failed so the Runner can
// send them again.
type Outbox struct {
	repo        catalog.Repository
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

func NewOutbox(repo catalog.Repository, maxAttempts int, logger *slog.Logger) *Outbox {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Outbox{
		repo:        repo,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue stores doc for retry. Older pending copies of the same entity
// are retired first so a retry never overwrites a newer document.
func (o *Outbox) Enqueue(ctx context.Context, kind, entityID string, doc any, cause error) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, entityID, err)
	}

	now := o.now()
	if _, err := o.repo.SupersedeOutbox(ctx, kind, entityID, now); err != nil {
		return fmt.Errorf("supersede %s %s: %w", kind, entityID, err)
	}

	entry := &catalog.OutboxEntry{
		ID:        catalog.NewID(),
		Kind:      kind,
		EntityID:  entityID,
		Payload:   string(payload),
		Status:    catalog.OutboxStatusPending,
		LastError: cause.Error(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.repo.CreateOutboxEntry(ctx, entry); err != nil {
		return fmt.Errorf("queue %s %s: %w", kind, entityID, err)
	}
	return nil
}

// Settle retires pending rows for an entity that was just saved. Only rows
// queued before the save started are retired; a row queued after it holds
// a newer document.
func (o *Outbox) Settle(ctx context.Context, kind, entityID string, started time.Time) {
	if n, err := o.repo.SupersedeOutbox(ctx, kind, entityID, started); err != nil {
		o.logger.Warn("failed to settle outbox", "kind", kind, "entity_id", entityID, "error", err)
	} else if n > 0 {
		o.logger.Debug("outbox settled", "kind", kind, "entity_id", entityID, "retired", n)
	}
}

type OutboxStats struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

func (o *Outbox) Stats(ctx context.Context) (OutboxStats, error) {
	pending, err := o.repo.CountOutbox(ctx, catalog.OutboxStatusPending)
	if err != nil {
		return OutboxStats{}, err
	}
	failed, err := o.repo.CountOutbox(ctx, catalog.OutboxStatusFailed)
	if err != nil {
		return OutboxStats{}, err
	}
	return OutboxStats{Pending: pending, Failed: failed}, nil
}

// Courier sends documents to the remote and queues the failures. It is
// the mirror handed to the project store and the user service; both
// already keep its errors away from HTTP responses.
type Courier struct {
	remote Remote
	outbox *Outbox
	logger *slog.Logger
}

// NewCourier returns a courier. A nil outbox means failed saves are only
// logged.
func NewCourier(remote Remote, outbox *Outbox, logger *slog.Logger) *Courier {
	return &Courier{
		remote: remote,
		outbox: outbox,
		logger: logging.WithComponent(logger, "mirror"),
	}
}

func (c *Courier) Remote() Remote { return c.remote }

func (c *Courier) SaveProject(ctx context.Context, p project.Project) error {
	started := c.started()
	err := c.remote.SaveProject(ctx, p)
	c.record(ctx, catalog.OutboxKindProject, p.ID, p, started, err)
	return err
}

func (c *Courier) SaveUser(ctx context.Context, u identity.User) error {
	started := c.started()
	err := c.remote.SaveUser(ctx, u)
	c.record(ctx, catalog.OutboxKindUser, u.ID, u, started, err)
	return err
}

func (c *Courier) started() time.Time {
	if c.outbox == nil {
		return time.Time{}
	}
	return c.outbox.now()
}

func (c *Courier) record(ctx context.Context, kind, entityID string, doc any, started time.Time, err error) {
	if c.outbox == nil {
		if err != nil {
			c.logger.Error("remote save failed", "kind", kind, "entity_id", entityID, "remote", c.remote.Name(), "error", err)
		}
		return
	}

	if err == nil {
		c.outbox.Settle(ctx, kind, entityID, started)
		return
	}

	c.logger.Warn("remote save failed, queued for retry",
		"kind", kind,
		"entity_id", entityID,
		"remote", c.remote.Name(),
		"error", err,
	)
	if qerr := c.outbox.Enqueue(context.WithoutCancel(ctx), kind, entityID, doc, err); qerr != nil {
		c.logger.Error("failed to queue remote save", "kind", kind, "entity_id", entityID, "error", qerr)
	}
}
