package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"

	"github.com/clipper/clipper-server/internal/identity"
	"github.com/clipper/clipper-server/internal/project"
)

const (
	projectsTable = "projects"
	usersTable    = "users"
)

// SupabaseMirror upserts documents through the PostgREST endpoint of a
// Supabase project. Existing rows are merged, not replaced.
type SupabaseMirror struct {
	client *postgrest.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewSupabaseMirror(supabaseURL, supabaseKey string, logger *slog.Logger) (*SupabaseMirror, error) {
	if supabaseURL == "" || supabaseKey == "" {
		return nil, errors.New("supabase url and key are required")
	}

	client := postgrest.NewClient(strings.TrimRight(supabaseURL, "/")+"/rest/v1", "", map[string]string{
		"apikey":        supabaseKey,
		"Authorization": fmt.Sprintf("Bearer %s", supabaseKey),
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("init postgrest client: %w", client.ClientError)
	}

	return &SupabaseMirror{
		client: client,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (m *SupabaseMirror) Name() string { return "supabase" }

func (m *SupabaseMirror) SaveProject(ctx context.Context, p project.Project) error {
	if err := m.upsert(ctx, projectsTable, "id", newProjectDocument(p, m.now())); err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	m.logger.Debug("project mirrored", "project_id", p.ID, "remote", m.Name())
	return nil
}

func (m *SupabaseMirror) SaveUser(ctx context.Context, u identity.User) error {
	if err := m.upsert(ctx, usersTable, "uid", newUserDocument(u, m.now())); err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	m.logger.Debug("user mirrored", "user_id", u.ID, "remote", m.Name())
	return nil
}

// upsert returns when the request finishes or ctx is done, whichever comes
// first. The client has no per-request context, so an abandoned request
// finishes in the background.
func (m *SupabaseMirror) upsert(ctx context.Context, table, key string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := m.client.From(table).Insert(doc, true, key, "minimal", "").Execute()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
