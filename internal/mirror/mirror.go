// Package mirror copies projects and user profiles to a remote database
// so they follow the user across devices.
package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/clipper/clipper-server/internal/identity"
	"github.com/clipper/clipper-server/internal/project"
)

// Remote is a database that accepts merged project and user documents.
type Remote interface {
	Name() string
	SaveProject(ctx context.Context, p project.Project) error
	SaveUser(ctx context.Context, u identity.User) error
}

// ProjectDocument is the stored form of a project: every project field
// plus the time of the write.
type ProjectDocument struct {
	project.Project
	LastUpdated time.Time `json:"lastUpdated"`
}

func newProjectDocument(p project.Project, now time.Time) ProjectDocument {
	return ProjectDocument{Project: p, LastUpdated: now}
}

func newUserDocument(u identity.User, now time.Time) identity.User {
	u.LastSync = now
	return u
}

// StubMirror is used when no remote is configured. It only logs.
type StubMirror struct {
	logger *slog.Logger
}

func NewStubMirror(logger *slog.Logger) *StubMirror {
	return &StubMirror{logger: logger}
}

func (m *StubMirror) Name() string { return "none" }

func (m *StubMirror) SaveProject(ctx context.Context, p project.Project) error {
	m.logger.Debug("remote mirror disabled, project kept local", "project_id", p.ID)
	return nil
}

func (m *StubMirror) SaveUser(ctx context.Context, u identity.User) error {
	m.logger.Debug("remote mirror disabled, user kept local", "user_id", u.ID)
	return nil
}
