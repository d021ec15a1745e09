package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clipper/clipper-server/internal/identity"
)

const deviceIDKey = "device_id"

const (
	// DefaultMirrorWait bounds how long SyncUser waits on the remote copy.
	DefaultMirrorWait = 3 * time.Second
	mirrorTimeout     = 30 * time.Second
)

// UserMirror receives profile copies for the remote users collection.
type UserMirror interface {
	SaveUser(ctx context.Context, u identity.User) error
}

type UserService interface {
	SyncUser(ctx context.Context, u identity.User) (mirrored bool, err error)
	GetUser(ctx context.Context, id string) (*identity.User, error)
	ListUsers(ctx context.Context) ([]*identity.User, error)
}

type Service struct {
	repo       Repository
	mirror     UserMirror
	logger     *slog.Logger
	now        func() time.Time
	mirrorWait time.Duration
	pending    sync.WaitGroup
}

func NewService(repo Repository, mirror UserMirror, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		mirror:     mirror,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		mirrorWait: DefaultMirrorWait,
	}
}

// SyncUser records the signed-in user's profile locally, then pushes it
// to the mirror. Mirror failures are logged and reported through the
// returned flag only. A push still running after the mirror wait keeps
// going in the background and is reported as not mirrored.
func (s *Service) SyncUser(ctx context.Context, u identity.User) (bool, error) {
	if u.ID == "" {
		return false, fmt.Errorf("user id is required")
	}
	u.LastSync = s.now()

	if err := s.repo.UpsertUser(ctx, u); err != nil {
		return false, fmt.Errorf("store user: %w", err)
	}

	if s.mirror == nil {
		return false, nil
	}

	stored, err := s.repo.GetUser(ctx, u.ID)
	if err != nil || stored == nil {
		stored = &u
	}

	done := make(chan bool, 1)
	s.pending.Add(1)
	go func(user identity.User) {
		defer s.pending.Done()
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
		defer cancel()
		done <- s.pushUser(mctx, user)
	}(*stored)

	timer := time.NewTimer(s.mirrorWait)
	defer timer.Stop()

	select {
	case ok := <-done:
		return ok, nil
	case <-timer.C:
		if s.logger != nil {
			s.logger.Info("user mirror still running, continuing in background", "user_id", u.ID)
		}
		return false, nil
	}
}

func (s *Service) pushUser(ctx context.Context, u identity.User) bool {
	if err := s.mirror.SaveUser(ctx, u); err != nil {
		if s.logger != nil {
			s.logger.Warn("user mirror failed", "user_id", u.ID, "error", err)
		}
		return false
	}
	if s.logger != nil {
		s.logger.Info("user synced", "user_id", u.ID)
	}
	return true
}

// Wait blocks until background user pushes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) GetUser(ctx context.Context, id string) (*identity.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) ([]*identity.User, error) {
	return s.repo.ListUsers(ctx)
}

// EnsureDeviceID returns the install's stable id, creating it on first
// run.
func (s *Service) EnsureDeviceID(ctx context.Context) (string, error) {
	existing, err := s.repo.GetValue(ctx, deviceIDKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	deviceID := NewID()
	if err := s.repo.SetValue(ctx, deviceIDKey, deviceID); err != nil {
		return "", err
	}
	return deviceID, nil
}
