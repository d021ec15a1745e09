package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/clipper/clipper-server/internal/db"
	"github.com/clipper/clipper-server/internal/identity"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	repo := NewRepository(database.Conn())
	return database, repo
}

type fakeUserMirror struct {
	saved []identity.User
	err   error
}

func (f *fakeUserMirror) SaveUser(ctx context.Context, u identity.User) error {
	f.saved = append(f.saved, u)
	return f.err
}

func TestService_SyncUser(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	mirror := &fakeUserMirror{}
	svc := NewService(repo, mirror, nil)

	mirrored, err := svc.SyncUser(context.Background(), identity.User{
		ID:        "user_1",
		Email:     "ada@example.com",
		FirstName: "Ada",
		FullName:  "Ada Lovelace",
	})
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if !mirrored {
		t.Error("mirrored = false, want true")
	}

	got, err := svc.GetUser(context.Background(), "user_1")
	if err != nil || got == nil {
		t.Fatalf("GetUser() = %v, %v", got, err)
	}
	if got.Email != "ada@example.com" || got.FullName != "Ada Lovelace" {
		t.Errorf("stored user = %+v", got)
	}
	if got.LastSync.IsZero() {
		t.Error("last sync not recorded")
	}

	if len(mirror.saved) != 1 || mirror.saved[0].ID != "user_1" {
		t.Errorf("mirror saved = %+v", mirror.saved)
	}
}

func TestService_SyncUser_MergesProfile(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	if _, err := svc.SyncUser(ctx, identity.User{ID: "u", Email: "a@example.com", ImageURL: "http://img/1"}); err != nil {
		t.Fatalf("first SyncUser() error = %v", err)
	}
	if _, err := svc.SyncUser(ctx, identity.User{ID: "u", FirstName: "Ada"}); err != nil {
		t.Fatalf("second SyncUser() error = %v", err)
	}

	got, _ := svc.GetUser(ctx, "u")
	if got.Email != "a@example.com" || got.FirstName != "Ada" || got.ImageURL != "http://img/1" {
		t.Errorf("merged user = %+v", got)
	}
}

func TestService_SyncUser_MirrorFailureIsQuiet(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, &fakeUserMirror{err: errors.New("remote down")}, nil)

	mirrored, err := svc.SyncUser(context.Background(), identity.User{ID: "u"})
	if err != nil {
		t.Fatalf("SyncUser() error = %v, want nil", err)
	}
	if mirrored {
		t.Error("mirrored = true, want false")
	}
}

type slowUserMirror struct {
	mu      sync.Mutex
	saved   []identity.User
	release chan struct{}
}

func (f *slowUserMirror) SaveUser(ctx context.Context, u identity.User) error {
	<-f.release
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, u)
	return nil
}

func TestService_SyncUser_SlowMirrorDoesNotBlock(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	mirror := &slowUserMirror{release: make(chan struct{})}
	svc := NewService(repo, mirror, nil)
	svc.mirrorWait = 20 * time.Millisecond

	start := time.Now()
	mirrored, err := svc.SyncUser(context.Background(), identity.User{ID: "u", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("SyncUser() error = %v", err)
	}
	if mirrored {
		t.Error("mirrored = true before the remote answered")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("SyncUser() took %v with a stalled mirror", elapsed)
	}

	close(mirror.release)
	svc.Wait()

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	if len(mirror.saved) != 1 || mirror.saved[0].Email != "a@example.com" {
		t.Errorf("saved = %+v, want the profile once the remote answered", mirror.saved)
	}
}

func TestService_SyncUser_RequiresID(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	if _, err := NewService(repo, nil, nil).SyncUser(context.Background(), identity.User{}); err == nil {
		t.Error("SyncUser() without id should fail")
	}
}

func TestService_EnsureDeviceID_Stable(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	svc := NewService(repo, nil, nil)
	first, err := svc.EnsureDeviceID(context.Background())
	if err != nil {
		t.Fatalf("EnsureDeviceID() error = %v", err)
	}
	second, _ := svc.EnsureDeviceID(context.Background())
	if first == "" || first != second {
		t.Errorf("device ids = %q, %q, want equal and non-empty", first, second)
	}
}

func TestStorage_GetSet(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	storage := NewStorage(repo)
	ctx := context.Background()

	got, err := storage.Get(ctx, "clipper_projects")
	if err != nil || got != "" {
		t.Fatalf("Get(missing) = %q, %v, want empty", got, err)
	}

	if err := storage.Set(ctx, "clipper_projects", `[{"id":"1"}]`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := storage.Set(ctx, "clipper_projects", `[{"id":"2"}]`); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	got, _ = storage.Get(ctx, "clipper_projects")
	if got != `[{"id":"2"}]` {
		t.Errorf("Get() = %q", got)
	}
}

func TestRepository_Outbox(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"b", "a"} {
		err := repo.CreateOutboxEntry(ctx, &OutboxEntry{
			ID:        id,
			Kind:      OutboxKindProject,
			EntityID:  "p-" + id,
			Payload:   `{}`,
			Status:    OutboxStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base,
		})
		if err != nil {
			t.Fatalf("CreateOutboxEntry(%s) error = %v", id, err)
		}
	}

	pending, err := repo.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingOutbox() error = %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "b" {
		t.Fatalf("pending = %v, want oldest first", pending)
	}

	if err := repo.UpdateOutboxStatus(ctx, "b", OutboxStatusFailed, "boom", 3); err != nil {
		t.Fatalf("UpdateOutboxStatus() error = %v", err)
	}

	got, _ := repo.GetOutboxEntry(ctx, "b")
	if got.Status != OutboxStatusFailed || got.Attempts != 3 || got.LastError != "boom" {
		t.Errorf("entry = %+v", got)
	}

	n, _ := repo.CountOutbox(ctx, OutboxStatusPending)
	if n != 1 {
		t.Errorf("pending count = %d, want 1", n)
	}

	missing, err := repo.GetOutboxEntry(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetOutboxEntry(nope) = %v, %v, want nil, nil", missing, err)
	}
}

func TestRepository_SupersedeOutbox_KeepsNewerRows(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	cutoff := time.Now().UTC()
	rows := map[string]time.Time{
		"old": cutoff.Add(-500 * time.Millisecond),
		"new": cutoff.Add(200 * time.Millisecond),
	}
	for id, created := range rows {
		err := repo.CreateOutboxEntry(ctx, &OutboxEntry{
			ID:        id,
			Kind:      OutboxKindProject,
			EntityID:  "p1",
			Payload:   `{}`,
			Status:    OutboxStatusPending,
			CreatedAt: created,
			UpdatedAt: created,
		})
		if err != nil {
			t.Fatalf("CreateOutboxEntry(%s) error = %v", id, err)
		}
	}

	n, err := repo.SupersedeOutbox(ctx, OutboxKindProject, "p1", cutoff)
	if err != nil {
		t.Fatalf("SupersedeOutbox() error = %v", err)
	}
	if n != 1 {
		t.Errorf("retired = %d, want 1", n)
	}

	old, _ := repo.GetOutboxEntry(ctx, "old")
	if old.Status != OutboxStatusSuperseded {
		t.Errorf("old status = %q, want superseded", old.Status)
	}
	newer, _ := repo.GetOutboxEntry(ctx, "new")
	if newer.Status != OutboxStatusPending {
		t.Errorf("new status = %q, want pending", newer.Status)
	}
}
