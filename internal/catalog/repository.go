package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/clipper/clipper-server/internal/identity"
)

type Repository interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error

	UpsertUser(ctx context.Context, user identity.User) error
	GetUser(ctx context.Context, id string) (*identity.User, error)
	ListUsers(ctx context.Context) ([]*identity.User, error)

	CreateOutboxEntry(ctx context.Context, entry *OutboxEntry) error
	GetOutboxEntry(ctx context.Context, id string) (*OutboxEntry, error)
	ListPendingOutbox(ctx context.Context, limit int) ([]*OutboxEntry, error)
	UpdateOutboxStatus(ctx context.Context, id, status, errorMsg string, attempts int) error
	SupersedeOutbox(ctx context.Context, kind, entityID string, before time.Time) (int64, error)
	CountOutbox(ctx context.Context, status string) (int, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetValue(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Storage adapts the kv table to the project store's local storage port.
type Storage struct {
	repo Repository
}

func NewStorage(repo Repository) *Storage {
	return &Storage{repo: repo}
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	return s.repo.GetValue(ctx, key)
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	return s.repo.SetValue(ctx, key, value)
}

// UpsertUser merges the profile into the users table. Empty fields do not
// overwrite stored ones.
func (r *SQLiteRepository) UpsertUser(ctx context.Context, u identity.User) error {
	lastSync := u.LastSync
	if lastSync.IsZero() {
		lastSync = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, full_name, image_url, last_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = COALESCE(excluded.email, users.email),
			first_name = COALESCE(excluded.first_name, users.first_name),
			last_name = COALESCE(excluded.last_name, users.last_name),
			full_name = COALESCE(excluded.full_name, users.full_name),
			image_url = COALESCE(excluded.image_url, users.image_url),
			last_sync = excluded.last_sync
	`, u.ID, nullString(u.Email), nullString(u.FirstName), nullString(u.LastName),
		nullString(u.FullName), nullString(u.ImageURL), lastSync.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*identity.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, full_name, image_url, last_sync
		FROM users WHERE id = ?
	`, id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]*identity.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, first_name, last_name, full_name, image_url, last_sync
		FROM users ORDER BY last_sync DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*identity.User, error) {
	var u identity.User
	var email, firstName, lastName, fullName, imageURL sql.NullString
	var lastSync string

	if err := row.Scan(&u.ID, &email, &firstName, &lastName, &fullName, &imageURL, &lastSync); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.FirstName = firstName.String
	u.LastName = lastName.String
	u.FullName = fullName.String
	u.ImageURL = imageURL.String
	u.LastSync, _ = time.Parse(time.RFC3339, lastSync)
	return &u, nil
}

func (r *SQLiteRepository) CreateOutboxEntry(ctx context.Context, e *OutboxEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_outbox (id, kind, entity_id, payload, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Kind, e.EntityID, e.Payload, e.Status, e.Attempts, nullString(e.LastError),
		e.CreatedAt.UTC().Format(outboxTimeLayout), e.UpdatedAt.UTC().Format(outboxTimeLayout))
	return err
}

func (r *SQLiteRepository) GetOutboxEntry(ctx context.Context, id string) (*OutboxEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, entity_id, payload, status, attempts, last_error, created_at, updated_at
		FROM sync_outbox WHERE id = ?
	`, id)

	e, err := scanOutbox(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *SQLiteRepository) ListPendingOutbox(ctx context.Context, limit int) ([]*OutboxEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, entity_id, payload, status, attempts, last_error, created_at, updated_at
		FROM sync_outbox WHERE status = 'pending' ORDER BY created_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		e, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanOutbox(row scanner) (*OutboxEntry, error) {
	var e OutboxEntry
	var lastError sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&e.ID, &e.Kind, &e.EntityID, &e.Payload, &e.Status, &e.Attempts, &lastError, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.LastError = lastError.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}

func (r *SQLiteRepository) UpdateOutboxStatus(ctx context.Context, id, status, errorMsg string, attempts int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_outbox SET status = ?, last_error = ?, attempts = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), attempts, time.Now().UTC().Format(outboxTimeLayout), id)
	return err
}

// outboxTimeLayout keeps sub-second precision at a fixed width so
// created_at compares correctly as text.
const outboxTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SupersedeOutbox retires pending rows for one entity queued before the
// cutoff and returns how many were retired.
func (r *SQLiteRepository) SupersedeOutbox(ctx context.Context, kind, entityID string, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_outbox SET status = 'superseded', updated_at = ?
		WHERE kind = ? AND entity_id = ? AND status = 'pending' AND created_at < ?
	`, time.Now().UTC().Format(outboxTimeLayout), kind, entityID, before.UTC().Format(outboxTimeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CountOutbox(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_outbox WHERE status = ?", status).Scan(&count)
	return count, err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
