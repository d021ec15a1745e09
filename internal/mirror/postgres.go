package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clipper/clipper-server/internal/identity"
	"github.com/clipper/clipper-server/internal/project"
)

type projectRow struct {
	ID          string    `gorm:"column:id;primaryKey"`
	UserID      string    `gorm:"column:user_id;index"`
	Name        string    `gorm:"column:name"`
	URL         string    `gorm:"column:url"`
	Document    string    `gorm:"column:document;type:jsonb"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	LastUpdated time.Time `gorm:"column:last_updated"`
}

func (projectRow) TableName() string { return projectsTable }

type userRow struct {
	ID        string    `gorm:"column:uid;primaryKey"`
	Email     string    `gorm:"column:email"`
	FirstName string    `gorm:"column:first_name"`
	LastName  string    `gorm:"column:last_name"`
	FullName  string    `gorm:"column:full_name"`
	ImageURL  string    `gorm:"column:image_url"`
	LastSync  time.Time `gorm:"column:last_sync"`
}

func (userRow) TableName() string { return usersTable }

// PostgresMirror writes documents straight into a Postgres database.
type PostgresMirror struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// ConnectPostgres opens the database, checks it answers and creates the
// mirror tables when missing.
func ConnectPostgres(dsn string, logger *slog.Logger) (*PostgresMirror, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&projectRow{}, &userRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate mirror tables: %w", err)
	}

	return &PostgresMirror{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (m *PostgresMirror) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (m *PostgresMirror) Name() string { return "postgres" }

func (m *PostgresMirror) SaveProject(ctx context.Context, p project.Project) error {
	row, err := newProjectRow(p, m.now())
	if err != nil {
		return err
	}

	create := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"user_id":      row.UserID,
			"name":         row.Name,
			"url":          row.URL,
			"document":     row.Document,
			"last_updated": row.LastUpdated,
		}),
	}).Create(&row)
	if create.Error != nil {
		return fmt.Errorf("save project %s: %w", p.ID, create.Error)
	}
	m.logger.Debug("project mirrored", "project_id", p.ID, "remote", m.Name())
	return nil
}

// SaveUser merges the profile. Empty fields keep the stored value.
func (m *PostgresMirror) SaveUser(ctx context.Context, u identity.User) error {
	row := newUserRow(u, m.now())

	updates := map[string]any{"last_sync": row.LastSync}
	for column, value := range map[string]string{
		"email":      row.Email,
		"first_name": row.FirstName,
		"last_name":  row.LastName,
		"full_name":  row.FullName,
		"image_url":  row.ImageURL,
	} {
		if value != "" {
			updates[column] = value
		}
	}

	create := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&row)
	if create.Error != nil {
		return fmt.Errorf("save user %s: %w", u.ID, create.Error)
	}
	m.logger.Debug("user mirrored", "user_id", u.ID, "remote", m.Name())
	return nil
}

func newProjectRow(p project.Project, now time.Time) (projectRow, error) {
	doc, err := json.Marshal(newProjectDocument(p, now))
	if err != nil {
		return projectRow{}, fmt.Errorf("encode project %s: %w", p.ID, err)
	}
	return projectRow{
		ID:          p.ID,
		UserID:      p.UserID,
		Name:        p.Name,
		URL:         p.URL,
		Document:    string(doc),
		CreatedAt:   p.CreatedAt,
		LastUpdated: now,
	}, nil
}

func newUserRow(u identity.User, now time.Time) userRow {
	return userRow{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName,
		ImageURL:  u.ImageURL,
		LastSync:  now,
	}
}
