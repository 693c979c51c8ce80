package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"prepd-server/services/realtime-api/internal/domain/session"
)

// sessionRow is the persisted shape of a session.
type sessionRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	UserID       string `gorm:"index;size:128;not null"`
	Model        string `gorm:"size:128"`
	Status       string `gorm:"size:16;not null"`
	StartedAt    time.Time
	EndedAt      *time.Time
	LastActivity time.Time
	MessageCount int64
	Feedback     string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (sessionRow) TableName() string { return "realtime_sessions" }

// PostgresStore persists sessions in Postgres via gorm.
type PostgresStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewPostgresStore opens the database and ensures the sessions table exists.
func NewPostgresStore(dsn string, log zerolog.Logger) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		// Required for driver errors to surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, err
	}
	return &PostgresStore{
		db:  db,
		log: log.With().Str("component", "session-store-postgres").Logger(),
	}, nil
}

// Create stores a new session.
func (s *PostgresStore) Create(ctx context.Context, sess *session.Session) error {
	err := s.db.WithContext(ctx).Create(toRow(sess)).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return session.ErrAlreadyExists
	}
	return err
}

// Get retrieves a session by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*session.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return fromRow(&row), nil
}

// Update persists the mutable fields of a session as a single-row write.
func (s *PostgresStore) Update(ctx context.Context, sess *session.Session) error {
	row := toRow(sess)
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ?", sess.ID).
		Updates(map[string]any{
			"status":        row.Status,
			"ended_at":      row.EndedAt,
			"last_activity": row.LastActivity,
			"message_count": row.MessageCount,
			"feedback":      row.Feedback,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Delete removes a session by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&sessionRow{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return session.ErrNotFound
	}
	return nil
}

// List returns all sessions.
func (s *PostgresStore) List(ctx context.Context) ([]*session.Session, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*session.Session, 0, len(rows))
	for i := range rows {
		result = append(result, fromRow(&rows[i]))
	}
	return result, nil
}

func toRow(sess *session.Session) *sessionRow {
	row := &sessionRow{
		ID:           sess.ID,
		UserID:       sess.UserID,
		Model:        sess.Model,
		Status:       string(sess.Status),
		StartedAt:    sess.StartedAt,
		LastActivity: sess.LastActivity,
		MessageCount: sess.MessageCount,
		Feedback:     sess.Feedback,
	}
	if !sess.EndedAt.IsZero() {
		ended := sess.EndedAt
		row.EndedAt = &ended
	}
	return row
}

func fromRow(row *sessionRow) *session.Session {
	sess := &session.Session{
		ID:           row.ID,
		UserID:       row.UserID,
		Model:        row.Model,
		Status:       session.Status(row.Status),
		StartedAt:    row.StartedAt,
		LastActivity: row.LastActivity,
		MessageCount: row.MessageCount,
		Feedback:     row.Feedback,
	}
	if row.EndedAt != nil {
		sess.EndedAt = *row.EndedAt
	}
	return sess
}
