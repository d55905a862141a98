package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ImportRecord is the db-agnostic view of a logged import.
type ImportRecord struct {
	ID         uint
	CreatedAt  time.Time
	Kind       string
	Provider   string
	SearchTerm string
	MediaType  string
	Season     int
	Episode    int
	Status     string
	Detail     string
	ChatID     int64
	UserID     int64
}

// WebhookEvent is the db-agnostic view of a logged playback event.
type WebhookEvent struct {
	ID         uint
	CreatedAt  time.Time
	Event      string
	Title      string
	SeriesName string
	Season     int
	Episode    int
	TmdbID     string
	Action     string
	Status     string
	Detail     string
}

// Repository provides access to the activity log database.
type Repository struct {
	db *gorm.DB
}

// NewSQLiteRepository creates a repository backed by SQLite.
func NewSQLiteRepository(dsn string, gormLogger logger.Interface) (*Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn required")
	}

	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	dbDir := filepath.Dir(dsn)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}

	if err := applySQLitePragmas(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ImportRecordModel{}, &WebhookEventModel{}); err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Repository{db: db}, nil
}

func applySQLitePragmas(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-64000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, stmt := range pragmas {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// RecordImport logs an import attempt and fills in the generated ID.
func (r *Repository) RecordImport(ctx context.Context, rec *ImportRecord) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	model := &ImportRecordModel{
		Kind:       rec.Kind,
		Provider:   rec.Provider,
		SearchTerm: rec.SearchTerm,
		MediaType:  rec.MediaType,
		Season:     rec.Season,
		Episode:    rec.Episode,
		Status:     rec.Status,
		Detail:     rec.Detail,
		ChatID:     rec.ChatID,
		UserID:     rec.UserID,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	rec.ID = model.ID
	rec.CreatedAt = model.CreatedAt
	return nil
}

// RecordWebhookEvent logs a playback notification outcome.
func (r *Repository) RecordWebhookEvent(ctx context.Context, event *WebhookEvent) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	model := &WebhookEventModel{
		Event:      event.Event,
		Title:      event.Title,
		SeriesName: event.SeriesName,
		Season:     event.Season,
		Episode:    event.Episode,
		TmdbID:     event.TmdbID,
		Action:     event.Action,
		Status:     event.Status,
		Detail:     event.Detail,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	event.ID = model.ID
	event.CreatedAt = model.CreatedAt
	return nil
}

// RecentImports returns the newest import records, optionally filtered
// by kind.
func (r *Repository) RecentImports(ctx context.Context, kind string, limit int) ([]ImportRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("repository not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Model(&ImportRecordModel{})
	if strings.TrimSpace(kind) != "" {
		query = query.Where("kind = ?", strings.TrimSpace(kind))
	}

	var models []ImportRecordModel
	if err := query.Order("id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]ImportRecord, 0, len(models))
	for _, model := range models {
		records = append(records, ImportRecord{
			ID:         model.ID,
			CreatedAt:  model.CreatedAt,
			Kind:       model.Kind,
			Provider:   model.Provider,
			SearchTerm: model.SearchTerm,
			MediaType:  model.MediaType,
			Season:     model.Season,
			Episode:    model.Episode,
			Status:     model.Status,
			Detail:     model.Detail,
			ChatID:     model.ChatID,
			UserID:     model.UserID,
		})
	}
	return records, nil
}

// RecentWebhookEvents returns the newest playback events.
func (r *Repository) RecentWebhookEvents(ctx context.Context, limit int) ([]WebhookEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("repository not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	var models []WebhookEventModel
	if err := r.db.WithContext(ctx).Model(&WebhookEventModel{}).
		Order("id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}

	events := make([]WebhookEvent, 0, len(models))
	for _, model := range models {
		events = append(events, WebhookEvent{
			ID:         model.ID,
			CreatedAt:  model.CreatedAt,
			Event:      model.Event,
			Title:      model.Title,
			SeriesName: model.SeriesName,
			Season:     model.Season,
			Episode:    model.Episode,
			TmdbID:     model.TmdbID,
			Action:     model.Action,
			Status:     model.Status,
			Detail:     model.Detail,
		})
	}
	return events, nil
}

// CountImportsByStatus returns import counts grouped by status.
func (r *Repository) CountImportsByStatus(ctx context.Context) (map[string]int64, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("repository not configured")
	}
	rows := make([]struct {
		Status string
		Count  int64
	}, 0)
	err := r.db.WithContext(ctx).Model(&ImportRecordModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
