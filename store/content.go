// Package store is the relational content store behind view accounting and scheduled publishing.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/novelhub/models"
)

var (
	// ErrNotFound means the referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps driver and connectivity failures.
	ErrUnavailable = errors.New("content store unavailable")
)

// ContentStore runs the few atomic statements the core services depend on.
type ContentStore struct {
	db *gorm.DB
}

func NewContentStore(db *gorm.DB) *ContentStore {
	return &ContentStore{db: db}
}

// DB exposes the underlying handle for plain CRUD.
func (s *ContentStore) DB() *gorm.DB {
	return s.db
}

// IncrementViewCount adds one to the entity's view_count in a single statement.
func (s *ContentStore) IncrementViewCount(ctx context.Context, ref models.EntityRef) error {
	var model interface{}
	switch ref.Kind {
	case models.KindNovel:
		model = &models.Novel{}
	case models.KindChapter:
		model = &models.Chapter{}
	default:
		return fmt.Errorf("unknown entity kind %q", ref.Kind)
	}

	res := s.db.WithContext(ctx).Model(model).
		Where("id = ?", ref.ID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("%w: increment %s: %w", ErrUnavailable, ref, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return nil
}

// RecordDailyCredit bumps the per-day ledger row for ref, creating it on first credit.
func (s *ContentStore) RecordDailyCredit(ctx context.Context, ref models.EntityRef, day string) error {
	row := models.ViewDaily{Day: day, Kind: ref.Kind, EntityID: ref.ID, Credits: 1}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}, {Name: "kind"}, {Name: "entity_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"credits":    gorm.Expr("view_dailies.credits + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: daily credit %s: %w", ErrUnavailable, ref, err)
	}
	return nil
}

// FindScheduledChapters lists chapters whose scheduled time is at or before now,
// oldest first. Content is not loaded.
func (s *ContentStore) FindScheduledChapters(ctx context.Context, now time.Time, limit int) ([]models.Chapter, error) {
	q := s.db.WithContext(ctx).
		Select("id", "novel_id", "number", "title", "status", "scheduled_at").
		Where("status = ? AND scheduled_at <= ?", models.ChapterScheduled, now.UTC()).
		Order("scheduled_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var chapters []models.Chapter
	if err := q.Find(&chapters).Error; err != nil {
		return nil, fmt.Errorf("%w: find scheduled chapters: %w", ErrUnavailable, err)
	}
	return chapters, nil
}

// UpdateChapterStatus moves a chapter from one status to another only if it is still in from.
// It reports whether this call changed the row.
func (s *ContentStore) UpdateChapterStatus(ctx context.Context, id uint, from, to models.ChapterStatus, at time.Time) (bool, error) {
	at = at.UTC()
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if to == models.ChapterPublished {
		updates["published_at"] = at
	}
	res := s.db.WithContext(ctx).Model(&models.Chapter{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, fmt.Errorf("%w: update chapter %d: %w", ErrUnavailable, id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ErrConflict means the row exists but is not in a state the operation accepts.
var ErrConflict = errors.New("conflict")

// PublishChapter publishes a DRAFT or SCHEDULED chapter immediately.
// It returns ErrNotFound for a missing chapter and ErrConflict when it is already published.
func (s *ContentStore) PublishChapter(ctx context.Context, id uint, at time.Time) error {
	at = at.UTC()
	res := s.db.WithContext(ctx).Model(&models.Chapter{}).
		Where("id = ? AND status IN ?", id, []models.ChapterStatus{models.ChapterDraft, models.ChapterScheduled}).
		UpdateColumns(map[string]interface{}{
			"status":       models.ChapterPublished,
			"published_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return fmt.Errorf("%w: publish chapter %d: %w", ErrUnavailable, id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Chapter{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("%w: publish chapter %d: %w", ErrUnavailable, id, err)
	}
	if n == 0 {
		return fmt.Errorf("chapter %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("chapter %d already published: %w", id, ErrConflict)
}
