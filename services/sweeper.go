package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/novelhub/metrics"
	"github.com/cppla/novelhub/models"
)

// ScheduleStore is the part of the content store the sweeper needs.
type ScheduleStore interface {
	FindScheduledChapters(ctx context.Context, now time.Time, limit int) ([]models.Chapter, error)
	UpdateChapterStatus(ctx context.Context, id uint, from, to models.ChapterStatus, at time.Time) (bool, error)
}

// SweepResult lists the chapters this sweep published. Rows published by a
// concurrent sweep are not included.
type SweepResult struct {
	PublishedCount int    `json:"publishedCount"`
	PublishedIDs   []uint `json:"publishedIds"`
	Failed         int    `json:"-"`
}

// Sweeper publishes chapters whose scheduled time has passed.
type Sweeper struct {
	store     ScheduleStore
	secret    string
	batchSize int
	metrics   metrics.Recorder
	logger    *zap.Logger
}

type SweeperOption func(*Sweeper)

// WithSecret requires callers to present secret. Empty leaves the sweeper open.
func WithSecret(secret string) SweeperOption {
	return func(s *Sweeper) { s.secret = secret }
}

// WithBatchSize caps the rows handled per sweep; the rest wait for the next one.
func WithBatchSize(n int) SweeperOption {
	return func(s *Sweeper) { s.batchSize = n }
}

func WithSweepMetrics(m metrics.Recorder) SweeperOption {
	return func(s *Sweeper) { s.metrics = m }
}

func WithSweepLogger(l *zap.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = l }
}

func NewSweeper(store ScheduleStore, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:   store,
		metrics: metrics.Nop{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authorize checks an Authorization header value of the form "Bearer <secret>".
func (s *Sweeper) Authorize(header string) error {
	if s.secret == "" {
		return nil
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ErrUnauthorized
	}
	got := strings.TrimSpace(header[len(prefix):])
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Sweep moves every due SCHEDULED chapter to PUBLISHED. A failing row is logged and
// skipped; failing to list due rows aborts with ErrStoreUnavailable.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	result := SweepResult{PublishedIDs: []uint{}}

	due, err := s.store.FindScheduledChapters(ctx, now, s.batchSize)
	if err != nil {
		s.metrics.RecordSweepError()
		s.logger.Error("scheduled publish sweep aborted", zap.Error(err))
		return result, fmt.Errorf("sweep: %w", err)
	}

	for _, ch := range due {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordSweep(result.PublishedCount, result.Failed)
			return result, fmt.Errorf("sweep interrupted: %w", err)
		}
		changed, err := s.store.UpdateChapterStatus(ctx, ch.ID, models.ChapterScheduled, models.ChapterPublished, now)
		if err != nil {
			result.Failed++
			s.logger.Warn("publish scheduled chapter failed", zap.Uint("chapter_id", ch.ID), zap.Error(err))
			continue
		}
		if !changed {
			continue
		}
		result.PublishedCount++
		result.PublishedIDs = append(result.PublishedIDs, ch.ID)
	}

	s.metrics.RecordSweep(result.PublishedCount, result.Failed)
	if result.PublishedCount > 0 || result.Failed > 0 {
		s.logger.Info("scheduled publish sweep",
			zap.Int("due", len(due)),
			zap.Int("published", result.PublishedCount),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

// Run sweeps every interval until ctx is cancelled. Failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration, now func() time.Time) {
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, now()); err != nil {
				// already logged and counted inside Sweep; the next tick retries
				s.logger.Debug("sweep tick failed", zap.Error(err))
			}
		}
	}
}
