package services

import (
	"context"
	"sync"
	"time"

	"github.com/cppla/novelhub/models"
)

type fakeViewStore struct {
	mu       sync.Mutex
	counts   map[string]int64
	daily    map[string]int64
	missing  map[string]bool
	incErr   error
	dailyErr error
}

func newFakeViewStore() *fakeViewStore {
	return &fakeViewStore{counts: map[string]int64{}, daily: map[string]int64{}, missing: map[string]bool{}}
}

func (f *fakeViewStore) IncrementViewCount(_ context.Context, ref models.EntityRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return f.incErr
	}
	if f.missing[ref.Key()] {
		return ErrNotFound
	}
	f.counts[ref.Key()]++
	return nil
}

func (f *fakeViewStore) RecordDailyCredit(_ context.Context, ref models.EntityRef, day string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dailyErr != nil {
		return f.dailyErr
	}
	f.daily[day+"/"+ref.Key()]++
	return nil
}

func (f *fakeViewStore) count(key string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

type fakeScheduleStore struct {
	mu        sync.Mutex
	due       []models.Chapter
	findErr   error
	failIDs   map[uint]bool
	published map[uint]bool
	finds     int
	updates   int
}

func (f *fakeScheduleStore) FindScheduledChapters(_ context.Context, _ time.Time, limit int) ([]models.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.Chapter
	for _, c := range f.due {
		if !f.published[c.ID] {
			out = append(out, c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeScheduleStore) UpdateChapterStatus(_ context.Context, id uint, _, _ models.ChapterStatus, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.failIDs[id] {
		return false, ErrStoreUnavailable
	}
	if f.published == nil {
		f.published = map[uint]bool{}
	}
	if f.published[id] {
		return false, nil
	}
	f.published[id] = true
	return true, nil
}

func (f *fakeScheduleStore) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finds, f.updates
}

type recordedMetrics struct {
	mu                                  sync.Mutex
	credited, already, failed           int
	sweeps, published, rowFails, errors int
}

func (m *recordedMetrics) RecordViewCredited(string) {
	m.mu.Lock()
	m.credited++
	m.mu.Unlock()
}

func (m *recordedMetrics) RecordViewAlreadyCredited(string) {
	m.mu.Lock()
	m.already++
	m.mu.Unlock()
}

func (m *recordedMetrics) RecordViewFailed(string) {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *recordedMetrics) RecordSweep(published, failed int) {
	m.mu.Lock()
	m.sweeps++
	m.published += published
	m.rowFails += failed
	m.mu.Unlock()
}

func (m *recordedMetrics) RecordSweepError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}
