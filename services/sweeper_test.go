package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cppla/novelhub/models"
	"github.com/cppla/novelhub/store"
	"github.com/cppla/novelhub/store/storetest"
)

func TestSweep_PublishesDueChapter(t *testing.T) {
	db := storetest.NewSQLite(t)
	author := storetest.SeedUser(t, db, "author", models.RoleAuthor)
	novel := storetest.SeedNovel(t, db, author.ID, "Book", 0)
	scheduled := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.Chapter{
		ID: 7, NovelID: novel.ID, Number: 1, Title: "Seven", Status: models.ChapterScheduled, ScheduledAt: &scheduled,
	}).Error)

	sw := NewSweeper(store.NewContentStore(db))
	res, err := sw.Sweep(context.Background(), time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.PublishedCount)
	assert.Equal(t, []uint{7}, res.PublishedIDs)

	got := storetest.Reload(t, db, 7)
	assert.Equal(t, models.ChapterPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
}

func TestSweep_Idempotent(t *testing.T) {
	db := storetest.NewSQLite(t)
	author := storetest.SeedUser(t, db, "author", models.RoleAuthor)
	novel := storetest.SeedNovel(t, db, author.ID, "Book", 0)
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		storetest.SeedChapter(t, db, novel.ID, i, models.ChapterScheduled, storetest.Ptr(now.Add(-time.Duration(i)*time.Minute)))
	}

	sw := NewSweeper(store.NewContentStore(db))
	first, err := sw.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, first.PublishedCount)

	second, err := sw.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.PublishedCount)
	assert.NotNil(t, second.PublishedIDs)
	assert.Empty(t, second.PublishedIDs)
}

func TestSweep_Boundary(t *testing.T) {
	db := storetest.NewSQLite(t)
	author := storetest.SeedUser(t, db, "author", models.RoleAuthor)
	novel := storetest.SeedNovel(t, db, author.ID, "Book", 0)
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	onTime := storetest.SeedChapter(t, db, novel.ID, 1, models.ChapterScheduled, storetest.Ptr(now))
	late := storetest.SeedChapter(t, db, novel.ID, 2, models.ChapterScheduled, storetest.Ptr(now.Add(time.Second)))

	res, err := NewSweeper(store.NewContentStore(db)).Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []uint{onTime.ID}, res.PublishedIDs)
	assert.Equal(t, models.ChapterScheduled, storetest.Reload(t, db, late.ID).Status)
}

func TestSweep_NeverTouchesOtherStatuses(t *testing.T) {
	db := storetest.NewSQLite(t)
	author := storetest.SeedUser(t, db, "author", models.RoleAuthor)
	novel := storetest.SeedNovel(t, db, author.ID, "Book", 0)
	past := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	draft := storetest.SeedChapter(t, db, novel.ID, 1, models.ChapterDraft, storetest.Ptr(past))
	published := storetest.SeedChapter(t, db, novel.ID, 2, models.ChapterPublished, nil)

	res, err := NewSweeper(store.NewContentStore(db)).Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, res.PublishedCount)
	assert.Equal(t, models.ChapterDraft, storetest.Reload(t, db, draft.ID).Status)
	assert.Equal(t, models.ChapterPublished, storetest.Reload(t, db, published.ID).Status)
}

func TestSweep_ConcurrentSweepsPublishEachRowOnce(t *testing.T) {
	db := storetest.NewSQLite(t)
	author := storetest.SeedUser(t, db, "author", models.RoleAuthor)
	novel := storetest.SeedNovel(t, db, author.ID, "Book", 0)
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 1; i <= 10; i++ {
		storetest.SeedChapter(t, db, novel.ID, i, models.ChapterScheduled, storetest.Ptr(now.Add(-time.Hour)))
	}
	st := store.NewContentStore(db)

	var (
		mu    sync.Mutex
		seen  = map[uint]int{}
		total int
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := NewSweeper(st).Sweep(context.Background(), now)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			total += res.PublishedCount
			for _, id := range res.PublishedIDs {
				seen[id]++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, total)
	assert.Len(t, seen, 10)
	for id, n := range seen {
		assert.Equal(t, 1, n, "chapter %d", id)
	}
}

func TestSweep_BatchSize(t *testing.T) {
	st := &fakeScheduleStore{due: []models.Chapter{{ID: 1}, {ID: 2}, {ID: 3}}}
	sw := NewSweeper(st, WithBatchSize(2))

	first, err := sw.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, first.PublishedIDs)

	second, err := sw.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []uint{3}, second.PublishedIDs)
}

func TestSweep_RowFailureIsSkipped(t *testing.T) {
	st := &fakeScheduleStore{
		due:     []models.Chapter{{ID: 1}, {ID: 2}, {ID: 3}},
		failIDs: map[uint]bool{2: true},
	}
	core, logs := observer.New(zapcore.InfoLevel)
	m := &recordedMetrics{}
	sw := NewSweeper(st, WithSweepLogger(zap.New(core)), WithSweepMetrics(m))

	res, err := sw.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, res.PublishedCount)
	assert.Equal(t, []uint{1, 3}, res.PublishedIDs)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, logs.FilterMessage("publish scheduled chapter failed").Len())
	assert.Equal(t, 2, m.published)
	assert.Equal(t, 1, m.rowFails)
}

func TestSweep_QueryFailureAborts(t *testing.T) {
	db, mock := storetest.NewMock(t)
	mock.ExpectQuery("SELECT .* FROM `chapters`").WillReturnError(errors.New("driver: bad connection"))
	m := &recordedMetrics{}

	res, err := NewSweeper(store.NewContentStore(db), WithSweepMetrics(m)).Sweep(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Zero(t, res.PublishedCount)
	assert.Equal(t, 1, m.errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweeper_Authorize(t *testing.T) {
	open := NewSweeper(&fakeScheduleStore{})
	assert.NoError(t, open.Authorize(""))
	assert.NoError(t, open.Authorize("Bearer anything"))

	guarded := NewSweeper(&fakeScheduleStore{}, WithSecret("s3cret"))
	assert.NoError(t, guarded.Authorize("Bearer s3cret"))
	for _, header := range []string{"", "Bearer", "Bearer wrong", "s3cret", "Basic s3cret", "Bearer s3cret-extra"} {
		assert.True(t, errors.Is(guarded.Authorize(header), ErrUnauthorized), header)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	st := &fakeScheduleStore{due: []models.Chapter{{ID: 1}}}
	sw := NewSweeper(st)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sw.Run(ctx, 5*time.Millisecond, nil)
	}()

	assert.Eventually(t, func() bool {
		finds, _ := st.calls()
		return finds >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not stop")
	}
	_, updates := st.calls()
	assert.Equal(t, 1, updates)
}

func TestSweeper_RunKeepsGoingAfterFailedTick(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	st := &fakeScheduleStore{findErr: errors.New("connection refused")}
	core, logs := observer.New(zapcore.DebugLevel)
	sw := NewSweeper(st, WithSweepLogger(zap.New(core)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sw.Run(ctx, 5*time.Millisecond, nil)
	}()

	assert.Eventually(t, func() bool {
		finds, _ := st.calls()
		return finds >= 3
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.GreaterOrEqual(t, logs.FilterMessage("sweep tick failed").Len(), 2)
	assert.GreaterOrEqual(t, logs.FilterMessage("scheduled publish sweep aborted").Len(), 2)
}
