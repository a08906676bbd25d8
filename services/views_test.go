package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cppla/novelhub/models"
	"github.com/cppla/novelhub/store"
	"github.com/cppla/novelhub/store/storetest"
)

func newTestViewService(st ViewStore, clock *fixedClock, opts ...ViewOption) *ViewService {
	opts = append([]ViewOption{WithViewClock(clock.Now)}, opts...)
	return NewViewService(st, NewViewTokenCodec("view-secret", shanghai), opts...)
}

func TestRecordView_CountsOncePerDay(t *testing.T) {
	db := storetest.NewSQLite(t)
	author := storetest.SeedUser(t, db, "author", models.RoleAuthor)
	require.NoError(t, db.Omit("Author", "Chapters").Create(&models.Novel{ID: 42, AuthorID: author.ID, Title: "Book", ViewCount: 10}).Error)

	clock := &fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, shanghai)}
	svc := newTestViewService(store.NewContentStore(db), clock)
	ctx := context.Background()

	first := svc.RecordView(ctx, models.NovelRef(42), Visit{})
	require.Equal(t, Credited, first.Outcome)
	assert.True(t, first.Counted())
	assert.True(t, first.Issued)
	assert.True(t, first.ExpiresAt.Equal(time.Date(2024, 5, 2, 0, 0, 0, 0, shanghai)))
	assert.Equal(t, 15*time.Hour, first.TTL)
	assert.True(t, svc.codec.Decode(first.Token, clock.Now()).Has("n42"))

	var novel models.Novel
	require.NoError(t, db.First(&novel, 42).Error)
	assert.EqualValues(t, 11, novel.ViewCount)

	clock.Set(clock.Now().Add(8 * time.Hour))
	second := svc.RecordView(ctx, models.NovelRef(42), Visit{Token: first.Token})
	assert.Equal(t, AlreadyCredited, second.Outcome)
	assert.False(t, second.Issued)
	assert.Equal(t, first.Token, second.Token)

	require.NoError(t, db.First(&novel, 42).Error)
	assert.EqualValues(t, 11, novel.ViewCount)

	var ledger models.ViewDaily
	require.NoError(t, db.Where("day = ? AND kind = ? AND entity_id = ?", "2024-05-01", models.KindNovel, 42).First(&ledger).Error)
	assert.EqualValues(t, 1, ledger.Credits)
}

func TestRecordView_TokenAccumulatesEntities(t *testing.T) {
	st := newFakeViewStore()
	clock := &fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, shanghai)}
	svc := newTestViewService(st, clock)
	ctx := context.Background()

	tok := ""
	for _, ref := range []models.EntityRef{models.NovelRef(1), models.ChapterRef(1), models.ChapterRef(2)} {
		res := svc.RecordView(ctx, ref, Visit{Token: tok})
		require.Equal(t, Credited, res.Outcome, ref.String())
		tok = res.Token
	}
	for _, ref := range []models.EntityRef{models.NovelRef(1), models.ChapterRef(1), models.ChapterRef(2)} {
		assert.Equal(t, AlreadyCredited, svc.RecordView(ctx, ref, Visit{Token: tok}).Outcome, ref.String())
	}

	// novel 1 and chapter 1 are distinct entities
	assert.EqualValues(t, 1, st.count("n1"))
	assert.EqualValues(t, 1, st.count("c1"))
	assert.EqualValues(t, 1, st.count("c2"))
	assert.ElementsMatch(t, []string{"n1", "c1", "c2"}, svc.codec.Decode(tok, clock.Now()).Credited)
}

func TestRecordView_ConcurrentExactlyOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	dedupers := map[string]func() Deduper{
		"redis":  func() Deduper { return NewRedisDeduper(rc) },
		"memory": func() Deduper { return NewMemoryDeduper() },
	}
	for name, mk := range dedupers {
		t.Run(name, func(t *testing.T) {
			st := newFakeViewStore()
			clock := &fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, shanghai)}
			svc := newTestViewService(st, clock, WithDeduper(mk()))
			ctx := context.Background()

			// the visitor already holds a token for another chapter
			seed := svc.RecordView(ctx, models.ChapterRef(99), Visit{})
			require.True(t, seed.Counted())

			const n = 32
			var wg sync.WaitGroup
			results := make([]ViewResult, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = svc.RecordView(ctx, models.NovelRef(7), Visit{Token: seed.Token})
				}(i)
			}
			wg.Wait()

			credited := 0
			for _, r := range results {
				if r.Counted() {
					credited++
				} else {
					assert.Equal(t, AlreadyCredited, r.Outcome)
				}
				assert.True(t, svc.codec.Decode(r.Token, clock.Now()).Has("n7"))
			}
			assert.Equal(t, 1, credited)
			assert.EqualValues(t, 1, st.count("n7"))
		})
	}
}

func TestRecordView_SameFingerprintWithoutToken(t *testing.T) {
	st := newFakeViewStore()
	clock := &fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, shanghai)}
	dedupe := NewMemoryDeduper()
	dedupe.now = clock.Now
	svc := newTestViewService(st, clock, WithDeduper(dedupe))
	ctx := context.Background()
	shared := Visit{Fingerprint: "203.0.113.9|Mozilla/5.0"}

	first := svc.RecordView(ctx, models.NovelRef(5), shared)
	racing := svc.RecordView(ctx, models.NovelRef(5), shared)
	other := svc.RecordView(ctx, models.NovelRef(5), Visit{Fingerprint: "198.51.100.1|curl"})

	assert.Equal(t, Credited, first.Outcome)
	assert.Equal(t, AlreadyCredited, racing.Outcome)
	assert.True(t, racing.Issued, "the client catches up with a token")
	assert.Equal(t, Credited, other.Outcome)
	assert.EqualValues(t, 2, st.count("n5"))

	// another reader behind the same NAT and browser build, later the same day
	clock.Set(clock.Now().Add(FingerprintWindow + time.Second))
	later := svc.RecordView(ctx, models.NovelRef(5), shared)
	assert.Equal(t, Credited, later.Outcome)
	clock.Set(clock.Now().Add(6 * time.Hour))
	assert.Equal(t, Credited, svc.RecordView(ctx, models.NovelRef(5), shared).Outcome)
	assert.EqualValues(t, 4, st.count("n5"))

	// readers without a token get distinct visitor ids
	assert.NotEqual(t,
		svc.codec.Decode(first.Token, clock.Now()).VisitorID,
		svc.codec.Decode(later.Token, clock.Now()).VisitorID)

	// a reader holding a token stays deduplicated until midnight
	clock.Set(clock.Now().Add(2 * time.Hour))
	assert.Equal(t, AlreadyCredited, svc.RecordView(ctx, models.NovelRef(5), Visit{Token: later.Token}).Outcome)
	assert.EqualValues(t, 4, st.count("n5"))
}

func TestRecordView_ConcurrentWithoutFingerprint(t *testing.T) {
	st := newFakeViewStore()
	clock := &fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, shanghai)}
	svc := newTestViewService(st, clock)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	results := make([]ViewResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.RecordView(ctx, models.NovelRef(11), Visit{})
		}(i)
	}
	wg.Wait()

	credited := 0
	for _, r := range results {
		if r.Counted() {
			credited++
		}
	}
	assert.Equal(t, 1, credited)
	assert.EqualValues(t, 1, st.count("n11"))
}

func TestRecordView_WindowRollover(t *testing.T) {
	st := newFakeViewStore()
	clock := &fixedClock{t: time.Date(2024, 5, 1, 23, 59, 59, 0, shanghai)}
	svc := newTestViewService(st, clock)
	ctx := context.Background()

	first := svc.RecordView(ctx, models.NovelRef(3), Visit{})
	require.Equal(t, Credited, first.Outcome)
	assert.True(t, first.ExpiresAt.Equal(time.Date(2024, 5, 2, 0, 0, 0, 0, shanghai)))

	clock.Set(time.Date(2024, 5, 2, 0, 0, 1, 0, shanghai))
	second := svc.RecordView(ctx, models.NovelRef(3), Visit{Token: first.Token})
	require.Equal(t, Credited, second.Outcome)
	assert.True(t, second.ExpiresAt.Equal(time.Date(2024, 5, 3, 0, 0, 0, 0, shanghai)))
	assert.Equal(t, svc.codec.Decode(first.Token, first.ExpiresAt.Add(-time.Second)).VisitorID,
		svc.codec.Decode(second.Token, clock.Now()).VisitorID)
	assert.EqualValues(t, 2, st.count("n3"))
	assert.EqualValues(t, 1, st.daily["2024-05-01/n3"])
	assert.EqualValues(t, 1, st.daily["2024-05-02/n3"])
}

func TestRecordView_InvalidTokenCountsAsEmpty(t *testing.T) {
	st := newFakeViewStore()
	clock := &fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, shanghai)}
	svc := newTestViewService(st, clock)

	forged, err := NewViewTokenCodec("someone-else", shanghai).Encode(ViewToken{
		VisitorID: "7d8e6f00-0000-4000-8000-000000000000",
		Credited:  []string{"n8"},
		ExpiresAt: clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, Credited, svc.RecordView(context.Background(), models.NovelRef(8), Visit{Token: forged}).Outcome)
	assert.Equal(t, Credited, newTestViewService(st, clock).RecordView(context.Background(), models.NovelRef(9), Visit{Token: "%%%"}).Outcome)
}

func TestRecordView_StoreFailureFailsSoft(t *testing.T) {
	st := newFakeViewStore()
	st.incErr = errors.New("dial tcp: connection refused")
	clock := &fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, shanghai)}
	core, logs := observer.New(zapcore.InfoLevel)
	m := &recordedMetrics{}
	svc := newTestViewService(st, clock, WithViewLogger(zap.New(core)), WithViewMetrics(m))
	ctx := context.Background()

	res := svc.RecordView(ctx, models.NovelRef(4), Visit{Token: "previous", Fingerprint: "fp"})
	assert.Equal(t, NotCounted, res.Outcome)
	assert.False(t, res.Counted())
	assert.False(t, res.Issued)
	assert.Equal(t, "previous", res.Token)
	assert.Equal(t, 1, logs.FilterMessage("increment view count failed").Len())
	assert.Equal(t, 1, m.failed)

	// the dedupe claim was released, so the next attempt can still count
	st.incErr = nil
	assert.Equal(t, Credited, svc.RecordView(ctx, models.NovelRef(4), Visit{Fingerprint: "fp"}).Outcome)
}

func TestRecordView_NotFoundIsSilent(t *testing.T) {
	svc := newTestViewService(store.NewContentStore(storetest.NewSQLite(t)), &fixedClock{t: time.Now()})

	res := svc.RecordView(context.Background(), models.ChapterRef(404), Visit{})
	assert.Equal(t, NotCounted, res.Outcome)
	assert.False(t, res.Issued)
}

func TestRecordView_LedgerFailureStillCounts(t *testing.T) {
	st := newFakeViewStore()
	st.dailyErr = errors.New("ledger down")
	svc := newTestViewService(st, &fixedClock{t: time.Now()})

	assert.Equal(t, Credited, svc.RecordView(context.Background(), models.NovelRef(2), Visit{}).Outcome)
	assert.EqualValues(t, 1, st.count("n2"))
}

func TestRecordView_RedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rc.Close() })
	mr.Close()

	st := newFakeViewStore()
	core, logs := observer.New(zapcore.WarnLevel)
	svc := newTestViewService(st, &fixedClock{t: time.Now()}, WithDeduper(NewRedisDeduper(rc)), WithViewLogger(zap.New(core)))

	assert.Equal(t, Credited, svc.RecordView(context.Background(), models.NovelRef(6), Visit{}).Outcome)
	assert.EqualValues(t, 1, st.count("n6"))
	assert.Equal(t, 1, logs.FilterMessage("view dedupe unavailable, counting anyway").Len())
}

func TestViewTargets(t *testing.T) {
	refs, err := ViewTargets(3, 9)
	require.NoError(t, err)
	assert.Equal(t, []models.EntityRef{models.NovelRef(3), models.ChapterRef(9)}, refs)

	refs, err = ViewTargets(0, 9)
	require.NoError(t, err)
	assert.Equal(t, []models.EntityRef{models.ChapterRef(9)}, refs)

	_, err = ViewTargets(0, 0)
	assert.True(t, errors.Is(err, ErrValidation))
}
