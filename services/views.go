package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cppla/novelhub/metrics"
	"github.com/cppla/novelhub/models"
)

// ViewStore is the part of the content store view accounting needs.
type ViewStore interface {
	IncrementViewCount(ctx context.Context, ref models.EntityRef) error
	RecordDailyCredit(ctx context.Context, ref models.EntityRef, day string) error
}

// ViewOutcome is the result of one RecordView call.
type ViewOutcome int

const (
	// Credited means this call incremented the view count.
	Credited ViewOutcome = iota + 1
	// AlreadyCredited means the visitor was already counted for the entity today.
	AlreadyCredited
	// NotCounted means counting failed or the entity does not exist. Callers treat it like AlreadyCredited.
	NotCounted
)

func (o ViewOutcome) String() string {
	switch o {
	case Credited:
		return "credited"
	case AlreadyCredited:
		return "already_credited"
	case NotCounted:
		return "not_counted"
	}
	return "unknown"
}

// Visit is the caller-side state for one RecordView call.
type Visit struct {
	// Token is the view token the client presented, possibly empty.
	Token string
	// Fingerprint identifies a client without a token, e.g. IP and user agent.
	// It only collapses token-less requests racing within FingerprintWindow;
	// an empty fingerprint is shared by all callers that omit it.
	Fingerprint string
}

// ViewResult carries the outcome and the token the client should keep.
type ViewResult struct {
	Outcome ViewOutcome
	// Token is the token to hand back. Equal to the presented token unless Issued.
	Token string
	// Issued is set when Token changed and must be persisted, until ExpiresAt.
	Issued    bool
	ExpiresAt time.Time
	// TTL is the time left until ExpiresAt when the token was issued.
	TTL time.Duration
}

func (r ViewResult) Counted() bool {
	return r.Outcome == Credited
}

// FingerprintWindow is how long a token-less claim keyed by fingerprint holds.
// Clients sharing an IP and user agent are only merged inside this window.
const FingerprintWindow = 5 * time.Second

// visitorNamespace derives stable ids from client fingerprints.
var visitorNamespace = uuid.MustParse("6f1c7c0e-3d7e-4b0a-9a53-2b6b6f0c5a11")

// ViewService counts at most one view per visitor, entity and calendar day.
type ViewService struct {
	store   ViewStore
	codec   *ViewTokenCodec
	dedupe  Deduper
	metrics metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
}

// ViewOption customizes a ViewService.
type ViewOption func(*ViewService)

func WithDeduper(d Deduper) ViewOption {
	return func(s *ViewService) { s.dedupe = d }
}

func WithViewMetrics(m metrics.Recorder) ViewOption {
	return func(s *ViewService) { s.metrics = m }
}

func WithViewLogger(l *zap.Logger) ViewOption {
	return func(s *ViewService) { s.logger = l }
}

func WithViewClock(now func() time.Time) ViewOption {
	return func(s *ViewService) { s.now = now }
}

func NewViewService(store ViewStore, codec *ViewTokenCodec, opts ...ViewOption) *ViewService {
	s := &ViewService{
		store:   store,
		codec:   codec,
		dedupe:  NewMemoryDeduper(),
		metrics: metrics.Nop{},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordView credits ref once per visitor per day. It never returns an error:
// failures are logged and reported as NotCounted with the presented token unchanged.
func (s *ViewService) RecordView(ctx context.Context, ref models.EntityRef, visit Visit) ViewResult {
	now := s.now()
	kind := string(ref.Kind)
	key := ref.Key()
	unchanged := ViewResult{Token: visit.Token}

	tok := s.codec.Decode(visit.Token, now)
	if tok.Has(key) {
		unchanged.Outcome = AlreadyCredited
		s.metrics.RecordViewAlreadyCredited(kind)
		return unchanged
	}

	expires := s.codec.NextMidnight(now)
	day := now.In(s.codec.Location()).Format(models.DayLayout)
	claimTTL := expires.Sub(now)
	var dedupeKey string
	if tok.VisitorID != "" {
		dedupeKey = fmt.Sprintf("views:%s:%s:%s", day, tok.VisitorID, key)
	} else {
		// no token: a fresh visitor, guarded by the fingerprint only for the race window
		tok.VisitorID = uuid.NewString()
		dedupeKey = fmt.Sprintf("views:%s:fp:%s:%s", day, fingerprintID(visit.Fingerprint), key)
		if claimTTL > FingerprintWindow {
			claimTTL = FingerprintWindow
		}
	}
	log := s.logger.With(zap.String("entity", ref.String()), zap.String("visitor", tok.VisitorID))

	claimed, err := s.dedupe.Claim(ctx, dedupeKey, claimTTL)
	if err != nil {
		log.Warn("view dedupe unavailable, counting anyway", zap.Error(err))
		claimed = true
	}
	if !claimed {
		// a concurrent or earlier request from this visitor already counted it
		s.metrics.RecordViewAlreadyCredited(kind)
		return s.issue(log, tok.with(key), now, expires, AlreadyCredited, unchanged)
	}

	if err := s.store.IncrementViewCount(ctx, ref); err != nil {
		if rerr := s.dedupe.Release(ctx, dedupeKey); rerr != nil {
			log.Warn("release view dedupe key failed", zap.Error(rerr))
		}
		if errors.Is(err, ErrNotFound) {
			log.Info("view target not found")
		} else {
			log.Error("increment view count failed", zap.Error(err))
		}
		s.metrics.RecordViewFailed(kind)
		unchanged.Outcome = NotCounted
		return unchanged
	}
	s.metrics.RecordViewCredited(kind)

	if err := s.store.RecordDailyCredit(ctx, ref, day); err != nil {
		log.Warn("record daily view credit failed", zap.Error(err))
	}

	return s.issue(log, tok.with(key), now, expires, Credited, unchanged)
}

func (s *ViewService) issue(log *zap.Logger, tok ViewToken, now, expires time.Time, outcome ViewOutcome, fallback ViewResult) ViewResult {
	tok.ExpiresAt = expires
	raw, err := s.codec.Encode(tok)
	if err != nil {
		log.Error("sign view token failed", zap.Error(err))
		fallback.Outcome = outcome
		return fallback
	}
	return ViewResult{Outcome: outcome, Token: raw, Issued: true, ExpiresAt: expires, TTL: expires.Sub(now)}
}

func fingerprintID(fingerprint string) string {
	return uuid.NewSHA1(visitorNamespace, []byte(fingerprint)).String()
}

// ViewTargets builds the refs for a view request. Zero means absent; at least one id is required.
func ViewTargets(novelID, chapterID uint) ([]models.EntityRef, error) {
	var refs []models.EntityRef
	if novelID > 0 {
		refs = append(refs, models.NovelRef(novelID))
	}
	if chapterID > 0 {
		refs = append(refs, models.ChapterRef(chapterID))
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: novelId or chapterId is required", ErrValidation)
	}
	return refs, nil
}
