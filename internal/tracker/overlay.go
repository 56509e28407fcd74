package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pulse-lab/project-pulse/internal/cache"
	"github.com/pulse-lab/project-pulse/internal/core/stats"
	"github.com/pulse-lab/project-pulse/internal/core/storage"
	"golang.org/x/sync/singleflight"
)

// Flusher runs one synchronous flush cycle. Satisfied by *Scheduler, which
// shares the flush-in-progress lock with the periodic loop.
type Flusher interface {
	Flush(ctx context.Context) error
}

// SnapshotOptions controls the read path.
type SnapshotOptions struct {
	// ForceFlush runs a best-effort synchronous flush before reading.
	ForceFlush bool
	// IncludeOverlay merges the actor's unflushed in-memory deltas into the
	// result, yielding the document the next flush would produce.
	IncludeOverlay bool
}

// Reader is the public read API. It never fails: missing documents come
// back fully shaped at their baseline defaults, and store or flush errors
// degrade to slightly stale data, logged but not surfaced.
type Reader struct {
	cache      *cache.AggregationCache
	store      storage.StatsStore
	baselines  stats.BaselineRepository
	flusher    Flusher
	streakLoc  *time.Location
	nowFn      func() time.Time
	flushGroup singleflight.Group
}

// NewReader creates a Reader. flusher may be nil, in which case ForceFlush
// is ignored. A nil streak location means UTC.
func NewReader(
	c *cache.AggregationCache,
	store storage.StatsStore,
	baselines stats.BaselineRepository,
	flusher Flusher,
	streakLoc *time.Location,
) *Reader {
	if streakLoc == nil {
		streakLoc = time.UTC
	}
	if baselines == nil {
		baselines = stats.StaticBaselines{}
	}
	return &Reader{
		cache:     c,
		store:     store,
		baselines: baselines,
		flusher:   flusher,
		streakLoc: streakLoc,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ActorSnapshot returns a consistent view of one actor's activity stats.
//
// With IncludeOverlay the unflushed deltas are merged arithmetically on top
// of the persisted document through the same staging code the flush engine
// uses, so the result equals the document immediately after the next flush,
// computed without performing one. The cache is never mutated by a read.
func (r *Reader) ActorSnapshot(ctx context.Context, tenantID, actorID string, opts SnapshotOptions) *stats.Document {
	if opts.ForceFlush && r.flusher != nil {
		// Concurrent forced flushes collapse into one cycle; a failed flush
		// degrades to a stale read rather than an error.
		if _, err, _ := r.flushGroup.Do("forced-flush", func() (interface{}, error) {
			return nil, r.flusher.Flush(ctx)
		}); err != nil {
			slog.Warn("[Reader] Forced flush failed, serving possibly stale data",
				"tenant_id", tenantID, "actor_id", actorID, "error", err)
		}
	}

	key := stats.ScopeKey{TenantID: tenantID, ActorID: actorID}
	baseline := r.baselines.For(tenantID)

	doc, err := r.store.GetDocument(ctx, tenantID, actorID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("[Reader] Document read failed, serving defaults",
				"tenant_id", tenantID, "actor_id", actorID, "error", err)
		}
		doc = stats.DefaultDocument(key, baseline)
	}
	if doc.Favorites == nil {
		doc.Favorites = map[string]int64{}
	}

	if opts.IncludeOverlay {
		deltas := r.cache.PeekActor(key)
		if !deltas.Empty() {
			prior := stats.StreakState{Days: doc.StreakDays, LastActive: doc.StreakUpdatedAt}
			update := stats.StageActorUpdate(
				key,
				deltas.Messages,
				deltas.Voice,
				deltas.ReactionsGiven,
				deltas.ReactionsReceived,
				deltas.Favorites,
				prior,
				r.nowFn(),
				r.streakLoc,
				baseline,
			)
			stats.ApplyUpdate(doc, update)
		}
	}

	return doc
}
