package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pulse-lab/project-pulse/internal/cache"
	"github.com/pulse-lab/project-pulse/internal/core/stats"
	"github.com/pulse-lab/project-pulse/internal/core/storage"
)

const defaultFlushBatchSize = 500

// FlushEngine reconciles the in-memory cache against the persistent store:
// per tenant, one streak prefetch, per-actor directive staging, and
// size-bounded unordered bulk submission.
type FlushEngine struct {
	cache     *cache.AggregationCache
	store     storage.StatsStore
	baselines stats.BaselineRepository
	batchSize int
	streakLoc *time.Location
	nowFn     func() time.Time
}

// NewFlushEngine creates a FlushEngine. batchSize <= 0 uses the default;
// a nil streak location means UTC.
func NewFlushEngine(
	c *cache.AggregationCache,
	store storage.StatsStore,
	baselines stats.BaselineRepository,
	batchSize int,
	streakLoc *time.Location,
) *FlushEngine {
	if batchSize <= 0 {
		batchSize = defaultFlushBatchSize
	}
	if streakLoc == nil {
		streakLoc = time.UTC
	}
	if baselines == nil {
		baselines = stats.StaticBaselines{}
	}
	return &FlushEngine{
		cache:     c,
		store:     store,
		baselines: baselines,
		batchSize: batchSize,
		streakLoc: streakLoc,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Flush runs one reconciliation cycle.
//
// The snapshot is swapped out of the cache up front so concurrent ingestion
// lands in fresh maps for the next cycle. On any error the snapshot is
// merged back and the cycle's deltas are retried whole next time; the merge
// policies (increment/max/overwrite) make that retry safe. Per-actor
// failures inside an otherwise healthy bulk write do NOT abort the cycle:
// their deltas are accepted as lost, because re-staging the whole snapshot
// would double-count the actors that succeeded.
func (e *FlushEngine) Flush(ctx context.Context) error {
	snap := e.cache.Swap()
	if snap.Empty() {
		slog.Debug("[FlushEngine] Nothing to flush")
		return nil
	}

	committed := false
	defer func() {
		if !committed {
			e.cache.Restore(snap)
		}
	}()

	cycleID := uuid.NewString()
	now := e.nowFn()
	tenants := snap.Tenants()

	slog.Info("[FlushEngine] Starting flush cycle",
		"cycle_id", cycleID,
		"tenants", len(tenants),
	)

	var applied, failed, staged int
	for _, tenantID := range tenants {
		a, f, s, err := e.flushTenant(ctx, snap, tenantID, now)
		if err != nil {
			return fmt.Errorf("flush tenant %s: %w", tenantID, err)
		}
		applied += a
		failed += f
		staged += s
	}

	if applied == 0 && failed > 0 {
		// Every single actor failed: treat as a store outage, keep the cache.
		return fmt.Errorf("flush cycle %s: all %d actor updates failed", cycleID, failed)
	}

	committed = true

	if failed > 0 {
		slog.Warn("[FlushEngine] Flush completed with partial failures",
			"cycle_id", cycleID,
			"applied", applied,
			"failed", failed,
		)
	} else {
		slog.Info("[FlushEngine] Flush complete",
			"cycle_id", cycleID,
			"tenants", len(tenants),
			"actors", staged,
			"applied", applied,
		)
	}
	return nil
}

// flushTenant prefetches prior streak state for the tenant's active actors,
// stages one update per actor, and submits size-bounded batches.
func (e *FlushEngine) flushTenant(
	ctx context.Context,
	snap cache.Snapshot,
	tenantID string,
	now time.Time,
) (applied, failed, staged int, err error) {
	actors := snap.ActorsFor(tenantID)
	if len(actors) == 0 {
		return 0, 0, 0, nil
	}

	priors, err := e.store.FetchStreakStates(ctx, tenantID, actors)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("prefetch streak states: %w", err)
	}

	baseline := e.baselines.For(tenantID)
	batch := make([]stats.ActorUpdate, 0, min(e.batchSize, len(actors)))

	submit := func() error {
		if len(batch) == 0 {
			return nil
		}
		result, err := e.store.BulkApply(ctx, batch)
		applied += result.Applied
		failed += result.Failed
		if err != nil {
			return fmt.Errorf("bulk apply %d updates: %w", len(batch), err)
		}
		batch = batch[:0]
		return nil
	}

	for _, actorID := range actors {
		key := stats.ScopeKey{TenantID: tenantID, ActorID: actorID}
		update := stats.StageActorUpdate(
			key,
			snap.Messages[key],
			snap.Voice[key],
			snap.ReactionsGiven[key],
			snap.ReactionsReceived[key],
			snap.Favorites[key],
			priors[actorID],
			now,
			e.streakLoc,
			baseline,
		)
		batch = append(batch, update)
		staged++

		if len(batch) >= e.batchSize {
			if err := submit(); err != nil {
				return applied, failed, staged, err
			}
		}
	}

	if err := submit(); err != nil {
		return applied, failed, staged, err
	}
	return applied, failed, staged, nil
}
