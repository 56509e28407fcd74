// Package tracker is the write-back activity engine: fire-and-forget
// ingestion into the in-memory cache, the periodic batch flush that
// reconciles the cache into the persistent store, and the overlay read path
// that merges unflushed deltas into a consistent snapshot.
package tracker

import (
	"log/slog"
	"time"

	"github.com/pulse-lab/project-pulse/internal/cache"
	"github.com/pulse-lab/project-pulse/internal/core/stats"
)

// Ingestor is the public write API. Every method is O(1), non-blocking and
// infallible from the caller's point of view: malformed input is logged and
// dropped, because losing one counter update is preferred to blocking or
// crashing the event producer.
type Ingestor struct {
	cache *cache.AggregationCache
	nowFn func() time.Time
}

// NewIngestor creates an Ingestor writing into the given cache.
func NewIngestor(c *cache.AggregationCache) *Ingestor {
	return &Ingestor{
		cache: c,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// RecordMessage records one message: +1 count, last-message timestamp, and
// the maximum length seen this cycle. A zero timestamp defaults to now.
func (i *Ingestor) RecordMessage(tenantID, actorID string, length int64, occurredAt time.Time) {
	key, ok := i.scopeKey("RecordMessage", tenantID, actorID)
	if !ok {
		return
	}
	if length < 0 {
		slog.Warn("[Ingestor] Dropping message with negative length",
			"tenant_id", tenantID, "actor_id", actorID, "length", length)
		return
	}
	if occurredAt.IsZero() {
		occurredAt = i.nowFn()
	}
	i.cache.AddMessage(key, length, occurredAt)
}

// RecordVoice folds one finished voice session into the actor's tally.
func (i *Ingestor) RecordVoice(tenantID, actorID string, m stats.VoiceSessionMetrics) {
	key, ok := i.scopeKey("RecordVoice", tenantID, actorID)
	if !ok {
		return
	}
	if m.VoiceSeconds < 0 || m.ActiveSeconds < 0 || m.MutedSeconds < 0 ||
		m.DeafenedSeconds < 0 || m.SelfMutedSeconds < 0 || m.SelfDeafenedSeconds < 0 {
		slog.Warn("[Ingestor] Dropping voice session with negative duration",
			"tenant_id", tenantID, "actor_id", actorID)
		return
	}
	if m.ActiveSeconds > m.VoiceSeconds {
		slog.Warn("[Ingestor] Dropping voice session with active time exceeding voice time",
			"tenant_id", tenantID, "actor_id", actorID,
			"active_seconds", m.ActiveSeconds, "voice_seconds", m.VoiceSeconds)
		return
	}
	i.cache.AddVoice(key, m)
}

// RecordReactionGiven records that the actor reacted to a message.
func (i *Ingestor) RecordReactionGiven(tenantID, actorID string) {
	if key, ok := i.scopeKey("RecordReactionGiven", tenantID, actorID); ok {
		i.cache.AddReactionGiven(key)
	}
}

// RecordReactionReceived records that one of the actor's messages received
// a reaction.
func (i *Ingestor) RecordReactionReceived(tenantID, actorID string) {
	if key, ok := i.scopeKey("RecordReactionReceived", tenantID, actorID); ok {
		i.cache.AddReactionReceived(key)
	}
}

// RecordFavorite records one use of an emoji label by the actor.
func (i *Ingestor) RecordFavorite(tenantID, actorID, label string) {
	key, ok := i.scopeKey("RecordFavorite", tenantID, actorID)
	if !ok {
		return
	}
	if label == "" {
		slog.Warn("[Ingestor] Dropping favorite with empty label",
			"tenant_id", tenantID, "actor_id", actorID)
		return
	}
	i.cache.AddFavorite(key, label)
}

func (i *Ingestor) scopeKey(op, tenantID, actorID string) (stats.ScopeKey, bool) {
	if tenantID == "" || actorID == "" {
		slog.Warn("[Ingestor] Dropping event with empty scope",
			"op", op, "tenant_id", tenantID, "actor_id", actorID)
		return stats.ScopeKey{}, false
	}
	return stats.ScopeKey{TenantID: tenantID, ActorID: actorID}, true
}
