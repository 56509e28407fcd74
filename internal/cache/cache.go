// Package cache holds the in-memory write-back counters for the activity
// tracker. It is pure data structure: no I/O, no durability. Entries are
// born on first write, accumulated until a flush cycle swaps them out, and
// survive a process crash only through the persisted store.
package cache

import (
	"sync"
	"time"

	"github.com/pulse-lab/project-pulse/internal/core/stats"
	"github.com/shopspring/decimal"
)

// AggregationCache stores unflushed activity deltas, one independent map per
// metric family, each keyed by (tenant, actor). All access goes through the
// methods here; the maps are never handed out by reference.
type AggregationCache struct {
	mu sync.Mutex

	messages          map[stats.ScopeKey]*stats.MessageTally
	voice             map[stats.ScopeKey]*stats.VoiceTally
	reactionsGiven    map[stats.ScopeKey]int64
	reactionsReceived map[stats.ScopeKey]int64
	favorites         map[stats.ScopeKey]map[string]int64
}

// New creates an empty AggregationCache.
func New() *AggregationCache {
	c := &AggregationCache{}
	c.reset()
	return c
}

func (c *AggregationCache) reset() {
	c.messages = make(map[stats.ScopeKey]*stats.MessageTally)
	c.voice = make(map[stats.ScopeKey]*stats.VoiceTally)
	c.reactionsGiven = make(map[stats.ScopeKey]int64)
	c.reactionsReceived = make(map[stats.ScopeKey]int64)
	c.favorites = make(map[stats.ScopeKey]map[string]int64)
}

// AddMessage records one message of the given length at ts.
func (c *AggregationCache) AddMessage(key stats.ScopeKey, length int64, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tally := c.messages[key]
	if tally == nil {
		tally = &stats.MessageTally{}
		c.messages[key] = tally
	}
	tally.Count++
	if length > tally.LongestLength {
		tally.LongestLength = length
	}
	if ts.After(tally.LastMessageAt) {
		tally.LastMessageAt = ts
	}
}

// AddVoice folds one finished voice session into the actor's voice tally,
// recomputing the running active/unmuted percentage means.
func (c *AggregationCache) AddVoice(key stats.ScopeKey, m stats.VoiceSessionMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tally := c.voice[key]
	if tally == nil {
		tally = &stats.VoiceTally{ActivePct: decimal.Zero, UnmutedPct: decimal.Zero}
		c.voice[key] = tally
	}
	tally.VoiceSeconds += m.VoiceSeconds
	tally.ActiveSeconds += m.ActiveSeconds
	tally.MutedSeconds += m.MutedSeconds
	tally.DeafenedSeconds += m.DeafenedSeconds
	tally.SelfMutedSeconds += m.SelfMutedSeconds
	tally.SelfDeafenedSeconds += m.SelfDeafenedSeconds
	tally.Sessions++
	tally.ActivePct = stats.RunningMean(tally.ActivePct, tally.Sessions, m.ActivePct())
	tally.UnmutedPct = stats.RunningMean(tally.UnmutedPct, tally.Sessions, m.UnmutedPct())
}

// AddReactionGiven records that the actor reacted to a message.
func (c *AggregationCache) AddReactionGiven(key stats.ScopeKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactionsGiven[key]++
}

// AddReactionReceived records that the actor received a reaction.
func (c *AggregationCache) AddReactionReceived(key stats.ScopeKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactionsReceived[key]++
}

// AddFavorite records one use of an emoji label by the actor.
func (c *AggregationCache) AddFavorite(key stats.ScopeKey, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	labels := c.favorites[key]
	if labels == nil {
		labels = make(map[string]int64)
		c.favorites[key] = labels
	}
	labels[label]++
}

// Snapshot is one flush cycle's worth of deltas, detached from the live
// cache. Ingestion that happens after a Swap lands in fresh maps and is
// picked up by the next cycle.
type Snapshot struct {
	Messages          map[stats.ScopeKey]*stats.MessageTally
	Voice             map[stats.ScopeKey]*stats.VoiceTally
	ReactionsGiven    map[stats.ScopeKey]int64
	ReactionsReceived map[stats.ScopeKey]int64
	Favorites         map[stats.ScopeKey]map[string]int64
}

// Empty reports whether the snapshot carries no deltas at all.
func (s Snapshot) Empty() bool {
	return len(s.Messages) == 0 &&
		len(s.Voice) == 0 &&
		len(s.ReactionsGiven) == 0 &&
		len(s.ReactionsReceived) == 0 &&
		len(s.Favorites) == 0
}

// Tenants returns the set of tenants with any delta in any family.
func (s Snapshot) Tenants() []string {
	seen := make(map[string]struct{})
	for _, key := range s.keys() {
		seen[key.TenantID] = struct{}{}
	}
	tenants := make([]string, 0, len(seen))
	for t := range seen {
		tenants = append(tenants, t)
	}
	return tenants
}

// ActorsFor returns the set of actors of one tenant with any delta in any
// family, including the favorites map.
func (s Snapshot) ActorsFor(tenantID string) []string {
	seen := make(map[string]struct{})
	for _, key := range s.keys() {
		if key.TenantID == tenantID {
			seen[key.ActorID] = struct{}{}
		}
	}
	actors := make([]string, 0, len(seen))
	for a := range seen {
		actors = append(actors, a)
	}
	return actors
}

func (s Snapshot) keys() []stats.ScopeKey {
	var keys []stats.ScopeKey
	for key := range s.Messages {
		keys = append(keys, key)
	}
	for key := range s.Voice {
		keys = append(keys, key)
	}
	for key := range s.ReactionsGiven {
		keys = append(keys, key)
	}
	for key := range s.ReactionsReceived {
		keys = append(keys, key)
	}
	for key := range s.Favorites {
		keys = append(keys, key)
	}
	return keys
}

// Swap detaches and returns all accumulated deltas, leaving the cache
// empty. The flush engine works on the returned snapshot so a cycle never
// observes writes that arrive while it runs.
func (c *AggregationCache) Swap() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Messages:          c.messages,
		Voice:             c.voice,
		ReactionsGiven:    c.reactionsGiven,
		ReactionsReceived: c.reactionsReceived,
		Favorites:         c.favorites,
	}
	c.reset()
	return snap
}

// Restore merges a swapped-out snapshot back after a failed flush. Writes
// that arrived in the meantime are preserved: counts add, longest re-maxes,
// latest timestamp wins, running means recombine weighted by session count.
func (c *AggregationCache) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, tally := range snap.Messages {
		cur := c.messages[key]
		if cur == nil {
			c.messages[key] = tally
			continue
		}
		cur.Count += tally.Count
		if tally.LongestLength > cur.LongestLength {
			cur.LongestLength = tally.LongestLength
		}
		if tally.LastMessageAt.After(cur.LastMessageAt) {
			cur.LastMessageAt = tally.LastMessageAt
		}
	}

	for key, tally := range snap.Voice {
		cur := c.voice[key]
		if cur == nil {
			c.voice[key] = tally
			continue
		}
		mergeVoiceTallies(cur, tally)
	}

	for key, n := range snap.ReactionsGiven {
		c.reactionsGiven[key] += n
	}
	for key, n := range snap.ReactionsReceived {
		c.reactionsReceived[key] += n
	}
	for key, labels := range snap.Favorites {
		cur := c.favorites[key]
		if cur == nil {
			c.favorites[key] = labels
			continue
		}
		for label, n := range labels {
			cur[label] += n
		}
	}
}

// mergeVoiceTallies folds old into cur. The combined running means are the
// session-count weighted average of the two means.
func mergeVoiceTallies(cur, old *stats.VoiceTally) {
	total := cur.Sessions + old.Sessions
	if total > 0 {
		curWeight := decimal.NewFromInt(cur.Sessions)
		oldWeight := decimal.NewFromInt(old.Sessions)
		div := decimal.NewFromInt(total)
		cur.ActivePct = cur.ActivePct.Mul(curWeight).Add(old.ActivePct.Mul(oldWeight)).DivRound(div, 8)
		cur.UnmutedPct = cur.UnmutedPct.Mul(curWeight).Add(old.UnmutedPct.Mul(oldWeight)).DivRound(div, 8)
	}
	cur.VoiceSeconds += old.VoiceSeconds
	cur.ActiveSeconds += old.ActiveSeconds
	cur.MutedSeconds += old.MutedSeconds
	cur.DeafenedSeconds += old.DeafenedSeconds
	cur.SelfMutedSeconds += old.SelfMutedSeconds
	cur.SelfDeafenedSeconds += old.SelfDeafenedSeconds
	cur.Sessions += old.Sessions
}

// ActorDeltas is a non-destructive copy of one actor's unflushed deltas,
// used by the overlay read path.
type ActorDeltas struct {
	Messages          *stats.MessageTally
	Voice             *stats.VoiceTally
	ReactionsGiven    int64
	ReactionsReceived int64
	Favorites         map[string]int64
}

// Empty reports whether the actor has no unflushed activity.
func (d ActorDeltas) Empty() bool {
	return d.Messages == nil && d.Voice == nil &&
		d.ReactionsGiven == 0 && d.ReactionsReceived == 0 && len(d.Favorites) == 0
}

// PeekActor copies one actor's deltas without mutating the cache.
func (c *AggregationCache) PeekActor(key stats.ScopeKey) ActorDeltas {
	c.mu.Lock()
	defer c.mu.Unlock()

	var deltas ActorDeltas
	if tally := c.messages[key]; tally != nil {
		copied := *tally
		deltas.Messages = &copied
	}
	if tally := c.voice[key]; tally != nil {
		copied := *tally
		deltas.Voice = &copied
	}
	deltas.ReactionsGiven = c.reactionsGiven[key]
	deltas.ReactionsReceived = c.reactionsReceived[key]
	if labels := c.favorites[key]; len(labels) > 0 {
		deltas.Favorites = make(map[string]int64, len(labels))
		for label, n := range labels {
			deltas.Favorites[label] = n
		}
	}
	return deltas
}
