package stats

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScopeKey uniquely identifies one tracked actor.
// All counters are partitioned by tenant first; the composite key replaces
// the nested tenant→actor map lookups with a single map key.
type ScopeKey struct {
	TenantID string
	ActorID  string
}

// MessageTally holds the unflushed message deltas for one actor.
type MessageTally struct {
	Count         int64
	LongestLength int64     // max length seen this cycle; final max-merge happens at flush
	LastMessageAt time.Time // latest message timestamp this cycle
}

// VoiceTally holds the unflushed voice deltas for one actor.
// ActivePct and UnmutedPct are running means over Sessions, recomputed on
// every recorded session as avg' = (avg*(n-1) + x) / n.
type VoiceTally struct {
	VoiceSeconds        int64
	ActiveSeconds       int64
	MutedSeconds        int64
	DeafenedSeconds     int64
	SelfMutedSeconds    int64
	SelfDeafenedSeconds int64
	Sessions            int64
	ActivePct           decimal.Decimal
	UnmutedPct          decimal.Decimal
}

// VoiceSessionMetrics is one finished voice session as reported by the producer.
type VoiceSessionMetrics struct {
	VoiceSeconds        int64
	ActiveSeconds       int64
	MutedSeconds        int64
	DeafenedSeconds     int64
	SelfMutedSeconds    int64
	SelfDeafenedSeconds int64
}

// ActivePct returns the session's active time as a percentage of voice time.
func (m VoiceSessionMetrics) ActivePct() decimal.Decimal {
	return secondsPct(m.ActiveSeconds, m.VoiceSeconds)
}

// UnmutedPct returns the session's unmuted time as a percentage of voice time.
// Unmuted time is voice time minus server-muted and self-muted time, floored at zero.
func (m VoiceSessionMetrics) UnmutedPct() decimal.Decimal {
	unmuted := m.VoiceSeconds - m.MutedSeconds - m.SelfMutedSeconds
	if unmuted < 0 {
		unmuted = 0
	}
	return secondsPct(unmuted, m.VoiceSeconds)
}

// pctScale bounds running-mean division so repeated averaging stays exact
// enough to round-trip through a NUMERIC column.
const pctScale = 8

func secondsPct(part, whole int64) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part * 100).DivRound(decimal.NewFromInt(whole), pctScale)
}

// RunningMean folds one new sample into a mean over n samples (n includes the
// new sample). n <= 1 returns the sample itself.
func RunningMean(avg decimal.Decimal, n int64, sample decimal.Decimal) decimal.Decimal {
	if n <= 1 {
		return sample
	}
	count := decimal.NewFromInt(n)
	return avg.Mul(count.Sub(decimal.NewFromInt(1))).Add(sample).DivRound(count, pctScale)
}

// Baseline is the default shape of the flat reward fields for a tenant.
// Every persisted document carries these even before any tracked activity.
type Baseline struct {
	Experience int64
	Currency   int64
	Level      int64
}

// Document is the canonical per-(tenant, actor) persisted record.
// The shape is stable across the read and write paths: identity, message
// stats, voice stats, favorites, and the flat baseline fields.
type Document struct {
	TenantID string `json:"tenant_id"`
	ActorID  string `json:"actor_id"`

	Messages          int64     `json:"messages"`
	LongestMessage    int64     `json:"longest_message"`
	LastMessageAt     time.Time `json:"last_message_at"`
	StreakDays        int64     `json:"streak_days"`
	StreakUpdatedAt   time.Time `json:"streak_updated_at"`
	ReactionsGiven    int64     `json:"reactions_given"`
	ReactionsReceived int64     `json:"reactions_received"`

	VoiceSeconds        int64           `json:"voice_seconds"`
	ActiveSeconds       int64           `json:"active_seconds"`
	MutedSeconds        int64           `json:"muted_seconds"`
	DeafenedSeconds     int64           `json:"deafened_seconds"`
	SelfMutedSeconds    int64           `json:"self_muted_seconds"`
	SelfDeafenedSeconds int64           `json:"self_deafened_seconds"`
	VoiceSessions       int64           `json:"voice_sessions"`
	ActivePct           decimal.Decimal `json:"active_pct"`
	UnmutedPct          decimal.Decimal `json:"unmuted_pct"`

	Favorites map[string]int64 `json:"favorites"`

	Experience int64 `json:"experience"`
	Currency   int64 `json:"currency"`
	Level      int64 `json:"level"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultDocument returns the fully-shaped default record for an actor with
// no persisted state: every field present at its zero or baseline value.
func DefaultDocument(key ScopeKey, baseline Baseline) *Document {
	return &Document{
		TenantID:   key.TenantID,
		ActorID:    key.ActorID,
		ActivePct:  decimal.Zero,
		UnmutedPct: decimal.Zero,
		Favorites:  map[string]int64{},
		Experience: baseline.Experience,
		Currency:   baseline.Currency,
		Level:      baseline.Level,
	}
}
