package stats

import (
	"time"

	"github.com/shopspring/decimal"
)

// MergePolicy is the rule for combining a staged value with the prior
// persisted value. The flush path renders these to SQL at the storage
// boundary; the overlay read path applies them arithmetically in memory.
// Both consume the same staged directives, which is what keeps an overlay
// read equal to the document the next flush would produce.
type MergePolicy int

const (
	// PolicyIncrement adds the staged delta onto the persisted value.
	PolicyIncrement MergePolicy = iota
	// PolicyOverwrite replaces the persisted value (last known value wins).
	PolicyOverwrite
	// PolicyMax keeps the greater of the persisted and staged values.
	PolicyMax
)

// Field names double as activity_stats column names. The staging code, the
// SQL generator and the overlay merge all key off these constants.
const (
	FieldMessages            = "messages"
	FieldLongestMessage      = "longest_message"
	FieldLastMessageAt       = "last_message_at"
	FieldStreakDays          = "streak_days"
	FieldStreakUpdatedAt     = "streak_updated_at"
	FieldReactionsGiven      = "reactions_given"
	FieldReactionsReceived   = "reactions_received"
	FieldVoiceSeconds        = "voice_seconds"
	FieldActiveSeconds       = "active_seconds"
	FieldMutedSeconds        = "muted_seconds"
	FieldDeafenedSeconds     = "deafened_seconds"
	FieldSelfMutedSeconds    = "self_muted_seconds"
	FieldSelfDeafenedSeconds = "self_deafened_seconds"
	FieldVoiceSessions       = "voice_sessions"
	FieldActivePct           = "active_pct"
	FieldUnmutedPct          = "unmuted_pct"
)

// FieldDelta is one staged update directive: a field, its merge policy and
// the cycle's value. Value is int64, time.Time or decimal.Decimal depending
// on the field.
type FieldDelta struct {
	Field  string
	Policy MergePolicy
	Value  interface{}
}

// ActorUpdate carries everything one flush cycle stages for one actor.
// Fields not named in Fields or Favorites are covered by the baseline
// default-if-absent shape and must not be modified on conflict.
type ActorUpdate struct {
	Key       ScopeKey
	Fields    []FieldDelta
	Favorites map[string]int64
	Baseline  Baseline
}

// StageActorUpdate builds the per-actor directive set from this cycle's
// in-memory deltas. Nil tallies and zero counters stage nothing for their
// family. The streak is recomputed only when the actor had message or voice
// activity this cycle, from the prefetched prior state.
func StageActorUpdate(
	key ScopeKey,
	msg *MessageTally,
	voice *VoiceTally,
	reactionsGiven int64,
	reactionsReceived int64,
	favorites map[string]int64,
	priorStreak StreakState,
	now time.Time,
	loc *time.Location,
	baseline Baseline,
) ActorUpdate {
	update := ActorUpdate{Key: key, Baseline: baseline}

	if msg != nil && msg.Count > 0 {
		update.Fields = append(update.Fields,
			FieldDelta{FieldMessages, PolicyIncrement, msg.Count},
			FieldDelta{FieldLongestMessage, PolicyMax, msg.LongestLength},
			FieldDelta{FieldLastMessageAt, PolicyOverwrite, msg.LastMessageAt},
		)
	}

	if voice != nil && voice.Sessions > 0 {
		update.Fields = append(update.Fields,
			FieldDelta{FieldVoiceSeconds, PolicyIncrement, voice.VoiceSeconds},
			FieldDelta{FieldActiveSeconds, PolicyIncrement, voice.ActiveSeconds},
			FieldDelta{FieldMutedSeconds, PolicyIncrement, voice.MutedSeconds},
			FieldDelta{FieldDeafenedSeconds, PolicyIncrement, voice.DeafenedSeconds},
			FieldDelta{FieldSelfMutedSeconds, PolicyIncrement, voice.SelfMutedSeconds},
			FieldDelta{FieldSelfDeafenedSeconds, PolicyIncrement, voice.SelfDeafenedSeconds},
			FieldDelta{FieldVoiceSessions, PolicyIncrement, voice.Sessions},
			FieldDelta{FieldActivePct, PolicyOverwrite, voice.ActivePct},
			FieldDelta{FieldUnmutedPct, PolicyOverwrite, voice.UnmutedPct},
		)
	}

	if reactionsGiven > 0 {
		update.Fields = append(update.Fields, FieldDelta{FieldReactionsGiven, PolicyIncrement, reactionsGiven})
	}
	if reactionsReceived > 0 {
		update.Fields = append(update.Fields, FieldDelta{FieldReactionsReceived, PolicyIncrement, reactionsReceived})
	}

	if len(favorites) > 0 {
		update.Favorites = make(map[string]int64, len(favorites))
		for label, count := range favorites {
			update.Favorites[label] = count
		}
	}

	hadMessage := msg != nil && msg.Count > 0
	hadVoice := voice != nil && voice.Sessions > 0
	if hadMessage || hadVoice {
		next := AdvanceStreak(priorStreak, now, loc)
		update.Fields = append(update.Fields,
			FieldDelta{FieldStreakDays, PolicyOverwrite, next.Days},
			FieldDelta{FieldStreakUpdatedAt, PolicyOverwrite, next.LastActive},
		)
	}

	return update
}

// ApplyUpdate folds a staged update into a document in memory, producing
// exactly what the persisted record would look like after the next flush.
// Overwrite-policy timestamps replace the stored value only when newer.
func ApplyUpdate(doc *Document, update ActorUpdate) {
	for _, d := range update.Fields {
		applyFieldDelta(doc, d)
	}
	if len(update.Favorites) > 0 {
		if doc.Favorites == nil {
			doc.Favorites = make(map[string]int64, len(update.Favorites))
		}
		for label, count := range update.Favorites {
			doc.Favorites[label] += count
		}
	}
}

func applyFieldDelta(doc *Document, d FieldDelta) {
	switch d.Field {
	case FieldMessages:
		doc.Messages += d.Value.(int64)
	case FieldLongestMessage:
		doc.LongestMessage = maxInt64(doc.LongestMessage, d.Value.(int64))
	case FieldLastMessageAt:
		doc.LastMessageAt = laterTime(doc.LastMessageAt, d.Value.(time.Time))
	case FieldStreakDays:
		doc.StreakDays = d.Value.(int64)
	case FieldStreakUpdatedAt:
		doc.StreakUpdatedAt = laterTime(doc.StreakUpdatedAt, d.Value.(time.Time))
	case FieldReactionsGiven:
		doc.ReactionsGiven += d.Value.(int64)
	case FieldReactionsReceived:
		doc.ReactionsReceived += d.Value.(int64)
	case FieldVoiceSeconds:
		doc.VoiceSeconds += d.Value.(int64)
	case FieldActiveSeconds:
		doc.ActiveSeconds += d.Value.(int64)
	case FieldMutedSeconds:
		doc.MutedSeconds += d.Value.(int64)
	case FieldDeafenedSeconds:
		doc.DeafenedSeconds += d.Value.(int64)
	case FieldSelfMutedSeconds:
		doc.SelfMutedSeconds += d.Value.(int64)
	case FieldSelfDeafenedSeconds:
		doc.SelfDeafenedSeconds += d.Value.(int64)
	case FieldVoiceSessions:
		doc.VoiceSessions += d.Value.(int64)
	case FieldActivePct:
		doc.ActivePct = d.Value.(decimal.Decimal)
	case FieldUnmutedPct:
		doc.UnmutedPct = d.Value.(decimal.Decimal)
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func laterTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
