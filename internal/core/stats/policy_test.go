package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testKey() ScopeKey {
	return ScopeKey{TenantID: "tenant-1", ActorID: "actor-1"}
}

func fieldByName(t *testing.T, update ActorUpdate, field string) FieldDelta {
	t.Helper()
	for _, d := range update.Fields {
		if d.Field == field {
			return d
		}
	}
	t.Fatalf("field %q not staged", field)
	return FieldDelta{}
}

func hasField(update ActorUpdate, field string) bool {
	for _, d := range update.Fields {
		if d.Field == field {
			return true
		}
	}
	return false
}

func TestStageActorUpdate_MessagesOnly(t *testing.T) {
	now := day(2026, time.March, 2, 10)
	lastMsg := now.Add(-time.Minute)

	update := StageActorUpdate(
		testKey(),
		&MessageTally{Count: 5, LongestLength: 240, LastMessageAt: lastMsg},
		nil, 0, 0, nil,
		StreakState{}, now, time.UTC, Baseline{},
	)

	d := fieldByName(t, update, FieldMessages)
	require.Equal(t, PolicyIncrement, d.Policy)
	require.Equal(t, int64(5), d.Value)

	d = fieldByName(t, update, FieldLongestMessage)
	require.Equal(t, PolicyMax, d.Policy)
	require.Equal(t, int64(240), d.Value)

	d = fieldByName(t, update, FieldLastMessageAt)
	require.Equal(t, PolicyOverwrite, d.Policy)
	require.True(t, lastMsg.Equal(d.Value.(time.Time)))

	// Message activity advances the streak.
	d = fieldByName(t, update, FieldStreakDays)
	require.Equal(t, PolicyOverwrite, d.Policy)
	require.Equal(t, int64(1), d.Value)

	require.False(t, hasField(update, FieldVoiceSeconds))
	require.False(t, hasField(update, FieldReactionsGiven))
}

func TestStageActorUpdate_ReactionsDoNotAdvanceStreak(t *testing.T) {
	now := day(2026, time.March, 2, 10)

	update := StageActorUpdate(
		testKey(),
		nil, nil, 3, 2,
		map[string]int64{"thumbsup": 4},
		StreakState{Days: 9, LastActive: now.Add(-48 * time.Hour)},
		now, time.UTC, Baseline{},
	)

	require.Equal(t, int64(3), fieldByName(t, update, FieldReactionsGiven).Value)
	require.Equal(t, int64(2), fieldByName(t, update, FieldReactionsReceived).Value)
	require.Equal(t, map[string]int64{"thumbsup": 4}, update.Favorites)

	require.False(t, hasField(update, FieldStreakDays))
	require.False(t, hasField(update, FieldStreakUpdatedAt))
}

func TestStageActorUpdate_VoiceAdvancesStreak(t *testing.T) {
	now := day(2026, time.March, 3, 10)
	prior := StreakState{Days: 4, LastActive: day(2026, time.March, 2, 18)}

	update := StageActorUpdate(
		testKey(),
		nil,
		&VoiceTally{VoiceSeconds: 600, ActiveSeconds: 300, Sessions: 2,
			ActivePct: decimal.NewFromInt(50), UnmutedPct: decimal.NewFromInt(100)},
		0, 0, nil, prior, now, time.UTC, Baseline{},
	)

	require.Equal(t, int64(600), fieldByName(t, update, FieldVoiceSeconds).Value)
	require.Equal(t, PolicyIncrement, fieldByName(t, update, FieldVoiceSessions).Policy)
	require.Equal(t, PolicyOverwrite, fieldByName(t, update, FieldActivePct).Policy)
	require.Equal(t, int64(5), fieldByName(t, update, FieldStreakDays).Value)
}

func TestStageActorUpdate_EmptyDeltasStageNothing(t *testing.T) {
	update := StageActorUpdate(
		testKey(),
		&MessageTally{}, &VoiceTally{}, 0, 0, nil,
		StreakState{}, day(2026, time.March, 2, 10), time.UTC, Baseline{},
	)
	require.Empty(t, update.Fields)
	require.Empty(t, update.Favorites)
}

func TestApplyUpdate_MergesPerPolicy(t *testing.T) {
	now := day(2026, time.March, 3, 12)
	doc := &Document{
		TenantID:       "tenant-1",
		ActorID:        "actor-1",
		Messages:       100,
		LongestMessage: 500,
		LastMessageAt:  day(2026, time.March, 2, 9),
		StreakDays:     4,
		VoiceSeconds:   1000,
		Favorites:      map[string]int64{"thumbsup": 2},
	}

	ApplyUpdate(doc, ActorUpdate{
		Key: testKey(),
		Fields: []FieldDelta{
			{FieldMessages, PolicyIncrement, int64(5)},
			{FieldLongestMessage, PolicyMax, int64(240)},
			{FieldLastMessageAt, PolicyOverwrite, now},
			{FieldStreakDays, PolicyOverwrite, int64(5)},
			{FieldVoiceSeconds, PolicyIncrement, int64(600)},
			{FieldActivePct, PolicyOverwrite, decimal.NewFromInt(42)},
		},
		Favorites: map[string]int64{"thumbsup": 3, "fire": 1},
	})

	require.Equal(t, int64(105), doc.Messages)
	require.Equal(t, int64(500), doc.LongestMessage, "max keeps the larger prior value")
	require.True(t, now.Equal(doc.LastMessageAt))
	require.Equal(t, int64(5), doc.StreakDays)
	require.Equal(t, int64(1600), doc.VoiceSeconds)
	require.True(t, decimal.NewFromInt(42).Equal(doc.ActivePct))
	require.Equal(t, map[string]int64{"thumbsup": 5, "fire": 1}, doc.Favorites)
}

func TestApplyUpdate_OverwriteTimestampNeverGoesBackward(t *testing.T) {
	newer := day(2026, time.March, 5, 12)
	doc := &Document{LastMessageAt: newer}

	ApplyUpdate(doc, ActorUpdate{
		Fields: []FieldDelta{
			{FieldLastMessageAt, PolicyOverwrite, day(2026, time.March, 4, 12)},
		},
	})
	require.True(t, newer.Equal(doc.LastMessageAt))
}

// Applying the same staged update to an in-memory copy of the document must
// land on the exact state a flush of those directives would persist. The
// overlay read path relies on this equivalence.
func TestApplyUpdate_FreshDocumentFromBaseline(t *testing.T) {
	now := day(2026, time.March, 2, 10)
	baseline := Baseline{Experience: 100, Currency: 50, Level: 1}
	doc := DefaultDocument(testKey(), baseline)

	update := StageActorUpdate(
		testKey(),
		&MessageTally{Count: 2, LongestLength: 80, LastMessageAt: now},
		nil, 1, 0, map[string]int64{"wave": 1},
		StreakState{}, now, time.UTC, baseline,
	)
	ApplyUpdate(doc, update)

	require.Equal(t, int64(2), doc.Messages)
	require.Equal(t, int64(80), doc.LongestMessage)
	require.Equal(t, int64(1), doc.StreakDays)
	require.Equal(t, int64(1), doc.ReactionsGiven)
	require.Equal(t, map[string]int64{"wave": 1}, doc.Favorites)
	require.Equal(t, int64(100), doc.Experience)
	require.Equal(t, int64(50), doc.Currency)
	require.Equal(t, int64(1), doc.Level)
	require.Zero(t, doc.VoiceSeconds)
}
