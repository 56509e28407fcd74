package tracker

import (
	"testing"
	"time"

	"github.com/pulse-lab/project-pulse/internal/cache"
	"github.com/pulse-lab/project-pulse/internal/core/stats"
	"github.com/stretchr/testify/require"
)

func TestIngestor_RecordMessage(t *testing.T) {
	c := cache.New()
	ing := NewIngestor(c)

	ing.RecordMessage("t1", "a1", 120, fixedTime(10))
	ing.RecordMessage("t1", "a1", 80, fixedTime(11))

	snap := c.Swap()
	tally := snap.Messages[stats.ScopeKey{TenantID: "t1", ActorID: "a1"}]
	require.NotNil(t, tally)
	require.Equal(t, int64(2), tally.Count)
	require.Equal(t, int64(120), tally.LongestLength)
}

func TestIngestor_ZeroTimestampDefaultsToNow(t *testing.T) {
	c := cache.New()
	ing := NewIngestor(c)
	ing.nowFn = func() time.Time { return fixedTime(15) }

	ing.RecordMessage("t1", "a1", 10, time.Time{})

	snap := c.Swap()
	tally := snap.Messages[stats.ScopeKey{TenantID: "t1", ActorID: "a1"}]
	require.True(t, fixedTime(15).Equal(tally.LastMessageAt))
}

func TestIngestor_DropsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		record func(*Ingestor)
	}{
		{"empty tenant", func(i *Ingestor) { i.RecordMessage("", "a1", 10, fixedTime(10)) }},
		{"empty actor", func(i *Ingestor) { i.RecordMessage("t1", "", 10, fixedTime(10)) }},
		{"negative length", func(i *Ingestor) { i.RecordMessage("t1", "a1", -1, fixedTime(10)) }},
		{"negative voice duration", func(i *Ingestor) {
			i.RecordVoice("t1", "a1", stats.VoiceSessionMetrics{VoiceSeconds: -5})
		}},
		{"active exceeds voice", func(i *Ingestor) {
			i.RecordVoice("t1", "a1", stats.VoiceSessionMetrics{VoiceSeconds: 10, ActiveSeconds: 20})
		}},
		{"empty reaction scope", func(i *Ingestor) { i.RecordReactionGiven("", "") }},
		{"empty favorite label", func(i *Ingestor) { i.RecordFavorite("t1", "a1", "") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := cache.New()
			tc.record(NewIngestor(c))
			require.True(t, c.Swap().Empty(), "malformed input must be dropped, not stored")
		})
	}
}

func TestIngestor_VoiceAndReactions(t *testing.T) {
	c := cache.New()
	ing := NewIngestor(c)
	key := stats.ScopeKey{TenantID: "t1", ActorID: "a1"}

	ing.RecordVoice("t1", "a1", stats.VoiceSessionMetrics{VoiceSeconds: 300, ActiveSeconds: 120})
	ing.RecordReactionGiven("t1", "a1")
	ing.RecordReactionReceived("t1", "a1")
	ing.RecordReactionReceived("t1", "a1")
	ing.RecordFavorite("t1", "a1", "fire")

	snap := c.Swap()
	require.Equal(t, int64(1), snap.Voice[key].Sessions)
	require.Equal(t, int64(300), snap.Voice[key].VoiceSeconds)
	require.Equal(t, int64(1), snap.ReactionsGiven[key])
	require.Equal(t, int64(2), snap.ReactionsReceived[key])
	require.Equal(t, map[string]int64{"fire": 1}, snap.Favorites[key])
}
