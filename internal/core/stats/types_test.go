package stats

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestVoiceSessionMetrics_Percentages(t *testing.T) {
	m := VoiceSessionMetrics{
		VoiceSeconds:     600,
		ActiveSeconds:    240,
		MutedSeconds:     60,
		SelfMutedSeconds: 120,
	}
	require.True(t, decimal.NewFromInt(40).Equal(m.ActivePct()))
	require.True(t, decimal.NewFromInt(70).Equal(m.UnmutedPct()))
}

func TestVoiceSessionMetrics_ZeroVoiceTime(t *testing.T) {
	m := VoiceSessionMetrics{VoiceSeconds: 0, ActiveSeconds: 0}
	require.True(t, m.ActivePct().IsZero())
	require.True(t, m.UnmutedPct().IsZero())
}

func TestVoiceSessionMetrics_UnmutedFlooredAtZero(t *testing.T) {
	// Muted time can exceed voice time in degenerate producer reports.
	m := VoiceSessionMetrics{VoiceSeconds: 100, MutedSeconds: 80, SelfMutedSeconds: 80}
	require.True(t, m.UnmutedPct().IsZero())
}

func TestRunningMean(t *testing.T) {
	// Sessions at 80%, 60%, 70% must average to 70%.
	avg := RunningMean(decimal.Zero, 1, decimal.NewFromInt(80))
	require.True(t, decimal.NewFromInt(80).Equal(avg))

	avg = RunningMean(avg, 2, decimal.NewFromInt(60))
	require.True(t, decimal.NewFromInt(70).Equal(avg))

	avg = RunningMean(avg, 3, decimal.NewFromInt(70))
	require.True(t, decimal.NewFromInt(70).Equal(avg))
}

func TestDefaultDocument_FullyShaped(t *testing.T) {
	doc := DefaultDocument(testKey(), Baseline{Experience: 100, Currency: 50, Level: 1})

	require.Equal(t, "tenant-1", doc.TenantID)
	require.Equal(t, "actor-1", doc.ActorID)
	require.NotNil(t, doc.Favorites)
	require.Empty(t, doc.Favorites)
	require.Zero(t, doc.Messages)
	require.Zero(t, doc.StreakDays)
	require.True(t, doc.ActivePct.IsZero())
	require.Equal(t, int64(100), doc.Experience)
	require.Equal(t, int64(50), doc.Currency)
	require.Equal(t, int64(1), doc.Level)
}
