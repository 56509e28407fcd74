package postgres

import (
	"database/sql"
	"fmt"

	"github.com/pulse-lab/project-pulse/internal/core/stats"
	"github.com/shopspring/decimal"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanDocumentRow scans an activity_stats row into a Document.
// Nullable timestamp columns map to the zero time ("never"); NUMERIC
// percentages round-trip through strings into exact decimals.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanDocumentRow(row scanner) (*stats.Document, error) {
	var (
		doc             stats.Document
		lastMessageAt   sql.NullTime
		streakUpdatedAt sql.NullTime
		activePctStr    string
		unmutedPctStr   string
	)

	err := row.Scan(
		&doc.TenantID,
		&doc.ActorID,
		&doc.Messages,
		&doc.LongestMessage,
		&lastMessageAt,
		&doc.StreakDays,
		&streakUpdatedAt,
		&doc.ReactionsGiven,
		&doc.ReactionsReceived,
		&doc.VoiceSeconds,
		&doc.ActiveSeconds,
		&doc.MutedSeconds,
		&doc.DeafenedSeconds,
		&doc.SelfMutedSeconds,
		&doc.SelfDeafenedSeconds,
		&doc.VoiceSessions,
		&activePctStr,
		&unmutedPctStr,
		&doc.Experience,
		&doc.Currency,
		&doc.Level,
		&doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document row: %w", err)
	}

	if lastMessageAt.Valid {
		doc.LastMessageAt = lastMessageAt.Time
	}
	if streakUpdatedAt.Valid {
		doc.StreakUpdatedAt = streakUpdatedAt.Time
	}

	doc.ActivePct, err = decimal.NewFromString(activePctStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse active_pct %q: %w", activePctStr, err)
	}
	doc.UnmutedPct, err = decimal.NewFromString(unmutedPctStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unmuted_pct %q: %w", unmutedPctStr, err)
	}

	return &doc, nil
}
