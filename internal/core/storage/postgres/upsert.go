package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/pulse-lab/project-pulse/internal/core/stats"
	"github.com/shopspring/decimal"
)

// statColumns is the canonical column order of the tracked stat fields in
// activity_stats, between the identity columns and the baseline columns.
var statColumns = []string{
	stats.FieldMessages,
	stats.FieldLongestMessage,
	stats.FieldLastMessageAt,
	stats.FieldStreakDays,
	stats.FieldStreakUpdatedAt,
	stats.FieldReactionsGiven,
	stats.FieldReactionsReceived,
	stats.FieldVoiceSeconds,
	stats.FieldActiveSeconds,
	stats.FieldMutedSeconds,
	stats.FieldDeafenedSeconds,
	stats.FieldSelfMutedSeconds,
	stats.FieldSelfDeafenedSeconds,
	stats.FieldVoiceSessions,
	stats.FieldActivePct,
	stats.FieldUnmutedPct,
}

// buildActorUpsert renders one actor's staged directives into a single
// INSERT ... ON CONFLICT statement.
//
// The VALUES list always carries the fully-shaped document: staged fields at
// their cycle value, everything else at its zero/baseline default, so a
// first flush creates the complete record. The DO UPDATE clause names ONLY
// the staged fields, each merged per its policy; unstaged fields are left
// untouched on conflict. That is the default-if-absent rule: the baseline
// shape never competes with a staged directive for the same column.
func buildActorUpsert(update stats.ActorUpdate, now time.Time) (string, []interface{}) {
	staged := make(map[string]stats.FieldDelta, len(update.Fields))
	for _, d := range update.Fields {
		staged[d.Field] = d
	}

	columns := []string{"tenant_id", "actor_id"}
	args := []interface{}{update.Key.TenantID, update.Key.ActorID}
	var setClauses []string

	for _, col := range statColumns {
		columns = append(columns, col)
		if d, ok := staged[col]; ok {
			args = append(args, d.Value)
			setClauses = append(setClauses, conflictClause(col, d.Policy))
		} else {
			args = append(args, zeroValueFor(col))
		}
	}

	columns = append(columns, "experience", "currency", "level", "updated_at")
	args = append(args, update.Baseline.Experience, update.Baseline.Currency, update.Baseline.Level, now)
	setClauses = append(setClauses, "updated_at = EXCLUDED.updated_at")

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`
		INSERT INTO activity_stats (%s)
		VALUES (%s)
		ON CONFLICT (tenant_id, actor_id)
		DO UPDATE SET %s
	`,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(setClauses, ", "),
	)
	return query, args
}

// conflictClause renders one staged field's merge policy as SQL. The store
// applies the policy at write time, so max-merges need no extra read.
func conflictClause(col string, policy stats.MergePolicy) string {
	switch policy {
	case stats.PolicyIncrement:
		return fmt.Sprintf("%s = activity_stats.%s + EXCLUDED.%s", col, col, col)
	case stats.PolicyMax:
		return fmt.Sprintf("%s = GREATEST(activity_stats.%s, EXCLUDED.%s)", col, col, col)
	default:
		return fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}
}

// zeroValueFor returns the SQL default for an unstaged stat column.
// Timestamps insert NULL (meaning "never"); percentages are NUMERIC zero.
func zeroValueFor(col string) interface{} {
	switch col {
	case stats.FieldLastMessageAt, stats.FieldStreakUpdatedAt:
		return nil
	case stats.FieldActivePct, stats.FieldUnmutedPct:
		return decimal.Zero
	default:
		return int64(0)
	}
}
