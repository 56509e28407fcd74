package postgres

// SQL for the activity stats store. The per-actor merge upsert is generated
// at runtime from staged merge-policy directives; see upsert.go.

const (
	// queryFetchStreakStates bulk-reads the streak comparison fields for one
	// tenant's active actor set. One round trip per tenant instead of one
	// per actor.
	queryFetchStreakStates = `
		SELECT actor_id, streak_days, streak_updated_at
		FROM activity_stats
		WHERE tenant_id = $1
		  AND actor_id = ANY($2)
	`

	// queryGetDocument reads one actor's full persisted document.
	queryGetDocument = `
		SELECT
			tenant_id, actor_id,
			messages, longest_message, last_message_at,
			streak_days, streak_updated_at,
			reactions_given, reactions_received,
			voice_seconds, active_seconds, muted_seconds, deafened_seconds,
			self_muted_seconds, self_deafened_seconds, voice_sessions,
			active_pct, unmuted_pct,
			experience, currency, level,
			updated_at
		FROM activity_stats
		WHERE tenant_id = $1
		  AND actor_id = $2
	`

	// queryGetFavorites reads an actor's emoji favorite counters.
	queryGetFavorites = `
		SELECT label, count
		FROM actor_favorites
		WHERE tenant_id = $1
		  AND actor_id = $2
	`

	// queryUpsertFavorite increments one emoji favorite counter.
	// Favorite counts are increment-only, so the merge policy is fixed.
	queryUpsertFavorite = `
		INSERT INTO actor_favorites (tenant_id, actor_id, label, count, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, actor_id, label)
		DO UPDATE SET
			count      = actor_favorites.count + EXCLUDED.count,
			updated_at = EXCLUDED.updated_at
	`
)
