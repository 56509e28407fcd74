package storage

import (
	"context"
	"errors"

	"github.com/pulse-lab/project-pulse/internal/core/stats"
)

// ErrNotFound is returned when no persisted document exists for an actor.
var ErrNotFound = errors.New("activity document not found")

// BulkResult summarizes one unordered bulk submission. Applied and Failed
// count per-actor operations, not rows.
type BulkResult struct {
	Applied int
	Failed  int
}

// StatsStore is the persistent-store boundary of the flush engine and the
// overlay read path. Implementations translate merge-policy directives into
// store-native upserts.
//
// Contract: BulkApply is unordered — one actor's failure must not block the
// other actors in the batch. A non-nil error means the batch could not be
// submitted at all; per-actor failures are reported through BulkResult.
type StatsStore interface {
	// FetchStreakStates bulk-reads the prior streak fields for a set of
	// actors in one round trip per tenant. Actors without a persisted
	// document are simply absent from the result map.
	FetchStreakStates(ctx context.Context, tenantID string, actorIDs []string) (map[string]stats.StreakState, error)

	// BulkApply submits one upsert per staged actor update, unordered.
	BulkApply(ctx context.Context, updates []stats.ActorUpdate) (BulkResult, error)

	// GetDocument reads one actor's persisted document, favorites included.
	// Returns ErrNotFound when the actor has never been flushed.
	GetDocument(ctx context.Context, tenantID, actorID string) (*stats.Document, error)
}
