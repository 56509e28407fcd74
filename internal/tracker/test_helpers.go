package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/pulse-lab/project-pulse/internal/core/stats"
	"github.com/pulse-lab/project-pulse/internal/core/storage"
)

// InMemoryStatsStore is a test helper that implements storage.StatsStore by
// applying staged updates to in-memory documents with the shared merge code.
type InMemoryStatsStore struct {
	mu   sync.Mutex
	docs map[stats.ScopeKey]*stats.Document

	// Failure injection.
	FailAll    bool            // every actor update fails
	FailActors map[string]bool // per-actor failures, keyed by actor ID
	FetchErr   error           // FetchStreakStates error
	GetErr     error           // GetDocument error

	// Call accounting.
	BulkCalls  int
	BatchSizes []int

	// Block, when set, parks BulkApply until the channel is closed.
	Block chan struct{}

	// AfterBulkApply, when set, runs after each bulk submission. Used to
	// inject events (like a stop signal) between batches of one cycle.
	AfterBulkApply func()
}

func NewInMemoryStatsStore() *InMemoryStatsStore {
	return &InMemoryStatsStore{
		docs: make(map[stats.ScopeKey]*stats.Document),
	}
}

// Seed installs a pre-existing document.
func (s *InMemoryStatsStore) Seed(doc *stats.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[stats.ScopeKey{TenantID: doc.TenantID, ActorID: doc.ActorID}] = doc
}

func (s *InMemoryStatsStore) FetchStreakStates(ctx context.Context, tenantID string, actorIDs []string) (map[string]stats.StreakState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FetchErr != nil {
		return nil, s.FetchErr
	}

	states := make(map[string]stats.StreakState)
	for _, actorID := range actorIDs {
		if doc, ok := s.docs[stats.ScopeKey{TenantID: tenantID, ActorID: actorID}]; ok {
			states[actorID] = stats.StreakState{Days: doc.StreakDays, LastActive: doc.StreakUpdatedAt}
		}
	}
	return states, nil
}

func (s *InMemoryStatsStore) BulkApply(ctx context.Context, updates []stats.ActorUpdate) (storage.BulkResult, error) {
	if s.Block != nil {
		<-s.Block
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.BulkCalls++
	s.BatchSizes = append(s.BatchSizes, len(updates))

	var result storage.BulkResult
	for _, update := range updates {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("bulk apply interrupted: %w", err)
		}
		if s.FailAll || s.FailActors[update.Key.ActorID] {
			result.Failed++
			continue
		}

		doc, ok := s.docs[update.Key]
		if !ok {
			doc = stats.DefaultDocument(update.Key, update.Baseline)
			s.docs[update.Key] = doc
		}
		stats.ApplyUpdate(doc, update)
		result.Applied++
	}

	if s.AfterBulkApply != nil {
		s.AfterBulkApply()
	}
	return result, nil
}

func (s *InMemoryStatsStore) GetDocument(ctx context.Context, tenantID, actorID string) (*stats.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}

	doc, ok := s.docs[stats.ScopeKey{TenantID: tenantID, ActorID: actorID}]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copied := *doc
	copied.Favorites = make(map[string]int64, len(doc.Favorites))
	for label, n := range doc.Favorites {
		copied.Favorites[label] = n
	}
	return &copied, nil
}

// Document returns the stored document for direct assertions, or nil.
func (s *InMemoryStatsStore) Document(tenantID, actorID string) *stats.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[stats.ScopeKey{TenantID: tenantID, ActorID: actorID}]
}
