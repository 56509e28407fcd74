// Package httpapi exposes the activity tracker over HTTP: fire-and-forget
// record endpoints feeding the in-memory cache, a snapshot endpoint with
// optional overlay and forced flush, and an operator flush trigger.
package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/pulse-lab/project-pulse/internal/tracker"
)

type Service struct {
	ingestor         *tracker.Ingestor
	reader           *tracker.Reader
	flusher          tracker.Flusher
	maxBodySizeBytes int
}

func NewService(ing *tracker.Ingestor, reader *tracker.Reader, flusher tracker.Flusher, maxBodySizeMB int) *Service {
	if ing == nil {
		panic("httpapi: ingestor must not be nil")
	}
	if reader == nil {
		panic("httpapi: reader must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		ingestor:         ing,
		reader:           reader,
		flusher:          flusher,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the tracker API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	actor := r.Group("/v1/tenants/:tenant_id/actors/:actor_id")
	actor.POST("/messages", s.RecordMessageHandler)
	actor.POST("/voice", s.RecordVoiceHandler)
	actor.POST("/reactions", s.RecordReactionHandler)
	actor.POST("/favorites", s.RecordFavoriteHandler)
	actor.GET("/stats", s.ActorStatsHandler)

	// Operator trigger: run one flush cycle now.
	r.POST("/v1/flush", s.FlushHandler)
}

// Flush runs one synchronous flush cycle, if a flusher is configured.
func (s *Service) Flush(ctx context.Context) error {
	if s.flusher == nil {
		return nil
	}
	return s.flusher.Flush(ctx)
}
