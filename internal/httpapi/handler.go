package httpapi

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	httperr "github.com/pulse-lab/project-pulse/internal/core/errors"
	"github.com/pulse-lab/project-pulse/internal/core/stats"
	"github.com/pulse-lab/project-pulse/internal/tracker"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgInvalidPath    = "Invalid path parameters"
	msgFlushFailed    = "Flush failed"
)

// apiError carries the structured HTTP error shape from a helper back to the
// handler. Helpers return this instead of writing to gin.Context directly,
// keeping them decoupled from HTTP.
type apiError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *apiError) Error() string {
	return e.message
}

func writeError(c *gin.Context, err *apiError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}

type actorScope struct {
	TenantID string `uri:"tenant_id" binding:"required"`
	ActorID  string `uri:"actor_id" binding:"required"`
}

func bindScope(c *gin.Context) (actorScope, *apiError) {
	var scope actorScope
	if err := c.ShouldBindUri(&scope); err != nil {
		return scope, &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidPath,
			details:    err.Error(),
		}
	}
	return scope, nil
}

// bindBody reads the size-limited request body and binds it into dst.
func (s *Service) bindBody(c *gin.Context, dst interface{}) *apiError {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return &apiError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return &apiError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if err := c.ShouldBindJSON(dst); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}
	return nil
}

// RecordMessageHandler handles POST /v1/tenants/:tenant_id/actors/:actor_id/messages
func (s *Service) RecordMessageHandler(c *gin.Context) {
	scope, apiErr := bindScope(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	var body struct {
		Length     int64     `json:"length"`
		OccurredAt time.Time `json:"occurred_at"`
	}
	if apiErr := s.bindBody(c, &body); apiErr != nil {
		writeError(c, apiErr)
		return
	}

	s.ingestor.RecordMessage(scope.TenantID, scope.ActorID, body.Length, body.OccurredAt)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// RecordVoiceHandler handles POST /v1/tenants/:tenant_id/actors/:actor_id/voice
// The body is one finished voice session's per-state durations in seconds.
func (s *Service) RecordVoiceHandler(c *gin.Context) {
	scope, apiErr := bindScope(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	var body struct {
		VoiceSeconds        int64 `json:"voice_seconds"`
		ActiveSeconds       int64 `json:"active_seconds"`
		MutedSeconds        int64 `json:"muted_seconds"`
		DeafenedSeconds     int64 `json:"deafened_seconds"`
		SelfMutedSeconds    int64 `json:"self_muted_seconds"`
		SelfDeafenedSeconds int64 `json:"self_deafened_seconds"`
	}
	if apiErr := s.bindBody(c, &body); apiErr != nil {
		writeError(c, apiErr)
		return
	}

	s.ingestor.RecordVoice(scope.TenantID, scope.ActorID, stats.VoiceSessionMetrics{
		VoiceSeconds:        body.VoiceSeconds,
		ActiveSeconds:       body.ActiveSeconds,
		MutedSeconds:        body.MutedSeconds,
		DeafenedSeconds:     body.DeafenedSeconds,
		SelfMutedSeconds:    body.SelfMutedSeconds,
		SelfDeafenedSeconds: body.SelfDeafenedSeconds,
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// RecordReactionHandler handles POST /v1/tenants/:tenant_id/actors/:actor_id/reactions
// Direction is "given" (the actor reacted) or "received" (the actor's message
// was reacted to).
func (s *Service) RecordReactionHandler(c *gin.Context) {
	scope, apiErr := bindScope(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	var body struct {
		Direction string `json:"direction" binding:"required,oneof=given received"`
	}
	if apiErr := s.bindBody(c, &body); apiErr != nil {
		writeError(c, apiErr)
		return
	}

	if body.Direction == "given" {
		s.ingestor.RecordReactionGiven(scope.TenantID, scope.ActorID)
	} else {
		s.ingestor.RecordReactionReceived(scope.TenantID, scope.ActorID)
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// RecordFavoriteHandler handles POST /v1/tenants/:tenant_id/actors/:actor_id/favorites
func (s *Service) RecordFavoriteHandler(c *gin.Context) {
	scope, apiErr := bindScope(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	var body struct {
		Label string `json:"label" binding:"required"`
	}
	if apiErr := s.bindBody(c, &body); apiErr != nil {
		writeError(c, apiErr)
		return
	}

	s.ingestor.RecordFavorite(scope.TenantID, scope.ActorID, body.Label)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// ActorStatsHandler handles GET /v1/tenants/:tenant_id/actors/:actor_id/stats
// Query parameters: flush (force a flush first), overlay (merge unflushed
// deltas into the response; defaults to true).
func (s *Service) ActorStatsHandler(c *gin.Context) {
	scope, apiErr := bindScope(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	var query struct {
		Flush   bool  `form:"flush"`
		Overlay *bool `form:"overlay"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		writeError(c, &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Invalid query parameters",
			details:    err.Error(),
		})
		return
	}

	opts := tracker.SnapshotOptions{
		ForceFlush:     query.Flush,
		IncludeOverlay: query.Overlay == nil || *query.Overlay,
	}
	doc := s.reader.ActorSnapshot(c.Request.Context(), scope.TenantID, scope.ActorID, opts)
	c.JSON(http.StatusOK, doc)
}

// FlushHandler handles POST /v1/flush
func (s *Service) FlushHandler(c *gin.Context) {
	if err := s.Flush(c.Request.Context()); err != nil {
		slog.Error("Operator-triggered flush failed", "error", err)
		writeError(c, &apiError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgFlushFailed,
			details:    err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "flushed"})
}
