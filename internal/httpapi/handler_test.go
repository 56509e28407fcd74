package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pulse-lab/project-pulse/internal/cache"
	"github.com/pulse-lab/project-pulse/internal/core/stats"
	"github.com/pulse-lab/project-pulse/internal/tracker"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *gin.Engine
	cache  *cache.AggregationCache
	store  *tracker.InMemoryStatsStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c := cache.New()
	store := tracker.NewInMemoryStatsStore()
	engine := tracker.NewFlushEngine(c, store, nil, 0, time.UTC)
	scheduler := tracker.NewScheduler(time.Hour, engine)
	reader := tracker.NewReader(c, store, nil, scheduler, time.UTC)
	svc := NewService(tracker.NewIngestor(c), reader, scheduler, 1)

	router := gin.New()
	svc.RegisterRoutes(router)
	return &testEnv{router: router, cache: c, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader([]byte("{}"))
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRecordMessageHandler_Accepted(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/tenants/t1/actors/a1/messages",
		`{"length": 120, "occurred_at": "2026-03-02T10:00:00Z"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	deltas := env.cache.PeekActor(stats.ScopeKey{TenantID: "t1", ActorID: "a1"})
	require.NotNil(t, deltas.Messages)
	require.Equal(t, int64(1), deltas.Messages.Count)
	require.Equal(t, int64(120), deltas.Messages.LongestLength)
}

func TestRecordMessageHandler_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/tenants/t1/actors/a1/messages", `{"length": `)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_json")
}

func TestRecordMessageHandler_OversizedBody(t *testing.T) {
	env := newTestEnv(t)

	huge := `{"length": 1, "pad": "` + strings.Repeat("x", 2*1024*1024) + `"}`
	w := env.do(t, http.MethodPost, "/v1/tenants/t1/actors/a1/messages", huge)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRecordVoiceHandler_Accepted(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/tenants/t1/actors/a1/voice",
		`{"voice_seconds": 300, "active_seconds": 120, "muted_seconds": 30}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	deltas := env.cache.PeekActor(stats.ScopeKey{TenantID: "t1", ActorID: "a1"})
	require.NotNil(t, deltas.Voice)
	require.Equal(t, int64(300), deltas.Voice.VoiceSeconds)
	require.Equal(t, int64(1), deltas.Voice.Sessions)
}

func TestRecordReactionHandler_Directions(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusAccepted,
		env.do(t, http.MethodPost, "/v1/tenants/t1/actors/a1/reactions", `{"direction": "given"}`).Code)
	require.Equal(t, http.StatusAccepted,
		env.do(t, http.MethodPost, "/v1/tenants/t1/actors/a1/reactions", `{"direction": "received"}`).Code)

	deltas := env.cache.PeekActor(stats.ScopeKey{TenantID: "t1", ActorID: "a1"})
	require.Equal(t, int64(1), deltas.ReactionsGiven)
	require.Equal(t, int64(1), deltas.ReactionsReceived)
}

func TestRecordReactionHandler_InvalidDirection(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/tenants/t1/actors/a1/reactions", `{"direction": "sideways"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordFavoriteHandler(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusAccepted,
		env.do(t, http.MethodPost, "/v1/tenants/t1/actors/a1/favorites", `{"label": "fire"}`).Code)
	require.Equal(t, http.StatusBadRequest,
		env.do(t, http.MethodPost, "/v1/tenants/t1/actors/a1/favorites", `{}`).Code,
		"missing label is rejected")

	deltas := env.cache.PeekActor(stats.ScopeKey{TenantID: "t1", ActorID: "a1"})
	require.Equal(t, map[string]int64{"fire": 1}, deltas.Favorites)
}

func TestActorStatsHandler_OverlayByDefault(t *testing.T) {
	env := newTestEnv(t)
	env.store.Seed(&stats.Document{TenantID: "t1", ActorID: "a1", Messages: 40, Favorites: map[string]int64{}})
	env.cache.AddMessage(stats.ScopeKey{TenantID: "t1", ActorID: "a1"}, 100,
		time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))

	w := env.do(t, http.MethodGet, "/v1/tenants/t1/actors/a1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc stats.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Equal(t, int64(41), doc.Messages, "overlay merges the unflushed delta")

	w = env.do(t, http.MethodGet, "/v1/tenants/t1/actors/a1/stats?overlay=false", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Equal(t, int64(40), doc.Messages, "overlay=false serves the persisted state only")
}

func TestActorStatsHandler_UnknownActorFullyShaped(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/tenants/t1/actors/ghost/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ghost", body["actor_id"])
	require.EqualValues(t, 0, body["messages"])
	require.NotNil(t, body["favorites"], "favorites is an object, never null")
}

func TestActorStatsHandler_ForceFlush(t *testing.T) {
	env := newTestEnv(t)
	env.cache.AddMessage(stats.ScopeKey{TenantID: "t1", ActorID: "a1"}, 100,
		time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC))

	w := env.do(t, http.MethodGet, "/v1/tenants/t1/actors/a1/stats?flush=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.store.Document("t1", "a1"), "flush=true persists before answering")
}

func TestFlushHandler(t *testing.T) {
	env := newTestEnv(t)
	env.cache.AddReactionGiven(stats.ScopeKey{TenantID: "t1", ActorID: "a1"})

	w := env.do(t, http.MethodPost, "/v1/flush", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.store.Document("t1", "a1"))
}

func TestFlushHandler_StoreOutage(t *testing.T) {
	env := newTestEnv(t)
	env.store.FailAll = true
	env.cache.AddReactionGiven(stats.ScopeKey{TenantID: "t1", ActorID: "a1"})

	w := env.do(t, http.MethodPost, "/v1/flush", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "internal_error")
}
