// Package api exposes the micro-blog engine over HTTP: user and post
// mutations, the three read queries, and cache administration. Responses
// are JSON; engine errors map to status codes via pkg/errors.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/microtrend-io/microtrend/internal/analytics"
	"github.com/microtrend-io/microtrend/internal/cache"
	"github.com/microtrend-io/microtrend/internal/engine"
	apperrors "github.com/microtrend-io/microtrend/pkg/errors"
	"github.com/microtrend-io/microtrend/pkg/logger"
	"github.com/microtrend-io/microtrend/pkg/metrics"
)

// Handler serves the engine's operations over HTTP. cache, collector,
// stats, and metrics are optional; a nil value disables the corresponding
// concern.
type Handler struct {
	engine        *engine.Engine
	cache         *cache.QueryCache
	collector     *analytics.Collector
	stats         *analytics.Handler
	metrics       *metrics.Metrics
	trendingLimit int
	logger        *slog.Logger
}

// New creates a Handler. trendingLimit caps trending responses when the
// request carries no explicit limit; zero means unlimited.
func New(eng *engine.Engine, queryCache *cache.QueryCache, collector *analytics.Collector, stats *analytics.Handler, m *metrics.Metrics, trendingLimit int) *Handler {
	return &Handler{
		engine:        eng,
		cache:         queryCache,
		collector:     collector,
		stats:         stats,
		metrics:       m,
		trendingLimit: trendingLimit,
		logger:        logger.WithComponent("api-handler"),
	}
}

// Register wires all API routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/users", h.AddUser)
	mux.HandleFunc("DELETE /api/v1/users/{name}", h.DeleteUser)
	mux.HandleFunc("POST /api/v1/posts", h.AddPost)
	mux.HandleFunc("GET /api/v1/users/{name}/posts", h.UserPosts)
	mux.HandleFunc("GET /api/v1/topics/{topic}/posts", h.TopicPosts)
	mux.HandleFunc("GET /api/v1/trending", h.Trending)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	if h.stats != nil {
		mux.HandleFunc("GET /api/v1/analytics", h.stats.Stats)
	}
}

type addUserRequest struct {
	UserName string `json:"user_name"`
}

type addPostRequest struct {
	UserName  string `json:"user_name"`
	Text      string `json:"text"`
	Timestamp uint64 `json:"timestamp"`
}

// AddUser registers a user. Duplicates answer 409.
func (h *Handler) AddUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	var req addUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserName) == "" {
		h.writeError(w, http.StatusBadRequest, "user_name is required")
		return
	}

	if err := h.engine.AddUser(req.UserName); err != nil {
		h.failMutation(w, log, "add_user", err)
		return
	}
	h.afterMutation(r, "add_user")
	h.track(analytics.IngestEvent{
		Type:      analytics.EventUserAdded,
		User:      req.UserName,
		Source:    "http",
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	})
	h.writeJSON(w, http.StatusCreated, map[string]string{"user_name": req.UserName})
}

// DeleteUser removes a user and cascades over its posts. Unknown users
// answer 404.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())
	name := r.PathValue("name")

	removed, err := h.engine.DeleteUser(name)
	if err != nil {
		h.failMutation(w, log, "delete_user", err)
		return
	}
	if h.metrics != nil {
		h.metrics.CascadeDeletedPosts.Add(float64(removed))
	}
	h.afterMutation(r, "delete_user")
	h.track(analytics.IngestEvent{
		Type:         analytics.EventUserDeleted,
		User:         name,
		RemovedPosts: removed,
		Source:       "http",
		LatencyMs:    time.Since(start).Milliseconds(),
		Timestamp:    time.Now().UTC(),
	})
	w.WriteHeader(http.StatusNoContent)
}

// AddPost ingests a post for a registered user and returns its ID.
func (h *Handler) AddPost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	var req addPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserName) == "" {
		h.writeError(w, http.StatusBadRequest, "user_name is required")
		return
	}

	id, err := h.engine.AddPost(req.UserName, req.Text, req.Timestamp)
	if err != nil {
		h.failMutation(w, log, "add_post", err)
		return
	}
	topicCount := 0
	if post, err := h.engine.Post(id); err == nil {
		topicCount = len(post.Topics)
		if h.metrics != nil {
			h.metrics.TagsPerPost.Observe(float64(topicCount))
		}
	}
	h.afterMutation(r, "add_post")
	h.track(analytics.IngestEvent{
		Type:       analytics.EventPostIngest,
		User:       req.UserName,
		PostID:     int(id),
		TopicCount: topicCount,
		Source:     "http",
		LatencyMs:  time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
	h.writeJSON(w, http.StatusCreated, map[string]any{"post_id": int(id)})
}

// UserPosts answers posts by a user, newest first. Unknown users yield an
// empty list, not an error.
func (h *Handler) UserPosts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := r.PathValue("name")

	posts := h.engine.PostsForUser(name)
	h.recordQuery("user_posts", name, len(posts), false, start)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"user":  name,
		"posts": posts,
		"count": len(posts),
	})
}

// TopicPosts answers posts mentioning a topic, newest first, through the
// query cache when one is configured.
func (h *Handler) TopicPosts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	topic := r.PathValue("topic")

	var posts []string
	cacheHit := false
	if h.cache != nil {
		cached, hit, err := h.cache.GetOrComputeTopicPosts(r.Context(), topic, func() ([]string, error) {
			return h.engine.PostsForTopic(topic), nil
		})
		if err == nil {
			posts, cacheHit = cached, hit
		} else {
			posts = h.engine.PostsForTopic(topic)
		}
	} else {
		posts = h.engine.PostsForTopic(topic)
	}
	if posts == nil {
		posts = []string{}
	}

	h.recordQuery("topic_posts", topic, len(posts), cacheHit, start)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"topic": topic,
		"posts": posts,
		"count": len(posts),
	})
}

// Trending answers the ranked topics for the closed timestamp interval
// [from, to]. An inverted interval answers 400.
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	from, err := parseUintParam(r, "from")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseUintParam(r, "to")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := h.trendingLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	compute := func() ([]engine.TopicCount, error) {
		trending, err := h.engine.TrendingTopics(from, to)
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(trending) > limit {
			trending = trending[:limit]
		}
		return trending, nil
	}

	var trending []engine.TopicCount
	cacheHit := false
	if h.cache != nil {
		cached, hit, cacheErr := h.cache.GetOrComputeTrending(r.Context(), from, to, limit, compute)
		trending, cacheHit, err = cached, hit, cacheErr
	} else {
		trending, err = compute()
	}
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Warn("trending query failed", "from", from, "to", to, "error", err)
		if h.metrics != nil {
			h.metrics.QueriesTotal.WithLabelValues("trending", "error").Inc()
		}
		h.writeError(w, status, err.Error())
		return
	}
	if trending == nil {
		trending = []engine.TopicCount{}
	}

	rangeKey := strconv.FormatUint(from, 10) + "-" + strconv.FormatUint(to, 10)
	h.recordQuery("trending", rangeKey, len(trending), cacheHit, start)

	topics := make([]string, len(trending))
	for i, tc := range trending {
		topics[i] = tc.Topic
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"from":    from,
		"to":      to,
		"topics":  topics,
		"ranking": trending,
	})
}

// CacheStats reports query-cache hit/miss counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	hits, misses := h.cache.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"hits":    hits,
		"misses":  misses,
	})
}

// CacheInvalidate drops all cached query results.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// failMutation maps an engine error onto the response and counters.
func (h *Handler) failMutation(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	status := apperrors.HTTPStatusCode(err)
	log.Warn("mutation rejected", "operation", op, "status", status, "error", err)
	if h.metrics != nil {
		h.metrics.MutationsTotal.WithLabelValues(op, "error").Inc()
	}
	h.writeError(w, status, err.Error())
}

// afterMutation refreshes gauges, counts the mutation, and invalidates the
// query cache so readers never serve pre-mutation results.
func (h *Handler) afterMutation(r *http.Request, op string) {
	if h.metrics != nil {
		h.metrics.MutationsTotal.WithLabelValues(op, "ok").Inc()
		stats := h.engine.Stats()
		h.metrics.LiveUsers.Set(float64(stats.Users))
		h.metrics.LivePosts.Set(float64(stats.Posts))
		h.metrics.LiveTopics.Set(float64(stats.Topics))
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Error("post-mutation cache invalidation failed", "error", err)
		}
	}
}

func (h *Handler) recordQuery(query, key string, resultCount int, cacheHit bool, start time.Time) {
	if h.metrics != nil {
		result := "hit"
		if resultCount == 0 {
			result = "empty"
		}
		h.metrics.QueriesTotal.WithLabelValues(query, result).Inc()
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		h.metrics.QueryLatency.WithLabelValues(query, cacheStatus).Observe(time.Since(start).Seconds())
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else if h.cache != nil {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
	h.track(analytics.QueryEvent{
		Type:        analytics.EventQuery,
		Query:       query,
		Key:         key,
		ResultCount: resultCount,
		CacheHit:    cacheHit,
		LatencyMs:   time.Since(start).Milliseconds(),
		Timestamp:   time.Now().UTC(),
	})
}

func (h *Handler) track(event any) {
	if h.collector != nil {
		h.collector.Track(event)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func parseUintParam(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, 400, "query parameter %q is required", name)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, 400, "query parameter %q must be an unsigned integer", name)
	}
	return v, nil
}
