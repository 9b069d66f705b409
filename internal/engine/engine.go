// Package engine implements the in-memory micro-blogging index: an
// append-only post store, hashtag extraction at ingestion, inverted
// user/topic/timeline indexes, and trending-topic aggregation over a
// timestamp range.
package engine

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/microtrend-io/microtrend/internal/engine/index"
	"github.com/microtrend-io/microtrend/internal/engine/store"
	"github.com/microtrend-io/microtrend/internal/engine/tag"
	"github.com/microtrend-io/microtrend/pkg/config"
	apperrors "github.com/microtrend-io/microtrend/pkg/errors"
	"github.com/microtrend-io/microtrend/pkg/logger"
)

// TopicCount is one entry of a trending result: a topic and the number of
// in-range posts mentioning it.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// Stats is a point-in-time summary of engine contents.
type Stats struct {
	Users int `json:"users"`
	// ActiveUsers counts users with at least one live post.
	ActiveUsers int `json:"active_users"`
	Posts       int `json:"posts"`
	Topics      int `json:"topics"`
}

// Engine is the single owner of all four index structures. Mutations take
// the write lock; read queries share the read lock. A failed operation
// leaves every structure untouched.
type Engine struct {
	mu     sync.RWMutex
	users  map[string]struct{}
	store  *store.Store
	idx    *index.Index
	cfg    config.EngineConfig
	logger *slog.Logger
}

// New creates an empty engine. A zero MaxPostLength disables the length cap.
func New(cfg config.EngineConfig) *Engine {
	return &Engine{
		users:  make(map[string]struct{}),
		store:  store.New(),
		idx:    index.New(),
		cfg:    cfg,
		logger: logger.WithComponent("engine"),
	}
}

// AddUser registers a user name. Re-adding an existing name is an error,
// not a no-op.
func (e *Engine) AddUser(name string) error {
	if name == "" {
		return apperrors.New(apperrors.ErrInvalidInput, 400, "user name must not be empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.users[name]; exists {
		return apperrors.Newf(apperrors.ErrUserExists, 409, "user %q", name)
	}
	e.users[name] = struct{}{}
	e.logger.Debug("user added", "user", name)
	return nil
}

// AddPost ingests a post for a registered user: topics are extracted once,
// the post is appended to the store, and all three indexes are updated.
// The caller-supplied timestamp is opaque and need not be increasing.
func (e *Engine) AddPost(user, text string, timestamp uint64) (store.PostID, error) {
	if e.cfg.MaxPostLength > 0 && len(text) > e.cfg.MaxPostLength {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, 400,
			"post of length %d exceeds maximum of %d", len(text), e.cfg.MaxPostLength)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.users[user]; !exists {
		return 0, apperrors.Newf(apperrors.ErrUserNotFound, 404, "user %q", user)
	}

	topics := tag.Extract(text)
	id := e.store.Append(text, user, timestamp, topics)
	e.idx.Add(id, user, topics, timestamp)

	e.logger.Debug("post indexed",
		"post_id", id,
		"user", user,
		"timestamp", timestamp,
		"topic_count", len(topics),
	)
	return id, nil
}

// DeleteUser removes a user and cascades: every post of the user is removed
// from the user index, from each topic bucket that referenced it, from the
// timeline, and finally tombstoned in the store. It returns the number of
// posts the cascade removed.
func (e *Engine) DeleteUser(name string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.users[name]; !exists {
		return 0, apperrors.Newf(apperrors.ErrUserNotFound, 404, "user %q", name)
	}

	ids := e.idx.TakeUser(name)
	for _, id := range ids {
		post, err := e.store.Get(id)
		if err != nil {
			// Index and store disagree; skip rather than abort the cascade.
			e.logger.Error("cascade found dangling post id", "post_id", id, "error", err)
			continue
		}
		e.idx.RemovePost(id, post.Topics, post.Timestamp)
		if err := e.store.Remove(id); err != nil {
			e.logger.Error("cascade remove failed", "post_id", id, "error", err)
		}
	}
	delete(e.users, name)

	e.logger.Info("user deleted", "user", name, "removed_posts", len(ids))
	return len(ids), nil
}

// Post resolves a post ID through the store. Deleted or never-issued IDs
// return ErrPostNotFound.
func (e *Engine) Post(id store.PostID) (*store.Post, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Get(id)
}

// PostsForUser returns the user's post texts, newest first. Unknown users
// yield an empty slice, never an error.
func (e *Engine) PostsForUser(name string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.textsNewestFirst(e.idx.PostsForUser(name))
}

// PostsForTopic returns the texts of posts mentioning the topic, newest
// first. Unknown topics yield an empty slice, never an error.
func (e *Engine) PostsForTopic(topic string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.textsNewestFirst(e.idx.PostsForTopic(topic))
}

// TrendingTopics ranks the topics mentioned by posts whose timestamp lies in
// the closed interval [from, to]: descending mention count, ties broken by
// ascending topic name. Each post contributes at most one count per topic.
func (e *Engine) TrendingTopics(from, to uint64) ([]TopicCount, error) {
	if from > to {
		return nil, apperrors.Newf(apperrors.ErrInvalidRange, 400,
			"from %d is after to %d", from, to)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	counts := make(map[string]int)
	for _, id := range e.idx.Range(from, to) {
		post, err := e.store.Get(id)
		if err != nil {
			continue
		}
		for _, topic := range post.Topics {
			counts[topic]++
		}
	}

	trending := make([]TopicCount, 0, len(counts))
	for topic, count := range counts {
		trending = append(trending, TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(trending, func(i, j int) bool {
		if trending[i].Count != trending[j].Count {
			return trending[i].Count > trending[j].Count
		}
		return trending[i].Topic < trending[j].Topic
	})
	return trending, nil
}

// Stats returns current engine counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Users:       len(e.users),
		ActiveUsers: e.idx.UserCount(),
		Posts:       e.store.Len(),
		Topics:      e.idx.TopicCount(),
	}
}

// textsNewestFirst materializes post texts in reverse insertion order.
// Insertion order is authoritative; callers supplying monotone timestamps
// get descending-timestamp output.
func (e *Engine) textsNewestFirst(ids []store.PostID) []string {
	texts := make([]string, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		post, err := e.store.Get(ids[i])
		if err != nil {
			e.logger.Error("index references missing post", "post_id", ids[i], "error", err)
			continue
		}
		texts = append(texts, post.Text)
	}
	return texts
}
