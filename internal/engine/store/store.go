// Package store owns all post bodies and assigns them stable identifiers.
//
// Posts are kept in an append-only slice; a post's ID is its position at
// insertion time and never changes. Removal tombstones the slot instead of
// compacting, so previously issued IDs stay valid forever and no index
// remapping is ever needed.
package store

import (
	"sync"

	apperrors "github.com/microtrend-io/microtrend/pkg/errors"
)

// PostID is the stable identifier of a post: its insertion position.
type PostID int

// Post is a timestamped text record attributed to a user. Topics are
// computed once at creation and never recomputed.
type Post struct {
	Text      string
	User      string
	Timestamp uint64
	Topics    []string
}

// Store is an append-only, tombstoning post store.
type Store struct {
	mu    sync.RWMutex
	posts []*Post // nil slot = tombstone
	live  int
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

// Append adds a post and returns its new stable ID. It never fails.
func (s *Store) Append(text, user string, timestamp uint64, topics []string) PostID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, &Post{
		Text:      text,
		User:      user,
		Timestamp: timestamp,
		Topics:    topics,
	})
	s.live++
	return PostID(len(s.posts) - 1)
}

// Get returns the post for id, or ErrPostNotFound if the ID was never
// issued or the post has been removed.
func (s *Store) Get(id PostID) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || int(id) >= len(s.posts) || s.posts[id] == nil {
		return nil, apperrors.Newf(apperrors.ErrPostNotFound, 404, "post %d", id)
	}
	return s.posts[id], nil
}

// Remove tombstones the slot for id. Removing an already-removed or unknown
// ID returns ErrPostNotFound.
func (s *Store) Remove(id PostID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || int(id) >= len(s.posts) || s.posts[id] == nil {
		return apperrors.Newf(apperrors.ErrPostNotFound, 404, "post %d", id)
	}
	s.posts[id] = nil
	s.live--
	return nil
}

// Len returns the number of live (non-tombstoned) posts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}
