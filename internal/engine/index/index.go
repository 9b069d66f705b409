// Package index maintains the inverted lookup structures of the micro-blog
// engine: user to post IDs, topic to post IDs, and a timestamp-ordered
// timeline. The structures hold only post identifiers; post bodies are owned
// solely by the store.
package index

import (
	"sort"
	"sync"

	"github.com/microtrend-io/microtrend/internal/engine/store"
)

type timelineEntry struct {
	ts uint64
	id store.PostID
}

// Index holds the three inverted indexes. All methods are safe for
// concurrent use.
type Index struct {
	mu       sync.RWMutex
	byUser   map[string][]store.PostID
	byTopic  map[string][]store.PostID
	timeline []timelineEntry // ascending timestamp, insertion order within equal timestamps
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		byUser:  make(map[string][]store.PostID),
		byTopic: make(map[string][]store.PostID),
	}
}

// Add indexes a post under its user, each of its topics, and the timeline.
// Called exactly once per post, right after the store append.
func (x *Index) Add(id store.PostID, user string, topics []string, timestamp uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.byUser[user] = append(x.byUser[user], id)
	for _, topic := range topics {
		x.byTopic[topic] = append(x.byTopic[topic], id)
	}

	// Timestamps are caller-supplied and not required to be monotone, so the
	// timeline insert finds the upper bound to keep equal timestamps in
	// insertion order. The common monotone case is a plain append.
	pos := sort.Search(len(x.timeline), func(i int) bool {
		return x.timeline[i].ts > timestamp
	})
	x.timeline = append(x.timeline, timelineEntry{})
	copy(x.timeline[pos+1:], x.timeline[pos:])
	x.timeline[pos] = timelineEntry{ts: timestamp, id: id}
}

// TakeUser removes the user's entry and returns the post IDs it held, in
// insertion order. Unknown users yield an empty slice.
func (x *Index) TakeUser(user string) []store.PostID {
	x.mu.Lock()
	defer x.mu.Unlock()
	ids := x.byUser[user]
	delete(x.byUser, user)
	return ids
}

// RemovePost removes id from each given topic bucket and from the timeline.
// Topic buckets left empty are pruned, so a once-used topic becomes
// indistinguishable from a never-seen one.
func (x *Index) RemovePost(id store.PostID, topics []string, timestamp uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, topic := range topics {
		ids := x.byTopic[topic]
		for i, other := range ids {
			if other == id {
				x.byTopic[topic] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(x.byTopic[topic]) == 0 {
			delete(x.byTopic, topic)
		}
	}

	// Entries sharing the timestamp are scanned from the first candidate.
	pos := sort.Search(len(x.timeline), func(i int) bool {
		return x.timeline[i].ts >= timestamp
	})
	for i := pos; i < len(x.timeline) && x.timeline[i].ts == timestamp; i++ {
		if x.timeline[i].id == id {
			x.timeline = append(x.timeline[:i], x.timeline[i+1:]...)
			break
		}
	}
}

// PostsForUser returns the user's post IDs in insertion order. Unknown users
// yield an empty slice, never an error.
func (x *Index) PostsForUser(user string) []store.PostID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]store.PostID(nil), x.byUser[user]...)
}

// PostsForTopic returns the topic's post IDs in insertion order. Unknown
// topics yield an empty slice, never an error.
func (x *Index) PostsForTopic(topic string) []store.PostID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]store.PostID(nil), x.byTopic[topic]...)
}

// Range returns the IDs of posts whose timestamp lies in the closed interval
// [from, to], in timeline order. The scan is a binary search to the interval
// start plus a walk linear in the result size.
func (x *Index) Range(from, to uint64) []store.PostID {
	x.mu.RLock()
	defer x.mu.RUnlock()

	start := sort.Search(len(x.timeline), func(i int) bool {
		return x.timeline[i].ts >= from
	})
	var ids []store.PostID
	for i := start; i < len(x.timeline) && x.timeline[i].ts <= to; i++ {
		ids = append(ids, x.timeline[i].id)
	}
	return ids
}

// TopicCount returns the number of topics with at least one indexed post.
func (x *Index) TopicCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byTopic)
}

// UserCount returns the number of users with at least one indexed post.
func (x *Index) UserCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byUser)
}
