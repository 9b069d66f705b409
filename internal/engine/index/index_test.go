package index

import (
	"reflect"
	"testing"

	"github.com/microtrend-io/microtrend/internal/engine/store"
)

func TestPostsForUserInsertionOrder(t *testing.T) {
	x := New()
	x.Add(0, "alice", []string{"x"}, 10)
	x.Add(1, "bob", nil, 11)
	x.Add(2, "alice", []string{"y"}, 12)

	got := x.PostsForUser("alice")
	want := []store.PostID{0, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PostsForUser(alice) = %v, want %v", got, want)
	}
	if ids := x.PostsForUser("nobody"); len(ids) != 0 {
		t.Errorf("PostsForUser(nobody) = %v, want empty", ids)
	}
}

func TestPostsForTopic(t *testing.T) {
	x := New()
	x.Add(0, "alice", []string{"go", "news"}, 1)
	x.Add(1, "bob", []string{"go"}, 2)

	if got, want := x.PostsForTopic("go"), []store.PostID{0, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("PostsForTopic(go) = %v, want %v", got, want)
	}
	if got, want := x.PostsForTopic("news"), []store.PostID{0}; !reflect.DeepEqual(got, want) {
		t.Errorf("PostsForTopic(news) = %v, want %v", got, want)
	}
	if ids := x.PostsForTopic("unseen"); len(ids) != 0 {
		t.Errorf("PostsForTopic(unseen) = %v, want empty", ids)
	}
}

func TestRangeClosedInterval(t *testing.T) {
	x := New()
	x.Add(0, "u", nil, 1)
	x.Add(1, "u", nil, 3)
	x.Add(2, "u", nil, 5)

	if got, want := x.Range(0, 4), []store.PostID{0, 1}; !reflect.DeepEqual(got, want) {
		t.Errorf("Range(0,4) = %v, want %v", got, want)
	}
	// Boundaries are inclusive on both ends.
	if got, want := x.Range(5, 5), []store.PostID{2}; !reflect.DeepEqual(got, want) {
		t.Errorf("Range(5,5) = %v, want %v", got, want)
	}
	if got := x.Range(6, 100); len(got) != 0 {
		t.Errorf("Range(6,100) = %v, want empty", got)
	}
}

func TestRangeNonMonotoneTimestamps(t *testing.T) {
	x := New()
	x.Add(0, "u", nil, 5)
	x.Add(1, "u", nil, 2) // arrives out of timestamp order
	x.Add(2, "u", nil, 5) // duplicate timestamp

	if got, want := x.Range(2, 4), []store.PostID{1}; !reflect.DeepEqual(got, want) {
		t.Errorf("Range(2,4) = %v, want %v", got, want)
	}
	// Equal timestamps keep insertion order.
	if got, want := x.Range(5, 5), []store.PostID{0, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("Range(5,5) = %v, want %v", got, want)
	}
}

func TestTakeUserAndRemovePostCascade(t *testing.T) {
	x := New()
	x.Add(0, "alice", []string{"shared"}, 1)
	x.Add(1, "bob", []string{"shared", "solo"}, 2)
	x.Add(2, "bob", []string{"solo"}, 3)

	ids := x.TakeUser("bob")
	if want := []store.PostID{1, 2}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("TakeUser(bob) = %v, want %v", ids, want)
	}
	x.RemovePost(1, []string{"shared", "solo"}, 2)
	x.RemovePost(2, []string{"solo"}, 3)

	if got, want := x.PostsForTopic("shared"), []store.PostID{0}; !reflect.DeepEqual(got, want) {
		t.Errorf("PostsForTopic(shared) = %v, want %v", got, want)
	}
	// The emptied bucket is pruned entirely.
	if ids := x.PostsForTopic("solo"); len(ids) != 0 {
		t.Errorf("PostsForTopic(solo) = %v, want empty", ids)
	}
	if got := x.TopicCount(); got != 1 {
		t.Errorf("TopicCount() = %d, want 1", got)
	}
	if got := x.Range(0, 10); !reflect.DeepEqual(got, []store.PostID{0}) {
		t.Errorf("Range(0,10) = %v, want [0]", got)
	}
	if ids := x.PostsForUser("bob"); len(ids) != 0 {
		t.Errorf("PostsForUser(bob) after TakeUser = %v, want empty", ids)
	}
}

func TestTakeUserUnknown(t *testing.T) {
	x := New()
	if ids := x.TakeUser("ghost"); len(ids) != 0 {
		t.Errorf("TakeUser(ghost) = %v, want empty", ids)
	}
}
