package engine

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/microtrend-io/microtrend/pkg/config"
	apperrors "github.com/microtrend-io/microtrend/pkg/errors"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(config.EngineConfig{MaxPostLength: 140})
}

func mustAddUser(t *testing.T, e *Engine, name string) {
	t.Helper()
	if err := e.AddUser(name); err != nil {
		t.Fatalf("AddUser(%q): %v", name, err)
	}
}

func mustAddPost(t *testing.T, e *Engine, user, text string, ts uint64) {
	t.Helper()
	if _, err := e.AddPost(user, text, ts); err != nil {
		t.Fatalf("AddPost(%q, %q, %d): %v", user, text, ts, err)
	}
}

func TestAddUserDuplicate(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	if err := e.AddUser("john"); !errors.Is(err, apperrors.ErrUserExists) {
		t.Errorf("duplicate AddUser err = %v, want ErrUserExists", err)
	}
}

func TestAddPostUnknownUser(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.AddPost("ghost", "hello", 1); !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("AddPost for unknown user err = %v, want ErrUserNotFound", err)
	}
}

func TestAddPostTooLong(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	long := strings.Repeat("a", 141)
	if _, err := e.AddPost("john", long, 1); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("oversized AddPost err = %v, want ErrInvalidInput", err)
	}
	// The failed operation must not have touched any index.
	if posts := e.PostsForUser("john"); len(posts) != 0 {
		t.Errorf("PostsForUser after failed AddPost = %v, want empty", posts)
	}
}

func TestEmptyPostHasNoTopics(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	mustAddPost(t, e, "john", "", 1)
	if posts := e.PostsForUser("john"); len(posts) != 1 || posts[0] != "" {
		t.Errorf("PostsForUser = %v, want one empty post", posts)
	}
	trending, err := e.TrendingTopics(0, 10)
	if err != nil {
		t.Fatalf("TrendingTopics: %v", err)
	}
	if len(trending) != 0 {
		t.Errorf("trending after empty post = %v, want empty", trending)
	}
}

func TestPostRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	mustAddPost(t, e, "john", "eating #steak and #pizza for dinner", 2)

	posts := e.PostsForUser("john")
	if len(posts) != 1 || posts[0] != "eating #steak and #pizza for dinner" {
		t.Errorf("PostsForUser = %v", posts)
	}
	for _, topic := range []string{"steak", "pizza"} {
		if got := e.PostsForTopic(topic); len(got) != 1 || got[0] != posts[0] {
			t.Errorf("PostsForTopic(%s) = %v", topic, got)
		}
	}
}

func TestPostsNewestFirst(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	mustAddPost(t, e, "john", "First post", 1)
	mustAddPost(t, e, "john", "Second post", 2)
	mustAddPost(t, e, "john", "Third post", 3)

	want := []string{"Third post", "Second post", "First post"}
	if got := e.PostsForUser("john"); !reflect.DeepEqual(got, want) {
		t.Errorf("PostsForUser = %v, want %v", got, want)
	}
}

func TestPostsForTopicNewestFirst(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	mustAddPost(t, e, "john", "eating #steak for dinner", 2)
	mustAddPost(t, e, "john", "ugh! this #steak tasted like dog food", 3)

	want := []string{"ugh! this #steak tasted like dog food", "eating #steak for dinner"}
	if got := e.PostsForTopic("steak"); !reflect.DeepEqual(got, want) {
		t.Errorf("PostsForTopic(steak) = %v, want %v", got, want)
	}
}

func TestUnknownReadsAreEmptyNotErrors(t *testing.T) {
	e := newTestEngine(t)
	if got := e.PostsForUser("nobody"); len(got) != 0 {
		t.Errorf("PostsForUser(nobody) = %v", got)
	}
	if got := e.PostsForTopic("nothing"); len(got) != 0 {
		t.Errorf("PostsForTopic(nothing) = %v", got)
	}
}

func TestDeleteUserCascade(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "a")
	mustAddPost(t, e, "a", "hi #x", 1)
	removed, err := e.DeleteUser("a")
	if err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if removed != 1 {
		t.Errorf("DeleteUser removed %d posts, want 1", removed)
	}
	if got := e.PostsForUser("a"); len(got) != 0 {
		t.Errorf("PostsForUser after delete = %v, want empty", got)
	}
	if got := e.PostsForTopic("x"); len(got) != 0 {
		t.Errorf("PostsForTopic after delete = %v, want empty", got)
	}
	trending, err := e.TrendingTopics(0, 10)
	if err != nil {
		t.Fatalf("TrendingTopics: %v", err)
	}
	if len(trending) != 0 {
		t.Errorf("trending after delete = %v, want empty", trending)
	}
}

func TestDeleteUserSharedTopic(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	mustAddUser(t, e, "mayer")
	mustAddPost(t, e, "john", "Post by john with #common", 1)
	mustAddPost(t, e, "mayer", "Post by mayer with #common", 2)
	mustAddPost(t, e, "mayer", "Another post by mayer with #pizza", 3)

	removed, err := e.DeleteUser("mayer")
	if err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if removed != 2 {
		t.Errorf("DeleteUser removed %d posts, want 2", removed)
	}
	if got, want := e.PostsForTopic("common"), []string{"Post by john with #common"}; !reflect.DeepEqual(got, want) {
		t.Errorf("PostsForTopic(common) = %v, want %v", got, want)
	}
	if got := e.PostsForTopic("pizza"); len(got) != 0 {
		t.Errorf("PostsForTopic(pizza) = %v, want empty", got)
	}
	// john's data is untouched by the cascade.
	if got := e.PostsForUser("john"); len(got) != 1 {
		t.Errorf("PostsForUser(john) = %v", got)
	}
}

func TestDeleteUnknownUser(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.DeleteUser("john"); !errors.Is(err, apperrors.ErrUserNotFound) {
		t.Errorf("DeleteUser err = %v, want ErrUserNotFound", err)
	}
}

func TestTrendingTopicsRanking(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	mustAddPost(t, e, "john", "just #chilling with #pizza today", 1)
	mustAddPost(t, e, "john", "eating #steak and #pizza for dinner", 2)
	mustAddPost(t, e, "john", "ugh! this #steak tasted like dog food", 3)

	// pizza=2 and steak=2 tie and sort alphabetically, chilling=1 trails.
	trending, err := e.TrendingTopics(1, 3)
	if err != nil {
		t.Fatalf("TrendingTopics: %v", err)
	}
	want := []TopicCount{{"pizza", 2}, {"steak", 2}, {"chilling", 1}}
	if !reflect.DeepEqual(trending, want) {
		t.Errorf("TrendingTopics = %v, want %v", trending, want)
	}
}

func TestTrendingDedupWithinPost(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	mustAddPost(t, e, "john", "double #x mention #x", 1)
	mustAddPost(t, e, "john", "single #y", 1)

	trending, err := e.TrendingTopics(1, 1)
	if err != nil {
		t.Fatalf("TrendingTopics: %v", err)
	}
	want := []TopicCount{{"x", 1}, {"y", 1}}
	if !reflect.DeepEqual(trending, want) {
		t.Errorf("TrendingTopics = %v, want %v", trending, want)
	}
}

func TestTrendingRangeBoundaries(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	mustAddPost(t, e, "john", "boundary #edge post", 5)

	trending, err := e.TrendingTopics(0, 4)
	if err != nil {
		t.Fatalf("TrendingTopics(0,4): %v", err)
	}
	if len(trending) != 0 {
		t.Errorf("TrendingTopics(0,4) = %v, want empty", trending)
	}
	trending, err = e.TrendingTopics(5, 5)
	if err != nil {
		t.Fatalf("TrendingTopics(5,5): %v", err)
	}
	if want := []TopicCount{{"edge", 1}}; !reflect.DeepEqual(trending, want) {
		t.Errorf("TrendingTopics(5,5) = %v, want %v", trending, want)
	}
}

func TestTrendingInvalidRange(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.TrendingTopics(10, 1); !errors.Is(err, apperrors.ErrInvalidRange) {
		t.Errorf("TrendingTopics(10,1) err = %v, want ErrInvalidRange", err)
	}
}

func TestTrendingEmptyRangeIsNotError(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	mustAddPost(t, e, "john", "late #news", 100)
	trending, err := e.TrendingTopics(1, 3)
	if err != nil {
		t.Fatalf("TrendingTopics: %v", err)
	}
	if len(trending) != 0 {
		t.Errorf("TrendingTopics(1,3) = %v, want empty", trending)
	}
}

func TestIdempotentReads(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "john")
	mustAddPost(t, e, "john", "repeat #query test", 1)

	first := e.PostsForUser("john")
	second := e.PostsForUser("john")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated PostsForUser differ: %v vs %v", first, second)
	}
	t1, err := e.TrendingTopics(0, 10)
	if err != nil {
		t.Fatalf("TrendingTopics: %v", err)
	}
	t2, err := e.TrendingTopics(0, 10)
	if err != nil {
		t.Fatalf("TrendingTopics: %v", err)
	}
	if !reflect.DeepEqual(t1, t2) {
		t.Errorf("repeated TrendingTopics differ: %v vs %v", t1, t2)
	}
}

func TestStats(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "a")
	mustAddUser(t, e, "b")
	mustAddPost(t, e, "a", "#x and #y", 1)
	mustAddPost(t, e, "b", "#x again", 2)

	got := e.Stats()
	want := Stats{Users: 2, ActiveUsers: 2, Posts: 2, Topics: 2}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestStatsActiveUsers(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "poster")
	mustAddUser(t, e, "lurker")
	mustAddPost(t, e, "poster", "#hello", 1)

	got := e.Stats()
	if got.Users != 2 {
		t.Errorf("Users = %d, want 2", got.Users)
	}
	if got.ActiveUsers != 1 {
		t.Errorf("ActiveUsers = %d, want 1", got.ActiveUsers)
	}

	if _, err := e.DeleteUser("poster"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if got := e.Stats().ActiveUsers; got != 0 {
		t.Errorf("ActiveUsers after cascade = %d, want 0", got)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	e := newTestEngine(t)
	mustAddUser(t, e, "writer")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e.AddPost("writer", fmt.Sprintf("post %d-%d #load", n, i), uint64(i))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e.PostsForUser("writer")
				e.PostsForTopic("load")
				e.TrendingTopics(0, 1000)
			}
		}()
	}
	wg.Wait()

	if got := len(e.PostsForUser("writer")); got != 400 {
		t.Errorf("posts after concurrent load = %d, want 400", got)
	}
}
