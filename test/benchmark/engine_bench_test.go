// Package benchmark contains Go benchmarks for the micro-blog engine, its
// inverted indexes, and the hashtag extractor, measuring throughput and
// allocation behaviour.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/microtrend-io/microtrend/internal/engine"
	"github.com/microtrend-io/microtrend/internal/engine/tag"
	"github.com/microtrend-io/microtrend/pkg/config"
)

var benchTopics = []string{
	"golang", "coffee", "pizza", "steak", "chilling",
	"running", "music", "movies", "travel", "books",
}

func newBenchEngine(b *testing.B, users, posts int) *engine.Engine {
	b.Helper()
	eng := engine.New(config.EngineConfig{MaxPostLength: 140})
	for u := 0; u < users; u++ {
		if err := eng.AddUser(fmt.Sprintf("user-%d", u)); err != nil {
			b.Fatal(err)
		}
	}
	for p := 0; p < posts; p++ {
		user := fmt.Sprintf("user-%d", p%users)
		text := fmt.Sprintf("post %d about #%s and #%s",
			p, benchTopics[p%len(benchTopics)], benchTopics[(p+3)%len(benchTopics)])
		if _, err := eng.AddPost(user, text, uint64(p)); err != nil {
			b.Fatal(err)
		}
	}
	return eng
}

// BenchmarkTagExtract measures hashtag extraction over a typical post.
func BenchmarkTagExtract(b *testing.B) {
	text := "enjoying a #pizza with friends, then #running and #chilling #pizza"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		topics := tag.Extract(text)
		_ = topics
	}
}

// BenchmarkEngineAddPost measures per-post ingest throughput at various
// pre-loaded corpus sizes.
func BenchmarkEngineAddPost(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, preload := range sizes {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			eng := newBenchEngine(b, 50, preload)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				text := fmt.Sprintf("bench post #%s", benchTopics[i%len(benchTopics)])
				if _, err := eng.AddPost("user-0", text, uint64(preload+i)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkPostsForTopic measures topic lookup latency over 10 000 posts.
func BenchmarkPostsForTopic(b *testing.B) {
	eng := newBenchEngine(b, 50, 10000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		posts := eng.PostsForTopic("pizza")
		_ = posts
	}
}

// BenchmarkPostsForUser measures user timeline lookup latency.
func BenchmarkPostsForUser(b *testing.B) {
	eng := newBenchEngine(b, 50, 10000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		posts := eng.PostsForUser("user-7")
		_ = posts
	}
}

// BenchmarkTrendingTopics measures range aggregation over 10 000 posts at
// several window widths.
func BenchmarkTrendingTopics(b *testing.B) {
	eng := newBenchEngine(b, 50, 10000)
	windows := []struct {
		name     string
		from, to uint64
	}{
		{"narrow", 4000, 4100},
		{"wide", 1000, 9000},
		{"full", 0, 10000},
	}

	for _, w := range windows {
		b.Run(w.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				trending, err := eng.TrendingTopics(w.from, w.to)
				if err != nil {
					b.Fatal(err)
				}
				_ = trending
			}
		})
	}
}

// BenchmarkTrendingTopicsParallel measures concurrent read throughput.
func BenchmarkTrendingTopicsParallel(b *testing.B) {
	eng := newBenchEngine(b, 50, 10000)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			trending, err := eng.TrendingTopics(2000, 8000)
			if err != nil {
				b.Fatal(err)
			}
			_ = trending
		}
	})
}

// BenchmarkDeleteUserCascade measures cascade deletion cost for a user
// holding 200 posts.
func BenchmarkDeleteUserCascade(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		eng := engine.New(config.EngineConfig{MaxPostLength: 140})
		if err := eng.AddUser("victim"); err != nil {
			b.Fatal(err)
		}
		for p := 0; p < 200; p++ {
			text := fmt.Sprintf("post #%s", benchTopics[p%len(benchTopics)])
			if _, err := eng.AddPost("victim", text, uint64(p)); err != nil {
				b.Fatal(err)
			}
		}
		b.StartTimer()

		if _, err := eng.DeleteUser("victim"); err != nil {
			b.Fatal(err)
		}
	}
}
