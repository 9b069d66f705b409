package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestAggregatorCounters(t *testing.T) {
	agg := NewAggregator()
	agg.RecordIngest(IngestEvent{Type: EventUserAdded, User: "a"})
	agg.RecordIngest(IngestEvent{Type: EventPostIngest, User: "a", TopicCount: 2})
	agg.RecordIngest(IngestEvent{Type: EventPostIngest, User: "a", TopicCount: 1})
	agg.RecordIngest(IngestEvent{Type: EventUserDeleted, User: "a", RemovedPosts: 2})

	stats := agg.Stats()
	if stats.UsersAdded != 1 || stats.UsersDeleted != 1 {
		t.Errorf("user counters = %d/%d, want 1/1", stats.UsersAdded, stats.UsersDeleted)
	}
	if stats.PostsIngested != 2 {
		t.Errorf("PostsIngested = %d, want 2", stats.PostsIngested)
	}
	if stats.CascadeRemovals != 2 {
		t.Errorf("CascadeRemovals = %d, want 2", stats.CascadeRemovals)
	}
}

func TestAggregatorQueryStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordQuery(QueryEvent{Type: EventQuery, Query: "trending", Key: "0-10", ResultCount: 3, CacheHit: true, LatencyMs: 2})
	agg.RecordQuery(QueryEvent{Type: EventQuery, Query: "user_posts", Key: "alice", ResultCount: 0, LatencyMs: 8})
	agg.RecordQuery(QueryEvent{Type: EventQuery, Query: "user_posts", Key: "alice", ResultCount: 1, LatencyMs: 4})

	stats := agg.Stats()
	if stats.TotalQueries != 3 {
		t.Errorf("TotalQueries = %d, want 3", stats.TotalQueries)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 2 {
		t.Errorf("cache counters = %d/%d, want 1/2", stats.CacheHits, stats.CacheMisses)
	}
	if stats.ZeroResultCount != 1 {
		t.Errorf("ZeroResultCount = %d, want 1", stats.ZeroResultCount)
	}
	if len(stats.TopQueriedKeys) == 0 || stats.TopQueriedKeys[0].Key != "user_posts:alice" {
		t.Errorf("TopQueriedKeys = %v, want user_posts:alice first", stats.TopQueriedKeys)
	}
	if stats.P50LatencyMs == 0 && stats.AvgLatencyMs == 0 {
		t.Error("latency stats not populated")
	}
}

func TestHandleEventDecodesBothKinds(t *testing.T) {
	agg := NewAggregator()
	handler := HandleEvent(agg)

	query, _ := json.Marshal(QueryEvent{Type: EventQuery, Query: "trending", Key: "1-2", ResultCount: 1, LatencyMs: 1, Timestamp: time.Now()})
	if err := handler(context.Background(), nil, query); err != nil {
		t.Fatalf("handler(query event): %v", err)
	}
	ingest, _ := json.Marshal(IngestEvent{Type: EventPostIngest, User: "bob", Timestamp: time.Now()})
	if err := handler(context.Background(), nil, ingest); err != nil {
		t.Fatalf("handler(ingest event): %v", err)
	}

	stats := agg.Stats()
	if stats.TotalQueries != 1 || stats.PostsIngested != 1 {
		t.Errorf("stats after events = %+v", stats)
	}

	// Garbage is logged and skipped, not returned as an error.
	if err := handler(context.Background(), nil, []byte("{not json")); err != nil {
		t.Errorf("handler(garbage) = %v, want nil", err)
	}
}
