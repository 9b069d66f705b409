package analytics

import "time"

type EventType string

const (
	EventUserAdded   EventType = "user_added"
	EventUserDeleted EventType = "user_deleted"
	EventPostIngest  EventType = "post_ingested"
	EventQuery       EventType = "query"
)

// IngestEvent records a mutation applied to the engine.
type IngestEvent struct {
	Type         EventType `json:"type"`
	User         string    `json:"user"`
	PostID       int       `json:"post_id,omitempty"`
	TopicCount   int       `json:"topic_count,omitempty"`
	RemovedPosts int       `json:"removed_posts,omitempty"`
	Source       string    `json:"source"` // "http" or "kafka"
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// QueryEvent records a read query served by the API.
type QueryEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"` // "user_posts", "topic_posts", "trending"
	Key         string    `json:"key"`   // user name, topic, or "from-to" range
	ResultCount int       `json:"result_count"`
	CacheHit    bool      `json:"cache_hit"`
	LatencyMs   int64     `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}
