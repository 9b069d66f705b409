// Package ingest applies bulk mutation commands from Kafka to the engine,
// providing an asynchronous ingestion path next to the synchronous HTTP API.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/microtrend-io/microtrend/internal/analytics"
	"github.com/microtrend-io/microtrend/internal/engine"
	"github.com/microtrend-io/microtrend/internal/engine/store"
	"github.com/microtrend-io/microtrend/pkg/kafka"
	"github.com/microtrend-io/microtrend/pkg/logger"
	"github.com/microtrend-io/microtrend/pkg/metrics"
)

// Command types accepted on the ingest topic.
const (
	CommandAddUser    = "add_user"
	CommandAddPost    = "add_post"
	CommandDeleteUser = "delete_user"
)

// Command is the wire format of an ingest instruction.
type Command struct {
	Type      string `json:"type"`
	User      string `json:"user"`
	Text      string `json:"text,omitempty"`
	Timestamp uint64 `json:"timestamp,omitempty"`
}

// Applier consumes ingest commands and applies them to the engine.
type Applier struct {
	engine    *engine.Engine
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewApplier creates an Applier. collector and m may be nil.
func NewApplier(eng *engine.Engine, collector *analytics.Collector, m *metrics.Metrics) *Applier {
	return &Applier{
		engine:    eng,
		collector: collector,
		metrics:   m,
		logger:    logger.WithComponent("ingest-applier"),
	}
}

// Handler returns the kafka.MessageHandler for the ingest topic. Engine
// errors are logged and the message committed, so a bad command cannot
// wedge its partition.
func (a *Applier) Handler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		cmd, err := kafka.DecodeJSON[Command](value)
		if err != nil {
			a.logger.Error("undecodable ingest command", "error", err)
			a.count("invalid", "error")
			return nil
		}
		a.apply(cmd)
		return nil
	}
}

func (a *Applier) apply(cmd Command) {
	start := time.Now()
	var err error
	switch cmd.Type {
	case CommandAddUser:
		err = a.engine.AddUser(cmd.User)
		if err == nil {
			a.track(analytics.IngestEvent{
				Type:      analytics.EventUserAdded,
				User:      cmd.User,
				Source:    "kafka",
				LatencyMs: time.Since(start).Milliseconds(),
				Timestamp: time.Now().UTC(),
			})
		}
	case CommandAddPost:
		var id store.PostID
		id, err = a.engine.AddPost(cmd.User, cmd.Text, cmd.Timestamp)
		if err == nil {
			a.track(analytics.IngestEvent{
				Type:      analytics.EventPostIngest,
				User:      cmd.User,
				PostID:    int(id),
				Source:    "kafka",
				LatencyMs: time.Since(start).Milliseconds(),
				Timestamp: time.Now().UTC(),
			})
		}
	case CommandDeleteUser:
		var removed int
		removed, err = a.engine.DeleteUser(cmd.User)
		if err == nil {
			a.track(analytics.IngestEvent{
				Type:         analytics.EventUserDeleted,
				User:         cmd.User,
				RemovedPosts: removed,
				Source:       "kafka",
				LatencyMs:    time.Since(start).Milliseconds(),
				Timestamp:    time.Now().UTC(),
			})
		}
	default:
		a.logger.Warn("unknown ingest command type", "type", cmd.Type)
		a.count("unknown", "error")
		return
	}

	if err != nil {
		a.logger.Error("ingest command rejected by engine",
			"type", cmd.Type,
			"user", cmd.User,
			"error", err,
		)
		a.count(cmd.Type, "error")
		return
	}
	a.count(cmd.Type, "ok")
}

func (a *Applier) track(event analytics.IngestEvent) {
	if a.collector != nil {
		a.collector.Track(event)
	}
}

func (a *Applier) count(cmdType, status string) {
	if a.metrics != nil {
		a.metrics.IngestCommandsTotal.WithLabelValues(cmdType, status).Inc()
	}
}
