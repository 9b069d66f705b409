package health

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestRunAggregatesWorstStatus(t *testing.T) {
	checker := NewChecker()
	checker.Register("up", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusUp}
	})
	checker.Register("degraded", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded, Message: "slow"}
	})

	report := checker.Run(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("expected degraded overall status, got %s", report.Status)
	}
	if len(report.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(report.Components))
	}
}

func TestRunLogsUnhealthyComponents(t *testing.T) {
	handler := &recordingHandler{}
	prev := slog.Default()
	slog.SetDefault(slog.New(handler))
	defer slog.SetDefault(prev)

	checker := NewChecker()
	checker.Register("redis", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDown, Message: "connection refused"}
	})

	report := checker.Run(context.Background())
	if report.Status != StatusDown {
		t.Fatalf("expected down overall status, got %s", report.Status)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	found := false
	for _, r := range handler.records {
		if r.Level == slog.LevelWarn && strings.Contains(r.Message, "component down") {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning log for the down component")
	}
}
