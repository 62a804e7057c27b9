package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ai-weekly-planner/internal/database"
	"ai-weekly-planner/internal/logger"
	"ai-weekly-planner/internal/shared"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"), logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	store := NewStore(db.SQL)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordAndDailyUsage", func(t *testing.T) {
		store := newTestStore(t)
		metas := []shared.AgentMeta{
			{AgentName: "DayPlanner", Day: "Monday", Usage: shared.TokenUsage{PromptTokens: 400, CompletionTokens: 900, TotalTokens: 1300, Model: "gemini"}, Latency: 2 * time.Second, Outcome: "ok"},
			{AgentName: "DayPlanner", Day: "Tuesday", Usage: shared.TokenUsage{PromptTokens: 420, CompletionTokens: 0}, Outcome: "blocked"},
		}
		if err := store.RecordAll(ctx, metas); err != nil {
			t.Fatalf("RecordAll failed: %v", err)
		}

		usage, err := store.GetDailyUsage(ctx, 1)
		if err != nil {
			t.Fatalf("GetDailyUsage failed: %v", err)
		}
		if len(usage) != 1 {
			t.Fatalf("Expected 1 day of usage, got %d", len(usage))
		}
		u := usage[0]
		if u.TotalPrompt != 820 || u.TotalCompletion != 900 || u.TotalExecution != 2 || u.Failed != 1 {
			t.Errorf("Unexpected usage %+v", u)
		}
		if u.Date != time.Now().UTC().Format(time.DateOnly) {
			t.Errorf("Expected today's date, got '%s'", u.Date)
		}
	})

	t.Run("Cleanup", func(t *testing.T) {
		store := newTestStore(t)
		old := ExecutionMetric{AgentName: "DayPlanner", Timestamp: time.Now().AddDate(0, 0, -40)}
		recent := ExecutionMetric{AgentName: "DayPlanner"}
		for _, m := range []ExecutionMetric{old, recent} {
			if err := store.Record(ctx, m); err != nil {
				t.Fatalf("Record failed: %v", err)
			}
		}

		removed, err := store.Cleanup(ctx, 30)
		if err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}
		if removed != 1 {
			t.Errorf("Expected 1 removed record, got %d", removed)
		}
		usage, _ := store.GetDailyUsage(ctx, 365)
		if len(usage) != 1 || usage[0].TotalExecution != 1 {
			t.Errorf("Expected only the recent record to remain, got %+v", usage)
		}
	})
}

func TestMapUsage(t *testing.T) {
	m := MapUsage(shared.AgentMeta{
		AgentName:    "Repair",
		Day:          "Friday",
		Usage:        shared.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30, Model: "m"},
		Latency:      1500 * time.Millisecond,
		FinishReason: "STOP",
		Outcome:      "ok",
	})
	if m.LatencyMS != 1500 || m.TotalTokens != 30 || m.Day != "Friday" || m.Model != "m" || m.FinishReason != "STOP" {
		t.Errorf("Unexpected metric %+v", m)
	}
}

func TestGetSysHealthDataDir(t *testing.T) {
	dir := t.TempDir()
	h := GetSysHealth(dir)
	if h.Goroutines == 0 {
		t.Error("Expected at least one goroutine")
	}
	if h.DatabaseSize != "0 B" {
		t.Errorf("Expected empty dir size '0 B', got '%s'", h.DatabaseSize)
	}
}
