package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"ai-weekly-planner/internal/database"
	"ai-weekly-planner/internal/ghost"
	"ai-weekly-planner/internal/llm"
	"ai-weekly-planner/internal/logger"
	"ai-weekly-planner/internal/metrics"
	"ai-weekly-planner/internal/planner"
)

var dayRe = regexp.MustCompile(`Create a meal plan for: ([^.\n]+)\.`)

// mockGenerator answers every day prompt with a fixed menu, or fails with err.
type mockGenerator struct {
	calls int
	err   error
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	match := dayRe.FindStringSubmatch(req.Prompt)
	if match == nil {
		return nil, fmt.Errorf("unexpected prompt")
	}
	day := match[1]
	text := fmt.Sprintf(`{"days":[{"day":%q,"meals":[
		{"name":"Breakfast","items":[{"title":"%s Porridge","calories":350,"ingredients":[{"item":"%s oats","quantity":1,"unit":"cup"}],"steps":["Cook"]}]},
		{"name":"Lunch","items":[{"title":"%s Noodle Soup","calories":500,"ingredients":[{"item":"%s noodles","quantity":200,"unit":"g"}],"steps":["Simmer"]}]},
		{"name":"Dinner","items":[{"title":"%s Roast Fish","calories":650,"ingredients":[{"item":"%s cod","quantity":1,"unit":"lb"}],"steps":["Roast"]}]}
	]}]}`, day, day, day, day, day, day, day)
	return &llm.GenerationResponse{
		Candidates:    []llm.Candidate{{Content: &llm.Content{Parts: []llm.Part{{Text: text}}}, FinishReason: llm.FinishReasonStop}},
		UsageMetadata: &llm.UsageMetadata{PromptTokenCount: 300, CandidatesTokenCount: 500, TotalTokenCount: 800},
	}, nil
}

type mockGhost struct {
	title   string
	html    string
	publish bool
	err     error
}

func (m *mockGhost) CreatePost(ctx context.Context, title, html string, tags []string, publish bool) (*ghost.Post, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.title, m.html, m.publish = title, html, publish
	return &ghost.Post{ID: "post-1", Title: title, Status: "draft"}, nil
}

func newTestMetrics(t *testing.T) *metrics.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "app.db"), logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	store := metrics.NewStore(db.SQL)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGenerateMealPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordsMetrics", func(t *testing.T) {
		store := newTestMetrics(t)
		gen := &mockGenerator{}
		a := NewApp(planner.NewPlanner(gen), store, nil, logger.Nop())

		var progress []string
		plan, err := a.GenerateMealPlan(ctx, planner.UserProfile{}, []string{"Monday", "Tuesday"}, func(p planner.Progress) {
			progress = append(progress, p.DayLabel)
		})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(plan.Days) != 2 {
			t.Fatalf("Expected 2 days, got %d", len(plan.Days))
		}
		if strings.Join(progress, ",") != "Monday,Tuesday" {
			t.Errorf("Unexpected progress %v", progress)
		}

		usage, err := store.GetDailyUsage(ctx, 1)
		if err != nil {
			t.Fatalf("GetDailyUsage failed: %v", err)
		}
		if len(usage) != 1 || usage[0].TotalExecution != gen.calls {
			t.Errorf("Expected %d recorded executions, got %+v", gen.calls, usage)
		}
	})

	t.Run("FailureStillRecorded", func(t *testing.T) {
		store := newTestMetrics(t)
		gen := &mockGenerator{err: &llm.StatusError{StatusCode: 401, Body: "bad key"}}
		a := NewApp(planner.NewPlanner(gen), store, nil, logger.Nop())

		_, err := a.GenerateMealPlan(ctx, planner.UserProfile{}, []string{"Monday"}, nil)
		var planErr *planner.PlanError
		if !errors.As(err, &planErr) {
			t.Fatalf("Expected a PlanError, got %v", err)
		}
		if planErr.Diagnosis != planner.DiagnosisUnreachable {
			t.Errorf("Expected unreachable diagnosis, got %s", planErr.Diagnosis)
		}

		usage, _ := store.GetDailyUsage(ctx, 1)
		if len(usage) != 1 || usage[0].Failed != gen.calls {
			t.Errorf("Expected %d failed executions, got %+v", gen.calls, usage)
		}
	})
}

func TestPrintPlan(t *testing.T) {
	a := NewApp(planner.NewPlanner(&mockGenerator{}), nil, nil, logger.Nop())
	plan, err := a.GenerateMealPlan(context.Background(), planner.UserProfile{}, []string{"Monday"}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var buf bytes.Buffer
	if err := PrintPlan(&buf, plan, 2); err != nil {
		t.Fatalf("PrintPlan failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Monday Porridge", "Monday Roast Fish", "1 of 2 days generated"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain '%s'", want)
		}
	}
}

func TestPublishPlan(t *testing.T) {
	ctx := context.Background()
	plan := &planner.MealPlan{Title: "Meal plan: Monday", Days: []planner.Day{{Day: "Monday"}}}

	t.Run("Disabled", func(t *testing.T) {
		a := NewApp(nil, nil, nil, nil)
		if a.CanPublish() {
			t.Error("Expected publishing to be disabled")
		}
		if _, err := a.PublishPlan(ctx, plan, 1, false); !errors.Is(err, ErrPublishingDisabled) {
			t.Errorf("Expected ErrPublishingDisabled, got %v", err)
		}
	})

	t.Run("Draft", func(t *testing.T) {
		g := &mockGhost{}
		a := NewApp(nil, nil, g, nil)
		post, err := a.PublishPlan(ctx, plan, 1, false)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if post.ID != "post-1" || g.title != plan.Title || g.publish {
			t.Errorf("Unexpected post %+v (publish=%v)", post, g.publish)
		}
		if !strings.Contains(g.html, "Monday") {
			t.Errorf("Expected rendered HTML to mention Monday, got %s", g.html)
		}
	})

	t.Run("ClientError", func(t *testing.T) {
		a := NewApp(nil, nil, &mockGhost{err: errors.New("boom")}, nil)
		if _, err := a.PublishPlan(ctx, plan, 1, true); err == nil || !strings.Contains(err.Error(), "boom") {
			t.Errorf("Expected wrapped client error, got %v", err)
		}
	})
}
