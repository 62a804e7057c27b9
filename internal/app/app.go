package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"ai-weekly-planner/internal/ghost"
	"ai-weekly-planner/internal/logger"
	"ai-weekly-planner/internal/metrics"
	"ai-weekly-planner/internal/planner"
	"ai-weekly-planner/internal/render"
)

// ErrPublishingDisabled is returned by PublishPlan when no Ghost blog is configured.
var ErrPublishingDisabled = errors.New("plan publishing is not configured")

// planTags are attached to every published plan.
var planTags = []string{"meal-plan"}

// App holds the application's dependencies.
type App struct {
	mealPlanner  *planner.Planner
	metricsStore *metrics.Store
	ghostClient  ghost.Client
	log          *logger.Logger
}

// NewApp creates and initializes a new App instance. ghostClient may be nil
// when publishing is disabled.
func NewApp(mealPlanner *planner.Planner, metricsStore *metrics.Store, ghostClient ghost.Client, log *logger.Logger) *App {
	if log == nil {
		log = logger.Nop()
	}
	return &App{
		mealPlanner:  mealPlanner,
		metricsStore: metricsStore,
		ghostClient:  ghostClient,
		log:          log,
	}
}

// CanPublish reports whether a Ghost client is configured.
func (a *App) CanPublish() bool {
	return a.ghostClient != nil
}

// GenerateMealPlan runs the planner and records one metric per generation
// call, including calls of a run that failed.
func (a *App) GenerateMealPlan(ctx context.Context, profile planner.UserProfile, days []string, onProgress planner.ProgressFunc) (*planner.MealPlan, error) {
	a.log.Info("generating meal plan", "days", len(days), "profile", profile.Summary())

	plan, metas, err := a.mealPlanner.GeneratePlan(ctx, profile, days, onProgress)

	if a.metricsStore != nil {
		// The run context may already be cancelled.
		if recErr := a.metricsStore.RecordAll(context.WithoutCancel(ctx), metas); recErr != nil {
			a.log.Warn("failed to record metrics", "error", recErr)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to generate plan: %w", err)
	}

	a.log.Info("meal plan generated", "days", len(plan.Days), "requested", len(days), "calls", len(metas))
	return plan, nil
}

// PrintPlan writes the plan, its grocery list and the partial notice to w.
func PrintPlan(w io.Writer, plan *planner.MealPlan, requested int) error {
	_, err := io.WriteString(w, render.Text(plan, requested))
	return err
}

// PublishPlan posts the rendered plan to the Ghost blog. The post stays a
// draft unless publish is set.
func (a *App) PublishPlan(ctx context.Context, plan *planner.MealPlan, requested int, publish bool) (*ghost.Post, error) {
	if a.ghostClient == nil {
		return nil, ErrPublishingDisabled
	}

	html, err := render.HTML(plan, requested)
	if err != nil {
		return nil, fmt.Errorf("failed to render plan: %w", err)
	}

	post, err := a.ghostClient.CreatePost(ctx, plan.Title, html, planTags, publish)
	if err != nil {
		return nil, fmt.Errorf("failed to publish plan: %w", err)
	}

	a.log.Info("meal plan posted", "post_id", post.ID, "status", post.Status)
	return post, nil
}
