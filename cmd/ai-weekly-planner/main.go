package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ai-weekly-planner/internal/app"
	"ai-weekly-planner/internal/config"
	"ai-weekly-planner/internal/database"
	"ai-weekly-planner/internal/logger"
	"ai-weekly-planner/internal/metrics"
	"ai-weekly-planner/internal/planner"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.DatabasePath, log)
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	metricsStore := metrics.NewStore(db.SQL)
	defer metricsStore.Close()

	switch os.Args[1] {
	case "generate":
		err = runGenerate(ctx, cfg, log, metricsStore, os.Args[2:])
	case "metrics":
		err = runMetrics(ctx, cfg, metricsStore, os.Args[2:])
	case "metrics-cleanup":
		err = runCleanup(ctx, metricsStore, os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func runGenerate(ctx context.Context, cfg *config.Config, log *logger.Logger, metricsStore *metrics.Store, args []string) error {
	cmd := flag.NewFlagSet("generate", flag.ExitOnError)
	profileFile := cmd.String("profile", "", "File with 'key: value' preference lines")
	days := cmd.String("days", "7", "Number of days from Monday, or a comma separated list of days")
	age := cmd.Int("age", 0, "Age")
	goal := cmd.String("goal", "", "Fitness goal")
	diet := cmd.String("diet", "", "Comma separated dietary preferences")
	exclude := cmd.String("exclude", "", "Foods to exclude")
	cuisine := cmd.String("cuisine", "", "Preferred cuisine")
	publish := cmd.Bool("publish", false, "Post the plan to the Ghost blog as a draft")
	live := cmd.Bool("live", false, "With -publish, publish the post instead of saving a draft")
	cmd.Parse(args)

	req := app.Request{}
	if *profileFile != "" {
		data, err := os.ReadFile(*profileFile)
		if err != nil {
			return fmt.Errorf("failed to read profile: %w", err)
		}
		if req, err = app.ParseRequest(string(data)); err != nil {
			return fmt.Errorf("invalid profile: %w", err)
		}
	}
	applyFlags(&req.Profile, *age, *goal, *diet, *exclude, *cuisine)

	dayFlagSet := false
	cmd.Visit(func(f *flag.Flag) { dayFlagSet = dayFlagSet || f.Name == "days" })
	if dayFlagSet || len(req.Days) == 0 {
		parsed, err := app.ParseDays(*days)
		if err != nil {
			return err
		}
		req.Days = parsed
	}

	gen, closeGen, err := app.NewGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize generation client: %w", err)
	}
	defer closeGen()

	mealPlanner, err := app.NewPlanner(cfg, gen, log)
	if err != nil {
		return err
	}
	application := app.NewApp(mealPlanner, metricsStore, app.NewGhostClient(cfg), log)

	fmt.Printf("Generating meal plan for %s (%s)...\n", strings.Join(req.Days, ", "), req.Profile.Summary())
	plan, err := application.GenerateMealPlan(ctx, req.Profile, req.Days, func(p planner.Progress) {
		status := "done"
		if !p.Accepted {
			status = "skipped"
		}
		fmt.Printf("[%d/%d] %s %s\n", p.Index, p.Total, p.DayLabel, status)
	})
	if err != nil {
		var planErr *planner.PlanError
		if errors.As(err, &planErr) {
			fmt.Fprintf(os.Stderr, "\nNo days could be generated: %s\n", planErr.Diagnosis.Message())
		}
		return err
	}

	fmt.Println()
	if err := app.PrintPlan(os.Stdout, plan, len(req.Days)); err != nil {
		return err
	}

	if *publish {
		post, err := application.PublishPlan(ctx, plan, len(req.Days), *live)
		if err != nil {
			return err
		}
		fmt.Printf("\nPlan posted to Ghost (%s): %s\n", post.Status, post.URL)
	}
	return nil
}

func applyFlags(p *planner.UserProfile, age int, goal, diet, exclude, cuisine string) {
	if age > 0 {
		p.Age = age
	}
	if goal != "" {
		p.FitnessGoal = goal
	}
	if diet != "" {
		p.DietaryPreferences = nil
		for _, d := range strings.Split(diet, ",") {
			if d = strings.TrimSpace(d); d != "" {
				p.DietaryPreferences = append(p.DietaryPreferences, d)
			}
		}
	}
	if exclude != "" {
		p.Exclusions = exclude
	}
	if cuisine != "" {
		p.Ethnicity = cuisine
	}
}

func runMetrics(ctx context.Context, cfg *config.Config, metricsStore *metrics.Store, args []string) error {
	cmd := flag.NewFlagSet("metrics", flag.ExitOnError)
	days := cmd.Int("days", 7, "Show usage for the last N days")
	cmd.Parse(args)

	usage, err := metricsStore.GetDailyUsage(ctx, *days)
	if err != nil {
		return fmt.Errorf("failed to read metrics: %w", err)
	}
	fmt.Println("Date        Prompt  Completion  Calls  Failed")
	for _, d := range usage {
		fmt.Printf("%-10s  %6d  %10d  %5d  %6d\n", d.Date, d.TotalPrompt, d.TotalCompletion, d.TotalExecution, d.Failed)
	}

	health := metrics.GetSysHealth(cfg.DatabasePath)
	fmt.Printf("\nDatabase: %s, heap: %dMB\n", health.DatabaseSize, health.AllocMB)
	return nil
}

func runCleanup(ctx context.Context, metricsStore *metrics.Store, args []string) error {
	cmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
	days := cmd.Int("days", 30, "Keep records for the last N days")
	cmd.Parse(args)

	affected, err := metricsStore.Cleanup(ctx, *days)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Printf("Successfully removed %d old metric records.\n", affected)
	return nil
}

func printUsage() {
	fmt.Println("Usage: ai-weekly-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  generate           Generate a meal plan (see generate -h)")
	fmt.Println("  metrics            Show generation usage per day")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}
