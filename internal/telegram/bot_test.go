package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"ai-weekly-planner/internal/app"
	"ai-weekly-planner/internal/config"
	"ai-weekly-planner/internal/llm"
	"ai-weekly-planner/internal/logger"
	"ai-weekly-planner/internal/planner"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// mockAPI records everything the bot sends.
type mockAPI struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *mockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockAPI) HandleUpdate(r *http.Request) (*tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		return nil, err
	}
	return &update, nil
}

func (m *mockAPI) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.sent {
		switch v := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, v.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, v.Text)
		}
	}
	return out
}

var dayRe = regexp.MustCompile(`Create a meal plan for: ([^.\n]+)\.`)

type menuGenerator struct{}

func (menuGenerator) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResponse, error) {
	match := dayRe.FindStringSubmatch(req.Prompt)
	if match == nil {
		return nil, fmt.Errorf("unexpected prompt")
	}
	d := match[1]
	text := fmt.Sprintf(`{"days":[{"day":%q,"meals":[
		{"name":"Breakfast","items":[{"title":"%s Granola","calories":300,"ingredients":["1 cup %s oats"],"steps":["Mix"]}]},
		{"name":"Lunch","items":[{"title":"%s Falafel","calories":550,"ingredients":["200 g %s chickpeas"],"steps":["Fry"]}]},
		{"name":"Dinner","items":[{"title":"%s Curry","calories":700,"ingredients":["1 can %s coconut milk"],"steps":["Simmer"]}]}
	]}]}`, d, d, d, d, d, d, d)
	return &llm.GenerationResponse{Candidates: []llm.Candidate{{
		Content:      &llm.Content{Parts: []llm.Part{{Text: text}}},
		FinishReason: llm.FinishReasonStop,
	}}}, nil
}

func newTestBot(api botAPI, gen llm.Generator) *Bot {
	cfg := &config.Config{TelegramAllowedUserIDs: []int64{42}, AdminTelegramID: 42}
	application := app.NewApp(planner.NewPlanner(gen), nil, nil, logger.Nop())
	return newBot(api, cfg, application, nil, logger.Nop())
}

func TestPlannerRequest(t *testing.T) {
	t.Run("ProgressThenPlan", func(t *testing.T) {
		api := &mockAPI{}
		bot := newTestBot(api, menuGenerator{})

		bot.processMessage(&tgbotapi.Message{
			From: &tgbotapi.User{ID: 42},
			Chat: &tgbotapi.Chat{ID: 7},
			Text: "goal: gain muscle\ndays: 2",
		})

		texts := api.texts()
		// thinking, two progress edits, plan edit, shopping list
		if len(texts) != 5 {
			t.Fatalf("Expected 5 messages, got %d: %v", len(texts), texts)
		}
		if !strings.Contains(texts[1], "1/2") || !strings.Contains(texts[2], "2/2") {
			t.Errorf("Expected progress edits, got %q and %q", texts[1], texts[2])
		}
		if !strings.Contains(texts[3], "Monday Granola") || !strings.Contains(texts[3], "Tuesday Curry") {
			t.Errorf("Expected plan text, got %q", texts[3])
		}
		if !strings.Contains(texts[4], "Shopping List") || !strings.Contains(texts[4], "chickpeas") {
			t.Errorf("Expected shopping list, got %q", texts[4])
		}

		bot.mu.Lock()
		_, stored := bot.plans[7]
		bot.mu.Unlock()
		if !stored {
			t.Error("Expected the plan to be kept for publishing")
		}
	})

	t.Run("InvalidRequest", func(t *testing.T) {
		api := &mockAPI{}
		bot := newTestBot(api, menuGenerator{})

		bot.processMessage(&tgbotapi.Message{From: &tgbotapi.User{ID: 42}, Chat: &tgbotapi.Chat{ID: 7}, Text: "colour: blue"})

		texts := api.texts()
		if len(texts) != 1 || !strings.Contains(texts[0], "unknown field") {
			t.Errorf("Expected a usage reply, got %v", texts)
		}
	})

	t.Run("TotalFailure", func(t *testing.T) {
		api := &mockAPI{}
		gen := generatorFunc(func(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResponse, error) {
			return nil, &llm.StatusError{StatusCode: 403, Body: "forbidden"}
		})
		bot := newTestBot(api, gen)

		bot.processMessage(&tgbotapi.Message{From: &tgbotapi.User{ID: 42}, Chat: &tgbotapi.Chat{ID: 7}, Text: "days: 1"})

		texts := api.texts()
		joined := strings.Join(texts, "\n")
		if !strings.Contains(joined, "No days could be generated") || !strings.Contains(joined, "misconfigured") {
			t.Errorf("Expected a diagnosis, got %v", texts)
		}
		if !strings.Contains(joined, "Generation service unreachable") {
			t.Errorf("Expected an admin alert, got %v", texts)
		}
	})
}

type generatorFunc func(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResponse, error)

func (f generatorFunc) Generate(ctx context.Context, req llm.GenerationRequest) (*llm.GenerationResponse, error) {
	return f(ctx, req)
}

func TestWebhookIgnoresUnknownUsers(t *testing.T) {
	api := &mockAPI{}
	bot := newTestBot(api, menuGenerator{})
	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	body := `{"update_id":1,"message":{"message_id":1,"from":{"id":99},"chat":{"id":99},"text":"/help"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if got := api.texts(); len(got) != 0 {
		t.Errorf("Expected no replies to an unknown user, got %v", got)
	}

	health := httptest.NewRecorder()
	mux.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	if health.Code != http.StatusOK {
		t.Errorf("Expected health 200, got %d", health.Code)
	}
}

func TestMetricsAdminOnly(t *testing.T) {
	api := &mockAPI{}
	bot := newTestBot(api, menuGenerator{})
	bot.cfg.AdminTelegramID = 1

	bot.processMessage(&tgbotapi.Message{From: &tgbotapi.User{ID: 42}, Chat: &tgbotapi.Chat{ID: 7}, Text: "/metrics"})

	texts := api.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Access Denied") {
		t.Errorf("Expected access denied, got %v", texts)
	}
}

func TestFormatPlanMarkdownParts(t *testing.T) {
	qty := 2.0
	plan := &planner.MealPlan{
		Days: []planner.Day{{
			Day:    "Monday",
			Totals: planner.Totals{Calories: 1800},
			Meals: []planner.Meal{
				{Name: planner.MealBreakfast, Items: []planner.Item{{Title: "Eggs_Benedict", PrepTime: 5, CookTime: 10,
					Ingredients: []planner.Ingredient{{Item: "eggs", Quantity: &qty, Category: "protein"}}}}},
				{Name: planner.MealLunch, Items: []planner.Item{{Title: "Tuna Melt", SimilarTo: "Tuna Salad"}}},
				{Name: planner.MealDinner, Items: []planner.Item{}},
			},
		}},
	}

	planOutput, shoppingOutput := formatPlanMarkdownParts(plan, 2)

	for _, want := range []string{
		"📅 *Weekly Meal Plan*",
		"1 of 2 days generated",
		"*Monday* (1800 kcal)",
		`Eggs\_Benedict (15 min)`,
		"_similar to Tuna Salad_",
		"Dinner: _none_",
	} {
		if !strings.Contains(planOutput, want) {
			t.Errorf("Expected plan to contain %q, got:\n%s", want, planOutput)
		}
	}
	if !strings.Contains(shoppingOutput, "*Protein*") || !strings.Contains(shoppingOutput, "• 2 eggs") {
		t.Errorf("Unexpected shopping list:\n%s", shoppingOutput)
	}
}

func TestFormatProgress(t *testing.T) {
	if got := formatProgress(planner.Progress{DayLabel: "Friday", Index: 5, Total: 7, Accepted: false}); !strings.Contains(got, "5/7") || !strings.Contains(got, "skipped") {
		t.Errorf("Unexpected progress text %q", got)
	}
}
