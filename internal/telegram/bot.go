package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"ai-weekly-planner/internal/app"
	"ai-weekly-planner/internal/config"
	"ai-weekly-planner/internal/logger"
	"ai-weekly-planner/internal/metrics"
	"ai-weekly-planner/internal/planner"
	"ai-weekly-planner/internal/shopping"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// generationTimeout bounds one plan request including every retry.
const generationTimeout = 10 * time.Minute

const publishAction = "publish"

const usageText = "Send your preferences as `key: value` lines, for example:\n\n" +
	"```\nage: 34\ngoal: lose weight\ndiet: vegetarian\nexclude: peanuts\ndays: 3\n```\n" +
	"Known keys: age, gender, cuisine, conditions, goal, exclude, diet, days."

// botAPI is the part of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// generatedPlan is the last plan sent to a chat, kept for publishing.
type generatedPlan struct {
	plan      *planner.MealPlan
	requested int
}

// Bot wraps the Telegram API and the meal planning app.
type Bot struct {
	api          botAPI
	app          *app.App
	metricsStore *metrics.Store
	cfg          *config.Config
	log          *logger.Logger

	mu    sync.Mutex
	plans map[int64]generatedPlan
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, application *app.App, metricsStore *metrics.Store, log *logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Info("authorized on telegram", "account", api.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Info("webhook set", "description", resp.Description)

	return newBot(api, cfg, application, metricsStore, log), nil
}

func newBot(api botAPI, cfg *config.Config, application *app.App, metricsStore *metrics.Store, log *logger.Logger) *Bot {
	return &Bot{
		api:          api,
		app:          application,
		metricsStore: metricsStore,
		cfg:          cfg,
		log:          log,
		plans:        make(map[int64]generatedPlan),
	}
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.log.Warn("failed to parse update", "error", err)
		return
	}

	if update.CallbackQuery != nil {
		if b.isAllowed(update.CallbackQuery.From) {
			go b.handleCallbackQuery(update.CallbackQuery)
		}
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}
	if !b.isAllowed(update.Message.From) {
		b.log.Warn("unauthorized access attempt", "user_id", update.Message.From.ID, "username", update.Message.From.UserName)
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) isAllowed(user *tgbotapi.User) bool {
	return user != nil && slices.Contains(b.cfg.TelegramAllowedUserIDs, user.ID)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	switch strings.TrimSpace(msg.Text) {
	case "/metrics":
		b.handleMetricsRequest(msg)
	case "/start", "/help":
		b.sendMarkdown(msg.Chat.ID, usageText)
	default:
		b.handlePlannerRequest(msg)
	}
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminTelegramID {
		b.sendMarkdown(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	b.handleMetricsCommand(msg.Chat.ID)
}

func (b *Bot) handlePlannerRequest(msg *tgbotapi.Message) {
	req, err := app.ParseRequest(msg.Text)
	if err != nil {
		b.sendMarkdown(msg.Chat.ID, fmt.Sprintf("❓ %s\n\n%s", escapeMarkdown(err.Error()), usageText))
		return
	}

	sentMsg, err := b.api.Send(markdownMessage(msg.Chat.ID, "🧑‍🍳 *Thinking...*\n(Generating your plan day by day)"))
	if err != nil {
		b.log.Error("failed to send initial reply", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()

	log := b.log.With("user_id", msg.From.ID, "days", len(req.Days))
	log.Info("generating plan", "profile", req.Profile.Summary())

	plan, err := b.app.GenerateMealPlan(ctx, req.Profile, req.Days, func(p planner.Progress) {
		b.edit(msg.Chat.ID, sentMsg.MessageID, formatProgress(p), nil)
	})
	if err != nil {
		log.Error("plan generation failed", "error", err)
		b.edit(msg.Chat.ID, sentMsg.MessageID, formatError(err), nil)
		var planErr *planner.PlanError
		if errors.As(err, &planErr) && planErr.Diagnosis == planner.DiagnosisUnreachable {
			b.sendAdminAlert(fmt.Sprintf("⚠️ *Generation service unreachable*\n%s", escapeMarkdown(planErr.Diagnosis.Message())))
		}
		return
	}

	b.mu.Lock()
	b.plans[msg.Chat.ID] = generatedPlan{plan: plan, requested: len(req.Days)}
	b.mu.Unlock()

	planText, shoppingText := formatPlanMarkdownParts(plan, len(req.Days))
	var markup *tgbotapi.InlineKeyboardMarkup
	if b.app.CanPublish() {
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📝 Save as draft", publishAction+"|draft"),
				tgbotapi.NewInlineKeyboardButtonData("🌐 Publish", publishAction+"|live"),
			),
		)
		markup = &keyboard
	}
	b.edit(msg.Chat.ID, sentMsg.MessageID, planText, markup)
	b.sendMarkdown(msg.Chat.ID, shoppingText)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Answer callback to remove spinner
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))

	action, mode, _ := strings.Cut(query.Data, "|")
	if action != publishAction || query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	b.mu.Lock()
	last, ok := b.plans[chatID]
	b.mu.Unlock()
	if !ok {
		b.sendMarkdown(chatID, "ℹ️ No plan to publish yet. Send your preferences first.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	post, err := b.app.PublishPlan(ctx, last.plan, last.requested, mode == "live")
	if err != nil {
		b.log.Error("failed to publish plan", "chat_id", chatID, "error", err)
		b.sendMarkdown(chatID, fmt.Sprintf("❌ *Error publishing plan:*\n```\n%s\n```", strings.ReplaceAll(err.Error(), "`", "'")))
		return
	}

	text := fmt.Sprintf("✅ *Plan saved* (%s)", post.Status)
	if post.URL != "" {
		text += "\n" + post.URL
	}
	b.sendMarkdown(chatID, text)
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	usage, err := b.metricsStore.GetDailyUsage(context.Background(), 7)
	if err != nil {
		b.log.Error("failed to fetch metrics", "error", err)
		b.api.Send(tgbotapi.NewMessage(chatID, "❌ Error fetching metrics."))
		return
	}
	b.sendMarkdown(chatID, formatMetrics(usage, metrics.GetSysHealth(b.cfg.DatabasePath)))
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	b.sendMarkdown(b.cfg.AdminTelegramID, text)
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	if _, err := b.api.Send(markdownMessage(chatID, text)); err != nil {
		b.log.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = markup
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warn("failed to edit message", "chat_id", chatID, "error", err)
	}
}

func markdownMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}

func formatProgress(p planner.Progress) string {
	mark := "✅"
	if !p.Accepted {
		mark = "⚠️ skipped"
	}
	return fmt.Sprintf("🧑‍🍳 *Planning...* %d/%d\n%s %s", p.Index, p.Total, escapeMarkdown(p.DayLabel), mark)
}

func formatError(err error) string {
	var planErr *planner.PlanError
	if errors.As(err, &planErr) {
		return fmt.Sprintf("❌ *No days could be generated*\n%s", escapeMarkdown(planErr.Diagnosis.Message()))
	}
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *Error generating plan:*\n```\n%s\n```", safeErr)
}

var mealIcons = map[string]string{
	planner.MealBreakfast: "🍳",
	planner.MealLunch:     "🥗",
	planner.MealDinner:    "🍲",
}

// formatPlanMarkdownParts renders the plan and its grocery list as two
// Telegram messages.
func formatPlanMarkdownParts(plan *planner.MealPlan, requested int) (string, string) {
	var pb strings.Builder
	pb.WriteString("📅 *Weekly Meal Plan*\n")
	if notice := plan.PartialNotice(requested); notice != "" {
		fmt.Fprintf(&pb, "_%s_\n", escapeMarkdown(notice))
	}
	if plan.Notes != "" {
		fmt.Fprintf(&pb, "_%s_\n", escapeMarkdown(plan.Notes))
	}

	for _, day := range plan.Days {
		fmt.Fprintf(&pb, "\n*%s* (%d kcal)\n", escapeMarkdown(day.Day), day.Totals.Calories)
		for _, meal := range day.Meals {
			if len(meal.Items) == 0 {
				fmt.Fprintf(&pb, "%s %s: _none_\n", mealIcons[meal.Name], meal.Name)
				continue
			}
			it := meal.Items[0]
			fmt.Fprintf(&pb, "%s %s: %s", mealIcons[meal.Name], meal.Name, escapeMarkdown(it.Title))
			if total := it.PrepTime + it.CookTime; total > 0 {
				fmt.Fprintf(&pb, " (%d min)", total)
			}
			pb.WriteString("\n")
			if it.SimilarTo != "" {
				fmt.Fprintf(&pb, "    _similar to %s_\n", escapeMarkdown(it.SimilarTo))
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n")
	list := shopping.Build(plan)
	if list.Len() == 0 {
		sb.WriteString("\n_No ingredients listed_\n")
	}
	for _, g := range list.Groups {
		fmt.Fprintf(&sb, "\n*%s*\n", strings.ToUpper(g.Category[:1])+g.Category[1:])
		for _, e := range g.Entries {
			fmt.Fprintf(&sb, "• %s\n", escapeMarkdown(e.String()))
		}
	}

	return pb.String(), sb.String()
}

func formatMetrics(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d calls, %d failed)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.Failed)
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Database: %s\n", health.DatabaseSize)
	return sb.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown escapes model text for legacy Markdown parse mode.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
