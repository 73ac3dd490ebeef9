package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"meal-planner-api/internal/account"
	"meal-planner-api/internal/config"
	"meal-planner-api/internal/metrics"
	"meal-planner-api/internal/planner"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot wraps the Telegram API around the plan scheduler. Each Telegram user
// maps to an account keyed "tg:<id>", created on first contact.
type Bot struct {
	api          *tgbotapi.BotAPI
	scheduler    *planner.Scheduler
	accounts     *account.Repository
	metricsStore *metrics.Store
	cfg          *config.Config
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(
	cfg *config.Config,
	scheduler *planner.Scheduler,
	accounts *account.Repository,
	metricsStore *metrics.Store,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	wh, _ := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return &Bot{
		api:          api,
		scheduler:    scheduler,
		accounts:     accounts,
		metricsStore: metricsStore,
		cfg:          cfg,
	}, nil
}

// RegisterHandlers registers the webhook handler with the default HTTP mux.
func (b *Bot) RegisterHandlers() {
	http.HandleFunc("/webhook", b.handleWebhook)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.Message == nil {
		return
	}

	isAllowed := false
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if update.Message.From.ID == id {
			isAllowed = true
			break
		}
	}

	if !isAllowed {
		log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", update.Message.From.ID, update.Message.From.UserName)
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	userID := fmt.Sprintf("tg:%d", msg.From.ID)
	user, err := b.accounts.EnsureUser(ctx, userID, msg.From.FirstName)
	if err != nil {
		log.Printf("Failed to load account for %s: %v", userID, err)
		b.reply(msg.Chat.ID, "Something went wrong loading your account. Try again later.")
		return
	}

	command, arg := splitCommand(msg.Text)
	switch command {
	case "/start", "/help":
		b.reply(msg.Chat.ID, helpText(b.scheduler.Capacity()))
	case "/plan":
		b.handlePlan(ctx, msg.Chat.ID, user, arg)
	case "/ahead":
		b.handleAhead(ctx, msg.Chat.ID, user)
	case "/done":
		b.handleDone(ctx, msg.Chat.ID, user, arg)
	case "/today":
		b.handleToday(ctx, msg.Chat.ID, user)
	case "/status":
		b.handleStatus(ctx, msg.Chat.ID, user)
	case "/metrics":
		b.handleMetrics(ctx, msg)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Send /help for the list of commands.")
	}
}

func (b *Bot) handlePlan(ctx context.Context, chatID int64, user *account.User, arg string) {
	days := 1
	if arg != "" {
		parsed, err := strconv.Atoi(arg)
		if err != nil || parsed < 1 {
			b.reply(chatID, "Usage: /plan <days>, e.g. /plan 3")
			return
		}
		days = parsed
	}

	b.reply(chatID, fmt.Sprintf("🧑‍🍳 Generating %d day(s) of meals...", days))

	plan, err := b.scheduler.GeneratePlan(ctx, user.ID, user.Profile, days)
	if err != nil {
		b.reply(chatID, planErrorText(err))
		return
	}
	b.reply(chatID, "Here is your new plan:\n\n"+formatPlan(plan))
}

func (b *Bot) handleAhead(ctx context.Context, chatID int64, user *account.User) {
	b.reply(chatID, "🧑‍🍳 Filling your week, this can take a minute...")

	res, err := b.scheduler.GenerateAhead(ctx, user.ID, user.Profile)
	if err != nil {
		b.reply(chatID, planErrorText(err))
		return
	}

	switch {
	case res.RequestedDays == 0:
		b.reply(chatID, fmt.Sprintf("Your next %d days are already planned. Mark days as done with /done to free up space.", b.scheduler.Capacity()))
	case res.GeneratedDays == 0:
		b.reply(chatID, "I couldn't generate any days right now. Please try again later.")
	case res.GeneratedDays < res.RequestedDays:
		b.reply(chatID, fmt.Sprintf("Generated %d of %d days before the generator gave up. Last batch:\n\n%s",
			res.GeneratedDays, res.RequestedDays, formatPlan(res.Plan)))
	default:
		b.reply(chatID, fmt.Sprintf("Your week is fully planned (%d new days). Last batch:\n\n%s",
			res.GeneratedDays, formatPlan(res.Plan)))
	}
}

func (b *Bot) handleDone(ctx context.Context, chatID int64, user *account.User, arg string) {
	if arg == "" {
		b.reply(chatID, "Usage: /done YYYY-MM-DD")
		return
	}
	date, err := time.ParseInLocation(planner.DateFormat, arg, time.UTC)
	if err != nil {
		b.reply(chatID, "I couldn't read that date. Usage: /done YYYY-MM-DD")
		return
	}

	err = b.scheduler.CompleteDay(ctx, user.ID, date)
	if errors.Is(err, planner.ErrDayNotFound) {
		b.reply(chatID, fmt.Sprintf("No planned day found on %s.", arg))
		return
	}
	if err != nil {
		log.Printf("Failed to complete day for %s: %v", user.ID, err)
		b.reply(chatID, "Something went wrong. Try again later.")
		return
	}
	b.reply(chatID, fmt.Sprintf("✅ %s marked as done.", arg))
}

func (b *Bot) handleToday(ctx context.Context, chatID int64, user *account.User) {
	entry, err := b.scheduler.DayOn(ctx, user.ID, time.Now())
	if err != nil {
		log.Printf("Failed to read today's plan for %s: %v", user.ID, err)
		b.reply(chatID, "Something went wrong. Try again later.")
		return
	}
	if entry == nil {
		b.reply(chatID, "Nothing planned for today. Use /plan or /ahead to generate meals.")
		return
	}
	b.reply(chatID, formatDay(*entry))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64, user *account.User) {
	count, err := b.scheduler.CountActiveDays(ctx, user.ID)
	if err != nil {
		log.Printf("Failed to count days for %s: %v", user.ID, err)
		b.reply(chatID, "Something went wrong. Try again later.")
		return
	}
	latest, err := b.scheduler.LatestActiveDate(ctx, user.ID)
	if err != nil {
		log.Printf("Failed to read latest date for %s: %v", user.ID, err)
		b.reply(chatID, "Something went wrong. Try again later.")
		return
	}

	text := fmt.Sprintf("📅 %d of %d days planned.", count, b.scheduler.Capacity())
	if latest != nil {
		text += fmt.Sprintf(" Last planned day: %s.", latest.Format(planner.DateFormat))
	}
	b.reply(chatID, text)
}

func (b *Bot) handleMetrics(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.TelegramAdminID {
		b.reply(msg.Chat.ID, "⛔ Access denied: admin only.")
		return
	}

	usage, err := b.metricsStore.GetDailyUsage(ctx, 7)
	if err != nil {
		log.Printf("Failed to read daily usage: %v", err)
		b.reply(msg.Chat.ID, "Failed to read metrics.")
		return
	}
	if len(usage) == 0 {
		b.reply(msg.Chat.ID, "No generator activity in the last 7 days.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Generator usage, last 7 days:\n")
	for _, u := range usage {
		fmt.Fprintf(&sb, "%s: %d calls, %d prompt / %d completion tokens\n",
			u.Date, u.TotalExecutions, u.TotalPrompt, u.TotalCompletion)
	}
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("Failed to send telegram message: %v", err)
	}
}

// splitCommand splits "/plan 3" into "/plan" and "3".
func splitCommand(text string) (command, arg string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func planErrorText(err error) string {
	var genErr *planner.GenerationError
	switch {
	case errors.Is(err, planner.ErrCapacityExceeded):
		return "Your plan window is full. Mark some days as done with /done before generating more."
	case errors.As(err, &genErr):
		return "The meal generator is having trouble right now. Please try again later."
	default:
		log.Printf("Plan request failed: %v", err)
		return "Something went wrong. Try again later."
	}
}

// formatPlan renders a plan window with days in date order.
func formatPlan(plan *planner.MealPlan) string {
	labels := make([]string, 0, len(plan.Dates))
	for label := range plan.Dates {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		return plan.Dates[labels[i]] < plan.Dates[labels[j]]
	})

	var sb strings.Builder
	for _, label := range labels {
		day := plan.Days[label]
		fmt.Fprintf(&sb, "📅 %s\n", plan.Dates[label])
		fmt.Fprintf(&sb, "  🍳 %s\n", day.Breakfast.Name)
		fmt.Fprintf(&sb, "  🥗 %s\n", day.Lunch.Name)
		fmt.Fprintf(&sb, "  🍽 %s\n", day.Dinner.Name)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDay(entry planner.DayEntry) string {
	return fmt.Sprintf("📅 %s\n  🍳 %s\n  🥗 %s\n  🍽 %s",
		entry.Date.Format(planner.DateFormat),
		entry.Meals.Breakfast.Name,
		entry.Meals.Lunch.Name,
		entry.Meals.Dinner.Name,
	)
}

func helpText(capacity int) string {
	return fmt.Sprintf(`I plan your meals up to %d days ahead.

/plan <days> - generate a plan for the next <days> days
/ahead - fill your window up to %d days
/done YYYY-MM-DD - mark a day as complete
/today - show today's meals
/status - how many days are planned`, capacity, capacity)
}
