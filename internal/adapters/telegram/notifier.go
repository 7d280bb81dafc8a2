package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"calliope/internal/domain/generation"
	"calliope/internal/services/costs"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// Notifier sends generation lifecycle notifications to a Telegram chat.
// Outbound only, no update polling.
type Notifier struct {
	api         *tgbotapi.BotAPI
	chatID      int64
	rateLimiter *rate.Limiter
	log         *logger.Logger
}

// Config contains Telegram notifier configuration
type Config struct {
	Token          string
	ChatID         int64
	HTTPTimeout    time.Duration
	RateLimitBurst int // Rate limiter burst (default: 30)
	RateLimitRate  int // Rate limiter per second (default: 20)
}

// NewNotifier creates a new Telegram notifier
func NewNotifier(cfg Config) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram chat id is required")
	}

	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 30 // Telegram allows bursts
	}
	if cfg.RateLimitRate == 0 {
		cfg.RateLimitRate = 20 // Conservative: 20 msg/sec (Telegram limit is 30)
	}

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	return &Notifier{
		api:         api,
		chatID:      cfg.ChatID,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRate), cfg.RateLimitBurst),
		log:         logger.Get().With("component", "telegram_notifier"),
	}, nil
}

// NotifyJobCompleted reports a finished generation job
func (n *Notifier) NotifyJobCompleted(ctx context.Context, job *generation.Job) error {
	duration := "unknown"
	if job.CompletedAt != nil {
		duration = humanize.RelTime(job.CreatedAt, *job.CompletedAt, "", "")
	}

	text := fmt.Sprintf(
		"✅ Generation completed\n\nJob: %s\nPipeline: %s\nBrand: %d\nTokens: %s\nCost: %s\nDuration: %s",
		job.ID, job.Pipeline, job.BrandID,
		humanize.Comma(job.TotalTokens), costs.FormatUSD(job.TotalCostUSD), duration,
	)
	return n.send(ctx, text)
}

// NotifyJobFailed reports a failed generation job
func (n *Notifier) NotifyJobFailed(ctx context.Context, job *generation.Job) error {
	reason := "unknown error"
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		reason = *job.ErrorMessage
	}

	text := fmt.Sprintf(
		"❌ Generation failed\n\nJob: %s\nPipeline: %s\nBrand: %d\nStep: %s\nReason: %s",
		job.ID, job.Pipeline, job.BrandID, job.CurrentStep, reason,
	)
	return n.send(ctx, text)
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if err := n.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "telegram rate limiter wait cancelled")
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		n.log.Errorf("Failed to send telegram notification: %v", err)
		return errors.Wrap(err, "send telegram message")
	}
	return nil
}
