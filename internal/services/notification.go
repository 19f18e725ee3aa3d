package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/metrics"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/telemetry"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Alert outcomes.
const (
	AlertSent      = "sent"
	AlertDuplicate = "duplicate"
	AlertSkipped   = "skipped"
	AlertError     = "error"
)

// MessageSender is the part of the Telegram bot the service uses.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// NewTelegramSender creates a bot for token. An empty token yields nil,
// which disables alerts.
func NewTelegramSender(token string) (MessageSender, error) {
	if token == "" {
		return nil, nil
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return b, nil
}

// NotificationService alerts the pricing desk about analyses that need a
// human. The same lane, customer and rating alert at most once per dedup
// window.
type NotificationService struct {
	sender   MessageSender
	chatID   int64
	redis    *redis.Client
	dedupTTL time.Duration
	metrics  *metrics.Recorder
	tracer   *telemetry.BusinessTracer
	logger   *logrus.Logger
}

func NewNotificationService(sender MessageSender, chatID int64, redisClient *redis.Client, dedupTTL time.Duration, recorder *metrics.Recorder, logger *logrus.Logger) *NotificationService {
	if logger == nil {
		logger = logrus.New()
	}
	if dedupTTL <= 0 {
		dedupTTL = time.Hour
	}
	return &NotificationService{
		sender:   sender,
		chatID:   chatID,
		redis:    redisClient,
		dedupTTL: dedupTTL,
		metrics:  recorder,
		tracer:   telemetry.NewBusinessTracer(),
		logger:   logger,
	}
}

// Enabled reports whether alerts can be delivered.
func (ns *NotificationService) Enabled() bool {
	return ns != nil && ns.sender != nil && ns.chatID != 0
}

// NeedsAlert reports whether a result should be escalated.
func NeedsAlert(r *models.AnalysisResult) bool {
	return r != nil && (r.FinalRating == models.RatingPoor || r.FinalRating == models.RatingNeedsReview)
}

// NotifyReview sends an alert for r when it needs review. It returns the
// outcome; failures are logged and never propagated to the request.
func (ns *NotificationService) NotifyReview(ctx context.Context, r *models.AnalysisResult, quoteID string) string {
	if !ns.Enabled() || !NeedsAlert(r) {
		return AlertSkipped
	}

	key := dedupKey(r)
	if ns.redis != nil {
		fresh, err := ns.redis.SetNX(ctx, key, r.ID, ns.dedupTTL).Result()
		if err != nil {
			ns.logger.WithError(err).Warn("Alert de-duplication unavailable, sending anyway")
		} else if !fresh {
			ns.metrics.RecordAlert(AlertDuplicate)
			return AlertDuplicate
		}
	}

	ctx, span := ns.tracer.TraceNotification(ctx, strings.ToLower(r.FinalRating), "telegram")
	defer span.End()

	_, err := ns.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    ns.chatID,
		Text:      FormatReviewAlert(r, quoteID),
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	ns.tracer.RecordNotificationResult(span, err == nil, 1, err)
	if err != nil {
		ns.metrics.RecordAlert(AlertError)
		ns.logger.WithFields(logrus.Fields{
			"analysis_id": r.ID,
			"error":       err.Error(),
		}).Error("Failed to send review alert")
		if ns.redis != nil {
			ns.redis.Del(ctx, key)
		}
		return AlertError
	}

	ns.metrics.RecordAlert(AlertSent)
	ns.logger.WithFields(logrus.Fields{
		"analysis_id":  r.ID,
		"final_rating": r.FinalRating,
	}).Info("Review alert sent")
	return AlertSent
}

func dedupKey(r *models.AnalysisResult) string {
	customer := strings.ToLower(strings.TrimSpace(r.Inputs.CustomerName))
	return fmt.Sprintf("alert:%s-%s:%s:%s", r.Inputs.OriginZip, r.Inputs.DestinationZip, customer, r.FinalRating)
}

// FormatReviewAlert renders the Telegram message for a result.
func FormatReviewAlert(r *models.AnalysisResult, quoteID string) string {
	var b strings.Builder

	header := "⚠️ *Pricing review needed*"
	if r.FinalRating == models.RatingPoor {
		header = "🚨 *Poor pricing detected*"
	}
	b.WriteString(header + "\n\n")

	if quoteID != "" {
		fmt.Fprintf(&b, "Quote: `%s`\n", quoteID)
	}
	if r.Inputs.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", escapeMarkdown(r.Inputs.CustomerName))
	}
	fmt.Fprintf(&b, "Lane: %s → %s (%s)\n", escapeMarkdown(r.Inputs.Origin), escapeMarkdown(r.Inputs.Destination), r.LoadType)
	fmt.Fprintf(&b, "Equipment: %s\n\n", escapeMarkdown(r.Inputs.EquipmentType))

	fmt.Fprintf(&b, "Rating: *%s* (confidence %d%%)\n", escapeMarkdown(r.FinalRating), r.CombinedConfidence)
	fmt.Fprintf(&b, "Proposed: $%.2f at %.1f%% margin\n", r.Inputs.ProposedPrice, r.PRCValidation.ProposedMarginPct)
	fmt.Fprintf(&b, "Carrier cost: $%.2f\n", r.Inputs.CarrierCost)
	fmt.Fprintf(&b, "Suggested: $%.2f at %.1f%% margin\n", r.SuggestedPrice, r.SuggestedMarginPct)

	if r.MarginFlag == models.MarginFlagBelowMinimum {
		b.WriteString("\n🚨 Margin below minimum threshold\n")
	}
	if len(r.PRCValidation.Flags) > 0 {
		b.WriteString("\nFlags:\n")
		for _, f := range r.PRCValidation.Flags {
			fmt.Fprintf(&b, "• %s\n", escapeMarkdown(f))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
