package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/sirupsen/logrus"
)

// Suggested actions on an AI recommendation.
const (
	AIActionApprove     = "APPROVE"
	AIActionReview      = "REVIEW"
	AIActionAdjustPrice = "ADJUST_PRICE"
)

const (
	aiTemperature      = 0.7
	aiMaxTokens        = 200
	aiDefaultMaxLines  = 4
	aiNoConcernsFactor = "No major concerns"
)

const aiSystemPrompt = `You are a sales advisor for a freight logistics company.
Your job is to provide concise, actionable sales recommendations based on pricing analysis results.
Your recommendations should be:
- Sales-oriented (focused on winning deals while maintaining margins)
- Concise (maximum %d lines)
- Action-oriented (what to do with the final price)
- Considerate of the business context provided`

// Completer is the chat completion call the recommender depends on.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
	Model() string
}

// AIRecommendationService turns a finished analysis into short sales advice.
type AIRecommendationService struct {
	client          Completer
	businessContext string
	maxLines        int
	timeouts        *TimeoutManager
	logger          *logrus.Logger
}

// NewAIRecommendationService returns a configuration error when no API key
// is configured, so the endpoint can report the feature as unavailable.
func NewAIRecommendationService(cfg config.AIConfig, client Completer, timeouts *TimeoutManager, logger *logrus.Logger) (*AIRecommendationService, error) {
	if cfg.APIKey == "" {
		return nil, utils.NewConfigurationError("OPENAI_API_KEY is not set")
	}
	if client == nil {
		return nil, utils.NewConfigurationError("AI client is not configured")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if timeouts == nil {
		timeouts = NewTimeoutManager(nil, logger)
	}
	maxLines := cfg.MaxLines
	if maxLines <= 0 {
		maxLines = aiDefaultMaxLines
	}
	return &AIRecommendationService{
		client:          client,
		businessContext: cfg.BusinessContext,
		maxLines:        maxLines,
		timeouts:        timeouts,
		logger:          logger,
	}, nil
}

// Recommend asks the model for advice on r. contextPrompt overrides the
// configured business context when non-empty.
func (s *AIRecommendationService) Recommend(ctx context.Context, r *models.AnalysisResult, contextPrompt string) (*models.AIRecommendation, error) {
	if r == nil {
		return nil, utils.NewInputError("analysis result is required")
	}
	if strings.TrimSpace(contextPrompt) == "" {
		contextPrompt = s.businessContext
	}

	system := fmt.Sprintf(aiSystemPrompt, s.maxLines)
	user := BuildRecommendationPrompt(r, contextPrompt, s.maxLines)

	var text string
	err := s.timeouts.Run(ctx, OpAIRecommendation, func(ctx context.Context) error {
		out, err := s.client.Complete(ctx, system, user, aiTemperature, aiMaxTokens)
		text = out
		return err
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"analysis_id": r.ID,
			"error":       err.Error(),
		}).Error("AI recommendation failed")
		return nil, utils.NewProviderError("openai", err)
	}

	return &models.AIRecommendation{
		Text:       text,
		Lines:      recommendationLines(text, s.maxLines),
		Confidence: ConfidenceLevel(r.CombinedConfidence),
		Action:     SuggestedAction(r.FinalRating),
		KeyFactors: keyFactors(r),
		Model:      s.client.Model(),
	}, nil
}

// BuildRecommendationPrompt renders the user prompt for r.
func BuildRecommendationPrompt(r *models.AnalysisResult, contextPrompt string, maxLines int) string {
	var b strings.Builder
	b.WriteString("PRICING ANALYSIS SUMMARY:\n")
	fmt.Fprintf(&b, "- Load Type: %s\n", r.LoadType)
	fmt.Fprintf(&b, "- Lane: %s to %s\n", r.Inputs.Origin, r.Inputs.Destination)
	fmt.Fprintf(&b, "- Overall Rating: %s\n", r.FinalRating)
	fmt.Fprintf(&b, "- Confidence: %d%%\n", r.CombinedConfidence)
	fmt.Fprintf(&b, "- Proposed Price: $%s\n", formatUSD(r.Inputs.ProposedPrice))
	fmt.Fprintf(&b, "- Suggested Price: $%s\n", formatUSD(r.SuggestedPrice))
	fmt.Fprintf(&b, "- Carrier Cost: $%s\n", formatUSD(r.Inputs.CarrierCost))
	fmt.Fprintf(&b, "- Proposed Margin: %.1f%%\n", r.PRCValidation.ProposedMarginPct)
	fmt.Fprintf(&b, "- PRC Rating: %s\n", r.PRCValidation.Rating)
	fmt.Fprintf(&b, "- Recommendation: %s", r.PRCValidation.Recommendation)
	if len(r.PRCValidation.Flags) > 0 {
		fmt.Fprintf(&b, "\n- Warning Flags: %s", strings.Join(r.PRCValidation.Flags, ", "))
	}

	fmt.Fprintf(&b, "\n\nBUSINESS CONTEXT: %s\n\n", contextPrompt)
	b.WriteString("Based on the pricing analysis above and the business context, provide a SHORT and CONCISE sales recommendation.\n")
	b.WriteString("Focus on what action to take with the final price.\n")
	fmt.Fprintf(&b, "Maximum %d lines.\n", maxLines)
	b.WriteString("Be direct and actionable.")
	return b.String()
}

// ConfidenceLevel buckets a combined confidence score.
func ConfidenceLevel(confidence int) string {
	switch {
	case confidence >= 80:
		return "HIGH"
	case confidence >= 60:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// SuggestedAction maps a final rating to the advised action.
func SuggestedAction(rating string) string {
	switch rating {
	case models.RatingExcellent, models.RatingGood:
		return AIActionApprove
	case models.RatingAcceptable:
		return AIActionReview
	default:
		return AIActionAdjustPrice
	}
}

func keyFactors(r *models.AnalysisResult) []string {
	if len(r.PRCValidation.Flags) == 0 {
		return []string{aiNoConcernsFactor}
	}
	out := make([]string, len(r.PRCValidation.Flags))
	copy(out, r.PRCValidation.Flags)
	return out
}

// recommendationLines splits the model output into at most max non-empty lines.
func recommendationLines(text string, max int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == max {
			break
		}
	}
	return lines
}
