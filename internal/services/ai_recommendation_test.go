package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	text       string
	err        error
	gotSystem  string
	gotUser    string
	gotTemp    float64
	gotTokens  int
	callsCount int
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	f.callsCount++
	f.gotSystem = system
	f.gotUser = user
	f.gotTemp = temperature
	f.gotTokens = maxTokens
	return f.text, f.err
}

func (f *fakeCompleter) Model() string { return "gpt-test" }

func sampleAnalysisResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		ID:                 "a-1",
		LoadType:           models.LoadTypeSingleStop,
		FinalRating:        models.RatingGood,
		CombinedConfidence: 72,
		SuggestedPrice:     2450,
		Inputs: models.AnalysisInputs{
			ProposedPrice: 2400,
			CarrierCost:   2000,
			Origin:        "Dallas, TX",
			Destination:   "Chicago, IL",
		},
		PRCValidation: models.PRCResult{
			Rating:            models.RatingGood,
			Recommendation:    "Price is competitive",
			ProposedMarginPct: 16.7,
		},
	}
}

func TestNewAIRecommendationService_RequiresKey(t *testing.T) {
	_, err := NewAIRecommendationService(config.AIConfig{}, &fakeCompleter{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, utils.KindConfiguration, utils.KindOf(err))
}

func TestAIRecommendationService_Recommend(t *testing.T) {
	fc := &fakeCompleter{text: "Approve at $2,400.\nHold firm on margin.\n\nMention holiday capacity.\nExtra\nMore"}
	svc, err := NewAIRecommendationService(config.AIConfig{APIKey: "k", BusinessContext: "Peak season", MaxLines: 4}, fc, nil, nil)
	require.NoError(t, err)

	rec, err := svc.Recommend(context.Background(), sampleAnalysisResult(), "")
	require.NoError(t, err)

	assert.Equal(t, 0.7, fc.gotTemp)
	assert.Equal(t, 200, fc.gotTokens)
	assert.Contains(t, fc.gotSystem, "maximum 4 lines")
	assert.Contains(t, fc.gotUser, "BUSINESS CONTEXT: Peak season")
	assert.Contains(t, fc.gotUser, "- Proposed Price: $2,400.00")
	assert.Contains(t, fc.gotUser, "- Confidence: 72%")

	assert.Len(t, rec.Lines, 4)
	assert.Equal(t, "Approve at $2,400.", rec.Lines[0])
	assert.Equal(t, "MEDIUM", rec.Confidence)
	assert.Equal(t, AIActionApprove, rec.Action)
	assert.Equal(t, []string{"No major concerns"}, rec.KeyFactors)
	assert.Equal(t, "gpt-test", rec.Model)
}

func TestAIRecommendationService_ContextOverride(t *testing.T) {
	fc := &fakeCompleter{text: "ok"}
	svc, err := NewAIRecommendationService(config.AIConfig{APIKey: "k", BusinessContext: "Peak season"}, fc, nil, nil)
	require.NoError(t, err)

	r := sampleAnalysisResult()
	r.PRCValidation.Flags = []string{"LOW_MARGIN: below target"}
	rec, err := svc.Recommend(context.Background(), r, "End of quarter")
	require.NoError(t, err)

	assert.Contains(t, fc.gotUser, "BUSINESS CONTEXT: End of quarter")
	assert.Contains(t, fc.gotUser, "- Warning Flags: LOW_MARGIN: below target")
	assert.Equal(t, []string{"LOW_MARGIN: below target"}, rec.KeyFactors)
}

func TestAIRecommendationService_ProviderError(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("rate limited")}
	svc, err := NewAIRecommendationService(config.AIConfig{APIKey: "k"}, fc, nil, nil)
	require.NoError(t, err)

	_, err = svc.Recommend(context.Background(), sampleAnalysisResult(), "")
	require.Error(t, err)
	assert.Equal(t, utils.KindProvider, utils.KindOf(err))
}

func TestConfidenceLevelAndAction(t *testing.T) {
	assert.Equal(t, "HIGH", ConfidenceLevel(80))
	assert.Equal(t, "MEDIUM", ConfidenceLevel(60))
	assert.Equal(t, "LOW", ConfidenceLevel(59))

	assert.Equal(t, AIActionApprove, SuggestedAction(models.RatingExcellent))
	assert.Equal(t, AIActionReview, SuggestedAction(models.RatingAcceptable))
	assert.Equal(t, AIActionAdjustPrice, SuggestedAction(models.RatingPoor))
	assert.Equal(t, AIActionAdjustPrice, SuggestedAction(models.RatingNeedsReview))
}
