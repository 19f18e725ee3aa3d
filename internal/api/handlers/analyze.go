package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dtslogistics/pricing-agent/internal/logging"
	"github.com/dtslogistics/pricing-agent/internal/middleware"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/services"
	"github.com/dtslogistics/pricing-agent/internal/utils"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
)

// Analyzer runs one pricing analysis against a lookup snapshot.
type Analyzer interface {
	RunAnalysis(ctx context.Context, table *models.LookupTable, req models.ShipmentRequest) (*models.AnalysisResult, error)
}

// LookupTables exposes the current historical snapshot.
type LookupTables interface {
	Snapshot() (*models.LookupTable, error)
	Loaded() bool
	Records() int
	LoadedAt() time.Time
	LastError() string
	RefreshAsync() bool
}

// AuditRecorder stores an audit entry without blocking the request.
type AuditRecorder interface {
	RecordAsync(entry models.AuditEntry)
}

// ReviewNotifier alerts the pricing desk about results that need review.
type ReviewNotifier interface {
	NotifyReview(ctx context.Context, r *models.AnalysisResult, quoteID string) string
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	ProposedPrice float64                  `json:"proposed_price" validate:"gt=0"`
	CarrierCost   *models.CarrierCostInput `json:"carrier_cost,omitempty"`
	Stops         []models.Stop            `json:"stops" validate:"required,min=2,dive"`
	CustomerName  string                   `json:"customer_name" validate:"required,max=200"`
	EquipmentType string                   `json:"equipment_type" default:"VAN" validate:"required,max=64"`
	PickupDate    string                   `json:"pickup_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DeliveryDate  string                   `json:"delivery_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Weight        *float64                 `json:"weight,omitempty" validate:"omitempty,gt=0"`
	QuoteID       string                   `json:"quote_id,omitempty" validate:"max=64"`
	ContextPrompt string                   `json:"context_prompt,omitempty" validate:"max=1000"`
	IncludeAI     *bool                    `json:"include_ai,omitempty" default:"true"`
}

// Shipment converts the request into the engine's input. A missing carrier
// cost means "auto".
func (r AnalyzeRequest) Shipment() (models.ShipmentRequest, error) {
	out := models.ShipmentRequest{
		ProposedPrice: decimal.NewFromFloat(r.ProposedPrice),
		CarrierCost:   models.AutoCarrierCost(),
		Stops:         r.Stops,
		CustomerName:  strings.TrimSpace(r.CustomerName),
		EquipmentType: r.EquipmentType,
		Weight:        r.Weight,
	}
	if r.CarrierCost != nil {
		out.CarrierCost = *r.CarrierCost
	}
	var err error
	if out.PickupDate, err = parseRequestDate(r.PickupDate); err != nil {
		return out, err
	}
	if out.DeliveryDate, err = parseRequestDate(r.DeliveryDate); err != nil {
		return out, err
	}
	return out, nil
}

func parseRequestDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return nil, utils.NewInputError("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

// AnalyzeResponse is the body returned for a successful analysis.
type AnalyzeResponse struct {
	Success          bool                     `json:"success"`
	Timestamp        time.Time                `json:"timestamp"`
	AnalysisResults  *models.AnalysisResult   `json:"analysis_results"`
	ExecutionSeconds float64                  `json:"execution_time_seconds"`
	Decision         models.Decision          `json:"decision"`
	AIRecommendation *models.AIRecommendation `json:"ai_recommendation,omitempty"`
}

// AnalyzeHandler serves pricing analyses.
type AnalyzeHandler struct {
	analyzer Analyzer
	lookup   LookupTables
	audit    AuditRecorder
	notifier ReviewNotifier
	ai       interfaces.Recommender
	events   *logging.StandardLogger
	logger   *logrus.Logger
	now      func() time.Time

	background sync.WaitGroup
}

// AnalyzeDeps are the collaborators of AnalyzeHandler. Audit, Notifier and
// AI are optional.
type AnalyzeDeps struct {
	Analyzer Analyzer
	Lookup   LookupTables
	Audit    AuditRecorder
	Notifier ReviewNotifier
	AI       interfaces.Recommender
	Events   *logging.StandardLogger
}

func NewAnalyzeHandler(deps AnalyzeDeps, logger *logrus.Logger, now func() time.Time) *AnalyzeHandler {
	if logger == nil {
		logger = logrus.New()
	}
	if now == nil {
		now = time.Now
	}
	return &AnalyzeHandler{
		analyzer: deps.Analyzer,
		lookup:   deps.Lookup,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		ai:       deps.AI,
		events:   deps.Events,
		logger:   logger,
		now:      now,
	}
}

// Analyze handles POST /api/v1/analyze.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if errs := bindAndValidate(c, &req); errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": errs})
		return
	}

	shipment, err := req.Shipment()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Analysis error", "details": utils.Message(err)})
		return
	}

	table, err := h.lookup.Snapshot()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Lookup table not loaded",
			"details": "historical data is unavailable, retry after /api/v1/unity/refresh completes",
		})
		return
	}

	start := h.now()
	ctx := c.Request.Context()
	result, err := h.analyzer.RunAnalysis(ctx, table, shipment)
	if err != nil {
		h.analysisFailed(c, err)
		return
	}
	middleware.AddSpanAttribute(c, "pricing.analysis_id", result.ID)
	middleware.AddSpanAttribute(c, "pricing.final_rating", result.FinalRating)

	decision := services.Decide(result)

	var rec *models.AIRecommendation
	if h.ai != nil && req.IncludeAI != nil && *req.IncludeAI {
		rec, err = h.ai.Recommend(ctx, result, req.ContextPrompt)
		if err != nil {
			rec = nil
			h.logger.WithFields(logrus.Fields{
				"analysis_id": result.ID,
				"error":       err.Error(),
			}).Warn("Continuing without AI recommendation")
		}
	}

	elapsed := h.now().Sub(start).Seconds()
	h.afterAnalysis(c, req, shipment, result, elapsed)

	c.JSON(http.StatusOK, AnalyzeResponse{
		Success:          true,
		Timestamp:        result.Timestamp,
		AnalysisResults:  result,
		ExecutionSeconds: elapsed,
		Decision:         decision,
		AIRecommendation: rec,
	})
}

func (h *AnalyzeHandler) analysisFailed(c *gin.Context, err error) {
	middleware.RecordError(c, err, "analysis failed")
	if h.events != nil {
		h.events.LogBusinessEvent(logging.EventAnalysisFailed, map[string]interface{}{
			"kind":  string(utils.KindOf(err)),
			"error": err.Error(),
		})
	}
	if utils.IsKind(err, utils.KindInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Analysis error", "details": utils.Message(err)})
		return
	}
	h.logger.WithError(err).Error("Analysis failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": "analysis failed"})
}

// afterAnalysis records the audit entry and queues the review alert. Neither
// can fail the request.
func (h *AnalyzeHandler) afterAnalysis(c *gin.Context, req AnalyzeRequest, shipment models.ShipmentRequest, result *models.AnalysisResult, elapsed float64) {
	caller := middleware.Caller(c)
	if caller == "anonymous" {
		caller = ""
	}

	if h.audit != nil {
		h.audit.RecordAsync(models.AuditEntry{
			ID:               uuid.NewString(),
			Timestamp:        result.Timestamp,
			QuoteID:          req.QuoteID,
			User:             caller,
			ExecutionSeconds: elapsed,
			Request:          shipment,
			Result:           result,
		})
	}

	if h.notifier != nil && services.NeedsAlert(result) {
		h.background.Add(1)
		go func() {
			defer h.background.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			outcome := h.notifier.NotifyReview(ctx, result, req.QuoteID)
			if outcome == services.AlertSent && h.events != nil {
				h.events.LogBusinessEvent(logging.EventAlertSent, map[string]interface{}{
					"analysis_id":  result.ID,
					"final_rating": result.FinalRating,
				})
			}
		}()
	}

	if h.events != nil {
		h.events.WithAnalysisID(result.ID).Debug("analysis finished", "caller", caller)
		h.events.LogBusinessEvent(logging.EventAnalysisCompleted, map[string]interface{}{
			"analysis_id":         result.ID,
			"quote_id":            req.QuoteID,
			"load_type":           result.LoadType,
			"final_rating":        result.FinalRating,
			"combined_confidence": result.CombinedConfidence,
			"suggested_price":     result.SuggestedPrice,
			"execution_seconds":   elapsed,
		})
	}
}

// Wait blocks until queued alerts have been sent.
func (h *AnalyzeHandler) Wait() {
	h.background.Wait()
}

// RefreshLookup handles GET /api/v1/unity/refresh. The reload runs in the
// background; analyses keep using the current snapshot until it completes.
func (h *AnalyzeHandler) RefreshLookup(c *gin.Context) {
	started := h.lookup.RefreshAsync()
	message := "Lookup table refresh started in background"
	if !started {
		message = "Lookup table refresh already in progress"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   message,
		"started":   started,
		"timestamp": h.now().UTC(),
	})
}
