package testmocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/services"
)

// MockAnalyzer implements handlers.Analyzer for testing
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) RunAnalysis(ctx context.Context, table *models.LookupTable, req models.ShipmentRequest) (*models.AnalysisResult, error) {
	args := m.Called(ctx, table, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnalysisResult), args.Error(1)
}

// MockLookupTables implements handlers.LookupTables for testing
type MockLookupTables struct {
	mock.Mock
}

func (m *MockLookupTables) Snapshot() (*models.LookupTable, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LookupTable), args.Error(1)
}

func (m *MockLookupTables) Loaded() bool {
	return m.Called().Bool(0)
}

func (m *MockLookupTables) Records() int {
	return m.Called().Int(0)
}

func (m *MockLookupTables) LoadedAt() time.Time {
	return m.Called().Get(0).(time.Time)
}

func (m *MockLookupTables) LastError() string {
	return m.Called().String(0)
}

func (m *MockLookupTables) RefreshAsync() bool {
	return m.Called().Bool(0)
}

// MockAuditRecorder implements handlers.AuditRecorder for testing
type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) RecordAsync(entry models.AuditEntry) {
	m.Called(entry)
}

// MockReviewNotifier implements handlers.ReviewNotifier for testing
type MockReviewNotifier struct {
	mock.Mock
}

func (m *MockReviewNotifier) NotifyReview(ctx context.Context, r *models.AnalysisResult, quoteID string) string {
	return m.Called(ctx, r, quoteID).String(0)
}

// MockRecommender implements interfaces.Recommender for testing
type MockRecommender struct {
	mock.Mock
}

func (m *MockRecommender) Recommend(ctx context.Context, result *models.AnalysisResult, contextPrompt string) (*models.AIRecommendation, error) {
	args := m.Called(ctx, result, contextPrompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AIRecommendation), args.Error(1)
}

// MockResourceReporter implements handlers.ResourceReporter for testing
type MockResourceReporter struct {
	mock.Mock
}

func (m *MockResourceReporter) Latest() (services.ResourceSnapshot, bool) {
	args := m.Called()
	return args.Get(0).(services.ResourceSnapshot), args.Bool(1)
}

func (m *MockResourceReporter) Healthy() bool {
	return m.Called().Bool(0)
}
