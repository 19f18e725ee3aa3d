package services

import (
	"strings"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/utils"
)

// SegmentClassifier maps a customer name to a pricing segment using the
// configured rules. The first matching rule wins.
type SegmentClassifier struct {
	rules []config.SegmentRule
}

// NewSegmentClassifier normalizes every rule fragment the same way customer
// names are normalized, so "Acme, Inc." and "acme inc" match alike.
func NewSegmentClassifier(rules config.SegmentRules) *SegmentClassifier {
	normalized := make([]config.SegmentRule, 0, len(rules.Rules))
	for _, rule := range rules.Rules {
		fragments := make([]string, 0, len(rule.Contains))
		for _, fragment := range rule.Contains {
			if f := utils.NormalizeCustomerName(fragment); f != "" {
				fragments = append(fragments, f)
			}
		}
		normalized = append(normalized, config.SegmentRule{Segment: rule.Segment, Contains: fragments})
	}
	return &SegmentClassifier{rules: normalized}
}

// Classify returns the segment for customer, or SegmentStandard.
func (s *SegmentClassifier) Classify(customer string) string {
	name := utils.NormalizeCustomerName(customer)
	if name == "" {
		return config.SegmentStandard
	}
	for _, rule := range s.rules {
		for _, fragment := range rule.Contains {
			if strings.Contains(name, fragment) {
				return rule.Segment
			}
		}
	}
	return config.SegmentStandard
}
