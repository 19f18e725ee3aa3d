package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Customer segments used by the multistop cost model.
const (
	SegmentHighComplexity = "high_complexity"
	SegmentStandard       = "standard"
)

// SegmentRule assigns a segment to customers whose normalized name contains
// any of the listed fragments.
type SegmentRule struct {
	Segment  string   `yaml:"segment" json:"segment"`
	Contains []string `yaml:"contains" json:"contains"`
}

type SegmentRules struct {
	Rules []SegmentRule `yaml:"rules" json:"rules"`
}

// DefaultSegmentRules is used when no rules file exists.
func DefaultSegmentRules() SegmentRules {
	return SegmentRules{Rules: []SegmentRule{
		{Segment: SegmentHighComplexity, Contains: []string{"fabuwood"}},
	}}
}

// LoadSegmentRules reads the YAML rules file. A missing file yields the
// defaults; a malformed one is an error.
func LoadSegmentRules(path string) (SegmentRules, error) {
	if path == "" {
		return DefaultSegmentRules(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSegmentRules(), nil
	}
	if err != nil {
		return SegmentRules{}, fmt.Errorf("failed to read segment rules: %w", err)
	}
	return ParseSegmentRules(data)
}

// ParseSegmentRules decodes and validates a rules document.
func ParseSegmentRules(data []byte) (SegmentRules, error) {
	var rules SegmentRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return SegmentRules{}, fmt.Errorf("failed to parse segment rules: %w", err)
	}
	for i, r := range rules.Rules {
		switch r.Segment {
		case SegmentHighComplexity, SegmentStandard:
		default:
			return SegmentRules{}, fmt.Errorf("rule %d: unknown segment %q", i, r.Segment)
		}
		if len(r.Contains) == 0 {
			return SegmentRules{}, fmt.Errorf("rule %d: contains must not be empty", i)
		}
		for j, c := range r.Contains {
			rules.Rules[i].Contains[j] = strings.ToLower(strings.TrimSpace(c))
		}
	}
	return rules, nil
}
