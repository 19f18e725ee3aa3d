package services

import (
	"sort"
	"strings"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/utils"
)

// NormalizeEquipment upper-cases an equipment description and canonicalizes
// alternatives: "Van Or Reefer" becomes "REEFER/VAN".
func NormalizeEquipment(equipment string) string {
	upper := utils.NormalizeText(equipment)
	upper = strings.ReplaceAll(upper, " OR ", "/")
	if !strings.Contains(upper, "/") {
		return upper
	}
	parts := strings.Split(upper, "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	sort.Strings(parts)
	return strings.Join(parts, "/")
}

// IsMultiEquipment reports whether the description lists alternatives.
func IsMultiEquipment(equipment string) bool {
	return strings.Contains(NormalizeEquipment(equipment), "/")
}

// SplitEquipment returns the normalized alternatives.
func SplitEquipment(equipment string) []string {
	return strings.Split(NormalizeEquipment(equipment), "/")
}

// HotshotResult is the outcome of hotshot detection.
type HotshotResult struct {
	APIEquipment string
	Adjustment   float64
	IsHotshot    bool
}

// DetectHotshot maps HOTSHOT loads to the configured market equipment and
// returns the weight-based price adjustment. Unknown weights never qualify.
func DetectHotshot(cfg config.HotshotConfig, equipment string, weight float64) HotshotResult {
	plain := HotshotResult{APIEquipment: equipment, Adjustment: 1}
	if !cfg.Enabled || weight <= 0 {
		return plain
	}
	compact := strings.ReplaceAll(strings.ToUpper(equipment), " ", "")
	if !strings.Contains(compact, "HOTSHOT") {
		return plain
	}
	adjustment := cfg.LightAdjustment
	if weight >= cfg.WeightThreshold {
		adjustment = cfg.HeavyAdjustment
	}
	return HotshotResult{APIEquipment: cfg.MapToEquipment, Adjustment: adjustment, IsHotshot: true}
}
