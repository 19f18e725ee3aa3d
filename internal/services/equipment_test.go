package services

import (
	"testing"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeEquipment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"van", "VAN"},
		{"  Reefer ", "REEFER"},
		{"Van Or Reefer", "REEFER/VAN"},
		{"reefer/van", "REEFER/VAN"},
		{"Van / Flatbed", "FLATBED/VAN"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEquipment(tt.in))
		})
	}

	assert.True(t, IsMultiEquipment("Van or Reefer"))
	assert.False(t, IsMultiEquipment("Flatbed"))
	assert.Equal(t, []string{"REEFER", "VAN"}, SplitEquipment("VAN OR REEFER"))
}

func TestDetectHotshot(t *testing.T) {
	cfg := config.DefaultPricing().Hotshot

	tests := []struct {
		name      string
		equipment string
		weight    float64
		want      HotshotResult
	}{
		{"heavy", "Hotshot", 12000, HotshotResult{APIEquipment: "FLATBED", Adjustment: 0.80, IsHotshot: true}},
		{"at threshold", "HOT SHOT", 10000, HotshotResult{APIEquipment: "FLATBED", Adjustment: 0.80, IsHotshot: true}},
		{"light", "hotshot", 4000, HotshotResult{APIEquipment: "FLATBED", Adjustment: 0.65, IsHotshot: true}},
		{"unknown weight", "Hotshot", 0, HotshotResult{APIEquipment: "Hotshot", Adjustment: 1}},
		{"not hotshot", "Van", 12000, HotshotResult{APIEquipment: "Van", Adjustment: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectHotshot(cfg, tt.equipment, tt.weight))
		})
	}

	cfg.Enabled = false
	assert.False(t, DetectHotshot(cfg, "Hotshot", 12000).IsHotshot)
}
