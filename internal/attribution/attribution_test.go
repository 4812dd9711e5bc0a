package attribution

import (
	"strings"
	"testing"

	"github.com/shieldai/cetp-monitor/internal/model"
)

// TestFormatAttributionExpectations checks a known group window's attribution fields.
func TestFormatAttributionExpectations(t *testing.T) {
	win := model.GroupWindow{
		GroupName:    "discharge_point_A",
		Contributing: []string{"pH", "turb", "flow"},
		SensorZScores: map[string]float64{
			"pH": 4.0, "turb": -2.0, "flow": 1.0,
		},
		CompositeScore: 2.6457513110645907,
	}

	out := Format(win)
	if out.TopContributor != "pH" {
		t.Fatalf("top_contributor = %q, want pH", out.TopContributor)
	}
	if !strings.HasPrefix(out.AttributionDetail, `{"pH":0.762`) {
		t.Fatalf("attribution_detail = %q, want pH first with fraction 0.762", out.AttributionDetail)
	}
	if !strings.Contains(out.AlertMessage, "discharge_point_A") || !strings.Contains(out.AlertMessage, "pH") {
		t.Fatalf("alert_message = %q, want it to name group and top contributor", out.AlertMessage)
	}
}

func TestFractionsSumToOne(t *testing.T) {
	win := model.GroupWindow{
		Contributing:  []string{"a", "b", "c"},
		SensorZScores: map[string]float64{"a": 1.5, "b": -3.2, "c": 0.4},
	}
	out := Format(win)

	fractions := computeFractions(win.SensorZScores, win.Contributing)
	var total float64
	for _, f := range fractions {
		total += f
	}
	if diff := total - 1.0; diff > 0.01 || diff < -0.01 {
		t.Fatalf("fractions sum to %v, want ~1.0", total)
	}
	_ = out
}

func TestFormatNoContributorsYieldsEmptyTop(t *testing.T) {
	win := model.GroupWindow{GroupName: "g"}
	out := Format(win)
	if out.TopContributor != "" {
		t.Fatalf("top_contributor = %q, want empty string for no contributors", out.TopContributor)
	}
}

func TestFormatZeroTotalDistributesEqually(t *testing.T) {
	win := model.GroupWindow{
		Contributing:  []string{"a", "b"},
		SensorZScores: map[string]float64{"a": 0, "b": 0},
	}
	fractions := computeFractions(win.SensorZScores, win.Contributing)
	if fractions["a"] != 0.5 || fractions["b"] != 0.5 {
		t.Fatalf("fractions = %v, want equal 0.5/0.5 split", fractions)
	}
}
