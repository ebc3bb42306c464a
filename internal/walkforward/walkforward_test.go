package walkforward

import (
	"testing"

	"razor/internal/ledger"
	"razor/internal/schema"
	"razor/internal/sweep"
)

func dayMsOf(row sweep.ShadowLogRow) int64 {
	return DayStartMs(row.SignalTsUnixMs)
}

func TestDayStartMsBuckets(t *testing.T) {
	if got := DayStartMs(schema.DayMs + 5000); got != schema.DayMs {
		t.Errorf("DayStartMs = %d, want %d", got, schema.DayMs)
	}
}

func TestRunSplitsIntoDaysAndScoresEachStep(t *testing.T) {
	mkRow := func(day int) sweep.ShadowLogRow {
		return sweep.ShadowLogRow{
			RunID: "run1", SignalTsUnixMs: int64(day) * schema.DayMs, MarketID: "m1", Bucket: "liquid", QReq: 10,
			Legs: []ledger.RecomputeLeg{
				{PLimit: 0.49, BestBid: 0.48, VMkt: 100},
				{PLimit: 0.48, BestBid: 0.47, VMkt: 60},
			},
		}
	}
	rows := []sweep.ShadowLogRow{mkRow(0), mkRow(1), mkRow(2)}

	daily, report := Run("run1", rows, dayMsOf)
	if len(daily) != 3 {
		t.Fatalf("daily scores = %d, want 3", len(daily))
	}
	if len(report.Steps) != 2 {
		t.Fatalf("steps = %d, want 2 (days 1 and 2 each validate against a train prefix)", len(report.Steps))
	}
	if report.OverfitRiskScore < 0 {
		t.Errorf("OverfitRiskScore = %v, must be >= 0", report.OverfitRiskScore)
	}
	if report.Version != "walk_forward_v1" {
		t.Errorf("Version = %q, want walk_forward_v1", report.Version)
	}
}

func TestRunWithFewerThanTwoDaysDefaultsOverfitRiskToOne(t *testing.T) {
	rows := []sweep.ShadowLogRow{{RunID: "run1", SignalTsUnixMs: 0, Bucket: "liquid", QReq: 10, Legs: []ledger.RecomputeLeg{{PLimit: 0.49, BestBid: 0.48, VMkt: 10}}}}
	_, report := Run("run1", rows, dayMsOf)
	if report.OverfitRiskScore != 1.0 {
		t.Errorf("OverfitRiskScore = %v, want 1.0 with no steps", report.OverfitRiskScore)
	}
}
