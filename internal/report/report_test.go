package report

import (
	"strconv"
	"testing"

	"razor/internal/schema"
)

func blankRecord() []string {
	return make([]string, len(schema.ShadowLogHeader))
}

func row(runID string, signalID, signalTsMs int, marketID, strategy, bucket string, totalPnl, setRatio float64) []string {
	r := blankRecord()
	r[0] = runID
	r[1] = schema.Version
	r[2] = strconv.Itoa(signalID)
	r[3] = strconv.Itoa(signalTsMs)
	r[6] = marketID
	r[7] = strategy
	r[8] = bucket
	r[32] = strconv.FormatFloat(totalPnl, 'f', -1, 64)
	r[34] = strconv.FormatFloat(setRatio, 'f', -1, 64)
	return r
}

func TestComputeAggregatesTotalsByBucketAndStrategy(t *testing.T) {
	records := [][]string{
		row("run_x", 1, 1000, "mkt1", "binary", "liquid", 1.0, 0.9),
		row("run_x", 2, 2000, "mkt1", "binary", "thin", -0.5, 0.95),
		row("run_other", 3, 1500, "mkt1", "binary", "liquid", 100.0, 1.0),
	}

	rpt := Compute("run_x", records, Thresholds{MinTotalShadowPnL: 0, MinAvgSetRatio: 0.85})

	if rpt.Totals.Signals != 2 {
		t.Fatalf("Totals.Signals = %d, want 2 (row from run_other must be excluded)", rpt.Totals.Signals)
	}
	if got := rpt.Totals.TotalPnlSum; !near(got, 0.5) {
		t.Errorf("Totals.TotalPnlSum = %v, want 0.5", got)
	}
	if got := rpt.ByBucket["liquid"].Signals; got != 1 {
		t.Errorf("ByBucket[liquid].Signals = %d, want 1", got)
	}
	if got := rpt.ByBucket["thin"].TotalPnlSum; !near(got, -0.5) {
		t.Errorf("ByBucket[thin].TotalPnlSum = %v, want -0.5", got)
	}
	if got := rpt.ByStrategy["binary"].Signals; got != 2 {
		t.Errorf("ByStrategy[binary].Signals = %d, want 2", got)
	}
	if rpt.Period.StartUnixMs != 1000 || rpt.Period.EndUnixMs != 2000 {
		t.Errorf("Period = %+v, want start=1000 end=2000", rpt.Period)
	}
}

func TestComputeExcludesSchemaVersionMismatch(t *testing.T) {
	mismatch := row("run_x", 1, 1000, "mkt1", "binary", "liquid", 1.0, 0.9)
	mismatch[1] = "razor_v0"

	rpt := Compute("run_x", [][]string{mismatch}, Thresholds{})
	if rpt.Totals.Signals != 0 {
		t.Errorf("Totals.Signals = %d, want 0", rpt.Totals.Signals)
	}
	if rpt.RowsBad != 1 {
		t.Errorf("RowsBad = %d, want 1", rpt.RowsBad)
	}
}

func TestComputeWorst20OrdersAscendingByTotalPnl(t *testing.T) {
	var records [][]string
	for i := 0; i < 25; i++ {
		records = append(records, row("run_x", i, i*100, "mkt1", "binary", "liquid", float64(i)-10, 0.9))
	}

	rpt := Compute("run_x", records, Thresholds{})
	if len(rpt.Worst20) != 20 {
		t.Fatalf("len(Worst20) = %d, want 20", len(rpt.Worst20))
	}
	for i := 1; i < len(rpt.Worst20); i++ {
		if rpt.Worst20[i].TotalPnl < rpt.Worst20[i-1].TotalPnl {
			t.Fatalf("Worst20 not ascending at index %d: %v", i, rpt.Worst20)
		}
	}
	if rpt.Worst20[0].TotalPnl != -10 {
		t.Errorf("Worst20[0].TotalPnl = %v, want -10 (most negative)", rpt.Worst20[0].TotalPnl)
	}
}

func TestComputeVerdictGoRequiresBothPnlAndLegging(t *testing.T) {
	good := []([][]string){
		{row("run_x", 1, 1000, "m", "binary", "liquid", 5.0, 0.95)},
	}[0]
	rpt := Compute("run_x", good, Thresholds{MinTotalShadowPnL: 0, MinAvgSetRatio: 0.85})
	if !rpt.Verdict.Go {
		t.Errorf("expected Go verdict, got false: reasons=%v", rpt.Verdict.Reasons)
	}

	badPnl := [][]string{row("run_x", 1, 1000, "m", "binary", "liquid", -5.0, 0.95)}
	rpt2 := Compute("run_x", badPnl, Thresholds{MinTotalShadowPnL: 0, MinAvgSetRatio: 0.85})
	if rpt2.Verdict.Go {
		t.Error("expected NO-GO verdict when total pnl is negative")
	}

	rpt3 := Compute("run_x", nil, Thresholds{})
	if rpt3.Verdict.Go {
		t.Error("expected NO-GO verdict for an empty shadow log")
	}
}

func near(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
