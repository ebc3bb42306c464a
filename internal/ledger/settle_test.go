package ledger

import "testing"

func approxEqual(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestRecomputeMatchesSimpleBinaryFixture(t *testing.T) {
	legs := []RecomputeLeg{
		{PLimit: 0.49, BestBid: 0.48, VMkt: 100},
		{PLimit: 0.48, BestBid: 0.47, VMkt: 60},
	}
	res := Recompute(10, legs, 0.10, 0.05)

	if !approxEqual(res.TotalPnl, -0.15408, 1e-9) {
		t.Errorf("TotalPnl = %v, want -0.15408", res.TotalPnl)
	}
	if !approxEqual(res.SetRatio, 0.75, 1e-9) {
		t.Errorf("SetRatio = %v, want 0.75 (6/8)", res.SetRatio)
	}
	if res.QSet != 6 {
		t.Errorf("QSet = %v, want 6", res.QSet)
	}
}

func TestRecomputeQSetNeverExceedsQReqOrMinFill(t *testing.T) {
	legs := []RecomputeLeg{
		{PLimit: 0.49, BestBid: 0.48, VMkt: 1000},
		{PLimit: 0.48, BestBid: 0.47, VMkt: 1000},
	}
	res := Recompute(10, legs, 0.5, 0.05)
	if res.QSet > 10 {
		t.Errorf("QSet = %v, must not exceed q_req", res.QSet)
	}
	for _, f := range res.QFill {
		if res.QSet > f {
			t.Errorf("QSet = %v must not exceed any leg fill %v", res.QSet, f)
		}
	}
}

func TestRecomputeSetRatioBounded(t *testing.T) {
	legs := []RecomputeLeg{{PLimit: 0.5, BestBid: 0.5, VMkt: 5}, {PLimit: 0.5, BestBid: 0.5, VMkt: 5}}
	res := Recompute(10, legs, 0.2, 0.05)
	if res.SetRatio < 0 || res.SetRatio > 1 {
		t.Errorf("SetRatio = %v, must be in [0,1]", res.SetRatio)
	}
}

func TestRecomputeHigherDumpSlippageLowersPnlLeft(t *testing.T) {
	legs := []RecomputeLeg{{PLimit: 0.49, BestBid: 0.48, VMkt: 100}, {PLimit: 0.48, BestBid: 0.47, VMkt: 20}}
	low := Recompute(10, legs, 0.5, 0.02)
	high := Recompute(10, legs, 0.5, 0.20)
	if high.PnlLeftTotal > low.PnlLeftTotal {
		t.Errorf("higher dump slippage should not improve pnl_left: low=%v high=%v", low.PnlLeftTotal, high.PnlLeftTotal)
	}
}
