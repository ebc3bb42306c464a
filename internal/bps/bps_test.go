package bps

import "testing"

func TestFromPriceCost(t *testing.T) {
	cases := []struct {
		price float64
		want  Bps
	}{
		{0.9700, 9700},
		{0.48, 4800},
		{0.969999, 9700}, // ceiling rounds up
	}
	for _, c := range cases {
		if got := FromPriceCost(c.price); got != c.want {
			t.Errorf("FromPriceCost(%v) = %v, want %v", c.price, got, c.want)
		}
	}
}

func TestFromPrice(t *testing.T) {
	if got := FromPrice(0.985); got != 9850 {
		t.Errorf("FromPrice(0.985) = %v, want 9850", got)
	}
}

func TestApplyCostProceeds(t *testing.T) {
	got := FeePoly.ApplyCost(0.48)
	want := 0.48 * 1.02
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ApplyCost = %v, want %v", got, want)
	}

	got = FeeMerge.ApplyProceeds(1.0)
	want = 0.999
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ApplyProceeds = %v, want %v", got, want)
	}
}

func TestQuantize2(t *testing.T) {
	cases := []struct {
		in, want Bps
	}{
		{9700, 9700},
		{9701, 9700},
		{9703, 9702},
		{-3, -2}, // integer division truncates toward zero, then *2
	}
	for _, c := range cases {
		if got := c.in.Quantize2(); got != c.want {
			t.Errorf("Quantize2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
