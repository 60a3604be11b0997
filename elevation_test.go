package fitlog

import "testing"

func TestElevationChanges(t *testing.T) {
	gain, loss := ElevationChanges([]float64{100, 103, 100, 95, 95.5})
	if gain == nil || loss == nil {
		t.Fatal("expected both totals")
	}
	if *gain != 3.0 {
		t.Fatalf("gain = %v, want 3", *gain)
	}
	if *loss != 8.0 {
		t.Fatalf("loss = %v, want 8", *loss)
	}
}

func TestElevationThresholdIsStrict(t *testing.T) {
	gain, loss := ElevationChanges([]float64{10, 12, 10, 12.5})
	if *gain != 2.5 {
		t.Fatalf("exactly 2.0 must be noise, gain = %v", *gain)
	}
	if *loss != 0 {
		t.Fatalf("exactly -2.0 must be noise, loss = %v", *loss)
	}
}

func TestElevationNeedsTwoSamples(t *testing.T) {
	for _, alts := range [][]float64{nil, {100}} {
		gain, loss := ElevationChanges(alts)
		if gain != nil || loss != nil {
			t.Fatalf("%v: expected absent totals", alts)
		}
	}
	gain, loss := ElevationChanges([]float64{50, 50})
	if gain == nil || *gain != 0 || loss == nil || *loss != 0 {
		t.Fatal("flat track should report zero, not absent")
	}
}
