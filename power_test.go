package fitlog

import (
	"math"
	"testing"
)

func powerSeries(watts ...int64) []SensorPoint {
	out := make([]SensorPoint, len(watts))
	for i := range watts {
		out[i].Power = &watts[i]
	}
	return out
}

func TestAnalyzePowerNoSamples(t *testing.T) {
	if _, ok := AnalyzePower([]SensorPoint{{}, {}}, 0); ok {
		t.Fatal("expected no profile without power samples")
	}
}

func TestAnalyzePowerSteadyEffort(t *testing.T) {
	watts := make([]int64, 1800)
	for i := range watts {
		watts[i] = 200
	}
	p, ok := AnalyzePower(powerSeries(watts...), 0)
	if !ok {
		t.Fatal("expected a profile")
	}
	if p.Samples != 1800 {
		t.Fatalf("samples = %d", p.Samples)
	}
	if math.Abs(p.NormalizedPower-200) > 1e-9 || p.Best20Min != 200 || p.Best5Min != 200 {
		t.Fatalf("profile = %+v", p)
	}
	if !p.FTPEstimated || p.FTP != 190 {
		t.Fatalf("ftp = %v estimated=%v, want 190", p.FTP, p.FTPEstimated)
	}
	// 200 W is 105.3% of 190 W.
	if len(p.Zones) != 7 || p.Zones[4].Seconds != 1800 || p.Zones[4].Percentage != 100 {
		t.Fatalf("zones = %+v", p.Zones)
	}
}

func TestAnalyzePowerExplicitFTP(t *testing.T) {
	p, ok := AnalyzePower(powerSeries(100, 300), 250)
	if !ok {
		t.Fatal("expected a profile")
	}
	if p.FTPEstimated || p.FTP != 250 {
		t.Fatalf("ftp = %v estimated=%v", p.FTP, p.FTPEstimated)
	}
	if p.NormalizedPower != 200 || p.IntensityFactor != 0.8 {
		t.Fatalf("np = %v if = %v", p.NormalizedPower, p.IntensityFactor)
	}
}

func TestNormalizedPowerWeightsSurges(t *testing.T) {
	watts := make([]float64, 120)
	for i := range watts {
		if i%60 < 30 {
			watts[i] = 400
		}
	}
	if np, avg := normalizedPower(watts), mean(watts); np <= avg {
		t.Fatalf("normalized %v should exceed mean %v for surging effort", np, avg)
	}
}

func TestBestRolling(t *testing.T) {
	watts := []float64{100, 100, 300, 300, 100}
	if got := bestRolling(watts, 2); got != 300 {
		t.Fatalf("best 2 = %v", got)
	}
	if got := bestRolling(watts, 10); got != 180 {
		t.Fatalf("short series = %v, want mean 180", got)
	}
}
