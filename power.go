package fitlog

import "math"

// FTPFraction scales best 20-minute power to an FTP estimate.
const FTPFraction = 0.95

// ZoneDuration is the time spent in one power zone.
type ZoneDuration struct {
	Zone       string  `json:"zone"`
	MinPctFTP  float64 `json:"min_pct_ftp"`
	MaxPctFTP  float64 `json:"max_pct_ftp"`
	Seconds    float64 `json:"seconds"`
	Percentage float64 `json:"percentage"`
}

// PowerProfile summarizes the power samples of a workout. Samples are
// assumed to be one second apart.
type PowerProfile struct {
	Samples         int            `json:"samples"`
	NormalizedPower float64        `json:"normalized_power_w"`
	Best5Min        float64        `json:"best_5min_w"`
	Best20Min       float64        `json:"best_20min_w"`
	FTP             float64        `json:"ftp_w"`
	FTPEstimated    bool           `json:"ftp_estimated"`
	IntensityFactor float64        `json:"intensity_factor"`
	Zones           []ZoneDuration `json:"zones,omitempty"`
}

var powerZones = []struct {
	name     string
	min, max float64
}{
	{"Z1 Active Recovery", 0, 55},
	{"Z2 Endurance", 55, 75},
	{"Z3 Tempo", 75, 90},
	{"Z4 Threshold", 90, 105},
	{"Z5 VO2", 105, 120},
	{"Z6 Anaerobic", 120, 150},
	{"Z7 Neuromuscular", 150, 1000},
}

// AnalyzePower builds a PowerProfile from the sensor series. ftp <= 0 means
// estimate it from the best 20 minutes. It reports false when no sample
// carries power.
func AnalyzePower(sensors []SensorPoint, ftp float64) (PowerProfile, bool) {
	watts := make([]float64, 0, len(sensors))
	for _, s := range sensors {
		if s.Power != nil && *s.Power >= 0 {
			watts = append(watts, float64(*s.Power))
		}
	}
	if len(watts) == 0 {
		return PowerProfile{}, false
	}

	p := PowerProfile{
		Samples:         len(watts),
		NormalizedPower: normalizedPower(watts),
		Best5Min:        bestRolling(watts, 5*60),
		Best20Min:       bestRolling(watts, 20*60),
		FTP:             ftp,
	}
	if p.FTP <= 0 {
		p.FTP = p.Best20Min * FTPFraction
		p.FTPEstimated = true
	}
	if p.FTP > 0 {
		p.IntensityFactor = p.NormalizedPower / p.FTP
		p.Zones = zoneDurations(watts, p.FTP)
	}
	return p, true
}

// normalizedPower is the fourth-power mean of the 30 s rolling average.
// Shorter series fall back to the plain mean.
func normalizedPower(watts []float64) float64 {
	const window = 30
	if len(watts) < window {
		return mean(watts)
	}
	var sum, total float64
	for i, w := range watts {
		sum += w
		if i >= window {
			sum -= watts[i-window]
		}
		if i >= window-1 {
			total += math.Pow(sum/window, 4)
		}
	}
	return math.Pow(total/float64(len(watts)-window+1), 0.25)
}

// bestRolling returns the best mean power over any window of n samples.
func bestRolling(watts []float64, n int) float64 {
	if len(watts) < n {
		return mean(watts)
	}
	var sum, best float64
	for i, w := range watts {
		sum += w
		if i >= n {
			sum -= watts[i-n]
		}
		if i >= n-1 {
			best = max(best, sum/float64(n))
		}
	}
	return best
}

func zoneDurations(watts []float64, ftp float64) []ZoneDuration {
	counts := make([]int, len(powerZones))
	for _, w := range watts {
		pct := w / ftp * 100
		for i, z := range powerZones {
			if pct >= z.min && pct < z.max {
				counts[i]++
				break
			}
		}
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return nil
	}
	out := make([]ZoneDuration, len(powerZones))
	for i, z := range powerZones {
		out[i] = ZoneDuration{
			Zone:       z.name,
			MinPctFTP:  z.min,
			MaxPctFTP:  z.max,
			Seconds:    float64(counts[i]),
			Percentage: float64(counts[i]) / float64(total) * 100,
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
