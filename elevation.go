package fitlog

// ElevationThreshold is the minimum step, in meters, between successive
// altitude samples that counts as real climbing or descending. Steps of
// exactly this size are noise.
const ElevationThreshold = 2.0

// ElevationChanges sums climbs and descents over an ordered altitude series.
// Both results are nil when fewer than two samples exist.
func ElevationChanges(altitudes []float64) (gain, loss *float64) {
	if len(altitudes) < 2 {
		return nil, nil
	}
	var up, down float64
	for i := 1; i < len(altitudes); i++ {
		d := altitudes[i] - altitudes[i-1]
		switch {
		case d > ElevationThreshold:
			up += d
		case d < -ElevationThreshold:
			down -= d
		}
	}
	return &up, &down
}
