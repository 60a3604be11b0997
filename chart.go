package fitlog

// MaxChartPoints is the target chart length. Longer series are decimated by
// floor(n/MaxChartPoints), so the result may exceed it slightly.
const MaxChartPoints = 1000

// ChartStride returns the decimation stride for n samples.
func ChartStride(n int) int {
	if n > MaxChartPoints {
		return n / MaxChartPoints
	}
	return 1
}

// BuildChart keeps every sample whose index is a multiple of the stride and
// splits them into parallel series. Missing timestamps become "".
func BuildChart(samples []SensorPoint) ChartData {
	stride := ChartStride(len(samples))
	size := (len(samples) + stride - 1) / stride
	c := ChartData{
		Timestamps: make([]string, 0, size),
		HeartRate:  make([]*int64, 0, size),
		Power:      make([]*int64, 0, size),
		Cadence:    make([]*int64, 0, size),
		Speed:      make([]*float64, 0, size),
		Altitude:   make([]*float64, 0, size),
	}
	for i := 0; i < len(samples); i += stride {
		s := samples[i]
		c.Timestamps = append(c.Timestamps, derefOr(s.Timestamp, ""))
		c.HeartRate = append(c.HeartRate, s.HeartRate)
		c.Power = append(c.Power, s.Power)
		c.Cadence = append(c.Cadence, s.Cadence)
		c.Speed = append(c.Speed, s.Speed)
		c.Altitude = append(c.Altitude, s.Altitude)
	}
	return c
}
