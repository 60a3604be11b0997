package fitlog

import (
	"fmt"
	"math"
	"strings"
)

// Summary renders a human-readable overview of a parsed workout. Absent
// metrics are printed as "n/a".
func Summary(w *ParsedWorkout) string {
	if w == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Workout: %s (%s)\n", derefOr(w.WorkoutType, "unknown"), w.Filename)
	if w.StartTime != nil {
		fmt.Fprintf(&b, "Start: %s\n", w.StartTime.UTC().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(
		&b,
		"Duration %s | Distance %s | Elevation +%s/-%s m\n",
		formatDuration(w.DurationSeconds),
		formatKm(w.DistanceMeters),
		formatFloat(w.ElevationGainMeters, "%.0f"),
		formatFloat(w.ElevationLossMeters, "%.0f"),
	)
	fmt.Fprintf(
		&b,
		"Power %s avg / %s max W | Calories %s kcal\n",
		formatInt(w.AvgPowerWatts),
		formatInt(w.MaxPowerWatts),
		formatInt(w.TotalCalories),
	)
	if p, ok := AnalyzePower(w.SensorData, 0); ok {
		fmt.Fprintf(&b, "NP %.0f W | Best 20min %.0f W | est. FTP %.0f W | IF %.2f\n",
			p.NormalizedPower, p.Best20Min, p.FTP, p.IntensityFactor)
	}
	fmt.Fprintf(
		&b,
		"HR %s avg / %s max bpm | Cadence %s avg / %s max rpm | Speed %s avg / %s max km/h\n",
		formatInt(w.AvgHeartRate),
		formatInt(w.MaxHeartRate),
		formatInt(w.AvgCadence),
		formatInt(w.MaxCadence),
		formatKmh(w.AvgSpeedMPS),
		formatKmh(w.MaxSpeedMPS),
	)

	b.WriteString("\nSeries\n")
	fmt.Fprintf(&b, "- Sensor samples: %d (chart %d)\n", len(w.SensorData), w.ChartData.Len())
	if track, ok := SummarizeTrack(w.GPSData); ok {
		fmt.Fprintf(
			&b,
			"- GPS: %d points, %.2f km track, bounds [%.5f,%.5f]-[%.5f,%.5f]\n",
			track.Points,
			track.LengthMeters/1000.0,
			track.MinLat, track.MinLon,
			track.MaxLat, track.MaxLon,
		)
	} else {
		b.WriteString("- GPS: none\n")
	}

	fmt.Fprintf(&b, "\nFile hash: %s\n", w.FileHash)
	return strings.TrimSpace(b.String())
}

func formatDuration(seconds *int64) string {
	if seconds == nil {
		return "n/a"
	}
	s := *seconds
	if s <= 0 {
		return "0s"
	}
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

func formatKm(meters *float64) string {
	if meters == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f km", *meters/1000.0)
}

func formatKmh(mps *float64) string {
	if mps == nil || *mps <= 0 || math.IsNaN(*mps) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *mps*3.6)
}

func formatInt(v *int64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprint(*v)
}

func formatFloat(v *float64, layout string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(layout, *v)
}
