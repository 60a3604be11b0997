package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lucasjlepore/fitlog"
)

// ExportBytes renders the export artifacts of w in memory, keyed by file name.
func ExportBytes(w *fitlog.ParsedWorkout, format string) (map[string][]byte, error) {
	if w == nil {
		return nil, fmt.Errorf("workout is required")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return nil, fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}

	files := make(map[string][]byte, 4)
	summary, err := summaryJSON(w)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", WorkoutFile, err)
	}
	files[WorkoutFile] = summary

	track := struct {
		Points  []fitlog.GpsPoint    `json:"points"`
		Summary *fitlog.TrackSummary `json:"summary"`
	}{Points: w.GPSData}
	if ts, ok := fitlog.SummarizeTrack(w.GPSData); ok {
		track.Summary = &ts
	}
	if files[GPSFile], err = marshalJSON(track); err != nil {
		return nil, fmt.Errorf("encode %s: %w", GPSFile, err)
	}
	if files[ChartFile], err = marshalJSON(w.ChartData); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ChartFile, err)
	}

	sensorsName := SensorsBase + formatExtension(format)
	var sensors []byte
	if format == "csv" {
		sensors, err = marshalSensorCSV(w.SensorData)
	} else {
		sensors, err = marshalSensorParquet(w.SensorData)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", sensorsName, err)
	}
	files[sensorsName] = sensors
	return files, nil
}

// Export writes the artifacts of w into dir, creating it if needed.
func Export(w *fitlog.ParsedWorkout, dir, format string) (*ExportResult, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	files, err := ExportBytes(w, format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	res := &ExportResult{OutputDir: dir}
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		switch {
		case name == WorkoutFile:
			res.WorkoutPath = path
		case name == GPSFile:
			res.GPSPath = path
		case name == ChartFile:
			res.ChartPath = path
		case strings.HasPrefix(name, SensorsBase):
			res.SensorsPath = path
		}
	}
	return res, nil
}

func formatExtension(format string) string {
	if format == "csv" {
		return ".csv"
	}
	return ".parquet"
}

// summaryJSON encodes w without its sample series.
func summaryJSON(w *fitlog.ParsedWorkout) ([]byte, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "gps_data")
	delete(m, "sensor_data")
	delete(m, "chart_data")
	m["gps_points"] = len(w.GPSData)
	m["sensor_points"] = len(w.SensorData)
	return marshalJSON(m)
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var sensorColumns = []string{
	"ts_utc_iso", "hr_bpm", "power_w", "cadence_rpm", "speed_mps", "distance_m", "altitude_m",
}

func marshalSensorCSV(samples []fitlog.SensorPoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(sensorColumns); err != nil {
		return nil, err
	}
	for _, s := range samples {
		row := []string{
			derefOr(s.Timestamp, ""),
			formatIntPtr(s.HeartRate),
			formatIntPtr(s.Power),
			formatIntPtr(s.Cadence),
			formatFloatPtr(s.Speed),
			formatFloatPtr(s.Distance),
			formatFloatPtr(s.Altitude),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatIntPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func intOrNaN(v *int64) float64 {
	if v == nil {
		return math.NaN()
	}
	return float64(*v)
}
