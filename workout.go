package fitlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

var (
	// ErrUnreadable reports that the input file could not be read.
	ErrUnreadable = errors.New("file unreadable")
	// ErrMalformed reports that the decoder rejected the byte stream.
	ErrMalformed = errors.New("malformed telemetry container")
)

// GpsPoint is one validated position sample.
type GpsPoint struct {
	Timestamp *string  `json:"timestamp"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Altitude  *float64 `json:"altitude"`
}

// SensorPoint is one record sample. Every field is independently optional.
type SensorPoint struct {
	Timestamp *string  `json:"timestamp"`
	HeartRate *int64   `json:"heart_rate"`
	Power     *int64   `json:"power"`
	Cadence   *int64   `json:"cadence"`
	Speed     *float64 `json:"speed"`
	Distance  *float64 `json:"distance"`
	Altitude  *float64 `json:"altitude"`
}

// ChartData holds parallel, equal-length series for plotting.
type ChartData struct {
	Timestamps []string   `json:"timestamps"`
	HeartRate  []*int64   `json:"heart_rate"`
	Power      []*int64   `json:"power"`
	Cadence    []*int64   `json:"cadence"`
	Speed      []*float64 `json:"speed"`
	Altitude   []*float64 `json:"altitude"`
}

// Len returns the number of chart samples.
func (c ChartData) Len() int { return len(c.Timestamps) }

// ParsedWorkout is the normalized record produced for one FIT file.
type ParsedWorkout struct {
	FileHash            string        `json:"file_hash"`
	Filename            string        `json:"filename"`
	WorkoutType         *string       `json:"workout_type"`
	StartTime           *time.Time    `json:"start_time"`
	EndTime             *time.Time    `json:"end_time"`
	DurationSeconds     *int64        `json:"duration_seconds"`
	DistanceMeters      *float64      `json:"distance_meters"`
	TotalCalories       *int64        `json:"total_calories"`
	AvgHeartRate        *int64        `json:"avg_heart_rate"`
	MaxHeartRate        *int64        `json:"max_heart_rate"`
	AvgPowerWatts       *int64        `json:"avg_power_watts"`
	MaxPowerWatts       *int64        `json:"max_power_watts"`
	AvgCadence          *int64        `json:"avg_cadence"`
	MaxCadence          *int64        `json:"max_cadence"`
	AvgSpeedMPS         *float64      `json:"avg_speed_mps"`
	MaxSpeedMPS         *float64      `json:"max_speed_mps"`
	ElevationGainMeters *float64      `json:"elevation_gain_meters"`
	ElevationLossMeters *float64      `json:"elevation_loss_meters"`
	GPSData             []GpsPoint    `json:"gps_data"`
	SensorData          []SensorPoint `json:"sensor_data"`
	ChartData           ChartData     `json:"chart_data"`
}

// Parser turns FIT files into ParsedWorkout values. A Parser holds no
// per-file state and may be shared across goroutines.
type Parser struct {
	Source MessageSource
	Log    *slog.Logger
}

// NewParser returns a Parser reading messages from src.
func NewParser(src MessageSource, log *slog.Logger) *Parser {
	return &Parser{Source: src, Log: log}
}

func (p *Parser) logger() *slog.Logger {
	if p.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Log
}

// ParseFile reads path fully and parses it.
func (p *Parser) ParseFile(path string) (*ParsedWorkout, error) {
	p.logger().Info("parsing FIT file", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		name = "unknown"
	}
	return p.ParseBytes(name, data)
}

// ParseBytes parses an in-memory FIT file. filename is recorded verbatim.
func (p *Parser) ParseBytes(filename string, data []byte) (*ParsedWorkout, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("%w: no message source configured", ErrMalformed)
	}
	hash := FileHash(data)
	msgs, err := p.Source.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	log := p.logger()
	if log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug("decoded messages", "count", len(msgs), "kinds", messageKinds(msgs))
	}

	w := Build(filename, hash, msgs)
	log.Info("parsed workout",
		"file", filename,
		"type", derefOr(w.WorkoutType, ""),
		"duration_s", derefOr(w.DurationSeconds, 0),
		"distance_m", derefOr(w.DistanceMeters, 0),
		"calories", derefOr(w.TotalCalories, 0),
		"gps_points", len(w.GPSData),
		"sensor_points", len(w.SensorData),
	)
	return w, nil
}

// Build folds an ordered message stream into a ParsedWorkout. It never fails.
func Build(filename, hash string, msgs []Message) *ParsedWorkout {
	st := newFoldState()
	for _, m := range msgs {
		st.dispatch(m)
	}
	return st.assemble(filename, hash)
}

func messageKinds(msgs []Message) []string {
	seen := make(map[string]struct{})
	for _, m := range msgs {
		seen[m.Kind] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func derefOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
