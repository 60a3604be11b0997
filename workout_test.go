package fitlog

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func msg(kind string, fields ...Field) Message {
	return Message{Kind: kind, Fields: fields}
}

func f(name string, v Value) Field { return Field{Name: name, Value: v} }

func TestBuildEmptyStream(t *testing.T) {
	w := Build("empty.fit", "abc", nil)

	if w.FileHash != "abc" || w.Filename != "empty.fit" {
		t.Fatalf("identity not carried: %+v", w)
	}
	if w.WorkoutType != nil || w.StartTime != nil || w.EndTime != nil || w.DurationSeconds != nil {
		t.Fatal("expected absent header fields")
	}
	if w.DistanceMeters != nil || w.TotalCalories != nil || w.AvgSpeedMPS != nil || w.MaxSpeedMPS != nil {
		t.Fatal("expected absent session totals")
	}
	if w.ElevationGainMeters != nil || w.ElevationLossMeters != nil {
		t.Fatal("expected absent elevation")
	}
	if w.GPSData == nil || len(w.GPSData) != 0 || w.SensorData == nil || len(w.SensorData) != 0 {
		t.Fatal("expected empty, non-nil series")
	}
	if w.ChartData.Len() != 0 {
		t.Fatalf("expected empty chart, got %d", w.ChartData.Len())
	}
}

func TestBuildIgnoresUnknownKinds(t *testing.T) {
	w := Build("x.fit", "h", []Message{
		msg("device_info", f("manufacturer", Uint16(1))),
		msg("field_description"),
		msg("session", f("total_calories", Uint16(420))),
	})
	if w.TotalCalories == nil || *w.TotalCalories != 420 {
		t.Fatalf("calories = %v", w.TotalCalories)
	}
}

func TestSportMapping(t *testing.T) {
	cases := map[int64]string{2: "cycling", 20: "strength_training", 99: "sport_99", 0: "generic"}
	for code, want := range cases {
		if got := SportName(code); got != want {
			t.Fatalf("SportName(%d) = %q want %q", code, got, want)
		}
	}
}

func TestWorkoutTypePrecedence(t *testing.T) {
	w := Build("x.fit", "h", []Message{
		msg("activity", f("type", String("auto_multi_sport"))),
		msg("session", f("sport", Uint8(2))),
		msg("sport", f("sport", String("Running"))),
	})
	if w.WorkoutType == nil || *w.WorkoutType != "running" {
		t.Fatalf("sport message should win, got %v", w.WorkoutType)
	}

	w = Build("x.fit", "h", []Message{
		msg("activity", f("type", String("manual"))),
		msg("session", f("sport", Uint8(2))),
	})
	if w.WorkoutType == nil || *w.WorkoutType != "cycling" {
		t.Fatalf("session should beat activity, got %v", w.WorkoutType)
	}

	w = Build("x.fit", "h", []Message{msg("activity", f("type", String("Auto_Multi_Sport")))})
	if w.WorkoutType == nil || *w.WorkoutType != "auto_multi_sport" {
		t.Fatalf("activity fallback, got %v", w.WorkoutType)
	}

	// Sources that report integer codes still go through the sport table.
	w = Build("x.fit", "h", []Message{msg("activity", f("type", Uint8(99)))})
	if w.WorkoutType == nil || *w.WorkoutType != "sport_99" {
		t.Fatalf("integer activity fallback, got %v", w.WorkoutType)
	}
}

func TestStartTimeFallsBackToLap(t *testing.T) {
	lapStart := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	sessStart := time.Date(2024, 3, 1, 7, 5, 0, 0, time.UTC)

	w := Build("x.fit", "h", []Message{msg("lap", f("start_time", Time(lapStart)))})
	if w.StartTime == nil || !w.StartTime.Equal(lapStart) {
		t.Fatalf("lap start = %v", w.StartTime)
	}

	w = Build("x.fit", "h", []Message{
		msg("lap", f("start_time", Time(lapStart))),
		msg("session", f("start_time", Time(sessStart)), f("timestamp", Uint32(1000))),
	})
	if w.StartTime == nil || !w.StartTime.Equal(sessStart) {
		t.Fatalf("session start should win, got %v", w.StartTime)
	}
	if w.EndTime == nil || !w.EndTime.Equal(FitTimestamp(1000)) {
		t.Fatalf("end time = %v", w.EndTime)
	}
}

func TestDurationFallback(t *testing.T) {
	w := Build("x.fit", "h", []Message{msg("session", f("total_timer_time", Float64(3600.0)))})
	if w.DurationSeconds == nil || *w.DurationSeconds != 3600 {
		t.Fatalf("duration = %v", w.DurationSeconds)
	}

	w = Build("x.fit", "h", []Message{msg("session",
		f("total_elapsed_time", Float64(3725.9)),
		f("total_timer_time", Float64(3600.0)),
	)})
	if w.DurationSeconds == nil || *w.DurationSeconds != 3725 {
		t.Fatalf("elapsed should win and truncate, got %v", w.DurationSeconds)
	}
}

func TestSpeedPrecedence(t *testing.T) {
	w := Build("x.fit", "h", []Message{msg("session",
		f("avg_speed", Float64(5.0)),
		f("enhanced_avg_speed", Float64(6.0)),
		f("enhanced_max_speed", Float64(9.5)),
	)})
	if w.AvgSpeedMPS == nil || *w.AvgSpeedMPS != 5.0 {
		t.Fatalf("plain avg speed should win, got %v", w.AvgSpeedMPS)
	}
	if w.MaxSpeedMPS == nil || *w.MaxSpeedMPS != 9.5 {
		t.Fatalf("enhanced max speed should be used, got %v", w.MaxSpeedMPS)
	}
}

func TestFirstSessionWins(t *testing.T) {
	w := Build("x.fit", "h", []Message{
		msg("session", f("total_distance", Float64(1000)), f("avg_heart_rate", Uint8(140))),
		msg("session", f("total_distance", Float64(2000)), f("avg_heart_rate", Uint8(150))),
	})
	if *w.DistanceMeters != 1000 || *w.AvgHeartRate != 140 {
		t.Fatalf("first session should win: %v %v", *w.DistanceMeters, *w.AvgHeartRate)
	}
}

func TestUncoercibleFieldsStayUnset(t *testing.T) {
	w := Build("x.fit", "h", []Message{msg("session",
		f("total_calories", Float64(12.5)),
		f("max_heart_rate", String("fast")),
		f("start_time", Float64(1)),
	)})
	if w.TotalCalories != nil || w.MaxHeartRate != nil || w.StartTime != nil {
		t.Fatalf("expected unset fields: %+v", w)
	}
}

func TestRecordSeries(t *testing.T) {
	ts := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	w := Build("x.fit", "h", []Message{
		msg("record",
			f("timestamp", Time(ts)),
			f("position_lat", Sint32(1<<29)),
			f("position_long", Sint32(-1<<29)),
			f("enhanced_altitude", Float64(120.5)),
			f("heart_rate", Uint8(130)),
			f("enhanced_speed", Float64(3.2)),
		),
		// Partial coordinates: sensor sample only.
		msg("record", f("position_lat", Sint32(1<<29)), f("power", Uint16(250))),
		// Out of range latitude after conversion.
		msg("record", f("position_lat", Sint64(1<<31)), f("position_long", Sint32(0))),
	})

	if len(w.SensorData) != 3 {
		t.Fatalf("sensor samples = %d, want 3", len(w.SensorData))
	}
	if len(w.GPSData) != 1 {
		t.Fatalf("gps samples = %d, want 1", len(w.GPSData))
	}
	for _, p := range w.GPSData {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			t.Fatalf("invalid coordinate emitted: %+v", p)
		}
	}

	g := w.GPSData[0]
	if g.Lat != 45 || g.Lon != -45 {
		t.Fatalf("coordinates = %v,%v", g.Lat, g.Lon)
	}
	if g.Timestamp == nil || *g.Timestamp != "2024-06-01T08:00:00Z" {
		t.Fatalf("timestamp = %v", g.Timestamp)
	}
	if g.Altitude == nil || *g.Altitude != 120.5 {
		t.Fatalf("altitude fallback = %v", g.Altitude)
	}

	s := w.SensorData[0]
	if s.HeartRate == nil || *s.HeartRate != 130 || s.Speed == nil || *s.Speed != 3.2 {
		t.Fatalf("sensor sample = %+v", s)
	}
	if s.Power != nil || s.Cadence != nil || s.Distance != nil {
		t.Fatalf("unexpected sensor fields: %+v", s)
	}
	if w.SensorData[1].Power == nil || *w.SensorData[1].Power != 250 || w.SensorData[1].Timestamp != nil {
		t.Fatalf("second sample = %+v", w.SensorData[1])
	}
	if w.ChartData.Timestamps[1] != "" {
		t.Fatalf("missing timestamp should chart as empty string, got %q", w.ChartData.Timestamps[1])
	}
}

func TestPlainFieldsBeatEnhanced(t *testing.T) {
	ts := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	w := Build("x.fit", "h", []Message{
		msg("record",
			f("timestamp", Time(ts)),
			f("enhanced_altitude", Float64(500)),
			f("enhanced_speed", Float64(9)),
			f("position_lat", Sint32(1<<29)),
			f("position_long", Sint32(1<<29)),
			f("altitude", Float64(100)),
			f("speed", Float64(2.5)),
		),
		msg("record",
			f("timestamp", Time(ts.Add(time.Second))),
			f("enhanced_altitude", Float64(900)),
			f("altitude", Float64(110)),
		),
	})

	if len(w.GPSData) != 1 || w.GPSData[0].Altitude == nil || *w.GPSData[0].Altitude != 100 {
		t.Fatalf("gps altitude = %+v", w.GPSData)
	}
	s := w.SensorData[0]
	if s.Altitude == nil || *s.Altitude != 100 || s.Speed == nil || *s.Speed != 2.5 {
		t.Fatalf("sensor sample = %+v", s)
	}
	if a := w.ChartData.Altitude; len(a) != 2 || a[0] == nil || *a[0] != 100 || a[1] == nil || *a[1] != 110 {
		t.Fatalf("chart altitude = %v", a)
	}
	if sp := w.ChartData.Speed; sp[0] == nil || *sp[0] != 2.5 {
		t.Fatalf("chart speed = %v", sp)
	}
	if w.ElevationGainMeters == nil || *w.ElevationGainMeters != 10 {
		t.Fatalf("gain = %v, want 10 from plain altitude", w.ElevationGainMeters)
	}
}

func TestElevationDerivedOnlyWhenAbsent(t *testing.T) {
	alts := []float64{100, 103, 100, 95, 95.5}
	records := make([]Message, 0, len(alts))
	for _, a := range alts {
		records = append(records, msg("record", f("altitude", Float64(a))))
	}

	w := Build("x.fit", "h", records)
	if w.ElevationGainMeters == nil || *w.ElevationGainMeters != 3.0 {
		t.Fatalf("gain = %v", w.ElevationGainMeters)
	}
	if w.ElevationLossMeters == nil || *w.ElevationLossMeters != 8.0 {
		t.Fatalf("loss = %v", w.ElevationLossMeters)
	}

	w = Build("x.fit", "h", append(records, msg("session", f("total_ascent", Uint16(42)))))
	if *w.ElevationGainMeters != 42 {
		t.Fatalf("reported ascent should win, got %v", *w.ElevationGainMeters)
	}
	if *w.ElevationLossMeters != 8.0 {
		t.Fatalf("loss should still be derived, got %v", *w.ElevationLossMeters)
	}
}

type fakeSource struct {
	msgs []Message
	err  error
}

func (s fakeSource) Decode([]byte) ([]Message, error) { return s.msgs, s.err }

func TestParseBytesDeterministic(t *testing.T) {
	src := fakeSource{msgs: []Message{
		msg("session", f("sport", Uint8(1)), f("total_distance", Float64(5000))),
		msg("record", f("heart_rate", Uint8(120))),
	}}
	p := NewParser(src, nil)

	a, err := p.ParseBytes("run.fit", []byte("payload"))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	b, err := p.ParseBytes("run.fit", []byte("payload"))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("parsing the same bytes twice should be identical")
	}
	if a.FileHash != FileHash([]byte("payload")) {
		t.Fatalf("hash = %s", a.FileHash)
	}
}

func TestParseErrors(t *testing.T) {
	p := NewParser(fakeSource{err: errors.New("bad header")}, nil)
	if _, err := p.ParseBytes("bad.fit", []byte{1, 2, 3}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	_, err := p.ParseFile(filepath.Join(t.TempDir(), "missing.fit"))
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestParseFileUsesBaseName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "morning.fit")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := NewParser(fakeSource{}, nil).ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if w.Filename != "morning.fit" {
		t.Fatalf("filename = %q", w.Filename)
	}
}
