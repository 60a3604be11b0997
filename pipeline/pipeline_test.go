package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tormoder/fit"

	"github.com/lucasjlepore/fitlog"
	"github.com/lucasjlepore/fitlog/fitdecode"
)

type memStore struct {
	mu     sync.Mutex
	byHash map[string]string
	next   int
}

func newMemStore() *memStore { return &memStore{byHash: make(map[string]string)} }

func (s *memStore) Exists(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byHash[hash]
	return ok, nil
}

func (s *memStore) Insert(_ context.Context, w *fitlog.ParsedWorkout) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[w.FileHash]; ok {
		return "", false, nil
	}
	s.next++
	id := "w" + string(rune('0'+s.next))
	s.byHash[w.FileHash] = id
	return id, true, nil
}

func buildTestFIT(t *testing.T, heartRates ...uint8) []byte {
	t.Helper()

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		t.Fatalf("new fit file: %v", err)
	}
	activity, err := file.Activity()
	if err != nil {
		t.Fatalf("activity accessor: %v", err)
	}

	start := time.Date(2026, 2, 26, 23, 0, 0, 0, time.UTC)
	for i, hr := range heartRates {
		record := fit.NewRecordMsg()
		record.Timestamp = start.Add(time.Duration(i) * time.Second)
		record.HeartRate = hr
		record.Power = 245
		activity.Records = append(activity.Records, record)
	}

	session := fit.NewSessionMsg()
	session.Timestamp = start.Add(time.Hour)
	session.StartTime = start
	session.Sport = fit.SportRunning
	session.TotalElapsedTime = 3600000
	activity.Sessions = append(activity.Sessions, session)

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		t.Fatalf("encode fit: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newImporter(st Store) *Importer {
	return &Importer{
		Parser:     fitlog.NewParser(fitdecode.New(nil), nil),
		Store:      st,
		Workers:    2,
		Extensions: []string{".fit"},
	}
}

func TestImportFileOutcomes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	good := filepath.Join(dir, "run.fit")
	writeFile(t, good, buildTestFIT(t, 120, 125))
	bad := filepath.Join(dir, "bad.fit")
	writeFile(t, bad, []byte("not a fit file"))

	im := newImporter(newMemStore())

	res := im.ImportFile(ctx, good)
	if !res.Success || res.Message != MsgUploaded || res.WorkoutID == "" {
		t.Fatalf("first import = %+v", res)
	}

	res = im.ImportFile(ctx, good)
	if res.Success || !res.Duplicate || res.Message != MsgDuplicate {
		t.Fatalf("duplicate import = %+v", res)
	}

	res = im.ImportFile(ctx, filepath.Join(dir, "missing.fit"))
	if res.Success || res.Message != MsgFileNotFound {
		t.Fatalf("missing file = %+v", res)
	}

	res = im.ImportFile(ctx, bad)
	if res.Success || !strings.HasPrefix(res.Message, "Failed to parse FIT file: ") {
		t.Fatalf("bad file = %+v", res)
	}
}

func TestImportFilesKeepsInputOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	var (
		paths []string
		first []byte
	)
	for i, hr := range []uint8{100, 110, 120, 130, 140} {
		p := filepath.Join(dir, "f"+string(rune('a'+i))+".fit")
		data := buildTestFIT(t, hr)
		if first == nil {
			first = data
		}
		writeFile(t, p, data)
		paths = append(paths, p)
	}
	dup := filepath.Join(dir, "copy.fit")
	writeFile(t, dup, first)
	paths = append(paths, dup)

	results := newImporter(newMemStore()).ImportFiles(ctx, paths)
	if len(results) != len(paths) {
		t.Fatalf("results = %d want %d", len(results), len(paths))
	}
	for i, r := range results[:5] {
		if r.Path != paths[i] || !r.Success {
			t.Fatalf("result %d = %+v", i, r)
		}
		if want := "w" + string(rune('1'+i)); r.WorkoutID != want {
			t.Fatalf("result %d id = %q want %q", i, r.WorkoutID, want)
		}
	}
	if last := results[5]; last.Success || !last.Duplicate {
		t.Fatalf("duplicate content = %+v", last)
	}
}

func TestImportFolder(t *testing.T) {
	ctx := context.Background()
	im := newImporter(newMemStore())

	res := im.ImportFolder(ctx, filepath.Join(t.TempDir(), "nope"))
	if len(res) != 1 || res[0].Message != MsgFolderMissing {
		t.Fatalf("missing folder = %+v", res)
	}

	empty := t.TempDir()
	writeFile(t, filepath.Join(empty, "notes.txt"), []byte("hi"))
	res = im.ImportFolder(ctx, empty)
	if len(res) != 1 || res[0].Message != MsgNoFitFiles {
		t.Fatalf("empty folder = %+v", res)
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.FIT"), buildTestFIT(t, 90))
	writeFile(t, filepath.Join(dir, "nested", "b.fit"), buildTestFIT(t, 91))
	writeFile(t, filepath.Join(dir, "nested", "c.gpx"), []byte("<gpx/>"))
	res = im.ImportFolder(ctx, dir)
	if len(res) != 2 {
		t.Fatalf("folder results = %+v", res)
	}
	for _, r := range res {
		if !r.Success {
			t.Fatalf("folder import = %+v", r)
		}
	}
}

func TestImportBytes(t *testing.T) {
	im := newImporter(newMemStore())
	data := buildTestFIT(t, 150)

	res := im.ImportBytes(context.Background(), "upload.fit", data)
	if !res.Success || res.FileHash != fitlog.FileHash(data) {
		t.Fatalf("ImportBytes = %+v", res)
	}
	res = im.ImportBytes(context.Background(), "junk.fit", []byte{0})
	if res.Success || !strings.HasPrefix(res.Message, "Failed to parse FIT file: ") {
		t.Fatalf("junk upload = %+v", res)
	}
}

func parsedSample(t *testing.T) *fitlog.ParsedWorkout {
	t.Helper()
	w, err := fitlog.NewParser(fitdecode.New(nil), nil).ParseBytes("ride.fit", buildTestFIT(t, 120, 121, 122))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return w
}

func TestExportCSV(t *testing.T) {
	w := parsedSample(t)
	outDir := filepath.Join(t.TempDir(), "out")

	res, err := Export(w, outDir, "csv")
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}

	f, err := os.Open(res.SensorsPath)
	if err != nil {
		t.Fatalf("open sensors: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("csv rows = %d, want header + 3", len(rows))
	}
	for i, col := range sensorColumns {
		if rows[0][i] != col {
			t.Fatalf("header column %d = %q want %q", i, rows[0][i], col)
		}
	}
	if rows[1][0] != "2026-02-26T23:00:00Z" || rows[1][1] != "120" || rows[1][2] != "245" || rows[1][3] != "" {
		t.Fatalf("first row = %v", rows[1])
	}

	data, err := os.ReadFile(res.WorkoutPath)
	if err != nil {
		t.Fatalf("read workout: %v", err)
	}
	var summary map[string]any
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("unmarshal workout: %v", err)
	}
	if summary["workout_type"] != "running" || summary["duration_seconds"] != 3600.0 {
		t.Fatalf("summary = %v", summary)
	}
	if _, ok := summary["sensor_data"]; ok {
		t.Fatal("series should not be embedded in workout.json")
	}
	if summary["sensor_points"] != 3.0 {
		t.Fatalf("sensor_points = %v", summary["sensor_points"])
	}

	var chart fitlog.ChartData
	data, err = os.ReadFile(res.ChartPath)
	if err != nil {
		t.Fatalf("read chart: %v", err)
	}
	if err := json.Unmarshal(data, &chart); err != nil {
		t.Fatalf("unmarshal chart: %v", err)
	}
	if chart.Len() != 3 {
		t.Fatalf("chart len = %d", chart.Len())
	}
	if _, err := os.Stat(res.GPSPath); err != nil {
		t.Fatalf("gps missing: %v", err)
	}
}

func TestExportParquet(t *testing.T) {
	files, err := ExportBytes(parsedSample(t), "")
	if err != nil {
		t.Fatalf("ExportBytes error: %v", err)
	}
	data, ok := files["sensor_samples.parquet"]
	if !ok {
		t.Fatalf("parquet artifact missing, got %v", keys(files))
	}
	if len(data) < 8 || string(data[:4]) != "PAR1" || string(data[len(data)-4:]) != "PAR1" {
		t.Fatal("parquet artifact lacks PAR1 magic")
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	if _, err := ExportBytes(parsedSample(t), "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := Export(parsedSample(t), "", "csv"); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
