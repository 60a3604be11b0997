package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucasjlepore/fitlog"
)

const (
	timeLayout = time.RFC3339
	dateLayout = "2006-01-02"

	defaultPerPage = 20
	maxPerPage     = 200
)

const workoutColumns = `id, file_hash, filename, name, tags, notes, workout_type, start_time, end_time,
	duration_seconds, distance_meters, total_calories, avg_heart_rate, max_heart_rate,
	avg_power_watts, max_power_watts, avg_cadence, max_cadence, avg_speed_mps, max_speed_mps,
	elevation_gain_meters, elevation_loss_meters, created_at, updated_at`

// Exists reports whether a workout with the given content hash is stored.
func (db *DB) Exists(ctx context.Context, fileHash string) (bool, error) {
	var count int
	err := db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workouts WHERE file_hash = ?`, fileHash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking workout hash: %w", err)
	}
	return count > 0, nil
}

// Insert stores w and returns its new id. inserted is false, with an empty
// id, when a workout with the same hash already exists.
func (db *DB) Insert(ctx context.Context, w *fitlog.ParsedWorkout) (id string, inserted bool, err error) {
	gps, err := json.Marshal(w.GPSData)
	if err != nil {
		return "", false, fmt.Errorf("encoding gps data: %w", err)
	}
	sensors, err := json.Marshal(w.SensorData)
	if err != nil {
		return "", false, fmt.Errorf("encoding sensor data: %w", err)
	}
	chart, err := json.Marshal(w.ChartData)
	if err != nil {
		return "", false, fmt.Errorf("encoding chart data: %w", err)
	}

	id = uuid.NewString()
	now := time.Now().UTC().Format(timeLayout)
	res, err := db.sql.ExecContext(ctx,
		`INSERT INTO workouts (id, file_hash, filename, workout_type, start_time, end_time,
		 duration_seconds, distance_meters, total_calories, avg_heart_rate, max_heart_rate,
		 avg_power_watts, max_power_watts, avg_cadence, max_cadence, avg_speed_mps, max_speed_mps,
		 elevation_gain_meters, elevation_loss_meters, gps_data, sensor_data, chart_data,
		 created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(file_hash) DO NOTHING`,
		id, w.FileHash, w.Filename, w.WorkoutType, formatTime(w.StartTime), formatTime(w.EndTime),
		w.DurationSeconds, w.DistanceMeters, w.TotalCalories, w.AvgHeartRate, w.MaxHeartRate,
		w.AvgPowerWatts, w.MaxPowerWatts, w.AvgCadence, w.MaxCadence, w.AvgSpeedMPS, w.MaxSpeedMPS,
		w.ElevationGainMeters, w.ElevationLossMeters, string(gps), string(sensors), string(chart),
		now, now)
	if err != nil {
		return "", false, fmt.Errorf("inserting workout: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("inserting workout: %w", err)
	}
	if n == 0 {
		return "", false, nil
	}
	return id, true, nil
}

// Get returns the workout with the given id.
func (db *DB) Get(ctx context.Context, id string) (*Workout, error) {
	row := db.sql.QueryRowContext(ctx,
		`SELECT `+workoutColumns+` FROM workouts WHERE id = ?`, id)
	w, err := scanWorkout(row)
	if err != nil {
		return nil, fmt.Errorf("getting workout %s: %w", id, err)
	}
	return w, nil
}

// GetByDate returns the earliest workout that started on day (UTC).
func (db *DB) GetByDate(ctx context.Context, day time.Time) (*Workout, error) {
	row := db.sql.QueryRowContext(ctx,
		`SELECT `+workoutColumns+` FROM workouts
		 WHERE date(start_time) = ? ORDER BY start_time ASC LIMIT 1`,
		day.UTC().Format(dateLayout))
	w, err := scanWorkout(row)
	if err != nil {
		return nil, fmt.Errorf("getting workout on %s: %w", day.UTC().Format(dateLayout), err)
	}
	return w, nil
}

// List returns one page of workouts matching f, newest first.
func (db *DB) List(ctx context.Context, f Filter) ([]WorkoutSummary, error) {
	where, args := f.where()
	perPage, offset := f.Window()
	args = append(args, perPage, offset)

	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, name, workout_type, start_time, duration_seconds, distance_meters,
		 total_calories, avg_heart_rate, tags
		 FROM workouts`+where+`
		 ORDER BY start_time DESC, created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing workouts: %w", err)
	}
	defer rows.Close()

	out := make([]WorkoutSummary, 0)
	for rows.Next() {
		var (
			s     WorkoutSummary
			name  sql.NullString
			typ   sql.NullString
			start sql.NullString
			dur   sql.NullInt64
			dist  sql.NullFloat64
			cal   sql.NullInt64
			hr    sql.NullInt64
			tags  string
		)
		if err := rows.Scan(&s.ID, &name, &typ, &start, &dur, &dist, &cal, &hr, &tags); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		s.Name = nullString(name)
		s.WorkoutType = nullString(typ)
		s.StartTime = parseTime(start)
		s.DurationSeconds = nullInt(dur)
		s.DistanceMeters = nullFloat(dist)
		s.TotalCalories = nullInt(cal)
		s.AvgHeartRate = nullInt(hr)
		if s.Tags, err = decodeTags(tags); err != nil {
			return nil, fmt.Errorf("workout %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workouts: %w", err)
	}
	return out, nil
}

// Count returns the number of workouts matching f, ignoring paging.
func (db *DB) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := f.where()
	var n int64
	if err := db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM workouts`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting workouts: %w", err)
	}
	return n, nil
}

// GPS returns the stored GPS track of a workout.
func (db *DB) GPS(ctx context.Context, id string) ([]fitlog.GpsPoint, error) {
	var out []fitlog.GpsPoint
	if err := db.blob(ctx, id, "gps_data", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sensors returns the stored sensor series of a workout.
func (db *DB) Sensors(ctx context.Context, id string) ([]fitlog.SensorPoint, error) {
	var out []fitlog.SensorPoint
	if err := db.blob(ctx, id, "sensor_data", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Chart returns the stored chart series of a workout.
func (db *DB) Chart(ctx context.Context, id string) (*fitlog.ChartData, error) {
	var out fitlog.ChartData
	if err := db.blob(ctx, id, "chart_data", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Load rebuilds the full parsed workout, series included.
func (db *DB) Load(ctx context.Context, id string) (*fitlog.ParsedWorkout, error) {
	wk, err := db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	w := &fitlog.ParsedWorkout{
		FileHash:            wk.FileHash,
		Filename:            wk.Filename,
		WorkoutType:         wk.WorkoutType,
		StartTime:           wk.StartTime,
		EndTime:             wk.EndTime,
		DurationSeconds:     wk.DurationSeconds,
		DistanceMeters:      wk.DistanceMeters,
		TotalCalories:       wk.TotalCalories,
		AvgHeartRate:        wk.AvgHeartRate,
		MaxHeartRate:        wk.MaxHeartRate,
		AvgPowerWatts:       wk.AvgPowerWatts,
		MaxPowerWatts:       wk.MaxPowerWatts,
		AvgCadence:          wk.AvgCadence,
		MaxCadence:          wk.MaxCadence,
		AvgSpeedMPS:         wk.AvgSpeedMPS,
		MaxSpeedMPS:         wk.MaxSpeedMPS,
		ElevationGainMeters: wk.ElevationGainMeters,
		ElevationLossMeters: wk.ElevationLossMeters,
	}
	if err := db.blob(ctx, id, "gps_data", &w.GPSData); err != nil {
		return nil, err
	}
	if err := db.blob(ctx, id, "sensor_data", &w.SensorData); err != nil {
		return nil, err
	}
	if err := db.blob(ctx, id, "chart_data", &w.ChartData); err != nil {
		return nil, err
	}
	return w, nil
}

// blob decodes one JSON column. column is always a package constant.
func (db *DB) blob(ctx context.Context, id, column string, dst any) error {
	var raw string
	err := db.sql.QueryRowContext(ctx,
		`SELECT `+column+` FROM workouts WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading %s of %s: %w", column, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading %s of %s: %w", column, id, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decoding %s of %s: %w", column, id, err)
	}
	return nil
}

// Delete removes a workout.
func (db *DB) Delete(ctx context.Context, id string) error {
	return db.update(ctx, "deleting workout", `DELETE FROM workouts WHERE id = ?`, id)
}

// Rename sets the display name of a workout.
func (db *DB) Rename(ctx context.Context, id, name string) error {
	return db.update(ctx, "renaming workout",
		`UPDATE workouts SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC().Format(timeLayout), id)
}

// UpdateTags replaces the tag list of a workout. Tags are trimmed,
// de-duplicated and empty tags dropped.
func (db *DB) UpdateTags(ctx context.Context, id string, tags []string) error {
	raw, err := json.Marshal(normalizeTags(tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	return db.update(ctx, "updating tags",
		`UPDATE workouts SET tags = ?, updated_at = ? WHERE id = ?`,
		string(raw), time.Now().UTC().Format(timeLayout), id)
}

// UpdateNotes replaces the free-form notes of a workout.
func (db *DB) UpdateNotes(ctx context.Context, id, notes string) error {
	return db.update(ctx, "updating notes",
		`UPDATE workouts SET notes = ?, updated_at = ? WHERE id = ?`,
		notes, time.Now().UTC().Format(timeLayout), id)
}

func (db *DB) update(ctx context.Context, op, query string, args ...any) error {
	res, err := db.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.WorkoutType != "" {
		conds = append(conds, "workout_type = ?")
		args = append(args, f.WorkoutType)
	}
	if f.Tag != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(workouts.tags) WHERE json_each.value = ?)")
		args = append(args, f.Tag)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		conds = append(conds, "(LOWER(COALESCE(name, '')) LIKE ? OR LOWER(filename) LIKE ?)")
		pattern := "%" + strings.ToLower(s) + "%"
		args = append(args, pattern, pattern)
	}
	if !f.From.IsZero() {
		conds = append(conds, "start_time >= ?")
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if !f.To.IsZero() {
		conds = append(conds, "start_time < ?")
		args = append(args, f.To.UTC().Format(timeLayout))
	}
	if f.MinDistanceM > 0 {
		conds = append(conds, "distance_meters >= ?")
		args = append(args, f.MinDistanceM)
	}
	if f.MaxDistanceM > 0 {
		conds = append(conds, "distance_meters <= ?")
		args = append(args, f.MaxDistanceM)
	}
	if f.MinDurationS > 0 {
		conds = append(conds, "duration_seconds >= ?")
		args = append(args, f.MinDurationS)
	}
	if f.MaxDurationS > 0 {
		conds = append(conds, "duration_seconds <= ?")
		args = append(args, f.MaxDurationS)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Window returns the effective page size and row offset of f.
func (f Filter) Window() (limit, offset int) {
	limit = f.PerPage
	if limit <= 0 {
		limit = defaultPerPage
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkout(row rowScanner) (*Workout, error) {
	var (
		w                          Workout
		name, typ, start, end      sql.NullString
		tags, created, updated     string
		dur, cal, avgHR, maxHR     sql.NullInt64
		avgP, maxP, avgCad, maxCad sql.NullInt64
		dist, avgSpd, maxSpd       sql.NullFloat64
		gain, loss                 sql.NullFloat64
	)
	err := row.Scan(&w.ID, &w.FileHash, &w.Filename, &name, &tags, &w.Notes, &typ, &start, &end,
		&dur, &dist, &cal, &avgHR, &maxHR, &avgP, &maxP, &avgCad, &maxCad, &avgSpd, &maxSpd,
		&gain, &loss, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if w.Tags, err = decodeTags(tags); err != nil {
		return nil, fmt.Errorf("workout %s: %w", w.ID, err)
	}
	w.Name = nullString(name)
	w.WorkoutType = nullString(typ)
	w.StartTime = parseTime(start)
	w.EndTime = parseTime(end)
	w.DurationSeconds = nullInt(dur)
	w.DistanceMeters = nullFloat(dist)
	w.TotalCalories = nullInt(cal)
	w.AvgHeartRate = nullInt(avgHR)
	w.MaxHeartRate = nullInt(maxHR)
	w.AvgPowerWatts = nullInt(avgP)
	w.MaxPowerWatts = nullInt(maxP)
	w.AvgCadence = nullInt(avgCad)
	w.MaxCadence = nullInt(maxCad)
	w.AvgSpeedMPS = nullFloat(avgSpd)
	w.MaxSpeedMPS = nullFloat(maxSpd)
	w.ElevationGainMeters = nullFloat(gain)
	w.ElevationLossMeters = nullFloat(loss)
	if t := parseTime(sql.NullString{String: created, Valid: true}); t != nil {
		w.CreatedAt = *t
	}
	if t := parseTime(sql.NullString{String: updated, Valid: true}); t != nil {
		w.UpdatedAt = *t
	}
	return &w, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}

func decodeTags(raw string) ([]string, error) {
	tags := make([]string, 0)
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decoding tags %q: %w", raw, err)
	}
	if tags == nil {
		tags = make([]string, 0)
	}
	return tags, nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
