package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Distance logged by these workout types is device noise and is left out of
// monthly distance totals.
const nonDistanceTypes = `'generic', 'system', 'strength_training', 'yoga', 'training', 'fitness_equipment'`

// Stats returns lifetime totals plus the current daily streak. A streak is
// active when the latest workout day is today or yesterday (UTC).
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*),
		 COALESCE(SUM(distance_meters), 0) / 1000.0,
		 COALESCE(SUM(duration_seconds), 0) / 3600.0,
		 COALESCE(SUM(total_calories), 0)
		 FROM workouts`).Scan(&s.TotalWorkouts, &s.TotalDistanceKm, &s.TotalDurationHours, &s.TotalCalories)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}

	now := time.Now().UTC()
	days, err := db.workoutDays(ctx)
	if err != nil {
		return nil, err
	}
	s.CurrentStreakDays = currentStreak(days, now)

	yearAgo := now.AddDate(0, 0, -365).Format(dateLayout)
	for _, d := range days {
		if d >= yearAgo {
			s.ActiveDaysLastYear++
		}
	}
	return &s, nil
}

// workoutDays returns distinct workout dates, newest first.
func (db *DB) workoutDays(ctx context.Context) ([]string, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT DISTINCT date(start_time) AS day FROM workouts
		 WHERE start_time IS NOT NULL ORDER BY day DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying workout days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning workout day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func currentStreak(days []string, now time.Time) int64 {
	if len(days) == 0 {
		return 0
	}
	today := now.Format(dateLayout)
	yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
	if days[0] != today && days[0] != yesterday {
		return 0
	}
	expected, err := time.Parse(dateLayout, days[0])
	if err != nil {
		return 0
	}
	var streak int64
	for _, d := range days {
		if d != expected.Format(dateLayout) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}

// MonthlyStats totals the workouts started since the first day of the current
// UTC month.
func (db *DB) MonthlyStats(ctx context.Context) (*MonthlyStats, error) {
	return db.monthlyStats(ctx, time.Now().UTC())
}

func (db *DB) monthlyStats(ctx context.Context, now time.Time) (*MonthlyStats, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var m MonthlyStats
	err := db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*),
		 COALESCE(SUM(CASE WHEN workout_type IN (`+nonDistanceTypes+`) THEN 0
		     ELSE distance_meters END), 0) / 1000.0,
		 COALESCE(SUM(duration_seconds), 0),
		 COALESCE(SUM(total_calories), 0)
		 FROM workouts WHERE start_time >= ?`,
		monthStart.Format(dateLayout)).Scan(&m.Workouts, &m.DistanceKm, &m.DurationSeconds, &m.Calories)
	if err != nil {
		return nil, fmt.Errorf("querying monthly stats: %w", err)
	}
	return &m, nil
}

// Calendar returns one entry per active day over the last days days, oldest
// first.
func (db *DB) Calendar(ctx context.Context, days int) ([]CalendarDay, error) {
	return db.calendar(ctx, days, time.Now().UTC())
}

func (db *DB) calendar(ctx context.Context, days int, now time.Time) ([]CalendarDay, error) {
	since := now.AddDate(0, 0, -days).Format(dateLayout)
	rows, err := db.sql.QueryContext(ctx,
		`SELECT date(start_time) AS day, COUNT(*), GROUP_CONCAT(workout_type)
		 FROM workouts WHERE start_time >= ?
		 GROUP BY day ORDER BY day`, since)
	if err != nil {
		return nil, fmt.Errorf("querying calendar: %w", err)
	}
	defer rows.Close()

	out := make([]CalendarDay, 0)
	for rows.Next() {
		var (
			d     CalendarDay
			types sql.NullString
		)
		if err := rows.Scan(&d.Date, &d.Count, &types); err != nil {
			return nil, fmt.Errorf("scanning calendar day: %w", err)
		}
		d.WorkoutTypes = []string{}
		if types.Valid && types.String != "" {
			d.WorkoutTypes = strings.Split(types.String, ",")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Weekly counts workouts per week over the last weeks weeks, oldest first.
func (db *DB) Weekly(ctx context.Context, weeks int) ([]WeekCount, error) {
	return db.weekly(ctx, weeks, time.Now().UTC())
}

func (db *DB) weekly(ctx context.Context, weeks int, now time.Time) ([]WeekCount, error) {
	since := now.AddDate(0, 0, -7*weeks).Format(dateLayout)
	rows, err := db.sql.QueryContext(ctx,
		`SELECT strftime('%Y-W%W', start_time) AS week, COUNT(*)
		 FROM workouts WHERE start_time >= ?
		 GROUP BY week ORDER BY week`, since)
	if err != nil {
		return nil, fmt.Errorf("querying weekly summary: %w", err)
	}
	defer rows.Close()

	out := make([]WeekCount, 0)
	for rows.Next() {
		var w WeekCount
		if err := rows.Scan(&w.Week, &w.Count); err != nil {
			return nil, fmt.Errorf("scanning weekly summary: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// PersonalRecords returns the best of each metric across all workouts.
func (db *DB) PersonalRecords(ctx context.Context) (*PersonalRecords, error) {
	var r PersonalRecords
	err := db.sql.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(distance_meters), 0) / 1000.0,
		 COALESCE(MAX(duration_seconds), 0) / 3600.0,
		 COALESCE(MAX(max_heart_rate), 0),
		 COALESCE(MAX(max_speed_mps), 0) * 3.6,
		 COALESCE(MAX(elevation_gain_meters), 0),
		 COALESCE(MAX(total_calories), 0)
		 FROM workouts`).Scan(&r.MaxDistanceKm, &r.MaxDurationHours, &r.MaxHeartRate,
		&r.MaxSpeedKmh, &r.MaxElevationGainM, &r.MaxCalories)
	if err != nil {
		return nil, fmt.Errorf("querying personal records: %w", err)
	}
	return &r, nil
}

// ActivityBreakdown counts workouts per type, most frequent first. Workouts
// without a type are reported as "unknown".
func (db *DB) ActivityBreakdown(ctx context.Context) ([]TypeCount, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT COALESCE(workout_type, 'unknown') AS type, COUNT(*) AS count
		 FROM workouts GROUP BY type ORDER BY count DESC, type ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying activity breakdown: %w", err)
	}
	defer rows.Close()

	out := make([]TypeCount, 0)
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning activity breakdown: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// AllTags returns every distinct tag in sorted order.
func (db *DB) AllTags(ctx context.Context) ([]string, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT DISTINCT tags FROM workouts WHERE tags != '[]'`)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning tags: %w", err)
		}
		tags, err := decodeTags(raw)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			seen[t] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}
