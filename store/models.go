package store

import "time"

// Workout is a stored workout without its sample series.
type Workout struct {
	ID                  string     `json:"id"`
	FileHash            string     `json:"file_hash"`
	Filename            string     `json:"filename"`
	Name                *string    `json:"name"`
	Tags                []string   `json:"tags"`
	Notes               string     `json:"notes"`
	WorkoutType         *string    `json:"workout_type"`
	StartTime           *time.Time `json:"start_time"`
	EndTime             *time.Time `json:"end_time"`
	DurationSeconds     *int64     `json:"duration_seconds"`
	DistanceMeters      *float64   `json:"distance_meters"`
	TotalCalories       *int64     `json:"total_calories"`
	AvgHeartRate        *int64     `json:"avg_heart_rate"`
	MaxHeartRate        *int64     `json:"max_heart_rate"`
	AvgPowerWatts       *int64     `json:"avg_power_watts"`
	MaxPowerWatts       *int64     `json:"max_power_watts"`
	AvgCadence          *int64     `json:"avg_cadence"`
	MaxCadence          *int64     `json:"max_cadence"`
	AvgSpeedMPS         *float64   `json:"avg_speed_mps"`
	MaxSpeedMPS         *float64   `json:"max_speed_mps"`
	ElevationGainMeters *float64   `json:"elevation_gain_meters"`
	ElevationLossMeters *float64   `json:"elevation_loss_meters"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// WorkoutSummary is the list view of a workout.
type WorkoutSummary struct {
	ID              string     `json:"id"`
	Name            *string    `json:"name"`
	WorkoutType     *string    `json:"workout_type"`
	StartTime       *time.Time `json:"start_time"`
	DurationSeconds *int64     `json:"duration_seconds"`
	DistanceMeters  *float64   `json:"distance_meters"`
	TotalCalories   *int64     `json:"total_calories"`
	AvgHeartRate    *int64     `json:"avg_heart_rate"`
	Tags            []string   `json:"tags"`
}

// Filter narrows List and Count. Zero values mean "no constraint". Search
// matches name or filename case-insensitively.
type Filter struct {
	WorkoutType  string
	Tag          string
	Search       string
	From, To     time.Time
	MinDistanceM float64
	MaxDistanceM float64
	MinDurationS int64
	MaxDurationS int64
	Page         int
	PerPage      int
}

// Stats aggregates every stored workout.
type Stats struct {
	TotalWorkouts      int64   `json:"total_workouts"`
	TotalDistanceKm    float64 `json:"total_distance_km"`
	TotalDurationHours float64 `json:"total_duration_hours"`
	TotalCalories      int64   `json:"total_calories"`
	CurrentStreakDays  int64   `json:"current_streak_days"`
	ActiveDaysLastYear int64   `json:"active_days_last_year"`
}

// PersonalRecords holds the best value of each metric across all workouts.
type PersonalRecords struct {
	MaxDistanceKm     float64 `json:"max_distance_km"`
	MaxDurationHours  float64 `json:"max_duration_hours"`
	MaxHeartRate      int64   `json:"max_heart_rate"`
	MaxSpeedKmh       float64 `json:"max_speed_kmh"`
	MaxElevationGainM float64 `json:"max_elevation_gain"`
	MaxCalories       int64   `json:"max_calories"`
}

// TypeCount is one row of the activity breakdown.
type TypeCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// MonthlyStats totals the workouts started in the current calendar month.
type MonthlyStats struct {
	Workouts        int64   `json:"workouts"`
	DistanceKm      float64 `json:"distance_km"`
	DurationSeconds int64   `json:"duration_seconds"`
	Calories        int64   `json:"calories"`
}

// CalendarDay is one active day of the contribution calendar.
type CalendarDay struct {
	Date         string   `json:"date"`
	Count        int64    `json:"count"`
	WorkoutTypes []string `json:"workout_types"`
}

// WeekCount is the workout count of one week, labelled YYYY-Www with weeks
// starting on Monday.
type WeekCount struct {
	Week  string `json:"week"`
	Count int64  `json:"count"`
}
