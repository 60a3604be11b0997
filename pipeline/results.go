package pipeline

// UploadResult reports the outcome of importing one file. Failures are
// reported here rather than as errors so a batch never aborts.
type UploadResult struct {
	Path      string `json:"path"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	WorkoutID string `json:"workout_id,omitempty"`
	FileHash  string `json:"file_hash,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// ExportResult returns generated output paths.
type ExportResult struct {
	OutputDir   string `json:"output_dir"`
	WorkoutPath string `json:"workout_path"`
	GPSPath     string `json:"gps_path"`
	ChartPath   string `json:"chart_path"`
	SensorsPath string `json:"sensors_path"`
}

// Artifact file names.
const (
	WorkoutFile = "workout.json"
	GPSFile     = "gps.json"
	ChartFile   = "chart.json"
	SensorsBase = "sensor_samples"
)
