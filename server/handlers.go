package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lucasjlepore/fitlog"
	"github.com/lucasjlepore/fitlog/store"
)

type listResponse struct {
	Workouts []store.WorkoutSummary `json:"workouts"`
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PerPage  int                    `json:"per_page"`
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	workouts, err := s.db.List(r.Context(), f)
	if err != nil {
		s.serverError(w, "list workouts", err)
		return
	}
	total, err := s.db.Count(r.Context(), f)
	if err != nil {
		s.serverError(w, "count workouts", err)
		return
	}
	if workouts == nil {
		workouts = []store.WorkoutSummary{}
	}
	perPage, offset := f.Window()
	writeJSON(w, http.StatusOK, listResponse{
		Workouts: workouts,
		Total:    total,
		Page:     offset/perPage + 1,
		PerPage:  perPage,
	})
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	id, ok := workoutID(w, r)
	if !ok {
		return
	}
	workout, err := s.db.Get(r.Context(), id)
	if err != nil {
		s.lookupError(w, "get workout", err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (s *Server) handleWorkoutByDate(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	workout, err := s.db.GetByDate(r.Context(), day)
	if err != nil {
		s.lookupError(w, "get workout by date", err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	id, ok := workoutID(w, r)
	if !ok {
		return
	}
	chart, err := s.db.Chart(r.Context(), id)
	if err != nil {
		s.lookupError(w, "load chart", err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *Server) handleGPS(w http.ResponseWriter, r *http.Request) {
	id, ok := workoutID(w, r)
	if !ok {
		return
	}
	points, err := s.db.GPS(r.Context(), id)
	if err != nil {
		s.lookupError(w, "load gps", err)
		return
	}
	resp := struct {
		Points  []fitlog.GpsPoint    `json:"points"`
		Summary *fitlog.TrackSummary `json:"summary"`
	}{Points: points}
	if resp.Points == nil {
		resp.Points = []fitlog.GpsPoint{}
	}
	if ts, ok := fitlog.SummarizeTrack(points); ok {
		resp.Summary = &ts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	id, ok := workoutID(w, r)
	if !ok {
		return
	}
	points, err := s.db.Sensors(r.Context(), id)
	if err != nil {
		s.lookupError(w, "load sensors", err)
		return
	}
	if points == nil {
		points = []fitlog.SensorPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}

// handlePower analyzes the stored power samples. ?ftp= overrides the
// estimated FTP.
func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	id, ok := workoutID(w, r)
	if !ok {
		return
	}
	var ftp float64
	if v := r.URL.Query().Get("ftp"); v != "" {
		var err error
		if ftp, err = strconv.ParseFloat(v, 64); err != nil || ftp < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ftp"})
			return
		}
	}
	points, err := s.db.Sensors(r.Context(), id)
	if err != nil {
		s.lookupError(w, "load sensors", err)
		return
	}
	profile, ok := fitlog.AnalyzePower(points, ftp)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workout has no power data"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// workoutPatch is the body of PATCH /api/workouts/{id}. Absent fields are
// left unchanged.
type workoutPatch struct {
	Name  *string   `json:"name"`
	Tags  *[]string `json:"tags"`
	Notes *string   `json:"notes"`
}

func (s *Server) handleUpdateWorkout(w http.ResponseWriter, r *http.Request) {
	id, ok := workoutID(w, r)
	if !ok {
		return
	}
	var patch workoutPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	ctx := r.Context()
	if patch.Name != nil {
		if err := s.db.Rename(ctx, id, *patch.Name); err != nil {
			s.lookupError(w, "rename workout", err)
			return
		}
	}
	if patch.Tags != nil {
		if err := s.db.UpdateTags(ctx, id, *patch.Tags); err != nil {
			s.lookupError(w, "update tags", err)
			return
		}
	}
	if patch.Notes != nil {
		if err := s.db.UpdateNotes(ctx, id, *patch.Notes); err != nil {
			s.lookupError(w, "update notes", err)
			return
		}
	}

	workout, err := s.db.Get(ctx, id)
	if err != nil {
		s.lookupError(w, "get workout", err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	id, ok := workoutID(w, r)
	if !ok {
		return
	}
	if err := s.db.Delete(r.Context(), id); err != nil {
		s.lookupError(w, "delete workout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty upload"})
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("filename"))
	if name == "" {
		name = "upload.fit"
	}

	res := s.importer.ImportBytes(r.Context(), name, data)
	status := http.StatusCreated
	switch {
	case res.Duplicate:
		status = http.StatusConflict
	case !res.Success && res.FileHash == "":
		status = http.StatusUnprocessableEntity
	case !res.Success:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(r.Context())
	if err != nil {
		s.serverError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.MonthlyStats(r.Context())
	if err != nil {
		s.serverError(w, "monthly stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleCalendar serves ?days= of activity, 365 by default.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	days, ok := positiveParam(w, r, "days", 365)
	if !ok {
		return
	}
	cal, err := s.db.Calendar(r.Context(), days)
	if err != nil {
		s.serverError(w, "calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// handleWeekly serves per-week counts for ?weeks=, 8 by default.
func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	weeks, ok := positiveParam(w, r, "weeks", 8)
	if !ok {
		return
	}
	summary, err := s.db.Weekly(r.Context(), weeks)
	if err != nil {
		s.serverError(w, "weekly summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func positiveParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return 0, false
	}
	return n, true
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.PersonalRecords(r.Context())
	if err != nil {
		s.serverError(w, "personal records", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.ActivityBreakdown(r.Context())
	if err != nil {
		s.serverError(w, "activity breakdown", err)
		return
	}
	if counts == nil {
		counts = []store.TypeCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.db.AllTags(r.Context())
	if err != nil {
		s.serverError(w, "list tags", err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (s *Server) lookupError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.serverError(w, op, err)
}

func workoutID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid workout ID"})
		return "", false
	}
	return id.String(), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseFilter reads list filters from the query string. Dates are
// YYYY-MM-DD and "to" is inclusive.
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{
		WorkoutType: q.Get("type"),
		Tag:         q.Get("tag"),
		Search:      q.Get("search"),
	}

	var err error
	if v := q.Get("from"); v != "" {
		if f.From, err = time.Parse("2006-01-02", v); err != nil {
			return f, fmt.Errorf("invalid from date: %q", v)
		}
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, fmt.Errorf("invalid to date: %q", v)
		}
		f.To = to.AddDate(0, 0, 1)
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"min_distance", &f.MinDistanceM},
		{"max_distance", &f.MaxDistanceM},
	}
	for _, p := range floats {
		if v := q.Get(p.key); v != "" {
			if *p.dst, err = strconv.ParseFloat(v, 64); err != nil {
				return f, fmt.Errorf("invalid %s: %q", p.key, v)
			}
		}
	}

	ints := []struct {
		key string
		dst *int64
	}{
		{"min_duration", &f.MinDurationS},
		{"max_duration", &f.MaxDurationS},
	}
	for _, p := range ints {
		if v := q.Get(p.key); v != "" {
			if *p.dst, err = strconv.ParseInt(v, 10, 64); err != nil {
				return f, fmt.Errorf("invalid %s: %q", p.key, v)
			}
		}
	}

	for key, dst := range map[string]*int{"page": &f.Page, "per_page": &f.PerPage} {
		if v := q.Get(key); v != "" {
			if *dst, err = strconv.Atoi(v); err != nil {
				return f, fmt.Errorf("invalid %s: %q", key, v)
			}
		}
	}
	return f, nil
}
