// Package server exposes the workout store over a JSON HTTP API.
package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/lucasjlepore/fitlog/pipeline"
	"github.com/lucasjlepore/fitlog/store"
)

// maxUploadBytes bounds the body of a FIT upload.
const maxUploadBytes = 64 << 20

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       *store.DB
	importer *pipeline.Importer
	log      *slog.Logger
	router   chi.Router
	handler  http.Handler
}

// New creates a Server with all routes configured. allowedOrigins feeds the
// CORS policy; an empty list allows every origin.
func New(db *store.DB, importer *pipeline.Importer, allowedOrigins []string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		db:       db,
		importer: importer,
		log:      log,
		router:   chi.NewRouter(),
	}
	s.routes()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"*"},
	})
	s.handler = c.Handler(s.router)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))

	s.router.Route("/api/workouts", func(r chi.Router) {
		r.Get("/", s.handleListWorkouts)
		r.Post("/", s.handleUpload)
		r.Get("/date/{date}", s.handleWorkoutByDate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkout)
			r.Patch("/", s.handleUpdateWorkout)
			r.Delete("/", s.handleDeleteWorkout)
			r.Get("/chart", s.handleChart)
			r.Get("/gps", s.handleGPS)
			r.Get("/sensors", s.handleSensors)
			r.Get("/power", s.handlePower)
		})
	})

	s.router.Get("/api/stats", s.handleStats)
	s.router.Get("/api/stats/monthly", s.handleMonthlyStats)
	s.router.Get("/api/calendar", s.handleCalendar)
	s.router.Get("/api/weekly", s.handleWeekly)
	s.router.Get("/api/records", s.handleRecords)
	s.router.Get("/api/breakdown", s.handleBreakdown)
	s.router.Get("/api/tags", s.handleTags)
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
