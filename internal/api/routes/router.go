package routes

import (
	"net/http"
	"time"

	"github.com/nkechi/allergyjournal/backend/internal/api/handlers"
	"github.com/nkechi/allergyjournal/backend/internal/api/middleware"
	"github.com/nkechi/allergyjournal/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	noteHandler    *handlers.NoteHandler
	summaryHandler *handlers.SummaryHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	noteHandler *handlers.NoteHandler,
	summaryHandler *handlers.SummaryHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		noteHandler:    noteHandler,
		summaryHandler: summaryHandler,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Note endpoints
	r.mux.HandleFunc("POST /api/notes", r.noteHandler.CaptureText)
	r.mux.HandleFunc("POST /api/notes/voice", r.noteHandler.CaptureVoice)
	r.mux.HandleFunc("GET /api/notes", r.noteHandler.ListNotes)
	r.mux.HandleFunc("GET /api/notes/metadata", r.noteHandler.GetMetadata)
	r.mux.HandleFunc("PATCH /api/notes/{id}", r.noteHandler.UpdateNote)
	r.mux.HandleFunc("DELETE /api/notes/{id}", r.noteHandler.DeleteNote)

	// Summary endpoints
	r.mux.HandleFunc("GET /api/summary/daily", r.summaryHandler.GetDailySummary)

	var handler http.Handler = r.mux
	if r.metrics != nil {
		handler = r.withMetrics(handler)
	}
	return middleware.LoggingMiddleware(handler)
}

// withMetrics records request count and duration per route
func (r *Router) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, req)

		observability.RecordRequestMetric(req.Context(), r.metrics, req.Method, req.URL.Path, rw.statusCode, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (s *statusRecorder) WriteHeader(statusCode int) {
	s.statusCode = statusCode
	s.ResponseWriter.WriteHeader(statusCode)
}
