package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"barbershop/internal/config"
	"barbershop/internal/export"
	"barbershop/internal/metrics"
	"barbershop/internal/models"
	"barbershop/internal/service"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Services are the application services behind the API.
type Services struct {
	Schedules *service.ScheduleService
	Booking   *service.BookingService
	Barbers   *service.BarberService
	Waitlist  *service.WaitlistService
	Exporter  *export.Exporter
	SyncTasks FailedSyncTasks
	// Ready reports whether storage is reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

// FailedSyncTasks lists spreadsheet sync tasks that ran out of retries.
type FailedSyncTasks interface {
	GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error)
}

// HTTPServer exposes the scheduling JSON API.
type HTTPServer struct {
	cfg     *config.APIConfig
	svc     Services
	loc     *time.Location
	server  *http.Server
	handler http.Handler
	auth    *HTTPAuth
	log     zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:  cfg,
		svc:  svc,
		loc:  svc.Schedules.Location(),
		auth: NewHTTPAuth(cfg),
		log:  zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	srv.handler = otelhttp.NewHandler(srv.loggingMiddleware(srv.auth.Wrap(mux)), "barbershop.http")
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/v1/barbers", s.handleBarbers)
	mux.HandleFunc("GET /api/v1/barbers/{id}/treatments", s.handleTreatments)
	mux.HandleFunc("GET /api/v1/barbers/{id}/day", s.handleDay)
	mux.HandleFunc("GET /api/v1/barbers/{id}/slots", s.handleSlots)
	mux.HandleFunc("POST /api/v1/barbers/{id}/check", s.handleCheck)
	mux.HandleFunc("GET /api/v1/barbers/{id}/weekly", s.handleGetWeekly)
	mux.HandleFunc("PUT /api/v1/barbers/{id}/weekly", s.handlePutWeekly)
	mux.HandleFunc("PATCH /api/v1/barbers/{id}/weekly/{weekday}", s.handleToggleDay)
	mux.HandleFunc("GET /api/v1/barbers/{id}/overrides", s.handleListOverrides)
	mux.HandleFunc("PUT /api/v1/barbers/{id}/overrides/{date}", s.handlePutOverride)
	mux.HandleFunc("DELETE /api/v1/barbers/{id}/overrides/{date}", s.handleDeleteOverride)
	mux.HandleFunc("PUT /api/v1/barbers/{id}/week/{date}", s.handlePutWeek)
	mux.HandleFunc("PUT /api/v1/barbers/{id}/primary-treatment", s.handlePrimaryTreatment)
	mux.HandleFunc("GET /api/v1/barbers/{id}/appointments", s.handleBarberAppointments)

	mux.HandleFunc("POST /api/v1/appointments", s.handleBook)
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /api/v1/appointments/{id}/status", s.handleStatus)
	mux.HandleFunc("DELETE /api/v1/appointments/{id}", s.handleDeleteAppointment)
	mux.HandleFunc("GET /api/v1/users/{id}/appointments", s.handleUserAppointments)

	mux.HandleFunc("POST /api/v1/waitlist", s.handleAddWaitlist)
	mux.HandleFunc("GET /api/v1/waitlist", s.handleListWaitlist)
	mux.HandleFunc("POST /api/v1/waitlist/{id}/notify", s.handleNotifyWaitlist)
	mux.HandleFunc("DELETE /api/v1/waitlist/{id}", s.handleDeleteWaitlist)

	mux.HandleFunc("GET /api/v1/export", s.handleExport)
	mux.HandleFunc("GET /api/v1/sync/failed", s.handleFailedSync)
}

// Handler is the fully wrapped handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		if err := s.svc.Ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// respondError writes the mapped status for err and logs server-side failures.
func (s *HTTPServer) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, newErrorBody(err))
}

func (s *HTTPServer) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: date", models.ErrMissingField)
	}
	return models.ParseDay(raw, s.loc)
}

// parseStart combines a YYYY-MM-DD date and an HH:MM time in the shop's timezone.
func (s *HTTPServer) parseStart(date, clock string) (time.Time, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	c, err := models.ParseClock(strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, err
	}
	return c.On(day), nil
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", models.ErrMissingField, err)
	}
	return nil
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorBody{Error: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
