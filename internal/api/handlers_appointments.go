package api

import (
	"fmt"
	"net/http"
	"time"

	"barbershop/internal/models"
	"barbershop/internal/service"
)

type bookRequest struct {
	BarberID    string `json:"barberId"`
	TreatmentID string `json:"treatmentId"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Duration    int    `json:"duration"`
	UserID      string `json:"userId"`
	Manual      bool   `json:"manual"`
	ClientName  string `json:"clientName"`
	ClientPhone string `json:"clientPhone"`
}

type cancelRequest struct {
	By     string `json:"by"`
	UserID string `json:"userId"`
}

type statusRequest struct {
	Status    string `json:"status"`
	ChangedBy string `json:"changedBy"`
}

type waitlistRequest struct {
	BarberID    string       `json:"barberId"`
	Date        string       `json:"date"`
	From        models.Clock `json:"fromTime"`
	To          models.Clock `json:"toTime"`
	UserID      string       `json:"userId"`
	ClientName  string       `json:"clientName"`
	ClientPhone string       `json:"clientPhone"`
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.BarberID == "" {
		s.respondError(w, r, fmt.Errorf("%w: barberId", models.ErrMissingField))
		return
	}
	start, err := s.parseStart(req.Date, req.Time)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	appt, err := s.svc.Booking.Book(r.Context(), service.BookingRequest{
		BarberID:    req.BarberID,
		TreatmentID: req.TreatmentID,
		Start:       start,
		Duration:    req.Duration,
		UserID:      req.UserID,
		Manual:      req.Manual,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	appt, err := s.svc.Booking.Cancel(r.Context(), service.CancelRequest{
		AppointmentID: r.PathValue("id"),
		By:            req.By,
		UserID:        req.UserID,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	appt, err := s.svc.Booking.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.ChangedBy)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (s *HTTPServer) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	changedBy := r.URL.Query().Get("by")
	if changedBy == "" {
		changedBy = models.CancelledByAdmin
	}
	if err := s.svc.Booking.Delete(r.Context(), r.PathValue("id"), changedBy); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleBarberAppointments(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	list, err := s.svc.Booking.AppointmentsForDay(r.Context(), r.PathValue("id"), date)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list})
}

func (s *HTTPServer) handleUserAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Booking.UpcomingForUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list})
}

func (s *HTTPServer) handleAddWaitlist(w http.ResponseWriter, r *http.Request) {
	var req waitlistRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	date, err := s.parseDate(req.Date)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	entry := &models.WaitlistEntry{
		BarberID:    req.BarberID,
		Date:        date,
		From:        req.From,
		To:          req.To,
		UserID:      req.UserID,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
	}
	if err := s.svc.Waitlist.Add(r.Context(), entry); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *HTTPServer) handleListWaitlist(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	barberID := q.Get("barberId")
	if barberID == "" {
		s.respondError(w, r, fmt.Errorf("%w: barberId", models.ErrMissingField))
		return
	}
	var date time.Time
	if raw := q.Get("date"); raw != "" {
		var err error
		if date, err = s.parseDate(raw); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	list, err := s.svc.Waitlist.List(r.Context(), barberID, date, q.Get("status"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"waitlist": list})
}

func (s *HTTPServer) handleNotifyWaitlist(w http.ResponseWriter, r *http.Request) {
	entry, err := s.svc.Waitlist.MarkNotified(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *HTTPServer) handleDeleteWaitlist(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Waitlist.Remove(r.Context(), r.PathValue("id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleFailedSync(w http.ResponseWriter, r *http.Request) {
	if s.svc.SyncTasks == nil {
		writeError(w, http.StatusNotImplemented, "sheets sync is not configured")
		return
	}
	tasks, err := s.svc.SyncTasks.GetFailedSyncTasks(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []models.SyncTask{}
	}
	writeJSON(w, http.StatusOK, map[string][]models.SyncTask{"tasks": tasks})
}

// handleExport streams an xlsx workbook of appointments between from and to inclusive.
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}
	q := r.URL.Query()
	from, err := s.parseDate(q.Get("from"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	to, err := s.parseDate(q.Get("to"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if to.Before(from) {
		s.respondError(w, r, fmt.Errorf("%w: export range", models.ErrInvalidWindow))
		return
	}

	name := fmt.Sprintf("appointments_%s_to_%s.xlsx", models.DayKey(from), models.DayKey(to))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := s.svc.Exporter.Write(r.Context(), w, from, to); err != nil {
		s.log.Error().Err(err).Msg("export failed")
	}
}
