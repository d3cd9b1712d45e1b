package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"barbershop/internal/models"
	"barbershop/internal/schedule"
)

type slotsResponse struct {
	BarberID    string   `json:"barberId"`
	Date        string   `json:"date"`
	SlotMinutes int      `json:"slotMinutes"`
	Slots       []string `json:"slots"`
}

type checkRequest struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Duration int    `json:"duration"`
}

type checkResponse struct {
	Available bool                `json:"available"`
	Reason    schedule.Reason     `json:"reason"`
	Message   string              `json:"message"`
	Conflict  *models.Appointment `json:"conflict,omitempty"`
}

type toggleRequest struct {
	IsAvailable bool `json:"isAvailable"`
}

type primaryTreatmentRequest struct {
	TreatmentID string `json:"treatmentId"`
}

func (s *HTTPServer) handleBarbers(w http.ResponseWriter, r *http.Request) {
	barbers, err := s.svc.Barbers.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"barbers": barbers})
}

func (s *HTTPServer) handleTreatments(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Barbers.Treatments(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"treatments": list})
}

func (s *HTTPServer) handleDay(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	day, err := s.svc.Schedules.ResolveDay(r.Context(), r.PathValue("id"), date)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	barberID := r.PathValue("id")
	date, err := s.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	slots, err := s.svc.Schedules.AvailableSlots(r.Context(), barberID, date)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	minutes, err := s.svc.Schedules.SlotMinutes(r.Context(), barberID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := slotsResponse{
		BarberID:    barberID,
		Date:        models.DayKey(date),
		SlotMinutes: minutes,
		Slots:       make([]string, 0, len(slots)),
	}
	for _, t := range slots {
		resp.Slots = append(resp.Slots, models.ClockOf(t).String())
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCheck answers whether a proposed appointment fits. A missing duration means one slot.
func (s *HTTPServer) handleCheck(w http.ResponseWriter, r *http.Request) {
	barberID := r.PathValue("id")
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	start, err := s.parseStart(req.Date, req.Time)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Duration == 0 {
		if req.Duration, err = s.svc.Schedules.SlotMinutes(r.Context(), barberID); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	decision, err := s.svc.Schedules.CheckSlot(r.Context(), schedule.Candidate{
		BarberID: barberID,
		Start:    start,
		Duration: time.Duration(req.Duration) * time.Minute,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{
		Available: decision.OK(),
		Reason:    decision.Reason,
		Message:   decision.Reason.Message(),
		Conflict:  decision.Conflict,
	})
}

func (s *HTTPServer) handleGetWeekly(w http.ResponseWriter, r *http.Request) {
	week, err := s.svc.Schedules.Weekly(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weekly": week})
}

func (s *HTTPServer) handlePutWeekly(w http.ResponseWriter, r *http.Request) {
	barberID := r.PathValue("id")
	var body struct {
		Weekly []models.WeeklyAvailability `json:"weekly"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.svc.Schedules.SaveWeekly(r.Context(), barberID, body.Weekly); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weekly": body.Weekly})
}

func (s *HTTPServer) handleToggleDay(w http.ResponseWriter, r *http.Request) {
	weekday, err := strconv.Atoi(r.PathValue("weekday"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %q", models.ErrInvalidWeekday, r.PathValue("weekday")))
		return
	}
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	week, err := s.svc.Schedules.ToggleDay(r.Context(), r.PathValue("id"), time.Weekday(weekday), req.IsAvailable)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weekly": week})
}

func (s *HTTPServer) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := s.parseDate(q.Get("from"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	to := from.AddDate(0, 0, 30)
	if raw := q.Get("to"); raw != "" {
		if to, err = s.parseDate(raw); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	list, err := s.svc.Schedules.Overrides(r.Context(), r.PathValue("id"), from, to)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": list})
}

func (s *HTTPServer) handlePutOverride(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r.PathValue("date"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var day models.DaySchedule
	if err := decodeJSON(r, &day); err != nil {
		s.respondError(w, r, err)
		return
	}
	o := &models.DateOverride{BarberID: r.PathValue("id"), Date: date, DaySchedule: day}
	if err := s.svc.Schedules.SaveOverride(r.Context(), o); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *HTTPServer) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r.PathValue("date"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.svc.Schedules.DeleteOverride(r.Context(), r.PathValue("id"), date); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePutWeek stores overrides for the Sunday-based week containing {date}.
func (s *HTTPServer) handlePutWeek(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDate(r.PathValue("date"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var body struct {
		Days []models.DaySchedule `json:"days"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}
	overrides, err := s.svc.Schedules.SaveWeekOverrides(r.Context(), r.PathValue("id"), date, body.Days)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": overrides})
}

func (s *HTTPServer) handlePrimaryTreatment(w http.ResponseWriter, r *http.Request) {
	var req primaryTreatmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	minutes, err := s.svc.Barbers.SetPrimaryTreatment(r.Context(), r.PathValue("id"), req.TreatmentID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slotMinutes": minutes})
}
