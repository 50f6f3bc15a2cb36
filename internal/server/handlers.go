package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nomadsam6/bls2/internal/domain"
)

type apiError struct {
	Detail string `json:"detail"`
}

type statusResponse struct {
	Status             domain.SystemStatus `json:"status"`
	LastCheck          *time.Time          `json:"last_check,omitempty"`
	CheckInterval      int64               `json:"check_interval_seconds"`
	TotalChecks        int64               `json:"total_checks"`
	SlotsFound         int64               `json:"slots_found"`
	SuccessfulBookings int64               `json:"successful_bookings"`
	ErrorCount         int64               `json:"error_count"`
	UptimeMinutes      *int64              `json:"uptime_minutes,omitempty"`
}

type startRequest struct {
	CheckIntervalMinutes int `json:"check_interval_minutes"`
}

type bookRequest struct {
	SlotID         string          `json:"slot_id"`
	ConfirmBooking bool            `json:"confirm_booking"`
	Profile        *domain.Profile `json:"profile,omitempty"`
}

type logsResponse struct {
	Logs       []domain.SystemLog `json:"logs"`
	TotalCount int                `json:"total_count"`
}

type slotsResponse struct {
	Slots      []domain.AppointmentSlot `json:"slots"`
	TotalCount int                      `json:"total_count"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Warn("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, apiError{Detail: detail})
}

// handleRoot returns service identification
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Automated Visa Appointment System",
		"version": "1.0.0",
	})
}

// handleHealth reports service and dependency health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{"status": "ok", "redis": "disabled"}
	if s.redisClient != nil {
		health["redis"] = "ok"
		if err := s.redisClient.Health(r.Context()); err != nil {
			health["redis"] = "unreachable"
		}
	}
	s.writeJSON(w, http.StatusOK, health)
}

// handleSystemStatus returns the run statistics plus process uptime
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Get(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read system status")
		return
	}

	resp := statusResponse{
		Status:             stats.Status,
		LastCheck:          stats.LastCheck,
		CheckInterval:      int64(stats.CheckInterval.Seconds()),
		TotalChecks:        stats.TotalChecks,
		SlotsFound:         stats.SlotsFound,
		SuccessfulBookings: stats.SuccessfulBookings,
		ErrorCount:         stats.ErrorCount,
	}
	if started := s.startTime(); stats.Status == domain.SystemStatusRunning && started != nil {
		uptime := int64(time.Since(*started).Minutes())
		resp.UptimeMinutes = &uptime
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSystemStart configures the interval and launches the monitoring loop
func (s *Server) handleSystemStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CheckIntervalMinutes <= 0 {
		s.writeError(w, http.StatusBadRequest, "check_interval_minutes must be positive")
		return
	}

	interval := time.Duration(req.CheckIntervalMinutes) * time.Minute
	if err := s.stats.SetCheckInterval(r.Context(), interval); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to store check interval")
		return
	}

	if err := s.scheduler.Start(r.Context()); err != nil {
		if err == domain.ErrCycleInProgress {
			s.writeError(w, http.StatusConflict, "system is already running")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to start system")
		return
	}

	now := time.Now().UTC()
	s.setStartedAt(&now)
	s.recorder.Success(r.Context(), "system",
		"monitoring started via API with "+strconv.Itoa(req.CheckIntervalMinutes)+" minute interval")
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "System started successfully",
		"status":  string(domain.SystemStatusRunning),
	})
}

// handleSystemStop terminates the monitoring loop
func (s *Server) handleSystemStop(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Stop(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to stop system")
		return
	}
	s.setStartedAt(nil)
	s.recorder.Info(r.Context(), "system", "monitoring stopped via API")
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "System stopped successfully",
		"status":  string(domain.SystemStatusStopped),
	})
}

// handleSystemPause suspends cycle execution
func (s *Server) handleSystemPause(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Pause(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to pause system")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "System paused",
		"status":  string(domain.SystemStatusPaused),
	})
}

// handleSystemResume reactivates a paused loop
func (s *Server) handleSystemResume(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Resume(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to resume system")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "System resumed",
		"status":  string(domain.SystemStatusRunning),
	})
}

// handleLogs returns paginated system logs, optionally filtered by level
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	level := domain.LogLevel(r.URL.Query().Get("level"))

	logs, total, err := s.logs.List(r.Context(), limit, offset, level)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read logs")
		return
	}
	if logs == nil {
		logs = []domain.SystemLog{}
	}
	s.writeJSON(w, http.StatusOK, logsResponse{Logs: logs, TotalCount: total})
}

// handleAvailableSlots returns paginated available appointment slots
func (s *Server) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	slots, total, err := s.slots.ListAvailable(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read slots")
		return
	}
	if slots == nil {
		slots = []domain.AppointmentSlot{}
	}
	s.writeJSON(w, http.StatusOK, slotsResponse{Slots: slots, TotalCount: total})
}

// handleBookAppointment books a previously discovered slot. Without
// confirm_booking the slot is echoed back for review.
func (s *Server) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SlotID == "" {
		s.writeError(w, http.StatusBadRequest, "slot_id is required")
		return
	}

	if !req.ConfirmBooking {
		slot, err := s.slots.Get(r.Context(), req.SlotID)
		if err != nil {
			s.writeError(w, http.StatusNotFound, "appointment slot not found")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Please confirm booking",
			"slot":    slot,
		})
		return
	}

	profile := s.bookingProfile
	if req.Profile != nil {
		profile = *req.Profile
	}

	slot, err := s.automation.BookSlot(r.Context(), req.SlotID, profile)
	if err != nil {
		switch {
		case err == domain.ErrCycleInProgress:
			s.writeError(w, http.StatusConflict, "a check cycle is in progress, try again shortly")
		case slot != nil:
			if incErr := s.stats.IncrErrorCount(r.Context(), 1); incErr != nil {
				s.logger.WithError(incErr).Warn("failed to record booking error")
			}
			s.metrics.ObserveBooking(false)
			s.writeError(w, http.StatusBadRequest, "failed to book appointment")
		default:
			s.writeError(w, http.StatusNotFound, "appointment slot not found")
		}
		return
	}

	if err := s.stats.IncrSuccessfulBookings(r.Context(), 1); err != nil {
		s.logger.WithError(err).Warn("failed to record successful booking")
	}
	s.metrics.ObserveBooking(true)
	if err := s.notify.BookingConfirmed(r.Context(), slot); err != nil {
		s.logger.WithError(err).Warn("booking notification failed")
	}

	confirmationID := ""
	if slot.BookingDetails != nil {
		confirmationID = slot.BookingDetails.ConfirmationID
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "Appointment booked successfully!",
		"confirmation_id": confirmationID,
	})
}

// handleCheckOnce runs a single check cycle synchronously
func (s *Server) handleCheckOnce(w http.ResponseWriter, r *http.Request) {
	success, slots := s.runner.RunFullCheck(r.Context())
	if slots == nil {
		slots = []domain.AppointmentSlot{}
	}
	result := domain.CycleResult{Success: success, Slots: slots}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     result.Success,
		"slots_found": len(result.Slots),
		"slots":       result.Slots,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
