package domain

import (
	"time"

	"github.com/google/uuid"
)

// SystemStatus represents the lifecycle state of the monitoring loop.
type SystemStatus string

const (
	SystemStatusStopped SystemStatus = "stopped"
	SystemStatusRunning SystemStatus = "running"
	SystemStatusPaused  SystemStatus = "paused"
	SystemStatusError   SystemStatus = "error"
)

// LogLevel represents the severity of a system log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

// AppointmentStatus represents the booking state of a discovered slot.
type AppointmentStatus string

const (
	AppointmentStatusAvailable AppointmentStatus = "available"
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusFailed    AppointmentStatus = "failed"
	AppointmentStatusPending   AppointmentStatus = "pending"
)

// SystemLog is one append-only event-sink entry.
type SystemLog struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Step      string                 `json:"step,omitempty"`
}

// NewSystemLog creates a log entry with a fresh ID and timestamp.
func NewSystemLog(level LogLevel, message, step string, details map[string]interface{}) *SystemLog {
	return &SystemLog{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Details:   details,
		Step:      step,
	}
}

// BookingDetails is the confirmation evidence attached to a booked slot.
// Populated exactly once, on the first successful booking attempt.
type BookingDetails struct {
	ConfirmationID string    `json:"confirmation_id"`
	BookedAt       time.Time `json:"booked_at"`
	Profile        *Profile  `json:"profile,omitempty"`
}

// AppointmentSlot is a discovered appointment opportunity. Created by the
// scanner; its status is mutated to booked/failed only by the booking
// executor.
type AppointmentSlot struct {
	ID              string            `json:"id"`
	FoundAt         time.Time         `json:"found_at"`
	AppointmentDate string            `json:"appointment_date"`
	AppointmentTime string            `json:"appointment_time"`
	VisaType        string            `json:"visa_type"`
	VisaCategory    string            `json:"visa_category"`
	Location        string            `json:"location"`
	AvailableSlots  int               `json:"available_slots"`
	Status          AppointmentStatus `json:"status"`
	BookingDetails  *BookingDetails   `json:"booking_details,omitempty"`
}

// NewAppointmentSlot creates an available slot with a fresh ID.
func NewAppointmentSlot(date, timeOfDay, visaType, visaCategory, location string, available int) *AppointmentSlot {
	return &AppointmentSlot{
		ID:              uuid.New().String(),
		FoundAt:         time.Now().UTC(),
		AppointmentDate: date,
		AppointmentTime: timeOfDay,
		VisaType:        visaType,
		VisaCategory:    visaCategory,
		Location:        location,
		AvailableSlots:  available,
		Status:          AppointmentStatusAvailable,
	}
}

// CycleResult is the outcome of one complete check cycle. A failure before
// scan completion always carries an empty slot sequence.
type CycleResult struct {
	Success bool              `json:"success"`
	Slots   []AppointmentSlot `json:"slots"`
}

// RunStatistics is the singleton persisted record shared between the
// scheduler and external status readers. Counters only move forward except
// on an explicit reset.
type RunStatistics struct {
	Status             SystemStatus  `json:"status"`
	CheckInterval      time.Duration `json:"check_interval"`
	LastCheck          *time.Time    `json:"last_check,omitempty"`
	TotalChecks        int64         `json:"total_checks"`
	SlotsFound         int64         `json:"slots_found"`
	SuccessfulBookings int64         `json:"successful_bookings"`
	ErrorCount         int64         `json:"error_count"`
}

// Profile holds the user data mapped onto the booking form. Any field may be
// empty; only fields present both here and on the page are filled.
type Profile struct {
	FirstName string `json:"first_name,omitempty" yaml:"first_name"`
	LastName  string `json:"last_name,omitempty" yaml:"last_name"`
	Passport  string `json:"passport,omitempty" yaml:"passport"`
	Phone     string `json:"phone,omitempty" yaml:"phone"`
	Email     string `json:"email,omitempty" yaml:"email"`
}
