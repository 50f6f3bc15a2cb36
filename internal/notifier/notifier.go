package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nomadsam6/bls2/internal/config"
	"github.com/nomadsam6/bls2/internal/domain"
)

// Notifier delivers out-of-band alerts about discovered slots and completed
// bookings. Delivery failures are reported to the caller but never abort the
// flow that triggered them.
type Notifier interface {
	SlotsFound(ctx context.Context, slots []domain.AppointmentSlot) error
	BookingConfirmed(ctx context.Context, slot *domain.AppointmentSlot) error
	SystemError(ctx context.Context, message string) error
}

// Noop is the notifier used when notifications are disabled.
type Noop struct{}

func (Noop) SlotsFound(ctx context.Context, slots []domain.AppointmentSlot) error { return nil }
func (Noop) BookingConfirmed(ctx context.Context, slot *domain.AppointmentSlot) error {
	return nil
}
func (Noop) SystemError(ctx context.Context, message string) error { return nil }

// EmailJS sends notifications through the EmailJS REST API.
type EmailJS struct {
	cfg    config.NotificationConfig
	client *http.Client
}

// NewEmailJS creates an EmailJS-backed notifier
func NewEmailJS(cfg config.NotificationConfig) *EmailJS {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EmailJS{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// New returns the configured notifier implementation
func New(cfg config.NotificationConfig) Notifier {
	if !cfg.Enabled {
		return Noop{}
	}
	return NewEmailJS(cfg)
}

type emailJSRequest struct {
	ServiceID      string                 `json:"service_id"`
	TemplateID     string                 `json:"template_id"`
	UserID         string                 `json:"user_id"`
	TemplateParams map[string]interface{} `json:"template_params"`
}

// SlotsFound sends an availability alert
func (e *EmailJS) SlotsFound(ctx context.Context, slots []domain.AppointmentSlot) error {
	if len(slots) == 0 {
		return nil
	}
	first := slots[0]
	return e.send(ctx, map[string]interface{}{
		"to_email":      e.cfg.ToEmail,
		"subject":       fmt.Sprintf("%d appointment slot(s) available", len(slots)),
		"slots_count":   len(slots),
		"visa_type":     first.VisaType,
		"visa_category": first.VisaCategory,
		"location":      first.Location,
		"found_at":      first.FoundAt.Format(time.RFC3339),
	})
}

// BookingConfirmed sends a booking confirmation alert
func (e *EmailJS) BookingConfirmed(ctx context.Context, slot *domain.AppointmentSlot) error {
	params := map[string]interface{}{
		"to_email":  e.cfg.ToEmail,
		"subject":   "Appointment booked",
		"slot_id":   slot.ID,
		"visa_type": slot.VisaType,
		"location":  slot.Location,
	}
	if slot.BookingDetails != nil {
		params["confirmation_id"] = slot.BookingDetails.ConfirmationID
		params["booked_at"] = slot.BookingDetails.BookedAt.Format(time.RFC3339)
	}
	return e.send(ctx, params)
}

// SystemError sends a terminal-failure alert
func (e *EmailJS) SystemError(ctx context.Context, message string) error {
	return e.send(ctx, map[string]interface{}{
		"to_email": e.cfg.ToEmail,
		"subject":  "Monitoring stopped on error",
		"message":  message,
	})
}

func (e *EmailJS) send(ctx context.Context, params map[string]interface{}) error {
	body, err := json.Marshal(emailJSRequest{
		ServiceID:      e.cfg.ServiceID,
		TemplateID:     e.cfg.TemplateID,
		UserID:         e.cfg.PublicKey,
		TemplateParams: params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification delivery failed with status %d", resp.StatusCode)
	}
	return nil
}
