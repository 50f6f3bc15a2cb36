package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 8001 {
		t.Errorf("expected default port 8001, got %d", cfg.Server.Port)
	}
	if cfg.Monitor.CheckInterval != 2*time.Minute {
		t.Errorf("expected default interval, got %v", cfg.Monitor.CheckInterval)
	}
	if cfg.Site.CaptchaStageMarker != "logincaptcha" || cfg.Site.LoginStageMarker != "login" {
		t.Errorf("unexpected stage markers: %+v", cfg.Site)
	}
	if len(cfg.Site.FieldCandidates) == 0 || cfg.Site.FieldCandidates[0] != "olmeb" {
		t.Errorf("unexpected field candidates: %v", cfg.Site.FieldCandidates)
	}
	if len(cfg.Site.RevealTriggers) != 25 {
		t.Errorf("expected 25 reveal triggers, got %d", len(cfg.Site.RevealTriggers))
	}
	if cfg.Site.Defaults.VisaType != "Spain Visa" {
		t.Errorf("unexpected slot defaults: %+v", cfg.Site.Defaults)
	}
	if cfg.Site.LoginSubmitSelector != "#btnVerify" {
		t.Errorf("unexpected login submit selector: %q", cfg.Site.LoginSubmitSelector)
	}
	if cfg.Site.AppointmentStageMarker != "AppointmentCaptcha" || cfg.Site.BookingStageMarker != "NewAppointment" {
		t.Errorf("unexpected page markers: %+v", cfg.Site)
	}
	if cfg.Site.SlotSelector == "" || cfg.Site.AvailabilityMarker != "available" {
		t.Errorf("unexpected slot scan settings: %+v", cfg.Site)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	content := `
server:
  port: 9000
monitor:
  check_interval: 5m
  error_backoff: 45s
auth:
  email: file@example.com
booking:
  profile:
    first_name: Amina
    last_name: B
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("file port not applied: %d", cfg.Server.Port)
	}
	if cfg.Monitor.CheckInterval != 5*time.Minute || cfg.Monitor.ErrorBackoff != 45*time.Second {
		t.Errorf("monitor settings not applied: %+v", cfg.Monitor)
	}
	if cfg.Auth.Email != "file@example.com" {
		t.Errorf("auth email not applied: %s", cfg.Auth.Email)
	}
	if cfg.Booking.Profile.FirstName != "Amina" {
		t.Errorf("booking profile not applied: %+v", cfg.Booking.Profile)
	}
	// Untouched sections keep their defaults.
	if cfg.Solver.URL == "" {
		t.Error("defaults lost when loading from file")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("BLS_EMAIL", "env@example.com")
	t.Setenv("OCR_API_URL", "http://solver.internal/api/ocr-match")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("PORT override not applied: %d", cfg.Server.Port)
	}
	if cfg.Auth.Email != "env@example.com" {
		t.Errorf("BLS_EMAIL override not applied: %s", cfg.Auth.Email)
	}
	if cfg.Solver.URL != "http://solver.internal/api/ocr-match" {
		t.Errorf("OCR_API_URL override not applied: %s", cfg.Solver.URL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("LOG_LEVEL override not applied: %s", cfg.Logging.Level)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "invalid port",
			mutate:  func(cfg *Config) { cfg.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "missing redis URL",
			mutate:  func(cfg *Config) { cfg.Redis.URL = "" },
			wantErr: true,
		},
		{
			name:    "missing stage markers",
			mutate:  func(cfg *Config) { cfg.Site.CaptchaStageMarker = "" },
			wantErr: true,
		},
		{
			name:    "no field candidates",
			mutate:  func(cfg *Config) { cfg.Site.FieldCandidates = nil },
			wantErr: true,
		},
		{
			name:    "missing form submit selector",
			mutate:  func(cfg *Config) { cfg.Site.FormSubmitSelector = "" },
			wantErr: true,
		},
		{
			name:    "missing captcha selectors",
			mutate:  func(cfg *Config) { cfg.Site.CaptchaImageSelector = "" },
			wantErr: true,
		},
		{
			name:    "missing slot selector",
			mutate:  func(cfg *Config) { cfg.Site.SlotSelector = "" },
			wantErr: true,
		},
		{
			name:    "missing solver URL",
			mutate:  func(cfg *Config) { cfg.Solver.URL = "" },
			wantErr: true,
		},
		{
			name:    "non-positive interval",
			mutate:  func(cfg *Config) { cfg.Monitor.CheckInterval = 0 },
			wantErr: true,
		},
		{
			name: "backoff not shorter than interval",
			mutate: func(cfg *Config) {
				cfg.Monitor.CheckInterval = 30 * time.Second
				cfg.Monitor.ErrorBackoff = 30 * time.Second
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
