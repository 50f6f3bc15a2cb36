package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nomadsam6/bls2/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Redis         RedisConfig        `yaml:"redis"`
	Auth          AuthConfig         `yaml:"auth"`
	Site          SiteConfig         `yaml:"site"`
	Solver        SolverConfig       `yaml:"solver"`
	Monitor       MonitorConfig      `yaml:"monitor"`
	Booking       BookingConfig      `yaml:"booking"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port              int           `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	RateLimitBurst    int           `yaml:"rate_limit_burst"`
}

// RedisConfig contains Redis-related configuration
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuthConfig contains the target-site credentials
type AuthConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// SiteConfig describes the target site adapter: the URL set, the stage
// markers the state machines inspect, and the empirically maintained
// obfuscated-form probing data
type SiteConfig struct {
	LoginURL              string `yaml:"login_url"`
	LoginCaptchaURL       string `yaml:"login_captcha_url"`
	AppointmentCaptchaURL string `yaml:"appointment_captcha_url"`
	VisaTypeURL           string `yaml:"visa_type_url"`
	NewAppointmentURL     string `yaml:"new_appointment_url"`

	CaptchaStageMarker     string `yaml:"captcha_stage_marker"`
	LoginStageMarker       string `yaml:"login_stage_marker"`
	AppointmentStageMarker string `yaml:"appointment_stage_marker"`
	VisaStageMarker        string `yaml:"visa_stage_marker"`
	BookingStageMarker     string `yaml:"booking_stage_marker"`

	LoginSubmitSelector   string `yaml:"login_submit_selector"`
	PasswordSelector      string `yaml:"password_selector"`
	FormSubmitSelector    string `yaml:"form_submit_selector"`
	CaptchaImageSelector  string `yaml:"captcha_image_selector"`
	CaptchaAnswerSelector string `yaml:"captcha_answer_selector"`
	VisaTypeSelector      string `yaml:"visa_type_selector"`
	SlotSelector          string `yaml:"slot_selector"`
	AvailabilityMarker    string `yaml:"availability_marker"`

	FieldCandidates []string      `yaml:"field_candidates"`
	RevealTriggers  []string      `yaml:"reveal_triggers"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	Defaults        SlotDefaults  `yaml:"defaults"`
}

// SlotDefaults are the slot metadata values used when the results page does
// not expose them in a scrapeable form
type SlotDefaults struct {
	VisaType     string `yaml:"visa_type"`
	VisaCategory string `yaml:"visa_category"`
	Location     string `yaml:"location"`
}

// SolverConfig contains the external captcha solver endpoint settings
type SolverConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// MonitorConfig contains scheduler settings
type MonitorConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
	ErrorBackoff  time.Duration `yaml:"error_backoff"`
	Headless      bool          `yaml:"headless"`
}

// BookingConfig contains the booking profile and visa preferences
type BookingConfig struct {
	Profile  domain.Profile `yaml:"profile"`
	VisaType string         `yaml:"visa_type"`
}

// NotificationConfig contains the notification boundary settings
type NotificationConfig struct {
	Enabled    bool          `yaml:"enabled"`
	APIURL     string        `yaml:"api_url"`
	ServiceID  string        `yaml:"service_id"`
	TemplateID string        `yaml:"template_id"`
	PublicKey  string        `yaml:"public_key"`
	ToEmail    string        `yaml:"to_email"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := defaultConfig()

	// Load from YAML file if it exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// defaultConfig returns the built-in defaults, including the empirically
// maintained candidate/trigger lists for the reference deployment
func defaultConfig() *Config {
	const baseURL = "https://algeria.blsspainglobal.com/DZA"

	return &Config{
		Server: ServerConfig{
			Port:              8001,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RequestsPerMinute: 120,
			RateLimitBurst:    30,
		},
		Redis: RedisConfig{
			URL:          "redis://localhost:6379/0",
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Site: SiteConfig{
			LoginURL:               baseURL + "/account/login",
			LoginCaptchaURL:        baseURL + "/newcaptcha/logincaptcha",
			AppointmentCaptchaURL:  baseURL + "/Appointment/AppointmentCaptcha",
			VisaTypeURL:            baseURL + "/Appointment/VisaType",
			NewAppointmentURL:      baseURL + "/Appointment/NewAppointment",
			CaptchaStageMarker:     "logincaptcha",
			LoginStageMarker:       "login",
			AppointmentStageMarker: "AppointmentCaptcha",
			VisaStageMarker:        "VisaType",
			BookingStageMarker:     "NewAppointment",
			LoginSubmitSelector:    "#btnVerify",
			PasswordSelector:       `input[type="password"]`,
			FormSubmitSelector:     `input[type="submit"], button[type="submit"]`,
			CaptchaImageSelector:   `img[src*="captcha"], img[alt*="captcha"]`,
			CaptchaAnswerSelector:  `input[name*="captcha"], input[id*="captcha"]`,
			VisaTypeSelector:       `select[name*="visa"], input[name*="visa"]`,
			SlotSelector:           ".appointment-slot, .slot-item, tr",
			AvailabilityMarker:     "available",
			FieldCandidates: []string{
				"olmeb", "oaxQ", "vbTReno", "ayHSo", "cHRS",
				"QwQHcey", "vnHwlI", "ITaIFy", "mSFlawd", "STPcxF",
			},
			RevealTriggers: []string{
				"eIVmSp", "aHUQP", "xxvn", "nGnllR", "ymHxlHb", "mEVEpw",
				"bpVol", "VSdTo", "wvmVFII", "wmvm", "UUyIF", "ppdyExo",
				"HvTwew", "IxIVldp", "caQHw", "lUxndUl", "eyTTvVn", "dHHol",
				"RylQy", "epIV", "cawE", "GRdF", "mTnIcFI", "wnvFwbS", "UnnG",
			},
			SettleDelay: 2 * time.Second,
			Defaults: SlotDefaults{
				VisaType:     "Spain Visa",
				VisaCategory: "Tourism",
				Location:     "Algeria",
			},
		},
		Solver: SolverConfig{
			URL:     "http://localhost:8001/api/ocr-match",
			Timeout: 30 * time.Second,
		},
		Monitor: MonitorConfig{
			CheckInterval: 2 * time.Minute,
			ErrorBackoff:  30 * time.Second,
			Headless:      true,
		},
		Booking: BookingConfig{
			VisaType: "tourism",
		},
		Notifications: NotificationConfig{
			APIURL:  "https://api.emailjs.com/api/v1.0/email/send",
			Timeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// loadFromFile loads configuration from YAML file
func loadFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Redis.URL = redisURL
	}

	if email := os.Getenv("BLS_EMAIL"); email != "" {
		config.Auth.Email = email
	}
	if password := os.Getenv("BLS_PASSWORD"); password != "" {
		config.Auth.Password = password
	}

	if solverURL := os.Getenv("OCR_API_URL"); solverURL != "" {
		config.Solver.URL = solverURL
	}

	if serviceID := os.Getenv("EMAILJS_SERVICE_ID"); serviceID != "" {
		config.Notifications.ServiceID = serviceID
	}
	if templateID := os.Getenv("EMAILJS_TEMPLATE_ID"); templateID != "" {
		config.Notifications.TemplateID = templateID
	}
	if publicKey := os.Getenv("EMAILJS_PUBLIC_KEY"); publicKey != "" {
		config.Notifications.PublicKey = publicKey
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if config.Site.LoginURL == "" || config.Site.AppointmentCaptchaURL == "" {
		return fmt.Errorf("site login and appointment URLs are required")
	}
	if config.Site.CaptchaStageMarker == "" || config.Site.LoginStageMarker == "" {
		return fmt.Errorf("site stage markers are required")
	}
	if config.Site.LoginSubmitSelector == "" || config.Site.PasswordSelector == "" ||
		config.Site.FormSubmitSelector == "" {
		return fmt.Errorf("site form selectors are required")
	}
	if config.Site.CaptchaImageSelector == "" || config.Site.CaptchaAnswerSelector == "" {
		return fmt.Errorf("site captcha selectors are required")
	}
	if config.Site.SlotSelector == "" || config.Site.AvailabilityMarker == "" {
		return fmt.Errorf("site slot selector and availability marker are required")
	}
	if len(config.Site.FieldCandidates) == 0 {
		return fmt.Errorf("at least one field candidate is required")
	}

	if config.Solver.URL == "" {
		return fmt.Errorf("solver URL is required")
	}

	if config.Monitor.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive: %v", config.Monitor.CheckInterval)
	}
	if config.Monitor.ErrorBackoff <= 0 {
		return fmt.Errorf("error backoff must be positive: %v", config.Monitor.ErrorBackoff)
	}
	if config.Monitor.ErrorBackoff >= config.Monitor.CheckInterval {
		return fmt.Errorf("error backoff must be shorter than the check interval")
	}

	return nil
}
