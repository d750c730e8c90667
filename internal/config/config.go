package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Endpoints    EndpointsConfig
	Verification VerificationConfig
	OCR          OCRConfig
	Rasterizer   RasterizerConfig
	Preview      PreviewConfig
	S3           S3Config
	Upload       UploadConfig
	Submission   SubmissionConfig
	Session      SessionConfig
	Log          LogConfig
	CORS         CORSConfig
	Email        EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// EndpointsConfig holds the permit office endpoints the wizard talks to.
type EndpointsConfig struct {
	RenewalSubmit   string `mapstructure:"renewal_submit"`
	SpecialSubmit   string `mapstructure:"special_submit"`
	ClearanceVerify string `mapstructure:"clearance_verify"`
	TaxVerify       string `mapstructure:"tax_verify"`
	ApplicantLookup string `mapstructure:"applicant_lookup"`
	TrackingURL     string `mapstructure:"tracking_url"`
}

// SubmitURL returns the submission endpoint for a form type.
func (e *EndpointsConfig) SubmitURL(formType string) string {
	switch formType {
	case "renewal":
		return e.RenewalSubmit
	case "special":
		return e.SpecialSubmit
	default:
		return ""
	}
}

// VerificationConfig holds settings for the remote status checks.
type VerificationConfig struct {
	TimeoutSecs int `mapstructure:"timeout_secs"`
	// Strict turns "file or ID" slots into verified-only slots.
	Strict bool `mapstructure:"strict"`
}

// OCRProviderConfig holds settings for a single OCR provider.
type OCRProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	Endpoint     string `mapstructure:"endpoint"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// OCRConfig holds text-extraction settings with primary/secondary provider support.
type OCRConfig struct {
	Primary   OCRProviderConfig `mapstructure:"primary"`
	Secondary OCRProviderConfig `mapstructure:"secondary"`
	MaxPages  int               `mapstructure:"max_pages"`
	Scale     int               `mapstructure:"scale"`
	// Concurrency bounds the extractions running at once across all sessions.
	Concurrency int `mapstructure:"concurrency"`
	TimeoutSecs int `mapstructure:"timeout_secs"`
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (o *OCRConfig) SecondaryConfig() *OCRProviderConfig {
	if o.Secondary.Provider != "" {
		return &o.Secondary
	}
	return nil
}

// RasterizerConfig holds PDF rasterization settings.
type RasterizerConfig struct {
	Binary string `mapstructure:"binary"`
}

// PreviewConfig selects where document previews are staged.
type PreviewConfig struct {
	Provider string `mapstructure:"provider"` // memory | s3
	// BaseURL roots the URLs of the in-memory store, served by the /previews route.
	BaseURL string `mapstructure:"base_url"`
}

// S3Config holds AWS S3 settings used for preview staging.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// UploadConfig holds limits for files attached to a wizard session.
type UploadConfig struct {
	MaxFileSizeMB int64 `mapstructure:"max_file_size_mb"`
}

// SubmissionConfig holds final-submit settings.
type SubmissionConfig struct {
	TimeoutSecs   int           `mapstructure:"timeout_secs"`
	RedirectDelay time.Duration `mapstructure:"redirect_delay"`
}

// SessionConfig holds wizard session lifetime settings.
type SessionConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// EmailConfig holds acknowledgment email settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	PortalURL   string `mapstructure:"portal_url"`
}

// Load reads configuration from environment variables with the PERMITFLOW_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PERMITFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")

	// Endpoint defaults (local permit office backend)
	v.SetDefault("endpoints.renewal_submit", "http://localhost/backend/business_permit/renewal_permit.php")
	v.SetDefault("endpoints.special_submit", "http://localhost/backend/business_permit/special_permit.php")
	v.SetDefault("endpoints.clearance_verify", "http://localhost/backend/barangay_permit/admin_fetch.php")
	v.SetDefault("endpoints.tax_verify", "http://localhost/backend/business_permit/check_tax_paid.php")
	v.SetDefault("endpoints.applicant_lookup", "http://localhost/backend/business_permit/fetch_applicant.php")
	v.SetDefault("endpoints.tracking_url", "/user/permittracker")

	v.SetDefault("verification.timeout_secs", 15)
	v.SetDefault("verification.strict", false)

	// OCR defaults
	v.SetDefault("ocr.primary.provider", "inference")
	v.SetDefault("ocr.primary.api_key", "")
	v.SetDefault("ocr.primary.default_model", "")
	v.SetDefault("ocr.primary.endpoint", "")
	v.SetDefault("ocr.primary.timeout_secs", 120)
	v.SetDefault("ocr.secondary.provider", "")
	v.SetDefault("ocr.secondary.api_key", "")
	v.SetDefault("ocr.secondary.default_model", "")
	v.SetDefault("ocr.secondary.endpoint", "")
	v.SetDefault("ocr.secondary.timeout_secs", 120)
	v.SetDefault("ocr.max_pages", 3)
	v.SetDefault("ocr.scale", 2)
	v.SetDefault("ocr.concurrency", 2)
	v.SetDefault("ocr.timeout_secs", 300)

	v.SetDefault("rasterizer.binary", "pdftoppm")

	v.SetDefault("preview.provider", "memory")
	v.SetDefault("preview.base_url", "/previews")

	// S3 defaults
	v.SetDefault("s3.region", "ap-southeast-1")
	v.SetDefault("s3.bucket", "permitflow-previews")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 900)

	v.SetDefault("upload.max_file_size_mb", 10)

	v.SetDefault("submission.timeout_secs", 60)
	v.SetDefault("submission.redirect_delay", "3s")

	v.SetDefault("session.idle_ttl", "2h")
	v.SetDefault("session.sweep_interval", "5m")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:5173,http://127.0.0.1:5173,http://localhost:3000")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "ap-southeast-1")
	v.SetDefault("email.from_address", "noreply@bplo.local")
	v.SetDefault("email.from_name", "Business Permits and Licensing Office")
	v.SetDefault("email.portal_url", "http://localhost:5173")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                 "PERMITFLOW_SERVER_PORT",
		"server.read_timeout":         "PERMITFLOW_SERVER_READ_TIMEOUT",
		"server.write_timeout":        "PERMITFLOW_SERVER_WRITE_TIMEOUT",
		"server.environment":          "PERMITFLOW_SERVER_ENVIRONMENT",
		"endpoints.renewal_submit":    "PERMITFLOW_ENDPOINTS_RENEWAL_SUBMIT",
		"endpoints.special_submit":    "PERMITFLOW_ENDPOINTS_SPECIAL_SUBMIT",
		"endpoints.clearance_verify":  "PERMITFLOW_ENDPOINTS_CLEARANCE_VERIFY",
		"endpoints.tax_verify":        "PERMITFLOW_ENDPOINTS_TAX_VERIFY",
		"endpoints.applicant_lookup":  "PERMITFLOW_ENDPOINTS_APPLICANT_LOOKUP",
		"endpoints.tracking_url":      "PERMITFLOW_ENDPOINTS_TRACKING_URL",
		"verification.timeout_secs":   "PERMITFLOW_VERIFICATION_TIMEOUT_SECS",
		"verification.strict":         "PERMITFLOW_VERIFICATION_STRICT",
		"ocr.primary.provider":        "PERMITFLOW_OCR_PRIMARY_PROVIDER",
		"ocr.primary.api_key":         "PERMITFLOW_OCR_PRIMARY_API_KEY",
		"ocr.primary.default_model":   "PERMITFLOW_OCR_PRIMARY_DEFAULT_MODEL",
		"ocr.primary.endpoint":        "PERMITFLOW_OCR_PRIMARY_ENDPOINT",
		"ocr.primary.timeout_secs":    "PERMITFLOW_OCR_PRIMARY_TIMEOUT_SECS",
		"ocr.secondary.provider":      "PERMITFLOW_OCR_SECONDARY_PROVIDER",
		"ocr.secondary.api_key":       "PERMITFLOW_OCR_SECONDARY_API_KEY",
		"ocr.secondary.default_model": "PERMITFLOW_OCR_SECONDARY_DEFAULT_MODEL",
		"ocr.secondary.endpoint":      "PERMITFLOW_OCR_SECONDARY_ENDPOINT",
		"ocr.secondary.timeout_secs":  "PERMITFLOW_OCR_SECONDARY_TIMEOUT_SECS",
		"ocr.max_pages":               "PERMITFLOW_OCR_MAX_PAGES",
		"ocr.scale":                   "PERMITFLOW_OCR_SCALE",
		"ocr.concurrency":             "PERMITFLOW_OCR_CONCURRENCY",
		"ocr.timeout_secs":            "PERMITFLOW_OCR_TIMEOUT_SECS",
		"rasterizer.binary":           "PERMITFLOW_RASTERIZER_BINARY",
		"preview.provider":            "PERMITFLOW_PREVIEW_PROVIDER",
		"preview.base_url":            "PERMITFLOW_PREVIEW_BASE_URL",
		"s3.region":                   "PERMITFLOW_S3_REGION",
		"s3.bucket":                   "PERMITFLOW_S3_BUCKET",
		"s3.endpoint":                 "PERMITFLOW_S3_ENDPOINT",
		"s3.access_key":               "PERMITFLOW_S3_ACCESS_KEY",
		"s3.secret_key":               "PERMITFLOW_S3_SECRET_KEY",
		"s3.presign_expiry":           "PERMITFLOW_S3_PRESIGN_EXPIRY",
		"upload.max_file_size_mb":     "PERMITFLOW_UPLOAD_MAX_FILE_SIZE_MB",
		"submission.timeout_secs":     "PERMITFLOW_SUBMISSION_TIMEOUT_SECS",
		"submission.redirect_delay":   "PERMITFLOW_SUBMISSION_REDIRECT_DELAY",
		"session.idle_ttl":            "PERMITFLOW_SESSION_IDLE_TTL",
		"session.sweep_interval":      "PERMITFLOW_SESSION_SWEEP_INTERVAL",
		"log.level":                   "PERMITFLOW_LOG_LEVEL",
		"log.format":                  "PERMITFLOW_LOG_FORMAT",
		"cors.allowed_origins":        "PERMITFLOW_CORS_ALLOWED_ORIGINS",
		"email.provider":              "PERMITFLOW_EMAIL_PROVIDER",
		"email.region":                "PERMITFLOW_EMAIL_REGION",
		"email.from_address":          "PERMITFLOW_EMAIL_FROM_ADDRESS",
		"email.from_name":             "PERMITFLOW_EMAIL_FROM_NAME",
		"email.portal_url":            "PERMITFLOW_EMAIL_PORTAL_URL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Hosting platforms set PORT. Use it if PERMITFLOW_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("PERMITFLOW_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Endpoints = EndpointsConfig{
		RenewalSubmit:   v.GetString("endpoints.renewal_submit"),
		SpecialSubmit:   v.GetString("endpoints.special_submit"),
		ClearanceVerify: v.GetString("endpoints.clearance_verify"),
		TaxVerify:       v.GetString("endpoints.tax_verify"),
		ApplicantLookup: v.GetString("endpoints.applicant_lookup"),
		TrackingURL:     v.GetString("endpoints.tracking_url"),
	}
	cfg.Verification = VerificationConfig{
		TimeoutSecs: v.GetInt("verification.timeout_secs"),
		Strict:      v.GetBool("verification.strict"),
	}
	cfg.OCR = OCRConfig{
		Primary: OCRProviderConfig{
			Provider:     v.GetString("ocr.primary.provider"),
			APIKey:       v.GetString("ocr.primary.api_key"),
			DefaultModel: v.GetString("ocr.primary.default_model"),
			Endpoint:     v.GetString("ocr.primary.endpoint"),
			TimeoutSecs:  v.GetInt("ocr.primary.timeout_secs"),
		},
		Secondary: OCRProviderConfig{
			Provider:     v.GetString("ocr.secondary.provider"),
			APIKey:       v.GetString("ocr.secondary.api_key"),
			DefaultModel: v.GetString("ocr.secondary.default_model"),
			Endpoint:     v.GetString("ocr.secondary.endpoint"),
			TimeoutSecs:  v.GetInt("ocr.secondary.timeout_secs"),
		},
		MaxPages:    v.GetInt("ocr.max_pages"),
		Scale:       v.GetInt("ocr.scale"),
		Concurrency: v.GetInt("ocr.concurrency"),
		TimeoutSecs: v.GetInt("ocr.timeout_secs"),
	}
	cfg.Rasterizer = RasterizerConfig{
		Binary: v.GetString("rasterizer.binary"),
	}
	cfg.Preview = PreviewConfig{
		Provider: v.GetString("preview.provider"),
		BaseURL:  v.GetString("preview.base_url"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeMB: v.GetInt64("upload.max_file_size_mb"),
	}
	cfg.Submission = SubmissionConfig{
		TimeoutSecs:   v.GetInt("submission.timeout_secs"),
		RedirectDelay: v.GetDuration("submission.redirect_delay"),
	}
	cfg.Session = SessionConfig{
		IdleTTL:       v.GetDuration("session.idle_ttl"),
		SweepInterval: v.GetDuration("session.sweep_interval"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		PortalURL:   v.GetString("email.portal_url"),
	}

	return cfg, nil
}
