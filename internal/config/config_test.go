package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitflow/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.OCR.MaxPages)
	assert.Equal(t, 2, cfg.OCR.Scale)
	assert.Equal(t, 3*time.Second, cfg.Submission.RedirectDelay)
	assert.Equal(t, "memory", cfg.Preview.Provider)
	assert.Equal(t, "/previews", cfg.Preview.BaseURL)
	assert.False(t, cfg.Verification.Strict)
	assert.NotEmpty(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 2, cfg.OCR.Concurrency)
	assert.Equal(t, 2*time.Hour, cfg.Session.IdleTTL)
	assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PERMITFLOW_VERIFICATION_STRICT", "true")
	t.Setenv("PERMITFLOW_OCR_PRIMARY_PROVIDER", "gemini")
	t.Setenv("PERMITFLOW_SUBMISSION_REDIRECT_DELAY", "5s")
	t.Setenv("PERMITFLOW_CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.Verification.Strict)
	assert.Equal(t, "gemini", cfg.OCR.Primary.Provider)
	assert.Equal(t, 5*time.Second, cfg.Submission.RedirectDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_PortFallback(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
}

func TestOCRConfig_SecondaryConfig(t *testing.T) {
	cfg := config.OCRConfig{Primary: config.OCRProviderConfig{Provider: "inference"}}
	assert.Nil(t, cfg.SecondaryConfig())

	cfg.Secondary = config.OCRProviderConfig{Provider: "gemini", APIKey: "k"}
	secondary := cfg.SecondaryConfig()
	require.NotNil(t, secondary)
	assert.Equal(t, "gemini", secondary.Provider)
}

func TestEndpointsConfig_SubmitURL(t *testing.T) {
	e := config.EndpointsConfig{RenewalSubmit: "r", SpecialSubmit: "s"}
	assert.Equal(t, "r", e.SubmitURL("renewal"))
	assert.Equal(t, "s", e.SubmitURL("special"))
	assert.Empty(t, e.SubmitURL("other"))
}
