package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "usd", cfg.Payments.Currency)
	assert.Equal(t, 35*time.Minute, cfg.Payments.SeatHoldTTL)
	assert.Equal(t, 10*time.Second, cfg.Payments.ProviderTimeout)
	assert.InDelta(t, 0.70, cfg.Classifier.DocumentThreshold, 1e-9)
	assert.False(t, cfg.Enrollment.EnforceStudentSchedule)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PAYMENT_CURRENCY", "EUR")
	t.Setenv("SEAT_HOLD_TTL", "45m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ENFORCE_STUDENT_SCHEDULE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "eur", cfg.Payments.Currency)
	assert.Equal(t, 45*time.Minute, cfg.Payments.SeatHoldTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Enrollment.EnforceStudentSchedule)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
