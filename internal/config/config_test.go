package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, time.Hour, cfg.SessionDuration)
	assert.Equal(t, 90*time.Second, cfg.QRWindow)
	assert.Equal(t, 7, cfg.CleanupMaxAgeDays)
	assert.Equal(t, 10, cfg.DBMaxOpenConns)
	assert.Equal(t, 5, cfg.DBMaxIdleConns)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_DURATION", "45m")
	t.Setenv("QR_WINDOW", "2m")
	t.Setenv("CLEANUP_MAX_AGE_DAYS", "30")
	t.Setenv("MAIL_SKIP", "false")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")

	cfg := Load()
	assert.Equal(t, 45*time.Minute, cfg.SessionDuration)
	assert.Equal(t, 2*time.Minute, cfg.QRWindow)
	assert.Equal(t, 30, cfg.CleanupMaxAgeDays)
	assert.False(t, cfg.MailSkip)
	assert.Equal(t, 25, cfg.DBMaxOpenConns)
}

func TestLoadBadDurationFallsBack(t *testing.T) {
	t.Setenv("QR_WINDOW", "ninety seconds")
	cfg := Load()
	assert.Equal(t, 90*time.Second, cfg.QRWindow)
}

func TestValidateRejectsWindowOutlivingSession(t *testing.T) {
	cfg := Load()
	cfg.SessionDuration = time.Minute
	cfg.QRWindow = time.Minute

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QR_WINDOW")
}

func TestValidateRejectsNonPositiveValues(t *testing.T) {
	cfg := Load()
	cfg.CleanupMaxAgeDays = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.QRWindow = 0
	assert.Error(t, cfg.Validate())
}
