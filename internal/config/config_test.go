package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Kolkata", cfg.Clinic.Timezone)
	assert.Equal(t, "Dr. Raj Miyani", cfg.Clinic.DoctorName)
	assert.Equal(t, 24, cfg.JWTExpirationHours)
	assert.Equal(t, 5, cfg.OTPExpiryMinutes)
	assert.Equal(t, "09:00", cfg.Clinic.ReminderAt)
	assert.Equal(t, 15, cfg.Clinic.UpcomingDays)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://clinic.example.com ,")
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "Memory")
	t.Setenv("APPOINTMENT_SLOT_MINUTES", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"http://localhost:3000", "https://clinic.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 30, cfg.Clinic.SlotMinutes)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Run("jwt expiry", func(t *testing.T) {
		t.Setenv("JWT_EXPIRATION_HOURS", "a day")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "JWT_EXPIRATION_HOURS")
	})

	t.Run("timezone", func(t *testing.T) {
		t.Setenv("CLINIC_TIMEZONE", "Mars/Olympus_Mons")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "CLINIC_TIMEZONE")
	})
}
