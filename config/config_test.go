package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "plugcu_session", cfg.Server.CookieName)
	assert.InDelta(t, 1.0, cfg.Matching.WeightTag+cfg.Matching.WeightBudget+cfg.Matching.WeightDemographic+
		cfg.Matching.WeightAttendance+cfg.Matching.WeightRecency, 1e-9)
	assert.Equal(t, 14*24*time.Hour, cfg.Matching.RecencyHalfLife)
	assert.Equal(t, 0.7, cfg.Matching.StrongThreshold)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, 2*time.Minute, cfg.Connect.RetryMaxElapsed)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MATCH_WEIGHT_TAG", "0.5")
	t.Setenv("MATCH_SCHEDULE_INTERVAL", "15m")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("MATCH_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Matching.WeightTag)
	assert.Equal(t, 15*time.Minute, cfg.Matching.ScheduleInterval)
	assert.True(t, cfg.Server.CookieSecure)
	assert.Equal(t, 4, cfg.Matching.Workers)
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	t.Setenv("MATCH_WORKERS", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DSN())
	c.URL = "postgres://elsewhere/db"
	assert.Equal(t, "postgres://elsewhere/db", c.DSN())
}

func TestAllowedOrigins(t *testing.T) {
	c := ServerConfig{CORSAllowedOrigins: " http://a.test , ,http://b.test"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.AllowedOrigins())
}
