package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hunters")
	t.Setenv("GAME_SERVICE_TOKEN", "secret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RANDOM_SEED", "42")
	t.Setenv("R2_BUCKET_NAME", "archives")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/hunters", cfg.DatabaseURL)
	assert.Equal(t, "5200", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(42), cfg.RandomSeed)
	assert.Equal(t, "archives", cfg.R2.Bucket)
	assert.False(t, cfg.R2.Enabled())
	assert.True(t, cfg.DailyResetEnabled)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hunters")
	t.Setenv("GAME_SERVICE_TOKEN", "")

	_, _, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/hunters")
	t.Setenv("GAME_SERVICE_TOKEN", "secret")
	t.Setenv("DAILY_RESET_AT", "25:99")

	_, _, err := Load()
	assert.ErrorContains(t, err, "DAILY_RESET_AT")
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, uint(7), h)
	assert.Equal(t, uint(30), m)
}
