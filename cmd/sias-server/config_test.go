package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/sias/access"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAuditKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5, cfg.LockoutThreshold)
	assert.Equal(t, 30*time.Minute, cfg.LockoutDuration)
	assert.False(t, cfg.CaptchaAcceptAll)

	_, err = cfg.engineConfig()
	assert.Error(t, err, "secrets are required")
}

func TestLoadConfigFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SIAS_PORT", "9090")
	t.Setenv("SIAS_PRODUCTION", "true")
	t.Setenv("SIAS_PENDING_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SIAS_AUDIT_KEY", testAuditKey)
	t.Setenv("SIAS_SESSION_TTL", "12h")
	t.Setenv("SIAS_GRADE_EDIT_RULE", "business_hours")
	t.Setenv("SIAS_TIMEZONE", "UTC")
	t.Setenv("SIAS_DB_DRIVER", "pgx")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "pgx", cfg.storeConfig().Driver)

	engineCfg, err := cfg.engineConfig()
	require.NoError(t, err)
	assert.True(t, engineCfg.Security.ProductionMode)
	assert.Equal(t, 12*time.Hour, engineCfg.Session.TTL)
	assert.Equal(t, access.RuleBusinessHours, engineCfg.Access.GradeEditRule)
	assert.Equal(t, time.UTC, engineCfg.Access.Location)
	assert.Equal(t, testAuditKey, engineCfg.Audit.Key)
}

func TestEngineConfigRejectsBadValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SIAS_PENDING_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SIAS_AUDIT_KEY", testAuditKey)

	for key, value := range map[string]string{
		"SIAS_TIMEZONE":        "Mars/Olympus",
		"SIAS_GRADE_EDIT_RULE": "full_moon",
		"SIAS_AUDIT_KEY":       "short",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			cfg, err := loadConfig(viper.New())
			require.NoError(t, err)
			_, err = cfg.engineConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	cfg := &serverConfig{LogLevel: "debug"}
	logger, err := newLogger(cfg)
	require.NoError(t, err)

	h := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	_, err = newLogger(&serverConfig{LogLevel: "loud"})
	assert.Error(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
