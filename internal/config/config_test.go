package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("USERS", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("YAHOO_BASE_URL", "")

	cfg := Load()
	assert.Equal(t, "9095", cfg.Port)
	assert.Equal(t, "data/valuation.db", cfg.DBPath)
	assert.Equal(t, "https://query2.finance.yahoo.com", cfg.YahooBaseURL)
	assert.Equal(t, 6*time.Hour, cfg.SharedCacheTTL)
	assert.Equal(t, "demo123", cfg.Users["demo"])
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("USERS", "alice:secret")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.SharedCacheTTL)
	assert.Equal(t, map[string]string{"alice": "secret"}, cfg.Users)
}

func TestParseUsers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"single", "demo:demo123", map[string]string{"demo": "demo123"}},
		{"trailing comma", "a:1,b:2,", map[string]string{"a": "1", "b": "2"}},
		{"case folded name", "Premium:p123", map[string]string{"premium": "p123"}},
		{"malformed entry skipped", "a:1,nopassword,b:2", map[string]string{"a": "1", "b": "2"}},
		{"empty", "", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseUsers(tt.in))
		})
	}
}
