package config

import (
	"os"
	"strings"
	"time"

	"github.com/phuslu/log"
)

type Config struct {
	Port         string
	DBPath       string
	YahooBaseURL string
	// Users maps login name to password for the dashboard gate.
	Users map[string]string
	// SharedCacheTTL bounds upstream call volume per ticker.
	SharedCacheTTL time.Duration
}

// defaultUsers mirrors the demo accounts the dashboard ships with.
const defaultUsers = "demo:demo123,premium:premium123"

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9095"
	}
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data/valuation.db"
	}
	baseURL := os.Getenv("YAHOO_BASE_URL")
	if baseURL == "" {
		baseURL = "https://query2.finance.yahoo.com"
	}
	users := os.Getenv("USERS")
	if users == "" {
		users = defaultUsers
	}
	ttl := 6 * time.Hour
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatal().Str("value", v).Msg("invalid CACHE_TTL")
		}
		ttl = d
	}
	return Config{
		Port:           port,
		DBPath:         dbPath,
		YahooBaseURL:   baseURL,
		Users:          parseUsers(users),
		SharedCacheTTL: ttl,
	}
}

// parseUsers reads "name:password,name:password" pairs. Malformed entries
// are skipped rather than fatal so a trailing comma does not break startup.
func parseUsers(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, pass, ok := strings.Cut(pair, ":")
		if !ok || name == "" || pass == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(name))] = pass
	}
	return out
}
