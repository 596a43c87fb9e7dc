package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration. Each field maps to one LUNGS_*
// environment variable.
type Config struct {
	Addr               string // HTTP listen address
	PostgresDSN        string // directory database DSN
	IdentityBaseURL    string // identity-provider base URL
	IdentityServiceKey string // elevated service-role key for admin calls
	SiteURL            string // redirect base embedded in invite/recovery links
	RateBurst          int    // per-IP rate limit burst
	RatePerSecond      int    // per-IP rate limit refill
}

// Load reads configuration from the environment. A .env file is honored
// when present so local runs do not need exported variables.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:               getenv("LUNGS_ADDR", ":8080"),
		PostgresDSN:        must("LUNGS_PG_DSN"),
		IdentityBaseURL:    must("LUNGS_IDENTITY_URL"),
		IdentityServiceKey: must("LUNGS_IDENTITY_SERVICE_KEY"),
		SiteURL:            getenv("LUNGS_SITE_URL", "http://localhost:3000"),
		RateBurst:          getenvInt("LUNGS_RATE_BURST", 20),
		RatePerSecond:      getenvInt("LUNGS_RATE_PER_SEC", 10),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, raw)
	}
	return n
}
