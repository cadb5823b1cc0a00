/*
config.go - Server configuration

PURPOSE:
  Collects every runtime setting in one struct. Values are resolved in
  three layers, later layers winning:
    1. Built-in defaults
    2. Environment, including a .env file in the working directory
    3. Command-line flags

KEYS:
  PORT             HTTP port (8080)
  DB_DRIVER        sqlite | mongo (sqlite)
  DB_PATH          SQLite file, ":memory:" for tests (worktime.db)
  MONGO_URI        MongoDB connection string
  MONGO_DATABASE   MongoDB database name (worktime)
  TIMEZONE         IANA zone for civil dates (Asia/Kolkata)
  JWT_SECRET       HS256 signing secret
  TOKEN_TTL        Token lifetime, Go duration (24h)
  PHOTO_DIR        Punch photo directory (uploads)
  POLICY_FILE      Aggregation policy JSON, empty for canonical
  ALLOWED_ORIGINS  Comma separated CORS origins (*)

SEE ALSO:
  - cmd/server/main.go: Consumes Config
  - factory/policy.go: Parses POLICY_FILE
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	DefaultTimezone = "Asia/Kolkata"
)

// Config holds the resolved server settings.
type Config struct {
	Port           int
	DBDriver       string
	DBPath         string
	MongoURI       string
	MongoDatabase  string
	Timezone       string
	JWTSecret      string
	TokenTTL       time.Duration
	PhotoDir       string
	PolicyFile     string
	AllowedOrigins []string

	SeedAdmin         bool
	AdminPassword     string
	LoadDemoScenarios bool
}

// Load reads .env, the environment and then args. envFiles defaults to
// ".env"; a missing file only logs a warning.
func Load(args []string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		log.Printf("[Config] Warning: no env file loaded: %v", err)
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("PORT: %w", err)
	}

	cfg := &Config{}
	origins := getEnv("ALLOWED_ORIGINS", "*")

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", port, "HTTP server port")
	fs.StringVar(&cfg.DBDriver, "driver", getEnv("DB_DRIVER", DriverSQLite), "Storage driver: sqlite or mongo")
	fs.StringVar(&cfg.DBPath, "db", getEnv("DB_PATH", "worktime.db"), "SQLite database path")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", getEnv("MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection string")
	fs.StringVar(&cfg.MongoDatabase, "mongo-db", getEnv("MONGO_DATABASE", "worktime"), "MongoDB database name")
	fs.StringVar(&cfg.Timezone, "tz", getEnv("TIMEZONE", DefaultTimezone), "IANA timezone for civil dates")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", getEnv("JWT_SECRET", ""), "JWT signing secret")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", ttl, "Token lifetime")
	fs.StringVar(&cfg.PhotoDir, "photos", getEnv("PHOTO_DIR", "uploads"), "Punch photo directory")
	fs.StringVar(&cfg.PolicyFile, "policy", getEnv("POLICY_FILE", ""), "Aggregation policy JSON file")
	fs.StringVar(&origins, "origins", origins, "Comma separated CORS origins")
	fs.BoolVar(&cfg.SeedAdmin, "seed-admin", false, "Create or replace the default admin account and exit")
	fs.StringVar(&cfg.AdminPassword, "admin-password", getEnv("ADMIN_PASSWORD", "admin123"), "Password for -seed-admin")
	fs.BoolVar(&cfg.LoadDemoScenarios, "demo", getEnv("DEMO_SCENARIOS", "") == "true", "Expose the demo scenario endpoints")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.AllowedOrigins = splitList(origins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.DBDriver != DriverSQLite && c.DBDriver != DriverMongo {
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
