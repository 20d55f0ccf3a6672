// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// DatabaseConfig holds the MySQL connection settings.
type DatabaseConfig struct {
	User string // database username
	Pass string // database password (optional)
	Host string // database host address
	Port string // database port number
	Name string // database name
}

// Config holds all runtime configuration values for the HTTP server.  Each
// field corresponds to an environment variable.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DB        DatabaseConfig
	JWTSecret string // secret used to verify and sign JWTs
	LogLevel  string // logrus level name, "info" when unset
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),  // environment (dev/test/prod)
		Port:      must("APP_PORT"), // port to bind the HTTP server
		DB:        LoadDatabase(),
		JWTSecret: must("JWT_SECRET"), // secret used for signing JWTs
		LogLevel:  envStr("LOG_LEVEL", "info"),
	}
}

// LoadDatabase reads only the database settings.  The migrate command uses
// it so that it does not require the HTTP variables.
func LoadDatabase() DatabaseConfig {
	return DatabaseConfig{
		User: must("DB_USER"),
		Pass: os.Getenv("DB_PASS"), // empty allowed
		Host: must("DB_HOST"),
		Port: must("DB_PORT"),
		Name: must("DB_NAME"),
	}
}

// NewLogger builds the process logger.  Unknown levels fall back to info.
// Production environments log JSON, everything else logs text.
func NewLogger(level, env string) *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}

// JWTSecret returns the signing secret alone, for the token command.
func JWTSecret() string { return must("JWT_SECRET") }
