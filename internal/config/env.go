package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Server holds process settings for tb serve, read from the environment.
type Server struct {
	Addr               string `env:"TOWNBOX_ADDR" envDefault:"127.0.0.1:8080"`
	BasePath           string `env:"TOWNBOX_BASE_PATH" envDefault:"/v0"`
	Workspace          string `env:"TOWNBOX_WORKSPACE" envDefault:"."`
	JWTSecret          string `env:"TOWNBOX_JWT_SECRET"`
	JWTIssuer          string `env:"TOWNBOX_JWT_ISSUER" envDefault:"townbox"`
	JWTAudience        string `env:"TOWNBOX_JWT_AUDIENCE" envDefault:"townbox"`
	AllowLegacyHeaders bool   `env:"TOWNBOX_ALLOW_LEGACY_HEADERS" envDefault:"false"`
	DevAuth            bool   `env:"TOWNBOX_DEV_AUTH" envDefault:"false"`
	LogLevel           string `env:"TOWNBOX_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer reads Server from the environment.
func LoadServer() (Server, error) {
	var s Server
	if err := ParseEnv(&s); err != nil {
		return Server{}, err
	}
	return s, nil
}

// ParseLogLevel maps debug/info/warn/error onto slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
