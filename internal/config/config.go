// internal/config/config.go
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const defaultDataPath = "shared/libraryData.json"

// Config holds everything the dashboard needs at start-up.
type Config struct {
	DataPath     string
	DatabaseURL  string
	Username     string
	LogLevel     slog.Level
	OTLPEndpoint string
}

// UsePostgres reports whether the catalogue lives in PostgreSQL instead of
// the JSON file.
func (c Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// LoadEnvFiles reads .env and .env.local from the working directory. Values
// already present in the environment are never overridden.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// Load resolves configuration from defaults, the environment and args, in
// increasing order of precedence. It returns pflag.ErrHelp when -h or --help
// is given; usage has then been written to usage.
func Load(args []string, usage io.Writer) (Config, error) {
	var cfg Config
	var level string

	flagSet := pflag.NewFlagSet("libralyze", pflag.ContinueOnError)
	flagSet.SetOutput(usage)
	flagSet.StringVar(&cfg.DataPath, "data", getEnv("LIBRALYZE_DATA", defaultDataPath), "path to the catalogue JSON file")
	flagSet.StringVar(&cfg.DatabaseURL, "dsn", os.Getenv("DATABASE_URL"), "PostgreSQL URL; stores the catalogue and journal in the database instead of --data")
	flagSet.StringVarP(&cfg.Username, "user", "u", defaultUsername(), "name shown on the dashboard and recorded on circulation events")
	flagSet.StringVar(&level, "log-level", getEnv("LOG_LEVEL", "warn"), "log level: debug, info, warn or error")
	flagSet.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OTLP/HTTP endpoint URL for traces; tracing is off when empty")

	if err := flagSet.Parse(args); err != nil {
		return Config{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return Config{}, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	if cfg.DataPath == "" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("either --data or --dsn is required")
	}
	if cfg.Username == "" {
		return Config{}, fmt.Errorf("--user must not be empty")
	}

	return cfg, nil
}

func defaultUsername() string {
	if v := os.Getenv("LIBRALYZE_USER"); v != "" {
		return v
	}
	return getEnv("USER", "guest")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}
