package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DataDir   string `default:"./data"`
	OutputDir string `default:"./output"`

	UnitsCSV        string `default:"Unidades.csv"`
	ReservationsCSV string `default:"separaciones_mensual.csv"`
	ColumnMapPath   string

	// PriceField is "list" for list price or "per_area" for price per area.
	PriceField string `default:"list" validate:"oneof=list per_area"`

	// The two tolerances are separate business thresholds.
	CurveTolerance        float64 `default:"0.03" validate:"gt=0,lt=1"`
	MonotonicityTolerance float64 `default:"0.01" validate:"gt=0,lt=1"`

	CurrencySymbol string `default:"S/"`
	MaxConcurrency int    `default:"4" validate:"gte=1"`
	MaxRetries     int    `default:"3" validate:"gte=1"`

	ForecastURL         string
	ForecastHorizonDays int           `default:"90" validate:"gte=1"`
	ForecastTimeout     time.Duration `default:"30s"`
	ForecastRateLimitMs int           `default:"200"`

	StorePostgres    bool
	PostgresHost     string `default:"localhost" validate:"required_if=StorePostgres true"`
	PostgresPort     string `default:"5432"`
	PostgresUser     string `default:"pricing" validate:"required_if=StorePostgres true"`
	PostgresPassword string
	PostgresDB       string `default:"pricing" validate:"required_if=StorePostgres true"`
	PostgresSSLMode  string `default:"disable"`

	SendEmail    bool
	SMTPHost     string `default:"smtp.gmail.com"`
	SMTPPort     int    `default:"465"`
	SMTPUser     string `validate:"required_if=SendEmail true"`
	SMTPPassword string `validate:"required_if=SendEmail true"`
	MailTo       string `validate:"required_if=SendEmail true"`

	RenderPDF bool
	ChromeBin string

	PushgatewayURL string

	LogLevel  string `default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `default:"console" validate:"oneof=console json"`
}

// Load reads the .env file and returns a populated, validated Config.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: apply defaults: %w", err)
	}

	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.UnitsCSV = getEnv("UNITS_CSV", cfg.UnitsCSV)
	cfg.ReservationsCSV = getEnv("RESERVATIONS_CSV", cfg.ReservationsCSV)
	cfg.ColumnMapPath = getEnv("COLUMN_MAP", cfg.ColumnMapPath)

	cfg.PriceField = strings.ToLower(getEnv("PRICE_FIELD", cfg.PriceField))
	var err error
	if cfg.CurveTolerance, err = requireEnvFloat("CURVE_TOLERANCE", cfg.CurveTolerance); err != nil {
		return nil, err
	}
	if cfg.MonotonicityTolerance, err = requireEnvFloat("MONOTONICITY_TOLERANCE", cfg.MonotonicityTolerance); err != nil {
		return nil, err
	}
	cfg.CurrencySymbol = getEnv("CURRENCY_SYMBOL", cfg.CurrencySymbol)
	cfg.MaxConcurrency = getEnvInt("MAX_CONCURRENCY", cfg.MaxConcurrency)
	cfg.MaxRetries = getEnvInt("MAX_RETRIES", cfg.MaxRetries)

	cfg.ForecastURL = getEnv("FORECAST_URL", cfg.ForecastURL)
	cfg.ForecastHorizonDays = getEnvInt("FORECAST_HORIZON_DAYS", cfg.ForecastHorizonDays)
	cfg.ForecastTimeout = getEnvDuration("FORECAST_TIMEOUT", cfg.ForecastTimeout)
	cfg.ForecastRateLimitMs = getEnvInt("FORECAST_RATE_LIMIT_MS", cfg.ForecastRateLimitMs)

	cfg.StorePostgres = getEnvBool("STORE_POSTGRES", cfg.StorePostgres)
	cfg.PostgresHost = getEnv("POSTGRES_HOST", cfg.PostgresHost)
	cfg.PostgresPort = getEnv("POSTGRES_PORT", cfg.PostgresPort)
	cfg.PostgresUser = getEnv("POSTGRES_USER", cfg.PostgresUser)
	cfg.PostgresPassword = getEnv("POSTGRES_PASSWORD", cfg.PostgresPassword)
	cfg.PostgresDB = getEnv("POSTGRES_DB", cfg.PostgresDB)
	cfg.PostgresSSLMode = getEnv("POSTGRES_SSLMODE", cfg.PostgresSSLMode)

	cfg.SendEmail = getEnvBool("SEND_EMAIL", cfg.SendEmail)
	cfg.SMTPHost = getEnv("SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = getEnvInt("SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPUser = getEnv("GMAIL_USER", cfg.SMTPUser)
	cfg.SMTPPassword = getEnv("GMAIL_APP_PASSWORD", cfg.SMTPPassword)
	cfg.MailTo = getEnv("GMAIL_TO", cfg.MailTo)

	cfg.RenderPDF = getEnvBool("RENDER_PDF", cfg.RenderPDF)
	cfg.ChromeBin = getEnv("CHROME_BIN", cfg.ChromeBin)
	cfg.PushgatewayURL = getEnv("PUSHGATEWAY_URL", cfg.PushgatewayURL)

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// UnitsPath is the raw units export.
func (c *Config) UnitsPath() string { return filepath.Join(c.DataDir, c.UnitsCSV) }

// ReservationsPath is the monthly reservations export.
func (c *Config) ReservationsPath() string { return filepath.Join(c.DataDir, c.ReservationsCSV) }

// CleanUnitsPath is the intermediate parquet written by the etl stage.
func (c *Config) CleanUnitsPath() string {
	return filepath.Join(c.DataDir, "intermediate", "units_clean.parquet")
}

// OutputPath joins name under the output directory.
func (c *Config) OutputPath(name string) string { return filepath.Join(c.OutputDir, name) }

// PlotsDir holds generated charts.
func (c *Config) PlotsDir() string { return filepath.Join(c.OutputDir, "plots_econometric") }

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

// requireEnvFloat reads the business tolerances. A value that is set but
// malformed is an error instead of the default.
func requireEnvFloat(key string, fallback float64) (float64, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid number %q", key, val)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
