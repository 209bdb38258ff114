package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/josearceinfo-star/sermagri/internal/domain"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AppEnv        string `envconfig:"APP_ENV" default:"development"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`

	// DatabaseURL selects the Postgres store. When empty the in-memory
	// store is used, optionally persisted to DataFile.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DataFile    string `envconfig:"DATA_FILE"`

	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	BalanceCacheTTL time.Duration `envconfig:"BALANCE_CACHE_TTL" default:"30s"`

	TaxRate decimal.Decimal `envconfig:"TAX_RATE" default:"0.19"`

	AuthSecret     string        `envconfig:"AUTH_SECRET"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"8h"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	Company struct {
		Name    string `envconfig:"COMPANY_NAME" default:"Sermagri"`
		RUT     string `envconfig:"COMPANY_RUT"`
		Address string `envconfig:"COMPANY_ADDRESS"`
		Phone   string `envconfig:"COMPANY_PHONE"`
		Website string `envconfig:"COMPANY_WEBSITE"`
	}
}

// Load reads configuration from the environment. Callers that want .env
// support load it with godotenv before calling Load.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process config: %w", err)
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c Config) CompanyInfo() domain.CompanyInfo {
	return domain.CompanyInfo{
		Name:    c.Company.Name,
		RUT:     c.Company.RUT,
		Address: c.Company.Address,
		Phone:   c.Company.Phone,
		Website: c.Company.Website,
	}
}
