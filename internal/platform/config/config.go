package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"payledger/internal/domain/payroll"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Addr        string `envconfig:"APP_ADDR" default:":8080"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	StoreDriver   string `envconfig:"STORE_DRIVER" default:"memory"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"payledger.db"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations/postgres"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"true"`

	RedisAddr string        `envconfig:"REDIS_ADDR"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	JWTSecret         string        `envconfig:"JWT_SECRET"`
	TokenTTL          time.Duration `envconfig:"TOKEN_TTL" default:"12h"`
	AuthDisabled      bool          `envconfig:"AUTH_DISABLED" default:"false"`
	AdminEmail        string        `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`
	DefaultTenant     string        `envconfig:"DEFAULT_TENANT" default:"default"`

	DataEncryptionKey string `envconfig:"DATA_ENCRYPTION_KEY"`
	PayslipDir        string `envconfig:"PAYSLIP_DIR" default:"payslips"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPUseTLS   bool   `envconfig:"SMTP_USE_TLS" default:"true"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"payledger@localhost"`
	NotifyEmail  string `envconfig:"NOTIFY_EMAIL"`

	MaxBodyBytes       int64 `envconfig:"MAX_BODY_BYTES" default:"10485760"`
	RateLimitPerMinute int   `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	MetricsEnabled     bool  `envconfig:"METRICS_ENABLED" default:"true"`

	Rates RateDefaults
}

// RateDefaults seeds the rate config of tenants that never saved one.
type RateDefaults struct {
	VDARate             float64 `envconfig:"RATE_VDA" default:"135.32"`
	PLFactor            float64 `envconfig:"RATE_PL_FACTOR" default:"1.3"`
	BonusPercent        float64 `envconfig:"RATE_BONUS_PERCENT" default:"8.33"`
	ESIEmployeePercent  float64 `envconfig:"RATE_ESI_EMPLOYEE_PERCENT" default:"0.75"`
	ESIEmployerPercent  float64 `envconfig:"RATE_ESI_EMPLOYER_PERCENT" default:"3.25"`
	PFEmployeePercent   float64 `envconfig:"RATE_PF_EMPLOYEE_PERCENT" default:"12"`
	PFEmployerPercent   float64 `envconfig:"RATE_PF_EMPLOYER_PERCENT" default:"13"`
	CommissionPerDay    float64 `envconfig:"RATE_COMMISSION_PER_DAY" default:"25"`
	PPECostPerDay       float64 `envconfig:"RATE_PPE_COST_PER_DAY" default:"3"`
	WorkingDaysPerMonth int     `envconfig:"RATE_WORKING_DAYS" default:"26"`
	LWFEmployeeAmount   float64 `envconfig:"RATE_LWF_EMPLOYEE" default:"40"`
	LWFEmployerAmount   float64 `envconfig:"RATE_LWF_EMPLOYER" default:"60"`
	OvertimeMultiplier  float64 `envconfig:"RATE_OVERTIME_MULTIPLIER" default:"2"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) RateConfig() payroll.RateConfig {
	r := c.Rates
	return payroll.RateConfig{
		VDARate:             r.VDARate,
		PLFactor:            r.PLFactor,
		BonusPercent:        r.BonusPercent,
		ESIEmployeePercent:  r.ESIEmployeePercent,
		ESIEmployerPercent:  r.ESIEmployerPercent,
		PFEmployeePercent:   r.PFEmployeePercent,
		PFEmployerPercent:   r.PFEmployerPercent,
		CommissionPerDay:    r.CommissionPerDay,
		PPECostPerDay:       r.PPECostPerDay,
		WorkingDaysPerMonth: r.WorkingDaysPerMonth,
		LWFEmployeeAmount:   r.LWFEmployeeAmount,
		LWFEmployerAmount:   r.LWFEmployerAmount,
		OvertimeMultiplier:  r.OvertimeMultiplier,
	}
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is sqlite")
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, sqlite, postgres")
	}
	if c.IsProduction() {
		if c.AuthDisabled {
			return fmt.Errorf("AUTH_DISABLED cannot be set in production")
		}
		if len(strings.TrimSpace(c.JWTSecret)) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if c.StoreDriver == StoreMemory {
			return fmt.Errorf("STORE_DRIVER memory loses the ledger on restart and is not allowed in production")
		}
	}
	if !c.AuthDisabled && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required unless AUTH_DISABLED is true")
	}
	if strings.TrimSpace(c.DefaultTenant) == "" {
		return fmt.Errorf("DEFAULT_TENANT must not be empty")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if err := c.RateConfig().Validate(); err != nil {
		return fmt.Errorf("RATE_* defaults: %w", err)
	}
	return nil
}
