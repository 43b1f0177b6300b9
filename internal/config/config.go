package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Config is the full service configuration, read from the environment
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"true"`

	Auth       AuthConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Curve      CurveConfig
	Claims     ClaimConfig
	Treasury   TreasuryConfig
	Solana     SolanaConfig
	Graduation GraduationConfig
}

// AuthConfig controls wallet-signature authentication of state-changing routes
type AuthConfig struct {
	Enabled        bool          `env:"AUTH_ENABLED" envDefault:"true"`
	MaxAge         time.Duration `env:"AUTH_MAX_AGE" envDefault:"5m" validate:"min=1s"`
	AdminWallets   []string      `env:"AUTH_ADMIN_WALLETS" envSeparator:","`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RatePerMinute  int           `env:"AUTH_RATE_PER_MINUTE" envDefault:"60" validate:"min=0"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"launchpad"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

// RedisConfig selects the redis lock backend when Addr is set
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// CurveConfig seeds newly launched tokens
type CurveConfig struct {
	InitialVirtualSol   string `env:"CURVE_INITIAL_VIRTUAL_SOL" envDefault:"30" validate:"required"`
	InitialVirtualToken string `env:"CURVE_INITIAL_VIRTUAL_TOKEN" envDefault:"1000000000" validate:"required"`
	TotalSupply         string `env:"CURVE_TOTAL_SUPPLY" envDefault:"1000000000" validate:"required"`
	GraduationThreshold string `env:"CURVE_GRADUATION_THRESHOLD_SOL" envDefault:"85" validate:"required"`
	FeeBps              int    `env:"CURVE_FEE_BPS" envDefault:"100" validate:"min=0,max=1000"`
	CreatorShareBps     int    `env:"CURVE_CREATOR_SHARE_BPS" envDefault:"5000" validate:"min=0,max=10000"`
	SystemWallet        string `env:"CURVE_SYSTEM_WALLET"`
}

// ClaimConfig controls fee claims
type ClaimConfig struct {
	MinClaimSol string        `env:"CLAIM_MIN_SOL" envDefault:"0.001" validate:"required"`
	LockTTL     time.Duration `env:"CLAIM_LOCK_TTL" envDefault:"60s" validate:"min=1s"`
	SweepEvery  time.Duration `env:"CLAIM_LOCK_SWEEP_INTERVAL" envDefault:"30s"`
}

// TreasuryConfig controls disbursements from the hot wallet
type TreasuryConfig struct {
	HotWallet           string        `env:"TREASURY_HOT_WALLET"`
	NetworkFeeBufferSol string        `env:"TREASURY_NETWORK_FEE_BUFFER_SOL" envDefault:"0.00001" validate:"required"`
	ConfirmTimeout      time.Duration `env:"TREASURY_CONFIRM_TIMEOUT" envDefault:"30s" validate:"min=1s"`
	ReconcileEvery      time.Duration `env:"TREASURY_RECONCILE_INTERVAL" envDefault:"5m"`
}

// SolanaConfig configures the chain connection and external collaborators
type SolanaConfig struct {
	RPCURL         string        `env:"SOLANA_RPC_URL" envDefault:"https://api.mainnet-beta.solana.com" validate:"url"`
	SignerURL      string        `env:"SOLANA_SIGNER_URL"`
	ProtocolURL    string        `env:"LIQUIDITY_PROTOCOL_URL"`
	ProtocolAPIKey string        `env:"LIQUIDITY_PROTOCOL_API_KEY"`
	RequestTimeout time.Duration `env:"SOLANA_REQUEST_TIMEOUT" envDefault:"15s"`
	MaxRetries     int           `env:"SOLANA_MAX_RETRIES" envDefault:"3" validate:"min=0,max=10"`
}

// GraduationConfig controls the migration workers
type GraduationConfig struct {
	Workers       int           `env:"GRADUATION_WORKERS" envDefault:"2" validate:"min=1"`
	QueueSize     int           `env:"GRADUATION_QUEUE_SIZE" envDefault:"128" validate:"min=1"`
	StepTimeout   time.Duration `env:"GRADUATION_STEP_TIMEOUT" envDefault:"90s"`
	MaxAttempts   int           `env:"GRADUATION_MAX_ATTEMPTS" envDefault:"5" validate:"min=1"`
	CreateLocker  bool          `env:"GRADUATION_CREATE_LOCKER" envDefault:"true"`
	SweepInterval time.Duration `env:"GRADUATION_SWEEP_INTERVAL" envDefault:"1m"`
}

// Load reads .env (if present) and the environment into a validated Config
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and that every decimal setting parses
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	for name, raw := range map[string]string{
		"CURVE_INITIAL_VIRTUAL_SOL":       c.Curve.InitialVirtualSol,
		"CURVE_INITIAL_VIRTUAL_TOKEN":     c.Curve.InitialVirtualToken,
		"CURVE_TOTAL_SUPPLY":              c.Curve.TotalSupply,
		"CURVE_GRADUATION_THRESHOLD_SOL":  c.Curve.GraduationThreshold,
		"CLAIM_MIN_SOL":                   c.Claims.MinClaimSol,
		"TREASURY_NETWORK_FEE_BUFFER_SOL": c.Treasury.NetworkFeeBufferSol,
	} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("invalid config: %s must not be negative", name)
		}
	}
	return nil
}

// Decimal parses a validated decimal setting
func Decimal(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

// NewLogger builds the process logger
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if c.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
