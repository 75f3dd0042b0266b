package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the complete runtime configuration. Policy constants live in
// explicit sub-structs and are handed to each component at construction;
// nothing reads the environment after startup.
type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	BankName string `env:"BANK_NAME, default=Bank Stream"`

	JWT    JWTConfig
	Policy PolicyConfig
	Cookie CookieConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	SMTP   SMTPConfig
}

type JWTConfig struct {
	Secret     string        `env:"JWT_SECRET"`
	AccessTTL  time.Duration `env:"JWT_ACCESS_TTL,  default=30m"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_TTL, default=24h"`
}

// PolicyConfig holds the brute-force and OTP policy knobs.
type PolicyConfig struct {
	MaxLoginAttempts int           `env:"MAX_LOGIN_ATTEMPTS, default=5"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION,   default=30m"`
	OTPLength        int           `env:"OTP_LENGTH,         default=6"`
	OTPTTL           time.Duration `env:"OTP_TTL,            default=10m"`
}

type CookieConfig struct {
	Secure bool `env:"COOKIE_SECURE, default=true"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=bankstream_auth"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST, default=localhost"`
	Port     int    `env:"SMTP_PORT, default=587"`
	From     string `env:"SMTP_FROM, default=no-reply@bankstream.example"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	Workers  int    `env:"SMTP_WORKERS, default=4"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}
