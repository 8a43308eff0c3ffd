package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the immutable process configuration. It is loaded once at
// startup and handed to the components that need it.
type Config struct {
	APIPort     int    `yaml:"apiPort"`
	Environment string `yaml:"environment"`

	Auth struct {
		JWTSecret string        `yaml:"jwtSecret"`
		TokenTTL  time.Duration `yaml:"tokenTTL"`
	} `yaml:"auth"`

	Database struct {
		Driver     string `yaml:"driver"`
		DSN        string `yaml:"dsn"`
		MaxRetries int    `yaml:"maxRetries"`
		RetryDelay int    `yaml:"retryDelay"`
	} `yaml:"database"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
}

// ErrMissingJWTSecret is returned when no signing secret is configured.
// The process must refuse to start in that case rather than issue
// unverifiable tokens.
var ErrMissingJWTSecret = errors.New("auth.jwtSecret is not configured")

// LoadConfig loads the configuration from file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Environment bindings used in deployment.
	v.BindEnv("auth.jwtSecret", "JWT_SECRET")
	v.BindEnv("database.dsn", "DATABASE_URL")
	v.BindEnv("environment", "APP_ENV")

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: could not read config file %s: %v. Using defaults and environment variables.", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Unmarshal does not apply BindEnv values for keys absent from the
	// file, so pick them up explicitly.
	cfg.Auth.JWTSecret = v.GetString("auth.jwtSecret")
	if dsn := v.GetString("database.dsn"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if env := v.GetString("environment"); env != "" {
		cfg.Environment = env
	}

	if cfg.APIPort == 0 {
		cfg.APIPort = 8081
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxRetries == 0 {
		cfg.Database.MaxRetries = 5
	}
	if cfg.Database.RetryDelay == 0 {
		cfg.Database.RetryDelay = 5
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the invariants the rest of the system depends on.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite3" {
		return errors.New("database.driver must be postgres or sqlite3")
	}
	return nil
}

// IsProduction reports whether the process runs with production settings.
// It gates the Secure attribute on the session cookie.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
