package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcclellann/credikhaata/pkg/logger"
	"github.com/spf13/viper"
)

// Config holds the service settings.
type Config struct {
	Server struct {
		Port int
	}
	Store struct {
		Driver string // sqlite, postgres or memory
		DSN    string
	}
	Session struct {
		Secret string
		Delay  time.Duration // Artificial latency of the mock backend
	}
	Ledger struct {
		SeedDemo bool
	}
	Digest struct {
		Schedule string // Cron spec; empty disables the job
	}
	Log struct {
		Dir   string
		Debug bool
	}
}

// Load reads .env (if present), an optional config file and KHAATA_*
// environment variables, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to parse .env file: %w", err)
		}
		logger.Info("No .env file found")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("khaata")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Store.Driver = v.GetString("store.driver")
	cfg.Store.DSN = v.GetString("store.dsn")
	cfg.Session.Secret = v.GetString("session.secret")
	cfg.Session.Delay = v.GetDuration("session.delay")
	cfg.Ledger.SeedDemo = v.GetBool("ledger.seed_demo")
	cfg.Digest.Schedule = v.GetString("digest.schedule")
	cfg.Log.Dir = v.GetString("log.dir")
	cfg.Log.Debug = v.GetBool("log.debug")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "credikhaata.db")
	v.SetDefault("session.secret", "change-me-in-production")
	v.SetDefault("session.delay", "800ms")
	v.SetDefault("ledger.seed_demo", true)
	v.SetDefault("digest.schedule", "0 9 * * *")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.debug", false)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("invalid store driver: %q", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("store dsn is required for driver %q", c.Store.Driver)
	}
	if c.Session.Secret == "" {
		return errors.New("session secret is required")
	}
	if c.Session.Delay < 0 {
		return fmt.Errorf("invalid session delay: %v", c.Session.Delay)
	}
	return nil
}
