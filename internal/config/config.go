// Package config loads the kontosms runtime configuration from the
// environment, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything the kontosms binary needs to build a client.
type Config struct {
	App      AppConfig
	Account  AccountConfig
	Session  SessionConfig
	Dispatch DispatchConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	LogLevel string
}

// AccountConfig selects the portal and carries the login credentials.
type AccountConfig struct {
	// Carrier names a preset (yesss, educom, xoxo) or an entry of the
	// catalogue file.
	Carrier string
	// CarrierFile optionally points at a TOML carrier catalogue.
	CarrierFile string
	// BaseURL is required when Carrier is "custom" and no catalogue is given.
	BaseURL  string
	Username string
	Password string
}

// SessionConfig tunes the session manager.
type SessionConfig struct {
	Timeout time.Duration
}

// DispatchConfig tunes queuing and the admission policy.
type DispatchConfig struct {
	UseQueue        bool
	Interval        time.Duration
	AdmissionWindow time.Duration
	AdmissionLimit  int
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Account.Carrier = ldr.getString("KM_CARRIER", "yesss", false)
	cfg.Account.CarrierFile = ldr.getString("KM_CARRIER_FILE", "", false)
	cfg.Account.BaseURL = ldr.getString("KM_BASE_URL", "", false)
	cfg.Account.Username = ldr.getString("KM_USERNAME", "", true)
	cfg.Account.Password = ldr.getString("KM_PASSWORD", "", true)

	cfg.Session.Timeout = ldr.getSeconds("KM_SESSION_TIMEOUT_SECONDS", 600)

	cfg.Dispatch.UseQueue = ldr.getBool("KM_USE_QUEUE", true)
	cfg.Dispatch.Interval = ldr.getSeconds("KM_DISPATCH_INTERVAL_SECONDS", 1)
	cfg.Dispatch.AdmissionWindow = ldr.getSeconds("KM_ADMISSION_WINDOW_SECONDS", 3600)
	cfg.Dispatch.AdmissionLimit = ldr.getInt("KM_ADMISSION_LIMIT", 50)

	if cfg.Account.Carrier == "custom" && cfg.Account.CarrierFile == "" && cfg.Account.BaseURL == "" {
		ldr.addError("KM_BASE_URL or KM_CARRIER_FILE is required for the custom carrier")
	}
	if cfg.Dispatch.AdmissionLimit <= 0 {
		ldr.addError("KM_ADMISSION_LIMIT must be > 0")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	val, ok := os.LookupEnv(key)
	if ok {
		val = strings.TrimSpace(val)
	}
	if val == "" {
		if required {
			l.addError(fmt.Sprintf("%s is required", key))
		}
		return def
	}
	return val
}

func (l *envLoader) getInt(key string, def int) int {
	val := l.getString(key, "", false)
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getBool(key string, def bool) bool {
	val := l.getString(key, "", false)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid boolean", key))
		return def
	}
	return parsed
}

func (l *envLoader) getSeconds(key string, def int) time.Duration {
	return time.Duration(l.getInt(key, def)) * time.Second
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
