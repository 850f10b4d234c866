// Package config loads runtime settings for the UI server and the
// development auth stub from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/Its-donkey/compass-auth/logging"
)

// ErrInvalidBaseURL is returned when COMPASS_API_BASE_URL is not an absolute
// http(s) URL.
var ErrInvalidBaseURL = errors.New("invalid API base URL")

// Config holds every setting shared by the binaries.
type Config struct {
	APIBaseURL   string
	UIListen     string
	TemplatesDir string
	AssetsDir    string
	LogLevel     logging.Level
	LogDir       string
	LogFileMB    int
	LogFileKeep  int
	Stub         StubConfig
}

// StubConfig configures the in-memory auth backend used during development.
type StubConfig struct {
	Listen     string
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Load reads files (default ".env") if they exist, then the process
// environment. Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Config{
		APIBaseURL:   strings.TrimRight(getEnv("COMPASS_API_BASE_URL", "http://localhost:8081"), "/"),
		UIListen:     getEnv("COMPASS_UI_LISTEN", "127.0.0.1:4173"),
		TemplatesDir: getEnv("COMPASS_UI_TEMPLATES", "ui/templates"),
		AssetsDir:    getEnv("COMPASS_UI_ASSETS", "ui"),
		LogLevel:     logging.ParseLevel(getEnv("COMPASS_LOG_LEVEL", "info")),
		LogDir:       getEnv("COMPASS_LOG_DIR", ""),
		Stub: StubConfig{
			Listen:    getEnv("COMPASS_STUB_LISTEN", "127.0.0.1:8081"),
			JWTSecret: getEnv("COMPASS_STUB_JWT_SECRET", "compass-dev-secret"),
		},
	}

	var err error
	if cfg.Stub.AccessTTL, err = getDuration("COMPASS_STUB_ACCESS_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Stub.RefreshTTL, err = getDuration("COMPASS_STUB_REFRESH_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Stub.BcryptCost, err = getInt("COMPASS_STUB_BCRYPT_COST", bcrypt.DefaultCost); err != nil {
		return Config{}, err
	}
	if cfg.LogFileMB, err = getInt("COMPASS_LOG_FILE_MB", 10); err != nil {
		return Config{}, err
	}
	if cfg.LogFileKeep, err = getInt("COMPASS_LOG_FILE_KEEP", 5); err != nil {
		return Config{}, err
	}
	if cfg.LogFileMB <= 0 || cfg.LogFileKeep < 0 {
		return Config{}, errors.New("COMPASS_LOG_FILE_MB must be positive and COMPASS_LOG_FILE_KEEP not negative")
	}
	if cfg.Stub.BcryptCost < bcrypt.MinCost || cfg.Stub.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("COMPASS_STUB_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if err := ValidateBaseURL(cfg.APIBaseURL); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// OpenLogger builds the component logger. Output goes to stdout and, when
// LogDir is set, to a rotating <component>.log file. The returned close
// function flushes and closes that file.
func (c Config) OpenLogger(component string) (*logging.Logger, func() error, error) {
	if c.LogDir == "" {
		return logging.New(component, c.LogLevel, os.Stdout), func() error { return nil }, nil
	}
	file, err := logging.OpenRotatingFile(c.LogDir, component+".log", c.LogFileMB, c.LogFileKeep)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s log: %w", component, err)
	}
	return logging.New(component, c.LogLevel, os.Stdout, file), file.Close, nil
}

// ValidateBaseURL checks that raw is an absolute http or https URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q needs an http or https scheme", ErrInvalidBaseURL, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidBaseURL, raw)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
