package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"actionrunner/internal/domain"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   Server
	Dispatch Dispatch
	Browser  Browser
	Behavior Behavior
	Redis    Redis
	Postgres Postgres
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

type Server struct {
	Port int `env:"SERVER_PORT" envDefault:"5050"`
}

type Dispatch struct {
	// Timeout bounds one action process; zero means unbounded.
	Timeout       time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"120s"`
	MaxWorkers    int           `env:"DISPATCH_MAX_WORKERS" envDefault:"2"`
	WorkerCommand []string      `env:"DISPATCH_WORKER_COMMAND" envSeparator:" "`
	MirrorActions []string      `env:"DISPATCH_MIRROR_ACTIONS" envSeparator:"," envDefault:"post"`
}

type Browser struct {
	ProfilesDir       string        `env:"BROWSER_PROFILES_DIR" envDefault:"profiles"`
	ScreenshotDir     string        `env:"BROWSER_SCREENSHOT_DIR" envDefault:"/tmp"`
	Headless          bool          `env:"BROWSER_HEADLESS" envDefault:"false"`
	ExecPath          string        `env:"BROWSER_EXEC_PATH"`
	UserAgent         string        `env:"BROWSER_USER_AGENT" envDefault:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	Locale            string        `env:"BROWSER_LOCALE" envDefault:"en-US"`
	Timezone          string        `env:"BROWSER_TIMEZONE" envDefault:"Asia/Karachi"`
	NavigationTimeout time.Duration `env:"BROWSER_NAVIGATION_TIMEOUT" envDefault:"60s"`
	BaseURL           string        `env:"BROWSER_BASE_URL" envDefault:"https://www.linkedin.com"`
}

type Behavior struct {
	MinDelay        time.Duration `env:"BEHAVIOR_MIN_DELAY" envDefault:"30s"`
	MaxDelay        time.Duration `env:"BEHAVIOR_MAX_DELAY" envDefault:"90s"`
	ProgressActions []string      `env:"BEHAVIOR_PROGRESS_ACTIONS" envSeparator:"," envDefault:"post"`
}

type Redis struct {
	Addr          string `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	Password      string `env:"REDIS_PASSWORD"`
	DB            int    `env:"REDIS_DB" envDefault:"0"`
	StreamKey     string `env:"REDIS_STREAM_KEY" envDefault:"actions"`
	Group         string `env:"REDIS_GROUP" envDefault:"action-workers"`
	ScheduledZSet string `env:"REDIS_SCHEDULED_ZSET" envDefault:"actions:scheduled"`
	DLQStreamKey  string `env:"REDIS_DLQ_STREAM_KEY" envDefault:"actions:dlq"`
}

type Postgres struct {
	// DSN empty disables status mirroring.
	DSN   string `env:"DATABASE_URL"`
	Table string `env:"STATUS_TABLE" envDefault:"posts"`
}

// Load reads an optional .env file, parses the environment and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: read .env: %v", domain.ErrConfigInvalid, err)
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.Behavior.MinDelay >= c.Behavior.MaxDelay {
		return invalid("behavior min delay must be less than max delay")
	}
	if c.Dispatch.MaxWorkers <= 0 {
		return invalid("dispatch max workers must be positive, got %d", c.Dispatch.MaxWorkers)
	}
	if c.Dispatch.Timeout < 0 {
		return invalid("dispatch timeout must not be negative")
	}
	if c.Browser.ProfilesDir == "" {
		return invalid("browser profiles dir is required")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return invalid("browser navigation timeout must be positive")
	}
	for _, a := range append(append([]string{}, c.Dispatch.MirrorActions...), c.Behavior.ProgressActions...) {
		if !domain.Action(a).Known() {
			return invalid("unknown action %q in action list", a)
		}
	}
	return nil
}

// ReportsProgress tells whether the given action emits progress events.
func (b Behavior) ReportsProgress(a domain.Action) bool {
	return slices.Contains(b.ProgressActions, string(a))
}

// Mirrors tells whether outcomes of the given action are written to the status store.
func (d Dispatch) Mirrors(a domain.Action) bool {
	return slices.Contains(d.MirrorActions, string(a))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrConfigInvalid, fmt.Sprintf(format, args...))
}
