// Package config loads the server configuration from a YAML file with
// DATEPLAN_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen     = ":8080"
	defaultDBPath     = "dateplan.db"
	defaultTimezone   = "Asia/Seoul"
	defaultHorizon    = "2049-12-31"
	defaultCron       = "0 9 * * *"
	defaultDaysAhead  = 1
	defaultPerMinute  = 30
	defaultSubscriber = "mailto:noreply@dateplan.app"
)

type ReminderConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Cron      string `yaml:"cron"` // standard five fields, evaluated in Timezone
	DaysAhead int    `yaml:"days_ahead"`
}

// PushConfig holds the VAPID key pair used to deliver reminders as web
// push notifications. Push is disabled unless both keys are set.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

type RateLimitConfig struct {
	// PerMinute caps schedule and anniversary creations per member.
	PerMinute int `yaml:"per_minute"`
}

type Config struct {
	Listen    string `yaml:"listen"`
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Timezone is the IANA zone calendar dates are read in.
	Timezone string `yaml:"timezone"`

	// CalendarHorizon is the last date (YYYY-MM-DD) any series is
	// materialized up to.
	CalendarHorizon string `yaml:"calendar_horizon"`

	Reminder  ReminderConfig  `yaml:"reminder"`
	Push      PushConfig      `yaml:"push"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		DBPath:          defaultDBPath,
		LogLevel:        "info",
		LogFormat:       "text",
		Timezone:        defaultTimezone,
		CalendarHorizon: defaultHorizon,
		Reminder: ReminderConfig{
			Enabled:   true,
			Cron:      defaultCron,
			DaysAhead: defaultDaysAhead,
		},
		Push:      PushConfig{Subscriber: defaultSubscriber},
		RateLimit: RateLimitConfig{PerMinute: defaultPerMinute},
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.CalendarHorizon == "" {
		c.CalendarHorizon = defaultHorizon
	}
	if c.Reminder.Cron == "" {
		c.Reminder.Cron = defaultCron
	}
	if c.Reminder.DaysAhead <= 0 {
		c.Reminder.DaysAhead = defaultDaysAhead
	}
	if c.Push.Subscriber == "" {
		c.Push.Subscriber = defaultSubscriber
	}
	if c.RateLimit.PerMinute <= 0 {
		c.RateLimit.PerMinute = defaultPerMinute
	}
}

// Validate checks the fields that are parsed later at startup.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Horizon(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.Reminder.Cron); err != nil {
		return fmt.Errorf("reminder cron %q: %w", c.Reminder.Cron, err)
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Horizon returns the calendar horizon as midnight UTC.
func (c *Config) Horizon() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, c.CalendarHorizon)
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar horizon %q: %w", c.CalendarHorizon, err)
	}
	return t, nil
}

// Load reads path (a missing file yields defaults), applies environment
// overrides, normalizes and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"DATEPLAN_LISTEN":            &c.Listen,
		"DATEPLAN_DB_PATH":           &c.DBPath,
		"DATEPLAN_LOG_LEVEL":         &c.LogLevel,
		"DATEPLAN_LOG_FORMAT":        &c.LogFormat,
		"DATEPLAN_TIMEZONE":          &c.Timezone,
		"DATEPLAN_CALENDAR_HORIZON":  &c.CalendarHorizon,
		"DATEPLAN_REMINDER_CRON":     &c.Reminder.Cron,
		"DATEPLAN_VAPID_PUBLIC_KEY":  &c.Push.VAPIDPublicKey,
		"DATEPLAN_VAPID_PRIVATE_KEY": &c.Push.VAPIDPrivateKey,
		"DATEPLAN_PUSH_SUBSCRIBER":   &c.Push.Subscriber,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DATEPLAN_REMINDER_DAYS_AHEAD":   &c.Reminder.DaysAhead,
		"DATEPLAN_RATE_LIMIT_PER_MINUTE": &c.RateLimit.PerMinute,
	}
	for key, dst := range ints {
		v := getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v := getenv("DATEPLAN_REMINDER_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DATEPLAN_REMINDER_ENABLED: %w", err)
		}
		c.Reminder.Enabled = b
	}
	return nil
}
