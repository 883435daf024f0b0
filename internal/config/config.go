package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	User struct {
		ID          string `yaml:"id"`
		Username    string `yaml:"username"`
		DisplayName string `yaml:"display_name"`
	} `yaml:"user"`
	Timezone  string `yaml:"timezone"`
	WeekStart string `yaml:"week_start"`
	Redis     struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Vocabulary struct {
		File  string `yaml:"file"`
		Sheet string `yaml:"sheet"`
	} `yaml:"vocabulary"`
	Quiz struct {
		TTL            string `yaml:"ttl"`
		LimitToFifteen *bool  `yaml:"limit_to_fifteen"`
	} `yaml:"quiz"`
	Streak struct {
		BaseTarget int `yaml:"base_target"`
		Increment  int `yaml:"increment"`
	} `yaml:"streak"`
	Results struct {
		Limit int `yaml:"limit"`
	} `yaml:"results"`
	Persist struct {
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"persist"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path and fills in defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.User.ID == "" {
		c.User.ID = "local"
	}
	if c.User.Username == "" {
		c.User.Username = c.User.ID
	}
	if c.User.DisplayName == "" {
		c.User.DisplayName = c.User.Username
	}
	if c.WeekStart == "" {
		c.WeekStart = "monday"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// LimitToFifteen reports whether generated sets are capped; on unless disabled.
func (c Config) LimitToFifteen() bool {
	return c.Quiz.LimitToFifteen == nil || *c.Quiz.LimitToFifteen
}

// Location resolves the configured IANA time zone; empty means the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// FirstWeekday parses week_start.
func (c Config) FirstWeekday() (time.Weekday, error) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(c.WeekStart))]
	if !ok {
		return time.Monday, fmt.Errorf("unknown week_start %q", c.WeekStart)
	}
	return day, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// NewLogger builds a configured logrus logger from application config.
func NewLogger(cfg Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(level)
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}
