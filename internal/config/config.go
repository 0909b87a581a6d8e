package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	State      StateConfig         `yaml:"state"`
	Database   DatabaseConfig      `yaml:"database"`
	Schedule   map[string][]string `yaml:"schedule"`
	Scheduler  SchedulerConfig     `yaml:"scheduler"`
	Publish    PublishConfig       `yaml:"publish"`
	Market     MarketConfig        `yaml:"market"`
	OpenAI     OpenAIConfig        `yaml:"openai"`
	Transports TransportsConfig    `yaml:"transports"`
	Events     EventsConfig        `yaml:"events"`
	LogLevel   string              `yaml:"log_level"`
}

type StateConfig struct {
	Backend       string   `yaml:"backend"` // "file" or "postgres"
	Path          string   `yaml:"path"`
	Name          string   `yaml:"name"` // row name for the postgres backend
	ProtectedKeys []string `yaml:"protected_keys"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type SchedulerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	Lookback     time.Duration `yaml:"lookback"`
	Cooldown     time.Duration `yaml:"cooldown"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
}

type PublishConfig struct {
	PriorityLanguages []string `yaml:"priority_languages"`
}

type MarketConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type OpenAIConfig struct {
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxOutputChars int           `yaml:"max_output_chars"`
}

type TransportsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Discord  DiscordConfig  `yaml:"discord"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type EventsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.Path == "" {
		c.State.Path = "data/state.json"
	}
	if c.State.Name == "" {
		c.State.Name = "macropulse"
	}
	if len(c.Schedule) == 0 {
		c.Schedule = map[string][]string{
			"JA": {"07:30"},
			"EN": {"17:00", "22:00"},
			"DE": {"15:00"},
			"FR": {"15:30"},
		}
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = 30 * time.Minute
	}
	if c.Scheduler.Lookback == 0 {
		c.Scheduler.Lookback = 55 * time.Minute
	}
	if c.Scheduler.Cooldown == 0 {
		c.Scheduler.Cooldown = 50 * time.Minute
	}
	if c.Scheduler.CycleTimeout == 0 {
		c.Scheduler.CycleTimeout = 4 * time.Minute
	}
	if len(c.Publish.PriorityLanguages) == 0 {
		c.Publish.PriorityLanguages = []string{"JA", "EN"}
	}
	if c.Market.Timeout == 0 {
		c.Market.Timeout = 30 * time.Second
	}
	if c.Market.Retry.MaxAttempts == 0 {
		c.Market.Retry.MaxAttempts = 3
	}
	if c.Market.Retry.InitialBackoff == 0 {
		c.Market.Retry.InitialBackoff = 1 * time.Second
	}
	if c.Market.Retry.MaxBackoff == 0 {
		c.Market.Retry.MaxBackoff = 30 * time.Second
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 60 * time.Second
	}
	if c.OpenAI.MaxOutputChars == 0 {
		c.OpenAI.MaxOutputChars = 560
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "macropulse"
	}
	if c.Events.RoutingKey == "" {
		c.Events.RoutingKey = "cycle_reports"
	}
	if c.Events.QueueName == "" {
		c.Events.QueueName = "macropulse_reports"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if c.State.Backend != "file" && c.State.Backend != "postgres" {
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}
	// A lookback of a day or more would let the three-date candidate
	// construction match the same slot twice in one evaluation.
	if c.Scheduler.Lookback >= 24*time.Hour {
		return fmt.Errorf("scheduler lookback %s must be below 24h", c.Scheduler.Lookback)
	}
	if c.Scheduler.Cooldown >= 24*time.Hour {
		return fmt.Errorf("scheduler cooldown %s must be below 24h", c.Scheduler.Cooldown)
	}
	return nil
}
