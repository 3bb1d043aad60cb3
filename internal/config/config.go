package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Question sources.
const (
	SourceStatic   = "static"
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Redis struct {
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
	Quiz struct {
		Source       string `yaml:"source"`
		Path         string `yaml:"path"`
		URL          string `yaml:"url"`
		SetID        string `yaml:"setId"`
		TTL          string `yaml:"ttl"`
		TimeLimit    string `yaml:"timeLimit"`
		TickInterval string `yaml:"tickInterval"`
	} `yaml:"quiz"`
	Session struct {
		Store string `yaml:"store"`
	} `yaml:"session"`
}

// LoadEnv reads a .env file into the process environment if one exists.
func LoadEnv() {
	// Ignore error so the service still starts when .env is absent.
	_ = godotenv.Load()
}

// Load reads YAML config from path. Environment variables referenced as
// ${NAME} in the file are expanded first.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Quiz.Source == "" {
		c.Quiz.Source = SourceStatic
	}
	if c.Quiz.SetID == "" {
		c.Quiz.SetID = "default"
	}
	if c.Session.Store == "" {
		c.Session.Store = StoreMemory
	}
}

// TimeLimitSeconds returns the attempt budget in whole seconds.
func (c Config) TimeLimitSeconds() int {
	return int(TTLDuration(c.Quiz.TimeLimit, 10*time.Minute) / time.Second)
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
