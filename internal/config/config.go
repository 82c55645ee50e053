package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		ReadTimeout    string   `yaml:"read_timeout"`
		WriteTimeout   string   `yaml:"write_timeout"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
		TokenTTL  string `yaml:"token_ttl"`
		DevTokens bool   `yaml:"dev_tokens"`
	} `yaml:"auth"`
	Session struct {
		IdleTTL       string `yaml:"idle_ttl"`
		SweepInterval string `yaml:"sweep_interval"`
		LockTimeout   string `yaml:"lock_timeout"`
	} `yaml:"session"`
	Quiz struct {
		MinQuestions     int    `yaml:"min_questions"`
		MaxQuestions     int    `yaml:"max_questions"`
		DefaultQuestions int    `yaml:"default_questions"`
		PassingScore     int    `yaml:"passing_score"`
		CallTimeout      string `yaml:"call_timeout"`
		CacheTTL         string `yaml:"cache_ttl"`
	} `yaml:"quiz"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.ReadTimeout = "15s"
	cfg.Server.WriteTimeout = "15s"
	cfg.Auth.Issuer = "adaptive-quiz-service"
	cfg.Auth.TokenTTL = "8h"
	cfg.Session.IdleTTL = "30m"
	cfg.Session.SweepInterval = "1m"
	cfg.Session.LockTimeout = "5s"
	cfg.Quiz.MinQuestions = 5
	cfg.Quiz.MaxQuestions = 50
	cfg.Quiz.DefaultQuestions = 10
	cfg.Quiz.PassingScore = 70
	cfg.Quiz.CallTimeout = "5s"
	cfg.Quiz.CacheTTL = "10m"
	cfg.Mongo.Database = "quiz"
	cfg.AMQP.Exchange = "quiz.events"
	return cfg
}

// Load reads YAML config from path on top of Defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.Server.Port, "PORT")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Postgres.URL, "POSTGRES_URL")
	override(&cfg.Mongo.URI, "MONGO_URI")
	override(&cfg.AMQP.URL, "AMQP_URL")
	if v, err := strconv.ParseBool(os.Getenv("AUTH_DEV_TOKENS")); err == nil {
		cfg.Auth.DevTokens = v
	}
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
