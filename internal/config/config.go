// Package config loads service settings from the environment, an optional .env
// file and an optional YAML file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chepyr/organism/internal/bucket"
)

const (
	DefaultDriver        = "postgres"
	DefaultTokenTTLHours = 24
	DefaultSMTPPort      = 465
	MinJWTSecretLength   = 32
)

type Config struct {
	DBDriver         string `yaml:"db_driver"`
	DatabaseURL      string `yaml:"database_url"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`

	ServerPort      string `yaml:"server_port"`
	ServerPortTasks string `yaml:"server_port_tasks"`
	JWTSecret       string `yaml:"jwt_secret"`
	BaseURL         string `yaml:"base_url"`
	AllowedOrigins  string `yaml:"allowed_origins"`

	Timezone  string `yaml:"timezone"`
	WeekStart string `yaml:"week_start"`

	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUsername string `yaml:"smtp_username"`
	SMTPPassword string `yaml:"smtp_password"`
	SMTPFrom     string `yaml:"smtp_from"`

	TokenTTLHours int `yaml:"token_ttl_hours"`

	// MailLogBody prints whole emails, links included, when SMTP is not configured.
	MailLogBody bool `yaml:"mail_log_body"`
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the environment.
// Later sources win.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else {
		log.Println(".env file not found, relying on environment variables")
	}

	cfg := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"DB_DRIVER":         &c.DBDriver,
		"DATABASE_URL":      &c.DatabaseURL,
		"POSTGRES_HOST":     &c.PostgresHost,
		"POSTGRES_PORT":     &c.PostgresPort,
		"POSTGRES_USER":     &c.PostgresUser,
		"POSTGRES_PASSWORD": &c.PostgresPassword,
		"POSTGRES_DB":       &c.PostgresDB,
		"SERVER_PORT":       &c.ServerPort,
		"SERVER_PORT_TASKS": &c.ServerPortTasks,
		"JWT_SECRET":        &c.JWTSecret,
		"BASE_URL":          &c.BaseURL,
		"ALLOWED_ORIGINS":   &c.AllowedOrigins,
		"TIMEZONE":          &c.Timezone,
		"WEEK_START":        &c.WeekStart,
		"SMTP_HOST":         &c.SMTPHost,
		"SMTP_USERNAME":     &c.SMTPUsername,
		"SMTP_PASSWORD":     &c.SMTPPassword,
		"SMTP_FROM":         &c.SMTPFrom,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SMTP_PORT":       &c.SMTPPort,
		"TOKEN_TTL_HOURS": &c.TokenTTLHours,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("environment variable %s must be a number: %w", key, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("MAIL_LOG_BODY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("environment variable MAIL_LOG_BODY must be a boolean: %w", err)
		}
		c.MailLogBody = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DBDriver == "" {
		c.DBDriver = DefaultDriver
	}
	if c.Timezone == "" {
		c.Timezone = bucket.DefaultTimezone
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = DefaultSMTPPort
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = DefaultTokenTTLHours
	}
	if c.BaseURL == "" && c.ServerPort != "" {
		c.BaseURL = "http://localhost:" + c.ServerPort
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

var (
	ErrShortSecret     = errors.New("JWT_SECRET must be at least 32 characters")
	ErrUnknownDriver   = errors.New("DB_DRIVER must be one of postgres, pgx, sqlite3")
	ErrMissingDatabase = errors.New("DATABASE_URL must be set for sqlite3")
)

// Validate checks what every process needs: a database and a signing secret.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "pgx":
		if c.DatabaseURL == "" {
			required := map[string]string{
				"POSTGRES_HOST":     c.PostgresHost,
				"POSTGRES_PORT":     c.PostgresPort,
				"POSTGRES_USER":     c.PostgresUser,
				"POSTGRES_PASSWORD": c.PostgresPassword,
				"POSTGRES_DB":       c.PostgresDB,
			}
			for _, key := range []string{"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB"} {
				if required[key] == "" {
					return fmt.Errorf("environment variable %s must be set", key)
				}
			}
		}
	case "sqlite3":
		if c.DatabaseURL == "" {
			return ErrMissingDatabase
		}
	default:
		return ErrUnknownDriver
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		return ErrShortSecret
	}
	if _, err := c.Calendar(); err != nil {
		return err
	}
	return nil
}

// RequirePort fails when the named port variable is empty.
func RequirePort(name, value string) error {
	if value == "" {
		return fmt.Errorf("environment variable %s must be set", name)
	}
	return nil
}

// DSN is DATABASE_URL when set, otherwise a lib/pq style keyword string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort)
}

func (c *Config) Calendar() (bucket.Calendar, error) {
	return bucket.NewCalendar(c.Timezone, c.WeekStart)
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// MailEnabled reports whether SMTP is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}
