// Package config reads the process environment into one immutable struct.
// main loads .env through godotenv first, so a local run needs no exported
// variables at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const devJWTSecret = "your-secret-key-change-in-production"

// Config is assembled once at boot and passed around by pointer; nothing
// mutates it afterwards.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Agora    AgoraConfig
}

type ServerConfig struct {
	Address        string
	Environment    string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ConnectionString renders the pgx connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	ExpiryHours       int
	RefreshExpiryDays int
}

type AgoraConfig struct {
	AppID          string
	AppCertificate string
	TokenExpiry    uint32
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address:        env("SERVER_ADDRESS", ":8080"),
			Environment:    env("ENVIRONMENT", "development"),
			AllowedOrigins: strings.Split(env("ALLOWED_ORIGINS", "*"), ","),
		},
		Database: DatabaseConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     envInt("DB_PORT", 5432),
			User:     env("DB_USER", "postgres"),
			Password: env("DB_PASSWORD", "postgres"),
			DBName:   env("DB_NAME", "werewolf"),
			SSLMode:  env("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Address:  env("REDIS_ADDRESS", "localhost:6379"),
			Password: env("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:            env("JWT_SECRET", devJWTSecret),
			ExpiryHours:       envInt("JWT_EXPIRY_HOURS", 24),
			RefreshExpiryDays: envInt("JWT_REFRESH_EXPIRY_DAYS", 7),
		},
		Agora: AgoraConfig{
			AppID:          env("AGORA_APP_ID", ""),
			AppCertificate: env("AGORA_APP_CERTIFICATE", ""),
			TokenExpiry:    uint32(envInt("AGORA_TOKEN_EXPIRY", 3600)),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects the development fallbacks in production. Voice tokens stay
// optional everywhere else.
func (c *Config) validate() error {
	if c.Server.Environment != "production" {
		return nil
	}
	if c.JWT.Secret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Agora.AppID == "" {
		return fmt.Errorf("AGORA_APP_ID is required in production")
	}
	if c.Agora.AppCertificate == "" {
		return fmt.Errorf("AGORA_APP_CERTIFICATE is required in production")
	}
	return nil
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
