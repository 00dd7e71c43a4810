package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// Following 12-factor app principles, all config is loaded from environment variables
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	PodPay   PodPayConfig
	CEP      CEPConfig
	Meta     MetaConfig
	WhatsApp WhatsAppConfig
	Email    EmailConfig
	LogLevel string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

type AuthConfig struct {
	AdminToken string // bearer token for the back-office endpoints
}

// StorageConfig selects the persistence backends. Empty values fall back to
// the in-memory implementations, which is what local development uses.
type StorageConfig struct {
	PostgresDSN string
	RedisAddr   string
	RedisDB     int
}

type PodPayConfig struct {
	BaseURL      string
	PublicKey    string
	SecretKey    string
	PollInterval int // seconds between settlement polls
}

type CEPConfig struct {
	BaseURL string
}

type MetaConfig struct {
	PixelID     string
	AccessToken string
}

type WhatsAppConfig struct {
	EvolutionBaseURL  string
	EvolutionAPIKey   string
	EvolutionInstance string
	CloudPhoneID      string
	CloudAccessToken  string
	AdminPhone        string
}

type EmailConfig struct {
	ResendAPIKey string
	FromAddress  string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsInt("READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("WRITE_TIMEOUT", 15),
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 30),
		},
		Auth: AuthConfig{
			AdminToken: getEnv("ADMIN_TOKEN", ""),
		},
		Storage: StorageConfig{
			PostgresDSN: getEnv("DATABASE_URL", ""),
			RedisAddr:   getEnv("REDIS_ADDR", ""),
			RedisDB:     getEnvAsInt("REDIS_DB", 0),
		},
		PodPay: PodPayConfig{
			BaseURL:      getEnv("PODPAY_BASE_URL", "https://api.podpay.com.br"),
			PublicKey:    getEnv("PODPAY_PUBLIC_KEY", ""),
			SecretKey:    getEnv("PODPAY_SECRET_KEY", ""),
			PollInterval: getEnvAsInt("PODPAY_POLL_INTERVAL", 5),
		},
		CEP: CEPConfig{
			BaseURL: getEnv("CEP_BASE_URL", "https://viacep.com.br/ws"),
		},
		Meta: MetaConfig{
			PixelID:     getEnv("META_PIXEL_ID", ""),
			AccessToken: getEnv("META_ACCESS_TOKEN", ""),
		},
		WhatsApp: WhatsAppConfig{
			EvolutionBaseURL:  getEnv("EVOLUTION_BASE_URL", ""),
			EvolutionAPIKey:   getEnv("EVOLUTION_API_KEY", ""),
			EvolutionInstance: getEnv("EVOLUTION_INSTANCE", ""),
			CloudPhoneID:      getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			CloudAccessToken:  getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			AdminPhone:        getEnv("ADMIN_WHATSAPP", ""),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("EMAIL_FROM", "pedidos@dcutelaria.com.br"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.PodPay.PollInterval < 1 {
		return fmt.Errorf("PODPAY_POLL_INTERVAL must be at least 1 second")
	}

	// the keys travel as a pair; one without the other is a deployment mistake
	if (c.PodPay.PublicKey == "") != (c.PodPay.SecretKey == "") {
		return fmt.Errorf("PODPAY_PUBLIC_KEY and PODPAY_SECRET_KEY must be set together")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
