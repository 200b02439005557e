/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	ServerBaseURL        string `mapstructure:"SERVER_BASE_URL"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`

	PayPalAPIBaseURL   string `mapstructure:"PAYPAL_API_BASE_URL"`
	PayPalClientID     string `mapstructure:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `mapstructure:"PAYPAL_CLIENT_SECRET"`

	Currency         string `mapstructure:"CURRENCY"`
	MaxRequestAmount string `mapstructure:"MAX_REQUEST_AMOUNT"`
	BcryptCost       int    `mapstructure:"BCRYPT_COST"`

	SpendRateLimitPerMinute   int  `mapstructure:"SPEND_RATE_LIMIT_PER_MINUTE"`
	CaptureRateLimitPerMinute int  `mapstructure:"CAPTURE_RATE_LIMIT_PER_MINUTE"`
	EnableTestingEndpoints    bool `mapstructure:"ENABLE_TESTING_ENDPOINTS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_BASE_URL", "http://localhost:8080")
	viper.SetDefault("PAYPAL_API_BASE_URL", "https://api-m.sandbox.paypal.com")
	viper.SetDefault("CURRENCY", "CAD")
	viper.SetDefault("MAX_REQUEST_AMOUNT", "9999999.99")
	viper.SetDefault("BCRYPT_COST", 12)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ledger:rate_limit")
	viper.SetDefault("SPEND_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("CAPTURE_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("ENABLE_TESTING_ENDPOINTS", false)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("SERVER_BASE_URL")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "LEDGER_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYPAL_API_BASE_URL")
	_ = viper.BindEnv("PAYPAL_CLIENT_ID")
	_ = viper.BindEnv("PAYPAL_CLIENT_SECRET")
	_ = viper.BindEnv("CURRENCY")
	_ = viper.BindEnv("MAX_REQUEST_AMOUNT")
	_ = viper.BindEnv("BCRYPT_COST")
	_ = viper.BindEnv("SPEND_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("CAPTURE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("ENABLE_TESTING_ENDPOINTS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.ServerBaseURL = strings.TrimRight(strings.TrimSpace(config.ServerBaseURL), "/")
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ledger:rate_limit"
	}
	config.Currency = strings.ToUpper(strings.TrimSpace(config.Currency))
	if config.Currency == "" {
		config.Currency = "CAD"
	}
	config.MaxRequestAmount = strings.TrimSpace(config.MaxRequestAmount)
	if config.MaxRequestAmount == "" {
		config.MaxRequestAmount = "9999999.99"
	}

	if config.SpendRateLimitPerMinute <= 0 {
		config.SpendRateLimitPerMinute = 60
	}
	if config.CaptureRateLimitPerMinute <= 0 {
		config.CaptureRateLimitPerMinute = 30
	}

	return
}
