package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Matching collaborator endpoint.
	MatchingURL string `mapstructure:"MATCHING_URL"`

	// Firebase service account for push delivery.
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	// Dispatch policy. Response windows are explicit configuration, never
	// inferred from UI copy.
	ResponseWindowMin       int `mapstructure:"RESPONSE_WINDOW_MIN"`
	UrgentResponseWindowMin int `mapstructure:"URGENT_RESPONSE_WINDOW_MIN"`
	UrgencyThresholdHours   int `mapstructure:"URGENCY_THRESHOLD_HOURS"`
	SweepIntervalMin        int `mapstructure:"SWEEP_INTERVAL_MIN"`
	CandidateCacheTTLMin    int `mapstructure:"CANDIDATE_CACHE_TTL_MIN"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 3)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("MATCHING_URL", "http://localhost:8090")
	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "serviceAccountKey.json")
	viper.SetDefault("RESPONSE_WINDOW_MIN", 30)
	viper.SetDefault("URGENT_RESPONSE_WINDOW_MIN", 10)
	viper.SetDefault("URGENCY_THRESHOLD_HOURS", 4)
	viper.SetDefault("SWEEP_INTERVAL_MIN", 1)
	viper.SetDefault("CANDIDATE_CACHE_TTL_MIN", 10)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// ResponseWindow returns the provider response window for a booking,
// shortened when the booking is urgent.
func (c Config) ResponseWindow(urgent bool) time.Duration {
	if urgent {
		return time.Duration(c.UrgentResponseWindowMin) * time.Minute
	}
	return time.Duration(c.ResponseWindowMin) * time.Minute
}

// UrgencyThreshold returns how close to mission start a booking counts as
// urgent.
func (c Config) UrgencyThreshold() time.Duration {
	return time.Duration(c.UrgencyThresholdHours) * time.Hour
}
