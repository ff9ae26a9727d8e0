package main

import (
	"fmt"
	"strings"

	"mentalgoals/internal/middleware"
	"mentalgoals/internal/repository"
	"mentalgoals/internal/service"
	"mentalgoals/internal/workers"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database  repository.Config          `yaml:"database"`
	Redis     repository.RedisConfig     `yaml:"redis"`
	Firestore repository.FirestoreConfig `yaml:"firestore"`
	Storage   StorageConfig              `yaml:"storage"`
	Server    ServerConfig               `yaml:"server"`

	TelegramAuth TelegramAuthConfig        `yaml:"telegramAuth"`
	Notifier     service.NotifierConfig    `yaml:"notifier"`
	RateLimit    middleware.RateLimitConfig `yaml:"rateLimit"`
	Cleanup      workers.CleanupConfig     `yaml:"cleanup"`
	AdminIDs     []int64                   `yaml:"adminIds"`

	LogLevel string `yaml:"logLevel"`
}

// StorageConfig selects the backends behind the dual store. Document is one
// of postgres, firestore or none; KV is redis or memory.
type StorageConfig struct {
	Document string `yaml:"document"`
	KV       string `yaml:"kv"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type TelegramAuthConfig struct {
	TelegramBotToken string `yaml:"telegramBotToken"`
	DebugMode        bool   `yaml:"debugMode"`
}

func LoadConfig() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.SetDefault("storage.document", "postgres")
	viper.SetDefault("storage.kv", "redis")
	viper.SetDefault("cleanup.interval", "1h")
	viper.SetDefault("logLevel", "info")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
