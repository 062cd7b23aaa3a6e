package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

type Config struct {
	Port             string `yaml:"port"`
	JWTSecret        string `yaml:"jwt_secret"`
	JWTExpiry        int    `yaml:"jwt_expiry"` // in hours
	LogLevel         string `yaml:"log_level"`
	MaxMessageLength int    `yaml:"max_message_length"`

	Store         string `yaml:"store"`
	MongoURI      string `yaml:"mongodb_uri"`
	MongoDatabase string `yaml:"mongodb_database"`

	RedisAddr     string `yaml:"redis_addr"` // empty keeps delivery in-process
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	BusPrefix     string `yaml:"bus_prefix"`

	DefaultMaxMembers int           `yaml:"default_max_members"`
	HTTPRateLimit     int           `yaml:"http_rate_limit"`   // requests per second per client IP
	SocketRateLimit   int           `yaml:"socket_rate_limit"` // events per second per connection
	StaticDir         string        `yaml:"static_dir"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

func defaults() Config {
	return Config{
		Port:              "8081",
		JWTSecret:         "dev-super-secret-change-me",
		JWTExpiry:         168,
		LogLevel:          "info",
		MaxMessageLength:  1000,
		Store:             StoreMemory,
		MongoURI:          "mongodb://localhost:27017/?replicaSet=rs0",
		MongoDatabase:     "ChatDB",
		BusPrefix:         "chat:",
		DefaultMaxMembers: 50,
		HTTPRateLimit:     20,
		SocketRateLimit:   10,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables (a .env file is loaded first when
// present). Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTExpiry = getEnvAsInt("JWT_EXPIRY", cfg.JWTExpiry)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MaxMessageLength = getEnvAsInt("MAX_MESSAGE_LENGTH", cfg.MaxMessageLength)
	cfg.Store = getEnv("STORE", cfg.Store)
	cfg.MongoURI = getEnv("MONGODB_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGODB_DATABASE", cfg.MongoDatabase)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)
	cfg.BusPrefix = getEnv("BUS_PREFIX", cfg.BusPrefix)
	cfg.DefaultMaxMembers = getEnvAsInt("DEFAULT_MAX_MEMBERS", cfg.DefaultMaxMembers)
	cfg.HTTPRateLimit = getEnvAsInt("HTTP_RATE_LIMIT", cfg.HTTPRateLimit)
	cfg.SocketRateLimit = getEnvAsInt("SOCKET_RATE_LIMIT", cfg.SocketRateLimit)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)
	cfg.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("jwt expiry must be positive"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("max message length must be positive"))
	}
	switch c.Store {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("mongodb uri is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.DefaultMaxMembers <= 0 {
		errs = append(errs, errors.New("default max members must be positive"))
	}
	if c.HTTPRateLimit <= 0 || c.SocketRateLimit <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiry) * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
