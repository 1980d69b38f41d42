package config

import (
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

type OAuthConfig struct {
	Key         string
	Secret      string
	CallbackURL string
}

type Config struct {
	Port          string
	DBPath        string
	LogFormat     string
	LogLevel      string
	SessionTTL    time.Duration
	SessionSecret string
	SecureCookies bool

	Discord OAuthConfig
	Google  OAuthConfig
}

// Load reads configuration from environment variables and .env file.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, reading from environment variables")
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from lookup, falling back to defaults for
// anything unset or malformed.
func FromEnv(lookup func(string) (string, bool)) Config {
	getEnv := func(key, fallback string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return fallback
	}
	getBool := func(key string, fallback bool) bool {
		v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
		if err != nil {
			log.Warn("Ignoring malformed boolean", "key", key)
			return fallback
		}
		return v
	}
	getDuration := func(key string, fallback time.Duration) time.Duration {
		v, err := time.ParseDuration(getEnv(key, fallback.String()))
		if err != nil {
			log.Warn("Ignoring malformed duration", "key", key)
			return fallback
		}
		return v
	}

	return Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "op_booking.db"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		SessionTTL:    getDuration("SESSION_TTL", 24*time.Hour),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SecureCookies: getBool("SECURE_COOKIES", false),
		Discord: OAuthConfig{
			Key:         getEnv("DISCORD_KEY", ""),
			Secret:      getEnv("DISCORD_SECRET", ""),
			CallbackURL: getEnv("DISCORD_CALLBACK_URL", ""),
		},
		Google: OAuthConfig{
			Key:         getEnv("GOOGLE_KEY", ""),
			Secret:      getEnv("GOOGLE_SECRET", ""),
			CallbackURL: getEnv("GOOGLE_CALLBACK_URL", ""),
		},
	}
}

func (c OAuthConfig) Enabled() bool {
	return c.Key != "" && c.Secret != ""
}

// SetupLogger applies format and level to the default logger.
func (c Config) SetupLogger() {
	if c.LogFormat == "json" {
		log.SetFormatter(log.JSONFormatter)
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warn("Unknown log level, keeping info", "level", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
