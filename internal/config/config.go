package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port                 string
	OpenAIAPIKey         string
	DatabaseURL          string
	WebhookURL           string
	TargetEmail          string
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	NotifyWhatsAppNumber string
	PollInterval         time.Duration
	LocalTimezone        *time.Location
}

// Load reads configuration values and prepares defaults where applicable.
func Load() *Config {
	_ = godotenv.Load()

	timezoneName := getenvDefault("LOCAL_TIMEZONE", "Local")
	location, err := time.LoadLocation(timezoneName)
	if err != nil {
		log.Printf("config: invalid LOCAL_TIMEZONE %q, defaulting to system local: %v", timezoneName, err)
		location = time.Local
	}

	return &Config{
		Port:                 getenvDefault("PORT", "8080"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		WebhookURL:           os.Getenv("WEBHOOK_URL"),
		TargetEmail:          os.Getenv("TARGET_EMAIL"),
		TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppNumber: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		NotifyWhatsAppNumber: os.Getenv("NOTIFY_WHATSAPP_NUMBER"),
		PollInterval:         time.Duration(ParseIntEnv("POLL_INTERVAL_SECONDS", 15)) * time.Second,
		LocalTimezone:        location,
	}
}

func getenvDefault(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	return value
}

// ParseIntEnv returns the integer value for an environment variable or the provided default.
func ParseIntEnv(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: unable to parse %s=%q as int: %v", key, value, err)
		return def
	}
	return parsed
}
