package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken    string
	KalendarURL      string
	DatabasePath     string
	Timezone         *time.Location
	DigestTime       string
	SessionCheck     string
	WebhookURL       string
	ServerPort       string
	ToastDelay       time.Duration
	FetchConcurrency int
	Debug            bool

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	apiURL := strings.TrimRight(strings.TrimSpace(os.Getenv("KALENDAR_API_URL")), "/")
	if apiURL == "" {
		return nil, fmt.Errorf("KALENDAR_API_URL is required")
	}

	tz, err := time.LoadLocation(getenv("TIMEZONE", "Europe/Prague"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	digestTime := getenv("DIGEST_TIME", "07:30")
	if strings.EqualFold(digestTime, "off") {
		digestTime = ""
	}
	if digestTime != "" {
		if _, err := time.Parse("15:04", digestTime); err != nil {
			return nil, fmt.Errorf("invalid DIGEST_TIME %q: expected HH:MM", digestTime)
		}
	}

	toastDelay, err := time.ParseDuration(getenv("TOAST_DELAY", "3s"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOAST_DELAY: %w", err)
	}

	concurrency, err := strconv.Atoi(getenv("FETCH_CONCURRENCY", "8"))
	if err != nil || concurrency <= 0 {
		return nil, fmt.Errorf("FETCH_CONCURRENCY must be a positive number")
	}

	return &Config{
		TelegramToken:    token,
		KalendarURL:      apiURL,
		DatabasePath:     getenv("DATABASE_PATH", "./data/kalendarbot.db"),
		Timezone:         tz,
		DigestTime:       digestTime,
		SessionCheck:     getenv("SESSION_CHECK", "0 * * * *"),
		WebhookURL:       strings.TrimRight(os.Getenv("WEBHOOK_URL"), "/"),
		ServerPort:       getenv("SERVER_PORT", "8080"),
		ToastDelay:       toastDelay,
		FetchConcurrency: concurrency,
		Debug:            getenv("DEBUG", "false") == "true",
		CalDAVURL:        os.Getenv("CALDAV_URL"),
		CalDAVUsername:   os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:   os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar:   os.Getenv("CALDAV_CALENDAR"),
	}, nil
}

// DigestSpec converts DigestTime into a cron spec, or "" when the digest is off.
func (c *Config) DigestSpec() string {
	if c.DigestTime == "" {
		return ""
	}
	t, err := time.Parse("15:04", c.DigestTime)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
}

func (c *Config) UseWebhook() bool {
	return c.WebhookURL != ""
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
