package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// MailingListConfig holds credentials and endpoints for the Sympa host.
type MailingListConfig struct {
	BaseURL             string
	Username            string
	Password            string
	ListName            string
	SessionCookiePrefix string
}

// CRMConfig holds the Zoho Creator OAuth client and report coordinates.
type CRMConfig struct {
	OAuthHost    string
	APIHost      string
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccountName  string
	ReportName   string
	PageSize     int
	RateLimit    float64 // pages per second
}

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL     string
	MailingList     MailingListConfig
	CRM             CRMConfig
	TelegramToken   string // optional; reporting and admin commands are disabled when empty
	AdminTelegramID int64
	LogLevel        string
	Environment     string
	CronSpec        string
	RunTimeout      time.Duration
	HTTPTimeout     time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// LoadLedger reads only what the ledger-only commands need: the database and logging.
func LoadLedger() (*AppConfig, error) {
	_ = godotenv.Load()
	return LedgerFromEnv(os.Getenv)
}

// LedgerFromEnv fills DatabaseURL, LogLevel and Environment. Sync credentials are left empty.
func LedgerFromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{DatabaseURL: getenv("DATABASE_URL")}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	cfg.LogLevel = strings.ToLower(withDefault(getenv("LOG_LEVEL"), "info"))
	cfg.Environment = strings.ToLower(withDefault(getenv("ENVIRONMENT"), "development"))
	return cfg, nil
}

// FromEnv builds the configuration from a lookup function, so tests need not touch the process environment.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg, err := LedgerFromEnv(getenv)
	if err != nil {
		return nil, err
	}

	required := map[string]*string{
		"RISEUP_USERNAME":    &cfg.MailingList.Username,
		"RISEUP_PASSWORD":    &cfg.MailingList.Password,
		"RISEUP_LIST_NAME":   &cfg.MailingList.ListName,
		"ZOHO_CLIENT_ID":     &cfg.CRM.ClientID,
		"ZOHO_CLIENT_SECRET": &cfg.CRM.ClientSecret,
		"ZOHO_REFRESH_TOKEN": &cfg.CRM.RefreshToken,
		"ZOHO_ACCOUNT_NAME":  &cfg.CRM.AccountName,
	}
	for _, key := range []string{
		"RISEUP_USERNAME", "RISEUP_PASSWORD", "RISEUP_LIST_NAME",
		"ZOHO_CLIENT_ID", "ZOHO_CLIENT_SECRET", "ZOHO_REFRESH_TOKEN", "ZOHO_ACCOUNT_NAME",
	} {
		v := getenv(key)
		if v == "" {
			return nil, fmt.Errorf("%s is not set", key)
		}
		*required[key] = v
	}

	cfg.MailingList.BaseURL = withDefault(getenv("RISEUP_BASE_URL"), "https://lists.riseup.net")
	cfg.MailingList.SessionCookiePrefix = withDefault(getenv("RISEUP_SESSION_COOKIE_PREFIX"), "sympa_session")

	cfg.CRM.OAuthHost = withDefault(getenv("ZOHO_OAUTH_HOST"), "https://accounts.zoho.com")
	cfg.CRM.APIHost = withDefault(getenv("ZOHO_API_HOST"), "https://www.zohoapis.com")
	cfg.CRM.ReportName = withDefault(getenv("ZOHO_REPORT_NAME"), "Members_Form_View")

	cfg.CRM.PageSize = 1000
	if v := getenv("ZOHO_PAGE_SIZE"); v != "" {
		cfg.CRM.PageSize, err = strconv.Atoi(v)
		if err != nil || cfg.CRM.PageSize <= 0 {
			return nil, fmt.Errorf("invalid ZOHO_PAGE_SIZE: %q", v)
		}
	}

	cfg.CRM.RateLimit = 2
	if v := getenv("ZOHO_RATE_LIMIT"); v != "" {
		cfg.CRM.RateLimit, err = strconv.ParseFloat(v, 64)
		if err != nil || cfg.CRM.RateLimit <= 0 {
			return nil, fmt.Errorf("invalid ZOHO_RATE_LIMIT: %q", v)
		}
	}

	cfg.TelegramToken = getenv("TELEGRAM_TOKEN")
	if adminIDStr := getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
	}

	// Default: every day at 06:00
	cfg.CronSpec = withDefault(getenv("CRON_SPEC"), "0 6 * * *")

	cfg.RunTimeout, err = durationOr(getenv("RUN_TIMEOUT"), 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid RUN_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout, err = durationOr(getenv("HTTP_TIMEOUT"), 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// TelegramEnabled reports whether the bot side channel is configured.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}
