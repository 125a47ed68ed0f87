package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Document store for users and feedback: "postgres" or "mongo"
	DocumentStore string
	MongoURI      string
	MongoDatabase string

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	Port        string
	CORSOrigins string
	BaseURL     string
	SiteURL     string

	// Billing provider (RevenueCat)
	RevenueCatAPIKey        string
	RevenueCatAPIURL        string
	RevenueCatEntitlementID string
	RevenueCatPlatform      string
	RevenueCatWebhookAuth   string
	BillingTimeout          time.Duration

	// Identity providers
	Google         OAuthConfig
	GitHub         OAuthConfig
	AppleClientIDs string

	// Email relay
	SMTP               SMTPConfig
	FeedbackAdminEmail string

	// CRM / CMS forwarding
	CRMBackend         string
	HubSpotToken       string
	HubSpotAPIURL      string
	HubSpotFeedbackObj string
	HubSpotPipeline    string
	AirtableToken      string
	AirtableBaseID     string
	AirtableTable      string
	NotionToken        string
	NotionDatabaseID   string
	StrapiURL          string
	StrapiToken        string
	FeedbackWebhookURL string
	CRMTimeout         time.Duration

	// Redis (CRM contact cache)
	RedisURL      string
	ContactTTL    time.Duration
	FanOutTimeout time.Duration

	// Logging
	LogLevel         string
	LogRetentionDays int
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "thrive_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		DocumentStore: getEnv("DOCUMENT_STORE", "postgres"),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "thrivewithai"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "720h"), 720*time.Hour),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		SiteURL:     getEnv("SITE_URL", "https://thrivewithai.com"),

		RevenueCatAPIKey:        getEnv("REVENUECAT_API_KEY", ""),
		RevenueCatAPIURL:        getEnv("REVENUECAT_API_URL", "https://api.revenuecat.com/v1"),
		RevenueCatEntitlementID: getEnv("REVENUECAT_ENTITLEMENT_ID", "premium"),
		RevenueCatPlatform:      getEnv("REVENUECAT_PLATFORM", "stripe"),
		RevenueCatWebhookAuth:   getEnv("REVENUECAT_WEBHOOK_AUTH", ""),
		BillingTimeout:          parseDuration(getEnv("BILLING_TIMEOUT", "10s"), 10*time.Second),

		Google: OAuthConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		},
		GitHub: OAuthConfig{
			ClientID:     getEnv("GITHUB_CLIENT_ID", ""),
			ClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GITHUB_REDIRECT_URL", ""),
		},
		AppleClientIDs: getEnv("APPLE_CLIENT_IDS", ""),

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
		FeedbackAdminEmail: getEnv("FEEDBACK_ADMIN_EMAIL", ""),

		CRMBackend:         getEnv("CRM_BACKEND", "none"),
		HubSpotToken:       getEnv("HUBSPOT_ACCESS_TOKEN", ""),
		HubSpotAPIURL:      getEnv("HUBSPOT_API_URL", "https://api.hubapi.com"),
		HubSpotFeedbackObj: getEnv("HUBSPOT_FEEDBACK_OBJECT", "p_feedback"),
		HubSpotPipeline:    getEnv("HUBSPOT_TICKET_PIPELINE", "0"),
		AirtableToken:      getEnv("AIRTABLE_TOKEN", ""),
		AirtableBaseID:     getEnv("AIRTABLE_BASE_ID", ""),
		AirtableTable:      getEnv("AIRTABLE_TABLE", "Feedback"),
		NotionToken:        getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID:   getEnv("NOTION_DATABASE_ID", ""),
		StrapiURL:          getEnv("STRAPI_URL", ""),
		StrapiToken:        getEnv("STRAPI_TOKEN", ""),
		FeedbackWebhookURL: getEnv("FEEDBACK_WEBHOOK_URL", ""),
		CRMTimeout:         parseDuration(getEnv("CRM_TIMEOUT", "15s"), 15*time.Second),

		RedisURL:      getEnv("REDIS_URL", ""),
		ContactTTL:    parseDuration(getEnv("CRM_CONTACT_TTL", "24h"), 24*time.Hour),
		FanOutTimeout: parseDuration(getEnv("FANOUT_TIMEOUT", "30s"), 30*time.Second),

		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogRetentionDays: parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// UsesMongo reports whether users and feedback live in MongoDB.
func (c *Config) UsesMongo() bool {
	return c.DocumentStore == "mongo"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
