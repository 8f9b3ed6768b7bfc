package gallerypress

import (
	"fmt"
	"os"
	"strings"
)

// UploadStrategy selects how image bytes reach the platform's file storage.
type UploadStrategy string

const (
	// StrategyDirect submits the base64 attachment in one REST call.
	StrategyDirect UploadStrategy = "direct"
	// StrategyStaged requests a temporary upload target, posts the raw bytes
	// there as a multipart form, then registers the staged resource as a file.
	StrategyStaged UploadStrategy = "staged"
)

// Config holds all runtime configuration for a gallerypress instance.
// It is built once at startup and passed into components explicitly;
// business logic never reads the environment.
type Config struct {
	ShopDomain  string // e.g. "yourstore.myshopify.com"
	AccessToken string // Shopify admin API access token
	BlogID      string // numeric id of the blog articles are created under
	APIVersion  string // admin API version segment (default "2024-01")

	SendGridKey string
	MailFrom    string
	MailBCC     string // optional internal copy of every notification

	Addr           string   // listen address (default ":3000")
	AllowedOrigins []string // CORS allow-list; empty disables CORS entirely
	MaxBodySize    string   // request body cap, echo size string (default "8M")

	Strategy        UploadStrategy // file upload strategy (default direct)
	PublishArticles bool           // false leaves created articles as drafts
	ArticleTags     string         // comma-separated tags for created articles

	DatabasePath string // delivery log SQLite path (default "data/deliveries.db")

	AdminPassword string // required: operator login password
	SessionSecret string // required: session encryption secret
	CookieSecure  bool   // set true behind HTTPS
}

// FromEnv builds a Config from environment variables, failing fast with a
// descriptive error when a required value is absent.
func FromEnv() (Config, error) {
	cfg := Config{
		ShopDomain:    strings.TrimSpace(os.Getenv("SHOP_DOMAIN")),
		AccessToken:   os.Getenv("SHOPIFY_ACCESS_TOKEN"),
		BlogID:        strings.TrimSpace(os.Getenv("SHOPIFY_BLOG_ID")),
		APIVersion:    os.Getenv("SHOPIFY_API_VERSION"),
		SendGridKey:   os.Getenv("SENDGRID_API_KEY"),
		MailFrom:      strings.TrimSpace(os.Getenv("MAIL_FROM")),
		MailBCC:       strings.TrimSpace(os.Getenv("MAIL_BCC")),
		Addr:          os.Getenv("ADDR"),
		MaxBodySize:   os.Getenv("MAX_BODY_SIZE"),
		Strategy:      UploadStrategy(strings.ToLower(strings.TrimSpace(os.Getenv("UPLOAD_STRATEGY")))),
		ArticleTags:   os.Getenv("ARTICLE_TAGS"),
		DatabasePath:  os.Getenv("DATABASE_PATH"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
	}
	cfg.PublishArticles = strings.EqualFold(os.Getenv("ARTICLE_PUBLISH"), "true")
	cfg.CookieSecure = strings.EqualFold(os.Getenv("COOKIE_SECURE"), "true")
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, strings.TrimSuffix(o, "/"))
			}
		}
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) validate() error {
	required := []struct {
		name, value string
	}{
		{"SHOP_DOMAIN", c.ShopDomain},
		{"SHOPIFY_ACCESS_TOKEN", c.AccessToken},
		{"SHOPIFY_BLOG_ID", c.BlogID},
		{"SENDGRID_API_KEY", c.SendGridKey},
		{"MAIL_FROM", c.MailFrom},
		{"ADMIN_PASSWORD", c.AdminPassword},
		{"SESSION_SECRET", c.SessionSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("gallerypress: required environment variable %s is not set", r.name)
		}
	}
	switch c.Strategy {
	case "", StrategyDirect, StrategyStaged:
	default:
		return fmt.Errorf("gallerypress: invalid UPLOAD_STRATEGY %q (want %q or %q)", c.Strategy, StrategyDirect, StrategyStaged)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.APIVersion == "" {
		c.APIVersion = "2024-01"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "8M"
	}
	if c.Strategy == "" {
		c.Strategy = StrategyDirect
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/deliveries.db"
	}
}
