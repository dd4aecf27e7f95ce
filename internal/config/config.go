package config

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type DB struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Name     string `env:"POSTGRES_DATABASE"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
}

// DSN is the lib/pq connection string.
func (db DB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.User, db.Password, db.Name, db.SSLMode,
	)
}

type S3 struct {
	Endpoint        string        `env:"S3_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey       string        `env:"AWS_ACCESS_KEY_ID"`
	SecretKey       string        `env:"AWS_SECRET_ACCESS_KEY"`
	Region          string        `env:"AWS_REGION" envDefault:"us-east-1"`
	UseSSL          bool          `env:"S3_USE_SSL" envDefault:"true"`
	PublicBucket    string        `env:"S3_PUBLIC_BUCKET_NAME"`
	BackupBucket    string        `env:"S3_SQL_BACKUP_BUCKET_NAME"`
	PublicFacingURL string        `env:"S3_PUBLIC_FACING_URL"`
	PresignTTL      time.Duration `env:"S3_PRESIGN_TTL" envDefault:"5m"`
	TempReapGrace   time.Duration `env:"S3_TEMP_REAP_GRACE" envDefault:"10m"`
}

type OAuthProvider struct {
	ClientID     string
	ClientSecret string
}

type OAuth struct {
	DiscordClientID     string `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	GoogleClientID      string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string `env:"GOOGLE_CLIENT_SECRET"`
	GithubClientID      string `env:"GITHUB_CLIENT_ID"`
	GithubClientSecret  string `env:"GITHUB_CLIENT_SECRET"`
}

// Providers returns the configured providers keyed by goth provider name.
// Providers without a client id are left out.
func (o OAuth) Providers() map[string]OAuthProvider {
	all := map[string]OAuthProvider{
		"discord": {o.DiscordClientID, o.DiscordClientSecret},
		"google":  {o.GoogleClientID, o.GoogleClientSecret},
		"github":  {o.GithubClientID, o.GithubClientSecret},
	}
	for name, p := range all {
		if p.ClientID == "" {
			delete(all, name)
		}
	}
	return all
}

type Config struct {
	ServerPort        int    `env:"SERVER_PORT" envDefault:"8080"`
	WebsiteURL        string `env:"WEBSITE_URL"`
	Debug             bool   `env:"DEBUG" envDefault:"false"`
	SessionSecret     string `env:"SESSION_SECRET"`
	ImportTokenSecret string `env:"IMPORT_TOKEN_SECRET"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string `env:"LOG_FORMAT" envDefault:"console"`
	PgDumpPath        string `env:"PG_DUMP_PATH" envDefault:"pg_dump"`
	DB                DB
	S3                S3
	OAuth             OAuth
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.WebsiteURL = strings.TrimSuffix(cfg.WebsiteURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	required := map[string]string{
		"POSTGRES_USER":             c.DB.User,
		"POSTGRES_DATABASE":         c.DB.Name,
		"S3_PUBLIC_BUCKET_NAME":     c.S3.PublicBucket,
		"S3_SQL_BACKUP_BUCKET_NAME": c.S3.BackupBucket,
		"WEBSITE_URL":               c.WebsiteURL,
	}
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.SessionSecret == "" && !c.Debug {
		return errors.New("SESSION_SECRET must be set outside of debug mode")
	}
	return nil
}

// OAuthCallbackURL is where a provider redirects after the handshake.
func (c *Config) OAuthCallbackURL(provider string) string {
	return c.WebsiteURL + "/user/oauth2/" + provider + "/callback"
}

