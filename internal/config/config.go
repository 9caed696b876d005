package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`

	StoreDriver  string `mapstructure:"STORE_DRIVER"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	WorkbookPath string `mapstructure:"WORKBOOK_PATH"`

	RedisURL    string        `mapstructure:"REDIS_URL"`
	LockTimeout time.Duration `mapstructure:"LOCK_TIMEOUT"`
	Timezone    string        `mapstructure:"TIMEZONE"`
	JWTSecret   string        `mapstructure:"JWT_SECRET"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	IMAPAddr      string `mapstructure:"IMAP_ADDR"`
	IMAPUser      string `mapstructure:"IMAP_USER"`
	IMAPPassword  string `mapstructure:"IMAP_PASSWORD"`
	IMAPMailboxes string `mapstructure:"IMAP_MAILBOXES"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRefreshToken string `mapstructure:"GOOGLE_REFRESH_TOKEN"`

	StorageDriver        string `mapstructure:"STORAGE_DRIVER"`
	StorageLocalDir      string `mapstructure:"STORAGE_LOCAL_DIR"`
	StoragePublicBaseURL string `mapstructure:"STORAGE_PUBLIC_BASE_URL"`
	S3Bucket             string `mapstructure:"S3_BUCKET"`
	S3Region             string `mapstructure:"S3_REGION"`
	S3AccessKey          string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey          string `mapstructure:"S3_SECRET_KEY"`

	SettingsRefresh string `mapstructure:"SETTINGS_REFRESH"`
}

const (
	StoreMemory   = "memory"
	StoreXLSX     = "xlsx"
	StorePostgres = "postgres"

	StorageLocal = "local"
	StorageS3    = "s3"
)

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("WORKBOOK_PATH", "data/tadasupo.xlsx")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOCK_TIMEOUT", "20s")
	v.SetDefault("TIMEZONE", "Asia/Tokyo")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "")
	v.SetDefault("IMAP_ADDR", "")
	v.SetDefault("IMAP_USER", "")
	v.SetDefault("IMAP_PASSWORD", "")
	v.SetDefault("IMAP_MAILBOXES", "INBOX,Sent")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REFRESH_TOKEN", "")
	v.SetDefault("STORAGE_DRIVER", StorageLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "data/files")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "ap-northeast-1")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("SETTINGS_REFRESH", "@every 5m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreXLSX:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.StorageDriver {
	case StorageLocal:
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("STORAGE_DRIVER=s3 requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// Location resolves TIMEZONE, falling back to a fixed JST offset when the
// zone database is unavailable.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("JST", 9*3600)
	}
	return loc
}

// MailConfigured reports whether SMTP delivery is set up.
func (c Config) MailConfigured() bool {
	return c.SMTPHost != "" && c.MailFrom != ""
}

// IMAPCredentials returns the mailbox login, reusing the SMTP account when
// no separate one is set.
func (c Config) IMAPCredentials() (user, password string) {
	user, password = c.IMAPUser, c.IMAPPassword
	if user == "" {
		user, password = c.SMTPUser, c.SMTPPassword
	}
	return user, password
}

// Mailboxes splits IMAP_MAILBOXES on commas.
func (c Config) Mailboxes() []string {
	var out []string
	for _, m := range strings.Split(c.IMAPMailboxes, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// GoogleConfigured reports whether Calendar credentials are present.
func (c Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRefreshToken != ""
}
