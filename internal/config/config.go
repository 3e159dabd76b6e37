package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/memohai/tgmirror/internal/channel"
)

const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":8080"
	DefaultJWTExpiresIn       = "24h"
	DefaultAdminUsername      = "admin"
	DefaultPollTimeout        = 30
	DefaultRequestTimeout     = "30s"
	DefaultWorkers            = 4
	DefaultQueueSize          = 256
	DefaultFetchConcurrency   = 8
	DefaultFetchTimeout       = "60s"
	DefaultMaxAttachmentBytes = 200 << 20
	DefaultArchiveRoot        = "data/archive"
	DefaultJournalDriver      = "none"
	DefaultSQLitePath         = "data/journal.db"
	DefaultAMQPExchange       = "tgmirror"
	DefaultAMQPRoutingKey     = "mirror.dispatched"
	DefaultPGHost             = "127.0.0.1"
	DefaultPGPort             = 5432
	DefaultPGUser             = "postgres"
	DefaultPGDatabase         = "tgmirror"
	DefaultPGSSLMode          = "disable"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Telegram TelegramConfig `toml:"telegram"`
	Discord  DiscordConfig  `toml:"discord"`
	Mirror   MirrorConfig   `toml:"mirror"`
	Routes   RoutesConfig   `toml:"routes"`
	Archive  ArchiveConfig  `toml:"archive"`
	Journal  JournalConfig  `toml:"journal"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret         string `toml:"jwt_secret"`
	JWTExpiresIn      string `toml:"jwt_expires_in"`
	AdminUsername     string `toml:"admin_username"`
	AdminPasswordHash string `toml:"admin_password_hash"`
}

type TelegramConfig struct {
	BotToken       string `toml:"bot_token"`
	APIEndpoint    string `toml:"api_endpoint"`
	FileEndpoint   string `toml:"file_endpoint"`
	PollTimeout    int    `toml:"poll_timeout" validate:"gte=0,lte=600"`
	RenderEntities bool   `toml:"render_entities"`
}

type DiscordConfig struct {
	RequestTimeout string `toml:"request_timeout"`
	RatePerMinute  int    `toml:"rate_per_minute" validate:"gte=0"`
}

type MirrorConfig struct {
	DefaultUsername    string `toml:"default_username"`
	DefaultAvatarURL   string `toml:"default_avatar_url" validate:"omitempty,http_url"`
	Workers            int    `toml:"workers" validate:"gte=1"`
	QueueSize          int    `toml:"queue_size" validate:"gte=1"`
	FetchConcurrency   int    `toml:"fetch_concurrency" validate:"gte=0"`
	FetchTimeout       string `toml:"fetch_timeout"`
	MaxAttachmentBytes int64  `toml:"max_attachment_bytes" validate:"gte=0"`
	StrictMime         bool   `toml:"strict_mime"`
}

type RoutesConfig struct {
	File           string                 `toml:"file"`
	ReloadSchedule string                 `toml:"reload_schedule"`
	Channels       []channel.ChannelRoute `toml:"channels" validate:"dive"`
}

type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Root    string `toml:"root"`
}

type JournalConfig struct {
	Driver   string         `toml:"driver" validate:"oneof=none postgres sqlite amqp"`
	Postgres PostgresConfig `toml:"postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	AMQP     AMQPConfig     `toml:"amqp"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type AMQPConfig struct {
	URL        string `toml:"url"`
	Exchange   string `toml:"exchange"`
	RoutingKey string `toml:"routing_key"`
}

// DSN renders the connection URL understood by pgx.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

func (c AuthConfig) JWTExpiry() time.Duration {
	return mustDuration(c.JWTExpiresIn, DefaultJWTExpiresIn)
}

func (c DiscordConfig) Timeout() time.Duration {
	return mustDuration(c.RequestTimeout, DefaultRequestTimeout)
}

func (c MirrorConfig) FetchTimeoutDuration() time.Duration {
	return mustDuration(c.FetchTimeout, DefaultFetchTimeout)
}

// AdminEnabled reports whether the authenticated admin endpoints are served.
func (c Config) AdminEnabled() bool {
	return strings.TrimSpace(c.Auth.JWTSecret) != ""
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn:  DefaultJWTExpiresIn,
			AdminUsername: DefaultAdminUsername,
		},
		Telegram: TelegramConfig{
			PollTimeout: DefaultPollTimeout,
		},
		Discord: DiscordConfig{
			RequestTimeout: DefaultRequestTimeout,
		},
		Mirror: MirrorConfig{
			DefaultUsername:    channel.DefaultUsername,
			DefaultAvatarURL:   channel.DefaultAvatarURL,
			Workers:            DefaultWorkers,
			QueueSize:          DefaultQueueSize,
			FetchConcurrency:   DefaultFetchConcurrency,
			FetchTimeout:       DefaultFetchTimeout,
			MaxAttachmentBytes: DefaultMaxAttachmentBytes,
		},
		Archive: ArchiveConfig{
			Root: DefaultArchiveRoot,
		},
		Journal: JournalConfig{
			Driver: DefaultJournalDriver,
			Postgres: PostgresConfig{
				Host:     DefaultPGHost,
				Port:     DefaultPGPort,
				User:     DefaultPGUser,
				Database: DefaultPGDatabase,
				SSLMode:  DefaultPGSSLMode,
			},
			SQLite: SQLiteConfig{
				Path: DefaultSQLitePath,
			},
			AMQP: AMQPConfig{
				Exchange:   DefaultAMQPExchange,
				RoutingKey: DefaultAMQPRoutingKey,
			},
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the settings each journal driver needs.
func (c Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		errs = append(errs, err)
	}
	for name, raw := range map[string]string{
		"auth.jwt_expires_in":     c.Auth.JWTExpiresIn,
		"discord.request_timeout": c.Discord.RequestTimeout,
		"mirror.fetch_timeout":    c.Mirror.FetchTimeout,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, raw))
		}
	}
	switch c.Journal.Driver {
	case "postgres":
		if strings.TrimSpace(c.Journal.Postgres.Host) == "" || strings.TrimSpace(c.Journal.Postgres.Database) == "" {
			errs = append(errs, errors.New("journal.postgres: host and database are required"))
		}
	case "sqlite":
		if strings.TrimSpace(c.Journal.SQLite.Path) == "" {
			errs = append(errs, errors.New("journal.sqlite: path is required"))
		}
	case "amqp":
		if strings.TrimSpace(c.Journal.AMQP.URL) == "" || strings.TrimSpace(c.Journal.AMQP.Exchange) == "" {
			errs = append(errs, errors.New("journal.amqp: url and exchange are required"))
		}
	}
	if c.Archive.Enabled && strings.TrimSpace(c.Archive.Root) == "" {
		errs = append(errs, errors.New("archive: root is required when enabled"))
	}
	if c.AdminEnabled() && strings.TrimSpace(c.Auth.AdminPasswordHash) == "" {
		errs = append(errs, errors.New("auth: admin_password_hash is required when jwt_secret is set"))
	}
	return errors.Join(errs...)
}

func mustDuration(raw, fallback string) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}
