package config // package config builds the runtime configuration from flags, environment variables and config.toml

import (
	"errors"  // errors defines the configuration sentinels
	"fmt"     // fmt builds the MySQL DSN
	"strings" // strings splits comma separated values
	"time"    // time converts TTL settings into durations

	"github.com/urfave/cli/v3"
)

// ErrSigningSecretMissing is returned when no JWT signing secret is
// configured.  The server refuses to start in that case.
var ErrSigningSecretMissing = errors.New("config: jwt signing secret is not configured")

// ErrTokenClaimsMissing is returned when the JWT issuer or audience is blank.
var ErrTokenClaimsMissing = errors.New("config: jwt issuer and audience must be set")

// ErrUnknownDriver is returned when the database driver is neither mysql nor sqlite.
var ErrUnknownDriver = errors.New("config: unknown database driver")

// ErrUnknownMailTransport is returned for an unsupported mail transport.
var ErrUnknownMailTransport = errors.New("config: unknown mail transport")

// Config holds all runtime configuration values.  It is built once at
// startup by NewFromCLI and then passed explicitly to every component that
// needs a setting; nothing reads the environment after that point.
type Config struct {
	Env       string // application environment (dev, test, prod)
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Mail      MailConfig
	AMQP      AMQPConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Seed      SeedConfig
}

// ServerConfig controls the HTTP listener and browser facing behaviour.
type ServerConfig struct {
	Host           string
	Port           int
	PublicURL      string   // base URL of the SPA, used to build links in emails
	AllowedOrigins []string // CORS origins allowed to send credentials
	CookieSecure   bool     // mark session cookies Secure
	BodyLimit      string   // echo body limit, e.g. "1M"
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// DatabaseConfig selects the SQL driver and its connection parameters.
// When DSN is empty and the driver is mysql, the DSN is assembled from the
// individual connection fields.
type DatabaseConfig struct {
	Driver string // mysql or sqlite
	DSN    string // full DSN, takes precedence over the fields below
	User   string // database username
	Pass   string // database password (optional)
	Host   string // database host address
	Port   string // database port number
	Name   string // database name
}

// ConnString returns the DSN handed to the driver.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" || d.Driver != "mysql" {
		return d.DSN
	}
	auth := d.User
	if d.Pass != "" {
		auth = fmt.Sprintf("%s:%s", d.User, d.Pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, d.Host, d.Port, d.Name)
}

// AuthConfig carries everything the token codec and the session services need.
type AuthConfig struct {
	JWTSecret  string        // secret used to sign JWTs
	Issuer     string        // iss claim
	Audience   string        // aud claim
	AccessTTL  time.Duration // access token lifetime
	RefreshTTL time.Duration // refresh token lifetime
	ConfirmTTL time.Duration // email confirmation token lifetime
	ResetTTL   time.Duration // password reset token lifetime
	BcryptCost int           // bcrypt cost for password hashing
}

// MailConfig selects how outgoing mail leaves the process.
//
//	log   – messages are only written to the application log
//	smtp  – messages are delivered synchronously over SMTP
//	queue – messages are published to RabbitMQ and delivered by the mail worker
type MailConfig struct {
	Transport string
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	FromName  string
	TLS       bool
}

// AMQPConfig points at the broker used by the queue mail transport.
type AMQPConfig struct {
	URL   string
	Queue string
}

// SeedConfig optionally bootstraps a SuperAdmin account at startup.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
}

// NewFromCLI reads every flag from the command and returns the assembled Config.
func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Env: cmd.String("env"),
		Server: ServerConfig{
			Host:           cmd.String("host"),
			Port:           int(cmd.Int("port")),
			PublicURL:      strings.TrimSuffix(cmd.String("public-url"), "/"),
			AllowedOrigins: splitList(cmd.String("cors-origins")),
			CookieSecure:   cmd.Bool("cookie-secure"),
			BodyLimit:      cmd.String("body-limit"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(cmd.String("db-driver")),
			DSN:    cmd.String("db-dsn"),
			User:   cmd.String("db-user"),
			Pass:   cmd.String("db-pass"),
			Host:   cmd.String("db-host"),
			Port:   cmd.String("db-port"),
			Name:   cmd.String("db-name"),
		},
		Auth: AuthConfig{
			JWTSecret:  cmd.String("jwt-secret"),
			Issuer:     cmd.String("jwt-issuer"),
			Audience:   cmd.String("jwt-audience"),
			AccessTTL:  time.Duration(cmd.Int("access-ttl-min")) * time.Minute,
			RefreshTTL: time.Duration(cmd.Int("refresh-ttl-days")) * 24 * time.Hour,
			ConfirmTTL: cmd.Duration("confirm-ttl"),
			ResetTTL:   cmd.Duration("reset-ttl"),
			BcryptCost: int(cmd.Int("bcrypt-cost")),
		},
		Mail: MailConfig{
			Transport: strings.ToLower(cmd.String("mail-transport")),
			Host:      cmd.String("smtp-host"),
			Port:      int(cmd.Int("smtp-port")),
			Username:  cmd.String("smtp-username"),
			Password:  cmd.String("smtp-password"),
			From:      cmd.String("smtp-from"),
			FromName:  cmd.String("smtp-from-name"),
			TLS:       cmd.Bool("smtp-tls"),
		},
		AMQP: AMQPConfig{
			URL:   cmd.String("amqp-url"),
			Queue: cmd.String("amqp-mail-queue"),
		},
		Redis: RedisConfig{
			Addr:     cmd.String("redis-addr"),
			Password: cmd.String("redis-password"),
			DB:       int(cmd.Int("redis-db")),
			TLS:      cmd.Bool("redis-tls"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        cmd.Bool("rate-limit-enabled"),
			Capacity:       int(cmd.Int("rate-limit-capacity")),
			RefillTokens:   int(cmd.Int("rate-limit-refill-tokens")),
			RefillInterval: cmd.Duration("rate-limit-refill-interval"),
			TTL:            cmd.Duration("rate-limit-ttl"),
			KeyStrategy:    cmd.String("rate-limit-key-strategy"),
			Prefix:         cmd.String("rate-limit-prefix"),
			Debug:          cmd.Bool("rate-limit-debug"),
		}.Normalize(),
		Cache: CacheConfig{
			Enabled:      cmd.Bool("cache-enabled"),
			Methods:      parseMethods(cmd.String("cache-methods")),
			TTL:          cmd.Duration("cache-ttl"),
			KeyStrategy:  cmd.String("cache-key-strategy"),
			Prefix:       cmd.String("cache-prefix"),
			MaxBodyBytes: int(cmd.Int("cache-max-body-bytes")),
		},
		Seed: SeedConfig{
			AdminEmail:    cmd.String("seed-admin-email"),
			AdminPassword: cmd.String("seed-admin-password"),
		},
	}
	return cfg
}

// Validate reports the first configuration problem that must stop startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return ErrSigningSecretMissing
	}
	if strings.TrimSpace(c.Auth.Issuer) == "" || strings.TrimSpace(c.Auth.Audience) == "" {
		return ErrTokenClaimsMissing
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Database.Driver)
	}
	switch c.Mail.Transport {
	case "log", "smtp", "queue":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMailTransport, c.Mail.Transport)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
