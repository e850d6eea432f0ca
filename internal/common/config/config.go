// internal/common/config/config.go
package config

import (
	"fmt"
	"strings"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig                `mapstructure:"app"`
	Server        ServerConfig             `mapstructure:"server"`
	HubSpot       HubSpotConfig            `mapstructure:"hubspot"`
	Properties    PropertiesConfig         `mapstructure:"properties"`
	Relay         RelayConfig              `mapstructure:"relay"`
	Certificate   CertificateConfig        `mapstructure:"certificate"`
	Tally         TallyConfig              `mapstructure:"tally"`
	ContactCache  ContactCacheConfig       `mapstructure:"contact_cache"`
	Notifications NotificationConfig       `mapstructure:"notifications"`
	Database      DatabaseConfig           `mapstructure:"database"`
	Handlers      map[string]HandlerConfig `mapstructure:"handlers"`
	Logging       LoggingConfig            `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Configured reports whether a settings database was configured at all.
func (p PostgresConfig) Configured() bool {
	return p.Host != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Configured() bool {
	return r.Address != ""
}

// HandlerConfig holds the settings applicable to every relay endpoint.
type HandlerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Timeout int  `mapstructure:"timeout"` // milliseconds
}

// --- CRM and relay behaviour ---

// HubSpotConfig holds the CRM connection. Token, portal and form id seed the
// runtime settings snapshot and can be replaced through the settings store.
type HubSpotConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Token    string `mapstructure:"token"`
	PortalID string `mapstructure:"portal_id"`
	FormID   string `mapstructure:"form_id"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds, per outbound call
}

// PropertiesConfig names the custom contact properties written by the relay.
type PropertiesConfig struct {
	CourseCompleted string `mapstructure:"course_completed"`
	CompletedAt     string `mapstructure:"completed_at"`
	InterestPrefix  string `mapstructure:"interest_prefix"`
}

const (
	MissPolicyCreate = "create"
	MissPolicyReject = "reject"

	AuthModeSharedSecret = "shared_secret"
	AuthModeOpen         = "open"
)

type RelayConfig struct {
	MissPolicy    string `mapstructure:"miss_policy"`
	AuthMode      string `mapstructure:"auth_mode"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	AdminAPIKey   string `mapstructure:"admin_api_key"`
	SessionSecret string `mapstructure:"session_secret"`
	ThankYouSlug  string `mapstructure:"thank_you_slug"`
	CookieSecure  bool   `mapstructure:"cookie_secure"`
}

type CertificateConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// TallyConfig bounds the server-side interest tally buffer.
type TallyConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	TTLHours      int  `mapstructure:"ttl_hours"`
	MaxCategories int  `mapstructure:"max_categories"`
}

type ContactCacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

// NotificationConfig holds the optional completion fan-out sinks.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
	Kafka struct {
		Enabled bool     `mapstructure:"enabled"`
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NormalizedMissPolicy lower-cases and trims the configured policy.
func (r RelayConfig) NormalizedMissPolicy() string {
	return strings.ToLower(strings.TrimSpace(r.MissPolicy))
}
