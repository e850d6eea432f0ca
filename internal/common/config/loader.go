// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")
	if root := findProjectRoot(); root != "" {
		v.AddConfigPath(filepath.Join(root, "configs"))
	}
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading %s config: %w", env, err)
		}
	}

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up towards the module root.
func loadEnvFile() string {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills credentials that are still empty from the
// environment. Credentials never have in-code defaults.
func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.HubSpot.Token, "HUBSPOT_TOKEN"},
		{&cfg.HubSpot.PortalID, "HUBSPOT_PORTAL_ID"},
		{&cfg.HubSpot.FormID, "HUBSPOT_FORM_ID"},
		{&cfg.Relay.WebhookSecret, "WEBHOOK_SECRET"},
		{&cfg.Relay.AdminAPIKey, "ADMIN_API_KEY"},
		{&cfg.Relay.SessionSecret, "SESSION_SECRET"},
		{&cfg.Certificate.URL, "CERTIFICATE_SERVICE_URL"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
		{&cfg.Database.Redis.Password, "REDIS_PASSWORD"},
	}

	for _, o := range overrides {
		if *o.target != "" {
			continue
		}
		if val := os.Getenv(o.env); val != "" {
			*o.target = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "graphwise-relay"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.HubSpot.BaseURL == "" {
		cfg.HubSpot.BaseURL = "https://api.hubapi.com"
	}
	if cfg.HubSpot.Timeout == 0 {
		cfg.HubSpot.Timeout = 10000
	}

	if cfg.Properties.CourseCompleted == "" {
		cfg.Properties.CourseCompleted = "course_completed"
	}
	if cfg.Properties.CompletedAt == "" {
		cfg.Properties.CompletedAt = "completed_at"
	}
	if cfg.Properties.InterestPrefix == "" {
		cfg.Properties.InterestPrefix = "interest_"
	}

	if cfg.Relay.MissPolicy == "" {
		cfg.Relay.MissPolicy = MissPolicyCreate
	}
	if cfg.Relay.AuthMode == "" {
		cfg.Relay.AuthMode = AuthModeSharedSecret
	}
	if cfg.Relay.ThankYouSlug == "" {
		cfg.Relay.ThankYouSlug = "thank-you"
	}

	if cfg.Certificate.Timeout == 0 {
		cfg.Certificate.Timeout = 10000
	}

	if cfg.Tally.TTLHours == 0 {
		cfg.Tally.TTLHours = 24 * 30
	}
	if cfg.Tally.MaxCategories == 0 {
		cfg.Tally.MaxCategories = 64
	}

	if cfg.ContactCache.TTLSeconds == 0 {
		cfg.ContactCache.TTLSeconds = 300
	}

	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	for key, handler := range cfg.Handlers {
		if handler.Timeout == 0 {
			handler.Timeout = 30000
		}
		cfg.Handlers[key] = handler
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	switch cfg.Relay.NormalizedMissPolicy() {
	case MissPolicyCreate, MissPolicyReject:
	default:
		return fmt.Errorf("relay.miss_policy must be %q or %q, got %q", MissPolicyCreate, MissPolicyReject, cfg.Relay.MissPolicy)
	}

	switch cfg.Relay.AuthMode {
	case AuthModeSharedSecret, AuthModeOpen:
	default:
		return fmt.Errorf("relay.auth_mode must be %q or %q, got %q", AuthModeSharedSecret, AuthModeOpen, cfg.Relay.AuthMode)
	}

	if cfg.HubSpot.Timeout < 0 || cfg.Certificate.Timeout < 0 {
		return fmt.Errorf("outbound timeouts must be positive")
	}

	if cfg.Certificate.Enabled && cfg.Certificate.URL == "" {
		return fmt.Errorf("certificate.url is required when certificate.enabled is true")
	}

	if cfg.Tally.MaxCategories < 0 {
		return fmt.Errorf("tally.max_categories must be positive")
	}

	if cfg.Database.Postgres.Configured() {
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	if cfg.Notifications.AWS.SNS.Enabled && cfg.Notifications.AWS.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.aws.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.AWS.SES.Enabled && cfg.Notifications.AWS.SES.FromEmail == "" {
		return fmt.Errorf("notifications.aws.ses.from_email is required when ses is enabled")
	}
	if cfg.Notifications.Kafka.Enabled && (len(cfg.Notifications.Kafka.Brokers) == 0 || cfg.Notifications.Kafka.Topic == "") {
		return fmt.Errorf("notifications.kafka.brokers and topic are required when kafka is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetHandlerConfig retrieves handler-specific configuration with fallback to defaults
func GetHandlerConfig(cfg *Config, name string) HandlerConfig {
	if cfg != nil {
		if handler, exists := cfg.Handlers[name]; exists {
			return handler
		}
	}

	return HandlerConfig{
		Enabled: true,
		Timeout: 30000,
	}
}

// IsHandlerEnabled checks if a specific handler is enabled
func IsHandlerEnabled(cfg *Config, name string) bool {
	return GetHandlerConfig(cfg, name).Enabled
}
