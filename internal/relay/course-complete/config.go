package coursecomplete

import (
	"fmt"
	"time"

	"graphwise-relay/internal/common/config"
)

type Config struct {
	Enabled            bool          `mapstructure:"enabled"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MissPolicy         string        `mapstructure:"miss_policy"`
	CertificateEnabled bool          `mapstructure:"certificate_enabled"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		Timeout:    30 * time.Second,
		MissPolicy: config.MissPolicyCreate,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	switch c.MissPolicy {
	case config.MissPolicyCreate, config.MissPolicyReject:
	default:
		return fmt.Errorf("miss_policy must be %q or %q", config.MissPolicyCreate, config.MissPolicyReject)
	}
	return nil
}
