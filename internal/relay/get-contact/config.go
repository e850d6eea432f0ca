package getcontact

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"` // zero disables the cache
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:  true,
		Timeout:  15 * time.Second,
		CacheTTL: 5 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative")
	}
	return nil
}
