package trackview

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxCategories int           `mapstructure:"max_categories"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		Timeout:       5 * time.Second,
		MaxCategories: 64,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxCategories <= 0 {
		return fmt.Errorf("max_categories must be positive")
	}
	return nil
}
