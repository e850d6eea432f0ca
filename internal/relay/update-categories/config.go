package updatecategories

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled        bool          `mapstructure:"enabled"`
	Timeout        time.Duration `mapstructure:"timeout"`
	InterestPrefix string        `mapstructure:"interest_prefix"`
	MaxCategories  int           `mapstructure:"max_categories"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		Timeout:        30 * time.Second,
		InterestPrefix: "interest_",
		MaxCategories:  64,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.InterestPrefix == "" {
		return fmt.Errorf("interest_prefix is required")
	}
	if c.MaxCategories <= 0 {
		return fmt.Errorf("max_categories must be positive")
	}
	return nil
}
