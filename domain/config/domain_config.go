package config

import "fmt"

// Node title bounds. Titles are counted in runes.
const (
	MinTitleLength = 1
	MaxTitleLength = 200
)

// DomainConfig holds the configurable rules of the suggestion engine
type DomainConfig struct {
	// Layout: the footprint of a rendered node and the gap kept between
	// neighbours. The radial placement radius is NodeWidth + NodeGap.
	NodeWidth  float64
	NodeHeight float64
	NodeGap    float64

	// OptionsMinCount is the smallest OPTIONS list worth rendering. Shorter
	// lists are dropped whole. Call sites may override it per parse.
	OptionsMinCount int
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		NodeWidth:       280,
		NodeHeight:      120,
		NodeGap:         80,
		OptionsMinCount: 4,
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.NodeWidth <= 0 || c.NodeHeight <= 0 {
		return fmt.Errorf("node footprint must be positive, got %vx%v", c.NodeWidth, c.NodeHeight)
	}
	if c.NodeGap < 0 {
		return fmt.Errorf("node gap must not be negative, got %v", c.NodeGap)
	}
	if c.OptionsMinCount < 0 {
		return fmt.Errorf("options minimum must not be negative, got %d", c.OptionsMinCount)
	}
	return nil
}
