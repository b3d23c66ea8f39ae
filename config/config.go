// Package config loads TOML configuration for the sACN command-line tools.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/gopatchy/sacn/logger"
	"github.com/gopatchy/sacn/packet"
)

// Config is the top-level configuration shared by the tools under cmd/.
type Config struct {
	// Interface names the network interface used for multicast; empty
	// means the OS default.
	Interface string `toml:"interface"`

	// Listen is the receiver bind address; defaults to ":5568".
	Listen string `toml:"listen"`

	// Universes lists the data universes to listen to or send on.
	Universes []uint16 `toml:"universes"`

	Receive ReceiveConfig `toml:"receive"`
	Send    SendConfig    `toml:"send"`
	Log     logger.Config `toml:"log"`
}

// ReceiveConfig adjusts receiver behavior.
type ReceiveConfig struct {
	// SourceCap limits distinct source CIDs; 0 means unlimited.
	SourceCap int `toml:"source_cap"`

	ProcessPreview      bool `toml:"process_preview"`
	AnnounceDiscovery   bool `toml:"announce_discovery"`
	AnnounceTermination bool `toml:"announce_termination"`
	AnnounceTimeout     bool `toml:"announce_timeout"`

	// Merge selects the pending-frame merge policy: "priority" (default)
	// or "htp".
	Merge string `toml:"merge"`
}

// SendConfig adjusts sender behavior.
type SendConfig struct {
	// SourceName is the advertised source name; defaults to the tool name.
	SourceName string `toml:"source_name"`

	// Priority for transmitted data; 0 means the protocol default of 100.
	Priority uint8 `toml:"priority"`

	// SyncUniverse, when nonzero, synchronizes all transmitted universes
	// to it.
	SyncUniverse uint16 `toml:"sync_universe"`

	// Destination overrides multicast with a unicast address.
	Destination string `toml:"destination"`

	// Discovery enables periodic universe discovery advertisement.
	Discovery bool `toml:"discovery"`
}

// Load loads and validates configuration from a TOML file.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes defaults and rejects out-of-range values.
func (c *Config) Validate() error {
	if c.Listen == "" {
		c.Listen = fmt.Sprintf(":%d", packet.Port)
	}

	for _, u := range c.Universes {
		if err := packet.ValidateUniverse(u); err != nil {
			return err
		}
	}

	if c.Receive.SourceCap < 0 {
		return fmt.Errorf("receive.source_cap must not be negative")
	}
	switch c.Receive.Merge {
	case "", "priority", "htp":
	default:
		return fmt.Errorf("receive.merge %q: want priority or htp", c.Receive.Merge)
	}

	if c.Send.Priority > packet.MaxPriority {
		return fmt.Errorf("send.priority %d exceeds %d", c.Send.Priority, packet.MaxPriority)
	}
	if c.Send.SyncUniverse != 0 {
		if err := packet.ValidateUniverse(c.Send.SyncUniverse); err != nil {
			return err
		}
	}
	if len(c.Send.SourceName) > packet.SourceNameLen-1 {
		return fmt.Errorf("send.source_name %d bytes, max %d", len(c.Send.SourceName), packet.SourceNameLen-1)
	}
	return nil
}
