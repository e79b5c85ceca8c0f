// Package config loads node configuration from a TOML file, the way
// tve-devices/cmd/mqttradio loads RadioConfig/ModuleConfig: device
// role, table sizes, and timing constants are data, not separate
// binaries, per spec §9's "duplicated source trees → one code path
// parameterized by config" design note.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the full on-disk node configuration.
type Config struct {
	Node    NodeConfig    `toml:"node"`
	Radio   RadioConfig   `toml:"radio"`
	Timing  TimingConfig  `toml:"timing"`
	Storage StorageConfig `toml:"storage"`
}

// NodeConfig selects device role and identity policy.
type NodeConfig struct {
	// Coordinator, when true, makes this node the PAN coordinator
	// (depth 0, address 0x0000, fixed well-known PAN id).
	Coordinator bool `toml:"coordinator"`
	// PANID is the coordinator's fixed PAN id; ignored for routers,
	// who learn it from association (or AutoAssociate below).
	PANID uint16 `toml:"pan_id"`
	// EUI is this node's 64-bit IEEE address, fixed at build/flash
	// time in the original firmware; here it is just configuration.
	EUI uint64 `toml:"eui"`

	// NeighborTableSize is 8 or 16, per spec §3.
	NeighborTableSize int `toml:"neighbor_table_size"`
	// UpRouteCacheSize is typically 8, per spec §3.
	UpRouteCacheSize int `toml:"up_route_cache_size"`

	// AutoAssociate skips the association exchange (§4.3.7) entirely
	// and assumes AssumedShortAddr, per the original's AUTO_ASSOC
	// build-time mode (SPEC_FULL §10).
	AutoAssociate    bool   `toml:"auto_associate"`
	AssumedShortAddr uint16 `toml:"assumed_short_addr"`

	// ContikiMACDutyCycle raises NWK_TX_RETRIES to 50 (spec §6's
	// parenthetical). It does not change ping retries: one ping is sent
	// per ping period either way.
	ContikiMACDutyCycle bool `toml:"contiki_mac_duty_cycle"`

	// ReactiveUpEnabled turns on the up-route cache aging counter
	// (spec §4.4 ReactiveUpCnt); up-routes are learned whether or not
	// it is set.
	ReactiveUpEnabled bool `toml:"reactive_up_enabled"`
}

// RadioConfig is the subset of hardware parameters a host binary needs
// to construct a radio/nrf24.Device, mirroring
// tve-devices/cmd/mqttradio's RadioConfig struct shape.
type RadioConfig struct {
	ChannelNumber int    `toml:"channel"`
	CEPin         int    `toml:"ce_pin"`
	IRQPin        int    `toml:"irq_pin"`
	SpiBusPath    string `toml:"spi_bus_path"`
	AddrPrefix    [3]int `toml:"addr_prefix"`
}

// TimingConfig holds the timing constants of spec §6; config.Load
// replaces zero values with the spec defaults. The cmd binaries do not
// pass these values on to core.Core, whose timers use built-in
// constants.
type TimingConfig struct {
	NeighborPingTimeMS int `toml:"neighbor_ping_time_ms"`
	PingTimeMS         int `toml:"ping_time_ms"`
	TXTimeoutMS        int `toml:"tx_timeout_ms"`
	RadioWatchdogS     int `toml:"radio_watchdog_s"`
	DepthTimeoutS      int `toml:"depth_timeout_s"`
}

// StorageConfig points at the persisted-identity file.
type StorageConfig struct {
	IdentityPath string `toml:"identity_path"`
}

// Load reads and parses path.
func Load(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Node.NeighborTableSize == 0 {
		c.Node.NeighborTableSize = 8
	}
	if c.Node.UpRouteCacheSize == 0 {
		c.Node.UpRouteCacheSize = 8
	}
	if c.Timing.NeighborPingTimeMS == 0 {
		c.Timing.NeighborPingTimeMS = 1000
	}
	if c.Timing.PingTimeMS == 0 {
		c.Timing.PingTimeMS = 10
	}
	if c.Timing.TXTimeoutMS == 0 {
		c.Timing.TXTimeoutMS = 50
	}
	if c.Timing.RadioWatchdogS == 0 {
		c.Timing.RadioWatchdogS = 15
	}
	if c.Timing.DepthTimeoutS == 0 {
		c.Timing.DepthTimeoutS = 20
	}
	if c.Storage.IdentityPath == "" {
		c.Storage.IdentityPath = "unet-identity.bin"
	}
}
