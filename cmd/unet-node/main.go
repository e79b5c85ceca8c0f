// Command unet-node runs a single uNET mesh node on real nRF24L01+
// hardware, the host-binary equivalent of the original firmware's
// board bring-up: it reads a TOML config, opens the radio over
// periph.io, loads or bootstraps a persisted identity, and starts the
// full Core.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/unet-mesh/unet/config"
	"github.com/unet-mesh/unet/core"
	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/radio/nrf24"
	"github.com/unet-mesh/unet/storage/filestore"
)

func main() {
	configPath := pflag.StringP("config", "c", "unet-node.toml", "path to node config TOML")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "unet-node:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := netlog.Charm("unet-node")

	prefix := [3]byte{
		byte(cfg.Radio.AddrPrefix[0]),
		byte(cfg.Radio.AddrPrefix[1]),
		byte(cfg.Radio.AddrPrefix[2]),
	}
	// Every node in the mesh shares this RF address; addressing between
	// them is a MAC-layer concern, not a physical-pipe one (radio/nrf24's
	// Driver mirrors this in how it derives its own TX target).
	netAddr := nrf24.Address{prefix[0], prefix[1], prefix[2], 0xC0, 0xDE}

	dev, err := nrf24.New(nrf24.Config{
		RadioConfig: nrf24.RadioConfig{
			ChannelNumber:        byte(cfg.Radio.ChannelNumber),
			RxAddr:               netAddr,
			EnableAutoAck:        true,
			EnableDynamicPayload: true,
			DataRate:             nrf24.DataRate1mbps,
		},
		CEPin:      cfg.Radio.CEPin,
		IRQPin:     cfg.Radio.IRQPin,
		SpiBusPath: cfg.Radio.SpiBusPath,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("open radio: %w", err)
	}
	defer dev.Close()

	r := nrf24.NewDriver(dev, prefix)

	store := filestore.New(cfg.Storage.IdentityPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	selfShort := cfg.Node.AssumedShortAddr
	selfPAN := cfg.Node.PANID
	switch {
	case cfg.Node.Coordinator:
		selfShort = netcore.CoordinatorShort
	case cfg.Node.AutoAssociate:
		// AssumedShortAddr/PANID already set above, per the original's
		// AUTO_ASSOC build-time mode (SPEC_FULL §10) — no radio traffic
		// exchanged before Core starts.
	default:
		id, err := core.Bootstrap(ctx, r, store, log, cfg.Node.EUI)
		if err != nil {
			return fmt.Errorf("associate: %w", err)
		}
		selfShort, selfPAN = id.ShortAddr, id.PANID
	}

	c, err := core.New(r, store, log, core.Config{
		SelfShort:           selfShort,
		SelfPAN:             selfPAN,
		EUI:                 cfg.Node.EUI,
		Coordinator:         cfg.Node.Coordinator,
		NeighborTableSize:   cfg.Node.NeighborTableSize,
		UpRouteCacheSize:    cfg.Node.UpRouteCacheSize,
		AutoAssociate:       cfg.Node.AutoAssociate,
		ContikiMACDutyCycle: cfg.Node.ContikiMACDutyCycle,
		ReactiveUpEnabled:   cfg.Node.ReactiveUpEnabled,
	})
	if err != nil {
		return fmt.Errorf("build core: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start core: %w", err)
	}
	log.Info(fmt.Sprintf("node up: short=%#04x pan=%#04x coordinator=%v", selfShort, selfPAN, cfg.Node.Coordinator))

	<-ctx.Done()
	c.Stop()
	return nil
}
