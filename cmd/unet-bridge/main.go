// Command unet-bridge republishes a node's inbound application
// payloads to MQTT and forwards inbound MQTT commands back into the
// mesh as outbound payloads — the "application profile dispatch"
// collaborator spec §1's Non-goals excludes from core, wired here as
// a thin consumer of core.Core's public channel API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/pflag"

	"github.com/unet-mesh/unet/config"
	"github.com/unet-mesh/unet/core"
	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/radio/nrf24"
	"github.com/unet-mesh/unet/storage/filestore"
)

func main() {
	configPath := pflag.StringP("config", "c", "unet-bridge.toml", "path to node config TOML")
	broker := pflag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	topicPrefix := pflag.String("topic-prefix", "unet", "MQTT topic prefix")
	pflag.Parse()

	if err := run(*configPath, *broker, *topicPrefix); err != nil {
		fmt.Fprintln(os.Stderr, "unet-bridge:", err)
		os.Exit(1)
	}
}

func run(configPath, broker, topicPrefix string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := netlog.Charm("unet-bridge")

	prefix := [3]byte{byte(cfg.Radio.AddrPrefix[0]), byte(cfg.Radio.AddrPrefix[1]), byte(cfg.Radio.AddrPrefix[2])}
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
	defer c.Stop()

	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(fmt.Sprintf("unet-bridge-%04x", selfShort))
	opts.SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return fmt.Errorf("connect mqtt: %w", tok.Error())
	}
	defer client.Disconnect(250)

	downTopic := fmt.Sprintf("%s/%04x/down", topicPrefix, selfShort)
	client.Subscribe(downTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := c.DownRoute(ctx, msg.Payload()); err != nil {
			log.Warn(fmt.Sprintf("mqtt->mesh DownRoute: %v", err))
		}
	})

	upTopic := fmt.Sprintf("%s/%04x/up", topicPrefix, selfShort)
	go bridgeAppRX(ctx, c, client, upTopic, log)

	log.Info(fmt.Sprintf("bridge up: short=%#04x broker=%s", selfShort, broker))
	<-ctx.Done()
	return nil
}

func bridgeAppRX(ctx context.Context, c *core.Core, client mqtt.Client, topic string, log netlog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-c.AppRX():
			if !ok {
				return
			}
			if tok := client.Publish(topic, 0, false, pkt.AppPayload()); tok.Wait() && tok.Error() != nil {
				log.Warn(fmt.Sprintf("mesh->mqtt publish: %v", tok.Error()))
			}
		}
	}
}
