// Command unet-sim runs several uNET nodes in one process over an
// in-memory radio/simradio.Medium, the host equivalent of flashing N
// physical boards: one coordinator plus N-1 routers join the same PAN,
// and periodic application traffic exercises origination/routing.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/unet-mesh/unet/core"
	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/radio/simradio"
	"github.com/unet-mesh/unet/storage"
)

// memStore is a storage.Store that never persists, since unet-sim's
// nodes are configured with a fixed identity up front (AutoAssociate)
// rather than joining over the simulated radio.
type memStore struct{ id storage.Identity }

func (m *memStore) Load() (storage.Identity, error) { return m.id, nil }
func (m *memStore) Store(id storage.Identity) error { m.id = id; return nil }

func main() {
	nodeCount := pflag.IntP("nodes", "n", 5, "number of nodes, including the coordinator")
	duration := pflag.DurationP("duration", "d", 10*time.Second, "how long to run the simulation")
	panID := pflag.Uint16("pan", 0x4742, "PAN id")
	pflag.Parse()

	if *nodeCount < 2 {
		fmt.Fprintln(os.Stderr, "unet-sim: need at least 2 nodes")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *nodeCount, *panID, *duration); err != nil {
		fmt.Fprintln(os.Stderr, "unet-sim:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, nodeCount int, panID uint16, duration time.Duration) error {
	medium := simradio.NewMedium()
	log := netlog.Charm("unet-sim")

	cores := make([]*core.Core, nodeCount)
	for i := 0; i < nodeCount; i++ {
		node := medium.NewNode(netcore.MaxOnAir)
		coordinator := i == 0
		selfShort := uint16(i)
		node.SetAddr(selfShort)

		c, err := core.New(node, &memStore{id: storage.Identity{ShortAddr: selfShort, PANID: panID}}, log, core.Config{
			SelfShort:         selfShort,
			SelfPAN:           panID,
			EUI:               uint64(i) + 1,
			Coordinator:       coordinator,
			NeighborTableSize: 8,
			UpRouteCacheSize:  8,
			AutoAssociate:     true,
			ReactiveUpEnabled: true,
		})
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start node %d: %w", i, err)
		}
		cores[i] = c
	}

	log.Info(fmt.Sprintf("simulation up: %d nodes, pan=%#04x, running for %s", nodeCount, panID, duration))

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	driveAppTraffic(runCtx, cores, log)

	for i, c := range cores {
		snap := c.Stats()
		log.Info(fmt.Sprintf("node %d: depth=%d rxed=%d txed=%d dropped=%d", i, c.Depth(), snap.Rxed, snap.Txed, snap.Dropped))
		c.Stop()
	}
	return nil
}

// driveAppTraffic has every non-coordinator node periodically
// originate a DownRoute toward the coordinator, the simplest steady-
// state traffic pattern exercised by spec §8's scenarios.
func driveAppTraffic(ctx context.Context, cores []*core.Core, log netlog.Logger) {
	rng := rand.New(rand.NewSource(1))
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i := 1 + rng.Intn(len(cores)-1)
			payload := []byte(fmt.Sprintf("hello from node %d", i))
			if err := cores[i].DownRoute(ctx, payload); err != nil {
				log.Debug(fmt.Sprintf("node %d DownRoute: %v", i, err))
			}
		}
	}
}
