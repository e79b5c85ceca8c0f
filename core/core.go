// Package core is the owning aggregate spec §9's "global mutable
// state → owned context" design note asks for: one Core value holds
// every table, counter, and goroutine instead of the dozen file-scope
// globals (`macAddr`, `thisNodeDepth`, `ParentNeighborID`, the
// neighbor table, the up-route cache, `nwk_tasks_pending`/
// `mac_tasks_pending`) the original firmware kept as package-level
// state.
//
// It lives one level above netcore rather than inside it so that
// mac.Parser and nwk.Router can import netcore for the shared table
// types (Packet, NeighborTable, UpRouteCache, Stats) without a package
// import cycle back through Core.
package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/mac"
	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/nwk"
	"github.com/unet-mesh/unet/radio"
	"github.com/unet-mesh/unet/reactor"
	"github.com/unet-mesh/unet/storage"
	"github.com/unet-mesh/unet/ticker"
)

// Config is the subset of config.Config a Core needs, kept separate
// from the TOML-shaped config package so netcore/core never depends
// on BurntSushi/toml.
type Config struct {
	SelfShort           uint16
	SelfPAN             uint16
	EUI                 uint64
	Coordinator         bool
	NeighborTableSize   int
	UpRouteCacheSize    int
	AutoAssociate       bool
	ContikiMACDutyCycle bool
	ReactiveUpEnabled   bool
}

// Core wires reactor.Reactor, mac.Parser, nwk.Router, and
// ticker.Ticker around one radio.Radio and one storage.Store.
type Core struct {
	Reactor *reactor.Reactor
	Parser  *mac.Parser
	Router  *nwk.Router
	Ticker  *ticker.Ticker
	Stats   *netcore.Stats
	log     netlog.Logger
	store   storage.Store
	r       radio.Radio
	events  chan reactor.Event
	txAcks  chan reactor.Event

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles a Core. It returns netcore.ErrMTUTooSmall if r.MTU()
// is below netcore.MaxOnAir.
func New(r radio.Radio, store storage.Store, log netlog.Logger, cfg Config) (*Core, error) {
	if r.MTU() < netcore.MaxOnAir {
		return nil, fmt.Errorf("%w: radio MTU %d < %d", netcore.ErrMTUTooSmall, r.MTU(), netcore.MaxOnAir)
	}

	log = netlog.OrNop(log)
	stats := &netcore.Stats{}
	neighbors := netcore.NewNeighborTable(cfg.NeighborTableSize)
	upRoutes := netcore.NewUpRouteCache(cfg.UpRouteCacheSize)

	events := make(chan reactor.Event, 16)
	re := reactor.New(r, log, events)

	txAcks := make(chan reactor.Event, 4)

	txRetries := 3
	if cfg.ContikiMACDutyCycle {
		txRetries = 50
	}
	router := nwk.New(neighbors, upRoutes, stats, r, re, txAcks, log, nwk.Config{
		TXRetries:   txRetries,
		SelfShort:   cfg.SelfShort,
		SelfPAN:     cfg.SelfPAN,
		Coordinator: cfg.Coordinator,
	})

	responder := mac.NewResponder(r, router, log, cfg.SelfShort, cfg.SelfPAN)
	parser := mac.New(neighbors, stats, responder, log, cfg.SelfShort, cfg.SelfPAN, cfg.EUI)

	tk := ticker.New(router, stats, log, cfg.ReactiveUpEnabled, cfg.ContikiMACDutyCycle)

	return &Core{
		Reactor: re,
		Parser:  parser,
		Router:  router,
		Ticker:  tk,
		Stats:   stats,
		log:     log,
		store:   store,
		r:       r,
		events:  events,
		txAcks:  txAcks,
	}, nil
}

// Start brings the node up: resets the radio and launches the Reactor, the event-demux loop, the
// routing-state-machine loop, and the Timer Tick, each in its own
// goroutine.
func (c *Core) Start(ctx context.Context) error {
	if err := c.r.Reset(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(4)
	go func() { defer c.wg.Done(); c.Reactor.Run(ctx) }()
	go func() { defer c.wg.Done(); c.demux(ctx) }()
	go func() { defer c.wg.Done(); c.routeLoop(ctx) }()
	go func() { defer c.wg.Done(); c.Ticker.Run(ctx) }()

	return nil
}

// Stop cancels every Core goroutine and waits for them to exit.
func (c *Core) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// demux is the Reactor → {MAC Parser, NWK Router} bridge: it is the
// single-producer/single-consumer boundary spec §5 describes between
// the Reactor and the MAC layer, draining every queued event between
// suspensions (the "consume the whole FIFO before re-suspending" rule)
// by virtue of ranging over a buffered channel.
func (c *Core) demux(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case reactor.EventRX:
				if err := c.Parser.Dispatch(ev.Frame, ev.RSSI, ev.LQI); err != nil {
					c.log.Debug("mac dispatch: " + err.Error())
				}
			case reactor.EventTX:
				select {
				case c.txAcks <- ev:
				default:
				}
			}
		}
	}
}
