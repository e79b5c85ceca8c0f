// Package ticker implements the Timer Tick (spec §4.4): a once-per-
// millisecond sweep maintaining the six periodic counters that drive
// neighbor pings, table aging, radio/depth watchdogs, and the
// bits-per-second statistics rollover. The association response
// timeout is not one of them: it is a timer inside nwk.AssocClient.
//
// The original ran this as a 1 ms RTOS timer ISR touching plain integer
// flags; here it is a goroutine built on time.Ticker, attempting
// internal/rtsched.Elevate() once at start the way a real-time tick
// would want scheduling priority over ordinary goroutines. Every
// action the tick triggers is still just setting a flag or calling a
// small method on nwk.Router/netcore.NeighborTable — it never blocks
// on the radio itself, preserving the original's "ISR touches only
// integer flags" invariant.
package ticker

import (
	"context"
	"math/rand"
	"time"

	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/internal/rtsched"
	"github.com/unet-mesh/unet/netcore"
)

const (
	neighborPingTimeMS  = 1000
	maxPingTime         = 8
	pingTimeMS          = 10
	txTimeoutMS         = 50
	aResponseWaitTimeMS = 492
	radioWatchdogS      = 15
	depthTimeoutS       = 20
)

// Actions is the set of flags/wakeups the Timer Tick sets for the NWK
// Router to act on at its own priority, replacing the original's
// shared boolean globals with method calls into Router's owned state.
type Actions interface {
	// SendPing is invoked when NeighborCnt reaches NeighborPingTimeV;
	// Router broadcasts a DATA_PING (spec §4.3.5).
	SendPing(ctx context.Context) error
	// SweepNeighborTable is invoked at NeighbourhoodTimeout; Router
	// ages and evicts stale neighbor-table entries, calling
	// NeighborAgedOut for each eviction.
	SweepNeighborTable()
	// SweepUpRoutes is invoked at the same cadence when reactive-up is
	// enabled.
	SweepUpRoutes()
	// ResetRadio is invoked when RadioWatchdog fires with no RX seen in
	// RADIO_WATCHDOG_TIMEOUT.
	ResetRadio(ctx context.Context) error
	// TickDepthWatchdog increments the monotonic depth-watchdog counter
	// every tick, per spec §4.4.
	TickDepthWatchdog()
}

// Ticker drives Actions at 1 ms resolution.
type Ticker struct {
	actions Actions
	stats   *netcore.Stats
	log     netlog.Logger
	rng     *rand.Rand

	reactiveUpEnabled bool
	contikiMAC        bool

	neighborCnt       int
	neighborPingTimeV int
	neighborPingCnt   int

	neighbourhoodCnt int
	reactiveUpCnt    int
	radioWatchdog    int
	statTimer        int
	tick             int
}

// New builds a Ticker. reactiveUpEnabled and contikiMAC mirror the
// per-node config options spec §6/§9 describe.
func New(actions Actions, stats *netcore.Stats, log netlog.Logger, reactiveUpEnabled, contikiMAC bool) *Ticker {
	t := &Ticker{
		actions:           actions,
		stats:             stats,
		log:               netlog.OrNop(log),
		rng:               rand.New(rand.NewSource(1)),
		reactiveUpEnabled: reactiveUpEnabled,
		contikiMAC:        contikiMAC,
	}
	t.neighborPingTimeV = neighborPingTimeMS + t.jitter()
	return t
}

func (t *Ticker) jitter() int {
	return t.rng.Intn(50)
}

// NoteRX resets the radio watchdog; the reactor's RX path calls this on
// every frame received, regardless of whether it passed CRC or
// filtering, since the watchdog only cares that the radio is alive.
func (t *Ticker) NoteRX() {
	t.radioWatchdog = 0
}

// Run drives the 1 ms loop until ctx is done. It attempts to elevate
// its own scheduling priority once at start; failure is logged and
// otherwise ignored, per rtsched's documented best-effort contract.
func (t *Ticker) Run(ctx context.Context) {
	if err := rtsched.Elevate(); err != nil {
		t.log.Debug("ticker: could not elevate scheduling priority: " + err.Error())
	}

	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.step(ctx)
		}
	}
}

func (t *Ticker) step(ctx context.Context) {
	t.tick++
	t.actions.TickDepthWatchdog()

	t.neighborCnt++
	if t.neighborCnt >= t.neighborPingTimeV {
		t.neighborCnt = 0
		t.neighborPingCnt++
		if t.neighborPingCnt > maxPingTime {
			t.neighborPingCnt = maxPingTime
		}
		t.neighborPingTimeV = neighborPingTimeMS*t.neighborPingCnt + t.jitter()
		if err := t.actions.SendPing(ctx); err != nil {
			t.log.Warn("ticker: SendPing failed: " + err.Error())
		}
	}

	neighbourhoodTimeout := pingTimeMS * maxPingTime * 3
	t.neighbourhoodCnt++
	if t.neighbourhoodCnt >= neighbourhoodTimeout {
		t.neighbourhoodCnt = 0
		t.actions.SweepNeighborTable()
	}

	if t.reactiveUpEnabled {
		t.reactiveUpCnt++
		if t.reactiveUpCnt >= neighbourhoodTimeout {
			t.reactiveUpCnt = 0
			t.actions.SweepUpRoutes()
		}
	}

	t.radioWatchdog++
	if t.radioWatchdog >= radioWatchdogS*1000 {
		t.radioWatchdog = 0
		t.stats.IncrRadioResets()
		if err := t.actions.ResetRadio(ctx); err != nil {
			t.log.Warn("ticker: ResetRadio failed: " + err.Error())
		}
	}

	t.statTimer++
	if t.statTimer >= 1000 {
		t.statTimer = 0
		t.stats.RolloverSecond()
	}
}
