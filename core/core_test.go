package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unet-mesh/unet/internal/netlog"
	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/radio"
	"github.com/unet-mesh/unet/radio/simradio"
	"github.com/unet-mesh/unet/storage"
)

type smallMTURadio struct{}

func (smallMTURadio) Reset(ctx context.Context) error                       { return nil }
func (smallMTURadio) Transmit(ctx context.Context, f []byte, ack bool) error { return nil }
func (smallMTURadio) Receive() ([]byte, bool, error)                        { return nil, false, nil }
func (smallMTURadio) WaitForInterrupt(ctx context.Context) (radio.Status, error) {
	<-ctx.Done()
	return radio.Status{}, ctx.Err()
}
func (smallMTURadio) SetAutoAck(bool) error { return nil }
func (smallMTURadio) MTU() int              { return 10 }
func (smallMTURadio) RSSI() int8            { return 0 }

type memStore struct{ id storage.Identity }

func (m *memStore) Load() (storage.Identity, error) { return m.id, nil }
func (m *memStore) Store(id storage.Identity) error { m.id = id; return nil }

func TestNewRejectsRadioWithSmallMTU(t *testing.T) {
	_, err := New(smallMTURadio{}, &memStore{}, nil, Config{SelfShort: 1, SelfPAN: 0x4742})
	if !errors.Is(err, netcore.ErrMTUTooSmall) {
		t.Fatalf("New error = %v, want ErrMTUTooSmall", err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	medium := simradio.NewMedium()
	log := netlog.OrNop(nil)

	coordNode := medium.NewNode(netcore.MaxOnAir)
	coordNode.SetAddr(netcore.CoordinatorShort)
	coord, err := New(coordNode, &memStore{}, log, Config{
		SelfShort:         netcore.CoordinatorShort,
		SelfPAN:           0x4742,
		Coordinator:       true,
		NeighborTableSize: 8,
		UpRouteCacheSize:  8,
	})
	if err != nil {
		t.Fatalf("New(coordinator): %v", err)
	}

	routerNode := medium.NewNode(netcore.MaxOnAir)
	routerNode.SetAddr(2)
	router, err := New(routerNode, &memStore{}, log, Config{
		SelfShort:         2,
		SelfPAN:           0x4742,
		NeighborTableSize: 8,
		UpRouteCacheSize:  8,
	})
	if err != nil {
		t.Fatalf("New(router): %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Start(ctx); err != nil {
		t.Fatalf("coord.Start: %v", err)
	}
	defer coord.Stop()
	if err := router.Start(ctx); err != nil {
		t.Fatalf("router.Start: %v", err)
	}
	defer router.Stop()

	// Depth is RouteLost until the router hears a symmetric ping from
	// the coordinator; assert the unjoined state rather than waiting
	// out a real 1s neighbor ping interval in a unit test.
	if got := router.Depth(); got != netcore.RouteLost {
		t.Errorf("router.Depth() = %d, want RouteLost before any ping exchange", got)
	}

	if err := coord.DownRoute(ctx, []byte("hi")); err == nil {
		t.Error("DownRoute on coordinator should have no route to itself")
	}

	snap := router.Stats()
	_ = snap // reachable without panicking is the assertion

	time.Sleep(5 * time.Millisecond)
}
