package nwk

import (
	"context"
	"testing"
	"time"

	"github.com/unet-mesh/unet/netcore"
	"github.com/unet-mesh/unet/radio"
	"github.com/unet-mesh/unet/reactor"
)

type stubRadio struct {
	sent [][]byte
	fail bool
}

var _ radio.Radio = (*stubRadio)(nil)

func (s *stubRadio) Transmit(ctx context.Context, frame []byte, wantAck bool) error {
	s.sent = append(s.sent, append([]byte(nil), frame...))
	return nil
}

func (s *stubRadio) Reset(ctx context.Context) error { return nil }
func (s *stubRadio) Receive() ([]byte, bool, error)  { return nil, false, nil }
func (s *stubRadio) WaitForInterrupt(ctx context.Context) (radio.Status, error) {
	<-ctx.Done()
	return radio.Status{}, ctx.Err()
}
func (s *stubRadio) SetAutoAck(bool) error { return nil }
func (s *stubRadio) MTU() int              { return 127 }
func (s *stubRadio) RSSI() int8            { return -50 }

func newTestRouter(t *testing.T, selfShort uint16, coordinator bool) (*Router, *stubRadio, chan reactor.Event) {
	t.Helper()
	neighbors := netcore.NewNeighborTable(8)
	upRoutes := netcore.NewUpRouteCache(8)
	stats := &netcore.Stats{}
	radio := &stubRadio{}
	acks := make(chan reactor.Event, 4)
	r := New(neighbors, upRoutes, stats, radio, nil, acks, nil, Config{
		SelfShort:   selfShort,
		SelfPAN:     0x4742,
		Coordinator: coordinator,
		TXTimeout:   20 * time.Millisecond,
		TXRetries:   3,
	})
	return r, radio, acks
}

func TestDownRouteFailsWhenDepthIsRouteLost(t *testing.T) {
	r, _, _ := newTestRouter(t, 0x0002, false)
	if err := r.DownRoute(context.Background(), []byte("hi")); err != netcore.ErrNoRouteAvailable {
		t.Fatalf("DownRoute error = %v, want ErrNoRouteAvailable", err)
	}
}

func TestDownRouteSucceedsViaSymmetricNeighbor(t *testing.T) {
	r, radio, acks := newTestRouter(t, 0x0002, false)
	r.depth = 1
	r.Neighbors.InsertOrUpdate(0x0001, func(e *netcore.NeighborEntry) {
		e.Depth = 0
		e.Flags = netcore.FlagSymmetric
	})

	go func() {
		acks <- reactor.Event{Kind: reactor.EventTX, Acked: true}
	}()

	if err := r.DownRoute(context.Background(), []byte("hi")); err != nil {
		t.Fatalf("DownRoute: %v", err)
	}
	if len(radio.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(radio.sent))
	}
}

func TestDownRouteBlacklistsAndRetriesOnNoAck(t *testing.T) {
	r, _, acks := newTestRouter(t, 0x0002, false)
	r.depth = 1
	r.Neighbors.InsertOrUpdate(0x0001, func(e *netcore.NeighborEntry) {
		e.Depth = 0
		e.Flags = netcore.FlagSymmetric
	})

	go func() {
		for i := 0; i < 3; i++ {
			acks <- reactor.Event{Kind: reactor.EventTX, Acked: false}
		}
	}()

	err := r.DownRoute(context.Background(), []byte("hi"))
	if err != netcore.ErrRouteAttemptsError {
		t.Fatalf("DownRoute error = %v, want ErrRouteAttemptsError", err)
	}
}

func TestOneHopRouteRequiresSymmetricNeighbor(t *testing.T) {
	r, _, _ := newTestRouter(t, 0x0001, true)
	r.Neighbors.InsertOrUpdate(0x0002, func(e *netcore.NeighborEntry) { e.Depth = 1 })

	if err := r.OneHopRoute(context.Background(), 0x0002, []byte("hi")); err != netcore.ErrNoRouteAvailable {
		t.Fatalf("OneHopRoute error = %v, want ErrNoRouteAvailable for asymmetric neighbor", err)
	}
}

func TestReactiveUpRouteUsesCache(t *testing.T) {
	r, radio, acks := newTestRouter(t, 0x0000, true)
	r.Neighbors.InsertOrUpdate(0x0005, func(e *netcore.NeighborEntry) { e.Flags = netcore.FlagSymmetric })
	r.UpRoutes.Insert(0x0099, 0x0005, true, 1)

	go func() { acks <- reactor.Event{Kind: reactor.EventTX, Acked: true} }()

	if err := r.ReactiveUpRoute(context.Background(), 0x0099, []byte("hi")); err != nil {
		t.Fatalf("ReactiveUpRoute: %v", err)
	}
	if len(radio.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(radio.sent))
	}
}

func TestUpdateDepthAdoptsLowerDepthParent(t *testing.T) {
	r, _, _ := newTestRouter(t, 0x0003, false)
	r.Neighbors.InsertOrUpdate(0x0001, func(e *netcore.NeighborEntry) {
		e.Depth = 0
		e.Flags = netcore.FlagSymmetric
		e.RSSI = -40
	})

	r.UpdateDepth()

	if got := r.Depth(); got != 1 {
		t.Errorf("Depth() = %d, want 1", got)
	}
	if got := r.Parent(); got != 0x0001 {
		t.Errorf("Parent() = %#04x, want 0x0001", got)
	}
}

func TestNeighborAgedOutClearsParentAndDepth(t *testing.T) {
	r, _, _ := newTestRouter(t, 0x0003, false)
	r.Neighbors.InsertOrUpdate(0x0001, func(e *netcore.NeighborEntry) {
		e.Depth = 0
		e.Flags = netcore.FlagSymmetric
		e.RSSI = -40
	})
	r.UpdateDepth()

	r.NeighborAgedOut(0x0001)

	if got := r.Depth(); got != netcore.RouteLost {
		t.Errorf("Depth() = %d, want RouteLost", got)
	}
	if got := r.Parent(); got != netcore.ShortAddrEmpty {
		t.Errorf("Parent() = %#04x, want ShortAddrEmpty", got)
	}
}
