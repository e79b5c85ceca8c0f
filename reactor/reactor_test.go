package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/unet-mesh/unet/radio"
	"github.com/unet-mesh/unet/radio/simradio"
)

func TestRunPublishesRXEvent(t *testing.T) {
	m := simradio.NewMedium()
	a := m.NewNode(127)
	b := m.NewNode(127)

	events := make(chan Event, 8)
	re := New(b, nil, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go re.Run(ctx)

	if err := a.Transmit(context.Background(), []byte{1, 2, 3}, false); err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != EventRX {
			t.Fatalf("Kind = %v, want EventRX", ev.Kind)
		}
		if len(ev.Frame) != 3 {
			t.Errorf("len(Frame) = %d, want 3", len(ev.Frame))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for RX event")
	}
}

func TestTXEventOnlyPublishedWhenPending(t *testing.T) {
	m := simradio.NewMedium()
	a := m.NewNode(127)

	events := make(chan Event, 8)
	re := New(a, nil, events)
	re.handleTX(radio.Status{TxOk: true})

	select {
	case ev := <-events:
		t.Fatalf("unexpected event published without pending ack: %+v", ev)
	default:
	}
}
