package simradio

import (
	"context"
	"testing"
	"time"
)

func TestDeliversToOtherNodes(t *testing.T) {
	m := NewMedium()
	a := m.NewNode(127)
	b := m.NewNode(127)

	if err := a.Transmit(context.Background(), []byte{1, 2, 3}, false); err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := b.WaitForInterrupt(ctx); err != nil {
		t.Fatalf("WaitForInterrupt: %v", err)
	}
	frame, ok, err := b.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !ok {
		t.Fatal("expected a frame")
	}
	if len(frame) != 3 {
		t.Errorf("len(frame) = %d, want 3", len(frame))
	}

	if _, ok, _ := a.Receive(); ok {
		t.Error("sender should not receive its own frame")
	}
}

func TestSilencedLinkDropsBothDirections(t *testing.T) {
	m := NewMedium()
	a := m.NewNode(127)
	b := m.NewNode(127)
	m.Silence(a, b, true)

	a.Transmit(context.Background(), []byte{1}, false)
	if _, ok, _ := b.Receive(); ok {
		t.Fatal("expected silenced link to drop frame a->b")
	}

	b.Transmit(context.Background(), []byte{2}, false)
	if _, ok, _ := a.Receive(); ok {
		t.Fatal("expected silenced link to drop frame b->a")
	}
}

func TestThirdNodeUnaffectedBySilencedLink(t *testing.T) {
	m := NewMedium()
	a := m.NewNode(127)
	b := m.NewNode(127)
	c := m.NewNode(127)
	m.Silence(a, b, true)

	a.Transmit(context.Background(), []byte{9}, false)
	if _, ok, _ := c.Receive(); !ok {
		t.Fatal("expected node c to still receive the frame")
	}
}

func TestOversizeFrameRejected(t *testing.T) {
	m := NewMedium()
	a := m.NewNode(32)
	err := a.Transmit(context.Background(), make([]byte, 33), false)
	if err == nil {
		t.Fatal("expected error for oversize frame")
	}
}
