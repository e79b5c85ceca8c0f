package nrf24

import (
	"context"
	"testing"
	"time"
)

// mockPin is a software Pin good enough to drive Device through its
// init sequence and an IRQ-triggered receive, in the style of the
// original driver's own hardware mocks.
type mockPin struct {
	level   Level
	watcher func()
}

func (p *mockPin) Out(l Level) error {
	p.level = l
	return nil
}
func (p *mockPin) In(pull Pull) error { return nil }
func (p *mockPin) Read() Level        { return p.level }
func (p *mockPin) Watch(edge Edge, handler func()) error {
	p.watcher = handler
	return nil
}
func (p *mockPin) Unwatch() error {
	p.watcher = nil
	return nil
}

func (p *mockPin) fire() {
	if p.watcher != nil {
		p.watcher()
	}
}

// mockSPIConn is a software SPI endpoint backed by a tiny register
// file, enough to satisfy the Device init sequence (writes then reads
// back _RF_CH) without real hardware.
type mockSPIConn struct {
	regs [32]byte
}

func (c *mockSPIConn) Tx(w, r []byte) error {
	if len(w) == 0 {
		return nil
	}
	cmd := w[0]
	switch {
	case cmd == _NOP:
	case cmd&_W_REGISTER != 0:
		reg := cmd &^ _W_REGISTER
		if len(w) > 1 {
			c.regs[reg] = w[1]
		}
	case cmd < 0x20 && len(w) == 2 && w[1] == _NOP:
		reg := cmd
		r[1] = c.regs[reg]
	}
	return nil
}

func newTestDevice(t *testing.T) (*Device, *mockPin, *mockSPIConn) {
	t.Helper()
	ce := &mockPin{}
	irq := &mockPin{}
	conn := &mockSPIConn{}

	dev, err := NewWithHardware(HardwareConfig{
		RadioConfig: RadioConfig{
			ChannelNumber: 42,
			RxAddr:        Address{1, 2, 3, 4, 5},
		},
		CE:  ce,
		IRQ: irq,
	}, conn)
	if err != nil {
		t.Fatalf("NewWithHardware: %v", err)
	}
	return dev, irq, conn
}

func TestNewWithHardwareAppliesDefaults(t *testing.T) {
	dev, _, _ := newTestDevice(t)
	if dev.config.PayloadSize != 32 {
		t.Errorf("PayloadSize = %d, want 32", dev.config.PayloadSize)
	}
	if !dev.config.EnableAutoAck {
		t.Error("EnableAutoAck should default true")
	}
	if dev.config.AddressWidth != 5 {
		t.Errorf("AddressWidth = %d, want 5", dev.config.AddressWidth)
	}
}

func TestNewWithHardwareRejectsMissingCE(t *testing.T) {
	_, err := NewWithHardware(HardwareConfig{}, &mockSPIConn{})
	if err == nil {
		t.Fatal("expected error for missing CE pin")
	}
}

func TestWaitForInterruptUnblocksOnWatch(t *testing.T) {
	dev, irq, _ := newTestDevice(t)
	irq.level = High // so WaitForInterrupt doesn't short-circuit

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if _, err := dev.WaitForInterrupt(ctx); err != nil {
			t.Errorf("WaitForInterrupt: %v", err)
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	irq.fire()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForInterrupt did not unblock on IRQ watch callback")
	}
}

func TestWaitForInterruptRespectsContext(t *testing.T) {
	dev, irq, _ := newTestDevice(t)
	irq.level = High

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := dev.WaitForInterrupt(ctx)
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestDriverUsesFixedNetworkAddress(t *testing.T) {
	dev, _, _ := newTestDevice(t)
	driver := NewDriver(dev, [3]byte{0xAA, 0xBB, 0xCC})

	want := Address{0xAA, 0xBB, 0xCC, 0xC0, 0xDE}
	if driver.addr != want {
		t.Errorf("addr = %v, want %v", driver.addr, want)
	}
}

func TestDriverMTUReflectsFixedPayloadSize(t *testing.T) {
	dev, _, _ := newTestDevice(t)
	dev.config.PayloadSize = 20
	driver := NewDriver(dev, [3]byte{})
	if driver.MTU() != 20 {
		t.Errorf("MTU() = %d, want 20", driver.MTU())
	}
}
