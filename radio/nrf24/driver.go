package nrf24

import (
	"context"

	"github.com/unet-mesh/unet/radio"
)

// Driver adapts a *Device to radio.Radio. Every node on the same PAN
// shares one fixed RF address derived from prefix: addressing between
// mesh nodes is a software concern (the MAC frame's own Dest field,
// filtered in mac.Parser) rather than a physical nRF24 pipe per short
// address, the same broadcast-domain model radio/simradio uses. This
// keeps one radio.Radio contract working identically over real
// hardware and the in-memory medium.
type Driver struct {
	dev  *Device
	addr Address
}

var _ radio.Radio = (*Driver)(nil)

// NewDriver wraps dev, transmitting to and listening on the fixed
// address derived from prefix (the network's shared RF address).
func NewDriver(dev *Device, prefix [3]byte) *Driver {
	addr := Address{prefix[0], prefix[1], prefix[2], 0xC0, 0xDE}
	return &Driver{dev: dev, addr: addr}
}

func (d *Driver) Reset(ctx context.Context) error {
	d.dev.FlushTX()
	d.dev.FlushRX()
	return nil
}

// Transmit sends the whole on-air frame (MAC header already carries
// the logical destination short address) to the network's shared RF
// address.
func (d *Driver) Transmit(ctx context.Context, frame []byte, wantAck bool) error {
	var err error
	if wantAck {
		err = d.dev.Transmit(d.addr, frame)
	} else {
		err = d.dev.TransmitNoAck(d.addr, frame)
	}
	if err != nil {
		return radio.ErrTxFailed
	}
	return nil
}

func (d *Driver) Receive() ([]byte, bool, error) {
	payload, ok := d.dev.Receive()
	if !ok {
		return nil, false, nil
	}
	return payload, true, nil
}

func (d *Driver) WaitForInterrupt(ctx context.Context) (radio.Status, error) {
	status, err := d.dev.WaitForInterrupt(ctx)
	if err != nil {
		return radio.Status{}, err
	}
	s := radio.Status{
		RxReady:  status&_RX_DR != 0,
		TxOk:     status&_TX_DS != 0,
		TxFailed: status&_MAX_RT != 0,
	}
	if s.TxFailed {
		d.dev.clearInterrupts(_MAX_RT)
	}
	return s, nil
}

func (d *Driver) SetAutoAck(enabled bool) error {
	return d.dev.SetAutoAck(enabled)
}

func (d *Driver) MTU() int {
	if d.dev.config.EnableDynamicPayload {
		return _MAX_PAYLOAD_BYTES
	}
	return int(d.dev.config.PayloadSize)
}

func (d *Driver) RSSI() int8 {
	if d.dev.IsCarrierDetected() {
		return -64
	}
	return -128
}
