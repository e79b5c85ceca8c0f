// Package nrf24 drives an nRF24L01+ transceiver over SPI plus two GPIO
// lines (CE, and an optional IRQ). Device is adapted from the original
// standalone driver: register layout, SPI framing, and the auto-retry
// write loop are unchanged, but the package-global logger is replaced
// with a netlog.Logger injected per Device (so a simulated or real
// radio logs through the same sink as the rest of netcore), and Driver
// (in driver.go) adapts Device to the radio.Radio interface netcore
// actually depends on.
package nrf24

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/unet-mesh/unet/internal/netlog"
)

var (
	ErrPkg        = errors.New("nrf24dev")
	ErrMaxRetries = errors.New("max retransmissions reached")
	ErrTimeout    = errors.New("timeout waiting for device")
)

type (
	Address [5]byte
	Packet  [32]byte
)

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4])
}

type (
	DataRate  byte
	PALevel   byte
	CRCLength byte
)

const (
	DataRate250kbps DataRate = iota
	DataRate1mbps
	DataRate2mbps
)

func (d DataRate) String() string {
	switch d {
	case DataRate250kbps:
		return "250kbps"
	case DataRate1mbps:
		return "1mbps"
	case DataRate2mbps:
		return "2mbps"
	default:
		return "unknown"
	}
}

const (
	PALevelMin PALevel = iota
	PALevelLow
	PALevelHigh
	PALevelMax
)

func (p PALevel) String() string {
	switch p {
	case PALevelMin:
		return "-18dBm"
	case PALevelLow:
		return "-12dBm"
	case PALevelHigh:
		return "-6dBm"
	case PALevelMax:
		return "0dBm"
	default:
		return "unknown"
	}
}

const (
	CRCLengthDisabled CRCLength = iota
	CRCLength8
	CRCLength16
)

const (
	_CONFIG     = 0x00
	_RF_CH      = 0x05
	_RF_SETUP   = 0x06
	_STATUS     = 0x07
	_OBSERVE_TX = 0x08
	_RPD        = 0x09
	_RX_ADDR_P0 = 0x0A
	_RX_ADDR_P1 = 0x0B
	_TX_ADDR_REG = 0x10
	_RX_PW_P0   = 0x11
	_RX_PW_P1   = 0x12

	_DYNPD   = 0x1C
	_FEATURE = 0x1D

	_W_REGISTER         = 0x20
	_R_RX_PAYLOAD       = 0x61
	_W_TX_PAYLOAD       = 0xA0
	_W_ACK_PAYLOAD      = 0xA8
	_W_TX_PAYLOAD_NOACK = 0xB0
	_FLUSH_TX           = 0xE1
	_FLUSH_RX           = 0xE2
	_NOP                = 0xFF
)

const (
	_PWR_UP  = 1 << 1
	_PRIM_RX = 1 << 0
	_RX_DR   = 1 << 6
	_TX_DS   = 1 << 5
	_MAX_RT  = 1 << 4
	_EN_CRC  = 1 << 3
	_CRCO    = 1 << 2

	_SETUP_RETR = 0x04
	_EN_AA      = 0x01
	_EN_RXADDR  = 0x02
	_ERX_P0     = 1 << 0
	_ERX_P1     = 1 << 1
	_SETUP_AW   = 0x03

	_EN_DPL     = 1 << 2
	_EN_ACK_PAY = 1 << 1
	_EN_DYN_ACK = 1 << 0
)

const _MAX_PAYLOAD_BYTES = 32
const _R_RX_PL_WID = 0x60

// RadioConfig holds the parameters every platform adapter exposes.
type RadioConfig struct {
	ChannelNumber        byte
	RxAddr               Address
	EnableDynamicPayload bool
	PayloadSize          byte
	EnableAutoAck        bool
	DataRate             DataRate
	PALevel              PALevel
	AutoRetransmitDelay  uint16
	AutoRetransmitCount  byte
	AddressWidth         byte
	CRCLength            CRCLength
}

// HardwareConfig adds the pin/logger wiring NewWithHardware needs.
type HardwareConfig struct {
	RadioConfig
	CE     Pin
	IRQ    Pin
	Logger netlog.Logger
}

type Device struct {
	config  HardwareConfig
	conn    SPI
	irqChan chan struct{}
	nrfPort io.Closer
	logger  netlog.Logger
	mu      sync.Mutex
	scratch [33]byte
}

// NewWithHardware creates and initializes a new nRF24L01+ driver.
func NewWithHardware(c HardwareConfig, conn SPI) (*Device, error) {
	if !c.EnableDynamicPayload && (c.PayloadSize == 0 || c.PayloadSize > 32) {
		c.PayloadSize = 32
	}
	if !c.EnableAutoAck {
		c.EnableAutoAck = true
	}
	if c.DataRate == 0 {
		c.DataRate = DataRate250kbps
	}
	if c.PALevel == 0 {
		c.PALevel = PALevelMax
	}
	if c.AutoRetransmitDelay == 0 {
		c.AutoRetransmitDelay = 250
	}
	if c.AutoRetransmitCount == 0 {
		c.AutoRetransmitCount = 3
	}
	if c.AddressWidth == 0 {
		c.AddressWidth = 5
	}
	if c.AddressWidth < 3 || c.AddressWidth > 5 {
		return nil, fmt.Errorf("AddressWidth must be 3, 4, or 5")
	}
	if c.CRCLength == 0 {
		c.CRCLength = CRCLength16
	}
	if c.CE == nil {
		return nil, fmt.Errorf("CE pin not configured")
	}

	dev := &Device{
		config: c,
		conn:   conn,
		logger: netlog.OrNop(c.Logger),
	}

	if dev.config.ChannelNumber > 124 {
		return nil, fmt.Errorf("channel number must be between 0 and 124")
	}

	dev.logger.Info("initializing nRF24L01+ SPI communication")

	dev.config.CE.Out(Low)

	if dev.config.IRQ != nil {
		dev.config.IRQ.In(PullUp)
		dev.irqChan = make(chan struct{}, 1)
		if err := dev.config.IRQ.Watch(FallingEdge, func() {
			select {
			case dev.irqChan <- struct{}{}:
			default:
			}
		}); err != nil {
			return nil, fmt.Errorf("failed to watch IRQ pin: %w", err)
		}
	}

	dev.setCE(false)
	dev.writeRegister(_CONFIG, 0)
	dev.clearStatus()
	dev.flushTX()
	dev.flushRX()

	var configValue byte = _PWR_UP | _PRIM_RX
	switch dev.config.CRCLength {
	case CRCLength8:
		configValue |= _EN_CRC
	case CRCLength16:
		configValue |= _EN_CRC | _CRCO
	}
	dev.writeRegister(_CONFIG, configValue)
	time.Sleep(5 * time.Millisecond)

	dev.writeRegister(_RF_CH, dev.config.ChannelNumber)
	dev.writeRegister(_SETUP_AW, dev.config.AddressWidth-2)

	ard := (dev.config.AutoRetransmitDelay/250 - 1) & 0x0F
	arc := dev.config.AutoRetransmitCount & 0x0F
	dev.writeRegister(_SETUP_RETR, (byte(ard)<<4)|byte(arc))

	dev.writeRegister(_RF_SETUP, rfSetupFor(dev.config.DataRate, dev.config.PALevel))

	if dev.config.EnableAutoAck {
		dev.writeRegister(_EN_AA, _ERX_P0|_ERX_P1)
	} else {
		dev.writeRegister(_EN_AA, 0)
	}
	dev.writeRegister(_EN_RXADDR, _ERX_P0|_ERX_P1)

	dev.writeRegisterN(_RX_ADDR_P1, dev.config.RxAddr[:])

	featureVal := byte(_EN_DYN_ACK)
	if dev.config.EnableDynamicPayload {
		featureVal |= _EN_DPL | _EN_ACK_PAY
		dev.writeRegister(_FEATURE, featureVal)
		dev.writeRegister(_DYNPD, _ERX_P0|_ERX_P1)
	} else {
		dev.writeRegister(_FEATURE, featureVal)
		dev.writeRegister(_DYNPD, 0)
		dev.writeRegister(_RX_PW_P0, dev.config.PayloadSize)
		dev.writeRegister(_RX_PW_P1, dev.config.PayloadSize)
	}

	readChannel := dev.readRegister(_RF_CH)
	if readChannel != dev.config.ChannelNumber {
		dev.Close()
		return nil, fmt.Errorf("failed to verify nRF24L01+ connection: check wiring/power")
	}

	dev.logger.Info("nRF24L01+ initialized and powered up")
	dev.setCE(true)

	return dev, nil
}

func rfSetupFor(rate DataRate, pa PALevel) byte {
	var rfSetup byte
	switch rate {
	case DataRate2mbps:
		rfSetup |= 1 << 3
	case DataRate250kbps:
		rfSetup |= 1 << 5
	}
	switch pa {
	case PALevelLow:
		rfSetup |= 1 << 1
	case PALevelHigh:
		rfSetup |= 2 << 1
	case PALevelMax:
		rfSetup |= 3 << 1
	}
	return rfSetup
}

func (d *Device) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("nRF24L01+(Channel=%d, DataRate=%s, PALevel=%s, RxAddr=%s, DynamicPayload=%v, AutoAck=%v)",
		d.config.ChannelNumber, d.config.DataRate, d.config.PALevel, d.config.RxAddr,
		d.config.EnableDynamicPayload, d.config.EnableAutoAck)
}

// Close powers the radio down and releases the SPI/GPIO resources.
func (dev *Device) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.writeRegister(_CONFIG, dev.readRegister(_CONFIG)&^byte(_PWR_UP))
	dev.logger.Info("nRF24L01+ powered down")

	if dev.nrfPort != nil {
		if err := dev.nrfPort.Close(); err != nil {
			dev.logger.Warn("failed to close SPI port")
		}
	}
	if dev.config.IRQ != nil {
		dev.config.IRQ.Unwatch()
	}
	return nil
}

func (d *Device) spiTransfer(n int) (status byte, response []byte) {
	slice := d.scratch[:n]
	if err := d.conn.Tx(slice, slice); err != nil {
		d.logger.Error("spi transfer error")
		return 0, nil
	}
	if n > 0 {
		return d.scratch[0], d.scratch[1:n]
	}
	return 0, nil
}

func (d *Device) writeRegister(reg, val byte) {
	d.scratch[0] = _W_REGISTER | reg
	d.scratch[1] = val
	d.spiTransfer(2)
}

func (d *Device) readRegister(reg byte) byte {
	d.scratch[0] = reg
	d.scratch[1] = _NOP
	_, data := d.spiTransfer(2)
	if len(data) > 0 {
		return data[0]
	}
	return 0
}

func (d *Device) writeRegisterN(reg byte, data []byte) {
	d.scratch[0] = _W_REGISTER | reg
	copy(d.scratch[1:], data)
	d.spiTransfer(1 + len(data))
}

func (d *Device) flushTX() {
	d.scratch[0] = _FLUSH_TX
	d.spiTransfer(1)
}

func (d *Device) flushRX() {
	d.scratch[0] = _FLUSH_RX
	d.spiTransfer(1)
}

func (d *Device) clearStatus() {
	d.writeRegister(_STATUS, _RX_DR|_TX_DS|_MAX_RT)
}

func (d *Device) setCE(level bool) {
	if level {
		d.config.CE.Out(High)
	} else {
		d.config.CE.Out(Low)
	}
}

func (d *Device) setTargetAddress(addr Address) {
	d.setCE(false)
	d.writeRegisterN(_TX_ADDR_REG, addr[:])
	d.writeRegisterN(_RX_ADDR_P0, addr[:])
	time.Sleep(time.Millisecond)
}

// GetRetransmissionCounters reports the hardware's lost/retry counters.
func (d *Device) GetRetransmissionCounters() (lostPackets byte, currentRetries byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	val := d.readRegister(_OBSERVE_TX)
	return (val >> 4) & 0x0F, val & 0x0F
}

// IsCarrierDetected reports whether a signal above threshold is present
// on the current channel (used by nwk to estimate one-hop RSSI).
func (d *Device) IsCarrierDetected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return (d.readRegister(_RPD) & 0x01) != 0
}

func (d *Device) FlushTX() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushTX()
}

func (d *Device) FlushRX() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushRX()
}

func (d *Device) GetStatus() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readRegister(_STATUS)
}

func (d *Device) SetChannel(channel byte) error {
	if channel > 124 {
		return fmt.Errorf("channel number must be between 0 and 124")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeRegister(_RF_CH, channel)
	d.config.ChannelNumber = channel
	return nil
}

func (d *Device) SetDataRate(rate DataRate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.DataRate = rate
	d.writeRegister(_RF_SETUP, rfSetupFor(d.config.DataRate, d.config.PALevel))
	return nil
}

func (d *Device) SetPALevel(level PALevel) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.PALevel = level
	d.writeRegister(_RF_SETUP, rfSetupFor(d.config.DataRate, d.config.PALevel))
	return nil
}

func (d *Device) SetAutoRetransmit(delay uint16, count byte) error {
	if delay < 250 || delay > 4000 || delay%250 != 0 {
		return fmt.Errorf("delay must be between 250 and 4000 us and a multiple of 250")
	}
	if count > 15 {
		return fmt.Errorf("count must be between 0 and 15")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ard := (delay/250 - 1) & 0x0F
	arc := count & 0x0F
	d.writeRegister(_SETUP_RETR, (byte(ard)<<4)|byte(arc))
	d.config.AutoRetransmitDelay = delay
	d.config.AutoRetransmitCount = count
	return nil
}

// SetAutoAck enables or disables hardware auto-acknowledgment on both
// pipes this driver uses.
func (d *Device) SetAutoAck(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if enabled {
		d.writeRegister(_EN_AA, _ERX_P0|_ERX_P1)
	} else {
		d.writeRegister(_EN_AA, 0)
	}
	d.config.EnableAutoAck = enabled
	return nil
}

func (d *Device) PowerDown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeRegister(_CONFIG, d.readRegister(_CONFIG)&^byte(_PWR_UP))
}

func (d *Device) PowerUp() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeRegister(_CONFIG, d.readRegister(_CONFIG)|_PWR_UP)
	time.Sleep(2 * time.Millisecond)
}

func (d *Device) startListening() {
	d.setCE(false)
	d.writeRegister(_CONFIG, d.readRegister(_CONFIG)|_PRIM_RX)
	d.setCE(true)
	time.Sleep(130 * time.Microsecond)
	d.clearStatus()
	d.flushRX()
}

func (d *Device) stopListening() {
	d.setCE(false)
	d.writeRegister(_CONFIG, d.readRegister(_CONFIG)&^byte(_PRIM_RX))
}

func (d *Device) available() bool {
	return ((d.readRegister(_STATUS) >> 1) & 0x07) != 7
}

func (d *Device) getDynamicPayloadSize() byte {
	d.scratch[0] = _R_RX_PL_WID
	d.scratch[1] = _NOP
	_, data := d.spiTransfer(2)
	if len(data) > 0 {
		if data[0] > 32 {
			d.flushRX()
			return 0
		}
		return data[0]
	}
	return 0
}

func (d *Device) readDynamic() ([]byte, bool) {
	if !d.available() {
		return nil, false
	}
	size := d.getDynamicPayloadSize()
	if size == 0 {
		d.flushRX()
		d.clearStatus()
		return nil, false
	}
	d.scratch[0] = _R_RX_PAYLOAD
	for i := 1; i <= int(size); i++ {
		d.scratch[i] = _NOP
	}
	_, data := d.spiTransfer(int(size) + 1)
	result := make([]byte, len(data))
	copy(result, data)
	d.clearStatus()
	return result, true
}

func (d *Device) readFixedPayload() ([]byte, bool) {
	if !d.available() {
		return nil, false
	}
	size := int(d.config.PayloadSize)
	d.scratch[0] = _R_RX_PAYLOAD
	for i := 1; i <= size; i++ {
		d.scratch[i] = _NOP
	}
	_, data := d.spiTransfer(size + 1)
	result := make([]byte, len(data))
	copy(result, data)
	d.clearStatus()
	return result, true
}

func (d *Device) write(data []byte, noAck bool) error {
	d.stopListening()

	cmdPrefix := byte(_W_TX_PAYLOAD)
	if noAck {
		cmdPrefix = _W_TX_PAYLOAD_NOACK
	}
	d.scratch[0] = cmdPrefix

	if d.config.EnableDynamicPayload {
		copy(d.scratch[1:], data)
		d.spiTransfer(1 + len(data))
	} else {
		size := int(d.config.PayloadSize)
		for i := 1; i <= size; i++ {
			d.scratch[i] = 0
		}
		copy(d.scratch[1:], data)
		d.spiTransfer(1 + size)
	}

	d.setCE(true)
	time.Sleep(15 * time.Microsecond)
	d.setCE(false)

	timeoutDuration := time.Duration(d.config.AutoRetransmitDelay)*time.Duration(d.config.AutoRetransmitCount)*time.Microsecond + 50*time.Millisecond
	timeout := time.After(timeoutDuration)

	for {
		select {
		case <-timeout:
			d.clearStatus()
			d.flushTX()
			return fmt.Errorf("%w: %w", ErrPkg, ErrTimeout)
		default:
			status := d.readRegister(_STATUS)
			if status&(_TX_DS|_MAX_RT) != 0 {
				d.clearStatus()
				if status&_MAX_RT != 0 {
					d.flushTX()
					return fmt.Errorf("%w: %w", ErrPkg, ErrMaxRetries)
				}
				return nil
			}
			time.Sleep(1 * time.Millisecond)
		}
	}
}

// Transmit sends p to destAddr, expecting a hardware ack.
func (dev *Device) Transmit(destAddr Address, p []byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.stopListening()

	limit := int(_MAX_PAYLOAD_BYTES)
	if !dev.config.EnableDynamicPayload {
		limit = int(dev.config.PayloadSize)
	}
	if len(p) > limit {
		return fmt.Errorf("%w: payload too large (%d bytes), limit is %d", ErrPkg, len(p), limit)
	}

	dev.setTargetAddress(destAddr)
	if err := dev.write(p, false); err != nil {
		dev.startListening()
		return fmt.Errorf("failed to send data: %w", err)
	}
	dev.startListening()
	return nil
}

// TransmitNoAck sends p to destAddr telling the receiver not to
// acknowledge it, for broadcast traffic.
func (dev *Device) TransmitNoAck(destAddr Address, p []byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.stopListening()

	limit := int(_MAX_PAYLOAD_BYTES)
	if !dev.config.EnableDynamicPayload {
		limit = int(dev.config.PayloadSize)
	}
	if len(p) > limit {
		return fmt.Errorf("%w: payload too large (%d bytes), limit is %d", ErrPkg, len(p), limit)
	}

	dev.setTargetAddress(destAddr)
	if err := dev.write(p, true); err != nil {
		dev.startListening()
		return fmt.Errorf("failed to send data: %w", err)
	}
	dev.startListening()
	return nil
}

// Receive returns the oldest buffered payload, if any, without blocking.
func (dev *Device) Receive() ([]byte, bool) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.config.EnableDynamicPayload {
		return dev.readDynamic()
	}
	return dev.readFixedPayload()
}

// WaitForInterrupt blocks until the IRQ pin fires or ctx is done,
// returning the STATUS register value observed at that moment.
func (d *Device) WaitForInterrupt(ctx context.Context) (byte, error) {
	if d.config.IRQ == nil {
		return 0, fmt.Errorf("IRQ pin not configured")
	}

	if d.config.IRQ.Read() == Low {
		d.mu.Lock()
		status := d.readRegister(_STATUS)
		d.mu.Unlock()
		return status, nil
	}

	select {
	case <-d.irqChan:
		d.mu.Lock()
		status := d.readRegister(_STATUS)
		d.mu.Unlock()
		return status, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (d *Device) clearInterrupts(flags byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeRegister(_STATUS, flags)
}

// Ping sends a single probe byte to addr and reports whether it was
// acknowledged.
func (d *Device) Ping(_ context.Context, addr Address) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setTargetAddress(addr)
	err := d.write([]byte{0x00}, false)
	if err == nil {
		return true, nil
	}
	return false, nil
}
