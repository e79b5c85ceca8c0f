// Package simradio is an in-memory radio medium used by netcore's
// scenario tests and by cmd/unet-sim. It is grounded on the teacher's
// mock-driven test style (nrf24_test.go's mockPin/mockSPIConn
// substitution of the hardware boundary) generalized from a single
// mocked device to a shared medium several radio.Radio instances
// publish into and drain from, so that multi-hop scenarios can be
// driven deterministically without real hardware or real time.
package simradio

import (
	"context"
	"sync"

	"github.com/unet-mesh/unet/radio"
	"github.com/unet-mesh/unet/wire"
)

// Medium is a shared broadcast domain. Every Node registered on a
// Medium receives every frame any other Node transmits, subject to the
// Medium's configured link conditions.
type Medium struct {
	mu    sync.Mutex
	nodes map[*Node]struct{}
	links map[linkKey]*linkState
}

type linkKey struct{ a, b *Node }

type linkState struct {
	silenced bool
	dropPct  int // 0-100
	rssi     int8
}

// NewMedium returns an empty shared medium.
func NewMedium() *Medium {
	return &Medium{
		nodes: make(map[*Node]struct{}),
		links: make(map[linkKey]*linkState),
	}
}

// NewNode registers and returns a new radio.Radio-compatible endpoint
// on m. mtu mirrors the real nRF24 payload ceiling (radio/nrf24 reports
// 32); pass wire.MaxOnAir for a medium meant to exercise the full
// on-air frame budget. The node has no short address until SetAddr is
// called, so it cannot be the target of an ack-bearing unicast until
// its owner (core.Core, via nwk.Router) is assigned one.
func (m *Medium) NewNode(mtu int) *Node {
	n := &Node{medium: m, mtu: mtu, short: wire.ShortBroadcast, rx: make(chan []byte, 16), irq: make(chan radio.Status, 16)}
	m.mu.Lock()
	m.nodes[n] = struct{}{}
	m.mu.Unlock()
	return n
}

// Silence drops every frame exchanged directly between a and b in both
// directions, without affecting either node's other links. It exists
// to drive the Blacklist Recovery scenario: a down-route's first-choice
// next hop goes quiet and the router must retry a symmetric, lower-RSSI
// alternative.
func (m *Medium) Silence(a, b *Node, silenced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link(a, b).silenced = silenced
	m.link(b, a).silenced = silenced
}

// SetRSSI fixes the RSSI a observes from b.
func (m *Medium) SetRSSI(a, b *Node, rssi int8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.link(a, b).rssi = rssi
}

func (m *Medium) link(a, b *Node) *linkState {
	k := linkKey{a, b}
	ls, ok := m.links[k]
	if !ok {
		ls = &linkState{}
		m.links[k] = ls
	}
	return ls
}

// byShortAddr finds the registered node whose SetAddr matches short,
// if any. Multiple nodes sharing a short address (misconfiguration) is
// not disambiguated; the first found wins.
func (m *Medium) byShortAddr(short uint16) *Node {
	for n := range m.nodes {
		if n.short == short {
			return n
		}
	}
	return nil
}

func (m *Medium) deliver(from *Node, frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	for n := range m.nodes {
		if n == from {
			continue
		}
		if ls, ok := m.links[linkKey{n, from}]; ok && ls.silenced {
			continue
		}
		select {
		case n.rx <- cp:
			if ls, ok := m.links[linkKey{n, from}]; ok {
				n.lastRSSI = ls.rssi
			}
			select {
			case n.irq <- radio.Status{RxReady: true}:
			default:
			}
		default:
			n.overflowed = true
		}
	}
}

// reaches reports whether a frame from `from` would currently reach
// dest (a specific registered node), honoring Silence but not FIFO
// backpressure; used only to decide an ack outcome, never to actually
// enqueue a frame twice.
func (m *Medium) reaches(from, dest *Node) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ls, ok := m.links[linkKey{dest, from}]; ok && ls.silenced {
		return false
	}
	return true
}

// Node is a radio.Radio backed by a Medium.
type Node struct {
	medium     *Medium
	mtu        int
	short      uint16
	rx         chan []byte
	irq        chan radio.Status
	overflowed bool
	autoAck    bool
	lastRSSI   int8
}

var _ radio.Radio = (*Node)(nil)

// SetAddr records n's MAC short address, so the medium can resolve an
// ack-bearing unicast's intended recipient by decoding the frame's
// Dest field. cmd/unet-sim and the tests call this once the node's
// short address is known; nwk.Router and core.Core never do.
func (n *Node) SetAddr(short uint16) {
	n.short = short
}

func (n *Node) Reset(ctx context.Context) error { return nil }

// Transmit delivers frame to every reachable node on the medium. When
// wantAck is true, it synthesizes the hardware auto-ack outcome a real
// nRF24L01+ would report via its TX_DS/MAX_RT interrupt bits: frame is
// decoded to find its intended next hop, and a TxOk/TxFailed
// radio.Status is pushed onto this node's own irq channel, matching
// the asynchronous completion reactor.Reactor.Run expects from
// radio.Radio.WaitForInterrupt rather than from Transmit's return
// value. An undecodable frame or a broadcast destination (no ack
// expected over the air) delivers without synthesizing a status.
func (n *Node) Transmit(ctx context.Context, frame []byte, wantAck bool) error {
	if len(frame) > n.mtu {
		return radio.ErrOverflow
	}
	n.medium.deliver(n, frame)

	if !wantAck {
		return nil
	}

	res, err := wire.Decode(frame)
	if err != nil || res.Frame.Dest.Mode != wire.AddrModeShort || res.Frame.Dest.Short == wire.ShortBroadcast {
		return nil
	}

	dest := n.medium.byShortAddr(res.Frame.Dest.Short)
	acked := dest != nil && n.medium.reaches(n, dest)
	select {
	case n.irq <- radio.Status{TxOk: acked, TxFailed: !acked}:
	default:
	}
	return nil
}

func (n *Node) Receive() ([]byte, bool, error) {
	select {
	case f := <-n.rx:
		if n.overflowed {
			n.overflowed = false
			return f, true, radio.ErrOverflow
		}
		return f, true, nil
	default:
		return nil, false, nil
	}
}

func (n *Node) WaitForInterrupt(ctx context.Context) (radio.Status, error) {
	select {
	case s := <-n.irq:
		return s, nil
	case <-ctx.Done():
		return radio.Status{}, ctx.Err()
	}
}

func (n *Node) SetAutoAck(enabled bool) error {
	n.autoAck = enabled
	return nil
}

func (n *Node) MTU() int { return n.mtu }

func (n *Node) RSSI() int8 { return n.lastRSSI }
