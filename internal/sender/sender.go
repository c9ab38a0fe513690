// Package sender runs the client's single-core transmit loop: it walks
// the image in row-major order, fills a burst of packet buffers in
// place, transmits with spin-until-accepted semantics, and periodically
// reports counters. Grounded on the original DPDK client's lcore_main
// (original_source/dpdk-client/pixelflut-v6-client.c) and the teacher's
// internal/core/af_xdp.go TX path (sendPacketTX's completion-then-
// reserve sequencing), adapted from DPDK mbufs to AF_XDP UMEM frames.
package sender

import (
	"fmt"
	"sync/atomic"
	"time"

	cfg "github.com/cezamee/pixelgraffiti/internal/config"
	"github.com/cezamee/pixelgraffiti/internal/codec"
	"github.com/cezamee/pixelgraffiti/internal/fluterimage"
	"golang.org/x/sys/unix"
	"gvisor.dev/gvisor/pkg/xdp"
)

// Cursor is the client-local (x,y) walk over the image grid, advanced
// in row-major order with wraparound (spec §3, §4.3, property 5).
type Cursor struct {
	X, Y          uint16
	Width, Height uint16
}

// Next returns the current (x,y) and advances the cursor.
func (c *Cursor) Next() (x, y uint16) {
	x, y = c.X, c.Y
	c.X++
	if c.X >= c.Width {
		c.X = 0
		c.Y++
		if c.Y >= c.Height {
			c.Y = 0
		}
	}
	return
}

// Encoding selects which wire format the sender emits.
type Encoding int

const (
	PixelflutV6 Encoding = iota
	PingxelflutV6
)

// Loop is the client's TX burst loop, pinned to a single core.
type Loop struct {
	CB       *xdp.ControlBlock
	Image    *fluterimage.FluterImage
	Addrs    codec.Addrs
	Encoding Encoding
	Quit     *atomic.Bool

	TxPackets atomic.Uint64
	TxBytes   atomic.Uint64
}

// Run streams the image as packets until Quit is set, reporting
// throughput on the given interval (spec §4.6).
func (l *Loop) Run(reportEvery time.Duration) {
	cursor := Cursor{Width: l.Image.Width, Height: l.Image.Height}

	lastReport := time.Now()
	var lastTxPackets uint64

	for !l.Quit.Load() {
		frames := make([][]byte, 0, cfg.BurstSize)
		addrs := make([]uint64, 0, cfg.BurstSize)

		for i := 0; i < cfg.BurstSize; i++ {
			x, y := cursor.Next()
			rgba := l.Image.At(x, y)

			frameAddr := l.allocFrame()
			if frameAddr == 0 {
				break
			}

			// Request the full UMEM frame, not just MinEthernetFrame: the
			// encoders write up to PingxelflutFrameLen (70 bytes), and
			// UMEM.Get returns mem[Addr:Addr+Len] exactly, so asking for
			// only 64 bytes here truncates the buffer the encoder writes
			// into (mirrors the teacher's sendPacketTX, which requests
			// exactly the length it is about to write).
			var frameLen int
			buf := l.CB.UMEM.Get(unix.XDPDesc{Addr: frameAddr, Len: uint32(cfg.FrameSize)})
			switch l.Encoding {
			case PingxelflutV6:
				frameLen = codec.EncodePingxelflutV6(buf, l.Addrs, codec.Pixel{X: x, Y: y, RGBA: rgba})
			default:
				frameLen = codec.EncodePixelflutV6(buf, l.Addrs, codec.Pixel{X: x, Y: y, RGBA: rgba})
			}
			if frameLen < cfg.MinEthernetFrame {
				frameLen = cfg.MinEthernetFrame
			}

			frames = append(frames, buf[:frameLen])
			addrs = append(addrs, frameAddr)
		}

		l.transmitBurst(frames, addrs)

		if elapsed := time.Since(lastReport); elapsed >= reportEvery {
			sent := l.TxPackets.Load()
			pps := float64(sent-lastTxPackets) / elapsed.Seconds()
			fmt.Printf("📈 tx_packets=%d (%.0f pkt/s)\n", sent, pps)
			lastTxPackets = sent
			lastReport = time.Now()
		}
	}
}

// allocFrame frees completed TX descriptors first, then allocates a
// fresh UMEM frame for the next packet (mirrors the teacher's
// sendPacketTX: drain completions before reserving).
func (l *Loop) allocFrame() uint64 {
	l.CB.UMEM.Lock()
	defer l.CB.UMEM.Unlock()

	n, idx := l.CB.Completion.Peek()
	if n > 0 {
		for i := uint32(0); i < n; i++ {
			l.CB.UMEM.FreeFrame(l.CB.Completion.Get(idx + i))
		}
		l.CB.Completion.Release(n)
	}

	return l.CB.UMEM.AllocFrame()
}

// transmitBurst reserves TX descriptors and spins until the NIC accepts
// at least one packet (spec §4.6: "while sent == 0 {}"), then frees any
// unsent tail and logs once.
func (l *Loop) transmitBurst(frames [][]byte, addrs []uint64) {
	if len(frames) == 0 {
		return
	}

	var sent uint32
	var idx uint32
	for sent == 0 {
		l.CB.UMEM.Lock()
		sent, idx = l.CB.TX.Reserve(&l.CB.UMEM, uint32(len(frames)))
		l.CB.UMEM.Unlock()
	}

	l.CB.UMEM.Lock()
	for i := uint32(0); i < sent; i++ {
		desc := unix.XDPDesc{Addr: addrs[i], Len: uint32(len(frames[i]))}
		l.CB.TX.Set(idx+i, desc)
	}
	l.CB.TX.Notify()
	l.CB.UMEM.Unlock()

	l.TxPackets.Add(uint64(sent))
	for i := uint32(0); i < sent; i++ {
		l.TxBytes.Add(uint64(len(frames[i])))
	}

	if int(sent) < len(frames) {
		fmt.Printf("⚠️ could not send %d of %d packets, dropping tail\n", len(frames)-int(sent), len(frames))
		l.CB.UMEM.Lock()
		for i := sent; i < uint32(len(frames)); i++ {
			l.CB.UMEM.FreeFrame(addrs[i])
		}
		l.CB.UMEM.Unlock()
	}
}
