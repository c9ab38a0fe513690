// Package worker runs the per-core receive burst loop: poll a queue,
// classify and commit each packet to the framebuffer, free the buffer,
// and periodically snapshot device counters. Grounded on the teacher's
// internal/core/af_xdp.go (StartPacketProcessing / processRXQueue /
// maintainFillQueue / processCompletionQueue), generalized from one
// fixed AF_XDP control block per process to one per (port, queue) task
// assigned to this core.
package worker

import (
	"sync/atomic"
	"time"

	cfg "github.com/cezamee/pixelgraffiti/internal/config"
	"github.com/cezamee/pixelgraffiti/internal/codec"
	"github.com/cezamee/pixelgraffiti/internal/framebuffer"
	"github.com/cezamee/pixelgraffiti/internal/xdpnet"
	"gvisor.dev/gvisor/pkg/xdp"
)

// RXCounters holds one 64-bit packet counter per (port, queue) task,
// single-writer (the owning worker) multi-reader (the stats printer),
// per spec §5's "per-(port,queue) RX counter" shared resource.
type RXCounters struct {
	counters map[cfg.QueueTask]*atomic.Uint64
}

// NewRXCounters preallocates a counter for every task in the map so the
// printer never has to synchronise with worker startup to read one.
func NewRXCounters(pcm cfg.PortCoreMap) *RXCounters {
	rc := &RXCounters{counters: make(map[cfg.QueueTask]*atomic.Uint64)}
	for _, core := range pcm.Cores {
		for _, t := range core.Tasks {
			rc.counters[t] = new(atomic.Uint64)
		}
	}
	return rc
}

// Get returns the counter for a task, or nil if it was never registered.
func (rc *RXCounters) Get(t cfg.QueueTask) *atomic.Uint64 { return rc.counters[t] }

// Queue bundles one (port, queue) task with the resources a worker
// needs to service it.
type Queue struct {
	Task      cfg.QueueTask
	CB        *xdp.ControlBlock
	IfaceName string
	// StatsSlot is non-nil only for the queue designated to publish this
	// port's device counters (spec §3: one slot per MAC, not per queue).
	StatsSlot *framebuffer.PortStats
}

// Loop is one core's worker: it owns a disjoint set of queues (per
// CoreWork) and the shared framebuffer handle.
type Loop struct {
	CoreID  int
	Queues  []Queue
	FB      *framebuffer.Framebuffer
	RX      *RXCounters
	Quit    *atomic.Bool
}

// Run executes the busy-poll burst loop until Quit is set. It never
// blocks, never yields, and only returns on cooperative shutdown (spec
// §4.5, §5).
func (l *Loop) Run() {
	packetsSinceClockCheck := 0
	lastSnapshot := make([]time.Time, len(l.Queues))
	now := time.Now()
	for i := range lastSnapshot {
		lastSnapshot[i] = now
	}

	for !l.Quit.Load() {
		for i := range l.Queues {
			q := &l.Queues[i]

			l.processCompletionQueue(q)
			l.processRXQueue(q)
			l.maintainFillQueue(q)

			packetsSinceClockCheck++
			if packetsSinceClockCheck >= cfg.StatsCheckEvery && q.StatsSlot != nil {
				packetsSinceClockCheck = 0
				elapsed := time.Since(lastSnapshot[i])
				if elapsed >= cfg.StatsIntervalMS*time.Millisecond {
					l.snapshotDeviceStats(q)
					lastSnapshot[i] = time.Now()
				}
			}
		}
	}
}

func (l *Loop) processCompletionQueue(q *Queue) bool {
	cb := q.CB
	cb.UMEM.Lock()
	n, idx := cb.Completion.Peek()
	if n == 0 {
		cb.UMEM.Unlock()
		return false
	}
	for i := uint32(0); i < n; i++ {
		cb.UMEM.FreeFrame(cb.Completion.Get(idx + i))
	}
	cb.Completion.Release(n)
	cb.UMEM.Unlock()
	return true
}

func (l *Loop) processRXQueue(q *Queue) bool {
	cb := q.CB
	cb.UMEM.Lock()
	n, idx := cb.RX.Peek()
	if n == 0 {
		cb.UMEM.Unlock()
		return false
	}

	type rxPacket struct {
		buf  []byte
		addr uint64
	}
	packets := make([]rxPacket, n)
	for i := uint32(0); i < n; i++ {
		desc := cb.RX.Get(idx + i)
		packets[i] = rxPacket{buf: cb.UMEM.Get(desc), addr: uint64(desc.Addr)}
	}
	cb.RX.Release(n)
	cb.UMEM.Unlock()

	if counter := l.RX.Get(q.Task); counter != nil {
		counter.Add(uint64(n))
	}

	for _, pkt := range packets {
		if px, _, ok := codec.Decode(pkt.buf); ok {
			l.FB.Set(px.X, px.Y, px.RGBA)
		}
	}

	cb.UMEM.Lock()
	for _, pkt := range packets {
		cb.UMEM.FreeFrame(pkt.addr)
	}
	cb.UMEM.Unlock()

	return true
}

func (l *Loop) maintainFillQueue(q *Queue) {
	cb := q.CB
	cb.UMEM.Lock()
	cb.Fill.FillAll(&cb.UMEM)
	cb.UMEM.Unlock()
}

func (l *Loop) snapshotDeviceStats(q *Queue) {
	stats, err := xdpnet.ReadDeviceStats(q.IfaceName)
	if err != nil {
		return
	}
	q.StatsSlot.RxPackets = stats.RxPackets
	q.StatsSlot.RxBytes = stats.RxBytes
	q.StatsSlot.RxDropped = stats.RxDropped
	q.StatsSlot.RxErrors = stats.RxErrors
	q.StatsSlot.TxPackets = stats.TxPackets
	q.StatsSlot.TxBytes = stats.TxBytes
}
