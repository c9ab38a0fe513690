// Package framebuffer implements the cross-process, shared-memory pixel
// grid (spec §3, §4.1) and the colocated PortStats table (spec §3,
// "PortStats slot"). Grounded on _examples/original_source/framebuffer.c
// (shm_open/ftruncate/mmap, the "use as-is with a warning" resize policy,
// and bounds-checked fb_set/unchecked fb_get) translated into the
// teacher's idiom of reaching for golang.org/x/sys/unix for raw syscalls
// (as the teacher does for unix.CPUSet/SchedSetaffinity in cpupin).
package framebuffer

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// IoError wraps a syscall failure encountered while creating or
// attaching the shared-memory segment.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("framebuffer: %s: %v", e.Op, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// ResourceError reports that the PortStats table has no free slot left.
type ResourceError struct {
	Reason string
}

func (e *ResourceError) Error() string { return "framebuffer: " + e.Reason }

const statsSlotCount = 32 // mirrors config.MaxPorts; the two values must stay equal

// PortStats is one NIC's published counters, keyed by MAC address.
type PortStats struct {
	MAC      [6]byte
	Pad      [2]byte // keep the struct a multiple of 8 bytes for clean array indexing
	RxPackets uint64
	RxBytes   uint64
	RxDropped uint64
	RxErrors  uint64
	RxNoMbuf  uint64
	TxPackets uint64
	TxBytes   uint64
}

// Framebuffer is a handle to the named shared-memory segment: a
// row-major width*height array of atomic 32-bit RGBA words, with a
// PortStats table appended past the pixel plane.
type Framebuffer struct {
	Width  uint16
	Height uint16

	raw    []byte
	pixels []atomic.Uint32
	stats  []PortStats
	fd     int
}

// pixelPlaneBytes returns the byte size of width*height RGBA words.
func pixelPlaneBytes(width, height uint16) int64 {
	return int64(width) * int64(height) * 4
}

// CreateOrAttach opens (creating if absent) the named POSIX shared
// memory segment, resizes it if freshly created, maps it read+write,
// and returns a Framebuffer handle. The expected size is the
// width*height*4 pixel plane plus the PortStats table. If the segment
// already existed with a different size, it is used as-is and a warning
// is logged — the operator must unlink the segment to resize it (spec
// §4.1, design note in spec §9).
func CreateOrAttach(width, height uint16, name string) (*Framebuffer, error) {
	fd, err := unix.Open(shmPath(name), unix.O_CREAT|unix.O_RDWR, 0600)
	if err != nil {
		return nil, &IoError{Op: "open " + name, Err: err}
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, &IoError{Op: "fstat " + name, Err: err}
	}

	wantPixels := pixelPlaneBytes(width, height)
	wantTotal := wantPixels + int64(statsSlotCount)*int64(unsafe.Sizeof(PortStats{}))

	switch {
	case st.Size == 0:
		if err := unix.Ftruncate(fd, wantTotal); err != nil {
			unix.Close(fd)
			return nil, &IoError{Op: "ftruncate " + name, Err: err}
		}
	case st.Size != wantTotal:
		fmt.Printf("⚠️ shared memory %q is %d bytes, expected %d for a %dx%d framebuffer; "+
			"attaching as-is (unlink %q to resize)\n", name, st.Size, wantTotal, width, height, shmPath(name))
	}

	mapLen := wantTotal
	if st.Size != 0 && st.Size < wantTotal {
		// Existing segment is smaller than required: map only what exists
		// so we never read/write past the real segment.
		mapLen = st.Size
	}

	data, err := unix.Mmap(fd, 0, int(mapLen), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, &IoError{Op: "mmap " + name, Err: err}
	}

	fb := &Framebuffer{
		Width:  width,
		Height: height,
		raw:    data,
		fd:     fd,
	}

	nPixelWords := int(wantPixels / 4)
	if int64(len(data)) < wantPixels {
		nPixelWords = len(data) / 4
	}
	if nPixelWords > 0 {
		fb.pixels = unsafe.Slice((*atomic.Uint32)(unsafe.Pointer(&data[0])), nPixelWords)
	}

	if int64(len(data)) > wantPixels {
		statsOff := wantPixels
		nSlots := (int64(len(data)) - statsOff) / int64(unsafe.Sizeof(PortStats{}))
		if nSlots > statsSlotCount {
			nSlots = statsSlotCount
		}
		if nSlots > 0 {
			fb.stats = unsafe.Slice((*PortStats)(unsafe.Pointer(&data[statsOff])), int(nSlots))
		}
	}

	fmt.Printf("📋 framebuffer %q attached: %dx%d pixels, %d stats slots\n", name, width, height, len(fb.stats))
	return fb, nil
}

func shmPath(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return "/dev/shm" + name
	}
	return "/dev/shm/" + name
}

// Set stores rgba at (x,y). Out-of-bounds coordinates are silently
// dropped (spec §4.1 invariant). The store is a single aligned 32-bit
// atomic write: concurrent writers race only in outcome (last write
// wins), never in a torn pixel (spec §5).
func (fb *Framebuffer) Set(x, y uint16, rgba uint32) {
	if x >= fb.Width || y >= fb.Height {
		return
	}
	idx := int(y)*int(fb.Width) + int(x)
	if idx >= len(fb.pixels) {
		return
	}
	fb.pixels[idx].Store(rgba)
}

// Get returns the pixel at (x,y). Undefined for out-of-bounds
// coordinates (spec §4.1: "unchecked; defined only for in-bounds
// coordinates").
func (fb *Framebuffer) Get(x, y uint16) uint32 {
	idx := int(y)*int(fb.Width) + int(x)
	return fb.pixels[idx].Load()
}

// ClaimStatsSlot scans the PortStats table for a slot already owned by
// mac, or else the first all-zero slot, and claims it by copying mac in
// (spec §3 "PortStats slot" invariant: idempotent across restarts,
// linear scan, first MAC match wins). Mirrors the original server's
// find_free_stats_slot, including its two distinct log lines.
func (fb *Framebuffer) ClaimStatsSlot(mac [6]byte) (int, error) {
	var zero [6]byte
	for slot := range fb.stats {
		if fb.stats[slot].MAC == mac {
			fmt.Printf("Found slot %d with my MAC address, using that\n", slot)
			return slot, nil
		}
		if fb.stats[slot].MAC == zero {
			fmt.Printf("Found empty slot %d, using that\n", slot)
			fb.stats[slot].MAC = mac
			return slot, nil
		}
	}
	return -1, &ResourceError{Reason: "no free PortStats slot, increase MaxPorts"}
}

// StatsSlot returns a pointer into shared memory for slot, so a worker
// can update its own counters in place without a lock (spec §5: single
// writer per slot, multi-reader).
func (fb *Framebuffer) StatsSlot(slot int) *PortStats {
	return &fb.stats[slot]
}

// Close unmaps the segment. It does not unlink the shared-memory name;
// the segment is destroyed only by an explicit operator unlink outside
// this process (spec §3 Framebuffer lifecycle).
func (fb *Framebuffer) Close() error {
	if err := unix.Munmap(fb.raw); err != nil {
		return &IoError{Op: "munmap", Err: err}
	}
	return unix.Close(fb.fd)
}
