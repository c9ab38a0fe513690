// Package config holds the shared constants and data types for the
// pixel-graffiti dataplane: frame geometry, ring sizing, and the
// port/core work assignments produced by the dispatcher.
package config

const (
	// EthHeaderSize is the size in bytes of an Ethernet II header.
	EthHeaderSize = 14
	// IPv4HeaderMinSize is the minimum size of an IPv4 header (no options).
	IPv4HeaderMinSize = 20
	// IPv6HeaderSize is the fixed size of an IPv6 header.
	IPv6HeaderSize = 40
	// ICMPHeaderSize is the size of the fixed ICMP/ICMPv6 header DPDK calls rte_icmp_hdr.
	ICMPHeaderSize = 8
	// UDPHeaderSize is the size of a UDP header.
	UDPHeaderSize = 8
	// MinEthernetFrame is the minimum frame size Ethernet will carry.
	MinEthernetFrame = 64

	// FrameSize is the UMEM frame size backing every AF_XDP descriptor.
	FrameSize = 2048

	// BurstSize is the number of packet descriptors moved per RX/TX burst.
	BurstSize = 32

	// NumRxDesc is the RX descriptor ring depth requested per queue.
	NumRxDesc = 1024

	// MaxPorts bounds the PortStats table colocated with the framebuffer.
	MaxPorts = 32
	// MaxCoresPerPort bounds how many queues/cores a single port may claim.
	MaxCoresPerPort = 16
	// MaxQueuesPerCore bounds how many (port,queue) tasks one core may serve.
	MaxQueuesPerCore = 4

	// StatsIntervalMS is the minimum wall-clock gap between stats snapshots.
	StatsIntervalMS = 250
	// StatsCheckEvery amortises clock_gettime-equivalent calls on the fast path.
	StatsCheckEvery = 10_000

	// DefaultWidth and DefaultHeight are the server's default canvas size.
	DefaultWidth  = 1920
	DefaultHeight = 1080
	// DefaultSharedMemoryName is the default POSIX shared-memory segment name.
	DefaultSharedMemoryName = "/pixelflut"

	// pingxelflut message kinds (spec §4.2, original MSG_* constants).
	MsgSizeRequest  = 0xaa
	MsgSizeResponse = 0xbb
	MsgSetPixel     = 0xcc

	// EtherTypeIPv4 and EtherTypeIPv6 are the big-endian EtherType values.
	EtherTypeIPv4 = 0x0800
	EtherTypeIPv6 = 0x86DD

	// ProtoICMP and ProtoICMPv6 are the IP next-header/protocol values.
	ProtoICMP   = 1
	ProtoICMPv6 = 58
	ProtoUDP    = 17

	// ICMPEchoRequestV4 and ICMPEchoRequestV6 are the echo-request type
	// values (ICMPv4 type 8, ICMPv6 type 128). Package codec uses its own
	// icmpEchoRequestV4/icmpEchoRequestV6; these are kept here only as
	// documentation of the wire values.
	ICMPEchoRequestV4 = 8
	ICMPEchoRequestV6 = 128
)

// PortConfig is one port's slice of the operator-supplied port-core
// mapping: how many RX queues to create and which core polls each one.
type PortConfig struct {
	PortID uint16
	Cores  []int // Cores[i] polls queue i
}

// Queues reports how many RX queues this port needs.
func (p PortConfig) Queues() int { return len(p.Cores) }

// QueueTask identifies a single (port, queue) burst-poll assignment.
type QueueTask struct {
	PortID  uint16
	QueueID uint32
}

// CoreWork is everything one pinned worker goroutine needs: its list of
// (port, queue) tasks, polled in round-robin order within the core.
type CoreWork struct {
	CoreID int
	Tasks  []QueueTask
}

// PortCoreMap is the fully validated result of parsing the operator's
// "port:core[,core...] ..." mapping string.
type PortCoreMap struct {
	Ports []PortConfig
	Cores []CoreWork
}
