package xdpnet

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ConfigureRSS steers the interface's receive hash across numQueues rings
// so each queue in the port-core map actually sees traffic. Flow control
// is not touched here; see DisableFlowControl (spec §1's
// "device-binding facility" collaborator; there is no pack library for
// ethtool-genetlink, so this shells out the way an operator would).
func ConfigureRSS(ifaceName string, numQueues int) error {
	if out, err := exec.Command("ethtool", "-L", ifaceName, "combined", strconv.Itoa(numQueues)).CombinedOutput(); err != nil {
		return &DeviceError{Op: "set combined queue count", Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))}
	}
	if out, err := exec.Command("ethtool", "-X", ifaceName, "equal", strconv.Itoa(numQueues)).CombinedOutput(); err != nil {
		return &DeviceError{Op: "set RSS indirection table", Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))}
	}

	// Select the hash input fields explicitly (spec §4.4): pixelflut-v6
	// rides UDP/IPv6 with the pixel encoded in the destination address,
	// and pingxelflut rides ICMPv6 (the generic ip6 flow type), so both
	// must hash on source+destination address to fan out across queues
	// instead of relying on whatever the NIC's default hash happens to be.
	if out, err := exec.Command("ethtool", "-N", ifaceName, "rx-flow-hash", "udp6", "sd").CombinedOutput(); err != nil {
		return &DeviceError{Op: "set udp6 RSS hash fields", Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))}
	}
	if out, err := exec.Command("ethtool", "-N", ifaceName, "rx-flow-hash", "ip6", "sd").CombinedOutput(); err != nil {
		return &DeviceError{Op: "set ip6 RSS hash fields", Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))}
	}
	return nil
}

// DisableFlowControl turns off pause frames so a slow worker core can't
// stall the whole NIC.
func DisableFlowControl(ifaceName string) error {
	out, err := exec.Command("ethtool", "-A", ifaceName, "rx", "off", "tx", "off").CombinedOutput()
	if err != nil {
		return &DeviceError{Op: "disable flow control", Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))}
	}
	return nil
}

// SetPromiscuous puts the interface into (or out of) promiscuous mode,
// required because pixelflut-v6 addresses every pixel at a distinct
// IPv6 destination address the NIC would otherwise drop.
func SetPromiscuous(ifaceName string, on bool) error {
	mode := "off"
	if on {
		mode = "on"
	}
	out, err := exec.Command("ip", "link", "set", "dev", ifaceName, "promisc", mode).CombinedOutput()
	if err != nil {
		return &DeviceError{Op: "set promiscuous mode", Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))}
	}
	return nil
}

// DeviceStats mirrors the subset of /sys/class/net/<iface>/statistics
// counters spec §4.7's stats printer reports, read straight from sysfs
// instead of a bespoke eBPF counter map — the teacher's stats_map only
// ever counted its own TCP/UDP/redirected traffic, which has no
// equivalent here.
type DeviceStats struct {
	RxPackets, RxBytes, RxDropped, RxErrors uint64
	TxPackets, TxBytes                      uint64
}

// ReadDeviceStats reads the current sysfs counters for ifaceName.
func ReadDeviceStats(ifaceName string) (DeviceStats, error) {
	base := filepath.Join("/sys/class/net", ifaceName, "statistics")
	read := func(name string) (uint64, error) {
		b, err := os.ReadFile(filepath.Join(base, name))
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
		if err != nil {
			return 0, err
		}
		return v, nil
	}

	var s DeviceStats
	var err error
	if s.RxPackets, err = read("rx_packets"); err != nil {
		return s, &DeviceError{Op: "read rx_packets", Err: err}
	}
	if s.RxBytes, err = read("rx_bytes"); err != nil {
		return s, &DeviceError{Op: "read rx_bytes", Err: err}
	}
	if s.RxDropped, err = read("rx_dropped"); err != nil {
		return s, &DeviceError{Op: "read rx_dropped", Err: err}
	}
	if s.RxErrors, err = read("rx_errors"); err != nil {
		return s, &DeviceError{Op: "read rx_errors", Err: err}
	}
	if s.TxPackets, err = read("tx_packets"); err != nil {
		return s, &DeviceError{Op: "read tx_packets", Err: err}
	}
	if s.TxBytes, err = read("tx_bytes"); err != nil {
		return s, &DeviceError{Op: "read tx_bytes", Err: err}
	}
	return s, nil
}

// NumaNode returns the NUMA node an interface is attached to, or -1 if
// the device exposes none (e.g. virtual interfaces) — used by cpupin to
// warn when worker cores are pinned off the NIC's home node.
func NumaNode(ifaceName string) int {
	b, err := os.ReadFile(filepath.Join("/sys/class/net", ifaceName, "device/numa_node"))
	if err != nil {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return -1
	}
	return n
}
