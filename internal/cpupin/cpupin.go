// Package cpupin pins worker goroutines to CPU cores and reports whether
// those cores share a NUMA node with the NIC, generalizing the teacher's
// fixed four-role affinity map (root utils.go: setCPUAffinity,
// detectNUMATopology) to the dynamic per-core assignment produced by the
// port-core map.
package cpupin

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ResourceError reports a core or topology request that cannot be
// satisfied on this host.
type ResourceError struct {
	Reason string
}

func (e *ResourceError) Error() string { return "cpupin: " + e.Reason }

// Pin locks the calling OS thread and sets its scheduler affinity to a
// single core. Call it from the goroutine that will run the hot loop,
// not from a setup goroutine — LockOSThread only binds the caller.
func Pin(core int) error {
	runtime.LockOSThread()

	numCPU := runtime.NumCPU()
	if core < 0 || core >= numCPU {
		return &ResourceError{Reason: fmt.Sprintf("core %d not available (host has %d)", core, numCPU)}
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(core)

	tid := unix.Gettid()
	if err := unix.SchedSetaffinity(tid, &set); err != nil {
		return &ResourceError{Reason: fmt.Sprintf("set affinity to core %d: %v", core, err)}
	}

	fmt.Printf("🎯 Pinned goroutine to CPU core %d (TID: %d)\n", core, tid)
	return nil
}

// NumaNodeOfCore returns the NUMA node core belongs to, or -1 if the
// topology can't be determined (e.g. running in a container without
// /sys/devices/system/node).
func NumaNodeOfCore(core int) int {
	nodes, err := filepath.Glob("/sys/devices/system/node/node*")
	if err != nil {
		return -1
	}
	for _, nodePath := range nodes {
		base := filepath.Base(nodePath)
		nodeID, err := strconv.Atoi(strings.TrimPrefix(base, "node"))
		if err != nil {
			continue
		}
		list, err := os.ReadFile(filepath.Join(nodePath, "cpulist"))
		if err != nil {
			continue
		}
		if cpuListContains(strings.TrimSpace(string(list)), core) {
			return nodeID
		}
	}
	return -1
}

func cpuListContains(list string, core int) bool {
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loN, err1 := strconv.Atoi(lo)
			hiN, err2 := strconv.Atoi(hi)
			if err1 == nil && err2 == nil && core >= loN && core <= hiN {
				return true
			}
			continue
		}
		if n, err := strconv.Atoi(part); err == nil && n == core {
			return true
		}
	}
	return false
}

// WarnIfRemote logs a warning when core is on a different NUMA node than
// the NIC ifaceName is attached to — cross-node traffic still works, it
// just costs an interconnect hop per packet.
func WarnIfRemote(ifaceName string, core, nicNode int) {
	if nicNode < 0 {
		return
	}
	coreNode := NumaNodeOfCore(core)
	if coreNode < 0 || coreNode == nicNode {
		return
	}
	fmt.Printf("⚠️ core %d is on NUMA node %d but %s is on node %d, expect extra interconnect latency\n",
		core, coreNode, ifaceName, nicNode)
}

// DetectTopology prints a one-line summary of the host's core count,
// matching the teacher's detectNUMATopology but without the teacher's
// fixed four-role layout (RX/TX/TLS/PTY), which has no equivalent here.
func DetectTopology() {
	numCPU := runtime.NumCPU()
	fmt.Printf("🔍 System topology: %d CPU cores detected\n", numCPU)
	if numCPU < 2 {
		fmt.Printf("⚠️ single core detected, affinity pinning disabled\n")
	}
}
