// MIT License
// Copyright (c) 2025 Cezame
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

/*
pixelflut-v6 server main entrypoint

- Parses the port-core mapping and validates it against enabled cores
- Loads and attaches the queue-redirect eBPF program, configures RSS,
  promiscuous mode and flow control on every referenced port
- Creates or attaches the shared-memory framebuffer
- Launches one pinned worker goroutine per core with its assigned
  (port, queue) tasks
- Runs the stats-printer loop on the main goroutine until SIGINT/SIGTERM
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cilium/ebpf/rlimit"
	"golang.org/x/sync/errgroup"

	cfg "github.com/cezamee/pixelgraffiti/internal/config"
	"github.com/cezamee/pixelgraffiti/internal/cpupin"
	"github.com/cezamee/pixelgraffiti/internal/framebuffer"
	"github.com/cezamee/pixelgraffiti/internal/pcm"
	"github.com/cezamee/pixelgraffiti/internal/statsprinter"
	"github.com/cezamee/pixelgraffiti/internal/worker"
	"github.com/cezamee/pixelgraffiti/internal/xdpnet"
)

func main() {
	width := flag.Int("width", cfg.DefaultWidth, "framebuffer width in pixels")
	height := flag.Int("height", cfg.DefaultHeight, "framebuffer height in pixels")
	shmName := flag.String("shared-memory-name", cfg.DefaultSharedMemoryName, "POSIX shared-memory segment name")
	mapping := flag.String("port-core-mapping", "", `port-core mapping, e.g. "0:1,2 1:3"`)
	iface := flag.String("interface", "eth0", "network interface to bind")
	flag.Parse()

	if *mapping == "" {
		log.Fatalf("--port-core-mapping is required")
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		log.Fatalf("failed to remove memlock: %v", err)
	}

	fmt.Printf("🚀 initializing pixelflut-v6 server\n")
	cpupin.DetectTopology()

	numCPU := runtime.NumCPU()
	enabledCores := func(core int) bool { return core >= 1 && core < numCPU }

	portCoreMap, err := pcm.Parse(*mapping, cfg.MaxPorts, enabledCores)
	if err != nil {
		log.Fatalf("invalid --port-core-mapping: %v", err)
	}

	prog, err := xdpnet.LoadAndAttach(*iface)
	if err != nil {
		log.Fatalf("failed to load/attach eBPF program on %s: %v", *iface, err)
	}
	defer prog.Close()
	fmt.Printf("🔌 %s MAC: %02x:%02x:%02x:%02x:%02x:%02x\n", *iface,
		prog.MAC[0], prog.MAC[1], prog.MAC[2], prog.MAC[3], prog.MAC[4], prog.MAC[5])

	maxQueues := 0
	for _, port := range portCoreMap.Ports {
		if port.Queues() > maxQueues {
			maxQueues = port.Queues()
		}
	}
	if err := xdpnet.ConfigureRSS(*iface, maxQueues); err != nil {
		log.Fatalf("failed to configure RSS on %s: %v", *iface, err)
	}
	if err := xdpnet.SetPromiscuous(*iface, true); err != nil {
		log.Fatalf("failed to enable promiscuous mode on %s: %v", *iface, err)
	}
	if err := xdpnet.DisableFlowControl(*iface); err != nil {
		fmt.Printf("⚠️ failed to disable flow control on %s: %v\n", *iface, err)
	}

	nicNode := xdpnet.NumaNode(*iface)

	fb, err := framebuffer.CreateOrAttach(uint16(*width), uint16(*height), *shmName)
	if err != nil {
		log.Fatalf("failed to create/attach framebuffer: %v", err)
	}
	defer fb.Close()

	var portSlots []statsprinter.PortSlot
	for _, port := range portCoreMap.Ports {
		slot, err := fb.ClaimStatsSlot(prog.MAC)
		if err != nil {
			log.Fatalf("port %d: %v", port.PortID, err)
		}
		portSlots = append(portSlots, statsprinter.PortSlot{PortID: port.PortID, Slot: fb.StatsSlot(slot)})
	}

	rxCounters := worker.NewRXCounters(portCoreMap)

	var quit atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Printf("🛑 shutdown requested, draining workers...\n")
		quit.Store(true)
	}()

	var g errgroup.Group
	for _, core := range portCoreMap.Cores {
		core := core
		g.Go(func() error {
			if err := cpupin.Pin(core.CoreID); err != nil {
				return err
			}
			cpupin.WarnIfRemote(*iface, core.CoreID, nicNode)

			queues := make([]worker.Queue, 0, len(core.Tasks))
			for _, t := range core.Tasks {
				cb, err := prog.OpenQueueSocket(t.QueueID)
				if err != nil {
					return fmt.Errorf("core %d: %w", core.CoreID, err)
				}
				q := worker.Queue{Task: t, CB: cb, IfaceName: *iface}
				if t.QueueID == 0 {
					for _, ps := range portSlots {
						if ps.PortID == t.PortID {
							q.StatsSlot = ps.Slot
							break
						}
					}
				}
				queues = append(queues, q)
			}

			loop := &worker.Loop{CoreID: core.CoreID, Queues: queues, FB: fb, RX: rxCounters, Quit: &quit}
			loop.Run()
			return nil
		})
	}

	statsprinter.Run(portCoreMap, rxCounters, portSlots, cfg.StatsIntervalMS*time.Millisecond, quit.Load)

	if err := g.Wait(); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}
