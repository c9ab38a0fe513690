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
pixelflut-v6 client main entrypoint

- Loads the source image via the fluterimage loader
- Picks pixelflut-v6 (hardcoded fe80::1 -> fe80::/64) or pingxelflut-v6
  (to an operator-supplied target) encoding, mirroring the original
  DPDK client's hardcoded addresses
- Streams the image as packets at line rate until SIGINT/SIGTERM
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cilium/ebpf/rlimit"

	"github.com/cezamee/pixelgraffiti/internal/codec"
	"github.com/cezamee/pixelgraffiti/internal/cpupin"
	"github.com/cezamee/pixelgraffiti/internal/fluterimage"
	"github.com/cezamee/pixelgraffiti/internal/sender"
	"github.com/cezamee/pixelgraffiti/internal/xdpnet"
)

// hardcodedSrcMAC/hardcodedDstMAC/hardcodedSrcIP match the original
// DPDK client's parse_mac("14:a0:f8:8b:1e:e3") / ::e4 and
// parse_ipv6("fe80::1") — there is no CLI flag for them in spec §6.
var (
	hardcodedSrcMAC = [6]byte{0x14, 0xa0, 0xf8, 0x8b, 0x1e, 0xe3}
	hardcodedDstMAC = [6]byte{0x14, 0xa0, 0xf8, 0x8b, 0x1e, 0xe4}
	hardcodedSrcIP  = net.ParseIP("fe80::1").To16()
	hardcodedDstNet = net.ParseIP("fe80::").To16()
)

func main() {
	imagePath := flag.String("image", "", "path to image to flut (required)")
	pingxelflutTarget := flag.String("pingxelflut", "", "use pingxelflut to this IPv6 target instead of pixelflut-v6")
	iface := flag.String("interface", "eth0", "network interface to transmit on")
	queue := flag.Uint("queue", 0, "TX queue id")
	flag.Parse()

	if *imagePath == "" {
		log.Fatalf("--image is required")
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		log.Fatalf("failed to remove memlock: %v", err)
	}

	img, err := fluterimage.Load(*imagePath)
	if err != nil {
		log.Fatalf("failed to load image: %v", err)
	}

	addrs := codec.Addrs{SrcMAC: hardcodedSrcMAC, DstMAC: hardcodedDstMAC}
	copy(addrs.SrcIP[:], hardcodedSrcIP)

	encoding := sender.PixelflutV6
	if *pingxelflutTarget != "" {
		target := net.ParseIP(*pingxelflutTarget).To16()
		if target == nil {
			log.Fatalf("invalid --pingxelflut target %q", *pingxelflutTarget)
		}
		copy(addrs.DstIP[:], target)
		encoding = sender.PingxelflutV6
		fmt.Printf("🎯 using pingxelflut protocol to flut from fe80::1 to %s\n", *pingxelflutTarget)
	} else {
		copy(addrs.DstIP[:], hardcodedDstNet)
		fmt.Printf("🎯 using pixelflut v6 protocol to flut from fe80::1 to fe80::/64\n")
	}

	prog, err := xdpnet.LoadAndAttach(*iface)
	if err != nil {
		log.Fatalf("failed to load/attach eBPF program on %s: %v", *iface, err)
	}
	defer prog.Close()

	cb, err := prog.OpenQueueSocket(uint32(*queue))
	if err != nil {
		log.Fatalf("failed to open TX queue %d on %s: %v", *queue, *iface, err)
	}

	if err := cpupin.Pin(1); err != nil {
		fmt.Printf("⚠️ CPU affinity pinning failed: %v\n", err)
	}
	cpupin.WarnIfRemote(*iface, 1, xdpnet.NumaNode(*iface))

	// The sender loop is always single-core (spec §4.6); warn if the host
	// offers more than the one core we actually use, mirroring the
	// original client's "WARNING: Too many lcores enabled" message.
	if n := runtime.NumCPU(); n > 1 {
		fmt.Printf("⚠️ too many cores enabled, only using 1 of %d for the sender loop\n", n)
	}

	var quit atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Printf("🛑 shutdown requested\n")
		quit.Store(true)
	}()

	loop := &sender.Loop{CB: cb, Image: img, Addrs: addrs, Encoding: encoding, Quit: &quit}
	fmt.Printf("🚀 sending %dx%d image on %s queue %d [Ctrl+C to quit]\n", img.Width, img.Height, *iface, *queue)
	loop.Run(5 * time.Second)
}
