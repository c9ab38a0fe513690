// Package codec implements the pure, copy-free packet classification and
// (x,y,rgba) extraction described in spec §4.2 (server decode path) and
// the matching encoders in spec §4.3 (client encode path). Grounded on
// _examples/original_source/dpdk-server/pixelflut-v6-server.c and
// dpdk-client/pixelflut-v6-client.c, translated from raw mbuf offset
// arithmetic into bounds-checked Go byte-slice indexing.
package codec

import "encoding/binary"

// Classification identifies which of the three supported encodings (or
// none) a frame matched, per spec §4.2's precedence order.
type Classification int

const (
	Ignore Classification = iota
	PixelflutV6
	PingxelflutV6
	PingxelflutV4
	// pingxelflutReserved marks a recognised-but-unimplemented pingxelflut
	// control message (SIZE_REQUEST / SIZE_RESPONSE, spec §4.2 step 1).
	pingxelflutReserved
)

const (
	etherTypeOff = 12

	ipv6NextHeaderOff = 6
	ipv6DstAddrOff    = 24

	ipv4ProtoOff = 9

	icmpTypeOff = 0
	icmpCodeOff = 1

	icmpEchoRequestV4 = 8
	icmpEchoRequestV6 = 128
)

const (
	ethHdr  = 14
	ip4Hdr  = 20
	ip6Hdr  = 40
	icmpHdr = 8
)

// Pixel is a decoded (or about-to-be-encoded) pixel write intent.
type Pixel struct {
	X, Y uint16
	RGBA uint32 // low 3 bytes are R,G,B; alpha (bits 24-31) is always 0 (spec: alpha reserved, unstored)
}

// Decode classifies an Ethernet frame and, if it carries a SET_PIXEL
// intent, extracts it. It never reads past len(frame) and never
// allocates. The returned bool is false for Ignore and for recognised
// but not-yet-actionable pingxelflut control messages (SIZE_REQUEST/
// SIZE_RESPONSE).
func Decode(frame []byte) (Pixel, Classification, bool) {
	if len(frame) < ethHdr+2 {
		return Pixel{}, Ignore, false
	}

	etherType := binary.BigEndian.Uint16(frame[etherTypeOff:])

	switch etherType {
	case 0x86DD: // IPv6
		return decodeIPv6(frame)
	case 0x0800: // IPv4
		return decodeIPv4(frame)
	default:
		return Pixel{}, Ignore, false
	}
}

func decodeIPv6(frame []byte) (Pixel, Classification, bool) {
	if len(frame) < ethHdr+ip6Hdr {
		return Pixel{}, Ignore, false
	}
	ipv6 := frame[ethHdr:]
	nextHeader := ipv6[ipv6NextHeaderOff]

	if nextHeader == 58 { // ICMPv6
		if len(frame) >= ethHdr+ip6Hdr+icmpHdr {
			icmp := frame[ethHdr+ip6Hdr:]
			if icmp[icmpTypeOff] == icmpEchoRequestV6 && icmp[icmpCodeOff] == 0 {
				if px, class, ok, handled := decodePingxelflut(frame, ethHdr+ip6Hdr+icmpHdr, PingxelflutV6); handled {
					return px, class, ok
				}
			}
		}
	}

	// Not ICMPv6 SET_PIXEL (or not ICMPv6 at all): pixelflut-v6, decoded
	// from the destination address (spec §4.2 step 1, else-branch).
	dst := ipv6[ipv6DstAddrOff : ipv6DstAddrOff+16]
	x := binary.BigEndian.Uint16(dst[8:10])
	y := binary.BigEndian.Uint16(dst[10:12])
	rgba := uint32(dst[12]) | uint32(dst[13])<<8 | uint32(dst[14])<<16
	return Pixel{X: x, Y: y, RGBA: rgba}, PixelflutV6, true
}

func decodeIPv4(frame []byte) (Pixel, Classification, bool) {
	if len(frame) < ethHdr+ip4Hdr {
		return Pixel{}, Ignore, false
	}
	ipv4 := frame[ethHdr:]
	if ipv4[ipv4ProtoOff] != 1 { // not ICMP
		return Pixel{}, Ignore, false
	}
	if len(frame) < ethHdr+ip4Hdr+icmpHdr {
		return Pixel{}, Ignore, false
	}
	icmp := frame[ethHdr+ip4Hdr:]
	if icmp[icmpTypeOff] != icmpEchoRequestV4 || icmp[icmpCodeOff] != 0 {
		return Pixel{}, Ignore, false
	}
	px, class, ok, handled := decodePingxelflut(frame, ethHdr+ip4Hdr+icmpHdr, PingxelflutV4)
	if !handled {
		return Pixel{}, Ignore, false
	}
	return px, class, ok
}

// decodePingxelflut reads the typed payload beginning at off (the first
// byte past the ICMP header). handled is true if the message kind byte
// identified this as a pingxelflut message at all (even if it carried no
// actionable pixel), matching spec §4.2's precedence rule that a
// pingxelflut frame is NEVER reclassified as pixelflut-v6 even when it
// carries no pixel (property 3 / scenario S3).
func decodePingxelflut(frame []byte, off int, class Classification) (Pixel, Classification, bool, bool) {
	if off >= len(frame) {
		return Pixel{}, Ignore, false, false
	}
	msgKind := frame[off]

	switch msgKind {
	case 0xcc: // SET_PIXEL
		if off+5 > len(frame) {
			return Pixel{}, class, false, true
		}
		x := binary.BigEndian.Uint16(frame[off+1 : off+3])
		y := binary.BigEndian.Uint16(frame[off+3 : off+5])

		payloadLen := len(frame) - off
		switch payloadLen {
		case 8:
			if off+8 > len(frame) {
				return Pixel{}, Ignore, false, false
			}
			r := frame[off+5]
			g := frame[off+6]
			b := frame[off+7]
			rgba := uint32(r) | uint32(g)<<8 | uint32(b)<<16
			return Pixel{X: x, Y: y, RGBA: rgba}, class, true, true
		case 9:
			// Alpha variant: recognised as pingxelflut but yields no pixel;
			// x, y and colour are all discarded (alpha is reserved).
			return Pixel{}, class, false, true
		default:
			return Pixel{}, class, false, true
		}
	case 0xaa, 0xbb: // SIZE_REQUEST, SIZE_RESPONSE (IPv6 only, spec §4.2 step 1)
		if class != PingxelflutV6 {
			return Pixel{}, Ignore, false, false
		}
		return Pixel{}, pingxelflutReserved, false, true
	default:
		// Not a recognised pingxelflut message kind: for IPv6 this falls
		// back to pixelflut-v6; for IPv4 there is no fallback (spec §4.2
		// step 2 only matches msg_kind==0xcc).
		return Pixel{}, Ignore, false, false
	}
}
