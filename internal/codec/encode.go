package codec

import "encoding/binary"

// Addrs bundles the source/destination link- and network-layer
// addresses the client encoder needs. For pixelflut-v6 only the first
// 8 bytes of DstIP are used (the /64 prefix); for pingxelflut the full
// 16 bytes of DstIP are the target host.
type Addrs struct {
	SrcMAC, DstMAC [6]byte
	SrcIP          [16]byte
	DstIP          [16]byte
}

// PixelflutV6FrameLen and PingxelflutFrameLen are the wire sizes from
// spec §6, before the §6 minimum-64-byte Ethernet pad.
const (
	PixelflutV6FrameLen  = ethHdr + ip6Hdr + 8 // UDP header, all-zero
	PingxelflutFrameLen  = ethHdr + ip6Hdr + icmpHdr + 8
	PingxelflutV4FrameLen = ethHdr + ip4Hdr + icmpHdr + 8
)

// EncodePixelflutV6 zeroes buf (which must be at least MinEthernetFrame
// bytes) and fills it with a pixelflut-v6 packet carrying px, and
// returns the number of meaningful bytes written before Ethernet
// padding (spec §4.3, §6).
func EncodePixelflutV6(buf []byte, addrs Addrs, px Pixel) int {
	zero(buf)

	copy(buf[0:6], addrs.DstMAC[:])
	copy(buf[6:12], addrs.SrcMAC[:])
	binary.BigEndian.PutUint16(buf[etherTypeOff:], 0x86DD)

	ip := buf[ethHdr:]
	ip[0] = 0x60 // version 6, traffic class/flow label left zero
	binary.BigEndian.PutUint16(ip[4:6], 8)
	ip[ipv6NextHeaderOff] = 17 // UDP
	ip[7] = 255                // hop limit

	copy(ip[8:24], addrs.SrcIP[:])
	copy(ip[ipv6DstAddrOff:ipv6DstAddrOff+8], addrs.DstIP[:8])

	dst := ip[ipv6DstAddrOff:]
	binary.BigEndian.PutUint16(dst[8:10], px.X)
	binary.BigEndian.PutUint16(dst[10:12], px.Y)
	dst[12] = byte(px.RGBA)
	dst[13] = byte(px.RGBA >> 8)
	dst[14] = byte(px.RGBA >> 16)
	dst[15] = 0 // alpha, always zero on the wire

	// UDP header (8 bytes, all zero: ports, length, checksum) is already
	// zeroed by zero(buf) above.
	return PixelflutV6FrameLen
}

// EncodePingxelflutV6 fills buf with a pingxelflut-over-ICMPv6 SET_PIXEL
// packet carrying px, targeting the full 128-bit addrs.DstIP.
func EncodePingxelflutV6(buf []byte, addrs Addrs, px Pixel) int {
	zero(buf)

	copy(buf[0:6], addrs.DstMAC[:])
	copy(buf[6:12], addrs.SrcMAC[:])
	binary.BigEndian.PutUint16(buf[etherTypeOff:], 0x86DD)

	ip := buf[ethHdr:]
	ip[0] = 0x60
	binary.BigEndian.PutUint16(ip[4:6], icmpHdr+8)
	ip[ipv6NextHeaderOff] = 58 // ICMPv6
	ip[7] = 255

	copy(ip[8:24], addrs.SrcIP[:])
	copy(ip[ipv6DstAddrOff:ipv6DstAddrOff+16], addrs.DstIP[:])

	icmp := ip[ip6Hdr:]
	icmp[icmpTypeOff] = icmpEchoRequestV6
	icmp[icmpCodeOff] = 0
	// checksum (icmp[2:4]) left zero, spec §4.3 / §6: intentional omission.

	payload := icmp[icmpHdr:]
	payload[0] = 0xcc
	binary.BigEndian.PutUint16(payload[1:3], px.X)
	binary.BigEndian.PutUint16(payload[3:5], px.Y)
	payload[5] = byte(px.RGBA)
	payload[6] = byte(px.RGBA >> 8)
	payload[7] = byte(px.RGBA >> 16)

	return PingxelflutFrameLen
}

// EncodePingxelflutV4 is the IPv4 sibling of EncodePingxelflutV6, used
// only by tests to exercise the decoder's symmetric IPv4 path; the
// client's CLI only ever emits pixelflut-v6 or pingxelflut-v6 (spec §6).
func EncodePingxelflutV4(buf []byte, srcMAC, dstMAC [6]byte, srcIP, dstIP [4]byte, px Pixel) int {
	zero(buf)

	copy(buf[0:6], dstMAC[:])
	copy(buf[6:12], srcMAC[:])
	binary.BigEndian.PutUint16(buf[etherTypeOff:], 0x0800)

	ip := buf[ethHdr:]
	ip[0] = 0x45 // version 4, IHL 5
	binary.BigEndian.PutUint16(ip[2:4], uint16(ip4Hdr+icmpHdr+8))
	ip[8] = 255 // TTL
	ip[ipv4ProtoOff] = 1 // ICMP
	copy(ip[12:16], srcIP[:])
	copy(ip[16:20], dstIP[:])

	icmp := ip[ip4Hdr:]
	icmp[icmpTypeOff] = icmpEchoRequestV4
	icmp[icmpCodeOff] = 0

	payload := icmp[icmpHdr:]
	payload[0] = 0xcc
	binary.BigEndian.PutUint16(payload[1:3], px.X)
	binary.BigEndian.PutUint16(payload[3:5], px.Y)
	payload[5] = byte(px.RGBA)
	payload[6] = byte(px.RGBA >> 8)
	payload[7] = byte(px.RGBA >> 16)

	return PingxelflutV4FrameLen
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
