package codec

import (
	"encoding/binary"
	"testing"
)

func testAddrs() Addrs {
	var a Addrs
	a.SrcMAC = [6]byte{0x14, 0xa0, 0xf8, 0x8b, 0x1e, 0xe3}
	a.DstMAC = [6]byte{0x14, 0xa0, 0xf8, 0x8b, 0x1e, 0xe4}
	copy(a.SrcIP[:], []byte{0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1})
	copy(a.DstIP[:], []byte{0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	return a
}

// S1: pixelflut-v6 hit.
func TestDecodeS1PixelflutV6Hit(t *testing.T) {
	frame := make([]byte, 64)
	binary.BigEndian.PutUint16(frame[12:], 0x86DD)
	ip := frame[14:]
	ip[0] = 0x60
	ip[6] = 17 // UDP, not ICMPv6
	ip[7] = 255
	dst := ip[24:]
	binary.BigEndian.PutUint16(dst[8:10], 5)
	binary.BigEndian.PutUint16(dst[10:12], 10)
	dst[12] = 0xFF
	dst[13] = 0x00
	dst[14] = 0x7F

	px, class, ok := Decode(frame)
	if !ok || class != PixelflutV6 {
		t.Fatalf("expected PixelflutV6 hit, got class=%v ok=%v", class, ok)
	}
	if px.X != 5 || px.Y != 10 || px.RGBA != 0x007F00FF {
		t.Fatalf("got %+v, want x=5 y=10 rgba=0x007f00ff", px)
	}
}

// S2: pingxelflut-v6 hit.
func TestDecodeS2PingxelflutV6Hit(t *testing.T) {
	frame := make([]byte, 70)
	binary.BigEndian.PutUint16(frame[12:], 0x86DD)
	ip := frame[14:]
	ip[0] = 0x60
	ip[6] = 58 // ICMPv6
	ip[7] = 255
	icmp := ip[40:]
	icmp[0] = 128 // echo request
	icmp[1] = 0
	payload := icmp[8:]
	payload[0] = 0xcc
	binary.BigEndian.PutUint16(payload[1:3], 3)
	binary.BigEndian.PutUint16(payload[3:5], 4)
	payload[5] = 0x12
	payload[6] = 0x34
	payload[7] = 0x56

	px, class, ok := Decode(frame)
	if !ok || class != PingxelflutV6 {
		t.Fatalf("expected PingxelflutV6 hit, got class=%v ok=%v", class, ok)
	}
	if px.X != 3 || px.Y != 4 || px.RGBA != 0x00563412 {
		t.Fatalf("got %+v, want x=3 y=4 rgba=0x00563412", px)
	}
}

// S3: pingxelflut wins over pixelflut-v6 even when the destination
// address also looks pixel-shaped.
func TestDecodeS3PrecedencePingxelflutWins(t *testing.T) {
	frame := make([]byte, 70)
	binary.BigEndian.PutUint16(frame[12:], 0x86DD)
	ip := frame[14:]
	ip[0] = 0x60
	ip[6] = 58
	ip[7] = 255
	dst := ip[24:]
	// Make the destination address a "valid" pixel coordinate too.
	binary.BigEndian.PutUint16(dst[8:10], 999)
	binary.BigEndian.PutUint16(dst[10:12], 999)
	dst[12], dst[13], dst[14] = 0x11, 0x22, 0x33

	icmp := ip[40:]
	icmp[0] = 128
	icmp[1] = 0
	payload := icmp[8:]
	payload[0] = 0xcc
	binary.BigEndian.PutUint16(payload[1:3], 7)
	binary.BigEndian.PutUint16(payload[3:5], 8)
	payload[5], payload[6], payload[7] = 0xaa, 0xbb, 0xcc

	px, class, ok := Decode(frame)
	if !ok || class != PingxelflutV6 {
		t.Fatalf("expected PingxelflutV6, got class=%v ok=%v", class, ok)
	}
	if px.X != 7 || px.Y != 8 {
		t.Fatalf("decoded pixel from the wrong source: %+v", px)
	}
}

// S5: an ARP frame is ignored.
func TestDecodeS5ARPIgnored(t *testing.T) {
	frame := make([]byte, 64)
	binary.BigEndian.PutUint16(frame[12:], 0x0806) // ARP
	_, class, ok := Decode(frame)
	if ok || class != Ignore {
		t.Fatalf("expected Ignore for ARP frame, got class=%v ok=%v", class, ok)
	}
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	frame := make([]byte, 10)
	_, class, ok := Decode(frame)
	if ok || class != Ignore {
		t.Fatalf("expected Ignore for truncated frame, got class=%v ok=%v", class, ok)
	}
}

func TestDecodeSizeRequestRecognisedNoPixel(t *testing.T) {
	frame := make([]byte, 63)
	binary.BigEndian.PutUint16(frame[12:], 0x86DD)
	ip := frame[14:]
	ip[0] = 0x60
	ip[6] = 58
	icmp := ip[40:]
	icmp[0] = 128
	icmp[1] = 0
	icmp[8] = 0xaa // SIZE_REQUEST

	_, _, ok := Decode(frame)
	if ok {
		t.Fatal("SIZE_REQUEST should not yield a pixel")
	}
}

// Property 4: round trip pixelflut-v6.
func TestRoundTripPixelflutV6(t *testing.T) {
	addrs := testAddrs()
	cases := []Pixel{
		{X: 0, Y: 0, RGBA: 0},
		{X: 1919, Y: 1079, RGBA: 0x00ABCDEF},
		{X: 42, Y: 7, RGBA: 0x00FF00FF},
	}
	for _, want := range cases {
		buf := make([]byte, 64)
		EncodePixelflutV6(buf, addrs, want)
		got, class, ok := Decode(buf)
		if !ok || class != PixelflutV6 {
			t.Fatalf("round trip failed to decode: class=%v ok=%v", class, ok)
		}
		if got.X != want.X || got.Y != want.Y || got.RGBA != want.RGBA&0x00FFFFFF {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
		}
	}
}

// Property 4: round trip pingxelflut-v6.
func TestRoundTripPingxelflutV6(t *testing.T) {
	addrs := testAddrs()
	copy(addrs.DstIP[:], []byte{0x20, 0x01, 0xd, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1})
	want := Pixel{X: 1234, Y: 4321, RGBA: 0x00112233}

	buf := make([]byte, 70)
	EncodePingxelflutV6(buf, addrs, want)
	got, class, ok := Decode(buf)
	if !ok || class != PingxelflutV6 {
		t.Fatalf("round trip failed to decode: class=%v ok=%v", class, ok)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

// Property 4 (IPv4 sibling, exercised for decoder symmetry even though
// the shipped client never emits it per spec §6).
func TestRoundTripPingxelflutV4(t *testing.T) {
	srcMAC := [6]byte{1, 2, 3, 4, 5, 6}
	dstMAC := [6]byte{6, 5, 4, 3, 2, 1}
	srcIP := [4]byte{192, 168, 0, 1}
	dstIP := [4]byte{192, 168, 0, 2}
	want := Pixel{X: 99, Y: 100, RGBA: 0x00ABCDEF}

	buf := make([]byte, PingxelflutV4FrameLen)
	EncodePingxelflutV4(buf, srcMAC, dstMAC, srcIP, dstIP, want)
	got, class, ok := Decode(buf)
	if !ok || class != PingxelflutV4 {
		t.Fatalf("round trip failed to decode: class=%v ok=%v", class, ok)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}
