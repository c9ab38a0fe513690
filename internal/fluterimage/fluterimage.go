// Package fluterimage loads a source image into the row-major RGBA
// pixel grid the sender streams out as packets. Grounded on
// original_source/image.c's load_image/fluter_image (MagickWand export
// to a packed RGBA byte array); image decoding itself is an external
// collaborator per spec §1, so this wraps the standard library's
// image/image.Decode instead of reimplementing a codec.
package fluterimage

import (
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gvisor.dev/gvisor/pkg/buffer"
)

// IoError reports a failure to open or decode a source image.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("fluterimage: %s: %v", e.Op, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

// FluterImage is a decoded source image: width, height, and a row-major
// array of 32-bit RGBA words matching the wire's byte order (byte 0 = R,
// 1 = G, 2 = B, 3 = A), the same layout original_source/image.c produces.
type FluterImage struct {
	Width, Height uint16
	pixels        []uint32
}

// Load decodes path via the standard image package and packs it into
// the row-major RGBA layout the encoders expect.
func Load(path string) (*FluterImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IoError{Op: "open " + path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &IoError{Op: "decode " + path, Err: err}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 || width > 0xFFFF || height > 0xFFFF {
		return nil, &IoError{Op: "decode " + path, Err: fmt.Errorf("image dimensions %dx%d out of range", width, height)}
	}

	fi := &FluterImage{Width: uint16(width), Height: uint16(height), pixels: make([]uint32, width*height)}
	for y := 0; y < height; y++ {
		// Pack one decoded row into its own byte region and hand it to a
		// gvisor buffer.Buffer, the same zero-copy ownership pattern the
		// teacher's AF_XDP bridge uses for an inbound packet (af_xdp.go's
		// buffer.MakeWithData), before unpacking it into the row-major word
		// array the sender walks.
		row := make([]byte, width*4)
		for x := 0; x < width; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := x * 4
			row[off] = byte(r >> 8)
			row[off+1] = byte(g >> 8)
			row[off+2] = byte(b >> 8)
			row[off+3] = byte(a >> 8)
		}

		rowBuf := buffer.MakeWithData(row)
		flat := rowBuf.Flatten()
		for x := 0; x < width; x++ {
			fi.pixels[y*width+x] = binary.LittleEndian.Uint32(flat[x*4 : x*4+4])
		}
	}

	fmt.Printf("🖼️  loaded image %s with (%d, %d) pixels\n", path, width, height)
	return fi, nil
}

// At returns the packed RGBA word for (x,y); out-of-range coordinates
// return 0, matching the sender's cursor which never produces them.
func (fi *FluterImage) At(x, y uint16) uint32 {
	if x >= fi.Width || y >= fi.Height {
		return 0
	}
	return fi.pixels[int(y)*int(fi.Width)+int(x)]
}
