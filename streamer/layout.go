/*
DESCRIPTION
  layout.go resolves producer format codes and dimensions into the byte layout
  of the frames handed to the graph.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package streamer

import (
	"fmt"

	"github.com/ausocean/streamer/producer"
)

// Pixel formats of raw layouts, named as the graph names them.
const (
	PixelGray8    = "GRAY8"
	PixelGray16LE = "GRAY16_LE"
	PixelNV12     = "NV12"
	PixelNV21     = "NV21"
	PixelI420     = "I420"
	PixelYUY2     = "YUY2"
	PixelUYVY     = "UYVY"
	PixelRGB      = "RGB"
)

// Layout describes the frames forwarded to the graph for one input format.
type Layout struct {
	Format producer.Format

	// Width and Height of the image forwarded to the graph. For stereo raw8
	// both images are forwarded stacked, so Height is twice the sensor height.
	Width, Height uint32

	Pixel  string // Pixel is the raw pixel format; empty for compressed formats.
	Planes int    // Planes is the number of image planes.
	Stride uint32 // Stride is the length in bytes of a row of the first plane.

	// Size is the exact frame size in bytes, or 0 for compressed formats
	// whose size varies per frame.
	Size uint32
}

// Compressed returns true if the layout is a variable size bitstream.
func (l Layout) Compressed() bool { return l.Format.Compressed() }

// raw describes a raw pixel format. blockBytes is the size of a 2x2 pixel
// block so that chroma subsampling is exact.
type raw struct {
	pixel      string
	planes     int
	rowBytes   uint32 // Bytes per pixel in a row of the first plane.
	blockBytes uint32
	stereoRows bool
}

var rawFormats = map[producer.Format]raw{
	producer.FormatRaw8:       {pixel: PixelGray8, planes: 1, rowBytes: 1, blockBytes: 4},
	producer.FormatStereoRaw8: {pixel: PixelGray8, planes: 1, rowBytes: 1, blockBytes: 4, stereoRows: true},
	producer.FormatRaw16:      {pixel: PixelGray16LE, planes: 1, rowBytes: 2, blockBytes: 8},
	producer.FormatNV12:       {pixel: PixelNV12, planes: 2, rowBytes: 1, blockBytes: 6},
	producer.FormatStereoNV12: {pixel: PixelNV12, planes: 2, rowBytes: 1, blockBytes: 6},
	producer.FormatNV21:       {pixel: PixelNV21, planes: 2, rowBytes: 1, blockBytes: 6},
	producer.FormatStereoNV21: {pixel: PixelNV21, planes: 2, rowBytes: 1, blockBytes: 6},
	producer.FormatYUV420:     {pixel: PixelI420, planes: 3, rowBytes: 1, blockBytes: 6},
	producer.FormatYUV422:     {pixel: PixelYUY2, planes: 1, rowBytes: 2, blockBytes: 8},
	producer.FormatYUV422UYVY: {pixel: PixelUYVY, planes: 1, rowBytes: 2, blockBytes: 8},
	producer.FormatRGB:        {pixel: PixelRGB, planes: 1, rowBytes: 3, blockBytes: 12},
}

// ResolveLayout returns the layout of frames of format f with the given
// sensor dimensions. ErrUnsupportedFormat is returned for formats that
// cannot be streamed.
func ResolveLayout(f producer.Format, width, height uint32) (Layout, error) {
	if width == 0 || height == 0 {
		return Layout{}, fmt.Errorf("%w: zero dimension %dx%d", ErrUnsupportedFormat, width, height)
	}

	if f.Compressed() {
		return Layout{Format: f, Width: width, Height: height, Planes: 1}, nil
	}

	r, ok := rawFormats[f]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}

	h := height
	if r.stereoRows {
		h *= 2
	}
	return Layout{
		Format: f,
		Width:  width,
		Height: h,
		Pixel:  r.pixel,
		Planes: r.planes,
		Stride: width * r.rowBytes,
		Size:   clampSize(uint64(width) * uint64(h) * uint64(r.blockBytes) / 4),
	}, nil
}

func clampSize(n uint64) uint32 {
	if n > 1<<32-1 {
		return 1<<32 - 1
	}
	return uint32(n)
}

// frameSize returns the number of payload bytes of a frame described by m
// that belong to the forwarded image. Stereo NV12 and NV21 frames carry two
// images of which only the first is forwarded.
func frameSize(m producer.FrameMetadata) uint32 {
	switch m.Format {
	case producer.FormatStereoNV12, producer.FormatStereoNV21:
		return m.Size / 2
	default:
		return m.Size
	}
}

// OutputDimensions returns the dimensions of the graph output for layout l
// rotated by rotation degrees.
func OutputDimensions(l Layout, rotation uint) (width, height uint32) {
	switch rotation {
	case 90, 270:
		return l.Height, l.Width
	default:
		return l.Width, l.Height
	}
}
