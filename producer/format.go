/*
DESCRIPTION
  format.go provides the image format codes reported by the camera producer
  in each frame metadata record.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package producer

import (
	"fmt"
	"strings"
)

// Format is an image format code as carried in FrameMetadata.
type Format uint32

// Image format codes. Values are fixed by the producer's wire protocol.
const (
	FormatRaw8       Format = 0
	FormatNV12       Format = 1
	FormatStereoRaw8 Format = 2
	FormatH264       Format = 3
	FormatH265       Format = 4
	FormatRaw16      Format = 5
	FormatNV21       Format = 6
	FormatJPG        Format = 7
	FormatYUV422     Format = 8
	FormatYUV420     Format = 9
	FormatRGB        Format = 10
	FormatFloat32    Format = 11
	FormatStereoNV21 Format = 12
	FormatRGBA       Format = 13
	FormatYUV422UYVY Format = 14
	FormatStereoNV12 Format = 15
)

var formatNames = map[Format]string{
	FormatRaw8:       "raw8",
	FormatNV12:       "nv12",
	FormatStereoRaw8: "stereo_raw8",
	FormatH264:       "h264",
	FormatH265:       "h265",
	FormatRaw16:      "raw16",
	FormatNV21:       "nv21",
	FormatJPG:        "jpg",
	FormatYUV422:     "yuv422",
	FormatYUV420:     "yuv420",
	FormatRGB:        "rgb",
	FormatFloat32:    "float32",
	FormatStereoNV21: "stereo_nv21",
	FormatRGBA:       "rgba",
	FormatYUV422UYVY: "yuv422_uyvy",
	FormatStereoNV12: "stereo_nv12",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("unknown(%d)", uint32(f))
}

// Compressed returns true if frames of this format are an encoded bitstream
// of variable size rather than a raw pixel layout.
func (f Format) Compressed() bool {
	return f == FormatH264 || f == FormatH265
}

// ParseFormat returns the Format with the given name, as produced by
// Format.String. Matching is case insensitive.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, n := range formatNames {
		if n == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown format name: %q", s)
}
