/*
DESCRIPTION
  parse.go provides H.264 NAL unit parsing utilities for the extraction of
  parameter sets from access units.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package h264 provides H.264 access unit utilities.
package h264

import (
	"errors"

	"github.com/ausocean/streamer/codec/codecutil"
)

// NAL unit types.
const (
	NALTypeNonIDR              = 1
	NALTypeIDR                 = 5
	NALTypeSEI                 = 6
	NALTypeSPS                 = 7
	NALTypePPS                 = 8
	NALTypeAccessUnitDelimiter = 9
)

var errNotEnoughBytes = errors.New("not enough bytes to read")

// NALType returns the NAL type of the given NAL unit bytes. The given NAL unit
// may be in byte stream or packet format.
// NB: access unit delimiters are skipped.
func NALType(n []byte) (int, error) {
	sc := frameScanner{buf: n}
	for {
		b, ok := sc.readByte()
		if !ok {
			return 0, errNotEnoughBytes
		}
		for i := 1; b == 0x00 && i != 4; i++ {
			b, ok = sc.readByte()
			if !ok {
				return 0, errNotEnoughBytes
			}
			if b != 0x01 || (i != 2 && i != 3) {
				continue
			}

			b, ok = sc.readByte()
			if !ok {
				return 0, errNotEnoughBytes
			}
			nalType := int(b & 0x1f)
			if nalType != NALTypeAccessUnitDelimiter {
				return nalType, nil
			}
		}
	}
}

type frameScanner struct {
	off int
	buf []byte
}

func (s *frameScanner) readByte() (b byte, ok bool) {
	if s.off >= len(s.buf) {
		return 0, false
	}
	b = s.buf[s.off]
	s.off++
	return b, true
}

// ParameterSets returns the last SPS and PPS NAL units, without start codes,
// found in the Annex B access unit au. Either is nil if au does not hold one.
func ParameterSets(au []byte) (sps, pps []byte) {
	for _, n := range codecutil.NALUnits(au) {
		switch n[0] & 0x1f {
		case NALTypeSPS:
			sps = n
		case NALTypePPS:
			pps = n
		}
	}
	return sps, pps
}

// IsKeyFrame returns true if the Annex B access unit au holds an IDR slice.
func IsKeyFrame(au []byte) bool {
	for _, n := range codecutil.NALUnits(au) {
		if n[0]&0x1f == NALTypeIDR {
			return true
		}
	}
	return false
}
