/*
DESCRIPTION
  parse_test.go provides testing for H.265 NAL unit parsing utilities.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h265

import (
	"bytes"
	"testing"

	"github.com/ausocean/streamer/codec/codecutil"
)

var (
	testVPS   = []byte{0x40, 0x01, 0x0c, 0x01}
	testSPS   = []byte{0x42, 0x01, 0x01, 0x01}
	testPPS   = []byte{0x44, 0x01, 0xc1, 0x72}
	testIDR   = []byte{0x26, 0x01, 0xaf, 0x06}
	testTrail = []byte{0x02, 0x01, 0xd0, 0x09}
)

func TestNALType(t *testing.T) {
	tests := []struct {
		in   []byte
		want int
	}{
		{in: testVPS, want: NALTypeVPS},
		{in: testSPS, want: NALTypeSPS},
		{in: testPPS, want: NALTypePPS},
		{in: testIDR, want: NALTypeIDRWithRADL},
		{in: testTrail, want: 1},
		{in: nil, want: -1},
	}
	for i, test := range tests {
		if got := NALType(test.in); got != test.want {
			t.Errorf("did not get expected type for test %d, got: %d want: %d", i, got, test.want)
		}
	}
}

func TestParameterSets(t *testing.T) {
	vps, sps, pps := ParameterSets(codecutil.AnnexB(testVPS, testSPS, testPPS, testIDR))
	for _, test := range []struct {
		name      string
		got, want []byte
	}{
		{"VPS", vps, testVPS},
		{"SPS", sps, testSPS},
		{"PPS", pps, testPPS},
	} {
		if !bytes.Equal(test.got, test.want) {
			t.Errorf("unexpected %s: got %x want %x", test.name, test.got, test.want)
		}
	}
}

func TestIsKeyFrame(t *testing.T) {
	if !IsKeyFrame(codecutil.AnnexB(testVPS, testSPS, testPPS, testIDR)) {
		t.Error("IDR access unit not a key frame")
	}
	if IsKeyFrame(codecutil.AnnexB(testTrail)) {
		t.Error("trailing picture reported as key frame")
	}
}
