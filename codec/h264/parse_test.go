/*
DESCRIPTION
  parse_test.go provides testing for H.264 NAL unit parsing utilities.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264

import (
	"bytes"
	"testing"
)

var (
	testSPS = []byte{0x67, 0x42, 0xc0, 0x1f, 0xda, 0x01}
	testPPS = []byte{0x68, 0xce, 0x3c, 0x80}
	testIDR = []byte{0x65, 0x88, 0x84, 0x21}
	testAUD = []byte{0x09, 0xf0}
)

func annexB(nalus ...[]byte) []byte {
	var b []byte
	for _, n := range nalus {
		b = append(b, 0, 0, 0, 1)
		b = append(b, n...)
	}
	return b
}

func TestNALType(t *testing.T) {
	tests := []struct {
		in   []byte
		want int
		err  bool
	}{
		{in: annexB(testSPS), want: NALTypeSPS},
		{in: annexB(testAUD, testIDR), want: NALTypeIDR},
		{in: []byte{0, 0, 1, 0x41, 0xff}, want: NALTypeNonIDR},
		{in: []byte{0, 0}, err: true},
	}

	for i, test := range tests {
		got, err := NALType(test.in)
		if (err != nil) != test.err {
			t.Errorf("unexpected error for test %d: %v", i, err)
			continue
		}
		if got != test.want {
			t.Errorf("did not get expected type for test %d, got: %d want: %d", i, got, test.want)
		}
	}
}

func TestParameterSets(t *testing.T) {
	sps, pps := ParameterSets(annexB(testAUD, testSPS, testPPS, testIDR))
	if !bytes.Equal(sps, testSPS) {
		t.Errorf("unexpected SPS: got %x want %x", sps, testSPS)
	}
	if !bytes.Equal(pps, testPPS) {
		t.Errorf("unexpected PPS: got %x want %x", pps, testPPS)
	}

	sps, pps = ParameterSets(annexB(testIDR))
	if sps != nil || pps != nil {
		t.Errorf("expected no parameter sets, got %x %x", sps, pps)
	}
}

func TestIsKeyFrame(t *testing.T) {
	if !IsKeyFrame(annexB(testSPS, testPPS, testIDR)) {
		t.Error("IDR access unit not a key frame")
	}
	if IsKeyFrame(annexB([]byte{0x41, 0x9a})) {
		t.Error("non-IDR access unit reported as key frame")
	}
}
