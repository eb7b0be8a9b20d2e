/*
DESCRIPTION
  parse.go provides H.265 NAL unit parsing utilities for the extraction of
  parameter sets from access units.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package h265 provides H.265 (HEVC) access unit utilities.
package h265

import "github.com/ausocean/streamer/codec/codecutil"

// NAL unit types.
const (
	NALTypeIDRWithRADL = 19
	NALTypeIDRNoLP     = 20
	NALTypeCRA         = 21
	NALTypeVPS         = 32
	NALTypeSPS         = 33
	NALTypePPS         = 34
	NALTypeAUD         = 35
)

// NALType returns the type of the NAL unit n, given without start code.
func NALType(n []byte) int {
	if len(n) == 0 {
		return -1
	}
	return int(n[0]>>1) & 0x3f
}

// ParameterSets returns the last VPS, SPS and PPS NAL units, without start
// codes, found in the Annex B access unit au. Any not present is nil.
func ParameterSets(au []byte) (vps, sps, pps []byte) {
	for _, n := range codecutil.NALUnits(au) {
		switch NALType(n) {
		case NALTypeVPS:
			vps = n
		case NALTypeSPS:
			sps = n
		case NALTypePPS:
			pps = n
		}
	}
	return vps, sps, pps
}

// IsKeyFrame returns true if the Annex B access unit au holds an IRAP
// picture that starts a decodable sequence.
func IsKeyFrame(au []byte) bool {
	for _, n := range codecutil.NALUnits(au) {
		switch NALType(n) {
		case NALTypeIDRWithRADL, NALTypeIDRNoLP, NALTypeCRA:
			return true
		}
	}
	return false
}
