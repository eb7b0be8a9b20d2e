/*
NAME
  annexb.go

DESCRIPTION
  annexb.go provides splitting of Annex B byte streams into NAL units.

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package codecutil provides utilities shared by the codec packages.
package codecutil

// NALUnits splits the Annex B byte stream b into its NAL units, without
// start codes. Bytes before the first start code are discarded. The returned
// slices alias b.
func NALUnits(b []byte) [][]byte {
	var (
		nalus [][]byte
		start = -1
	)
	for i := 0; i+2 < len(b); {
		if b[i] != 0 || b[i+1] != 0 || b[i+2] != 1 {
			i++
			continue
		}
		if start >= 0 {
			nalus = appendNAL(nalus, b[start:i])
		}
		i += 3
		start = i
	}
	if start >= 0 {
		nalus = appendNAL(nalus, b[start:])
	}
	return nalus
}

// appendNAL appends n to nalus without the trailing zero bytes that belong
// to a following four byte start code.
func appendNAL(nalus [][]byte, n []byte) [][]byte {
	for len(n) != 0 && n[len(n)-1] == 0 {
		n = n[:len(n)-1]
	}
	if len(n) == 0 {
		return nalus
	}
	return append(nalus, n)
}

// AnnexB joins nalus into an Annex B byte stream using four byte start codes.
func AnnexB(nalus ...[]byte) []byte {
	var n int
	for _, u := range nalus {
		n += 4 + len(u)
	}
	b := make([]byte, 0, n)
	for _, u := range nalus {
		b = append(b, 0, 0, 0, 1)
		b = append(b, u...)
	}
	return b
}
