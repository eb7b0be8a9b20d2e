/*
NAME
  list.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package codecutil

// Codecs that may be served.
// When adding or removing a codec from this list, the IsValid function below must be updated.
const (
	H264 = "h264" // h264 access units in Annex B byte stream format.
	H265 = "h265" // h265 access units in Annex B byte stream format.
)

// IsValid checks if a string is a known and valid codec in the right format.
func IsValid(s string) bool {
	switch s {
	case H264, H265:
		return true
	default:
		return false
	}
}
