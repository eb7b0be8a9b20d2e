/*
DESCRIPTION
  clock.go provides TimestampClock, which converts producer capture
  timestamps into presentation times relative to the start of a session.

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
	"sync"
	"time"
)

// TimestampClock tracks the epoch and last seen timestamp of a session.
// Timestamps are nanoseconds from the producer's monotonic clock; zero means
// unset. All access is under mu, which is shared with the rest of
// StreamState.
type TimestampClock struct {
	mu    *sync.Mutex
	epoch uint64
	last  uint64
}

func newClock(mu *sync.Mutex) *TimestampClock { return &TimestampClock{mu: mu} }

// Stamp applies the priming rule for a frame about to be delivered. The
// first call of a session only records ts and returns false; the frame must
// then not be delivered. Later calls set the epoch on first use and return
// the frame's presentation time and duration. A timestamp older than the
// last one is clamped to it so that presentation time never decreases
// within a session.
func (c *TimestampClock) Stamp(ts uint64) (pts, dur time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == 0 {
		c.last = ts
		return 0, 0, false
	}
	if ts < c.last {
		ts = c.last
	}
	c.recordFirstTimestamp(ts)
	pts, dur = c.presentationTime(ts)
	return pts, dur, true
}

// Prime records ts as the last timestamp if the clock has not yet seen one.
func (c *TimestampClock) Prime(ts uint64) {
	c.mu.Lock()
	if c.last == 0 {
		c.last = ts
	}
	c.mu.Unlock()
}

// recordFirstTimestamp sets the epoch to ts if it is unset. mu must be held.
func (c *TimestampClock) recordFirstTimestamp(ts uint64) {
	if c.epoch == 0 {
		c.epoch = ts
	}
}

// presentationTime returns ts relative to the epoch and the time since the
// last timestamp, then records ts as the last timestamp. mu must be held and
// the epoch set.
func (c *TimestampClock) presentationTime(ts uint64) (pts, dur time.Duration) {
	if ts < c.epoch {
		ts = c.epoch
	}
	if c.last != 0 && ts > c.last {
		dur = time.Duration(ts - c.last)
	}
	pts = time.Duration(ts - c.epoch)
	c.last = ts
	return pts, dur
}

// resetLocked zeroes the clock. mu must be held.
func (c *TimestampClock) resetLocked() {
	c.epoch = 0
	c.last = 0
}
