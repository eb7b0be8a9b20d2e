/*
DESCRIPTION
  state.go provides StreamState, the state shared between the producer's
  frame callback, the graph's data signals and the streamer's event loop.

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
	"sync/atomic"
)

// StreamState is the state of the current stream.
//
// The clock, frame counters, cached header and viewer set are guarded by mu.
// Each component takes mu only for its own read-modify-write and never while
// calling out of the package. wantsData is written by the graph's signal
// callbacks and read by the frame callback, so it is atomic.
type StreamState struct {
	mu sync.Mutex

	clock   *TimestampClock
	frames  *Normalizer
	viewers *viewerSet

	wantsData atomic.Bool
}

func newStreamState() *StreamState {
	s := &StreamState{}
	s.clock = newClock(&s.mu)
	s.frames = newNormalizer(&s.mu)
	s.viewers = newViewerSet(&s.mu)
	return s
}

// reset zeroes the per session state: timestamps, frame counters, the cached
// header and the wants data flag. Viewers are not affected.
func (s *StreamState) reset() {
	s.mu.Lock()
	s.clock.resetLocked()
	s.frames.resetLocked()
	s.mu.Unlock()
	s.wantsData.Store(false)
}

// Stats is a snapshot of the stream state.
type Stats struct {
	Phase        Phase
	Viewers      int
	InputFrames  uint64
	OutputFrames uint64
	Epoch        uint64
	LastSeen     uint64
	WantsData    bool
	HeaderCached bool
}

func (s *StreamState) stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Viewers:      len(s.viewers.seen),
		InputFrames:  s.frames.inFrames,
		OutputFrames: s.frames.outFrames,
		Epoch:        s.clock.epoch,
		LastSeen:     s.clock.last,
		WantsData:    s.wantsData.Load(),
		HeaderCached: len(s.frames.paramSet) != 0,
	}
}
