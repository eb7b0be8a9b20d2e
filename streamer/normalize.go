/*
DESCRIPTION
  normalize.go provides Normalizer, which validates incoming frames against
  the session's layout, decimates them and caches the parameter set header of
  compressed streams.

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
	"sync"

	"github.com/ausocean/streamer/producer"
)

// action is what is to be done with a frame after normalization.
type action int

const (
	actionDrop    action = iota // Decimated.
	actionHold                  // Header cached, not delivered.
	actionForward               // Deliver to the graph.
)

// decision is the result of normalizing one frame.
type decision struct {
	action  action
	header  []byte // Parameter set to deliver before payload, if any.
	payload []byte
}

// Normalizer holds the per session frame state. Access is under mu, which is
// shared with the rest of StreamState.
type Normalizer struct {
	mu *sync.Mutex

	expected  Layout // Layout the graph was built for.
	layout    Layout // Layout resolved from the session's first frame.
	resolved  bool
	factor    uint64
	inFrames  uint64
	outFrames uint64

	paramSet   []byte
	headerSent bool
}

func newNormalizer(mu *sync.Mutex) *Normalizer { return &Normalizer{mu: mu, factor: 1} }

// Configure sets the layout the graph expects and the decimation factor for
// following sessions.
func (n *Normalizer) Configure(l Layout, factor uint) {
	factor, _ = effectiveDecimator(l, factor)
	n.mu.Lock()
	n.expected = l
	n.factor = uint64(factor)
	n.mu.Unlock()
}

// effectiveDecimator returns the decimation factor applied to layout l when
// factor is requested. Compressed layouts cannot be decimated; for them the
// factor is 1 and forced is true if a larger factor was requested.
func effectiveDecimator(l Layout, factor uint) (dec uint, forced bool) {
	if factor == 0 {
		factor = 1
	}
	if l.Compressed() && factor > 1 {
		return 1, true
	}
	return factor, false
}

// Process normalizes a frame. The returned payload aliases payload.
func (n *Normalizer) Process(meta producer.FrameMetadata, payload []byte) (decision, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.resolved {
		l, err := ResolveLayout(meta.Format, meta.Width, meta.Height)
		if err != nil {
			return decision{}, err
		}
		if n.expected != (Layout{}) && l != n.expected {
			return decision{}, fmt.Errorf("%w: have %v %dx%d, graph built for %v %dx%d",
				ErrFormatChanged, l.Format, l.Width, l.Height, n.expected.Format, n.expected.Width, n.expected.Height)
		}
		n.layout = l
		n.resolved = true
	}

	size := frameSize(meta)
	if !n.layout.Compressed() && size != n.layout.Size {
		return decision{}, fmt.Errorf("%w: frame is %d bytes, layout needs %d", ErrFrameSizeMismatch, size, n.layout.Size)
	}
	if uint32(len(payload)) < size {
		return decision{}, fmt.Errorf("%w: payload is %d bytes, metadata reports %d", ErrFrameSizeMismatch, len(payload), size)
	}
	payload = payload[:size]

	if meta.IsHeader() {
		if !n.headerSent {
			n.paramSet = append(n.paramSet[:0], payload...)
		}
		return decision{action: actionHold}, nil
	}

	i := n.inFrames
	n.inFrames++
	if i%n.factor != 0 {
		return decision{action: actionDrop}, nil
	}

	d := decision{action: actionForward, payload: payload}
	if len(n.paramSet) != 0 && !n.headerSent {
		d.header = n.paramSet
	}
	return d, nil
}

// HeaderSent records that the cached parameter set has been delivered for
// this session.
func (n *Normalizer) HeaderSent() {
	n.mu.Lock()
	n.headerSent = true
	n.mu.Unlock()
}

// Forwarded records the delivery of a frame to the graph.
func (n *Normalizer) Forwarded() {
	n.mu.Lock()
	n.outFrames++
	n.mu.Unlock()
}

// resetLocked zeroes the per session state. The expected layout and
// decimation factor are kept. mu must be held.
func (n *Normalizer) resetLocked() {
	n.layout = Layout{}
	n.resolved = false
	n.inFrames = 0
	n.outFrames = 0
	n.paramSet = nil
	n.headerSent = false
}
