/*
DESCRIPTION
  graph.go provides Graph, the interface to the media graph that encodes and
  packetizes the frames forwarded by the streamer.

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

import "time"

// Buffer is a timestamped frame handed to a Graph.
type Buffer struct {
	Data     []byte
	PTS      time.Duration // Presentation time from the start of the session.
	Duration time.Duration
}

// Graph consumes timestamped frames.
type Graph interface {
	// Push hands b to the graph. Push may block briefly while the graph's
	// queue is full and must not retain b.Data after it returns.
	Push(b Buffer) error

	// Close stops the graph and releases its resources. Push returns an
	// error after Close.
	Close() error
}

// GraphConfig describes the graph to build for a session.
type GraphConfig struct {
	Layout Layout // Layout of the input frames.

	// Width and Height of the output, after rotation.
	Width, Height uint32

	FrameRate uint // Output frame rate in frames per second.
	Rotation  uint // Rotation in degrees, one of 0, 90, 180 or 270.
	Bitrate   uint // Target bitrate in bits per second.
	Encoder   string

	// NeedData and EnoughData are called by the graph when it wants more
	// frames and when its queue is full.
	NeedData   func()
	EnoughData func()

	// Error is called when the graph fails while running.
	Error func(error)
}

// NewGraphFunc builds a Graph and sets it running.
type NewGraphFunc func(GraphConfig) (Graph, error)
