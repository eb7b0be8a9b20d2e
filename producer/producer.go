/*
DESCRIPTION
  producer.go provides Channel, an interface that describes a named channel
  to an external camera producer that pushes frames to registered callbacks.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package producer provides the interface to an external camera producer and
// the wire format of the frames it delivers.
package producer

import (
	"context"
	"fmt"
	"time"
)

// Callbacks are the notifications a Channel delivers. Callbacks are invoked
// from the channel's own goroutines, never concurrently with each other for a
// single open, and must not call Close on the channel.
type Callbacks struct {
	// Connect is called once the channel is connected to the producer.
	Connect func()

	// Disconnect is called once after the connection ends, whether the
	// producer went away or Close was called.
	Disconnect func()

	// Frame is called for every frame. meta and payload are only valid for
	// the duration of the call.
	Frame func(meta FrameMetadata, payload []byte)
}

// Channel describes a named channel to a camera producer.
type Channel interface {
	// Name returns the name of the channel.
	Name() string

	// Available returns true if the producer currently offers the channel.
	Available() bool

	// Open connects to the producer and begins delivering frames to cb.
	Open(cb Callbacks) error

	// Close ends the current connection. The Disconnect callback is
	// delivered asynchronously.
	Close() error

	// Flush discards frames queued for delivery.
	Flush() error

	// Occupancy returns the number of frames queued for delivery.
	Occupancy() int

	// Capacity returns the number of frames that can be queued.
	Capacity() int
}

// Info is an authoritative description of the stream a producer offers.
type Info struct {
	Format    Format
	Width     uint32
	Height    uint32
	FrameRate uint
}

// Describer is implemented by channels that can describe their stream
// without frames being sampled.
type Describer interface {
	Describe() (Info, bool)
}

// Waiter is implemented by channels that can block until they become
// available. WaitAvailable returns nil once the channel is available, or an
// error when ctx is done or d elapses.
type Waiter interface {
	WaitAvailable(ctx context.Context, d time.Duration) error
}

// MultiError collects errors that occur independently, for example while
// closing several resources.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("producer: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}
