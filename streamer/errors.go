/*
DESCRIPTION
  errors.go declares the errors that end a streaming session or an attempt to
  start one.

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

import "errors"

// Session ending errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrFrameSizeMismatch = errors.New("frame size mismatch")
	ErrFormatChanged     = errors.New("stream format changed")
	ErrHeaderPush        = errors.New("could not push parameter set header")
	ErrUpstreamLost      = errors.New("producer disconnected unexpectedly")
	ErrProbeTimeout      = errors.New("timed out probing stream")
	ErrChannelOpen       = errors.New("could not open producer channel")
)

// GraphError is returned by Run when the graph cannot be constructed. It is
// the only error that stops the streamer.
type GraphError struct {
	Err error
}

func (e *GraphError) Error() string { return "could not construct graph: " + e.Err.Error() }

func (e *GraphError) Unwrap() error { return e.Err }
