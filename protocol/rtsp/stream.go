/*
NAME
  stream.go

DESCRIPTION
  stream.go provides Stream, which packetises encoded access units into RTP
  and writes them to the readers of the RTSP server.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package rtsp

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ausocean/utils/bitrate"
	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/pion/rtp"

	"github.com/ausocean/streamer/codec/codecutil"
	"github.com/ausocean/streamer/codec/h264"
	"github.com/ausocean/streamer/codec/h265"
)

// Video clock rate of H.264 and H.265 RTP streams.
const clockRate = 90000

// Dynamic RTP payload type used for the video media.
const payloadType = 96

var errStreamClosed = errors.New("stream closed")

// encoder is implemented by the RTP encoders of the supported codecs.
type encoder interface {
	Encode(nalus [][]byte) ([]*rtp.Packet, error)
}

// Stream is a published stream of access units.
type Stream struct {
	srv    *Server
	codec  string
	stream *gortsplib.ServerStream
	media  *description.Media
	h264   *format.H264
	h265   *format.H265
	enc    encoder
	offset uint32 // Random RTP timestamp offset.

	ready     chan struct{} // Closed once the first access unit is written.
	readyOnce sync.Once

	mu      sync.Mutex
	closed  bool
	bitrate bitrate.Calculator
}

// Publish creates a stream of codec, one of codecutil.H264 or
// codecutil.H265, and serves it in place of any previous stream. Start must
// have been called.
func (s *Server) Publish(codec string) (*Stream, error) {
	if s.srv == nil {
		return nil, errNotStarted
	}
	st := &Stream{
		srv:    s,
		codec:  codec,
		offset: rand.Uint32(),
		ready:  make(chan struct{}),
	}

	var (
		f   format.Format
		err error
	)
	switch codec {
	case codecutil.H264:
		st.h264 = &format.H264{PayloadTyp: payloadType, PacketizationMode: 1}
		st.enc, err = st.h264.CreateEncoder()
		f = st.h264
	case codecutil.H265:
		st.h265 = &format.H265{PayloadTyp: payloadType}
		st.enc, err = st.h265.CreateEncoder()
		f = st.h265
	default:
		return nil, fmt.Errorf("cannot serve codec %q", codec)
	}
	if err != nil {
		return nil, fmt.Errorf("could not create RTP encoder: %w", err)
	}

	st.media = &description.Media{Type: description.MediaTypeVideo, Formats: []format.Format{f}}
	st.stream = gortsplib.NewServerStream(s.srv, &description.Session{Medias: []*description.Media{st.media}})
	s.setStream(st)
	s.log.Info("stream published", "codec", codec)
	return st, nil
}

// WriteUnit writes the Annex B access unit au with presentation time pts to
// the stream's readers.
func (st *Stream) WriteUnit(au []byte, pts time.Duration) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return errStreamClosed
	}

	st.updateParams(au)
	nalus := codecutil.NALUnits(au)
	if len(nalus) == 0 {
		return nil
	}
	pkts, err := st.enc.Encode(nalus)
	if err != nil {
		return fmt.Errorf("could not packetise access unit: %w", err)
	}

	ts := st.offset + uint32(int64(pts)*clockRate/int64(time.Second))
	for _, pkt := range pkts {
		pkt.Timestamp = ts
		err = st.stream.WritePacketRTP(st.media, pkt)
		if err != nil {
			return fmt.Errorf("could not write RTP packet: %w", err)
		}
	}
	st.bitrate.Report(len(au))
	st.readyOnce.Do(func() { close(st.ready) })
	return nil
}

// updateParams records any parameter sets carried by au in the stream's
// description.
func (st *Stream) updateParams(au []byte) {
	switch {
	case st.h264 != nil:
		sps, pps := h264.ParameterSets(au)
		if sps == nil || pps == nil {
			return
		}
		if bytes.Equal(sps, st.h264.SPS) && bytes.Equal(pps, st.h264.PPS) {
			return
		}
		st.h264.SafeSetParams(append([]byte(nil), sps...), append([]byte(nil), pps...))
	case st.h265 != nil:
		vps, sps, pps := h265.ParameterSets(au)
		if vps == nil || sps == nil || pps == nil {
			return
		}
		if bytes.Equal(vps, st.h265.VPS) && bytes.Equal(sps, st.h265.SPS) && bytes.Equal(pps, st.h265.PPS) {
			return
		}
		st.h265.SafeSetParams(append([]byte(nil), vps...), append([]byte(nil), sps...), append([]byte(nil), pps...))
	}
}

// Bitrate returns the bitrate of the stream in bits per second.
func (st *Stream) Bitrate() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.bitrate.Bitrate()
}

// Close stops serving the stream and drops its viewers' connections.
func (st *Stream) Close() error {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return nil
	}
	st.closed = true
	st.mu.Unlock()

	st.srv.unsetStream(st)
	st.stream.Close()
	st.srv.dropAll()
	st.srv.log.Info("stream closed", "codec", st.codec, "bitrate", st.Bitrate())
	return nil
}
