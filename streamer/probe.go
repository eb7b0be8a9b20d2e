/*
DESCRIPTION
  probe.go provides discovery of the producer's stream parameters, from the
  producer's own description when it offers one, otherwise by sampling
  frames.

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
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ausocean/streamer/producer"
)

// sample is the part of a frame's metadata kept while probing.
type sample struct {
	format    producer.Format
	width     uint32
	height    uint32
	timestamp uint64
}

// probe derives the stream parameters and output layout.
func (s *Streamer) probe(ctx context.Context) (trigger, error) {
	info, err := s.describe(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return 0, ctx.Err()
	default:
		s.cfg.Logger.Error("could not probe stream", "error", err.Error())
		return probeFailed, nil
	}

	p, err := s.streamParams(info)
	if err != nil {
		s.cfg.Logger.Error("cannot stream producer format", "error", err.Error())
		return probeFailed, nil
	}
	s.params = p
	s.cfg.Logger.Info("probed stream",
		"format", info.Format.String(),
		"width", info.Width,
		"height", info.Height,
		"input fps", info.FrameRate,
		"output fps", p.frameRate,
		"output width", p.width,
		"output height", p.height,
	)
	return probed, nil
}

// streamParams resolves the layout and output parameters for info.
func (s *Streamer) streamParams(info producer.Info) (stream, error) {
	l, err := ResolveLayout(info.Format, info.Width, info.Height)
	if err != nil {
		return stream{}, err
	}

	dec, forced := effectiveDecimator(l, s.cfg.Decimator)
	if forced {
		s.cfg.Logger.Warning("compressed input cannot be decimated, forwarding every frame", "format", info.Format.String(), "decimator", s.cfg.Decimator)
	}

	fps := info.FrameRate / dec
	if fps == 0 {
		fps = 1
	}
	w, h := OutputDimensions(l, s.cfg.Rotation)
	return stream{info: info, layout: l, decimator: dec, frameRate: fps, width: w, height: h}, nil
}

// describe returns the producer's description of its stream if it has one,
// otherwise samples two frames.
func (s *Streamer) describe(ctx context.Context) (producer.Info, error) {
	if d, ok := s.ch.(producer.Describer); ok {
		if info, ok := d.Describe(); ok {
			s.cfg.Logger.Debug("using producer stream description")
			return info, nil
		}
	}
	return s.sampleStream(ctx)
}

// sampleStream opens the producer and derives the stream description from
// the first frame and the frame rate from the timestamps of the first two.
func (s *Streamer) sampleStream(ctx context.Context) (producer.Info, error) {
	samples := make(chan sample, 2)
	gen, err := s.conn.open(func(gen uint64) producer.Callbacks {
		return producer.Callbacks{
			Connect:    func() { s.post(event{kind: evProducerConnected, gen: gen}) },
			Disconnect: func() { s.post(event{kind: evProducerDisconnected, gen: gen}) },
			Frame: func(meta producer.FrameMetadata, _ []byte) {
				if meta.IsHeader() {
					return
				}
				select {
				case samples <- sample{format: meta.Format, width: meta.Width, height: meta.Height, timestamp: meta.Timestamp}:
				default:
				}
			},
		}
	})
	if err != nil {
		return producer.Info{}, err
	}
	defer func() {
		err := s.conn.close(true)
		if err != nil {
			s.cfg.Logger.Debug("could not close producer after probing", "error", err.Error())
		}
	}()

	timeout := time.NewTimer(s.cfg.ProbeTimeout)
	defer timeout.Stop()

	var got []sample
	for len(got) < 2 {
		select {
		case <-ctx.Done():
			return producer.Info{}, ctx.Err()
		case <-timeout.C:
			return producer.Info{}, fmt.Errorf("%w after %v with %d frames", ErrProbeTimeout, s.cfg.ProbeTimeout, len(got))
		case smp := <-samples:
			s.cfg.Logger.Debug("probe frame", "timestamp", smp.timestamp)
			got = append(got, smp)
		case ev := <-s.events:
			if ev.kind == evProducerDisconnected && ev.gen == gen && s.conn.disconnected(gen) {
				return producer.Info{}, fmt.Errorf("%w while probing", ErrUpstreamLost)
			}
			s.handleIdle(ev)
		case <-s.sweep:
			s.expire()
		}
	}

	rate, err := frameRate(got[0].timestamp, got[1].timestamp)
	if err != nil {
		return producer.Info{}, err
	}
	return producer.Info{
		Format:    got[0].format,
		Width:     got[0].width,
		Height:    got[0].height,
		FrameRate: rate,
	}, nil
}

// frameRate returns the frame rate, rounded to the nearest whole frame, of
// frames captured at timestamps first and second.
func frameRate(first, second uint64) (uint, error) {
	if second <= first {
		return 0, errors.New("frame timestamps not increasing")
	}
	return uint(math.Round(float64(time.Second) / float64(second-first))), nil
}
