/*
DESCRIPTION
  session.go provides the start and end of a streaming session and the
  handling of frames delivered by the producer during one.

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
	"sync/atomic"

	"github.com/ausocean/streamer/producer"
)

// session is a running graph fed by one producer connection.
type session struct {
	gen     atomic.Uint64
	graph   Graph
	faulted atomic.Bool
}

// startSession builds the graph and opens the producer. Failure to open the
// producer ends streaming; failure to build the graph is returned as a
// GraphError.
func (s *Streamer) startSession() error {
	s.state.reset()
	s.state.frames.Configure(s.params.layout, s.params.decimator)

	sess := &session{}
	g, err := s.newGraph(GraphConfig{
		Layout:     s.params.layout,
		Width:      s.params.width,
		Height:     s.params.height,
		FrameRate:  s.params.frameRate,
		Rotation:   s.cfg.Rotation,
		Bitrate:    s.cfg.Bitrate,
		Encoder:    s.cfg.Encoder,
		NeedData:   func() { s.state.wantsData.Store(true) },
		EnoughData: func() { s.state.wantsData.Store(false) },
		Error:      func(err error) { s.fault(sess, fmt.Errorf("graph failed: %w", err)) },
	})
	if err != nil {
		return &GraphError{Err: err}
	}
	sess.graph = g

	// The session is published before the channel opens so that no frame,
	// in particular a leading header, is missed.
	gen, err := s.conn.open(func(gen uint64) producer.Callbacks {
		sess.gen.Store(gen)
		s.session.Store(sess)
		return producer.Callbacks{
			Connect:    func() { s.post(event{kind: evProducerConnected, gen: gen}) },
			Disconnect: func() { s.post(event{kind: evProducerDisconnected, gen: gen}) },
			Frame:      func(meta producer.FrameMetadata, payload []byte) { s.onFrame(gen, meta, payload) },
		}
	})
	if err != nil {
		s.session.Store(nil)
		g.Close()
		return err
	}
	s.cfg.Logger.Info("session started", "generation", gen, "viewers", s.state.viewers.count())
	return nil
}

// stopSession closes the producer and the graph of the active session, if
// any, and resets the stream state.
func (s *Streamer) stopSession() {
	sess := s.session.Swap(nil)
	if sess == nil {
		return
	}

	var errs producer.MultiError
	err := s.conn.close(true)
	if err != nil {
		errs = append(errs, fmt.Errorf("could not close producer channel: %w", err))
	}
	err = sess.graph.Close()
	if err != nil {
		errs = append(errs, fmt.Errorf("could not close graph: %w", err))
	}
	if len(errs) != 0 {
		s.cfg.Logger.Warning("session did not close cleanly", "error", errs.Error())
	}

	st := s.state.stats()
	s.cfg.Logger.Info("session stopped", "generation", sess.gen.Load(), "input frames", st.InputFrames, "output frames", st.OutputFrames)
	s.state.reset()
}

// fault reports err as ending sess. Only the first fault of a session is
// reported.
func (s *Streamer) fault(sess *session, err error) {
	if !sess.faulted.CompareAndSwap(false, true) {
		return
	}
	s.cfg.Logger.Error("session fault", "error", err.Error())
	s.post(event{kind: evFault, gen: sess.gen.Load(), err: err})
}

// onFrame handles a frame from the producer connection of generation gen. It
// runs on the producer's delivery goroutine.
func (s *Streamer) onFrame(gen uint64, meta producer.FrameMetadata, payload []byte) {
	if s.stopping.Load() {
		return
	}
	sess := s.session.Load()
	if sess == nil || sess.gen.Load() != gen || sess.faulted.Load() {
		return
	}

	d, err := s.state.frames.Process(meta, payload)
	if err != nil {
		s.fault(sess, err)
		return
	}

	switch d.action {
	case actionHold:
		s.cfg.Logger.Debug("cached parameter set", "size", len(payload))
		s.state.clock.Prime(meta.Timestamp)
		return
	case actionDrop:
		return
	}

	if !s.state.wantsData.Load() {
		s.cfg.Logger.Debug("graph does not want data, skipping frame", "frame", meta.FrameID)
		return
	}

	pts, dur, ok := s.state.clock.Stamp(meta.Timestamp)
	if !ok {
		s.cfg.Logger.Debug("clock primed", "timestamp", meta.Timestamp)
		return
	}

	if d.header != nil {
		err = sess.graph.Push(Buffer{Data: d.header, PTS: pts})
		if err != nil {
			s.fault(sess, fmt.Errorf("%w: %v", ErrHeaderPush, err))
			return
		}
		s.state.frames.HeaderSent()
	}

	err = sess.graph.Push(Buffer{Data: d.payload, PTS: pts, Duration: dur})
	if err != nil {
		s.cfg.Logger.Warning("frame rejected by graph", "frame", meta.FrameID, "error", err.Error())
		return
	}
	s.state.frames.Forwarded()

	if occ, capacity := s.ch.Occupancy(), s.ch.Capacity(); occ > capacity/2 {
		s.cfg.Logger.Warning("producer falling behind, flushing channel", "occupancy", occ, "capacity", capacity)
		err = s.ch.Flush()
		if err != nil {
			s.cfg.Logger.Warning("could not flush producer channel", "error", err.Error())
		}
	}
}
