/*
DESCRIPTION
  streamer.go provides Streamer, which delivers frames from a camera producer
  to a media graph for as long as viewers are connected, and recovers when the
  producer goes away.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package streamer provides an API for delivering frames from a camera
// producer to a media graph, with sessions driven by viewer presence.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ausocean/streamer/producer"
	"github.com/ausocean/streamer/streamer/config"
)

// alwaysOnViewer is the id of the viewer pinned in always on mode.
const alwaysOnViewer = "always-on"

// eventQueueLen is the length of the event queue.
const eventQueueLen = 64

// eventKind identifies an event handled by the event loop.
type eventKind int

const (
	evViewerConnected eventKind = iota
	evViewerDisconnected
	evViewerActive
	evProducerConnected
	evProducerDisconnected
	evFault
)

// event is a message to the event loop.
type event struct {
	kind eventKind
	id   string // Viewer id.
	gen  uint64 // Producer connection generation.
	err  error
}

// Option is a functional option for New.
type Option func(*Streamer)

// WithExpireFunc sets a function that is called with the id of each viewer
// removed by the expiry sweep or at the end of a failed session, so that the
// viewer's transport can be dropped.
func WithExpireFunc(f func(id string)) Option {
	return func(s *Streamer) { s.onExpire = f }
}

// Streamer coordinates a producer channel, a graph and a population of
// viewers. Viewer notifications may be delivered from any goroutine; all
// control happens on the goroutine running Run.
type Streamer struct {
	cfg      config.Config
	ch       producer.Channel
	newGraph NewGraphFunc
	onExpire func(id string)
	now      func() time.Time

	state  *StreamState
	conn   *connectionManager
	events chan event
	done   chan struct{}

	phase    atomic.Int32
	stopping atomic.Bool

	// session is the active session, read by the frame callback.
	session atomic.Pointer[session]

	// Owned by the Run goroutine.
	params stream
	sweep  <-chan time.Time
}

// stream holds the parameters derived by probing.
type stream struct {
	info      producer.Info
	layout    Layout
	decimator uint
	frameRate uint
	width     uint32
	height    uint32
}

// New returns a new Streamer reading from ch and building graphs with
// newGraph. Invalid fields of c are replaced by defaults.
func New(c config.Config, ch producer.Channel, newGraph NewGraphFunc, opts ...Option) (*Streamer, error) {
	if c.Logger == nil {
		return nil, errors.New("config has no logger")
	}
	if ch == nil || newGraph == nil {
		return nil, errors.New("producer channel and graph constructor are required")
	}
	c.Logger.Debug("validating config")
	err := c.Validate()
	if err != nil {
		return nil, fmt.Errorf("config struct is bad: %w", err)
	}
	c.Logger.SetLevel(c.LogLevel)
	s := &Streamer{
		cfg:      c,
		ch:       ch,
		newGraph: newGraph,
		onExpire: func(string) {},
		now:      time.Now,
		state:    newStreamState(),
		conn:     newConnectionManager(ch, c.Logger),
		events:   make(chan event, eventQueueLen),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if c.AlwaysOn {
		s.state.viewers.pin(alwaysOnViewer)
	}
	return s, nil
}

// ViewerConnected notifies the streamer that a viewer has connected.
func (s *Streamer) ViewerConnected(id string) { s.post(event{kind: evViewerConnected, id: id}) }

// ViewerDisconnected notifies the streamer that a viewer has disconnected.
// Notifications for unknown viewers are ignored.
func (s *Streamer) ViewerDisconnected(id string) {
	s.post(event{kind: evViewerDisconnected, id: id})
}

// ViewerActive notifies the streamer of activity by a viewer, deferring its
// expiry.
func (s *Streamer) ViewerActive(id string) { s.post(event{kind: evViewerActive, id: id}) }

// Stats returns a snapshot of the streamer's state.
func (s *Streamer) Stats() Stats {
	st := s.state.stats()
	st.Phase = Phase(s.phase.Load())
	return st
}

// post queues ev for the event loop. Events posted after Run has returned
// are dropped.
func (s *Streamer) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run runs the retry loop until ctx is cancelled, in which case nil is
// returned. A non-nil error is only returned when the graph cannot be
// constructed; every other failure ends the current session and is retried.
func (s *Streamer) Run(ctx context.Context) error {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	s.sweep = ticker.C

	p := WaitingForChannel
	for {
		s.phase.Store(int32(p))
		s.cfg.Logger.Info("entering phase", "phase", p.String())

		var (
			t   trigger
			err error
		)
		switch p {
		case WaitingForChannel:
			t, err = s.waitForChannel(ctx)
		case Probing:
			t, err = s.probe(ctx)
		case Streaming:
			t, err = s.stream(ctx)
		case Backoff:
			t, err = s.backoff(ctx)
		}
		if err != nil {
			s.stopping.Store(true)
			s.stopSession()
			s.conn.reset()
			if ctx.Err() != nil {
				s.cfg.Logger.Info("streamer stopped")
				return nil
			}
			return err
		}

		p, err = next(p, t)
		if err != nil {
			panic(err)
		}
	}
}

// waitForChannel resets the stream state and connection manager, then waits
// for the producer channel to become available.
func (s *Streamer) waitForChannel(ctx context.Context) (trigger, error) {
	s.state.reset()
	s.conn.reset()

	w, canWait := s.ch.(producer.Waiter)
	for {
		if s.ch.Available() {
			return channelReady, nil
		}

		if !canWait {
			err := s.sleep(ctx, s.cfg.ChannelPollInterval)
			if err != nil {
				return 0, err
			}
			continue
		}

		res := make(chan error, 1)
		go func() { res <- w.WaitAvailable(ctx, s.cfg.ChannelPollInterval) }()
		err := s.await(ctx, res)
		if err != nil {
			return 0, err
		}
	}
}

// backoff waits for the backoff delay.
func (s *Streamer) backoff(ctx context.Context) (trigger, error) {
	err := s.sleep(ctx, s.cfg.BackoffDelay)
	if err != nil {
		return 0, err
	}
	return backoffElapsed, nil
}

// stream runs sessions until the producer goes away or a session fails.
func (s *Streamer) stream(ctx context.Context) (trigger, error) {
	if s.state.viewers.count() > 0 {
		err := s.startSession()
		if err != nil {
			return s.endStreaming(err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case ev := <-s.events:
			err := s.handle(ev)
			if err != nil {
				return s.endStreaming(err)
			}
		case <-s.sweep:
			s.expire()
		}
	}
}

// endStreaming tears down the session after err, clearing the viewers whose
// session failed. Viewers are kept if the producer could not be opened, since
// no session was started for them. A GraphError is returned so that Run
// stops.
func (s *Streamer) endStreaming(err error) (trigger, error) {
	var ge *GraphError
	if errors.As(err, &ge) {
		return 0, err
	}
	s.cfg.Logger.Error("streaming ended", "error", err.Error())
	s.stopSession()
	if errors.Is(err, ErrChannelOpen) {
		s.state.reset()
		return streamEnded, nil
	}
	for _, id := range s.state.viewers.clear() {
		s.onExpire(id)
	}
	s.state.reset()
	return streamEnded, nil
}

// sleep waits for d while handling events.
func (s *Streamer) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		case ev := <-s.events:
			s.handleIdle(ev)
		case <-s.sweep:
			s.expire()
		}
	}
}

// await waits for a result on res while handling events. Only cancellation
// of ctx is returned as an error.
func (s *Streamer) await(ctx context.Context, res <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-res:
			return nil
		case ev := <-s.events:
			s.handleIdle(ev)
		case <-s.sweep:
			s.expire()
		}
	}
}

// handleIdle handles an event outside of streaming, where there is no session
// to start or end.
func (s *Streamer) handleIdle(ev event) {
	err := s.handle(ev)
	if err != nil {
		s.cfg.Logger.Debug("ignoring error outside of session", "error", err.Error())
	}
}

// handle applies an event. A non-nil error ends streaming.
func (s *Streamer) handle(ev event) error {
	switch ev.kind {
	case evViewerConnected:
		first := s.state.viewers.connect(ev.id, s.now())
		s.cfg.Logger.Info("viewer connected", "id", ev.id, "viewers", s.state.viewers.count())
		if first && s.streaming() && s.session.Load() == nil {
			return s.startSession()
		}

	case evViewerDisconnected:
		last := s.state.viewers.disconnect(ev.id)
		s.cfg.Logger.Info("viewer disconnected", "id", ev.id, "viewers", s.state.viewers.count())
		if last {
			s.stopSession()
		}

	case evViewerActive:
		s.state.viewers.touch(ev.id, s.now())

	case evProducerConnected:
		if s.conn.connected(ev.gen) {
			s.cfg.Logger.Info("producer connected", "generation", ev.gen)
		}

	case evProducerDisconnected:
		if s.conn.disconnected(ev.gen) {
			return fmt.Errorf("%w: %s", ErrUpstreamLost, s.ch.Name())
		}
		s.cfg.Logger.Debug("producer disconnected", "generation", ev.gen)

	case evFault:
		if sess := s.session.Load(); sess != nil && sess.gen.Load() == ev.gen {
			return ev.err
		}
		s.cfg.Logger.Debug("ignoring fault from old session", "generation", ev.gen, "error", ev.err.Error())
	}
	return nil
}

// expire removes idle viewers and stops the session if none remain.
func (s *Streamer) expire() {
	ids, last := s.state.viewers.expire(s.now(), s.cfg.SessionTimeout)
	for _, id := range ids {
		s.cfg.Logger.Info("viewer expired", "id", id)
		s.onExpire(id)
	}
	if last {
		s.stopSession()
	}
}

func (s *Streamer) streaming() bool { return Phase(s.phase.Load()) == Streaming }
