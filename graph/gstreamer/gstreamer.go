/*
DESCRIPTION
  gstreamer.go provides a streamer.Graph that runs a GStreamer pipeline
  encoding producer frames and hands the resulting access units to a sink.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package gstreamer provides a GStreamer implementation of streamer.Graph.
package gstreamer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/ausocean/streamer/streamer"
)

// busPoll bounds each wait for a bus message.
const busPoll = 50 * time.Millisecond

var errClosed = errors.New("graph is closed")

var initOnce sync.Once

// Sink consumes the access units of one graph.
type Sink interface {
	// WriteUnit writes an Annex B access unit with presentation time pts.
	WriteUnit(au []byte, pts time.Duration) error

	// Close ends the stream.
	Close() error
}

// Publisher provides the sink for each new graph.
type Publisher interface {
	Publish(codec string) (Sink, error)
}

// Graph is a running GStreamer pipeline.
type Graph struct {
	cfg      streamer.GraphConfig
	log      logging.Logger
	pipeline *gst.Pipeline
	src      *app.Source
	sink     Sink

	mu     sync.Mutex
	closed bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewGraphFunc returns a streamer.NewGraphFunc that builds graphs publishing
// to pub.
func NewGraphFunc(pub Publisher, l logging.Logger) streamer.NewGraphFunc {
	return func(c streamer.GraphConfig) (streamer.Graph, error) {
		return New(c, pub, l)
	}
}

// New builds the graph described by c and sets it playing.
func New(c streamer.GraphConfig, pub Publisher, l logging.Logger) (*Graph, error) {
	desc, err := Description(c)
	if err != nil {
		return nil, err
	}
	initOnce.Do(func() { gst.Init(nil) })

	l.Debug("building graph", "description", desc)
	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return nil, fmt.Errorf("could not parse pipeline: %w", err)
	}

	srcElem, err := pipeline.GetElementByName(srcName)
	if err != nil {
		return nil, fmt.Errorf("could not get appsrc: %w", err)
	}
	sinkElem, err := pipeline.GetElementByName(sinkName)
	if err != nil {
		return nil, fmt.Errorf("could not get appsink: %w", err)
	}

	sink, err := pub.Publish(OutputCodec(c))
	if err != nil {
		return nil, fmt.Errorf("could not publish stream: %w", err)
	}

	g := &Graph{
		cfg:      c,
		log:      l,
		pipeline: pipeline,
		src:      app.SrcFromElement(srcElem),
		sink:     sink,
		quit:     make(chan struct{}),
	}

	g.src.SetCallbacks(&app.SourceCallbacks{
		NeedDataFunc:   func(*app.Source, uint) { c.NeedData() },
		EnoughDataFunc: func(*app.Source) { c.EnoughData() },
	})
	app.SinkFromElement(sinkElem).SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: g.onSample,
	})

	err = pipeline.SetState(gst.StatePlaying)
	if err != nil {
		sink.Close()
		return nil, fmt.Errorf("could not start pipeline: %w", err)
	}

	g.wg.Add(1)
	go g.watch()
	return g, nil
}

// Push implements streamer.Graph.
func (g *Graph) Push(b streamer.Buffer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errClosed
	}

	buf := gst.NewBufferFromBytes(b.Data)
	buf.SetPresentationTimestamp(b.PTS)
	if b.Duration > 0 {
		buf.SetDuration(b.Duration)
	}
	ret := g.src.PushBuffer(buf)
	if ret != gst.FlowOK {
		return fmt.Errorf("appsrc push returned %v", ret)
	}
	return nil
}

// Close implements streamer.Graph.
func (g *Graph) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	close(g.quit)
	g.wg.Wait()

	g.src.EndStream()
	err := g.pipeline.SetState(gst.StateNull)
	if err != nil {
		g.log.Warning("could not stop pipeline", "error", err.Error())
	}
	return g.sink.Close()
}

// onSample forwards an encoded access unit to the sink.
func (g *Graph) onSample(s *app.Sink) gst.FlowReturn {
	sample := s.PullSample()
	if sample == nil {
		return gst.FlowEOS
	}
	buf := sample.GetBuffer()
	if buf == nil {
		return gst.FlowOK
	}

	mapped := buf.Map(gst.MapRead)
	au := append([]byte(nil), mapped.Bytes()...)
	pts := time.Duration(buf.PresentationTimestamp())
	buf.Unmap()

	err := g.sink.WriteUnit(au, pts)
	if err != nil {
		g.log.Warning("could not write access unit", "error", err.Error())
	}
	return gst.FlowOK
}

// watch reports pipeline errors and unexpected end of stream until the graph
// is closed.
func (g *Graph) watch() {
	defer g.wg.Done()
	bus := g.pipeline.GetPipelineBus()
	for {
		select {
		case <-g.quit:
			return
		default:
		}

		msg := bus.TimedPop(busPoll)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			g.log.Error("pipeline error", "error", gerr.Error(), "debug", gerr.DebugString())
			g.cfg.Error(fmt.Errorf("pipeline error: %s", gerr.Error()))
			return
		case gst.MessageEOS:
			g.cfg.Error(errors.New("pipeline reached end of stream"))
			return
		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			g.log.Warning("pipeline warning", "warning", gerr.Error())
		}
	}
}
