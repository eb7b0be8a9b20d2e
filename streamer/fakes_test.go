/*
DESCRIPTION
  fakes_test.go provides fake producer channels and graphs for testing.

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
	"errors"
	"sync"

	"github.com/ausocean/streamer/producer"
)

// fakeChannel is a producer.Channel whose frames are delivered by the test.
type fakeChannel struct {
	mu        sync.Mutex
	available bool
	info      *producer.Info
	cb        producer.Callbacks
	open      bool
	opens     int
	closes    int
	flushes   int
	occupancy int
	capacity  int
	openErr   error

	opened chan struct{}
}

func newFakeChannel(info *producer.Info) *fakeChannel {
	return &fakeChannel{available: true, info: info, capacity: 16, opened: make(chan struct{}, 16)}
}

func (c *fakeChannel) Name() string { return "fake" }

func (c *fakeChannel) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

func (c *fakeChannel) setAvailable(b bool) {
	c.mu.Lock()
	c.available = b
	c.mu.Unlock()
}

func (c *fakeChannel) setOpenErr(err error) {
	c.mu.Lock()
	c.openErr = err
	c.mu.Unlock()
}

func (c *fakeChannel) Describe() (producer.Info, bool) {
	if c.info == nil {
		return producer.Info{}, false
	}
	return *c.info, true
}

func (c *fakeChannel) Open(cb producer.Callbacks) error {
	c.mu.Lock()
	if c.openErr != nil {
		c.mu.Unlock()
		return c.openErr
	}
	if c.open {
		c.mu.Unlock()
		return errors.New("already open")
	}
	c.cb = cb
	c.open = true
	c.opens++
	c.mu.Unlock()

	go cb.Connect()
	select {
	case c.opened <- struct{}{}:
	default:
	}
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil
	}
	c.open = false
	c.closes++
	cb := c.cb
	c.mu.Unlock()

	go cb.Disconnect()
	return nil
}

// drop simulates the producer going away.
func (c *fakeChannel) drop() {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return
	}
	c.open = false
	cb := c.cb
	c.mu.Unlock()
	cb.Disconnect()
}

// deliver passes a frame to the current connection, if any.
func (c *fakeChannel) deliver(meta producer.FrameMetadata, payload []byte) {
	c.mu.Lock()
	open, cb := c.open, c.cb
	c.mu.Unlock()
	if open {
		cb.Frame(meta, payload)
	}
}

func (c *fakeChannel) Flush() error {
	c.mu.Lock()
	c.flushes++
	c.occupancy = 0
	c.mu.Unlock()
	return nil
}

func (c *fakeChannel) Occupancy() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.occupancy
}

func (c *fakeChannel) Capacity() int { return c.capacity }

func (c *fakeChannel) counts() (opens, closes, flushes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens, c.closes, c.flushes
}

func (c *fakeChannel) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// fakeGraph records the buffers pushed to it.
type fakeGraph struct {
	cfg GraphConfig

	mu      sync.Mutex
	bufs    []Buffer
	closed  bool
	pushErr error
}

func (g *fakeGraph) Push(b Buffer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errors.New("graph closed")
	}
	if g.pushErr != nil {
		return g.pushErr
	}
	b.Data = append([]byte(nil), b.Data...)
	g.bufs = append(g.bufs, b)
	return nil
}

func (g *fakeGraph) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	return nil
}

func (g *fakeGraph) buffers() []Buffer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Buffer(nil), g.bufs...)
}

func (g *fakeGraph) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// graphRecorder builds fake graphs and keeps every graph it built.
type graphRecorder struct {
	mu     sync.Mutex
	graphs []*fakeGraph
	err    error
}

func (r *graphRecorder) new(c GraphConfig) (Graph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	g := &fakeGraph{cfg: c}
	r.graphs = append(r.graphs, g)
	return g, nil
}

func (r *graphRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.graphs)
}

func (r *graphRecorder) graph(i int) *fakeGraph {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graphs[i]
}
