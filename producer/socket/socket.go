/*
DESCRIPTION
  socket.go provides Socket, a producer.Channel that connects to a camera
  producer over a named Unix domain socket. Records read from the socket are
  queued in a pool buffer and delivered to the frame callback by a separate
  dispatch routine, so that a slow consumer drops old frames rather than
  stalling the producer.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package socket provides a producer.Channel over a named Unix domain socket.
package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
	"github.com/fsnotify/fsnotify"

	"github.com/ausocean/streamer/producer"
)

const pkg = "socket: "

// Default values used when a zero value is given to New.
const (
	defaultCapacity = 16
	defaultMaxFrame = 16 << 20
)

const (
	poolWriteTimeout = 10 * time.Millisecond
	poolNextTimeout  = 100 * time.Millisecond
	dialTimeout      = 2 * time.Second
)

var (
	errAlreadyOpen = errors.New("channel already open")
	errNotOpen     = errors.New("channel not open")
	errWaitTimeout = errors.New("timed out waiting for channel")
)

// Socket is a producer.Channel backed by a Unix domain socket.
type Socket struct {
	path     string
	capacity int
	maxFrame int
	log      logging.Logger

	mu   sync.Mutex
	conn *conn
}

// conn holds the state of a single connection. A new conn is created for
// each Open so that routines from an earlier connection never touch a later
// one.
type conn struct {
	nc      net.Conn
	buf     *pool.Buffer
	flush   atomic.Bool
	closed  atomic.Bool
	readEnd chan struct{}
}

// New returns a Socket for the producer socket at path. capacity is the
// number of frames that may be queued and maxFrame the largest frame, in
// bytes, that will be accepted.
func New(path string, capacity, maxFrame int, l logging.Logger) *Socket {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if maxFrame <= 0 {
		maxFrame = defaultMaxFrame
	}
	// Room for a full queue, the record being dispatched and the record
	// being written.
	reserve((capacity + 2) * chunkSize(maxFrame+producer.MetadataSize))
	return &Socket{path: path, capacity: capacity, maxFrame: maxFrame, log: l}
}

var (
	allocMu  sync.Mutex
	reserved int
)

// reserve raises the global pool allocation limit to at least n bytes. The
// limit is shared by every pool buffer in the process.
func reserve(n int) {
	allocMu.Lock()
	defer allocMu.Unlock()
	if n > reserved {
		reserved = n
		pool.MaxAlloc(n)
	}
}

// chunkSize returns the size of the pool chunk that holds a write of n
// bytes. Chunks are allocated in powers of two.
func chunkSize(n int) int {
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}

// Name implements producer.Channel.
func (s *Socket) Name() string { return s.path }

// Capacity implements producer.Channel.
func (s *Socket) Capacity() int { return s.capacity }

// Available returns true if a socket exists at the channel path.
func (s *Socket) Available() bool {
	fi, err := os.Stat(s.path)
	return err == nil && fi.Mode()&os.ModeSocket != 0
}

// WaitAvailable blocks until the socket appears, ctx is done or d elapses.
// The socket's directory is watched so that creation is noticed without
// polling; if the directory cannot be watched WaitAvailable sleeps for d.
func (s *Socket) WaitAvailable(ctx context.Context, d time.Duration) error {
	if s.Available() {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	w, err := fsnotify.NewWatcher()
	if err == nil {
		defer w.Close()
		err = w.Add(filepath.Dir(s.path))
	}
	if err != nil {
		s.log.Debug(pkg+"could not watch channel directory, sleeping instead", "error", err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if s.Available() {
			return nil
		}
		return errWaitTimeout
	}

	for {
		// The socket may have been created between the first check and the
		// watch being added.
		if s.Available() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errWaitTimeout
		case ev, ok := <-w.Events:
			if !ok {
				return errWaitTimeout
			}
			if filepath.Clean(ev.Name) == filepath.Clean(s.path) && ev.Has(fsnotify.Create) {
				s.log.Debug(pkg+"channel created", "path", s.path)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errWaitTimeout
			}
			return fmt.Errorf("watch error: %w", err)
		}
	}
}

// Open dials the producer and starts delivering frames to cb.
func (s *Socket) Open(cb producer.Callbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return errAlreadyOpen
	}

	nc, err := net.DialTimeout("unix", s.path, dialTimeout)
	if err != nil {
		return fmt.Errorf("could not dial %s: %w", s.path, err)
	}

	c := &conn{
		nc:      nc,
		buf:     pool.NewBuffer(s.capacity, s.maxFrame+producer.MetadataSize, poolWriteTimeout),
		readEnd: make(chan struct{}),
	}
	s.conn = c

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.read(c)
	}()
	go func() {
		defer wg.Done()
		s.dispatch(c, cb)
	}()
	go func() {
		wg.Wait()
		nc.Close()
		s.mu.Lock()
		if s.conn == c {
			s.conn = nil
		}
		s.mu.Unlock()
		s.log.Info(pkg+"disconnected", "path", s.path, "intentional", c.closed.Load())
		if cb.Disconnect != nil {
			cb.Disconnect()
		}
	}()
	s.log.Info(pkg+"opened", "path", s.path)
	return nil
}

// Close ends the current connection. The Disconnect callback is called once
// the connection's routines have exited.
func (s *Socket) Close() error {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()
	if c == nil {
		return errNotOpen
	}
	c.closed.Store(true)
	return c.nc.Close()
}

// Flush implements producer.Channel. Queued frames are discarded by the
// dispatch routine before it delivers its next frame.
func (s *Socket) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errNotOpen
	}
	s.conn.flush.Store(true)
	return nil
}

// Occupancy implements producer.Channel.
func (s *Socket) Occupancy() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0
	}
	return s.conn.buf.Len()
}

// read reads records from the socket into the pool buffer until the
// connection ends.
func (s *Socket) read(c *conn) {
	defer close(c.readEnd)

	var (
		payload []byte
		rec     []byte
	)
	for {
		meta, p, err := producer.ReadFrame(c.nc, payload, s.maxFrame)
		if err != nil {
			switch {
			case c.closed.Load():
			case errors.Is(err, io.EOF):
				s.log.Info(pkg+"producer closed connection", "path", s.path)
			default:
				s.log.Error(pkg+"could not read frame", "error", err.Error())
			}
			return
		}
		payload = p

		hdr, _ := meta.MarshalBinary()
		rec = append(append(rec[:0], hdr...), p...)

		_, err = c.buf.Write(rec)
		switch err {
		case nil:
		case pool.ErrDropped:
			s.log.Warning(pkg+"old frame overwritten", "full chunks", c.buf.Len())
		case pool.ErrTooLong:
			s.log.Warning(pkg+"frame too large, dropping", "size", len(rec))
			continue
		default:
			s.log.Error(pkg+"unexpected pool buffer error", "error", err.Error())
			continue
		}
		c.buf.Flush()
	}
}

// dispatch delivers queued records to cb until the reader has finished and
// the queue is empty, or the connection is closed.
func (s *Socket) dispatch(c *conn, cb producer.Callbacks) {
	if cb.Connect != nil {
		cb.Connect()
	}

	for {
		if c.closed.Load() {
			return
		}

		chunk, err := c.buf.Next(poolNextTimeout)
		switch err {
		case nil:
		case pool.ErrTimeout, io.EOF:
			select {
			case <-c.readEnd:
				if c.buf.Len() == 0 {
					return
				}
			default:
			}
			continue
		default:
			s.log.Error(pkg+"unexpected error from Next", "error", err.Error())
			continue
		}

		if c.flush.Swap(false) {
			n := 1
			chunk.Close()
			for c.buf.Len() > 0 {
				chunk, err = c.buf.Next(poolNextTimeout)
				if err != nil {
					break
				}
				chunk.Close()
				n++
			}
			s.log.Debug(pkg+"flushed queued frames", "frames", n)
			continue
		}

		b := chunk.Bytes()
		var meta producer.FrameMetadata
		err = meta.UnmarshalBinary(b)
		if err != nil {
			s.log.Error(pkg+"corrupt queued record", "error", err.Error())
			chunk.Close()
			continue
		}
		if cb.Frame != nil {
			cb.Frame(meta, b[producer.MetadataSize:])
		}
		chunk.Close()
	}
}
