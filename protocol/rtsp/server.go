/*
NAME
  server.go

DESCRIPTION
  server.go provides an RTSP server that serves the encoded stream of the
  current session and reports viewer presence to the streamer.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package rtsp provides an RTSP server for the streams built by the
// streamer. Each RTSP connection is a viewer.
package rtsp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/google/uuid"
)

// ViewerNotifier is notified of viewer presence.
type ViewerNotifier interface {
	ViewerConnected(id string)
	ViewerDisconnected(id string)
	ViewerActive(id string)
}

var errNotStarted = errors.New("server not started")

// Server is an RTSP server for a single mount path.
type Server struct {
	addr            string
	path            string
	describeTimeout time.Duration
	log             logging.Logger
	notify          ViewerNotifier
	srv             *gortsplib.Server

	mu      sync.Mutex
	ids     map[*gortsplib.ServerConn]string
	conns   map[string]*gortsplib.ServerConn
	stream  *Stream
	changed chan struct{} // Closed and replaced whenever stream is replaced.
}

// NewServer returns a new Server that will listen on addr and serve the
// stream at path. A DESCRIBE request waits up to describeTimeout for a stream
// to be published.
func NewServer(addr, path string, describeTimeout time.Duration, l logging.Logger) *Server {
	return &Server{
		addr:            addr,
		path:            strings.Trim(path, "/"),
		describeTimeout: describeTimeout,
		log:             l,
		ids:             make(map[*gortsplib.ServerConn]string),
		conns:           make(map[string]*gortsplib.ServerConn),
		changed:         make(chan struct{}),
	}
}

// Start starts listening, notifying n of viewers.
func (s *Server) Start(n ViewerNotifier) error {
	s.notify = n
	s.srv = &gortsplib.Server{
		Handler:     s,
		RTSPAddress: s.addr,
	}
	err := s.srv.Start()
	if err != nil {
		s.srv = nil
		return fmt.Errorf("could not start RTSP server: %w", err)
	}
	s.log.Info("RTSP server listening", "address", s.addr, "path", "/"+s.path)
	return nil
}

// Serve serves requests until ctx is cancelled. Start must have been called.
func (s *Server) Serve(ctx context.Context) error {
	if s.srv == nil {
		return errNotStarted
	}
	errc := make(chan error, 1)
	go func() { errc <- s.srv.Wait() }()

	select {
	case <-ctx.Done():
		s.srv.Close()
		<-errc
		return nil
	case err := <-errc:
		return fmt.Errorf("RTSP server stopped: %w", err)
	}
}

// Drop closes the connection of viewer id, if it is connected.
func (s *Server) Drop(id string) {
	s.mu.Lock()
	sc, ok := s.conns[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.log.Info("dropping viewer", "id", id)
	go sc.Close()
}

// dropAll closes every viewer connection.
func (s *Server) dropAll() {
	s.mu.Lock()
	conns := make([]*gortsplib.ServerConn, 0, len(s.conns))
	for _, sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()
	for _, sc := range conns {
		go sc.Close()
	}
}

// OnConnOpen implements gortsplib.ServerHandlerOnConnOpen.
func (s *Server) OnConnOpen(ctx *gortsplib.ServerHandlerOnConnOpenCtx) {
	id := uuid.NewString()
	s.mu.Lock()
	s.ids[ctx.Conn] = id
	s.conns[id] = ctx.Conn
	s.mu.Unlock()
	s.log.Debug("RTSP connection opened", "id", id)
	s.notify.ViewerConnected(id)
}

// OnConnClose implements gortsplib.ServerHandlerOnConnClose.
func (s *Server) OnConnClose(ctx *gortsplib.ServerHandlerOnConnCloseCtx) {
	s.mu.Lock()
	id, ok := s.ids[ctx.Conn]
	delete(s.ids, ctx.Conn)
	delete(s.conns, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	reason := "closed"
	if ctx.Error != nil {
		reason = ctx.Error.Error()
	}
	s.log.Debug("RTSP connection closed", "id", id, "reason", reason)
	s.notify.ViewerDisconnected(id)
}

// OnRequest implements gortsplib.ServerHandlerOnRequest. Every request,
// including keepalives, counts as viewer activity.
func (s *Server) OnRequest(sc *gortsplib.ServerConn, req *base.Request) {
	if id, ok := s.viewer(sc); ok {
		s.notify.ViewerActive(id)
	}
}

// OnDescribe implements gortsplib.ServerHandlerOnDescribe.
func (s *Server) OnDescribe(ctx *gortsplib.ServerHandlerOnDescribeCtx) (*base.Response, *gortsplib.ServerStream, error) {
	if !s.mounted(ctx.Path) {
		return &base.Response{StatusCode: base.StatusNotFound}, nil, nil
	}
	st := s.wait(s.describeTimeout)
	if st == nil {
		s.log.Warning("no stream to describe", "path", ctx.Path)
		return &base.Response{StatusCode: base.StatusServiceUnavailable}, nil, nil
	}
	return &base.Response{StatusCode: base.StatusOK}, st.stream, nil
}

// OnSetup implements gortsplib.ServerHandlerOnSetup.
func (s *Server) OnSetup(ctx *gortsplib.ServerHandlerOnSetupCtx) (*base.Response, *gortsplib.ServerStream, error) {
	if !s.mounted(ctx.Path) {
		return &base.Response{StatusCode: base.StatusNotFound}, nil, nil
	}
	s.mu.Lock()
	st := s.stream
	s.mu.Unlock()
	if st == nil {
		return &base.Response{StatusCode: base.StatusServiceUnavailable}, nil, nil
	}
	return &base.Response{StatusCode: base.StatusOK}, st.stream, nil
}

// OnPlay implements gortsplib.ServerHandlerOnPlay.
func (s *Server) OnPlay(ctx *gortsplib.ServerHandlerOnPlayCtx) (*base.Response, error) {
	return &base.Response{StatusCode: base.StatusOK}, nil
}

func (s *Server) viewer(sc *gortsplib.ServerConn) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[sc]
	return id, ok
}

// mounted returns true if the request path p is, or is below, the mount path.
func (s *Server) mounted(p string) bool {
	p = strings.Trim(p, "/")
	return p == s.path || strings.HasPrefix(p, s.path+"/")
}

// wait waits up to d for a stream that has received its first access unit.
func (s *Server) wait(d time.Duration) *Stream {
	timeout := time.NewTimer(d)
	defer timeout.Stop()
	for {
		s.mu.Lock()
		st, changed := s.stream, s.changed
		s.mu.Unlock()

		var ready <-chan struct{}
		if st != nil {
			ready = st.ready
		}
		select {
		case <-ready:
			return st
		case <-changed:
		case <-timeout.C:
			return nil
		}
	}
}

// setStream replaces the served stream and wakes any waiting requests.
func (s *Server) setStream(st *Stream) {
	s.mu.Lock()
	s.stream = st
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// unsetStream removes st if it is the served stream.
func (s *Server) unsetStream(st *Stream) {
	s.mu.Lock()
	if s.stream != st {
		s.mu.Unlock()
		return
	}
	s.stream = nil
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}
