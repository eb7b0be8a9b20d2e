/*
DESCRIPTION
  connection.go provides the producer connection manager, which opens and
  closes the producer channel and classifies disconnects as intentional or
  not.

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
	"sync"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/streamer/producer"
)

// connState is the state of the producer connection.
type connState int

const (
	connClosed connState = iota
	connOpening
	connConnected
	connDisconnecting
)

func (s connState) String() string {
	switch s {
	case connClosed:
		return "closed"
	case connOpening:
		return "opening"
	case connConnected:
		return "connected"
	case connDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("connState(%d)", int(s))
	}
}

// connectionManager drives a producer.Channel through
// closed -> opening -> connected -> disconnecting -> closed.
//
// Every open is given a new generation. Callbacks carry the generation they
// were installed with, so notifications that arrive late from an earlier
// connection are recognised and ignored.
type connectionManager struct {
	ch  producer.Channel
	log logging.Logger

	mu          sync.Mutex
	state       connState
	intentional bool
	gen         uint64
}

func newConnectionManager(ch producer.Channel, l logging.Logger) *connectionManager {
	return &connectionManager{ch: ch, log: l}
}

// open opens the channel with the callbacks returned by hooks for the new
// generation, which is returned.
func (m *connectionManager) open(hooks func(gen uint64) producer.Callbacks) (uint64, error) {
	m.mu.Lock()
	switch m.state {
	case connClosed, connDisconnecting:
	default:
		m.mu.Unlock()
		return 0, fmt.Errorf("cannot open producer channel while %v", m.state)
	}
	m.gen++
	gen := m.gen
	m.state = connOpening
	m.intentional = false
	m.mu.Unlock()

	m.log.Debug("opening producer channel", "name", m.ch.Name(), "generation", gen)
	err := m.ch.Open(hooks(gen))

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if m.gen == gen {
			m.state = connClosed
		}
		return 0, fmt.Errorf("%w %s: %w", ErrChannelOpen, m.ch.Name(), err)
	}
	// A disconnect may already have been handled.
	if m.gen == gen && m.state == connOpening {
		m.state = connConnected
	}
	return gen, nil
}

// close closes the channel. intentional is recorded so that the disconnect
// notification that follows is not treated as a fault.
func (m *connectionManager) close(intentional bool) error {
	m.mu.Lock()
	if m.state == connClosed {
		m.mu.Unlock()
		return nil
	}
	m.state = connDisconnecting
	m.intentional = intentional
	gen := m.gen
	m.mu.Unlock()

	m.log.Debug("closing producer channel", "name", m.ch.Name(), "generation", gen, "intentional", intentional)
	return m.ch.Close()
}

// connected handles the producer's connect notification.
func (m *connectionManager) connected(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen && m.state != connClosed
}

// disconnected handles the producer's disconnect notification and returns
// true if it was not caused by a call to close, meaning the producer went
// away underneath us.
func (m *connectionManager) disconnected(gen uint64) (unexpected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false
	}
	switch m.state {
	case connDisconnecting:
		unexpected = !m.intentional
	case connOpening, connConnected:
		unexpected = true
	}
	m.state = connClosed
	return unexpected
}

// current returns the state and generation of the connection.
func (m *connectionManager) current() (connState, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.gen
}

// reset closes any open connection and forgets its generation, so that late
// notifications from it are ignored.
func (m *connectionManager) reset() {
	st, _ := m.current()
	if st != connClosed {
		err := m.close(true)
		if err != nil {
			m.log.Debug("close during reset failed", "error", err.Error())
		}
	}
	m.mu.Lock()
	m.gen++
	m.state = connClosed
	m.intentional = false
	m.mu.Unlock()
}
