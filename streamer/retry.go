/*
DESCRIPTION
  retry.go provides the phases of the streamer's retry loop and the
  transitions between them.

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

import "fmt"

// Phase is a phase of the retry loop.
type Phase int32

// Retry loop phases.
const (
	WaitingForChannel Phase = iota
	Probing
	Streaming
	Backoff
)

func (p Phase) String() string {
	switch p {
	case WaitingForChannel:
		return "waiting for channel"
	case Probing:
		return "probing"
	case Streaming:
		return "streaming"
	case Backoff:
		return "backoff"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// trigger is the outcome of a phase that causes a transition.
type trigger int

const (
	channelReady trigger = iota
	probed
	probeFailed
	streamEnded
	backoffElapsed
)

func (t trigger) String() string {
	switch t {
	case channelReady:
		return "channel ready"
	case probed:
		return "probed"
	case probeFailed:
		return "probe failed"
	case streamEnded:
		return "stream ended"
	case backoffElapsed:
		return "backoff elapsed"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

var transitions = map[Phase]map[trigger]Phase{
	WaitingForChannel: {channelReady: Probing},
	Probing:           {probed: Streaming, probeFailed: Backoff},
	Streaming:         {streamEnded: Backoff},
	Backoff:           {backoffElapsed: WaitingForChannel},
}

// next returns the phase that follows p on trigger t.
func next(p Phase, t trigger) (Phase, error) {
	n, ok := transitions[p][t]
	if !ok {
		return p, fmt.Errorf("no transition from %v on %v", p, t)
	}
	return n, nil
}
