/*
DESCRIPTION
  viewers.go provides the viewer set that counts connected viewers and
  expires those that stop showing activity.

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
	"sort"
	"sync"
	"time"
)

// viewerSet maps viewer ids to the time of their last activity. Keying by id
// makes repeated notifications for one viewer idempotent, so the count can
// never go negative. Access is under mu, which is shared with the rest of
// StreamState.
type viewerSet struct {
	mu     *sync.Mutex
	seen   map[string]time.Time
	pinned string // Never expires or clears; empty if unused.
}

func newViewerSet(mu *sync.Mutex) *viewerSet {
	return &viewerSet{mu: mu, seen: make(map[string]time.Time)}
}

// pin adds a viewer that is never expired or cleared.
func (v *viewerSet) pin(id string) {
	v.mu.Lock()
	v.pinned = id
	v.seen[id] = time.Time{}
	v.mu.Unlock()
}

// connect adds a viewer and reports whether it is the first.
func (v *viewerSet) connect(id string, now time.Time) (first bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[id]; ok {
		v.touchLocked(id, now)
		return false
	}
	v.seen[id] = now
	return len(v.seen) == 1
}

// disconnect removes a viewer and reports whether it was the last.
// Unknown ids are ignored.
func (v *viewerSet) disconnect(id string) (last bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[id]; !ok || id == v.pinned {
		return false
	}
	delete(v.seen, id)
	return len(v.seen) == 0
}

// touch records activity for a known viewer.
func (v *viewerSet) touch(id string, now time.Time) {
	v.mu.Lock()
	v.touchLocked(id, now)
	v.mu.Unlock()
}

func (v *viewerSet) touchLocked(id string, now time.Time) {
	if _, ok := v.seen[id]; ok && id != v.pinned {
		v.seen[id] = now
	}
}

// expire removes viewers idle for longer than timeout. The removed ids are
// returned in order, along with whether the set went from non-empty to
// empty.
func (v *viewerSet) expire(now time.Time, timeout time.Duration) (ids []string, last bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.seen) == 0 {
		return nil, false
	}
	for id, t := range v.seen {
		if id == v.pinned || now.Sub(t) <= timeout {
			continue
		}
		ids = append(ids, id)
		delete(v.seen, id)
	}
	sort.Strings(ids)
	return ids, len(ids) != 0 && len(v.seen) == 0
}

// clear removes every viewer except a pinned one and returns the removed
// ids in order.
func (v *viewerSet) clear() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var ids []string
	for id := range v.seen {
		if id == v.pinned {
			continue
		}
		ids = append(ids, id)
		delete(v.seen, id)
	}
	sort.Strings(ids)
	return ids
}

func (v *viewerSet) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}
