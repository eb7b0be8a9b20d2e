/*
DESCRIPTION
  viewers_test.go provides testing for viewer tracking.

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
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestViewerCounting(t *testing.T) {
	v := newViewerSet(&sync.Mutex{})
	now := time.Now()

	if !v.connect("a", now) {
		t.Error("first viewer not reported as first")
	}
	if v.connect("a", now) {
		t.Error("repeated connect reported as first")
	}
	if v.connect("b", now) {
		t.Error("second viewer reported as first")
	}
	if v.count() != 2 {
		t.Errorf("got %d viewers, want 2", v.count())
	}

	if v.disconnect("unknown") {
		t.Error("unknown viewer reported as last")
	}
	if v.disconnect("a") {
		t.Error("a reported as last")
	}
	if v.disconnect("a") {
		t.Error("repeated disconnect reported as last")
	}
	if !v.disconnect("b") {
		t.Error("b not reported as last")
	}
	if v.count() != 0 {
		t.Errorf("got %d viewers, want 0", v.count())
	}
	if v.disconnect("b") {
		t.Error("disconnect from empty set reported as last")
	}
}

func TestViewerExpiry(t *testing.T) {
	v := newViewerSet(&sync.Mutex{})
	start := time.Now()
	v.connect("a", start)
	v.connect("b", start)
	v.connect("c", start)
	v.touch("b", start.Add(50*time.Second))

	ids, last := v.expire(start.Add(70*time.Second), time.Minute)
	if !cmp.Equal(ids, []string{"a", "c"}) {
		t.Errorf("unexpected expired viewers: %v", ids)
	}
	if last {
		t.Error("expiry reported last with b remaining")
	}

	ids, last = v.expire(start.Add(200*time.Second), time.Minute)
	if !cmp.Equal(ids, []string{"b"}) || !last {
		t.Errorf("got %v last %v, want [b] and true", ids, last)
	}
}

func TestPinnedViewer(t *testing.T) {
	v := newViewerSet(&sync.Mutex{})
	v.pin(alwaysOnViewer)
	start := time.Now()

	if v.connect("a", start) {
		t.Error("viewer reported as first with pinned viewer present")
	}
	if v.disconnect(alwaysOnViewer) {
		t.Error("pinned viewer disconnected")
	}
	ids, last := v.expire(start.Add(time.Hour), time.Minute)
	if !cmp.Equal(ids, []string{"a"}) || last {
		t.Errorf("got %v last %v, want [a] and false", ids, last)
	}
	if got := v.clear(); got != nil {
		t.Errorf("clear removed %v", got)
	}
	if v.count() != 1 {
		t.Errorf("got %d viewers, want 1", v.count())
	}
}
