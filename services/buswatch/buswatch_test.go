package buswatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"twicode-go/drivers/twi"
	"twicode-go/errcode"
	"twicode-go/services/buswatch"
)

// Compile-time check: the real controller satisfies the sampler contract.
var _ buswatch.Sampler = (*twi.Controller)(nil)

// fakeSampler is a lock-guarded descriptor snapshot the test mutates.
type fakeSampler struct {
	mu       sync.Mutex
	state    twi.State
	status   twi.Status
	progress int
}

func (f *fakeSampler) State() twi.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSampler) Status() twi.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSampler) Progress() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress
}

func (f *fakeSampler) set(state twi.State, status twi.Status, progress int) {
	f.mu.Lock()
	f.state = state
	f.status = status
	f.progress = progress
	f.mu.Unlock()
}

func watched(t *testing.T) (*fakeSampler, *buswatch.Watcher, context.CancelFunc) {
	t.Helper()
	s := &fakeSampler{state: twi.StateFree, status: twi.StatusIdle}
	w := buswatch.New(s, buswatch.Config{
		Sample: 500 * time.Microsecond,
		Stall:  5 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go w.Watch(ctx)
	return s, w, cancel
}

func waitEvent(t *testing.T, w *buswatch.Watcher, within time.Duration) buswatch.Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(within):
		t.Fatal("no event within deadline")
		return buswatch.Event{}
	}
}

func TestStallDetectedOnFrozenTransaction(t *testing.T) {
	s, w, cancel := watched(t)
	defer cancel()

	// Armed, then nothing: the peer never answers and progress freezes
	// with the full buffer outstanding.
	s.set(twi.StateMasterWrite, twi.StatusStart, 3)

	ev := waitEvent(t, w, time.Second)
	if ev.Kind != buswatch.KindStalled {
		t.Fatalf("event = %v (want stalled)", ev.Kind)
	}
	if ev.State != twi.StateMasterWrite || ev.Remaining != 3 {
		t.Fatalf("stall observed %v/%d (want master_write/3)", ev.State, ev.Remaining)
	}
}

func TestRecoveryAfterStall(t *testing.T) {
	s, w, cancel := watched(t)
	defer cancel()

	s.set(twi.StateMasterWrite, twi.StatusStart, 3)
	if ev := waitEvent(t, w, time.Second); ev.Kind != buswatch.KindStalled {
		t.Fatalf("event = %v (want stalled)", ev.Kind)
	}

	// A byte moves: the stall is over.
	s.set(twi.StateMasterWrite, twi.StatusWriteDataAck, 2)
	if ev := waitEvent(t, w, time.Second); ev.Kind != buswatch.KindRecovered {
		t.Fatalf("event = %v (want recovered)", ev.Kind)
	}
}

func TestCompletionReported(t *testing.T) {
	s, w, cancel := watched(t)
	defer cancel()

	s.set(twi.StateMasterWrite, twi.StatusStart, 2)
	time.Sleep(2 * time.Millisecond) // let the watcher see it in flight
	s.set(twi.StateFree, twi.StatusWriteDataAck, 0)

	ev := waitEvent(t, w, time.Second)
	if ev.Kind != buswatch.KindCompleted {
		t.Fatalf("event = %v (want completed)", ev.Kind)
	}
	if ev.Err != errcode.OK || ev.Remaining != 0 {
		t.Fatalf("completion classified %v with %d left", ev.Err, ev.Remaining)
	}
}

func TestFailedCompletionClassified(t *testing.T) {
	for _, tc := range []struct {
		name   string
		state  twi.State
		status twi.Status
		left   int
		want   errcode.Code
	}{
		{"address refused", twi.StateFree, twi.StatusWriteAddrNak, 1, errcode.NoDevice},
		{"data refused mid-buffer", twi.StateFree, twi.StatusWriteDataNak, 2, errcode.Nak},
		{"final byte not acknowledged", twi.StateFree, twi.StatusWriteDataNak, 0, errcode.OK},
		{"arbitration lost", twi.StateError, twi.StatusArbLost, 1, errcode.ArbitrationLost},
		{"bus error", twi.StateFree, twi.StatusBusError, 1, errcode.BusError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, w, cancel := watched(t)
			defer cancel()

			s.set(twi.StateMasterWrite, twi.StatusStart, tc.left)
			time.Sleep(2 * time.Millisecond)
			s.set(tc.state, tc.status, tc.left)

			ev := waitEvent(t, w, time.Second)
			if ev.Kind != buswatch.KindCompleted || ev.Err != tc.want {
				t.Fatalf("event %v/%v (want completed/%v)", ev.Kind, ev.Err, tc.want)
			}
		})
	}
}

func TestQuietBusEmitsNothing(t *testing.T) {
	_, w, cancel := watched(t)
	defer cancel()

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event on idle bus: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}
