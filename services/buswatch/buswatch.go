// Package buswatch watches a twi controller for stalled transactions. The
// core deliberately has no timeout of its own: a peer that never answers
// simply never re-arms the handler, and the descriptor sits in an
// in-progress state with frozen progress. This service is the higher-level
// detection the core's contract asks for: it samples State/Progress on a
// timer and reports stalls, recoveries, and completions on a bounded channel.
package buswatch

import (
	"context"
	"time"

	"twicode-go/drivers/twi"
	"twicode-go/errcode"
	"twicode-go/x/timex"
)

// Kind tags one observation.
type Kind uint8

const (
	// KindStalled: in progress, no byte moved for the stall window.
	KindStalled Kind = iota
	// KindRecovered: progress moved again after a stall was reported.
	KindRecovered
	// KindCompleted: the descriptor left the in-progress states.
	KindCompleted
)

func (k Kind) String() string {
	switch k {
	case KindStalled:
		return "stalled"
	case KindRecovered:
		return "recovered"
	default:
		return "completed"
	}
}

// Event is one observation of the watched controller.
type Event struct {
	Kind      Kind
	State     twi.State
	Status    twi.Status
	Remaining int          // bytes left when observed
	Err       errcode.Code // terminal classification for KindCompleted
	TSms      int64
}

// Config controls the watcher. All fields optional.
type Config struct {
	// Sample is the poll period. Default 1 ms.
	Sample time.Duration
	// Stall is how long progress may sit still before a stall is reported.
	// Default 50 ms.
	Stall time.Duration
	// QueueLen sizes the event channel. Default 8.
	QueueLen int
}

// Sampler is the read-only view the watcher needs. *twi.Controller
// satisfies it; on targets where the watcher runs concurrently with the
// interrupt handler, wrap the controller in whatever critical section the
// runtime provides for consistent multi-field reads.
type Sampler interface {
	State() twi.State
	Status() twi.Status
	Progress() int
}

// Watcher samples one controller. Create with New, then run Watch.
type Watcher struct {
	ctl Sampler
	cfg Config
	out chan Event
}

func New(ctl Sampler, cfg Config) *Watcher {
	if cfg.Sample <= 0 {
		cfg.Sample = time.Millisecond
	}
	if cfg.Stall <= 0 {
		cfg.Stall = 50 * time.Millisecond
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 8
	}
	return &Watcher{ctl: ctl, cfg: cfg, out: make(chan Event, cfg.QueueLen)}
}

// Events is the observation stream. Events are dropped, not blocked on, when
// the consumer falls behind.
func (w *Watcher) Events() <-chan Event { return w.out }

// Watch samples the controller until ctx is cancelled. One event is emitted
// per transition; quiet polls emit nothing.
func (w *Watcher) Watch(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Sample)
	defer ticker.Stop()

	var (
		inFlight bool
		stalled  bool
		lastLeft int
		stillFor time.Duration
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st := w.ctl.State()
		left := w.ctl.Progress()

		busy := st == twi.StateMasterWrite || st == twi.StateMasterRead
		switch {
		case busy && !inFlight:
			inFlight = true
			stalled = false
			lastLeft = left
			stillFor = 0

		case busy:
			if left != lastLeft {
				lastLeft = left
				stillFor = 0
				if stalled {
					stalled = false
					w.emit(Event{Kind: KindRecovered, State: st, Status: w.ctl.Status(), Remaining: left})
				}
				continue
			}
			stillFor += w.cfg.Sample
			if !stalled && stillFor >= w.cfg.Stall {
				stalled = true
				w.emit(Event{Kind: KindStalled, State: st, Status: w.ctl.Status(), Remaining: left})
			}

		case inFlight:
			inFlight = false
			stalled = false
			w.emit(Event{
				Kind:      KindCompleted,
				State:     st,
				Status:    w.ctl.Status(),
				Remaining: left,
				Err:       classify(st, w.ctl.Status(), left),
			})
		}
	}
}

func (w *Watcher) emit(ev Event) {
	ev.TSms = timex.NowMs()
	select {
	case w.out <- ev:
	default:
		// drop if consumer is slow
	}
}

// classify maps a terminal state/status/progress triple to an error code,
// the same reading a caller would do by hand.
func classify(st twi.State, status twi.Status, left int) errcode.Code {
	if st == twi.StateError {
		if status == twi.StatusArbLost {
			return errcode.ArbitrationLost
		}
		return errcode.BusError
	}
	switch status {
	case twi.StatusWriteAddrNak, twi.StatusReadAddrNak:
		return errcode.NoDevice
	case twi.StatusWriteDataNak:
		if left != 0 {
			return errcode.Nak
		}
	case twi.StatusBusError:
		return errcode.BusError
	}
	return errcode.OK
}
