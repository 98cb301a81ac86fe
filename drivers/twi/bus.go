package twi

import (
	"time"

	"tinygo.org/x/drivers"

	"twicode-go/errcode"
)

// BusConfig controls the blocking adapter. All fields are optional.
type BusConfig struct {
	// Timeout bounds progress stagnation, not total transfer time: the
	// deadline re-arms every time Progress moves. Default 100 ms.
	Timeout time.Duration
	// Yield is called between completion polls. Defaults to a short sleep;
	// tests use it to pump a simulated engine.
	Yield func()
}

// Bus adapts a Controller to the blocking tinygo.org/x/drivers.I2C interface
// so ordinary chip drivers can run over the interrupt-driven core. The core
// has no completion primitive of its own; Bus supplies the higher-level
// polling and timeout detection.
//
// A Tx that times out leaves the controller armed and waiting for an event
// that may never come; the next Tx then fails with Busy until the bus is
// re-initialised. That mirrors the hardware reality of a wedged peer.
type Bus struct {
	ctl *Controller
	cfg BusConfig
}

var _ drivers.I2C = (*Bus)(nil)

// NewBus wraps ctl. The controller must already be initialised.
func NewBus(ctl *Controller, cfg BusConfig) *Bus {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.Yield == nil {
		cfg.Yield = func() { time.Sleep(50 * time.Microsecond) }
	}
	return &Bus{ctl: ctl, cfg: cfg}
}

// Controller returns the wrapped controller for direct observation.
func (b *Bus) Controller() *Controller { return b.ctl }

// Tx performs a write followed by a read, holding the bus between the two
// phases so no other master can slip in. Passing a nil w or r skips that
// phase; passing both nil probes the address with a zero-length write.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return errcode.InvalidParams
	}
	a := uint8(addr)

	if len(w) > 0 || len(r) == 0 {
		var f Flags
		if len(r) > 0 {
			f = FlagHoldBus
		}
		if err := b.ctl.StartWrite(a, f, w); err != nil {
			return err
		}
		if err := b.wait(); err != nil {
			return err
		}
		if err := b.outcome(); err != nil {
			return err
		}
	}

	if len(r) > 0 {
		if err := b.ctl.StartRead(a, 0, r); err != nil {
			return err
		}
		if err := b.wait(); err != nil {
			return err
		}
		return b.outcome()
	}
	return nil
}

// wait polls until the descriptor leaves the in-progress states, re-arming
// the deadline whenever the transfer makes progress.
func (b *Bus) wait() error {
	deadline := time.Now().Add(b.cfg.Timeout)
	last := b.ctl.Progress()
	for {
		switch b.ctl.State() {
		case StateMasterWrite, StateMasterRead:
		default:
			return nil
		}
		if p := b.ctl.Progress(); p != last {
			last = p
			deadline = time.Now().Add(b.cfg.Timeout)
		}
		if time.Now().After(deadline) {
			return errcode.Timeout
		}
		b.cfg.Yield()
	}
}

// outcome maps the terminal state/status pair to an error code.
func (b *Bus) outcome() error {
	if b.ctl.State() == StateError {
		if b.ctl.Status() == StatusArbLost {
			return errcode.ArbitrationLost
		}
		return errcode.BusError
	}
	switch b.ctl.Status() {
	case StatusWriteAddrNak, StatusReadAddrNak:
		return errcode.NoDevice
	case StatusWriteDataNak:
		// A not-acknowledge of the final byte still transferred everything;
		// only a refusal mid-buffer is an error.
		if b.ctl.Progress() != 0 {
			return errcode.Nak
		}
	case StatusBusError:
		return errcode.BusError
	}
	return nil
}
