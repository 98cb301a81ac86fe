package twi

import "twicode-go/errcode"

// State is the descriptor's lifecycle tag. It moves to one of the InProgress
// values in StartWrite/StartRead and back to StateFree (or StateError) only
// from inside HandleEvent.
type State int8

const (
	// StateUnknown is the state before Init.
	StateUnknown State = iota
	// StateFree means idle, ready for a new transaction.
	StateFree
	StateMasterWrite
	StateMasterRead
	// StateError means arbitration was lost or the hardware reported an
	// undecodable status.
	StateError
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateMasterWrite:
		return "master_write"
	case StateMasterRead:
		return "master_read"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Flags select per-transaction behaviour.
type Flags uint8

const (
	// FlagHoldBus skips the stop condition on completion, keeping bus
	// ownership for a follow-up transaction (e.g. write-then-read without
	// risking arbitration to another master).
	FlagHoldBus Flags = 1 << 0
	// FlagRetry is reserved for a caller-level retry policy; the core never
	// retries on its own.
	FlagRetry Flags = 1 << 1
)

const readBit = 0x01 // direction bit appended to the shifted 7-bit address

// Controller owns the transaction descriptor for one bus controller. The
// descriptor is written by StartWrite/StartRead when idle and by HandleEvent
// while a transaction is in flight; callers observe it only through the
// State/Status/Progress accessors.
type Controller struct {
	regs Regs

	state      State
	lastStatus Status
	flags      Flags
	target     byte // addr<<1 | direction

	// Cursor over the caller-owned buffer. 0 <= pos <= len(buf) always;
	// pos == len(buf) marks byte-transfer completion.
	buf []byte
	pos int
}

// New returns a Controller over the given register interface. The descriptor
// starts in StateUnknown; call Init before any transaction.
func New(regs Regs) *Controller {
	return &Controller{regs: regs, state: StateUnknown, lastStatus: StatusIdle}
}

// Init programs the bus bitrate from the classic divisor relation
//
//	divisor = (cpuHz/busHz - 16) / 2
//
// and marks the controller ready. Re-initialising while a transaction is in
// flight is rejected so the hardware is never reprogrammed mid-transfer.
func (c *Controller) Init(cpuHz, busHz uint32) error {
	if c.state == StateMasterWrite || c.state == StateMasterRead {
		return errcode.Busy
	}
	if busHz == 0 || cpuHz/busHz < 16 {
		return errcode.InvalidParams
	}
	div := (cpuHz/busHz - 16) / 2
	if div > 0xFF {
		return errcode.InvalidParams
	}
	c.regs.SetBitrate(uint8(div))
	c.state = StateFree
	return nil
}

// StartWrite arms a master-transmit transaction of len(buf) bytes to the
// 7-bit address addr and returns immediately. A zero-length buf addresses the
// device and completes on the address acknowledgement (useful for probing).
// The outcome is observed via State/Status/Progress.
func (c *Controller) StartWrite(addr uint8, flags Flags, buf []byte) error {
	return c.start(addr, flags, buf, false)
}

// StartRead arms a master-receive transaction filling buf. len(buf) must be
// at least 1: the final-byte not-acknowledge lookahead compares against the
// position before the last byte, which does not exist for an empty buffer.
func (c *Controller) StartRead(addr uint8, flags Flags, buf []byte) error {
	if len(buf) == 0 {
		return errcode.InvalidParams
	}
	return c.start(addr, flags, buf, true)
}

func (c *Controller) start(addr uint8, flags Flags, buf []byte, read bool) error {
	switch c.state {
	case StateFree:
	case StateMasterWrite, StateMasterRead:
		// Never stomp an in-flight transaction; descriptor unchanged.
		return errcode.Busy
	default:
		return errcode.NotInitialised
	}
	if addr > 0x7F {
		return errcode.InvalidParams
	}

	c.flags = flags
	c.target = addr << 1
	if read {
		c.target |= readBit
		c.state = StateMasterRead
	} else {
		c.state = StateMasterWrite
	}
	c.buf = buf
	c.pos = 0

	// Request a start condition; the rest happens in HandleEvent.
	c.regs.WriteControl(CtrlIntClear | CtrlStart | CtrlEnable | CtrlIntEnable)
	return nil
}

// Status returns the last raw hardware status code observed. It is retained
// after completion for diagnostics: a transaction that ended early leaves the
// not-acknowledge or error code here.
func (c *Controller) Status() Status { return c.lastStatus }

// State returns the current descriptor state.
func (c *Controller) State() State { return c.state }

// Progress returns the number of bytes left to transfer. A non-zero value
// while State is StateFree means the previous transaction ended early;
// inspect Status for the cause.
func (c *Controller) Progress() int { return len(c.buf) - c.pos }
