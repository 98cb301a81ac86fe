// Package twitest provides a simulated bus controller and slave devices for
// exercising the twi core without hardware. The Hardware type implements
// twi.Regs: control-register writes schedule the next bus event exactly as
// the real engine would, and Flush pumps pending events through the
// registered handler. Every control write is also classified into a semantic
// op trace so tests can assert on protocol decisions (stop driven or
// withheld, acknowledge armed or withheld) instead of raw register values.
package twitest

import "twicode-go/drivers/twi"

// OpKind classifies one control-register write.
type OpKind uint8

const (
	// OpStart is a start or repeated-start request. Data is 1 for a
	// repeated start.
	OpStart OpKind = iota
	// OpAddr is the address+direction byte being shifted out.
	OpAddr
	// OpWrite is a data byte being shifted out.
	OpWrite
	// OpArmAck arms the receiver with the acknowledge bit set.
	OpArmAck
	// OpArmNak arms the receiver with the acknowledge bit clear.
	OpArmNak
	// OpStop drives a stop condition, releasing the bus.
	OpStop
	// OpHold disables the interrupt with the event flag still set,
	// holding the bus for a follow-up transaction.
	OpHold
	// OpIntOff disables the interrupt without a stop (error paths).
	OpIntOff
)

func (k OpKind) String() string {
	switch k {
	case OpStart:
		return "start"
	case OpAddr:
		return "addr"
	case OpWrite:
		return "write"
	case OpArmAck:
		return "arm_ack"
	case OpArmNak:
		return "arm_nak"
	case OpStop:
		return "stop"
	case OpHold:
		return "hold"
	default:
		return "int_off"
	}
}

// Op is one entry of the semantic trace.
type Op struct {
	Kind OpKind
	Data byte // address or data byte for OpAddr/OpWrite, received byte for arms
}

// Slave models one device on the simulated bus.
type Slave interface {
	// Select is the address phase. Returning false not-acknowledges it.
	Select(read bool) bool
	// Write receives one master->slave byte; false not-acknowledges it.
	Write(b byte) bool
	// Read supplies one slave->master byte. last reports that the master
	// will withhold its acknowledge.
	Read(last bool) byte
	// Stop is called when the master releases the bus.
	Stop()
}

// internal bus phase
type phase uint8

const (
	phaseIdle phase = iota
	// phaseStart: start requested, next continue-write carries the address.
	phaseStart
	// phaseData: addressed, transferring bytes.
	phaseData
)

// Hardware simulates the controller-side bus engine.
type Hardware struct {
	// Handler is the interrupt body, normally Controller.HandleEvent.
	Handler func()

	// Trace is the semantic op log. Tests may reslice it between phases.
	Trace []Op

	slaves map[uint8]Slave

	bitrate uint8
	data    byte
	status  twi.Status

	pending bool
	next    twi.Status

	busHeld bool
	ph      phase
	active  Slave
	reading bool

	failArb bool
	failBus bool
}

// New returns an idle simulated controller with no slaves attached.
func New() *Hardware {
	return &Hardware{slaves: map[uint8]Slave{}, status: twi.StatusIdle}
}

// Attach puts a slave on the bus at the given 7-bit address.
func (h *Hardware) Attach(addr uint8, s Slave) { h.slaves[addr&0x7F] = s }

// InjectArbLost makes the next scheduled event report arbitration loss.
func (h *Hardware) InjectArbLost() { h.failArb = true }

// InjectBusError makes the next scheduled event report a bus error.
func (h *Hardware) InjectBusError() { h.failBus = true }

// Bitrate returns the last divisor programmed via SetBitrate.
func (h *Hardware) Bitrate() uint8 { return h.bitrate }

// ---- twi.Regs ----

var _ twi.Regs = (*Hardware)(nil)

func (h *Hardware) SetBitrate(div uint8)   { h.bitrate = div }
func (h *Hardware) WriteData(b byte)       { h.data = b }
func (h *Hardware) ReadData() byte         { return h.data }
func (h *Hardware) ReadStatus() twi.Status { return h.status }

func (h *Hardware) WriteControl(c twi.Control) {
	switch {
	case c&twi.CtrlStop != 0:
		h.Trace = append(h.Trace, Op{Kind: OpStop})
		if h.active != nil {
			h.active.Stop()
		}
		h.active = nil
		h.busHeld = false
		h.ph = phaseIdle
		h.pending = false
		h.status = twi.StatusIdle

	case c&twi.CtrlStart != 0:
		if h.busHeld {
			// Data=1 marks a repeated start in the trace.
			h.Trace = append(h.Trace, Op{Kind: OpStart, Data: 1})
			h.schedule(twi.StatusRepeatedStart)
		} else {
			h.Trace = append(h.Trace, Op{Kind: OpStart})
			h.schedule(twi.StatusStart)
		}
		h.busHeld = true
		h.ph = phaseStart

	case c&twi.CtrlIntEnable == 0:
		// Interrupt disabled without a stop: transaction over from the
		// engine's point of view. With the event flag left set the bus
		// stays held; with it cleared the engine just goes quiet.
		h.pending = false
		if c == twi.CtrlEnable {
			h.Trace = append(h.Trace, Op{Kind: OpHold})
		} else {
			h.Trace = append(h.Trace, Op{Kind: OpIntOff})
		}

	default:
		h.continueTransfer(c)
	}
}

// continueTransfer handles a continue-write (IntClear|Enable|IntEnable,
// optionally Ack): address shift-out, data shift-out, or receiver arming.
func (h *Hardware) continueTransfer(c twi.Control) {
	switch h.ph {
	case phaseStart:
		// Data register holds address<<1 | direction.
		addr := h.data >> 1
		h.reading = h.data&0x01 != 0
		h.Trace = append(h.Trace, Op{Kind: OpAddr, Data: h.data})
		h.ph = phaseData
		h.active = h.slaves[addr]

		ok := h.active != nil && h.active.Select(h.reading)
		switch {
		case h.reading && ok:
			h.schedule(twi.StatusReadAddrAck)
		case h.reading:
			h.schedule(twi.StatusReadAddrNak)
		case ok:
			h.schedule(twi.StatusWriteAddrAck)
		default:
			h.schedule(twi.StatusWriteAddrNak)
		}

	case phaseData:
		if h.reading {
			ack := c&twi.CtrlAck != 0
			if ack {
				h.Trace = append(h.Trace, Op{Kind: OpArmAck})
			} else {
				h.Trace = append(h.Trace, Op{Kind: OpArmNak})
			}
			if h.active != nil {
				h.data = h.active.Read(!ack)
			}
			if ack {
				h.schedule(twi.StatusReadDataAck)
			} else {
				h.schedule(twi.StatusReadDataNak)
			}
		} else {
			h.Trace = append(h.Trace, Op{Kind: OpWrite, Data: h.data})
			if h.active != nil && h.active.Write(h.data) {
				h.schedule(twi.StatusWriteDataAck)
			} else {
				h.schedule(twi.StatusWriteDataNak)
			}
		}

	default:
		// Continue-write on an idle bus: the engine ignores it.
	}
}

// schedule queues the next event, applying any injected fault first.
func (h *Hardware) schedule(s twi.Status) {
	if h.failBus {
		h.failBus = false
		s = twi.StatusBusError
	} else if h.failArb {
		h.failArb = false
		s = twi.StatusArbLost
		h.busHeld = false
		h.ph = phaseIdle
	}
	h.next = s
	h.pending = true
}

// Step delivers one pending event to the handler. It reports whether an
// event was delivered.
func (h *Hardware) Step() bool {
	if !h.pending || h.Handler == nil {
		return false
	}
	h.pending = false
	h.status = h.next
	h.Handler()
	return true
}

// Flush delivers pending events until the engine goes quiet and returns the
// number delivered. The cap guards against a handler that re-arms forever.
func (h *Hardware) Flush() int {
	n := 0
	for n < 4096 && h.Step() {
		n++
	}
	return n
}
