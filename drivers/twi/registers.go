// Package twi drives a memory-mapped two-wire (I2C/TWI) bus controller in
// master mode. Whole multi-byte transactions are completed by reacting to
// hardware events: the caller arms a write or read with StartWrite/StartRead
// and returns to other work, and the surrounding runtime invokes HandleEvent
// once per hardware interrupt until the transaction reaches a terminal state.
//
// HandleEvent never blocks, sleeps, or retries by waiting; every branch is a
// fixed number of register operations. The runtime must guarantee mutual
// exclusion between HandleEvent and the Start*/accessor calls (on real
// hardware this is the interrupt discipline; callers needing a multi-field
// consistent read must bracket it in a critical section of their own).
//
// One transaction is in flight at a time and the caller-supplied buffer must
// stay valid and unmoved until State returns to StateFree.
package twi

// Regs is the register interface of the bus controller. Implementations map
// these onto the four logical hardware registers: bitrate divisor, data,
// control, and status. No retries, no validation; the core trusts these to
// reflect true hardware state synchronously.
type Regs interface {
	SetBitrate(div uint8)
	WriteData(b byte)
	ReadData() byte
	WriteControl(c Control)
	ReadStatus() Status
}

// Control is the control-register value written after every event to tell
// the hardware what to do next. Bit positions follow the hardware layout.
type Control uint8

const (
	CtrlIntEnable Control = 1 << 0 // raise an interrupt on the next event
	CtrlEnable    Control = 1 << 2 // keep the controller attached to the bus
	CtrlStop      Control = 1 << 4 // transmit a stop condition, releasing the bus
	CtrlStart     Control = 1 << 5 // transmit a (repeated) start condition
	CtrlAck       Control = 1 << 6 // acknowledge the next received byte
	CtrlIntClear  Control = 1 << 7 // clear the pending event flag, resuming the bus
)

// Status is the event code the hardware reports after each bus event.
// The low three bits are prescaler bits and always masked off.
type Status uint8

const (
	StatusBusError      Status = 0x00 // illegal start/stop on the wire
	StatusStart         Status = 0x08
	StatusRepeatedStart Status = 0x10
	StatusWriteAddrAck  Status = 0x18
	StatusWriteAddrNak  Status = 0x20
	StatusWriteDataAck  Status = 0x28
	StatusWriteDataNak  Status = 0x30
	StatusArbLost       Status = 0x38
	StatusReadAddrAck   Status = 0x40
	StatusReadAddrNak   Status = 0x48
	StatusReadDataAck   Status = 0x50
	StatusReadDataNak   Status = 0x58
	StatusIdle          Status = 0xF8 // no relevant state; bus free
)

// statusMask strips the prescaler bits from a raw status read.
const statusMask Status = 0xF8

func (s Status) String() string {
	switch s {
	case StatusBusError:
		return "bus_error"
	case StatusStart:
		return "start"
	case StatusRepeatedStart:
		return "repeated_start"
	case StatusWriteAddrAck:
		return "w_addr_ack"
	case StatusWriteAddrNak:
		return "w_addr_nak"
	case StatusWriteDataAck:
		return "w_data_ack"
	case StatusWriteDataNak:
		return "w_data_nak"
	case StatusArbLost:
		return "arb_lost"
	case StatusReadAddrAck:
		return "r_addr_ack"
	case StatusReadAddrNak:
		return "r_addr_nak"
	case StatusReadDataAck:
		return "r_data_ack"
	case StatusReadDataNak:
		return "r_data_nak"
	case StatusIdle:
		return "idle"
	default:
		return "unknown"
	}
}
