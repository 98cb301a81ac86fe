// Package uart drives a byte-wide serial transmitter/receiver through a
// logical register contract. Two transmit disciplines are offered, matching
// the hardware's:
//
//   - manual: the caller polls Ready and sends one byte at a time;
//   - auto: Send arms an interrupt-driven string send and HandleTxEvent,
//     invoked once per transmit-complete interrupt, feeds the next byte.
//
// As with the twi core, the caller-supplied buffer must stay valid and
// unmoved until SendProgress reaches zero, and the runtime must keep
// HandleTxEvent/HandleRxEvent mutually excluded with the other methods.
//
// Always 8-bit data, no parity or framing-error handling; receivers needing
// integrity should layer a checksum and request a resend.
package uart

import "twicode-go/errcode"

// Mode selects how a direction is operated.
type Mode uint8

const (
	ModeDisabled Mode = iota
	// ModeManual is polled, one byte at a time.
	ModeManual
	// ModeAuto is interrupt-driven, a buffer at a time.
	ModeAuto
)

// Regs is the logical register contract of the serial hardware.
type Regs interface {
	SetBaudDivisor(div uint16)
	SetDoubleSpeed(on bool)
	SetStopBits2(on bool)
	EnableTx(mode Mode) // ModeAuto also enables the transmit-complete interrupt
	EnableRx(mode Mode) // ModeAuto also enables the receive-complete interrupt
	WriteData(b byte)
	ReadData() byte
	TxEmpty() bool   // transmit data register ready for the next byte
	RxPending() bool // unread byte waiting in the receive register
}

// Config for Configure. CPUHz and Baud are required.
type Config struct {
	CPUHz       uint32
	Baud        uint32
	DoubleSpeed bool // halve the divisor clock for higher rates
	StopBits2   bool
	TxMode      Mode
	RxMode      Mode
}

// Port is one serial port. Do not copy after first use.
type Port struct {
	regs Regs
	cfg  Config

	tx    []byte
	txPos int

	rx    []byte
	rxPos int
}

// New returns an unconfigured port over the given registers.
func New(regs Regs) *Port {
	return &Port{regs: regs}
}

// Configure programs the baud divisor
//
//	divisor = cpuHz/16/baud - 1   (cpuHz/8/baud - 1 in double-speed mode)
//
// and enables the requested directions.
func (p *Port) Configure(cfg Config) error {
	if cfg.Baud == 0 || cfg.CPUHz == 0 {
		return errcode.InvalidParams
	}
	scale := uint32(16)
	if cfg.DoubleSpeed {
		scale = 8
	}
	div := cfg.CPUHz / scale / cfg.Baud
	if div == 0 || div-1 > 0x0FFF { // 12-bit divisor register
		return errcode.InvalidParams
	}
	p.cfg = cfg
	p.regs.SetBaudDivisor(uint16(div - 1))
	p.regs.SetDoubleSpeed(cfg.DoubleSpeed)
	p.regs.SetStopBits2(cfg.StopBits2)
	p.regs.EnableTx(cfg.TxMode)
	p.regs.EnableRx(cfg.RxMode)
	return nil
}

// ---- transmit, manual mode ----

// Ready reports whether the transmit register can take another byte.
func (p *Port) Ready() bool { return p.regs.TxEmpty() }

// SendByte transmits one byte. The caller is expected to have seen Ready;
// a full transmit register is refused rather than overwritten.
func (p *Port) SendByte(b byte) error {
	if p.cfg.TxMode == ModeDisabled {
		return errcode.Unsupported
	}
	if !p.regs.TxEmpty() {
		return errcode.Busy
	}
	p.regs.WriteData(b)
	return nil
}

// ---- transmit, auto mode ----

// Send arms an interrupt-driven send of buf and returns immediately. The
// first byte is written here; each transmit-complete interrupt feeds the
// next via HandleTxEvent. Completion is observed through SendProgress.
func (p *Port) Send(buf []byte) error {
	if p.cfg.TxMode != ModeAuto {
		return errcode.Unsupported
	}
	if p.SendProgress() != 0 {
		return errcode.Busy
	}
	if len(buf) == 0 {
		return nil
	}
	if !p.regs.TxEmpty() {
		return errcode.Busy
	}
	p.tx = buf
	p.txPos = 0
	p.regs.WriteData(buf[0])
	return nil
}

// HandleTxEvent is the transmit-complete interrupt body: it advances past
// the byte that just finished and shifts out the next one, if any. Returns
// the number of bytes still to send.
func (p *Port) HandleTxEvent() int {
	if p.tx == nil {
		return 0
	}
	p.txPos++
	if p.txPos < len(p.tx) {
		p.regs.WriteData(p.tx[p.txPos])
		return len(p.tx) - p.txPos
	}
	p.tx = nil
	p.txPos = 0
	return 0
}

// SendProgress returns the number of bytes an armed Send has yet to finish.
func (p *Port) SendProgress() int {
	if p.tx == nil {
		return 0
	}
	return len(p.tx) - p.txPos
}

// ---- receive ----

// ReceiveReady reports whether an unread byte is waiting.
func (p *Port) ReceiveReady() bool { return p.regs.RxPending() }

// ReceiveByte fetches the waiting byte (manual mode).
func (p *Port) ReceiveByte() byte { return p.regs.ReadData() }

// SetReceiveBuffer assigns the buffer filled by HandleRxEvent and resets the
// fill position. The buffer must outlive its use by the interrupt handler.
func (p *Port) SetReceiveBuffer(buf []byte) {
	p.rx = buf
	p.rxPos = 0
}

// HandleRxEvent is the receive-complete interrupt body: it stores the
// received byte into the assigned buffer. A byte arriving with no buffer
// space left is read and dropped so the hardware flag clears.
func (p *Port) HandleRxEvent() {
	b := p.regs.ReadData()
	if p.rxPos < len(p.rx) {
		p.rx[p.rxPos] = b
		p.rxPos++
	}
}

// Received returns how many bytes HandleRxEvent has stored since the buffer
// was last set.
func (p *Port) Received() int { return p.rxPos }
