package twi

// HandleEvent is the interrupt handler body. The runtime invokes it once per
// hardware event; it reads the status code, advances the descriptor, and
// writes the control value that tells the hardware what to do next. It runs
// to completion in O(1) register operations and leaves the hardware in a
// well-defined state on every path.
func (c *Controller) HandleEvent() {
	status := c.regs.ReadStatus() & statusMask
	c.lastStatus = status

	switch status {
	case StatusStart, StatusRepeatedStart:
		// Bus claimed: transmit address + direction.
		c.regs.WriteData(c.target)
		c.regs.WriteControl(CtrlIntClear | CtrlEnable | CtrlIntEnable)

	case StatusWriteAddrAck, StatusWriteDataAck:
		if c.pos != len(c.buf) {
			c.regs.WriteData(c.buf[c.pos])
			c.pos++
			c.regs.WriteControl(CtrlIntClear | CtrlEnable | CtrlIntEnable)
		} else {
			c.complete()
		}

	case StatusWriteAddrNak, StatusWriteDataNak:
		// Peer refused the byte. Terminate on the shared completion path;
		// the caller tells success from failure via Status and Progress,
		// not a separate flag.
		c.complete()

	case StatusReadAddrAck:
		c.armReceive()

	case StatusReadAddrNak:
		// Peer refused addressing: release the bus.
		c.state = StateFree
		c.regs.WriteControl(CtrlIntClear | CtrlStop | CtrlEnable)

	case StatusReadDataAck:
		c.buf[c.pos] = c.regs.ReadData()
		c.pos++
		c.armReceive()

	case StatusReadDataNak:
		// Final byte: we signalled not-acknowledge on reception.
		c.buf[c.pos] = c.regs.ReadData()
		c.pos++
		c.complete()

	case StatusBusError:
		// Illegal bus condition. A stop here does not go on the wire; it
		// resets the controller to a known idle state. Recoverable, so the
		// descriptor returns to free.
		c.state = StateFree
		c.regs.WriteControl(CtrlIntClear | CtrlStop | CtrlEnable)

	case StatusArbLost:
		// Another master owns the bus now; a stop is not ours to send.
		// Surfaced as a distinct terminal state so the caller can decide
		// whether to re-issue the whole transaction.
		c.state = StateError
		c.regs.WriteControl(CtrlIntClear | CtrlEnable)

	default:
		c.state = StateError
		c.regs.WriteControl(CtrlIntClear | CtrlEnable)
	}
}

// armReceive re-arms the receiver for the next byte. The last expected byte
// is received with acknowledge withheld so the peer knows to stop sending;
// the lookahead repeats on every reception.
func (c *Controller) armReceive() {
	ctrl := CtrlIntClear | CtrlEnable | CtrlIntEnable
	if c.pos != len(c.buf)-1 {
		ctrl |= CtrlAck
	}
	c.regs.WriteControl(ctrl)
}

// complete is the shared terminal path for write completion (acknowledged or
// refused) and final-byte reads. With FlagHoldBus the pending event flag is
// left set so the hardware keeps the bus; otherwise a stop releases it.
// Either way the interrupt is disabled, ending the transaction.
func (c *Controller) complete() {
	c.state = StateFree
	if c.flags&FlagHoldBus != 0 {
		c.regs.WriteControl(CtrlEnable)
	} else {
		c.regs.WriteControl(CtrlIntClear | CtrlStop | CtrlEnable)
	}
}
