// Package eeprom24 provides a driver for 24-series serial EEPROMs with
// single-byte memory addressing (24C01..24C16 class parts). Larger parts in
// that family bank the high address bits into the device address; the driver
// follows suit.
//
// The driver works over any tinygo.org/x/drivers.I2C, including the
// interrupt-driven twi core through its blocking Bus adapter. Writes honour
// the device page size and acknowledge-poll the internal write cycle away
// before touching the next page.
package eeprom24

import (
	"time"

	"tinygo.org/x/drivers"

	"twicode-go/errcode"
	"twicode-go/x/mathx"
)

// Default 7-bit base address of the 24-series family (1010_000b).
const AddressDefault = 0x50

const maxPageSize = 32

// Config describes one part. All fields optional; zero values mean a 24C02.
type Config struct {
	Size     uint32 // total bytes, default 256
	PageSize uint32 // write page, power of two, default 8
	// WriteDelay spaces acknowledge polls during the write cycle.
	// Default 1 ms.
	WriteDelay time.Duration
	// AckPollTries bounds the polls before giving up. Default 10.
	AckPollTries int
}

// Conf24C02 is the classic 256-byte part.
var Conf24C02 = Config{Size: 256, PageSize: 8, WriteDelay: 1 * time.Millisecond}

// Device wraps an I2C connection to one EEPROM.
type Device struct {
	bus  drivers.I2C
	addr uint16

	cfg Config
	w   [1 + maxPageSize]byte // reuse buffer to avoid allocations
}

// New creates the device object without touching the bus.
func New(bus drivers.I2C, addr uint16) Device {
	return Device{bus: bus, addr: addr}
}

// Configure applies cfg with defaults. It does not probe the device.
func (d *Device) Configure(cfg Config) error {
	if cfg.Size == 0 {
		cfg.Size = 256
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 8
	}
	if cfg.WriteDelay <= 0 {
		cfg.WriteDelay = 1 * time.Millisecond
	}
	if cfg.AckPollTries <= 0 {
		cfg.AckPollTries = 10
	}
	if cfg.PageSize > maxPageSize || cfg.PageSize&(cfg.PageSize-1) != 0 {
		return errcode.InvalidParams
	}
	d.cfg = cfg
	return nil
}

// deviceAddr banks the high memory-address bits into the device address.
func (d *Device) deviceAddr(off uint32) uint16 {
	return d.addr + uint16(off>>8)
}

// ReadAt fills buf from the memory array starting at off: a pointer write
// followed by a repeated-start read.
func (d *Device) ReadAt(off uint32, buf []byte) error {
	if err := d.check(off, len(buf)); err != nil {
		return err
	}
	if len(buf) == 0 {
		return nil
	}
	d.w[0] = byte(off)
	return d.bus.Tx(d.deviceAddr(off), d.w[:1], buf)
}

// WriteAt stores data into the memory array starting at off, splitting on
// page boundaries and acknowledge-polling the write cycle between pages.
func (d *Device) WriteAt(off uint32, data []byte) error {
	if err := d.check(off, len(data)); err != nil {
		return err
	}
	for len(data) > 0 {
		n := mathx.Min(int(d.cfg.PageSize-off&(d.cfg.PageSize-1)), len(data))
		d.w[0] = byte(off)
		copy(d.w[1:], data[:n])
		if err := d.bus.Tx(d.deviceAddr(off), d.w[:1+n], nil); err != nil {
			return err
		}
		if err := d.waitWriteCycle(off); err != nil {
			return err
		}
		off += uint32(n)
		data = data[n:]
	}
	return nil
}

// waitWriteCycle acknowledge-polls until the device answers again.
func (d *Device) waitWriteCycle(off uint32) error {
	addr := d.deviceAddr(off)
	for i := 0; i < d.cfg.AckPollTries; i++ {
		err := d.bus.Tx(addr, nil, nil)
		if err == nil {
			return nil
		}
		if errcode.Of(err) != errcode.NoDevice {
			return err
		}
		time.Sleep(d.cfg.WriteDelay)
	}
	return errcode.Timeout
}

// check validates an offset/length pair against the array size. Configure
// must have been called.
func (d *Device) check(off uint32, n int) error {
	if d.cfg.Size == 0 {
		return errcode.NotInitialised
	}
	if n < 0 || off > d.cfg.Size || uint32(n) > d.cfg.Size-off {
		return errcode.InvalidParams
	}
	return nil
}
