// Package console implements a line-oriented diagnostic shell over one twi
// controller: probe an address, fire raw writes and reads, inspect the
// descriptor, and poke an attached EEPROM. It is transport-agnostic; the
// demo commands feed it lines from stdin or a UART.
package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"twicode-go/drivers/eeprom24"
	"twicode-go/drivers/twi"
)

const helpText = `commands:
  init [cpuHz busHz]      program the bus bitrate (default 16MHz/100kHz)
  state | status | prog   inspect the transaction descriptor
  probe <addr>            zero-length write to test for a device
  write <addr> <hex>...   raw master write
  read <addr> <n>         raw master read of n bytes
  rom dump <off> <n>      read from the attached eeprom
  rom put <off> <hex>...  write to the attached eeprom
  help`

// Console evaluates one command line at a time.
type Console struct {
	bus *twi.Bus
	rom *eeprom24.Device // optional

	cpuHz, busHz uint32
}

// New builds a console over bus. rom may be nil if no EEPROM is attached.
func New(bus *twi.Bus, rom *eeprom24.Device) *Console {
	return &Console{bus: bus, rom: rom, cpuHz: 16_000_000, busHz: 100_000}
}

// Eval runs one line and returns the reply text. Errors come back as
// "err: <code>" lines rather than Go errors; the shell never aborts.
func (c *Console) Eval(line string) string {
	args, err := shlex.Split(line)
	if err != nil {
		return "err: unbalanced quoting"
	}
	if len(args) == 0 {
		return ""
	}

	switch args[0] {
	case "help":
		return helpText

	case "init":
		if len(args) == 3 {
			cpu, err1 := parseUint(args[1], 32)
			bus, err2 := parseUint(args[2], 32)
			if err1 != nil || err2 != nil {
				return "err: init expects two clock rates in Hz"
			}
			c.cpuHz, c.busHz = uint32(cpu), uint32(bus)
		} else if len(args) != 1 {
			return "err: usage: init [cpuHz busHz]"
		}
		if err := c.bus.Controller().Init(c.cpuHz, c.busHz); err != nil {
			return "err: " + err.Error()
		}
		return fmt.Sprintf("bus at %d Hz (cpu %d Hz)", c.busHz, c.cpuHz)

	case "state":
		return c.bus.Controller().State().String()

	case "status":
		return c.bus.Controller().Status().String()

	case "prog", "progress":
		return strconv.Itoa(c.bus.Controller().Progress())

	case "probe":
		if len(args) != 2 {
			return "err: usage: probe <addr>"
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return "err: " + err.Error()
		}
		if err := c.bus.Tx(addr, nil, nil); err != nil {
			return "err: " + err.Error()
		}
		return fmt.Sprintf("device at 0x%02x", addr)

	case "write":
		if len(args) < 3 {
			return "err: usage: write <addr> <hex>..."
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return "err: " + err.Error()
		}
		data, err := parseBytes(args[2:])
		if err != nil {
			return "err: " + err.Error()
		}
		if err := c.bus.Tx(addr, data, nil); err != nil {
			return "err: " + err.Error()
		}
		return fmt.Sprintf("wrote %d bytes", len(data))

	case "read":
		if len(args) != 3 {
			return "err: usage: read <addr> <n>"
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return "err: " + err.Error()
		}
		n, err := parseUint(args[2], 16)
		if err != nil || n == 0 || n > 64 {
			return "err: read length must be 1..64"
		}
		buf := make([]byte, n)
		if err := c.bus.Tx(addr, nil, buf); err != nil {
			return "err: " + err.Error()
		}
		return hexLine(buf)

	case "rom":
		return c.evalROM(args[1:])

	default:
		return "err: unknown command (try help)"
	}
}

func (c *Console) evalROM(args []string) string {
	if c.rom == nil {
		return "err: no eeprom attached"
	}
	if len(args) < 2 {
		return "err: usage: rom dump|put <off> ..."
	}
	off, err := parseUint(args[1], 32)
	if err != nil {
		return "err: bad offset"
	}

	switch args[0] {
	case "dump":
		if len(args) != 3 {
			return "err: usage: rom dump <off> <n>"
		}
		n, err := parseUint(args[2], 16)
		if err != nil || n == 0 || n > 64 {
			return "err: dump length must be 1..64"
		}
		buf := make([]byte, n)
		if err := c.rom.ReadAt(uint32(off), buf); err != nil {
			return "err: " + err.Error()
		}
		return hexLine(buf)

	case "put":
		if len(args) < 3 {
			return "err: usage: rom put <off> <hex>..."
		}
		data, err := parseBytes(args[2:])
		if err != nil {
			return "err: " + err.Error()
		}
		if err := c.rom.WriteAt(uint32(off), data); err != nil {
			return "err: " + err.Error()
		}
		return fmt.Sprintf("stored %d bytes at 0x%02x", len(data), off)

	default:
		return "err: usage: rom dump|put <off> ..."
	}
}

// parseUint accepts decimal or 0x-prefixed hex.
func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 0, bits)
}

func parseAddr(s string) (uint16, error) {
	v, err := parseUint(s, 16)
	if err != nil || v > 0x7F {
		return 0, fmt.Errorf("address must be 0..0x7f")
	}
	return uint16(v), nil
}

func parseBytes(args []string) ([]byte, error) {
	out := make([]byte, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad hex byte %q", a)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func hexLine(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}
