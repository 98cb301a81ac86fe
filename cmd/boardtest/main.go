//go:build rp2040

// cmd/boardtest: the bustest shell served over UART0 instead of stdin, for
// exercising the transaction state machine on a board. The bus is still the
// simulated one; the point is bring-up of the console plumbing and timing on
// real silicon.
package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"twicode-go/drivers/eeprom24"
	"twicode-go/drivers/twi"
	"twicode-go/drivers/twi/twitest"
	"twicode-go/services/console"
)

const maxLine = 128

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(1500 * time.Millisecond)
	println("boardtest: boot")

	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})

	hw := twitest.New()
	ctl := twi.New(hw)
	hw.Handler = ctl.HandleEvent

	bus := twi.NewBus(ctl, twi.BusConfig{
		Timeout: time.Second,
		Yield:   func() { hw.Flush() },
	})
	hw.Attach(eeprom24.AddressDefault, &twitest.Mem{BusyAfterWrite: 2})
	rom := eeprom24.New(bus, eeprom24.AddressDefault)
	if err := rom.Configure(eeprom24.Conf24C02); err != nil {
		println("boardtest: rom configure:", err.Error())
		return
	}

	c := console.New(bus, &rom)
	ctx := context.Background()

	reply := func(s string) {
		if s != "" {
			_, _ = u.Write([]byte(s))
			_, _ = u.Write([]byte("\r\n"))
		}
	}

	reply("boardtest ready (try: init, then help)")
	_, _ = u.Write([]byte("> "))

	line := make([]byte, 0, maxLine)
	buf := make([]byte, 64)
	for {
		n, err := u.RecvSomeContext(ctx, buf)
		if err != nil || n == 0 {
			continue
		}
		for _, b := range buf[:n] {
			switch b {
			case '\n':
				reply(c.Eval(string(line)))
				line = line[:0]
				_, _ = u.Write([]byte("> "))
			case '\r':
				// ignore
			default:
				if len(line) < maxLine {
					line = append(line, b)
				}
			}
		}
	}
}
