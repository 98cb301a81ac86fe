// cmd/bustest: interactive shell over a simulated bus with an EEPROM
// attached at the default address. Useful for exploring the transaction
// state machine from a host without hardware.
package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"twicode-go/drivers/eeprom24"
	"twicode-go/drivers/twi"
	"twicode-go/drivers/twi/twitest"
	"twicode-go/services/console"
)

func main() {
	hw := twitest.New()
	ctl := twi.New(hw)
	hw.Handler = ctl.HandleEvent

	bus := twi.NewBus(ctl, twi.BusConfig{
		Timeout: time.Second,
		Yield:   func() { hw.Flush() },
	})

	// One EEPROM with a short simulated write cycle, so acknowledge
	// polling is visible in the traces.
	hw.Attach(eeprom24.AddressDefault, &twitest.Mem{BusyAfterWrite: 2})
	rom := eeprom24.New(bus, eeprom24.AddressDefault)
	cfg := eeprom24.Conf24C02
	cfg.WriteDelay = 100 * time.Microsecond
	if err := rom.Configure(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "rom configure:", err)
		os.Exit(1)
	}

	c := console.New(bus, &rom)
	fmt.Println("bustest: simulated bus, eeprom at 0x50 (try: init, then help)")

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			fmt.Println()
			return
		}
		if out := c.Eval(sc.Text()); out != "" {
			fmt.Println(out)
		}
	}
}
