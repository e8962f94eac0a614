//go:build linux

package hal

import (
	"github.com/pkg/errors"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"envmon-go/errcode"
)

func init() {
	RegisterBuilder("linux", openLinux)
}

// openLinux opens the named I²C bus through periph ("" selects the first
// bus found) and configures the sensors on it.
func openLinux(p Params) (*Sensors, error) {
	if _, err := host.Init(); err != nil {
		return nil, errcode.New(errcode.Unsupported, "hal.linux", errors.Wrap(err, "host.Init()"))
	}
	bus, err := i2creg.Open(p.Platform.I2CBus)
	if err != nil {
		return nil, errcode.New(errcode.Unsupported, "hal.linux", errors.Wrapf(err, "i2creg.Open(%q)", p.Platform.I2CBus))
	}
	s, err := FromI2C(bus, p.Sensors)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	s.close = bus.Close
	return s, nil
}
