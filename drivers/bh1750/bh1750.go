// Package bh1750 provides a driver for the BH1750 ambient light sensor.
package bh1750

import (
	"time"

	"tinygo.org/x/drivers"
)

// I2C addresses (ADDR pin low / high).
const (
	Address     = 0x23
	AddressHigh = 0x5C
)

const (
	cmdPowerOn  = 0x01
	cmdReset    = 0x07
	cmdContHRes = 0x10 // continuous, 1 lx resolution, ~120 ms

	// Datasheet measurement accuracy factor.
	countsPerLux = 1.2
)

// Device wraps an I2C connection to a BH1750.
type Device struct {
	bus  drivers.I2C
	addr uint16
	buf  [2]byte
}

// New creates the Device object; a zero addr selects Address.
func New(bus drivers.I2C, addr uint16) *Device {
	if addr == 0 {
		addr = Address
	}
	return &Device{bus: bus, addr: addr}
}

func (d *Device) Address() uint16 { return d.addr }

// Configure powers the sensor on and starts continuous high-resolution mode.
// The first valid reading is available after ~180 ms.
func (d *Device) Configure() error {
	if err := d.bus.Tx(d.addr, []byte{cmdPowerOn}, nil); err != nil {
		return err
	}
	if err := d.bus.Tx(d.addr, []byte{cmdReset}, nil); err != nil {
		return err
	}
	if err := d.bus.Tx(d.addr, []byte{cmdContHRes}, nil); err != nil {
		return err
	}
	time.Sleep(180 * time.Millisecond)
	return nil
}

// Raw returns the last converted 16-bit count.
func (d *Device) Raw() (uint16, error) {
	if err := d.bus.Tx(d.addr, nil, d.buf[:]); err != nil {
		return 0, err
	}
	return uint16(d.buf[0])<<8 | uint16(d.buf[1]), nil
}

// Illuminance returns the current reading in lux.
func (d *Device) Illuminance() (float64, error) {
	raw, err := d.Raw()
	if err != nil {
		return 0, err
	}
	return float64(raw) / countsPerLux, nil
}
