// Package aht20 provides a driver for the AHT20 temperature/humidity sensor.
// It exposes a two-phase measurement API:
//
//	d.Trigger()              // start a measurement (fast)
//	err := d.Collect(&s)     // fetch when ready; returns ErrNotReady while busy
//
// Read() performs trigger + bounded polling until ready.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
package aht20

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// I2C address.
const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08

	fullScale = 1 << 20
)

var (
	ErrTimeout  = errors.New("aht20: timeout")
	ErrNotReady = errors.New("aht20: not ready")
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x38 if zero.
	Address uint16
	// PollInterval is used by Read() between Collect() attempts. Default 15 ms.
	PollInterval time.Duration
	// CollectTimeout bounds the total wait in Read(). Default 250 ms.
	CollectTimeout time.Duration
	// TriggerHint is the nominal conversion time Read() waits before the
	// first Collect. Default 80 ms.
	TriggerHint time.Duration
}

func (c *Config) applyDefaults() {
	if c.Address == 0 {
		c.Address = Address
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Millisecond
	}
	if c.CollectTimeout <= 0 {
		c.CollectTimeout = 250 * time.Millisecond
	}
	if c.TriggerHint <= 0 {
		c.TriggerHint = 80 * time.Millisecond
	}
}

// Device wraps an I2C connection to an AHT20 device.
type Device struct {
	bus drivers.I2C
	cfg Config
	buf [7]byte
}

// New creates the Device object; it does not touch the bus.
func New(bus drivers.I2C, cfg Config) *Device {
	cfg.applyDefaults()
	return &Device{bus: bus, cfg: cfg}
}

func (d *Device) Address() uint16 { return d.cfg.Address }

// Configure calibrates the sensor unless the status byte already reports
// calibration.
func (d *Device) Configure() error {
	st, err := d.Status()
	if err == nil && st&statusCalibrated != 0 {
		return nil
	}
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Reset issues a soft reset. Give the device ~20ms afterwards before using.
func (d *Device) Reset() error {
	return d.bus.Tx(d.cfg.Address, []byte{cmdSoftReset}, nil)
}

// Status reads the status byte.
func (d *Device) Status() (byte, error) {
	data := []byte{0}
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdStatus}, data); err != nil {
		return 0, err
	}
	return data[0], nil
}

// Trigger starts a measurement without blocking.
func (d *Device) Trigger() error {
	return d.bus.Tx(d.cfg.Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

// Collect reads one measurement into out. ErrNotReady is returned while the
// sensor is still converting; bus errors are returned as-is.
func (d *Device) Collect(out *Sample) error {
	data := d.buf[:]
	if err := d.bus.Tx(d.cfg.Address, nil, data); err != nil {
		return err
	}
	if data[0]&statusCalibrated == 0 || data[0]&statusBusy != 0 {
		return ErrNotReady
	}
	out.RawHumidity = uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4
	out.RawTemp = uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5])
	return nil
}

// Read performs Trigger, waits the conversion hint, then polls Collect until
// it succeeds or CollectTimeout elapses.
func (d *Device) Read() (Sample, error) {
	var s Sample
	if err := d.Trigger(); err != nil {
		return s, err
	}
	time.Sleep(d.cfg.TriggerHint)
	deadline := time.Now().Add(d.cfg.CollectTimeout)
	for {
		err := d.Collect(&s)
		switch {
		case err == nil:
			return s, nil
		case errors.Is(err, ErrNotReady):
			if time.Now().After(deadline) {
				return s, ErrTimeout
			}
			time.Sleep(d.cfg.PollInterval)
		default:
			return s, err
		}
	}
}

// Sample holds one raw 20-bit humidity/temperature pair.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

// Celsius returns the temperature in °C.
func (s Sample) Celsius() float64 {
	return float64(s.RawTemp)*200/fullScale - 50
}

// RelHumidity returns relative humidity in percent.
func (s Sample) RelHumidity() float64 {
	return float64(s.RawHumidity) * 100 / fullScale
}

// DeciCelsius returns tenths of °C.
func (s Sample) DeciCelsius() int32 {
	return int32(int64(s.RawTemp)*2000/fullScale) - 500
}
