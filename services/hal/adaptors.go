package hal

import (
	"time"

	"tinygo.org/x/drivers"

	"envmon-go/drivers/ads1115"
	"envmon-go/drivers/aht20"
	"envmon-go/drivers/bh1750"
	"envmon-go/errcode"
	"envmon-go/services/config"
)

// humidityMaxAge bounds how long a humidity value from the previous
// temperature read is reused instead of triggering a second conversion.
const humidityMaxAge = 500 * time.Millisecond

// FromI2C configures the AHT20, BH1750 and ADS1115 on bus and wraps them as
// sampler collaborators.
func FromI2C(bus drivers.I2C, sc config.SensorsConfig) (*Sensors, error) {
	th := aht20.New(bus, aht20.Config{Address: sc.AHT20Addr})
	if err := th.Configure(); err != nil {
		return nil, errcode.New(errcode.SensorRead, "hal.aht20.Configure", err)
	}
	light := bh1750.New(bus, sc.BH1750Addr)
	if err := light.Configure(); err != nil {
		return nil, errcode.New(errcode.SensorRead, "hal.bh1750.Configure", err)
	}
	adc := ads1115.New(bus, sc.ADS1115Addr)

	return &Sensors{
		TempHumidity: &aht20Adaptor{dev: th, now: time.Now},
		Light:        &bh1750Adaptor{dev: light},
		Analog:       &ads1115Adaptor{dev: adc, channel: sc.ADCChannel},
	}, nil
}

// ---------------------------------------------------------------------------
// AHT20
// ---------------------------------------------------------------------------

// A single AHT20 conversion yields both quantities, so ReadTemperature
// converts and ReadHumidity reuses that result while it is fresh.
type aht20Adaptor struct {
	dev    *aht20.Device
	now    func() time.Time
	last   aht20.Sample
	lastAt time.Time
}

func (a *aht20Adaptor) read() (aht20.Sample, error) {
	s, err := a.dev.Read()
	if err != nil {
		return s, err
	}
	a.last, a.lastAt = s, a.now()
	return s, nil
}

func (a *aht20Adaptor) ReadTemperature() (float64, error) {
	s, err := a.read()
	if err != nil {
		return 0, err
	}
	return s.Celsius(), nil
}

func (a *aht20Adaptor) ReadHumidity() (float64, error) {
	if !a.lastAt.IsZero() && a.now().Sub(a.lastAt) <= humidityMaxAge {
		return a.last.RelHumidity(), nil
	}
	s, err := a.read()
	if err != nil {
		return 0, err
	}
	return s.RelHumidity(), nil
}

// ---------------------------------------------------------------------------
// BH1750
// ---------------------------------------------------------------------------

type bh1750Adaptor struct {
	dev *bh1750.Device
}

func (a *bh1750Adaptor) ReadIlluminance() (float64, error) { return a.dev.Illuminance() }

// ---------------------------------------------------------------------------
// ADS1115
// ---------------------------------------------------------------------------

type ads1115Adaptor struct {
	dev     *ads1115.Device
	channel int
}

func (a *ads1115Adaptor) ReadRaw() (uint16, error)  { return a.dev.ReadU16(a.channel) }
func (a *ads1115Adaptor) ReferenceVoltage() float64 { return ads1115.FullScaleVolts }
