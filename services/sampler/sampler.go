// Package sampler reads every sensor collaborator once and returns a
// Snapshot. A failing read fails the whole sample; nothing is retried within
// the tick.
package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"envmon-go/errcode"
	"envmon-go/metrics"
	"envmon-go/types"
	"envmon-go/x/mathx"
)

// Sensor collaborators.
type (
	TempHumidity interface {
		ReadTemperature() (float64, error)
		ReadHumidity() (float64, error)
	}

	Light interface {
		ReadIlluminance() (float64, error)
	}

	Analog interface {
		ReadRaw() (uint16, error)
		ReferenceVoltage() float64
	}
)

// Plausible physical ranges; anything outside is reported as out_of_range.
const (
	minTemp, maxTemp = -40.0, 85.0
	minHumi, maxHumi = 0.0, 100.0
	minLux, maxLux   = 0.0, 100000.0
)

// Cfg is used to initialize a Sampler.
type Cfg struct {
	TempHumidity TempHumidity
	Light        Light
	Analog       Analog
	Log          *logrus.Entry
	Metric       *metrics.Metrics
	Now          func() time.Time
}

type Sampler struct {
	th     TempHumidity
	light  Light
	analog Analog
	log    *logrus.Entry
	metric *metrics.Metrics
	now    func() time.Time
}

func New(c *Cfg) *Sampler {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return &Sampler{
		th:     c.TempHumidity,
		light:  c.Light,
		analog: c.Analog,
		log:    c.Log.WithField("component", "sampler"),
		metric: c.Metric,
		now:    now,
	}
}

// Sample reads all sensors in a fixed order: temperature, humidity,
// illuminance, analog moisture.
func (s *Sampler) Sample(ctx context.Context) (types.Snapshot, error) {
	var snap types.Snapshot
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	t, err := s.th.ReadTemperature()
	if err = s.check("temperature", t, minTemp, maxTemp, err); err != nil {
		return types.Snapshot{}, err
	}
	h, err := s.th.ReadHumidity()
	if err = s.check("humidity", h, minHumi, maxHumi, err); err != nil {
		return types.Snapshot{}, err
	}
	lux, err := s.light.ReadIlluminance()
	if err = s.check("light", lux, minLux, maxLux, err); err != nil {
		return types.Snapshot{}, err
	}
	raw, err := s.analog.ReadRaw()
	if err != nil {
		return types.Snapshot{}, s.fail("moisture", errcode.New(errcode.SensorRead, "sampler.moisture", err))
	}

	snap = types.Snapshot{
		AirTemp:     t,
		AirHumidity: h,
		Illuminance: lux,
		MoistureRaw: raw,
		RefVoltage:  s.analog.ReferenceVoltage(),
		TakenAt:     s.now(),
	}
	s.metric.Snapshot(snap)
	return snap, nil
}

func (s *Sampler) check(sensor string, v, lo, hi float64, err error) error {
	op := "sampler." + sensor
	if err != nil {
		return s.fail(sensor, errcode.New(errcode.SensorRead, op, err))
	}
	if !mathx.Finite(v) || !mathx.Between(v, lo, hi) {
		return s.fail(sensor, &errcode.E{
			C:   errcode.OutOfRange,
			Op:  op,
			Msg: fmt.Sprintf("%g not in [%g, %g]", v, lo, hi),
		})
	}
	return nil
}

func (s *Sampler) fail(sensor string, err error) error {
	s.metric.SensorError(sensor)
	s.log.WithFields(logrus.Fields{
		"func":   "Sample",
		"sensor": sensor,
		"code":   errcode.Of(err),
	}).Debug(err)
	return err
}
