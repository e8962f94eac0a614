package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"envmon-go/types"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Tick(time.Now(), 60)
	m.TickAborted()
	m.SensorError("aht20")
	m.SensorError("aht20")
	m.Published(true)
	m.Published(false)
	m.NTPSync(false)
	m.BrokerEvent("connected")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 60.0, testutil.ToFloat64(m.counter))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tickAborts))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sensorErrors.WithLabelValues("aht20")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishFails))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ntpSyncs.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.brokerEvents.WithLabelValues("connected")))
}

func TestMetrics_SnapshotGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Snapshot(types.Snapshot{AirTemp: 21.5, AirHumidity: 40, Illuminance: 300, MoistureRaw: 65535, RefVoltage: 3.3})

	assert.Equal(t, 21.5, testutil.ToFloat64(m.reading.WithLabelValues("air_temp_c")))
	assert.InDelta(t, 3.3, testutil.ToFloat64(m.reading.WithLabelValues("earth_volts")), 1e-9)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Tick(time.Now(), 1)
		m.TickAborted()
		m.SensorError("x")
		m.Published(true)
		m.NTPSync(true)
		m.BrokerEvent("message")
		m.Snapshot(types.Snapshot{})
		_ = m.Handler()
	})
}
