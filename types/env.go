package types

import (
	"time"

	"envmon-go/x/mathx"
)

// ------------------------
// Sensor snapshot
// ------------------------

// Snapshot is the set of readings captured within one tick. It is passed by
// value and never modified after the sampler returns it.
type Snapshot struct {
	AirTemp     float64   `json:"air_temp_c"`   // °C
	AirHumidity float64   `json:"air_humi_pct"` // %RH
	Illuminance float64   `json:"light_lux"`    // lux
	MoistureRaw uint16    `json:"earth_raw"`    // 0..65535
	RefVoltage  float64   `json:"ref_v"`        // volts at full scale
	TakenAt     time.Time `json:"taken_at"`
}

// MoistureVolts scales the raw moisture code by the reference voltage.
func (s Snapshot) MoistureVolts() float64 {
	return mathx.ScaleU16(s.MoistureRaw, s.RefVoltage)
}

// ------------------------
// Service state (retained on the local bus)
// ------------------------

type ServiceState struct {
	Level  string `json:"level"`  // "idle", "up", "degraded", "error", "stopped"
	Status string `json:"status"` // short code
	TSms   int64  `json:"ts_ms"`
	Error  string `json:"error,omitempty"`
}
