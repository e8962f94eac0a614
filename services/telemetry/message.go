package telemetry

import (
	"encoding/json"
	"time"

	"envmon-go/types"
)

// Message is the wire payload. Field order is part of the format.
type Message struct {
	ClientID  string  `json:"clientId"`
	IP        string  `json:"ip"`
	EarthHumi int     `json:"earthHumi"`
	AirTemp   float64 `json:"airTemp"`
	AirHumi   float64 `json:"airHumi"`
	Light     float64 `json:"light"`
	Time      int64   `json:"time"`
}

// Build assembles a Message; now is truncated to whole Unix seconds.
func Build(snap types.Snapshot, id Identity, now time.Time) Message {
	return Message{
		ClientID:  id.ClientID,
		IP:        id.IP,
		EarthHumi: int(snap.MoistureRaw),
		AirTemp:   snap.AirTemp,
		AirHumi:   snap.AirHumidity,
		Light:     snap.Illuminance,
		Time:      now.Unix(),
	}
}

// Marshal is deterministic: equal messages give identical bytes.
func Marshal(m Message) ([]byte, error) {
	return json.Marshal(m)
}
