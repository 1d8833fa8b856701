package fix

import (
	"time"

	"github.com/phuslu/log"
)

// Fix is a single position report. It is never persisted.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float32
	Altitude  float64
	Speed     float32
	Time      time.Time
}

// Payload is the onLocationUpdate argument map.
type Payload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float32 `json:"accuracy"`
	Altitude  float64 `json:"altitude"`
	Speed     float32 `json:"speed"`
	Timestamp int64   `json:"timestamp"`
}

func (f Fix) Payload() Payload {
	return Payload{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Accuracy:  f.Accuracy,
		Altitude:  f.Altitude,
		Speed:     f.Speed,
		Timestamp: f.Time.UnixMilli(),
	}
}

func (p Payload) Fix() Fix {
	return Fix{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Accuracy:  p.Accuracy,
		Altitude:  p.Altitude,
		Speed:     p.Speed,
		Time:      time.UnixMilli(p.Timestamp).UTC(),
	}
}

func (f Fix) MarshalObject(e *log.Entry) {
	e.Float64("lat", f.Latitude).Float64("lon", f.Longitude).Float32("accuracy", f.Accuracy).Float32("speed", f.Speed).Time("fix_time", f.Time)
}
