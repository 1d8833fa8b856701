package simplejson

import (
	"time"

	"nuha.dev/loctrack/internal/fix"
)

type FrameMessage struct {
	Length   int
	Protocol byte
	Payload  []byte
	Buffer   []byte
}

const (
	START_BYTE byte = 0x99

	LOGIN           byte = 0x01
	LOCATION_UPDATE byte = 0x02
	SAT_UPDATE      byte = 0x03
	GPS_ERROR       byte = 0x04
	GPS_INIT        byte = 0x05
	STATUS          byte = 0x06
)

type LoginMessage struct {
	SnType     string `json:"sn_type"`
	Serial     string `json:"serial"`
	DeviceType string `json:"device_type"`
}

type LocationMessage struct {
	GpsTime     time.Time `json:"gps_time"`
	MachineTime time.Time `json:"machine_time"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Altitude    float64   `json:"altitude"`
	Accuracy    float32   `json:"accuracy"`
	SatUsed     int       `json:"sat_used"`
	Fix         bool      `json:"fix"`
	FixMode     string    `json:"fix_mode"`
	Speed       float32   `json:"speed"`
}

type StatusMessage struct {
	GpsStatus bool `json:"gps_status"`
}

// ToFix prefers the receiver's gps time and falls back to the device clock.
func (l *LocationMessage) ToFix() fix.Fix {
	t := l.GpsTime
	if t.IsZero() {
		t = l.MachineTime
	}
	return fix.Fix{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Accuracy:  l.Accuracy,
		Altitude:  l.Altitude,
		Speed:     l.Speed,
		Time:      t.UTC(),
	}
}
