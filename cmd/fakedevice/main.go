package main

import (
	"encoding/json"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"nuha.dev/loctrack/internal/fix"
	"nuha.dev/loctrack/internal/provider/simplejson"
)

type walker struct {
	lat, lon float64
}

func (w *walker) next() fix.Fix {
	w.lat += (rand.Float64() - 0.5) * 0.0002
	w.lon += (rand.Float64() - 0.5) * 0.0002
	return fix.Fix{
		Latitude:  w.lat,
		Longitude: w.lon,
		Accuracy:  float32(3 + rand.Intn(10)),
		Altitude:  20 + rand.Float64(),
		Speed:     float32(rand.Float64() * 2),
		Time:      time.Now().UTC(),
	}
}

func main() {
	var addr, serial, nats_url, subject string
	var interval time.Duration
	var lat, lon float64

	root := &cobra.Command{
		Use:   "fakedevice",
		Short: "Emit simulated fixes to a simplejson listener or a NATS subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := &walker{lat: lat, lon: lon}
			if nats_url != "" {
				return runNats(nats_url, subject, interval, w)
			}
			return runDevice(addr, serial, interval, w)
		},
	}
	root.Flags().StringVar(&addr, "addr", "127.0.0.1:5001", "simplejson listener address")
	root.Flags().StringVar(&serial, "serial", "FAKE0001", "device serial sent at login")
	root.Flags().StringVar(&nats_url, "nats", "", "publish to this NATS server instead")
	root.Flags().StringVar(&subject, "subject", "loctrack.fix", "NATS subject")
	root.Flags().DurationVar(&interval, "interval", 2*time.Second, "time between fixes")
	root.Flags().Float64Var(&lat, "lat", -6.2, "start latitude")
	root.Flags().Float64Var(&lon, "lon", 106.8, "start longitude")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDevice(addr, serial string, interval time.Duration, w *walker) error {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer c.Close()
	login, _ := json.Marshal(simplejson.LoginMessage{SnType: "imei", Serial: serial, DeviceType: "fakedevice"})
	_, err = c.Write(simplejson.AppendFrame(nil, simplejson.LOGIN, login))
	if err != nil {
		return err
	}
	log.Info().Str("addr", addr).Str("serial", serial).Msg("logged in")
	buf := make([]byte, 0, 512)
	for {
		f := w.next()
		msg := simplejson.LocationMessage{
			GpsTime:     f.Time,
			MachineTime: time.Now().UTC(),
			Latitude:    f.Latitude,
			Longitude:   f.Longitude,
			Altitude:    f.Altitude,
			Accuracy:    f.Accuracy,
			SatUsed:     8,
			Fix:         true,
			FixMode:     "3D",
			Speed:       f.Speed,
		}
		payload, _ := json.Marshal(msg)
		buf = simplejson.AppendFrame(buf[:0], simplejson.LOCATION_UPDATE, payload)
		_, err = c.Write(buf)
		if err != nil {
			return err
		}
		log.Debug().EmbedObject(f).Msg("sent")
		time.Sleep(interval)
	}
}

func runNats(url, subject string, interval time.Duration, w *walker) error {
	nc, err := nats.Connect(url, nats.Name("fakedevice"))
	if err != nil {
		return err
	}
	defer nc.Close()
	log.Info().Str("url", url).Str("subject", subject).Msg("connected")
	for {
		f := w.next()
		d, _ := json.Marshal(f.Payload())
		err = nc.Publish(subject, d)
		if err != nil {
			return err
		}
		log.Debug().EmbedObject(f).Msg("published")
		time.Sleep(interval)
	}
}
