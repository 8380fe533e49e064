package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Door          string     `json:"door"`
	Ready         bool       `json:"ready"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	Wifi          WifiJSON   `json:"wifi"`
	Stream        StreamJSON `json:"stream"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// WifiJSON reports the connectivity state.
type WifiJSON struct {
	Step      string `json:"step"`
	Interface string `json:"interface,omitempty"`
	SSID      string `json:"ssid,omitempty"`
	IP        string `json:"ip,omitempty"`
	Since     string `json:"connected_since,omitempty"`
}

// StreamJSON reports the notification stream state.
type StreamJSON struct {
	Connected bool   `json:"connected"`
	Endpoint  string `json:"endpoint"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Opened int `json:"door_opened"`
	Closed int `json:"door_closed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs   int64  `json:"poll_ms"`
	Pin      int    `json:"pin"`
	Endpoint string `json:"endpoint"`
	HTTPAddr string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	door := string(snap.Door)
	if door == "" {
		door = "UNKNOWN"
	}
	step := snap.WifiStep
	if step == "" {
		step = "idle"
	}

	inner := StatusInner{
		Door:          door,
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Wifi:          WifiJSON{Step: step},
		Stream:        StreamJSON{Connected: snap.StreamConnected, Endpoint: snap.Config.Endpoint},
		Counts: CountsJSON{
			Opened: snap.Counts.Opened,
			Closed: snap.Counts.Closed,
		},
		Config: ConfigJSON{
			PollMs:   snap.Config.PollMs,
			Pin:      snap.Config.Pin,
			Endpoint: snap.Config.Endpoint,
			HTTPAddr: snap.Config.HTTPAddr,
		},
	}
	if snap.Network != nil {
		inner.Wifi.Interface = snap.Network.Interface
		inner.Wifi.SSID = snap.Network.SSID
		inner.Wifi.IP = snap.Network.IP
		if !snap.Network.Since.IsZero() {
			inner.Wifi.Since = snap.Network.Since.UTC().Format(time.RFC3339)
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
