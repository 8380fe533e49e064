// Package status provides a thread-safe status tracker for the door-sensor daemon.
// It is written by the notifier loop and read by the HTTP status page.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/door-sensor/internal/logic"
)

// NetworkInfo describes the established wireless session.
type NetworkInfo struct {
	Interface string
	SSID      string
	IP        string
	Since     time.Time // when the address was bound
}

// Config contains daemon configuration for display. Secrets are never stored.
type Config struct {
	PollMs   int64
	Pin      int
	Endpoint string
	HTTPAddr string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Door            logic.DoorState
	Ready           bool
	Counts          logic.EventCounts
	WifiStep        string
	StreamConnected bool
	StartTime       time.Time
	Now             time.Time
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// NotReady returns why the node is not yet notifying, or "" once the
// network is up, the stream is open and the loop has taken a reading.
func (s Snapshot) NotReady() string {
	switch {
	case s.WifiStep != "network-ready" && s.WifiStep != "skipped":
		step := s.WifiStep
		if step == "" {
			step = "idle"
		}
		return "wifi: " + step
	case !s.StreamConnected:
		return "stream: not connected"
	case !s.Ready:
		return "notifier: not running"
	}
	return ""
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Door:      logic.DoorUnknown,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the latched door state and event counts and marks the
// notifier as running. Called from the notifier loop on every tick.
func (t *Tracker) Update(door logic.DoorState, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Door = door
	t.snap.Ready = true
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetWifiStep records the last establishment step reached.
func (t *Tracker) SetWifiStep(step string) {
	t.mu.Lock()
	t.snap.WifiStep = step
	t.mu.Unlock()
}

// SetStreamConnected sets the notification stream status.
func (t *Tracker) SetStreamConnected(connected bool) {
	t.mu.Lock()
	t.snap.StreamConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
