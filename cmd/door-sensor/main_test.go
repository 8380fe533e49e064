package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/door-sensor/internal/config"
	"github.com/sweeney/door-sensor/internal/status"
	"github.com/sweeney/door-sensor/internal/stream"
	"github.com/sweeney/door-sensor/internal/wifi"
)

// setBootConstants overrides the link-time constants for one test.
func setBootConstants(t *testing.T, ssid, pass, endpoint string) {
	t.Helper()
	oldSSID, oldPass, oldEndpoint := wifiSSID, wifiPassphrase, serverEndpoint
	wifiSSID, wifiPassphrase, serverEndpoint = ssid, pass, endpoint
	t.Cleanup(func() {
		wifiSSID, wifiPassphrase, serverEndpoint = oldSSID, oldPass, oldEndpoint
	})
}

func TestLoadConfigBootConstants(t *testing.T) {
	setBootConstants(t, "HomeNet", "correct-horse", "10.0.0.2:9000")

	cfg, opts, err := loadConfig(nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Wifi.SSID != "HomeNet" || cfg.Wifi.Passphrase != "correct-horse" {
		t.Errorf("credentials: got %+v", cfg.Wifi)
	}
	if cfg.Endpoint != "10.0.0.2:9000" {
		t.Errorf("Endpoint: got %q", cfg.Endpoint)
	}
	if cfg.Poll != 50*time.Millisecond {
		t.Errorf("Poll: got %v", cfg.Poll)
	}
	if opts.printState {
		t.Error("print-state should default to false")
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	setBootConstants(t, "HomeNet", "correct-horse", "10.0.0.2:9000")

	path := filepath.Join(t.TempDir(), "door.yaml")
	content := "endpoint: 10.0.0.9:7000\npoll: 200ms\ngpio:\n  pin: 6\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := loadConfig([]string{"--config", path, "--pin", "22"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Endpoint != "10.0.0.9:7000" {
		t.Errorf("file should override built-in endpoint, got %q", cfg.Endpoint)
	}
	if cfg.Poll != 200*time.Millisecond {
		t.Errorf("Poll: got %v", cfg.Poll)
	}
	if cfg.GPIO.Pin != 22 {
		t.Errorf("flag should override file pin, got %d", cfg.GPIO.Pin)
	}
	if cfg.Wifi.Passphrase != "correct-horse" {
		t.Errorf("passphrase should keep boot constant, got %q", cfg.Wifi.Passphrase)
	}
}

func TestLoadConfigBadFlag(t *testing.T) {
	_, _, err := loadConfig([]string{"--no-such-flag"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadConfigHelp(t *testing.T) {
	_, _, err := loadConfig([]string{"--help"})
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, _, err := loadConfig([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatal("expected error")
	}
}

// --- bringUp tests ---

func testConfig() *config.Config {
	return config.Default("HomeNet", "correct-horse", "10.0.0.2:9000")
}

type dialRecorder struct {
	calls    int
	endpoint string
	opts     stream.Options
	stream   *stream.FakeStream
	err      error
}

func (d *dialRecorder) dial(ctx context.Context, endpoint string, opts stream.Options) (io.WriteCloser, error) {
	d.calls++
	d.endpoint = endpoint
	d.opts = opts
	if d.err != nil {
		return nil, d.err
	}
	d.stream = stream.NewFakeStream()
	return d.stream, nil
}

func TestBringUpSuccess(t *testing.T) {
	cfg := testConfig()
	radio := wifi.NewFakeRadio()
	dr := &dialRecorder{}
	tracker := status.NewTracker(time.Now(), status.Config{})

	n, err := bringUp(context.Background(), cfg, radio, dr.dial, tracker)
	if err != nil {
		t.Fatalf("bringUp: %v", err)
	}

	if dr.calls != 1 || dr.endpoint != "10.0.0.2:9000" {
		t.Errorf("dial: calls=%d endpoint=%q", dr.calls, dr.endpoint)
	}
	if dr.opts.Topic != stream.DefaultTopic {
		t.Errorf("Topic: got %q", dr.opts.Topic)
	}
	if n.session == nil || n.session.SSID != "HomeNet" {
		t.Errorf("session not held: %+v", n.session)
	}

	snap := tracker.Snapshot()
	if snap.WifiStep != "network-ready" {
		t.Errorf("WifiStep: got %q", snap.WifiStep)
	}
	if !snap.StreamConnected {
		t.Error("expected StreamConnected=true")
	}
	if snap.Network == nil || snap.Network.IP != "192.168.1.50" {
		t.Errorf("Network: got %+v", snap.Network)
	} else if snap.Network.Since.IsZero() {
		t.Error("Network.Since should carry the session's establishment time")
	}

	n.Close()
	if !dr.stream.Closed {
		t.Error("Close should close the stream")
	}
	if radio.Calls[len(radio.Calls)-1] != "disconnect" {
		t.Error("Close should release the wifi session")
	}
}

func TestBringUpEstablishFailureDoesNotDial(t *testing.T) {
	cfg := testConfig()
	radio := wifi.NewFakeRadio()
	radio.ConnectErr = errors.New("auth failed")
	dr := &dialRecorder{}
	tracker := status.NewTracker(time.Now(), status.Config{})

	_, err := bringUp(context.Background(), cfg, radio, dr.dial, tracker)
	if !errors.Is(err, wifi.ErrAssociation) {
		t.Fatalf("expected association error, got %v", err)
	}
	if dr.calls != 0 {
		t.Error("stream must not be dialed when connectivity fails")
	}
	if tracker.Snapshot().WifiStep != "started" {
		t.Errorf("WifiStep: got %q, want started", tracker.Snapshot().WifiStep)
	}
}

func TestBringUpDialFailureReleasesSession(t *testing.T) {
	cfg := testConfig()
	radio := wifi.NewFakeRadio()
	dr := &dialRecorder{err: errors.New("connection refused")}
	tracker := status.NewTracker(time.Now(), status.Config{})

	_, err := bringUp(context.Background(), cfg, radio, dr.dial, tracker)
	if err == nil {
		t.Fatal("expected error")
	}
	want := []string{"configure", "start", "connect", "wait_netif_up", "disconnect"}
	if !reflect.DeepEqual(radio.Calls, want) {
		t.Errorf("calls: got %v, want %v", radio.Calls, want)
	}
	if tracker.Snapshot().StreamConnected {
		t.Error("stream should not be marked connected")
	}
}

func TestBringUpSkipWifi(t *testing.T) {
	cfg := testConfig()
	cfg.Wifi.Skip = true
	radio := wifi.NewFakeRadio()
	dr := &dialRecorder{}
	tracker := status.NewTracker(time.Now(), status.Config{})

	n, err := bringUp(context.Background(), cfg, radio, dr.dial, tracker)
	if err != nil {
		t.Fatalf("bringUp: %v", err)
	}
	if len(radio.Calls) != 0 {
		t.Errorf("radio should not be touched, got %v", radio.Calls)
	}
	if n.session != nil {
		t.Error("no session expected when wifi is skipped")
	}
	if tracker.Snapshot().WifiStep != "skipped" {
		t.Errorf("WifiStep: got %q", tracker.Snapshot().WifiStep)
	}
	n.Close()
}
