package internal

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/door-sensor/internal/gpio"
	"github.com/sweeney/door-sensor/internal/notify"
	"github.com/sweeney/door-sensor/internal/status"
	"github.com/sweeney/door-sensor/internal/stream"
	"github.com/sweeney/door-sensor/internal/wifi"
)

// listener accepts one connection and returns everything written to it.
func listener(t *testing.T) (string, <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	out := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		out <- data
	}()
	return ln.Addr().String(), out
}

// TestIntegrationFullFlow tests the complete flow from wifi bring-up to the
// listener using a fake radio, a fake pin and a real TCP stream.
func TestIntegrationFullFlow(t *testing.T) {
	addr, received := listener(t)

	radio := wifi.NewFakeRadio()
	sess, err := wifi.NewEstablisher(radio).Establish(context.Background(), wifi.Credentials{
		SSID:       "HomeNet",
		Passphrase: "correct-horse",
		Auth:       wifi.AuthWPA2Personal,
	})
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	defer sess.Close()

	s, err := stream.Dial(context.Background(), addr, stream.Options{DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// closed at boot -> opened -> held open -> closed -> closed
	samples := []bool{false, false, true, true, true, false, false}
	reader := gpio.NewFakeReader(samples...)
	tracker := status.NewTracker(time.Now(), status.Config{})
	n := &notify.Notifier{Reader: reader, Stream: s, Status: tracker}

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- n.Run(tick, sig) }()

	for i := 1; i < len(samples); i++ {
		tick <- time.Time{}
	}
	sig <- syscall.SIGTERM
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	s.Close()

	select {
	case data := <-received:
		if string(data) != "door_openeddoor_closed" {
			t.Errorf("listener received %q, want %q", data, "door_openeddoor_closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener received nothing")
	}

	snap := tracker.Snapshot()
	if snap.Counts.Opened != 1 || snap.Counts.Closed != 1 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
}

// TestIntegrationClosedStreamEndsLoop checks that a dead stream surfaces as
// a write error and stops the loop.
func TestIntegrationClosedStreamEndsLoop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	s, err := stream.Dial(context.Background(), ln.Addr().String(), stream.Options{DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	// A peer reset is only seen after kernel round trips; closing the local
	// side makes the next write fail deterministically.
	conn := <-accepted
	conn.Close()
	ln.Close()
	s.Close()

	reader := gpio.NewFakeReader(false, true, true)
	n := &notify.Notifier{Reader: reader, Stream: s}

	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- n.Run(tick, sig) }()

	tick <- time.Time{}

	select {
	case err := <-done:
		var we *notify.WriteError
		if !errors.As(err, &we) {
			t.Fatalf("expected *notify.WriteError, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after write failure")
	}
}
