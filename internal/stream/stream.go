// Package stream opens the write-only notification stream to the listener.
//
// The stream carries raw event payloads with no framing and is never read.
// It is opened once and lives until the first failed write; there is no
// reconnection.
package stream

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// DefaultTopic is the MQTT topic used when an mqtt:// endpoint is configured.
const DefaultTopic = "home/door/sensor/events"

// Options tune how the stream is opened.
type Options struct {
	DialTimeout time.Duration

	// MQTT only.
	Topic    string
	ClientID string // generated when empty
}

// Dial opens the stream described by endpoint:
//
//	host:port, tcp://host:port   plain TCP
//	mqtt://host:port, mqtts://   publish each write to an MQTT topic
func Dial(ctx context.Context, endpoint string, opts Options) (io.WriteCloser, error) {
	scheme, addr := splitEndpoint(endpoint)
	switch scheme {
	case "", "tcp":
		return dialTCP(ctx, addr, opts)
	case "mqtt", "mqtts":
		s, err := dialMQTT(endpoint, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("stream: unsupported endpoint scheme %q", scheme)
}

func splitEndpoint(endpoint string) (scheme, addr string) {
	if s, rest, ok := strings.Cut(endpoint, "://"); ok {
		return strings.ToLower(s), rest
	}
	return "", endpoint
}

func dialTCP(ctx context.Context, addr string, opts Options) (net.Conn, error) {
	d := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("stream: connect %s: %w", addr, err)
	}
	return conn, nil
}
