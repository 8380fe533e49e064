package stream

import (
	"errors"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	defaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
)

// ErrConnectionLost is returned by Write once the broker connection has dropped.
var ErrConnectionLost = errors.New("stream: mqtt connection lost")

// publisher is the part of paho.Client the stream uses.
type publisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// mqttStream publishes each write as one MQTT message. Auto-reconnect is
// off: a dropped connection surfaces as a failed write.
type mqttStream struct {
	client publisher
	topic  string
}

func dialMQTT(broker string, opts Options) (*mqttStream, error) {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "door-sensor-" + uuid.NewString()[:8]
	}
	topic := opts.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	o := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(timeout).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("stream: mqtt connection lost: %v", err)
		})

	client := paho.NewClient(o)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("stream: connect %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("stream: connect %s: %w", broker, err)
	}

	return &mqttStream{client: client, topic: topic}, nil
}

// Write publishes p unchanged at QoS 0, not retained.
func (s *mqttStream) Write(p []byte) (int, error) {
	if !s.client.IsConnectionOpen() {
		return 0, ErrConnectionLost
	}
	token := s.client.Publish(s.topic, 0, false, p)
	if !token.WaitTimeout(publishTimeout) {
		return 0, fmt.Errorf("stream: publish timeout")
	}
	if err := token.Error(); err != nil {
		return 0, fmt.Errorf("stream: publish: %w", err)
	}
	return len(p), nil
}

// Close disconnects from the broker.
func (s *mqttStream) Close() error {
	s.client.Disconnect(1000) // 1 second timeout
	return nil
}
