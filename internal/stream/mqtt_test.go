package stream

import (
	"errors"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/door-sensor/internal/gpio"
	"github.com/sweeney/door-sensor/internal/notify"
)

// fakeToken is a completed paho.Token.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records publishes in place of a broker connection.
type fakeClient struct {
	// Messages contains every publish, in order.
	Messages []published

	// PublishError, if set, completes every publish with this error.
	PublishError error

	// Closed reports the connection as dropped.
	Closed bool

	Disconnected bool
}

func (f *fakeClient) IsConnectionOpen() bool { return !f.Closed }

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	p, _ := payload.([]byte)
	f.Messages = append(f.Messages, published{topic, qos, retained, append([]byte(nil), p...)})
	return newFakeToken(f.PublishError)
}

func (f *fakeClient) Disconnect(uint) { f.Disconnected = true }

func TestMQTTWritePublishesRawBytes(t *testing.T) {
	client := &fakeClient{}
	s := &mqttStream{client: client, topic: "home/door/test"}

	for _, msg := range []string{"door_opened", "door_closed"} {
		n, err := s.Write([]byte(msg))
		if err != nil {
			t.Fatalf("Write(%q): %v", msg, err)
		}
		if n != len(msg) {
			t.Errorf("Write(%q) = %d, want %d", msg, n, len(msg))
		}
	}

	if len(client.Messages) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(client.Messages))
	}
	for i, want := range []string{"door_opened", "door_closed"} {
		m := client.Messages[i]
		if m.topic != "home/door/test" {
			t.Errorf("message %d topic: got %q", i, m.topic)
		}
		if m.qos != 0 || m.retained {
			t.Errorf("message %d: qos=%d retained=%v, want qos=0 not retained", i, m.qos, m.retained)
		}
		if string(m.payload) != want {
			t.Errorf("message %d payload: got %q, want %q", i, m.payload, want)
		}
	}

	s.Close()
	if !client.Disconnected {
		t.Error("Close should disconnect the client")
	}
}

func TestMQTTWriteConnectionLost(t *testing.T) {
	client := &fakeClient{Closed: true}
	s := &mqttStream{client: client, topic: DefaultTopic}

	n, err := s.Write([]byte("door_opened"))
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
	if n != 0 {
		t.Errorf("n: got %d, want 0", n)
	}
	if len(client.Messages) != 0 {
		t.Errorf("nothing should be published on a dropped connection, got %d", len(client.Messages))
	}
}

func TestMQTTPublishErrorEndsNotifier(t *testing.T) {
	brokerErr := errors.New("not authorized")
	client := &fakeClient{PublishError: brokerErr}

	tick := make(chan time.Time, 2)
	tick <- time.Now()
	tick <- time.Now()
	n := &notify.Notifier{
		Reader: gpio.NewFakeReader(false, true, false),
		Stream: &mqttStream{client: client, topic: DefaultTopic},
	}

	err := n.Run(tick, make(chan os.Signal))
	var werr *notify.WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected *notify.WriteError, got %v", err)
	}
	if !errors.Is(err, brokerErr) {
		t.Errorf("expected broker error in chain, got %v", err)
	}
	if len(client.Messages) != 1 {
		t.Errorf("loop should stop after the failed publish, saw %d publishes", len(client.Messages))
	}
}
