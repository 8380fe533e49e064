// Package notify runs the door-state loop: poll the hall input, latch it,
// and write one message to the stream on each transition. The loop never
// retries a failed write; it returns and the process exits.
package notify

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sweeney/door-sensor/internal/gpio"
	"github.com/sweeney/door-sensor/internal/logic"
)

// DefaultPoll is the interval between pin reads.
const DefaultPoll = 50 * time.Millisecond

// WriteError is returned by Run when a notification could not be written.
type WriteError struct {
	Event logic.EventType
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("notify: write %s: %v", e.Event, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// StatusSink receives the latched state after every tick.
type StatusSink interface {
	Update(door logic.DoorState, counts logic.EventCounts)
}

// Notifier owns the hall input and the stream for the life of the loop.
type Notifier struct {
	Reader gpio.Reader
	Stream io.Writer
	Status StatusSink // optional

	// AssumeClosed skips the startup read and starts the latch at closed.
	AssumeClosed bool
}

// Run polls on every tick until a write fails or a signal arrives.
// A write failure is returned as *WriteError; a signal returns nil.
func (n *Notifier) Run(tick <-chan time.Time, sig <-chan os.Signal) error {
	latch := n.baseline()
	n.report(latch)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			return nil

		case <-tick:
			open, err := n.Reader.Read()
			if err != nil {
				log.Printf("gpio read error: %v", err)
				continue
			}

			if event, ok := latch.Observe(open); ok {
				log.Printf("event: %s (door %s)", event, event.State())
				if err := write(n.Stream, event.Payload()); err != nil {
					return &WriteError{Event: event, Err: err}
				}
			}

			n.report(latch)
		}
	}
}

// baseline seeds the latch from one unlatched read so a door that is
// already open at boot is not reported as a fresh opening.
func (n *Notifier) baseline() *logic.Latch {
	if n.AssumeClosed {
		return logic.NewLatch(false)
	}
	open, err := n.Reader.Read()
	if err != nil {
		log.Printf("gpio initial read error: %v (assuming closed)", err)
		return logic.NewLatch(false)
	}
	log.Printf("initial door state: %s", logic.StateFromLevel(open))
	return logic.NewLatch(open)
}

func (n *Notifier) report(l *logic.Latch) {
	if n.Status != nil {
		n.Status.Update(l.State(), l.Counts())
	}
}

// write performs exactly one Write call. A short write is a failure.
func write(w io.Writer, p []byte) error {
	n, err := w.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}
