// Package logic contains the pure door-state model.
// This package has NO external dependencies (no GPIO, network, OS, or time.Sleep).
package logic

// DoorState represents the latched state of the door.
type DoorState string

const (
	DoorOpen    DoorState = "OPEN"
	DoorClosed  DoorState = "CLOSED"
	DoorUnknown DoorState = "UNKNOWN"
)

// EventType represents a door transition. The string value is the exact
// payload written to the notification stream.
type EventType string

const (
	EventDoorOpened EventType = "door_opened"
	EventDoorClosed EventType = "door_closed"
)

// Payload returns the raw bytes sent on the wire for this event.
// No framing, no terminator.
func (e EventType) Payload() []byte {
	return []byte(e)
}

// State returns the door state an event reports.
func (e EventType) State() DoorState {
	switch e {
	case EventDoorOpened:
		return DoorOpen
	case EventDoorClosed:
		return DoorClosed
	}
	return DoorUnknown
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Opened int
	Closed int
}
