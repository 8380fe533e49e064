// Package wifi brings the node from "radio off" to "IP-reachable on the
// target network". The sequence is linear (configure, start, associate,
// wait for an address) and has no retry policy of its own: the first
// failure is returned and the caller decides what to do.
package wifi

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

// AuthMethod is the wireless authentication scheme.
type AuthMethod int

const (
	// AuthWPA2Personal is WPA2 with a pre-shared key. It is the only
	// supported method.
	AuthWPA2Personal AuthMethod = iota
)

func (a AuthMethod) String() string {
	switch a {
	case AuthWPA2Personal:
		return "WPA2-Personal"
	}
	return fmt.Sprintf("AuthMethod(%d)", int(a))
}

// Credentials identify the network to join. Supplied at boot, never persisted.
type Credentials struct {
	SSID       string
	Passphrase string
	Auth       AuthMethod
}

// Validate checks the credentials against WPA2-Personal limits.
func (c Credentials) Validate() error {
	if c.Auth != AuthWPA2Personal {
		return fmt.Errorf("unsupported auth method %s", c.Auth)
	}
	if n := len(c.SSID); n == 0 || n > 32 {
		return fmt.Errorf("ssid must be 1-32 bytes, got %d", n)
	}
	if !validPassphrase(c.Passphrase) {
		return errors.New("passphrase must be 8-63 printable ASCII characters or 64 hex digits")
	}
	return nil
}

func validPassphrase(p string) bool {
	if len(p) == 64 {
		for _, r := range p {
			if !isHex(r) {
				return false
			}
		}
		return true
	}
	if len(p) < 8 || len(p) > 63 {
		return false
	}
	for _, r := range p {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// ClientConfig is what gets applied to the radio. There is deliberately no
// BSSID pin and no fixed channel: the radio picks any AP advertising SSID.
type ClientConfig struct {
	SSID       string
	Passphrase string
	Auth       AuthMethod
}

// Radio is the platform wireless interface. Each method corresponds to one
// step of the establishment sequence.
type Radio interface {
	// Interface returns the network interface name (e.g. wlan0).
	Interface() string

	// Configure applies the client configuration.
	Configure(ctx context.Context, cfg ClientConfig) error

	// Start activates the radio.
	Start(ctx context.Context) error

	// Connect associates with the access point and blocks until the
	// handshake completes or fails.
	Connect(ctx context.Context) error

	// WaitNetifUp blocks until an address is bound to the interface.
	WaitNetifUp(ctx context.Context) (netip.Addr, error)

	// Disconnect tears the association down and releases the radio.
	Disconnect() error
}

// Step is a state of the establishment sequence.
type Step int

const (
	StepIdle Step = iota
	StepConfigured
	StepStarted
	StepAssociated
	StepNetworkReady
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepConfigured:
		return "configured"
	case StepStarted:
		return "started"
	case StepAssociated:
		return "associated"
	case StepNetworkReady:
		return "network-ready"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Failure kinds, one per step. Match with errors.Is.
var (
	ErrConfiguration      = errors.New("configuration rejected")
	ErrStart              = errors.New("radio start failed")
	ErrAssociation        = errors.New("association failed")
	ErrAddressAcquisition = errors.New("address acquisition failed")
)

func (s Step) failure() error {
	switch s {
	case StepConfigured:
		return ErrConfiguration
	case StepStarted:
		return ErrStart
	case StepAssociated:
		return ErrAssociation
	case StepNetworkReady:
		return ErrAddressAcquisition
	}
	return nil
}

// StepError reports the step that could not be reached.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("wifi: %v: %v", e.Step.failure(), e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.Step.failure(), e.Err}
}
