package wifi

import (
	"context"
	"log"
	"net/netip"
	"time"
)

// Session is the handle to an established wireless session. Dropping it
// (calling Close) tears connectivity down, so the owner keeps it for the
// life of the process.
type Session struct {
	radio       Radio
	SSID        string
	Interface   string
	Addr        netip.Addr
	Established time.Time
}

// Close disconnects the radio.
func (s *Session) Close() error {
	return s.radio.Disconnect()
}

// Establisher drives a Radio through the establishment sequence.
// Not safe for concurrent use against the same radio.
type Establisher struct {
	radio  Radio
	onStep func(Step)
	now    func() time.Time
}

// NewEstablisher creates an Establisher for radio.
func NewEstablisher(radio Radio) *Establisher {
	return &Establisher{radio: radio, now: time.Now}
}

// OnStep registers fn to be called each time a step is reached.
func (e *Establisher) OnStep(fn func(Step)) {
	e.onStep = fn
}

// Establish runs configure, start, associate and address acquisition in
// order. The first failure aborts the sequence and is returned as a
// *StepError; later steps are not attempted. There is no retry.
func (e *Establisher) Establish(ctx context.Context, creds Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, &StepError{Step: StepConfigured, Err: err}
	}

	cfg := ClientConfig{
		SSID:       creds.SSID,
		Passphrase: creds.Passphrase,
		Auth:       creds.Auth,
	}
	if err := e.radio.Configure(ctx, cfg); err != nil {
		return nil, e.fail(StepConfigured, err)
	}
	e.reached(StepConfigured)

	if err := e.radio.Start(ctx); err != nil {
		return nil, e.fail(StepStarted, err)
	}
	e.reached(StepStarted)
	log.Printf("wifi: started on %s", e.radio.Interface())

	if err := e.radio.Connect(ctx); err != nil {
		return nil, e.fail(StepAssociated, err)
	}
	e.reached(StepAssociated)
	log.Printf("wifi: connected to %q", creds.SSID)

	addr, err := e.radio.WaitNetifUp(ctx)
	if err != nil {
		return nil, e.fail(StepNetworkReady, err)
	}
	e.reached(StepNetworkReady)
	log.Printf("wifi: netif up, address %s", addr)

	return &Session{
		radio:       e.radio,
		SSID:        creds.SSID,
		Interface:   e.radio.Interface(),
		Addr:        addr,
		Established: e.now(),
	}, nil
}

func (e *Establisher) reached(s Step) {
	if e.onStep != nil {
		e.onStep(s)
	}
}

// fail releases the radio so a later Establish starts from a clean state.
func (e *Establisher) fail(s Step, err error) error {
	if derr := e.radio.Disconnect(); derr != nil {
		log.Printf("wifi: release after failed %s step: %v", s, derr)
	}
	return &StepError{Step: s, Err: err}
}
