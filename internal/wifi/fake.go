package wifi

import (
	"context"
	"net/netip"
)

// FakeRadio is a test double that records calls and fails on demand.
type FakeRadio struct {
	Name string

	// Per-step errors. A nil error means the step succeeds.
	ConfigureErr error
	StartErr     error
	ConnectErr   error
	AddrErr      error

	// Addr is returned by WaitNetifUp.
	Addr netip.Addr

	// Config is the last configuration applied.
	Config ClientConfig

	// Calls records method names in order.
	Calls []string

	DisconnectErr error
}

// NewFakeRadio creates a FakeRadio that succeeds at every step.
func NewFakeRadio() *FakeRadio {
	return &FakeRadio{
		Name: "wlan0",
		Addr: netip.MustParseAddr("192.168.1.50"),
	}
}

func (f *FakeRadio) Interface() string { return f.Name }

func (f *FakeRadio) Configure(ctx context.Context, cfg ClientConfig) error {
	f.Calls = append(f.Calls, "configure")
	f.Config = cfg
	return f.ConfigureErr
}

func (f *FakeRadio) Start(ctx context.Context) error {
	f.Calls = append(f.Calls, "start")
	return f.StartErr
}

func (f *FakeRadio) Connect(ctx context.Context) error {
	f.Calls = append(f.Calls, "connect")
	return f.ConnectErr
}

func (f *FakeRadio) WaitNetifUp(ctx context.Context) (netip.Addr, error) {
	f.Calls = append(f.Calls, "wait_netif_up")
	if f.AddrErr != nil {
		return netip.Addr{}, f.AddrErr
	}
	return f.Addr, nil
}

func (f *FakeRadio) Disconnect() error {
	f.Calls = append(f.Calls, "disconnect")
	return f.DisconnectErr
}
