package wifi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"path/filepath"
	"time"
)

// LinuxRadioConfig configures a LinuxRadio.
type LinuxRadioConfig struct {
	Interface        string        // e.g. wlan0
	ControlDir       string        // wpa_supplicant ctrl_interface directory
	AssociateTimeout time.Duration // bound on waiting for wpa_state=COMPLETED
	AddressTimeout   time.Duration // bound on waiting for an IPv4 address
	PollInterval     time.Duration
}

// LinuxRadio drives a wpa_supplicant-managed interface. Address
// provisioning (DHCP or static) is left to the platform network stack;
// WaitNetifUp only observes it.
type LinuxRadio struct {
	cfg   LinuxRadioConfig
	ctrl  *ctrlConn
	netID string

	// seams for tests
	linkUp func(iface string) error
	addrs  func(iface string) ([]net.Addr, error)
}

// NewLinuxRadio creates a radio for cfg.Interface. Nothing is touched until
// Configure is called.
func NewLinuxRadio(cfg LinuxRadioConfig) *LinuxRadio {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	return &LinuxRadio{
		cfg:    cfg,
		linkUp: setLinkUp,
		addrs:  interfaceAddrs,
	}
}

func (r *LinuxRadio) Interface() string { return r.cfg.Interface }

// Configure replaces wpa_supplicant's network list with cfg.
func (r *LinuxRadio) Configure(ctx context.Context, cfg ClientConfig) error {
	if r.ctrl == nil {
		c, err := dialCtrl(filepath.Join(r.cfg.ControlDir, r.cfg.Interface))
		if err != nil {
			return err
		}
		r.ctrl = c
	}
	id, err := r.ctrl.addNetwork(ctx, cfg)
	if err != nil {
		return err
	}
	r.netID = id
	return nil
}

// Start brings the link up and checks wpa_supplicant is responsive.
func (r *LinuxRadio) Start(ctx context.Context) error {
	if r.ctrl == nil {
		return fmt.Errorf("not configured")
	}
	if err := r.linkUp(r.cfg.Interface); err != nil {
		return fmt.Errorf("link up %s: %w", r.cfg.Interface, err)
	}
	reply, err := r.ctrl.request(ctx, "PING")
	if err != nil {
		return err
	}
	if reply != "PONG" {
		return fmt.Errorf("PING: unexpected reply %q", reply)
	}
	return nil
}

// Connect selects the configured network and waits for the handshake to
// complete.
func (r *LinuxRadio) Connect(ctx context.Context) error {
	if r.ctrl == nil || r.netID == "" {
		return fmt.Errorf("not configured")
	}
	if err := r.ctrl.expectOK(ctx, "SELECT_NETWORK "+r.netID); err != nil {
		return err
	}

	if r.cfg.AssociateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.AssociateTimeout)
		defer cancel()
	}

	last := ""
	err := pollUntil(ctx, r.cfg.PollInterval, func() (bool, error) {
		reply, err := r.ctrl.request(ctx, "STATUS")
		if err != nil {
			return false, err
		}
		last = parseStatus(reply)["wpa_state"]
		return last == "COMPLETED", nil
	})
	if err != nil {
		cause := ctx.Err()
		if cause == nil && errors.Is(err, context.DeadlineExceeded) {
			cause = context.DeadlineExceeded
		}
		if cause != nil {
			return fmt.Errorf("not associated (wpa_state=%s): %w", last, cause)
		}
		return err
	}
	return nil
}

// WaitNetifUp waits for a global unicast IPv4 address on the interface.
func (r *LinuxRadio) WaitNetifUp(ctx context.Context) (netip.Addr, error) {
	if r.cfg.AddressTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.AddressTimeout)
		defer cancel()
	}

	var addr netip.Addr
	err := pollUntil(ctx, r.cfg.PollInterval, func() (bool, error) {
		addrs, err := r.addrs(r.cfg.Interface)
		if err != nil {
			// The interface can briefly vanish while the driver settles.
			return false, nil
		}
		a, ok := firstIPv4(addrs)
		if ok {
			addr = a
		}
		return ok, nil
	})
	if err != nil {
		return netip.Addr{}, fmt.Errorf("no address on %s: %w", r.cfg.Interface, err)
	}
	return addr, nil
}

// Disconnect drops the association and closes the control socket.
func (r *LinuxRadio) Disconnect() error {
	if r.ctrl == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultCtrlTimeout)
	defer cancel()
	err := r.ctrl.expectOK(ctx, "DISCONNECT")
	if cerr := r.ctrl.close(); err == nil {
		err = cerr
	}
	r.ctrl = nil
	r.netID = ""
	return err
}

func interfaceAddrs(iface string) ([]net.Addr, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, err
	}
	return ifi.Addrs()
}

// firstIPv4 returns the first global unicast IPv4 address in addrs.
func firstIPv4(addrs []net.Addr) (netip.Addr, bool) {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}
		ip4 := ip.To4()
		if ip4 == nil || !ip4.IsGlobalUnicast() {
			continue
		}
		if na, ok := netip.AddrFromSlice(ip4); ok {
			return na, true
		}
	}
	return netip.Addr{}, false
}

// pollUntil calls fn immediately and then every interval until it reports
// done, returns an error, or ctx ends.
func pollUntil(ctx context.Context, interval time.Duration, fn func() (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		done, err := fn()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
