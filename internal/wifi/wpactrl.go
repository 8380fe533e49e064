package wifi

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// defaultCtrlTimeout bounds a single request when ctx has no deadline.
const defaultCtrlTimeout = 5 * time.Second

var ctrlSeq atomic.Uint32

// ctrlConn is a client for the wpa_supplicant control interface: one
// unixgram socket per interface, text commands, text replies.
//
// A request that times out leaves its reply in flight, so the socket is
// dropped and the next request binds a fresh local address. A late reply
// can then never be read as the answer to a later command.
type ctrlConn struct {
	path  string
	conn  *net.UnixConn
	local string
}

func dialCtrl(path string) (*ctrlConn, error) {
	c := &ctrlConn{path: path}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ctrlConn) open() error {
	local := filepath.Join(os.TempDir(), fmt.Sprintf("door-sensor-wpa-%d-%d", os.Getpid(), ctrlSeq.Add(1)))
	os.Remove(local)

	conn, err := net.DialUnix("unixgram",
		&net.UnixAddr{Name: local, Net: "unixgram"},
		&net.UnixAddr{Name: c.path, Net: "unixgram"})
	if err != nil {
		os.Remove(local)
		return fmt.Errorf("dial wpa_supplicant %s: %w", c.path, err)
	}
	c.conn = conn
	c.local = local
	return nil
}

// drop closes the current socket; the next request re-dials.
func (c *ctrlConn) drop() {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	os.Remove(c.local)
	c.conn = nil
}

// request sends cmd and returns the reply with the trailing newline removed.
// Unsolicited event messages ("<N>...") are skipped. When ctx carries the
// deadline that expired, the error wraps context.DeadlineExceeded.
func (c *ctrlConn) request(ctx context.Context, cmd string) (string, error) {
	name := commandName(cmd)
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if c.conn == nil {
		if err := c.open(); err != nil {
			return "", err
		}
	}

	deadline, fromCtx := ctx.Deadline()
	if !fromCtx {
		deadline = time.Now().Add(defaultCtrlTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return "", c.fail(ctx, name, fromCtx, err)
	}

	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return "", c.fail(ctx, name, fromCtx, err)
		}
		reply := string(buf[:n])
		if strings.HasPrefix(reply, "<") {
			continue
		}
		return strings.TrimRight(reply, "\n"), nil
	}
}

// fail drops the socket after an I/O error and maps a socket deadline that
// came from ctx onto the context error.
func (c *ctrlConn) fail(ctx context.Context, name string, fromCtx bool, err error) error {
	c.drop()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", name, ctxErr)
	}
	if fromCtx && errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%s: %w", name, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// expectOK sends cmd and fails unless the reply is OK.
func (c *ctrlConn) expectOK(ctx context.Context, cmd string) error {
	reply, err := c.request(ctx, cmd)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("%s: %s", commandName(cmd), reply)
	}
	return nil
}

func (c *ctrlConn) close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	os.Remove(c.local)
	c.conn = nil
	return err
}

// commandName returns cmd without arguments that may carry secrets.
// "SET_NETWORK 0 psk ..." becomes "SET_NETWORK psk".
func commandName(cmd string) string {
	f := strings.Fields(cmd)
	switch {
	case len(f) == 0:
		return ""
	case f[0] == "SET_NETWORK" && len(f) >= 3:
		return f[0] + " " + f[2]
	}
	return f[0]
}

// parseStatus parses a STATUS reply (key=value per line).
func parseStatus(reply string) map[string]string {
	m := make(map[string]string)
	for _, line := range strings.Split(reply, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if ok {
			m[k] = v
		}
	}
	return m
}

// addNetwork replaces all configured networks with cfg and returns the
// network id assigned by wpa_supplicant.
func (c *ctrlConn) addNetwork(ctx context.Context, cfg ClientConfig) (string, error) {
	if cfg.Auth != AuthWPA2Personal {
		return "", fmt.Errorf("unsupported auth method %s", cfg.Auth)
	}
	if err := c.expectOK(ctx, "REMOVE_NETWORK all"); err != nil {
		return "", err
	}
	id, err := c.request(ctx, "ADD_NETWORK")
	if err != nil {
		return "", err
	}
	if id == "FAIL" || id == "" {
		return "", errors.New("ADD_NETWORK: FAIL")
	}

	psk := cfg.Passphrase
	if len(psk) != 64 {
		psk = `"` + psk + `"`
	}
	for _, kv := range [][2]string{
		{"ssid", hex.EncodeToString([]byte(cfg.SSID))},
		{"psk", psk},
		{"key_mgmt", "WPA-PSK"},
		{"proto", "RSN"},
		{"scan_ssid", "1"},
	} {
		if err := c.expectOK(ctx, fmt.Sprintf("SET_NETWORK %s %s %s", id, kv[0], kv[1])); err != nil {
			return "", err
		}
	}
	return id, nil
}
