//go:build !linux

package wifi

import "errors"

func setLinkUp(iface string) error {
	return errors.New("wifi: link control not supported on this platform (requires Linux)")
}
