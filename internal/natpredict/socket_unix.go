//go:build linux || darwin

package natpredict

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setSimultaneousBind configures a dial socket for simultaneous-open
// hole-punching: SO_REUSEADDR and SO_REUSEPORT let multiple outbound dials
// share the same local port the Node listens on.
func setSimultaneousBind(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
