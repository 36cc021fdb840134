//go:build unix

package snmp

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// setBroadcast enables SO_BROADCAST so discovery requests may be sent to a
// subnet or limited broadcast address.
func setBroadcast(c syscall.RawConn) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		//nolint:gosec // G115: kernel file descriptors fit in int.
		if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); sockErr != nil {
			sockErr = fmt.Errorf("set SO_BROADCAST: %w", sockErr)
		}
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}

	return sockErr
}

// isInterrupted reports whether a read was cut short by a signal.
func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
