//go:build !unix

package snmp

import "syscall"

func setBroadcast(syscall.RawConn) error {
	return nil
}

func isInterrupted(error) bool {
	return false
}
