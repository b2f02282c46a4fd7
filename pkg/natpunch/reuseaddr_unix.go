//go:build !windows

package natpunch

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddrDialer returns a Dialer whose outbound socket is bound to
// localPort with SO_REUSEADDR set, so it can share the port with the
// already-listening peer transport (spec §4.8's simultaneous-connect
// requirement).
func reuseAddrDialer(localPort int) net.Dialer {
	return net.Dialer{
		LocalAddr: &net.TCPAddr{Port: localPort},
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}
