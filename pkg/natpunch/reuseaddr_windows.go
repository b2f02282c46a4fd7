//go:build windows

package natpunch

import "net"

// reuseAddrDialer on Windows dials without SO_REUSEADDR — a simultaneous
// connect from an already-bound listening port is not portable there, so
// the dial simply uses an ephemeral source port.
func reuseAddrDialer(localPort int) net.Dialer {
	return net.Dialer{}
}
