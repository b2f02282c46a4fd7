package natpunch

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultPunchTimeout bounds a single punch attempt (spec §4.8 step 3,
// matching original_source's HolePuncher timeout default).
const DefaultPunchTimeout = 10 * time.Second

// Puncher attempts to establish a direct TCP connection to a peer behind
// NAT, given the local port this device is already bound to and the
// peer's best-known reachable address.
type Puncher interface {
	Punch(ctx context.Context, localPort int, remoteIP string, remotePort int) (net.Conn, error)
}

// SimultaneousTCP performs a literal simultaneous-connect: it binds the
// outbound socket to localPort with SO_REUSEADDR and dials the peer's
// public address, matching original_source's
// HolePuncher.punch_hole_tcp/simultaneous_connect. This is the default
// puncher (spec.md's literal scenario 5).
type SimultaneousTCP struct{}

// Punch attempts the simultaneous connect, giving up after
// DefaultPunchTimeout.
func (SimultaneousTCP) Punch(ctx context.Context, localPort int, remoteIP string, remotePort int) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultPunchTimeout)
	defer cancel()

	dialer := reuseAddrDialer(localPort)
	conn, err := dialer.DialContext(ctx, "tcp4", fmt.Sprintf("%s:%d", remoteIP, remotePort))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPunchFailed, err)
	}
	return conn, nil
}
