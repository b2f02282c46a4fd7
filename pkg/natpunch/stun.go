// Package natpunch implements the NAT-traversal primitives behind the
// connection broker (spec C8): STUN-based public address discovery, a
// simultaneous-connect hole-punch strategy, and a self-hostable TURN
// relay for pairs neither can reach directly.
package natpunch

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pion/stun/v3"
)

// DefaultSTUNServers mirrors the public STUN server list from
// original_source's STUNClient.STUN_SERVERS.
var DefaultSTUNServers = []string{
	"stun.l.google.com:19302",
	"stun1.l.google.com:19302",
	"stun2.l.google.com:19302",
	"stun3.l.google.com:19302",
	"stun4.l.google.com:19302",
}

// DefaultSTUNTimeout bounds a single STUN server's round trip.
const DefaultSTUNTimeout = 3 * time.Second

// DiscoverPublicAddress binds a UDP socket on localPort (0 for any) and
// asks each server in turn for this socket's public-facing address,
// returning the first successful XOR-MAPPED-ADDRESS (spec §4.8
// "initialize" STUN step).
func DiscoverPublicAddress(ctx context.Context, localPort int, servers []string) (ip string, port int, err error) {
	if len(servers) == 0 {
		servers = DefaultSTUNServers
	}

	var lastErr error
	for _, server := range servers {
		ip, port, err := probeOne(ctx, localPort, server)
		if err == nil {
			return ip, port, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrSTUNUnreachable, lastErr)
	}
	return "", 0, ErrSTUNUnreachable
}

func probeOne(ctx context.Context, localPort int, server string) (string, int, error) {
	dialer := net.Dialer{
		Timeout:   DefaultSTUNTimeout,
		LocalAddr: &net.UDPAddr{Port: localPort},
	}
	conn, err := dialer.DialContext(ctx, "udp4", server)
	if err != nil {
		return "", 0, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(DefaultSTUNTimeout))

	client, err := stun.NewClient(conn)
	if err != nil {
		return "", 0, err
	}
	defer client.Close()

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)

	var resultIP string
	var resultPort int
	var doErr error
	err = client.Do(message, func(res stun.Event) {
		if res.Error != nil {
			doErr = res.Error
			return
		}
		var xorAddr stun.XORMappedAddress
		if err := xorAddr.GetFrom(res.Message); err != nil {
			doErr = err
			return
		}
		resultIP = xorAddr.IP.String()
		resultPort = xorAddr.Port
	})
	if err != nil {
		return "", 0, err
	}
	if doErr != nil {
		return "", 0, doErr
	}
	return resultIP, resultPort, nil
}
