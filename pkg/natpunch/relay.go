package natpunch

import (
	"fmt"
	"net"

	"github.com/pion/logging"
	"github.com/pion/turn/v4"
)

// RelayConfig configures a self-hosted TURN relay, run alongside the
// rendezvous server for the symmetric-NAT pairs SimultaneousTCP cannot
// punch through (spec §4.8 "relay-candidate fallback"). The broker's
// connect path does not use the relay.
type RelayConfig struct {
	// ListenAddr is the UDP address the relay listens on, e.g. ":3478".
	ListenAddr string

	// Realm is the TURN authentication realm advertised to clients.
	Realm string

	// Credentials maps username to long-term-credential password. A
	// deployment typically provisions one shared credential per fleet.
	Credentials map[string]string

	// RelayIP is the public IP address relayed traffic is sourced from.
	RelayIP string

	LoggerFactory logging.LoggerFactory
}

// StartRelay starts a TURN relay server per cfg, matching pion/turn's own
// long-term-credential example wiring. The caller is responsible for
// calling Close on the returned server during shutdown.
func StartRelay(cfg RelayConfig) (*turn.Server, error) {
	udpListener, err := net.ListenPacket("udp4", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("natpunch: listen %s: %w", cfg.ListenAddr, err)
	}

	relayIP := net.ParseIP(cfg.RelayIP)
	if relayIP == nil {
		udpListener.Close()
		return nil, fmt.Errorf("natpunch: invalid relay ip %q", cfg.RelayIP)
	}

	server, err := turn.NewServer(turn.ServerConfig{
		Realm: cfg.Realm,
		AuthHandler: func(username, realm string, srcAddr net.Addr) ([]byte, bool) {
			password, ok := cfg.Credentials[username]
			if !ok {
				return nil, false
			}
			return turn.GenerateAuthKey(username, realm, password), true
		},
		PacketConnConfigs: []turn.PacketConnConfig{
			{
				PacketConn: udpListener,
				RelayAddressGenerator: &turn.RelayAddressGeneratorStatic{
					RelayAddress: relayIP,
					Address:      "0.0.0.0",
				},
			},
		},
		LoggerFactory: cfg.LoggerFactory,
	})
	if err != nil {
		udpListener.Close()
		return nil, fmt.Errorf("natpunch: start turn server: %w", err)
	}
	return server, nil
}
