// Package discovery implements LAN peer discovery (spec C11): an mDNS
// advertisement of this device's presence, and a browser that resolves
// other devices on the same link. This supplements the rendezvous-based
// discovery path (spec §6 scenario 4 "same LAN") with a path that needs
// no internet-reachable service at all.
package discovery

import "time"

// ServiceName is the DNS-SD service type Ghostline advertises and
// browses for.
const ServiceName = "_ghostline._tcp"

// DefaultDomain is the mDNS domain used for all lookups.
const DefaultDomain = "local."

// DefaultBrowseTimeout bounds a Browse call when the caller's context has
// no deadline.
const DefaultBrowseTimeout = 5 * time.Second

// TXT record keys carried in every advertisement (spec §4.11).
const (
	TXTKeyDeviceID    = "device_id"
	TXTKeyFingerprint = "fingerprint"
)

// PeerInfo is a discovered device as resolved from an mDNS entry.
type PeerInfo struct {
	DeviceID    string
	Fingerprint string
	Host        string
	Port        int
	IPs         []string
}
