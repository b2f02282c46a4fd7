package natpunch

import "errors"

var (
	// ErrSTUNUnreachable is returned when every configured STUN server
	// fails to respond.
	ErrSTUNUnreachable = errors.New("natpunch: no stun server responded")

	// ErrPunchFailed is returned when a Puncher could not establish a
	// connection within its timeout.
	ErrPunchFailed = errors.New("natpunch: hole punch failed")

	// ErrUnsupportedPlatform reports a platform without SO_REUSEADDR
	// support for outbound connect. SimultaneousTCP does not return it: on
	// Windows it dials from an ephemeral source port instead.
	ErrUnsupportedPlatform = errors.New("natpunch: unsupported platform")
)
