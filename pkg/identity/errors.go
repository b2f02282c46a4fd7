package identity

import "errors"

// Identity errors.
var (
	// ErrNoStoragePath is returned when Config.StoragePath is empty.
	ErrNoStoragePath = errors.New("identity: no storage path configured")

	// ErrCorruptIdentity is returned when the persisted identity file exists
	// but cannot be parsed.
	ErrCorruptIdentity = errors.New("identity: stored identity file is corrupt")
)
