// Package identity manages the stable per-device identity: a UUID, a
// human-readable name and a short fingerprint derived from the UUID.
// Identity is bound to the device installation, never to an account.
package identity

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ghostline-signal/ghostline/pkg/crypto"
)

// FingerprintLen is the number of hex digits kept from SHA-256(device id).
const FingerprintLen = 16

// Config configures a Device.
type Config struct {
	// StoragePath is the identity JSON file path. Required.
	StoragePath string

	// DeviceName seeds a freshly-created identity. If empty, defaults to
	// "Ghostline-<hostname>".
	DeviceName string
}

// record is the on-disk representation, persisted with owner-only
// permissions (spec §6, "Persistent on-disk state").
type record struct {
	DeviceID          string `json:"device_id"`
	DeviceName        string `json:"device_name"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

// Device is a loaded or newly-created device identity.
type Device struct {
	path string

	mu          sync.RWMutex
	id          string
	name        string
	fingerprint string
}

// Load loads the identity from cfg.StoragePath, creating one on first run.
func Load(cfg Config) (*Device, error) {
	if cfg.StoragePath == "" {
		return nil, ErrNoStoragePath
	}

	d := &Device{path: cfg.StoragePath}

	if _, err := os.Stat(cfg.StoragePath); err == nil {
		if err := d.load(); err != nil {
			return nil, err
		}
		return d, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.StoragePath), 0700); err != nil {
		return nil, fmt.Errorf("identity: create storage dir: %w", err)
	}

	name := cfg.DeviceName
	if name == "" {
		name = defaultDeviceName()
	}
	if err := d.create(name); err != nil {
		return nil, err
	}
	return d, nil
}

func defaultDeviceName() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "device"
	}
	return "Ghostline-" + hostname
}

func (d *Device) create(name string) error {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("identity: generate device id: %w", err)
	}

	d.mu.Lock()
	d.id = id.String()
	d.name = name
	d.fingerprint = Fingerprint(d.id)
	d.mu.Unlock()

	return d.save()
}

func (d *Device) load() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("identity: read identity file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptIdentity, err)
	}

	d.mu.Lock()
	d.id = rec.DeviceID
	d.name = rec.DeviceName
	d.fingerprint = rec.DeviceFingerprint
	d.mu.Unlock()
	return nil
}

func (d *Device) save() error {
	d.mu.RLock()
	rec := record{DeviceID: d.id, DeviceName: d.name, DeviceFingerprint: d.fingerprint}
	d.mu.RUnlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("identity: encode identity: %w", err)
	}

	if err := os.WriteFile(d.path, data, 0600); err != nil {
		return fmt.Errorf("identity: write identity file: %w", err)
	}
	return os.Chmod(d.path, 0600)
}

// ID returns the device's UUID.
func (d *Device) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

// Name returns the current device name.
func (d *Device) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// Fingerprint returns the device fingerprint.
func (d *Device) Fingerprint() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fingerprint
}

// SetName updates the device's display name and persists it. The device ID
// and fingerprint are immutable once created.
func (d *Device) SetName(name string) error {
	d.mu.Lock()
	d.name = name
	d.mu.Unlock()
	return d.save()
}

// Fingerprint derives the device fingerprint from a device id: the first
// FingerprintLen hex digits of SHA-256(id), uppercased.
func Fingerprint(deviceID string) string {
	sum := crypto.SHA256([]byte(deviceID))
	hexDigest := hex.EncodeToString(sum[:])
	return strings.ToUpper(hexDigest[:FingerprintLen])
}

// FormatFingerprint groups a fingerprint into 4-character blocks for
// display, e.g. "AB12-CD34-EF56-7890".
func FormatFingerprint(fp string) string {
	if len(fp) != FingerprintLen {
		return fp
	}
	groups := make([]string, 0, 4)
	for i := 0; i < FingerprintLen; i += 4 {
		groups = append(groups, fp[i:i+4])
	}
	return strings.Join(groups, "-")
}
