package rendezvous

import (
	"sync"
	"time"

	"github.com/pion/logging"
)

// Default expiry/TTL/sweep parameters (spec §3, §4.6).
const (
	DefaultExpiry        = 300 * time.Second
	DefaultRequestTTL    = 30 * time.Second
	DefaultSweepInterval = 60 * time.Second
)

// Config configures a Registry.
type Config struct {
	// Expiry is how long a device record survives without a heartbeat.
	Expiry time.Duration
	// RequestTTL is how long a pending connect request survives.
	RequestTTL time.Duration
	// SweepInterval is the background sweep period.
	SweepInterval time.Duration
	// LoggerFactory builds the registry's logger. If nil, logging is
	// disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.Expiry <= 0 {
		c.Expiry = DefaultExpiry
	}
	if c.RequestTTL <= 0 {
		c.RequestTTL = DefaultRequestTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}

// Registry is the in-process rendezvous state: a device table and a
// connect-request table, both serialized under a single mutex (spec §4.6,
// §5 "the registry's device and request tables share one mutex").
type Registry struct {
	cfg Config
	log logging.LeveledLogger

	mu       sync.Mutex
	devices  map[string]DeviceRecord
	requests map[string][]ConnectRequest // target_id -> pending requests

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New builds a Registry from cfg but does not start its sweep; call Start
// for that.
func New(cfg Config) *Registry {
	cfg.applyDefaults()
	r := &Registry{
		cfg:      cfg,
		devices:  make(map[string]DeviceRecord),
		requests: make(map[string][]ConnectRequest),
		closeCh:  make(chan struct{}),
	}
	if cfg.LoggerFactory != nil {
		r.log = cfg.LoggerFactory.NewLogger("rendezvous")
	}
	return r
}

// Start launches the background sweep goroutine.
func (r *Registry) Start() {
	r.wg.Add(1)
	go r.sweepLoop()
}

// Stop halts the background sweep.
func (r *Registry) Stop() {
	close(r.closeCh)
	r.wg.Wait()
}

func (r *Registry) sweepLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.closeCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, d := range r.devices {
		if d.expired(now, r.cfg.Expiry) {
			delete(r.devices, id)
		}
	}

	for target, reqs := range r.requests {
		kept := reqs[:0]
		for _, req := range reqs {
			if !req.expired(now, r.cfg.RequestTTL) {
				kept = append(kept, req)
			}
		}
		if len(kept) == 0 {
			delete(r.requests, target)
		} else {
			r.requests[target] = kept
		}
	}

	if r.log != nil {
		r.log.Debugf("sweep complete: %d devices, %d request lists", len(r.devices), len(r.requests))
	}
}

// Register upserts deviceID's record, preserving RegisteredAt on update.
func (r *Registry) Register(deviceID string, public Addr, local *Addr) DeviceRecord {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	registeredAt := now
	if existing, ok := r.devices[deviceID]; ok {
		registeredAt = existing.RegisteredAt
	}

	rec := DeviceRecord{
		DeviceID:     deviceID,
		PublicAddr:   public,
		LocalAddr:    local,
		LastSeen:     now,
		RegisteredAt: registeredAt,
	}
	r.devices[deviceID] = rec
	return rec
}

// Lookup returns deviceID's record if present and unexpired; otherwise it
// deletes any stale entry and reports ErrNotFound.
func (r *Registry) Lookup(deviceID string) (DeviceRecord, error) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupLocked(deviceID, now)
}

// lookupLocked requires r.mu to be held.
func (r *Registry) lookupLocked(deviceID string, now time.Time) (DeviceRecord, error) {
	rec, ok := r.devices[deviceID]
	if !ok {
		return DeviceRecord{}, ErrNotFound
	}
	if rec.expired(now, r.cfg.Expiry) {
		delete(r.devices, deviceID)
		return DeviceRecord{}, ErrNotFound
	}
	return rec, nil
}

// Heartbeat updates last_seen for deviceID if it is present, optionally
// refreshing its addresses.
func (r *Registry) Heartbeat(deviceID string, public *Addr, local *Addr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[deviceID]
	if !ok {
		return false
	}
	rec.LastSeen = time.Now()
	if public != nil {
		rec.PublicAddr = *public
	}
	if local != nil {
		rec.LocalAddr = local
	}
	r.devices[deviceID] = rec
	return true
}

// Unregister removes deviceID's record, if present.
func (r *Registry) Unregister(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, deviceID)
}

// ConnectRequest validates that both requesterID and targetID are
// registered and unexpired, then records a deduplicated (by requester)
// pending request and returns the target's record (spec §4.6
// "connect_request").
func (r *Registry) ConnectRequest(requesterID, targetID string) (DeviceRecord, error) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	requester, err := r.lookupLocked(requesterID, now)
	if err != nil {
		return DeviceRecord{}, ErrRequesterNotFound
	}
	target, err := r.lookupLocked(targetID, now)
	if err != nil {
		return DeviceRecord{}, ErrNotFound
	}

	reqs := r.requests[targetID]
	filtered := reqs[:0]
	for _, req := range reqs {
		if req.RequesterID != requesterID {
			filtered = append(filtered, req)
		}
	}
	filtered = append(filtered, ConnectRequest{
		TargetID:      targetID,
		RequesterID:   requesterID,
		RequesterInfo: requester,
		Timestamp:     now,
	})
	r.requests[targetID] = filtered

	return target, nil
}

// GetConnectRequests returns the non-expired pending requests for
// deviceID, trimming expired entries in place.
func (r *Registry) GetConnectRequests(deviceID string) []ConnectRequest {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	reqs := r.requests[deviceID]
	kept := reqs[:0]
	for _, req := range reqs {
		if !req.expired(now, r.cfg.RequestTTL) {
			kept = append(kept, req)
		}
	}
	if len(kept) == 0 {
		delete(r.requests, deviceID)
		return nil
	}
	r.requests[deviceID] = kept

	out := make([]ConnectRequest, len(kept))
	copy(out, kept)
	return out
}

// ClearConnectRequest removes the pending entry matching
// (targetID, requesterID), reporting whether one was removed.
func (r *Registry) ClearConnectRequest(targetID, requesterID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reqs := r.requests[targetID]
	for i, req := range reqs {
		if req.RequesterID == requesterID {
			r.requests[targetID] = append(reqs[:i], reqs[i+1:]...)
			if len(r.requests[targetID]) == 0 {
				delete(r.requests, targetID)
			}
			return true
		}
	}
	return false
}

// Stats reports aggregate counts for the /stats endpoint.
type Stats struct {
	Devices        int `json:"devices"`
	PendingTargets int `json:"pending_targets"`
}

// Stats returns aggregate counts of registered devices and targets with
// pending connect requests.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Devices: len(r.devices), PendingTargets: len(r.requests)}
}
