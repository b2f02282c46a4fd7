// Package rendezvousclient implements the rendezvous client (spec C7): a
// stateless HTTP request wrapper plus a background heartbeat loop. Every
// failure is swallowed to a nil/false return so the connection broker
// degrades gracefully when the rendezvous service is unreachable.
package rendezvousclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pion/logging"
)

// DefaultRequestTimeout bounds every HTTP call (spec §5 "Rendezvous HTTP
// calls block up to 5 s").
const DefaultRequestTimeout = 5 * time.Second

// DefaultHeartbeatInterval is the period of the background heartbeat loop
// (spec §4.7 "heartbeat every 60 s").
const DefaultHeartbeatInterval = 60 * time.Second

// Addr is a (host, port) pair.
type Addr struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// DeviceInfo mirrors the registry's DeviceRecord as seen by a client.
type DeviceInfo struct {
	DeviceID     string    `json:"device_id"`
	PublicAddr   Addr      `json:"public_addr"`
	LocalAddr    *Addr     `json:"local_addr,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ConnectRequestInfo mirrors the registry's pending ConnectRequest.
type ConnectRequestInfo struct {
	TargetID      string     `json:"target_id"`
	RequesterID   string     `json:"requester_id"`
	RequesterInfo DeviceInfo `json:"requester_info"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Config configures a Client.
type Config struct {
	// ServerURL is the rendezvous server's base URL, e.g.
	// "http://rendezvous.example:8080". Required.
	ServerURL string

	// DeviceID identifies this device in every request.
	DeviceID string

	// RequestTimeout overrides DefaultRequestTimeout when non-zero.
	RequestTimeout time.Duration

	// HeartbeatInterval overrides DefaultHeartbeatInterval when non-zero.
	HeartbeatInterval time.Duration

	// LoggerFactory builds the client's logger. If nil, logging is
	// disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
}

// Client is a stateless HTTP wrapper around the rendezvous API, plus an
// optional background heartbeat loop.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        logging.LeveledLogger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
	if cfg.LoggerFactory != nil {
		c.log = cfg.LoggerFactory.NewLogger("rendezvous-client")
	}
	return c
}

type apiRequest struct {
	Action      string `json:"action"`
	DeviceID    string `json:"device_id"`
	PublicAddr  *Addr  `json:"public_addr,omitempty"`
	LocalAddr   *Addr  `json:"local_addr,omitempty"`
	RequesterID string `json:"requester_id,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

type apiResponse struct {
	Status   string               `json:"status"`
	Device   *DeviceInfo          `json:"device_info"`
	Target   *DeviceInfo          `json:"target_info"`
	Requests []ConnectRequestInfo `json:"requests"`
	Cleared  bool                 `json:"cleared"`
}

func (c *Client) call(req apiRequest) (*apiResponse, error) {
	req.Timestamp = time.Now().Unix()
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServerURL+"/api", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Status != "ok" {
		return nil, fmt.Errorf("rendezvousclient: %s", out.Status)
	}
	return &out, nil
}

// Register registers this device's addresses. Returns false on any
// failure; the broker continues without the rendezvous.
func (c *Client) Register(public Addr, local *Addr) bool {
	_, err := c.call(apiRequest{Action: "register", DeviceID: c.cfg.DeviceID, PublicAddr: &public, LocalAddr: local})
	if err != nil && c.log != nil {
		c.log.Warnf("register failed: %v", err)
	}
	return err == nil
}

// Heartbeat sends a one-shot heartbeat. Used internally by StartHeartbeat
// and exposed for callers that want to drive it manually.
func (c *Client) Heartbeat(public *Addr, local *Addr) bool {
	_, err := c.call(apiRequest{Action: "heartbeat", DeviceID: c.cfg.DeviceID, PublicAddr: public, LocalAddr: local})
	return err == nil
}

// Lookup resolves a device's record, or nil on any failure or not-found.
func (c *Client) Lookup(deviceID string) *DeviceInfo {
	resp, err := c.call(apiRequest{Action: "lookup", DeviceID: deviceID})
	if err != nil {
		return nil
	}
	return resp.Device
}

// Unregister removes this device's record.
func (c *Client) Unregister() bool {
	_, err := c.call(apiRequest{Action: "unregister", DeviceID: c.cfg.DeviceID})
	return err == nil
}

// ConnectRequest asks the rendezvous to notify targetID of a pending
// connection from this device, returning the target's record on success
// or nil on any failure (spec §4.8 step 1).
func (c *Client) ConnectRequest(targetID string) *DeviceInfo {
	resp, err := c.call(apiRequest{Action: "connect_request", RequesterID: c.cfg.DeviceID, TargetID: targetID})
	if err != nil {
		return nil
	}
	return resp.Target
}

// GetConnectRequests returns pending requests for this device, or nil on
// any failure.
func (c *Client) GetConnectRequests() []ConnectRequestInfo {
	resp, err := c.call(apiRequest{Action: "get_connect_requests", DeviceID: c.cfg.DeviceID})
	if err != nil {
		return nil
	}
	return resp.Requests
}

// ClearConnectRequest clears a pending request matching (targetID,
// requesterID == this device). Call this after successfully connecting
// to a device this client itself requested a connection to.
func (c *Client) ClearConnectRequest(targetID string) bool {
	resp, err := c.call(apiRequest{Action: "clear_connect_request", TargetID: targetID, RequesterID: c.cfg.DeviceID})
	if err != nil {
		return false
	}
	return resp.Cleared
}

// ClearIncomingRequest clears a pending request matching (targetID ==
// this device, requesterID). Call this after successfully connecting
// back to a device whose incoming connect request this client answered.
func (c *Client) ClearIncomingRequest(requesterID string) bool {
	resp, err := c.call(apiRequest{Action: "clear_connect_request", TargetID: c.cfg.DeviceID, RequesterID: requesterID})
	if err != nil {
		return false
	}
	return resp.Cleared
}

// StartHeartbeat launches the background heartbeat loop, sending a
// heartbeat every HeartbeatInterval until StopHeartbeat is called (spec
// §4.7, §5 "Background task lifecycle").
func (c *Client) StartHeartbeat(public Addr, local *Addr) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.Heartbeat(&public, local)
			}
		}
	}()
}

// StopHeartbeat stops the background heartbeat loop, if running.
func (c *Client) StopHeartbeat() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
}
