// Package health performs cached liveness probes against tool servers.
// Probes never surface as errors: an unreachable server yields a down
// record, and a failed probe is cached so known-bad servers are not
// hammered inside the TTL window.
package health

import (
	"context"
	"sync"
	"time"

	"mcpflow/internal/connection"
	"mcpflow/internal/reporting"
	"mcpflow/pkg/logging"
)

// Status is the probe outcome for a server.
type Status string

const (
	StatusHealthy Status = "healthy"
	StatusDown    Status = "down"
)

const (
	// cacheTTL is how long a record stays fresh before re-probing.
	cacheTTL = 60 * time.Second

	// probeTimeout bounds the introspection call used as the probe.
	probeTimeout = 5 * time.Second

	// maxErrorHistory caps the rolling error list per server.
	maxErrorHistory = 5
)

// Record is the cached result of a liveness probe.
type Record struct {
	ServerID    string        `json:"server_id"`
	Status      Status        `json:"status"`
	Latency     time.Duration `json:"latency"`
	LastChecked time.Time     `json:"last_checked"`
	Errors      []string      `json:"errors,omitempty"`
}

// Monitor caches one health record per server.
type Monitor struct {
	mu          sync.Mutex
	cache       map[string]Record
	connections *connection.Manager
	bus         reporting.EventBus
	now         func() time.Time
}

// NewMonitor creates a health monitor probing through the given
// connection manager. The bus may be nil.
func NewMonitor(connections *connection.Manager, bus reporting.EventBus) *Monitor {
	return &Monitor{
		cache:       make(map[string]Record),
		connections: connections,
		bus:         bus,
		now:         time.Now,
	}
}

// SetClock replaces the time source. Used by tests to age the cache.
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Check returns the health record for a server, probing only when the
// cached record is older than the TTL. It never returns an error; probe
// failures are carried inside the record.
func (m *Monitor) Check(ctx context.Context, serverID string) Record {
	m.mu.Lock()
	now := m.now()
	if record, exists := m.cache[serverID]; exists && now.Sub(record.LastChecked) < cacheTTL {
		m.mu.Unlock()
		return record
	}
	previousErrors := m.cache[serverID].Errors
	m.mu.Unlock()

	record, probeErr := m.probe(ctx, serverID, previousErrors)

	m.mu.Lock()
	m.cache[serverID] = record
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(reporting.NewHealthCheckEvent(serverID, record.Status == StatusHealthy, record.Latency, probeErr))
	}
	return record
}

// probe performs the cheapest available introspection call: listing the
// server's tools.
func (m *Monitor) probe(ctx context.Context, serverID string, previousErrors []string) (Record, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := m.currentTime()
	client, err := m.connections.Get(probeCtx, serverID, "")
	if err == nil {
		_, err = client.ListTools(probeCtx)
	}
	latency := m.currentTime().Sub(start)

	record := Record{
		ServerID:    serverID,
		Latency:     latency,
		LastChecked: m.currentTime(),
	}

	if err != nil {
		record.Status = StatusDown
		record.Errors = appendError(previousErrors, err.Error())
		// Drop the server's pooled transports so the next probe dials
		// fresh instead of reusing a dead handle.
		m.connections.Close(serverID)
		logging.Warn("Health", "Probe failed for %s: %v", serverID, err)
		return record, err
	}

	record.Status = StatusHealthy
	logging.Debug("Health", "Server %s healthy (%s)", serverID, latency)
	return record, nil
}

func (m *Monitor) currentTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now()
}

func appendError(history []string, message string) []string {
	history = append(history, message)
	if len(history) > maxErrorHistory {
		history = history[len(history)-maxErrorHistory:]
	}
	return history
}

// Reset clears the cache. Called on reconfiguration so records never
// describe servers from a previous epoch.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]Record)
}
