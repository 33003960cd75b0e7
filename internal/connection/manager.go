// Package connection owns the pool of live tool server transports,
// keyed by (server, task). Transports are created lazily from merged
// configuration and closed on teardown or reconfiguration.
package connection

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"mcpflow/internal/config"
	"mcpflow/internal/naming"
	"mcpflow/internal/override"
	"mcpflow/internal/registry"
	"mcpflow/pkg/logging"
)

// baseTaskKey is the key segment used when a connection is not scoped to
// any task.
const baseTaskKey = "base"

// envPrefix is prepended to environment variables synthesized from
// configuration values.
const envPrefix = "MCP_"

// inflightDial tracks a transport creation in progress so concurrent Get
// calls for the same key share one dial instead of racing independent
// spawns.
type inflightDial struct {
	done   chan struct{}
	client ToolClient
	err    error
}

// Manager owns every live connection. At most one transport exists per
// (server, task) key.
type Manager struct {
	mu       sync.Mutex
	clients  map[string]ToolClient
	inflight map[string]*inflightDial

	registry  *registry.Registry
	overrides *override.Resolver
	dial      DialFunc
}

// NewManager creates a connection manager backed by the given registry
// and override resolver.
func NewManager(reg *registry.Registry, overrides *override.Resolver) *Manager {
	return &Manager{
		clients:   make(map[string]ToolClient),
		inflight:  make(map[string]*inflightDial),
		registry:  reg,
		overrides: overrides,
		dial:      DialMCP,
	}
}

// SetDialFunc replaces the transport dialer. Used by tests.
func (m *Manager) SetDialFunc(dial DialFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dial = dial
}

// Key builds the cache key for a (server, task) pair.
func Key(serverID, taskID string) string {
	if taskID == "" {
		taskID = baseTaskKey
	}
	return serverID + ":" + taskID
}

// Get returns the live transport for a (server, task) pair, opening one
// if necessary. Concurrent calls for the same uninitialized key share a
// single in-flight creation.
func (m *Manager) Get(ctx context.Context, serverID, taskID string) (ToolClient, error) {
	key := Key(serverID, taskID)

	m.mu.Lock()
	if client, exists := m.clients[key]; exists {
		m.mu.Unlock()
		return client, nil
	}
	if pending, exists := m.inflight[key]; exists {
		m.mu.Unlock()
		select {
		case <-pending.done:
			return pending.client, pending.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	pending := &inflightDial{done: make(chan struct{})}
	m.inflight[key] = pending
	dial := m.dial
	m.mu.Unlock()

	client, err := m.open(ctx, serverID, taskID, dial)

	m.mu.Lock()
	pending.client = client
	pending.err = err
	delete(m.inflight, key)
	if err == nil {
		// If a competing dial populated the cache first, the cached
		// transport stays authoritative and this one is discarded.
		if existing, exists := m.clients[key]; exists {
			pending.client = existing
			m.mu.Unlock()
			close(pending.done)
			_ = client.Close()
			return existing, nil
		}
		m.clients[key] = client
	}
	m.mu.Unlock()
	close(pending.done)

	return client, err
}

// open resolves configuration and dials a fresh transport.
func (m *Manager) open(ctx context.Context, serverID, taskID string, dial DialFunc) (ToolClient, error) {
	def, exists := m.registry.ByName(serverID)
	if !exists {
		return nil, fmt.Errorf("tool server %q is not configured", serverID)
	}
	if !def.Enabled {
		return nil, fmt.Errorf("tool server %q is disabled", def.Name)
	}

	var taskOverride config.TaskOverride
	if taskID != "" {
		taskOverride, _ = m.overrides.Resolve(taskID, override.ServerMeta{
			ID:   def.ID,
			Slug: naming.Canonical(def.ID),
			Name: def.Name,
		})
	}

	spec := TransportSpec{
		ServerID: def.ID,
		Command:  def.Command,
		Endpoint: def.Endpoint,
		Env:      buildEnvironment(def, taskOverride),
	}

	logging.Debug("Connection", "Opening transport for %s (task=%s)", def.ID, taskID)

	client, err := dial(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := client.Initialize(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("handshake with %s failed: %w", def.ID, err)
	}

	logging.Info("Connection", "Connected to tool server %s (task=%s)", def.ID, taskID)
	return client, nil
}

// buildEnvironment derives the transport environment. Later layers win:
// process environment, server-declared env, env synthesized from base
// config values, override env, env synthesized from override config.
func buildEnvironment(def config.ServerDefinition, taskOverride config.TaskOverride) []string {
	merged := processEnvironment()
	merged = override.MergeEnv(merged, def.Env)
	merged = override.MergeEnv(merged, envFromConfig(def.Config))
	merged = override.MergeEnv(merged, taskOverride.Env)
	merged = override.MergeEnv(merged, envFromConfig(taskOverride.Config))

	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	return env
}

func processEnvironment() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}

// envFromConfig turns non-empty scalar config values into prefixed,
// uppercased environment variables: {token: "T1"} becomes MCP_TOKEN=T1.
func envFromConfig(cfg map[string]any) map[string]string {
	env := make(map[string]string, len(cfg))
	for key, value := range cfg {
		if value == nil {
			continue
		}
		switch value.(type) {
		case map[string]any, []any:
			continue
		}
		rendered := fmt.Sprintf("%v", value)
		if rendered == "" {
			continue
		}
		env[envPrefix+sanitizeEnvKey(key)] = rendered
	}
	return env
}

func sanitizeEnvKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Close closes every cached transport belonging to a server, across all
// task suffixes.
func (m *Manager) Close(serverID string) {
	m.closeMatching(func(key string) bool {
		return strings.HasPrefix(key, serverID+":")
	})
}

// CloseTask closes every cached transport opened for a task, across all
// servers. Used when a task's overrides are cleared or the task ends.
func (m *Manager) CloseTask(taskID string) {
	if taskID == "" {
		return
	}
	m.closeMatching(func(key string) bool {
		return strings.HasSuffix(key, ":"+taskID)
	})
}

// CloseAll closes every cached transport. Used on shutdown and full
// reconfiguration.
func (m *Manager) CloseAll() {
	m.closeMatching(func(string) bool { return true })
}

func (m *Manager) closeMatching(match func(key string) bool) {
	m.mu.Lock()
	var doomed []string
	for key := range m.clients {
		if match(key) {
			doomed = append(doomed, key)
		}
	}
	clients := make([]ToolClient, 0, len(doomed))
	for _, key := range doomed {
		clients = append(clients, m.clients[key])
		delete(m.clients, key)
	}
	m.mu.Unlock()

	for i, client := range clients {
		if err := client.Close(); err != nil {
			logging.Warn("Connection", "Error closing transport %s: %v", doomed[i], err)
		}
	}
	if len(doomed) > 0 {
		logging.Debug("Connection", "Closed %d transports", len(doomed))
	}
}

// ActiveKeys returns the keys of all cached transports, for inspection.
func (m *Manager) ActiveKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.clients))
	for key := range m.clients {
		keys = append(keys, key)
	}
	return keys
}
