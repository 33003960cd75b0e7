// Package registry holds the active set of configured tool servers and
// synthesizes a uniform integration record for each of them. The set is
// replaced atomically on reconfiguration; stale connections and health
// records are invalidated through registered hooks before the swap
// becomes visible.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"mcpflow/internal/config"
	"mcpflow/internal/naming"
	"mcpflow/pkg/logging"
)

// Integration is the uniform record synthesized for every configured
// server. Runtime integration IDs are offset so they never collide with
// the static catalog's IDs.
type Integration struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description string         `json:"description,omitempty"`
	Endpoint    string         `json:"endpoint,omitempty"`
	Enabled     bool           `json:"enabled"`
	Official    bool           `json:"official"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// RuntimeIDOffset is added to a server's position when synthesizing its
// integration ID, keeping runtime IDs clear of the static catalog range.
const RuntimeIDOffset = 1000

// Registry manages the current configuration epoch of tool servers.
type Registry struct {
	mu           sync.RWMutex
	definitions  map[string]*config.ServerDefinition // server ID -> definition
	lookup       map[string]string                   // normalized variant -> server ID
	order        []string                            // server IDs in configuration order
	integrations map[string]Integration              // server ID -> synthesized record

	hooksMu sync.Mutex
	hooks   []func()
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		definitions:  make(map[string]*config.ServerDefinition),
		lookup:       make(map[string]string),
		integrations: make(map[string]Integration),
	}
}

// OnReconfigure registers a hook invoked at the start of every
// Reconfigure call, before the new server set becomes visible. The
// connection manager and health monitor use this to drop state tied to
// the previous epoch.
func (r *Registry) OnReconfigure(hook func()) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Reconfigure atomically replaces the active server set. Invalid
// definitions are rejected wholesale so a partial fleet never becomes
// active.
func (r *Registry) Reconfigure(defs []config.ServerDefinition) error {
	for i := range defs {
		if err := config.ValidateDefinition(&defs[i]); err != nil {
			return fmt.Errorf("reconfigure rejected: %w", err)
		}
	}

	// Invalidate state from the previous epoch before the swap so no
	// live connection outlives the definitions it was built from.
	r.hooksMu.Lock()
	hooks := make([]func(), len(r.hooks))
	copy(hooks, r.hooks)
	r.hooksMu.Unlock()
	for _, hook := range hooks {
		hook()
	}

	definitions := make(map[string]*config.ServerDefinition, len(defs))
	lookup := make(map[string]string, len(defs)*3)
	order := make([]string, 0, len(defs))
	integrations := make(map[string]Integration, len(defs))

	for i := range defs {
		def := defs[i] // copy
		definitions[def.ID] = &def
		order = append(order, def.ID)
		for _, variant := range naming.Variants(def.ID) {
			lookup[variant] = def.ID
		}
		for _, variant := range naming.Variants(def.Name) {
			lookup[variant] = def.ID
		}
		integrations[def.ID] = synthesize(&def, int64(i))
	}

	r.mu.Lock()
	r.definitions = definitions
	r.lookup = lookup
	r.order = order
	r.integrations = integrations
	r.mu.Unlock()

	logging.Info("Registry", "Reconfigured with %d tool servers", len(defs))
	return nil
}

// synthesize builds the integration record for a definition. Position is
// the server's index within the configuration epoch.
func synthesize(def *config.ServerDefinition, position int64) Integration {
	endpoint := def.Endpoint
	if endpoint == "" && len(def.Command) > 0 {
		endpoint = "stdio://" + def.Command[0]
	}

	settings := make(map[string]any, len(def.Config))
	for k, v := range def.Config {
		settings[k] = v
	}

	return Integration{
		ID:          RuntimeIDOffset + position,
		Name:        def.Name,
		Slug:        naming.Canonical(def.ID),
		Description: fmt.Sprintf("Runtime tool server %q", def.Name),
		Endpoint:    endpoint,
		Enabled:     def.Enabled,
		Official:    false,
		Settings:    settings,
	}
}

// Definition returns the definition with the exact server ID.
func (r *Registry) Definition(id string) (config.ServerDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.definitions[id]
	if !exists {
		return config.ServerDefinition{}, false
	}
	return *def, true
}

// ByName resolves a server by any spelling of its ID or name. Exact ID
// match wins; normalized variants are tried next; as a documented last
// resort the identifier is substring-matched against endpoint strings.
// The heuristic tier never shadows an exact or variant match.
func (r *Registry) ByName(identifier string) (config.ServerDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if def, exists := r.definitions[identifier]; exists {
		return *def, true
	}

	for _, variant := range naming.Variants(identifier) {
		if id, exists := r.lookup[variant]; exists {
			return *r.definitions[id], true
		}
	}

	needle := strings.ToLower(strings.TrimSpace(identifier))
	if needle != "" {
		for _, id := range r.order {
			def := r.definitions[id]
			if def.Endpoint != "" && strings.Contains(strings.ToLower(def.Endpoint), needle) {
				return *def, true
			}
		}
	}

	return config.ServerDefinition{}, false
}

// Integration returns the synthesized integration for a server ID.
func (r *Registry) Integration(id string) (Integration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	integration, exists := r.integrations[id]
	return integration, exists
}

// ByIntegrationID returns the integration with the given numeric ID.
func (r *Registry) ByIntegrationID(id int64) (Integration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, serverID := range r.order {
		if integration := r.integrations[serverID]; integration.ID == id {
			return integration, true
		}
	}
	return Integration{}, false
}

// Integrations returns every synthesized integration in configuration
// order.
func (r *Registry) Integrations() []Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Integration, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.integrations[id])
	}
	return result
}

// Definitions returns all definitions in configuration order.
func (r *Registry) Definitions() []config.ServerDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]config.ServerDefinition, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, *r.definitions[id])
	}
	return result
}

// Len returns the number of configured servers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
