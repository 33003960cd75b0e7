// Package override stores task-scoped configuration overrides and
// resolves the applicable entry for a given (task, server) pair.
package override

import (
	"sync"

	"mcpflow/internal/config"
	"mcpflow/internal/naming"
	"mcpflow/pkg/logging"
)

// ServerMeta identifies a server by the three spellings an override may
// have been keyed under. Resolution precedence is ID, then slug, then
// display name.
type ServerMeta struct {
	ID   string
	Slug string
	Name string
}

// Resolver owns all task override storage. Entries are stored under
// every normalized variant of the caller's key so later lookups by any
// spelling succeed. When two keys collapse to the same variant the last
// write wins.
type Resolver struct {
	mu        sync.RWMutex
	overrides map[string]map[string]config.TaskOverride // task ID -> variant key -> entry

	closeTask func(taskID string)
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		overrides: make(map[string]map[string]config.TaskOverride),
	}
}

// SetCloseTaskHook registers the callback used to tear down a task's
// live connections when its overrides are cleared. Connections opened
// under cleared overrides are no longer valid.
func (r *Resolver) SetCloseTaskHook(fn func(taskID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeTask = fn
}

// SetTaskOverrides replaces all overrides for a task. An empty override
// set, or one whose entries are all empty, clears the task's overrides
// instead of storing empty entries.
func (r *Resolver) SetTaskOverrides(taskID string, overrides map[string]config.TaskOverride) {
	entries := make(map[string]config.TaskOverride)
	for key, entry := range overrides {
		if entry.IsEmpty() {
			continue
		}
		for _, variant := range naming.Variants(key) {
			entries[variant] = entry
		}
	}

	if len(entries) == 0 {
		r.ClearTaskOverrides(taskID)
		return
	}

	r.mu.Lock()
	r.overrides[taskID] = entries
	r.mu.Unlock()

	logging.Debug("Override", "Set %d override entries for task %s", len(overrides), taskID)
}

// Resolve returns the override applicable to the given server within a
// task, or false when none is set. ID variants are tried before slug
// variants, which are tried before name variants.
func (r *Resolver) Resolve(taskID string, meta ServerMeta) (config.TaskOverride, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, exists := r.overrides[taskID]
	if !exists {
		return config.TaskOverride{}, false
	}

	for _, identifier := range []string{meta.ID, meta.Slug, meta.Name} {
		if identifier == "" {
			continue
		}
		for _, variant := range naming.Variants(identifier) {
			if entry, ok := entries[variant]; ok {
				return entry, true
			}
		}
	}

	return config.TaskOverride{}, false
}

// ClearTaskOverrides removes a task's overrides and closes any live
// connections opened under them.
func (r *Resolver) ClearTaskOverrides(taskID string) {
	r.mu.Lock()
	_, existed := r.overrides[taskID]
	delete(r.overrides, taskID)
	closeTask := r.closeTask
	r.mu.Unlock()

	if closeTask != nil {
		closeTask(taskID)
	}
	if existed {
		logging.Debug("Override", "Cleared overrides for task %s", taskID)
	}
}

// MergeConfig layers an override config on top of a base config. The
// override wins on key conflict. Inputs are never mutated.
func MergeConfig(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// MergeEnv layers an override environment on top of a base environment.
// The override wins on key conflict.
func MergeEnv(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// MergeParams merges override parameters under caller parameters. The
// caller's explicit values win on conflict; override values fill gaps.
func MergeParams(overrideParams, callerParams map[string]any) map[string]any {
	merged := make(map[string]any, len(overrideParams)+len(callerParams))
	for k, v := range overrideParams {
		merged[k] = v
	}
	for k, v := range callerParams {
		merged[k] = v
	}
	return merged
}
