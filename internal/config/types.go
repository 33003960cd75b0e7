package config

// ScopeRule maps a tool-name pattern to the feature scopes a caller must
// hold before tools matching that pattern may run. The pattern is treated
// as a case-insensitive regular expression; if it does not compile it is
// matched as a case-insensitive literal instead.
type ScopeRule struct {
	Pattern string   `yaml:"pattern" json:"pattern"`
	Scopes  []string `yaml:"scopes" json:"scopes"`
}

// ServerDefinition describes how to reach and run a single tool server.
// Definitions are supplied by an external settings layer and are treated
// as immutable for the lifetime of one configuration epoch.
type ServerDefinition struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	Enabled bool   `yaml:"enabled" json:"enabled"`

	// Command and its arguments for subprocess-backed servers,
	// e.g. ["npx", "-y", "@modelcontextprotocol/server-filesystem"].
	Command []string `yaml:"command,omitempty" json:"command,omitempty"`

	// Endpoint for network-backed servers (http:// or https://), or a
	// stdio:// URL naming the executable for subprocess servers that are
	// configured by URL rather than command list.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Env holds environment variables the server declares it needs.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Config is free-form server configuration. Non-empty string values
	// are additionally exported to the transport environment as
	// MCP_<KEY> variables.
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`

	// Permissions are coarse capability flags (read, write, delete,
	// execute, network, secrets). A nil map means the server predates
	// the permission model and is unrestricted.
	Permissions map[string]bool `yaml:"permissions,omitempty" json:"permissions,omitempty"`

	// FeatureScopes are fine-grained per-tool scope requirements,
	// evaluated against GrantedScopes.
	FeatureScopes []ScopeRule `yaml:"featureScopes,omitempty" json:"featureScopes,omitempty"`
	GrantedScopes []string    `yaml:"grantedScopes,omitempty" json:"grantedScopes,omitempty"`
}

// TaskOverride carries task-scoped configuration that takes precedence
// over a server's base configuration for the duration of that task's
// connections. All fields are optional.
type TaskOverride struct {
	Env    map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Config map[string]any    `yaml:"config,omitempty" json:"config,omitempty"`
	Params map[string]any    `yaml:"params,omitempty" json:"params,omitempty"`
}

// IsEmpty reports whether the override carries no data at all. Setting an
// empty override for a task clears that task's overrides instead of
// storing an empty entry.
func (o TaskOverride) IsEmpty() bool {
	return len(o.Env) == 0 && len(o.Config) == 0 && len(o.Params) == 0
}
