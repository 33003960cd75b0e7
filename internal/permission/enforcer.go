// Package permission gates tool execution behind two independent
// checks: coarse capability flags declared by the server and
// fine-grained feature scopes required for specific tool names.
package permission

import (
	"fmt"
	"regexp"
	"strings"

	"mcpflow/internal/config"
)

// DeniedError is returned when either gate rejects a tool call. It is a
// terminal, user-facing error: callers must not retry it, convert it to
// a generic failure, or route it to the fallback path.
type DeniedError struct {
	ServerID      string
	ServerName    string
	ToolName      string
	Capability    string
	MissingScopes []string
	Reason        string
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	switch {
	case len(e.MissingScopes) > 0:
		return fmt.Sprintf("permission denied: tool %q on server %q requires scopes %s",
			e.ToolName, e.ServerName, strings.Join(e.MissingScopes, ", "))
	case e.Capability != "":
		return fmt.Sprintf("permission denied: tool %q on server %q requires the %q capability",
			e.ToolName, e.ServerName, e.Capability)
	default:
		return fmt.Sprintf("permission denied: tool %q on server %q: %s", e.ToolName, e.ServerName, e.Reason)
	}
}

// capabilityRule binds a capability to the tool-name keywords that imply
// it. Rules are evaluated in order; the first keyword hit wins.
type capabilityRule struct {
	capability string
	keywords   []string
}

// capabilityTable is the ordered inference table. Destructive and
// sensitive capabilities come first so a name like "delete_remote_file"
// resolves to delete rather than read.
var capabilityTable = []capabilityRule{
	{"delete", []string{"delete", "remove", "drop", "destroy", "purge", "truncate"}},
	{"secrets", []string{"secret", "credential", "token", "password", "vault"}},
	{"execute", []string{"execute", "exec", "run", "invoke", "command", "shell", "script", "spawn"}},
	{"network", []string{"fetch", "http", "request", "url", "web", "download", "crawl", "navigate"}},
	{"write", []string{"write", "create", "update", "insert", "upload", "push", "post", "edit", "append", "move", "rename", "set"}},
	{"read", []string{"read", "get", "list", "query", "search", "view", "describe", "stat", "find"}},
}

// InferCapability maps a tool name onto the capability it needs. The
// second return is false when no keyword matches, meaning the tool needs
// no specific capability.
func InferCapability(toolName string) (string, bool) {
	name := strings.ToLower(toolName)
	for _, rule := range capabilityTable {
		for _, keyword := range rule.keywords {
			if strings.Contains(name, keyword) {
				return rule.capability, true
			}
		}
	}
	return "", false
}

// Check evaluates both gates for a tool call against a server. A nil
// return means execution may proceed.
func Check(def config.ServerDefinition, toolName string) error {
	if err := checkCapability(def, toolName); err != nil {
		return err
	}
	return checkScopes(def, toolName)
}

// checkCapability enforces the coarse capability flags. A server with a
// declared permission map but no enabled capability cannot run anything.
func checkCapability(def config.ServerDefinition, toolName string) error {
	if def.Permissions == nil {
		return nil
	}

	anyEnabled := false
	for _, enabled := range def.Permissions {
		if enabled {
			anyEnabled = true
			break
		}
	}
	if !anyEnabled {
		return &DeniedError{
			ServerID:   def.ID,
			ServerName: def.Name,
			ToolName:   toolName,
			Reason:     "server has no enabled capabilities",
		}
	}

	capability, required := InferCapability(toolName)
	if !required {
		return nil
	}

	if enabled, declared := def.Permissions[capability]; declared && !enabled {
		return &DeniedError{
			ServerID:   def.ID,
			ServerName: def.Name,
			ToolName:   toolName,
			Capability: capability,
		}
	}
	return nil
}

// checkScopes enforces the first matching feature-scope rule. A rule's
// pattern is a case-insensitive regular expression; patterns that do not
// compile fall back to case-insensitive string equality.
func checkScopes(def config.ServerDefinition, toolName string) error {
	for _, rule := range def.FeatureScopes {
		if !patternMatches(rule.Pattern, toolName) {
			continue
		}

		granted := make(map[string]bool, len(def.GrantedScopes))
		for _, scope := range def.GrantedScopes {
			granted[scope] = true
		}

		var missing []string
		for _, scope := range rule.Scopes {
			if !granted[scope] {
				missing = append(missing, scope)
			}
		}

		if len(missing) > 0 {
			return &DeniedError{
				ServerID:      def.ID,
				ServerName:    def.Name,
				ToolName:      toolName,
				MissingScopes: missing,
			}
		}
		return nil
	}
	return nil
}

func patternMatches(pattern, toolName string) bool {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return strings.EqualFold(pattern, toolName)
	}
	return re.MatchString(toolName)
}
