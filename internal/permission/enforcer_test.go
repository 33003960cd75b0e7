package permission

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpflow/internal/config"
)

func TestInferCapability(t *testing.T) {
	tests := []struct {
		toolName string
		expected string
		required bool
	}{
		{"read_file", "read", true},
		{"list_channels", "read", true},
		{"write_file", "write", true},
		{"create_issue", "write", true},
		{"post_message", "write", true},
		{"delete_branch", "delete", true},
		{"remove_entry", "delete", true},
		{"run_command", "execute", true},
		{"web_fetch", "network", true},
		{"navigate_page", "network", true},
		{"get_secret_value", "secrets", true},
		{"rotate_token", "secrets", true},
		{"ping", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.toolName, func(t *testing.T) {
			capability, required := InferCapability(tt.toolName)
			assert.Equal(t, tt.required, required)
			assert.Equal(t, tt.expected, capability)
		})
	}
}

// Destructive keywords outrank the rest so a compound name never slips
// through under a weaker capability.
func TestInferCapabilityOrdering(t *testing.T) {
	capability, required := InferCapability("delete_remote_file")
	require.True(t, required)
	assert.Equal(t, "delete", capability)

	capability, required = InferCapability("get_credential_list")
	require.True(t, required)
	assert.Equal(t, "secrets", capability)
}

func TestCheckCapabilities(t *testing.T) {
	def := config.ServerDefinition{
		ID:   "github",
		Name: "GitHub",
		Permissions: map[string]bool{
			"read":   true,
			"write":  true,
			"delete": false,
		},
	}

	assert.NoError(t, Check(def, "read_file"))
	assert.NoError(t, Check(def, "create_issue"))

	err := Check(def, "delete_branch")
	require.Error(t, err)
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "delete", denied.Capability)
	assert.Contains(t, err.Error(), `"delete" capability`)

	// Undeclared capability passes: only an explicit false denies.
	assert.NoError(t, Check(def, "web_fetch"))
}

func TestCheckAllCapabilitiesDisabled(t *testing.T) {
	def := config.ServerDefinition{
		ID:          "locked",
		Name:        "Locked",
		Permissions: map[string]bool{"read": false, "write": false},
	}

	// Even a tool with no inferable capability is rejected.
	err := Check(def, "ping")
	require.Error(t, err)
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Contains(t, denied.Reason, "no enabled capabilities")
}

func TestCheckNilPermissionsUnrestricted(t *testing.T) {
	def := config.ServerDefinition{ID: "legacy", Name: "Legacy"}
	assert.NoError(t, Check(def, "delete_everything"))
}

func TestCheckNetworkDenialNamesCapability(t *testing.T) {
	def := config.ServerDefinition{
		ID:          "browser",
		Name:        "Browser",
		Permissions: map[string]bool{"read": true, "network": false},
	}

	err := Check(def, "web_fetch")
	require.Error(t, err)
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "network", denied.Capability)
}

func TestCheckScopes(t *testing.T) {
	def := config.ServerDefinition{
		ID:   "github",
		Name: "GitHub",
		FeatureScopes: []config.ScopeRule{
			{Pattern: "delete_.*", Scopes: []string{"repo:admin"}},
			{Pattern: ".*_issue", Scopes: []string{"issues:write"}},
		},
		GrantedScopes: []string{"issues:write"},
	}

	assert.NoError(t, Check(def, "create_issue"))

	err := Check(def, "delete_branch")
	require.Error(t, err)
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, []string{"repo:admin"}, denied.MissingScopes)

	// Tools matching no rule need no scopes.
	assert.NoError(t, Check(def, "read_file"))
}

func TestCheckScopesFirstMatchWins(t *testing.T) {
	def := config.ServerDefinition{
		ID:   "s",
		Name: "S",
		FeatureScopes: []config.ScopeRule{
			{Pattern: "get_.*", Scopes: []string{"a"}},
			{Pattern: ".*", Scopes: []string{"b"}},
		},
		GrantedScopes: []string{"a"},
	}

	// First rule matches and is satisfied; the catch-all never runs.
	assert.NoError(t, Check(def, "get_item"))
}

func TestPatternFallsBackToLiteralEquality(t *testing.T) {
	def := config.ServerDefinition{
		ID:   "s",
		Name: "S",
		FeatureScopes: []config.ScopeRule{
			{Pattern: "broken[", Scopes: []string{"x"}},
		},
	}

	// The invalid regex only matches the literal tool name.
	assert.NoError(t, Check(def, "anything"))

	err := Check(def, "BROKEN[")
	require.Error(t, err)
}
