package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpflow/internal/config"
)

func testDefinitions() []config.ServerDefinition {
	return []config.ServerDefinition{
		{
			ID:      "github-mcp-server",
			Name:    "GitHub",
			Enabled: true,
			Command: []string{"npx", "-y", "@modelcontextprotocol/server-github"},
		},
		{
			ID:       "slack",
			Name:     "Slack Team",
			Enabled:  true,
			Endpoint: "https://slack-bridge.internal/mcp",
			Config:   map[string]any{"workspace": "acme"},
		},
	}
}

func TestReconfigureAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Reconfigure(testDefinitions()))
	assert.Equal(t, 2, r.Len())

	tests := []struct {
		name       string
		identifier string
		expectedID string
		found      bool
	}{
		{"exact id", "github-mcp-server", "github-mcp-server", true},
		{"canonical form", "github", "github-mcp-server", true},
		{"display name", "GitHub", "github-mcp-server", true},
		{"name with spaces", "Slack Team", "slack", true},
		{"slug of name", "slack-team", "slack", true},
		{"endpoint substring", "slack-bridge", "slack", true},
		{"unknown", "figma", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, found := r.ByName(tt.identifier)
			assert.Equal(t, tt.found, found)
			if tt.found {
				assert.Equal(t, tt.expectedID, def.ID)
			}
		})
	}
}

func TestReconfigureRejectsInvalidWholesale(t *testing.T) {
	r := New()
	require.NoError(t, r.Reconfigure(testDefinitions()))

	bad := append(testDefinitions(), config.ServerDefinition{ID: "broken"})
	err := r.Reconfigure(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconfigure rejected")

	// The previous epoch stays active.
	assert.Equal(t, 2, r.Len())
}

func TestReconfigureRunsHooks(t *testing.T) {
	r := New()
	calls := 0
	r.OnReconfigure(func() { calls++ })

	require.NoError(t, r.Reconfigure(testDefinitions()))
	assert.Equal(t, 1, calls)

	require.NoError(t, r.Reconfigure(nil))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, r.Len())
}

func TestSynthesizedIntegrations(t *testing.T) {
	r := New()
	require.NoError(t, r.Reconfigure(testDefinitions()))

	integrations := r.Integrations()
	require.Len(t, integrations, 2)

	github := integrations[0]
	assert.Equal(t, int64(RuntimeIDOffset), github.ID)
	assert.Equal(t, "github", github.Slug)
	assert.Equal(t, "stdio://npx", github.Endpoint)
	assert.False(t, github.Official)

	slack := integrations[1]
	assert.Equal(t, int64(RuntimeIDOffset+1), slack.ID)
	assert.Equal(t, "https://slack-bridge.internal/mcp", slack.Endpoint)
	assert.Equal(t, "acme", slack.Settings["workspace"])

	byID, found := r.ByIntegrationID(RuntimeIDOffset + 1)
	require.True(t, found)
	assert.Equal(t, "slack", byID.Slug)

	_, found = r.ByIntegrationID(1)
	assert.False(t, found)
}

func TestDefinitionsReturnsCopies(t *testing.T) {
	r := New()
	require.NoError(t, r.Reconfigure(testDefinitions()))

	defs := r.Definitions()
	defs[0].Name = "mutated"

	def, found := r.Definition("github-mcp-server")
	require.True(t, found)
	assert.Equal(t, "GitHub", def.Name)
}
