package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDefinitions = `
servers:
  - id: github
    name: GitHub
    enabled: true
    command: ["npx", "-y", "@modelcontextprotocol/server-github"]
    env:
      GITHUB_TOKEN: ghp_test
    permissions:
      read: true
      write: true
      delete: false
  - id: slack
    name: Slack
    enabled: true
    endpoint: https://slack-bridge.internal/mcp
    config:
      workspace: acme
    featureScopes:
      - pattern: "post_.*"
        scopes: ["chat:write"]
    grantedScopes: ["chat:write"]
  - id: broken
    name: ""
`

func TestLoadServerDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDefinitions), 0o644))

	defs, err := LoadServerDefinitions(path)
	require.NoError(t, err)

	// The invalid entry is skipped, not fatal.
	require.Len(t, defs, 2)

	github := defs[0]
	assert.Equal(t, "github", github.ID)
	assert.Equal(t, []string{"npx", "-y", "@modelcontextprotocol/server-github"}, github.Command)
	assert.Equal(t, "ghp_test", github.Env["GITHUB_TOKEN"])
	assert.Equal(t, map[string]bool{"read": true, "write": true, "delete": false}, github.Permissions)

	slack := defs[1]
	assert.Equal(t, "https://slack-bridge.internal/mcp", slack.Endpoint)
	assert.Equal(t, "acme", slack.Config["workspace"])
	require.Len(t, slack.FeatureScopes, 1)
	assert.Equal(t, "post_.*", slack.FeatureScopes[0].Pattern)
	assert.Equal(t, []string{"chat:write"}, slack.GrantedScopes)
}

func TestLoadServerDefinitionsMissingFile(t *testing.T) {
	_, err := LoadServerDefinitions(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestLoadServerDefinitionsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servers: [notamap"), 0o644))

	_, err := LoadServerDefinitions(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}
