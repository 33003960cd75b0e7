package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "GitHub", "github"},
		{"spaces become dashes", "Adobe XD", "adobe-xd"},
		{"underscores become dashes", "my_server", "my-server"},
		{"trims whitespace", "  slack  ", "slack"},
		{"already a slug", "postgres", "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slug(tt.input))
		})
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips -mcp-server", "github-mcp-server", "github"},
		{"strips -mcp", "slack-mcp", "slack"},
		{"strips -server", "postgres-server", "postgres"},
		{"strips repeated suffixes", "figma-mcp-server-server", "figma"},
		{"slug equal to suffix survives", "server", "server"},
		{"mixed case and spaces", "GitHub MCP Server", "github"},
		{"no suffix untouched", "filesystem", "filesystem"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Canonical(tt.input))
		})
	}
}

func TestVariants(t *testing.T) {
	variants := Variants("GitHub MCP Server")
	assert.Equal(t, []string{"github mcp server", "github-mcp-server", "github"}, variants)

	// Already-canonical identifiers collapse to a single variant.
	assert.Equal(t, []string{"slack"}, Variants("slack"))
}
