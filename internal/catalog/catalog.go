// Package catalog exposes the integration directory: the static set of
// known tool servers, the runtime fleet when one is configured, and
// keyword-based recommendations for a task description.
package catalog

import (
	"sort"
	"strconv"
	"strings"

	"mcpflow/internal/registry"
)

// scoreThreshold is the minimum score an integration needs to appear in
// recommendations.
const scoreThreshold = 0.5

// Recommendation pairs an integration with the evidence for suggesting
// it.
type Recommendation struct {
	Integration registry.Integration `json:"integration"`
	Score       float64              `json:"score"`
	Reasons     []string             `json:"reasons"`
}

// Catalog serves integration listings and recommendations.
type Catalog struct {
	registry *registry.Registry
}

// New creates a catalog backed by the given registry.
func New(reg *registry.Registry) *Catalog {
	return &Catalog{registry: reg}
}

// defaults is the static directory of well-known tool servers, shown
// when no runtime fleet is configured. All entries start disabled; the
// user opts in by configuring a server.
var defaults = []registry.Integration{
	{ID: 1, Name: "Filesystem", Slug: "filesystem", Description: "Read, write, and search files on the local filesystem", Official: true},
	{ID: 2, Name: "GitHub", Slug: "github", Description: "Repositories, issues, pull requests, and code search", Official: true},
	{ID: 3, Name: "PostgreSQL", Slug: "postgres", Description: "Query and inspect PostgreSQL databases", Official: true},
	{ID: 4, Name: "Slack", Slug: "slack", Description: "Channels, message history, and posting to Slack workspaces", Official: true},
	{ID: 5, Name: "Puppeteer", Slug: "puppeteer", Description: "Browser automation: navigation, scraping, and screenshots", Official: true},
	{ID: 6, Name: "Figma", Slug: "figma", Description: "Design file inspection and asset export from Figma"},
	{ID: 7, Name: "Sketch", Slug: "sketch", Description: "Sketch document inspection and symbol extraction"},
	{ID: 8, Name: "Adobe XD", Slug: "adobe-xd", Description: "Adobe XD artboard and prototype inspection"},
}

// keywordIndex maps a catalog slug to the task-description keywords that
// suggest it.
var keywordIndex = map[string][]string{
	"filesystem": {"file", "files", "directory", "folder", "filesystem", "disk"},
	"github":     {"github", "repository", "repo", "issue", "pull request", "commit", "branch"},
	"postgres":   {"postgres", "postgresql", "database", "sql", "query", "table", "schema"},
	"slack":      {"slack", "channel", "message", "chat", "notify", "team"},
	"puppeteer":  {"browser", "scrape", "screenshot", "web page", "crawl", "automation"},
	"figma":      {"figma", "design", "mockup", "prototype", "component"},
	"sketch":     {"sketch", "artboard", "symbol"},
	"adobe-xd":   {"adobe", "xd", "wireframe"},
}

// Defaults returns the static directory.
func (c *Catalog) Defaults() []registry.Integration {
	result := make([]registry.Integration, len(defaults))
	copy(result, defaults)
	return result
}

// List returns the runtime fleet's integrations when servers are
// configured, otherwise the static directory.
func (c *Catalog) List() []registry.Integration {
	if c.registry != nil && c.registry.Len() > 0 {
		return c.registry.Integrations()
	}
	return c.Defaults()
}

// Find returns the integration with the given numeric ID, from the
// runtime fleet when one is configured, otherwise from the static
// directory.
func (c *Catalog) Find(id int64) (registry.Integration, bool) {
	if c.registry != nil && c.registry.Len() > 0 {
		return c.registry.ByIntegrationID(id)
	}
	for _, integration := range defaults {
		if integration.ID == id {
			return integration, true
		}
	}
	return registry.Integration{}, false
}

// Recommend scores every listed integration against a task description
// and returns the ones that clear the threshold, best first. Ties break
// alphabetically so the ordering is stable.
func (c *Catalog) Recommend(taskDescription string) []Recommendation {
	task := strings.ToLower(taskDescription)
	if strings.TrimSpace(task) == "" {
		return nil
	}

	var recommendations []Recommendation
	for _, integration := range c.List() {
		score, reasons := scoreIntegration(integration, task)
		if score >= scoreThreshold {
			recommendations = append(recommendations, Recommendation{
				Integration: integration,
				Score:       score,
				Reasons:     reasons,
			})
		}
	}

	sort.Slice(recommendations, func(i, j int) bool {
		if recommendations[i].Score != recommendations[j].Score {
			return recommendations[i].Score > recommendations[j].Score
		}
		return recommendations[i].Integration.Name < recommendations[j].Integration.Name
	})
	return recommendations
}

// scoreIntegration rates one integration against a lowercased task
// description. The first keyword hit clears the threshold; each further
// hit raises confidence, capped at 1.0.
func scoreIntegration(integration registry.Integration, task string) (float64, []string) {
	keywords := keywordIndex[integration.Slug]
	if len(keywords) == 0 {
		// Runtime servers without a static keyword set match on their
		// own identity only.
		keywords = []string{integration.Slug, strings.ToLower(integration.Name)}
	}

	var reasons []string
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(task, keyword) {
			reasons = append(reasons, "task mentions "+strconv.Quote(keyword))
		}
	}
	if len(reasons) == 0 {
		return 0, nil
	}

	score := scoreThreshold + 0.1*float64(len(reasons)-1)
	if score > 1.0 {
		score = 1.0
	}
	return score, reasons
}
