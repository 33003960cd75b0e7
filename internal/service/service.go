// Package service is the consumer-facing facade over the tool server
// subsystem. It wires the registry, override resolver, connection pool,
// health monitor, catalog, and execution orchestrator together and owns
// the invalidation hooks between them.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"mcpflow/internal/catalog"
	"mcpflow/internal/config"
	"mcpflow/internal/connection"
	"mcpflow/internal/executor"
	"mcpflow/internal/health"
	"mcpflow/internal/naming"
	"mcpflow/internal/override"
	"mcpflow/internal/registry"
	"mcpflow/internal/reporting"
	"mcpflow/pkg/logging"
)

// installProbeTimeout bounds the connectivity check performed before a
// server definition is accepted.
const installProbeTimeout = 5 * time.Second

// definitionSchema validates the shape of an incoming server definition
// before the structural checks run.
const definitionSchema = `{
	"type": "object",
	"required": ["id", "name"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"enabled": {"type": "boolean"},
		"command": {"type": "array", "items": {"type": "string"}},
		"endpoint": {"type": "string"},
		"env": {"type": "object", "additionalProperties": {"type": "string"}},
		"config": {"type": "object"},
		"permissions": {"type": "object", "additionalProperties": {"type": "boolean"}},
		"featureScopes": {"type": "array"},
		"grantedScopes": {"type": "array", "items": {"type": "string"}}
	}
}`

// Service is the single entry point consumers hold.
type Service struct {
	registry     *registry.Registry
	overrides    *override.Resolver
	connections  *connection.Manager
	health       *health.Monitor
	catalog      *catalog.Catalog
	orchestrator *executor.Orchestrator
	bus          reporting.EventBus
}

// New assembles a fully wired service. Reconfiguration invalidates the
// connection pool and health cache; clearing a task's overrides closes
// that task's connections.
func New(bus reporting.EventBus) *Service {
	reg := registry.New()
	overrides := override.NewResolver()
	connections := connection.NewManager(reg, overrides)
	monitor := health.NewMonitor(connections, bus)

	reg.OnReconfigure(connections.CloseAll)
	reg.OnReconfigure(monitor.Reset)
	overrides.SetCloseTaskHook(connections.CloseTask)

	return &Service{
		registry:     reg,
		overrides:    overrides,
		connections:  connections,
		health:       monitor,
		catalog:      catalog.New(reg),
		orchestrator: executor.NewOrchestrator(reg, overrides, connections, bus),
		bus:          bus,
	}
}

// NewEmbedded assembles a service for hosts that embed the manager and
// render logs in their own surface: logging is initialized with a
// channel feed, returned alongside the service. Call Shutdown when done
// so the channel is closed.
func NewEmbedded(level logging.LogLevel, bus reporting.EventBus) (*Service, <-chan logging.LogEntry) {
	entries := logging.InitWithChannel(level)
	return New(bus), entries
}

// Shutdown tears down every live connection and closes the log channel
// opened by NewEmbedded.
func (s *Service) Shutdown() {
	s.connections.CloseAll()
	logging.CloseChannel()
}

// Registry exposes the underlying registry, mainly for read access.
func (s *Service) Registry() *registry.Registry { return s.registry }

// Connections exposes the connection manager. Used by tests and
// embedding callers that need direct pool control.
func (s *Service) Connections() *connection.Manager { return s.connections }

// Configure replaces the active server fleet with the given definitions.
func (s *Service) Configure(defs []config.ServerDefinition) error {
	if err := s.registry.Reconfigure(defs); err != nil {
		return err
	}
	s.publishLifecycle(reporting.EventTypeServerConfigured, fmt.Sprintf("%d servers configured", len(defs)))
	return nil
}

// DiscoverServers lists the available integrations: the runtime fleet
// when one is configured, otherwise the static catalog.
func (s *Service) DiscoverServers() []registry.Integration {
	return s.catalog.List()
}

// ListEnabledServers returns the definitions currently eligible for
// execution.
func (s *Service) ListEnabledServers() []config.ServerDefinition {
	var enabled []config.ServerDefinition
	for _, def := range s.registry.Definitions() {
		if def.Enabled {
			enabled = append(enabled, def)
		}
	}
	return enabled
}

// EffectiveConfig returns a server's configuration with a task's
// override applied on top. The override wins on key conflict.
func (s *Service) EffectiveConfig(serverID, taskID string) (map[string]any, error) {
	def, exists := s.registry.ByName(serverID)
	if !exists {
		return nil, fmt.Errorf("tool server %q is not configured", serverID)
	}

	var taskOverride config.TaskOverride
	if taskID != "" {
		taskOverride, _ = s.overrides.Resolve(taskID, override.ServerMeta{
			ID:   def.ID,
			Slug: naming.Canonical(def.ID),
			Name: def.Name,
		})
	}
	return override.MergeConfig(def.Config, taskOverride.Config), nil
}

// FindIntegration returns the integration with the given numeric ID.
func (s *Service) FindIntegration(id int64) (registry.Integration, bool) {
	return s.catalog.Find(id)
}

// Recommend suggests integrations for a task description.
func (s *Service) Recommend(taskDescription string) []catalog.Recommendation {
	return s.catalog.Recommend(taskDescription)
}

// InstallServer validates a new definition, probes it, and adds it to
// the fleet. Validation failures and unreachable servers are both
// rejected before the fleet changes.
func (s *Service) InstallServer(ctx context.Context, def config.ServerDefinition) error {
	if err := s.validateSchema(def); err != nil {
		return err
	}
	if err := config.ValidateDefinition(&def); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if _, exists := s.registry.Definition(def.ID); exists {
		return fmt.Errorf("tool server %q is already installed", def.ID)
	}

	if def.Enabled {
		if err := s.probeDefinition(ctx, def); err != nil {
			return fmt.Errorf("validation failed: server %q is unreachable: %w", def.ID, err)
		}
	}

	defs := append(s.registry.Definitions(), def)
	if err := s.registry.Reconfigure(defs); err != nil {
		return err
	}

	logging.Info("Service", "Installed tool server %s", def.ID)
	s.publishLifecycle(reporting.EventTypeServerConfigured, "installed "+def.ID)
	return nil
}

// UninstallServer removes a server from the fleet and closes its
// connections.
func (s *Service) UninstallServer(serverID string) error {
	def, exists := s.registry.ByName(serverID)
	if !exists {
		return fmt.Errorf("tool server %q is not configured", serverID)
	}

	var remaining []config.ServerDefinition
	for _, d := range s.registry.Definitions() {
		if d.ID != def.ID {
			remaining = append(remaining, d)
		}
	}
	if err := s.registry.Reconfigure(remaining); err != nil {
		return err
	}

	logging.Info("Service", "Uninstalled tool server %s", def.ID)
	s.publishLifecycle(reporting.EventTypeServerRemoved, "uninstalled "+def.ID)
	return nil
}

// validateSchema checks the definition's shape against the JSON schema.
func (s *Service) validateSchema(def config.ServerDefinition) error {
	encoded, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(definitionSchema),
		gojsonschema.NewBytesLoader(encoded),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var errs config.ValidationErrors
		for _, desc := range result.Errors() {
			errs.Add(desc.Field(), desc.Description())
		}
		return fmt.Errorf("validation failed: %w", errs)
	}
	return nil
}

// probeDefinition opens a throwaway transport to confirm the server is
// reachable before it joins the fleet.
func (s *Service) probeDefinition(ctx context.Context, def config.ServerDefinition) error {
	probeCtx, cancel := context.WithTimeout(ctx, installProbeTimeout)
	defer cancel()

	client, err := connection.DialMCP(probeCtx, connection.TransportSpec{
		ServerID: def.ID,
		Command:  def.Command,
		Endpoint: def.Endpoint,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Initialize(probeCtx)
}

// ListTools returns the tools a server exposes, connecting if needed.
func (s *Service) ListTools(ctx context.Context, serverID, taskID string) ([]mcp.Tool, error) {
	client, err := s.connections.Get(ctx, serverID, taskID)
	if err != nil {
		return nil, err
	}
	return client.ListTools(ctx)
}

// CheckHealth returns the cached or freshly probed health record for a
// server.
func (s *Service) CheckHealth(ctx context.Context, serverID string) health.Record {
	return s.health.Check(ctx, serverID)
}

// Execute runs a tool call through the orchestrator.
func (s *Service) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	return s.orchestrator.Execute(ctx, req)
}

// SetTaskOverrides replaces all overrides for a task.
func (s *Service) SetTaskOverrides(taskID string, overrides map[string]config.TaskOverride) {
	s.overrides.SetTaskOverrides(taskID, overrides)
}

// ClearTaskOverrides removes a task's overrides and closes its
// connections.
func (s *Service) ClearTaskOverrides(taskID string) {
	s.overrides.ClearTaskOverrides(taskID)
}

// CloseTask tears down every connection opened for a task.
func (s *Service) CloseTask(taskID string) {
	s.connections.CloseTask(taskID)
}

// CloseAll tears down every live connection. Called on shutdown.
func (s *Service) CloseAll() {
	s.connections.CloseAll()
}

func (s *Service) publishLifecycle(eventType reporting.EventType, detail string) {
	if s.bus == nil {
		return
	}
	event := reporting.NewBaseEvent(eventType, "service", reporting.SeverityInfo)
	event.Meta = map[string]any{"detail": detail}
	s.bus.Publish(event)
}
