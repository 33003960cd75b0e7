// Package executor orchestrates a single tool call end to end:
// permission gate, override merge, transport acquisition, invocation,
// telemetry, and the fallback path when the primary call fails.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mcpflow/internal/config"
	"mcpflow/internal/connection"
	"mcpflow/internal/fallback"
	"mcpflow/internal/naming"
	"mcpflow/internal/override"
	"mcpflow/internal/permission"
	"mcpflow/internal/registry"
	"mcpflow/internal/reporting"
	"mcpflow/pkg/logging"
)

// previewLimit caps the response data preview carried in telemetry.
const previewLimit = 2000

// ErrorCode classifies a failed execution.
type ErrorCode string

const (
	CodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	CodeExecutionFailed  ErrorCode = "EXECUTION_FAILED"
	CodeFallbackFailed   ErrorCode = "FALLBACK_FAILED"
)

// Request describes one tool call.
type Request struct {
	Server    string
	Tool      string
	Params    map[string]any
	TaskID    string
	ProjectID string
}

// Result is the outcome of an execution attempt. Failed calls are
// reported here rather than as errors so the caller always receives a
// structured outcome once the call was dispatched.
type Result struct {
	Success      bool           `json:"success"`
	Data         any            `json:"data,omitempty"`
	ErrorCode    ErrorCode      `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error,omitempty"`
	Duration     time.Duration  `json:"duration"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Orchestrator runs tool calls against the active server fleet.
type Orchestrator struct {
	registry    *registry.Registry
	overrides   *override.Resolver
	connections *connection.Manager
	fallback    *fallback.Executor
	bus         reporting.EventBus
}

// NewOrchestrator wires an orchestrator. The bus may be nil, in which
// case telemetry is skipped.
func NewOrchestrator(reg *registry.Registry, overrides *override.Resolver, connections *connection.Manager, bus reporting.EventBus) *Orchestrator {
	return &Orchestrator{
		registry:    reg,
		overrides:   overrides,
		connections: connections,
		fallback:    fallback.NewExecutor(),
		bus:         bus,
	}
}

// SetFallbackExecutor replaces the secondary execution path. Used by
// tests.
func (o *Orchestrator) SetFallbackExecutor(fb *fallback.Executor) {
	o.fallback = fb
}

// Execute runs one tool call. Pre-flight rejections (unknown server,
// disabled server, permission denial) and unsupported transports return
// an error; otherwise the outcome is always a Result. A
// permission.DeniedError is returned unmodified so callers can present
// it directly.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	def, exists := o.registry.ByName(req.Server)
	if !exists {
		return nil, fmt.Errorf("tool server %q is not configured", req.Server)
	}
	if !def.Enabled {
		return nil, fmt.Errorf("tool server %q is disabled", def.Name)
	}

	if err := permission.Check(def, req.Tool); err != nil {
		logging.Warn("Executor", "Denied %s.%s: %v", def.ID, req.Tool, err)
		return nil, err
	}

	var taskOverride config.TaskOverride
	if req.TaskID != "" {
		taskOverride, _ = o.overrides.Resolve(req.TaskID, override.ServerMeta{
			ID:   def.ID,
			Slug: naming.Canonical(def.ID),
			Name: def.Name,
		})
	}
	params := override.MergeParams(taskOverride.Params, req.Params)

	correlationID := o.publishRequest(def, req, params)

	start := time.Now()
	data, callErr := o.callPrimary(ctx, def, req, params)
	if callErr == nil {
		elapsed := time.Since(start)
		o.publishResponse(def, req, correlationID, elapsed, previewOf(data), "", false)
		return &Result{Success: true, Data: data, Duration: elapsed}, nil
	}

	// A transport the manager cannot open is fatal until the definition
	// is reconfigured. It interrupts the call like a permission denial
	// and is never retried through the fallback path.
	var unsupported *connection.UnsupportedTransportError
	if errors.As(callErr, &unsupported) {
		o.publishResponse(def, req, correlationID, time.Since(start), "", callErr.Error(), false)
		return nil, callErr
	}

	logging.Warn("Executor", "Primary call %s.%s failed: %v", def.ID, req.Tool, callErr)

	fbResult, fbErr := o.fallback.Attempt(ctx, naming.Canonical(def.ID), req.Tool, params, taskOverride, def.Config)
	elapsed := time.Since(start)

	switch {
	case fbResult != nil:
		o.publishResponse(def, req, correlationID, elapsed, previewOf(fbResult.Data), "", true)
		return &Result{
			Success:  true,
			Data:     fbResult.Data,
			Duration: elapsed,
			Metadata: map[string]any{
				"fallback":           true,
				"fallback_operation": fbResult.Operation,
			},
		}, nil

	case fbErr != nil:
		o.publishResponse(def, req, correlationID, elapsed, "", fbErr.Error(), true)
		return &Result{
			Success:      false,
			ErrorCode:    CodeFallbackFailed,
			ErrorMessage: fbErr.Error(),
			Duration:     elapsed,
			Metadata:     map[string]any{"fallback": true},
		}, nil

	default:
		code := CodeExecutionFailed
		if _, ok := callErr.(*connectionError); ok {
			code = CodeConnectionFailed
		}
		o.publishResponse(def, req, correlationID, elapsed, "", callErr.Error(), false)
		return &Result{
			Success:      false,
			ErrorCode:    code,
			ErrorMessage: callErr.Error(),
			Duration:     elapsed,
		}, nil
	}
}

// connectionError distinguishes a transport acquisition failure from a
// failure of the call itself.
type connectionError struct {
	err error
}

func (e *connectionError) Error() string { return e.err.Error() }
func (e *connectionError) Unwrap() error { return e.err }

// callPrimary acquires the transport and invokes the tool. A
// server-reported error result is treated as a call failure.
func (o *Orchestrator) callPrimary(ctx context.Context, def config.ServerDefinition, req Request, params map[string]any) (any, error) {
	client, err := o.connections.Get(ctx, def.ID, req.TaskID)
	if err != nil {
		return nil, &connectionError{err: err}
	}

	result, err := client.CallTool(ctx, req.Tool, params)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, fmt.Errorf("tool %s reported an error: %s", req.Tool, extractText(result))
	}
	return extractData(result), nil
}

func (o *Orchestrator) publishRequest(def config.ServerDefinition, req Request, params map[string]any) string {
	if o.bus == nil {
		return ""
	}
	event := reporting.NewToolRequestEvent(def.ID, def.Name, def.Endpoint, req.Tool, req.TaskID, req.ProjectID, Sanitize(params))
	o.bus.Publish(event)
	return event.CorrelationID()
}

func (o *Orchestrator) publishResponse(def config.ServerDefinition, req Request, correlationID string, duration time.Duration, preview, errMessage string, usedFallback bool) {
	if o.bus == nil {
		return
	}
	event := reporting.NewToolResponseEvent(def.ID, def.Name, req.Tool, req.TaskID, req.ProjectID, errMessage == "", duration)
	event.WithCorrelation(correlationID)
	event.DataPreview = preview
	event.ErrMessage = errMessage
	event.Fallback = usedFallback
	o.bus.Publish(event)
}

// extractData converts a protocol result into plain data. A single text
// block holding valid JSON is decoded; multiple text blocks are joined;
// anything else is passed through as the raw content list.
func extractData(result *mcp.CallToolResult) any {
	texts := textBlocks(result)
	switch len(texts) {
	case 0:
		return result.Content
	case 1:
		var decoded any
		if err := json.Unmarshal([]byte(texts[0]), &decoded); err == nil {
			return decoded
		}
		return texts[0]
	default:
		return strings.Join(texts, "\n")
	}
}

func extractText(result *mcp.CallToolResult) string {
	return strings.Join(textBlocks(result), "\n")
}

func textBlocks(result *mcp.CallToolResult) []string {
	var texts []string
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}
	return texts
}

// previewOf renders data for telemetry, capped so huge payloads never
// flood the bus.
func previewOf(data any) string {
	if data == nil {
		return ""
	}
	var rendered string
	if s, ok := data.(string); ok {
		rendered = s
	} else if encoded, err := json.Marshal(data); err == nil {
		rendered = string(encoded)
	} else {
		rendered = fmt.Sprintf("%v", data)
	}
	if len(rendered) > previewLimit {
		return rendered[:previewLimit] + "..."
	}
	return rendered
}
