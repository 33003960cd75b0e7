package reporting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event.
type EventType string

const (
	// Tool call events
	EventTypeToolRequest  EventType = "mcp.request"
	EventTypeToolResponse EventType = "mcp.response"

	// Server lifecycle events
	EventTypeServerConfigured EventType = "server.configured"
	EventTypeServerRemoved    EventType = "server.removed"

	// Health events
	EventTypeHealthCheck EventType = "health.check"
)

// EventSeverity indicates the importance of an event.
type EventSeverity string

const (
	SeverityDebug EventSeverity = "debug"
	SeverityInfo  EventSeverity = "info"
	SeverityWarn  EventSeverity = "warn"
	SeverityError EventSeverity = "error"
)

// Event is the base interface for all events published on the bus.
type Event interface {
	// Type returns the event type
	Type() EventType

	// Source returns the component or server that generated this event
	Source() string

	// Timestamp returns when the event occurred
	Timestamp() time.Time

	// Severity returns the event severity
	Severity() EventSeverity

	// CorrelationID returns the correlation ID for tracing related events
	CorrelationID() string

	// Metadata returns additional event-specific data
	Metadata() map[string]interface{}

	// String returns a human-readable description of the event
	String() string
}

// GenerateCorrelationID returns a fresh correlation identifier.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	EventType     EventType              `json:"type"`
	SourceLabel   string                 `json:"source"`
	EventTime     time.Time              `json:"timestamp"`
	EventSeverity EventSeverity          `json:"severity"`
	CorrelationId string                 `json:"correlation_id"`
	Meta          map[string]interface{} `json:"metadata,omitempty"`
}

// NewBaseEvent builds the shared portion of an event with a fresh
// correlation ID and the current time.
func NewBaseEvent(eventType EventType, source string, severity EventSeverity) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SourceLabel:   source,
		EventTime:     time.Now(),
		EventSeverity: severity,
		CorrelationId: GenerateCorrelationID(),
	}
}

// Type implements Event.
func (e BaseEvent) Type() EventType { return e.EventType }

// Source implements Event.
func (e BaseEvent) Source() string { return e.SourceLabel }

// Timestamp implements Event.
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// Severity implements Event.
func (e BaseEvent) Severity() EventSeverity { return e.EventSeverity }

// CorrelationID implements Event.
func (e BaseEvent) CorrelationID() string { return e.CorrelationId }

// Metadata implements Event.
func (e BaseEvent) Metadata() map[string]interface{} {
	if e.Meta == nil {
		return make(map[string]interface{})
	}
	return e.Meta
}

// String implements Event.
func (e BaseEvent) String() string {
	return string(e.EventType) + " from " + e.SourceLabel
}

// WithCorrelation overrides the generated correlation ID so a response
// event can share its request's ID.
func (e *BaseEvent) WithCorrelation(correlationID string) {
	if correlationID != "" {
		e.CorrelationId = correlationID
	}
}

// ToolRequestEvent is emitted before a tool call is dispatched to a
// server. Params have already been sanitized for logging.
type ToolRequestEvent struct {
	BaseEvent
	ServerID   string                 `json:"server_id"`
	ServerName string                 `json:"server_name"`
	Endpoint   string                 `json:"endpoint,omitempty"`
	ToolName   string                 `json:"tool_name"`
	TaskID     string                 `json:"task_id,omitempty"`
	ProjectID  string                 `json:"project_id,omitempty"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// NewToolRequestEvent creates a request event for a pending tool call.
func NewToolRequestEvent(serverID, serverName, endpoint, toolName, taskID, projectID string, params map[string]interface{}) ToolRequestEvent {
	return ToolRequestEvent{
		BaseEvent:  NewBaseEvent(EventTypeToolRequest, serverName, SeverityInfo),
		ServerID:   serverID,
		ServerName: serverName,
		Endpoint:   endpoint,
		ToolName:   toolName,
		TaskID:     taskID,
		ProjectID:  projectID,
		Params:     params,
	}
}

// String returns a human-readable description.
func (e ToolRequestEvent) String() string {
	return fmt.Sprintf("%s → %s.%s", e.EventType, e.ServerName, e.ToolName)
}

// ToolResponseEvent is emitted after a tool call completes, successfully
// or not. DataPreview is capped; Fallback marks results produced by the
// secondary execution path.
type ToolResponseEvent struct {
	BaseEvent
	ServerID    string        `json:"server_id"`
	ServerName  string        `json:"server_name"`
	ToolName    string        `json:"tool_name"`
	TaskID      string        `json:"task_id,omitempty"`
	ProjectID   string        `json:"project_id,omitempty"`
	Success     bool          `json:"success"`
	Duration    time.Duration `json:"duration"`
	DataPreview string        `json:"data_preview,omitempty"`
	ErrMessage  string        `json:"error,omitempty"`
	Fallback    bool          `json:"fallback,omitempty"`
}

// NewToolResponseEvent creates a response event for a completed tool call.
func NewToolResponseEvent(serverID, serverName, toolName, taskID, projectID string, success bool, duration time.Duration) ToolResponseEvent {
	severity := SeverityInfo
	if !success {
		severity = SeverityError
	}
	return ToolResponseEvent{
		BaseEvent:  NewBaseEvent(EventTypeToolResponse, serverName, severity),
		ServerID:   serverID,
		ServerName: serverName,
		ToolName:   toolName,
		TaskID:     taskID,
		ProjectID:  projectID,
		Success:    success,
		Duration:   duration,
	}
}

// String returns a human-readable description.
func (e ToolResponseEvent) String() string {
	outcome := "ok"
	if !e.Success {
		outcome = "failed"
	}
	if e.Fallback {
		outcome += " (fallback)"
	}
	return fmt.Sprintf("%s ← %s.%s %s in %s", e.EventType, e.ServerName, e.ToolName, outcome, e.Duration)
}

// HealthCheckEvent is emitted when a health probe completes.
type HealthCheckEvent struct {
	BaseEvent
	ServerID  string        `json:"server_id"`
	IsHealthy bool          `json:"is_healthy"`
	Latency   time.Duration `json:"latency"`
	Err       error         `json:"error,omitempty"`
}

// NewHealthCheckEvent creates a health event for a completed probe.
func NewHealthCheckEvent(serverID string, healthy bool, latency time.Duration, err error) HealthCheckEvent {
	severity := SeverityDebug
	if !healthy {
		severity = SeverityWarn
	}
	return HealthCheckEvent{
		BaseEvent: NewBaseEvent(EventTypeHealthCheck, serverID, severity),
		ServerID:  serverID,
		IsHealthy: healthy,
		Latency:   latency,
		Err:       err,
	}
}

// String returns a human-readable description.
func (e HealthCheckEvent) String() string {
	if e.IsHealthy {
		return fmt.Sprintf("%s healthy (%s)", e.ServerID, e.Latency)
	}
	msg := ""
	if e.Err != nil {
		msg = " (error: " + e.Err.Error() + ")"
	}
	return fmt.Sprintf("%s down%s", e.ServerID, msg)
}
