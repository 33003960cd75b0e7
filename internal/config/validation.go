package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid field on a definition.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// ValidationErrors collects field-level validation failures so callers
// can report every problem at once rather than one per attempt.
type ValidationErrors []ValidationError

// Add appends a new validation error.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any validation errors were collected.
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// knownCapabilities is the closed set of capability flags a definition
// may declare.
var knownCapabilities = map[string]bool{
	"read":    true,
	"write":   true,
	"delete":  true,
	"execute": true,
	"network": true,
	"secrets": true,
}

// ValidateDefinition performs structural validation on a server
// definition before it is accepted into the registry.
func ValidateDefinition(def *ServerDefinition) error {
	var errs ValidationErrors

	if strings.TrimSpace(def.ID) == "" {
		errs.Add("id", "is required")
	}
	if strings.TrimSpace(def.Name) == "" {
		errs.Add("name", "is required")
	}

	if len(def.Command) == 0 && def.Endpoint == "" {
		errs.Add("command", "either a command or an endpoint is required")
	}
	for i, part := range def.Command {
		if strings.TrimSpace(part) == "" {
			errs.Add(fmt.Sprintf("command[%d]", i), "cannot be empty")
		}
	}

	for key := range def.Env {
		if key == "" {
			errs.Add("env", "environment variable key cannot be empty")
		}
	}

	for capability := range def.Permissions {
		if !knownCapabilities[strings.ToLower(capability)] {
			errs.Add(fmt.Sprintf("permissions.%s", capability), "unknown capability")
		}
	}

	for i, rule := range def.FeatureScopes {
		if rule.Pattern == "" {
			errs.Add(fmt.Sprintf("featureScopes[%d].pattern", i), "is required")
		}
		if len(rule.Scopes) == 0 {
			errs.Add(fmt.Sprintf("featureScopes[%d].scopes", i), "must list at least one scope")
		}
	}

	if errs.HasErrors() {
		return fmt.Errorf("invalid server definition %q: %w", def.Name, errs)
	}
	return nil
}
