// Package fallback provides a narrow secondary execution path for
// messaging tool servers. When the primary MCP call fails and the
// server's slug identifies a Slack-compatible platform, a bounded set of
// operations is retried directly against the Slack Web API.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"mcpflow/internal/config"
	"mcpflow/internal/naming"
	"mcpflow/pkg/logging"
)

// TokenEnvVar is the process-wide credential of last resort.
const TokenEnvVar = "MCPFLOW_SLACK_TOKEN"

// defaultBaseURL is the Slack Web API root.
const defaultBaseURL = "https://slack.com/api"

// Result is the outcome of a successful fallback call. Operation names
// the secondary-protocol method that was used.
type Result struct {
	Operation string
	Data      any
}

// Executor performs the recognized secondary-protocol operations.
type Executor struct {
	httpClient *http.Client
	baseURL    string
}

// NewExecutor creates a fallback executor against the public Slack API.
func NewExecutor() *Executor {
	return &Executor{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

// NewExecutorWithBaseURL creates an executor against a custom API root.
// Used by tests.
func NewExecutorWithBaseURL(baseURL string) *Executor {
	e := NewExecutor()
	e.baseURL = strings.TrimRight(baseURL, "/")
	return e
}

// Recognizes reports whether a server slug identifies a platform this
// executor can speak to.
func Recognizes(slug string) bool {
	return strings.Contains(naming.Canonical(slug), "slack")
}

// ResolveCredential finds the secondary-protocol token. Resolution
// order: task override env, task override config, base server config,
// then the process environment. First non-empty value wins.
func ResolveCredential(taskOverride config.TaskOverride, baseConfig map[string]any) string {
	envKeys := []string{"SLACK_BOT_TOKEN", "SLACK_TOKEN", "SLACK_API_TOKEN"}
	for _, key := range envKeys {
		if v := taskOverride.Env[key]; v != "" {
			return v
		}
	}

	configKeys := []string{"token", "slackToken", "slack_token", "botToken", "bot_token"}
	for _, cfg := range []map[string]any{taskOverride.Config, baseConfig} {
		for _, key := range configKeys {
			if v, ok := cfg[key].(string); ok && v != "" {
				return v
			}
		}
	}

	return os.Getenv(TokenEnvVar)
}

// operation is one of the recognized secondary-protocol calls.
type operation int

const (
	opNone operation = iota
	opPostMessage
	opFetchHistory
	opListChannels
)

// matchOperation maps a tool name onto a recognized operation by
// case-insensitive keyword. Posting is checked before history, history
// before listing, so compound names like "fetch_channel_history" land on
// the most specific operation.
func matchOperation(toolName string) operation {
	name := strings.ToLower(toolName)
	switch {
	case strings.Contains(name, "post") || strings.Contains(name, "send"):
		return opPostMessage
	case strings.Contains(name, "history") || strings.Contains(name, "messages"):
		return opFetchHistory
	case strings.Contains(name, "channel") || strings.Contains(name, "conversation") || strings.Contains(name, "list"):
		return opListChannels
	default:
		return opNone
	}
}

// Attempt tries the secondary path for a failed primary call. A nil
// result with a nil error means the fallback does not apply (unknown
// slug, unrecognized tool, or no credential) and the caller must surface
// the original failure. A non-nil error means the fallback itself was
// attempted and failed.
func (e *Executor) Attempt(ctx context.Context, slug, toolName string, params map[string]any, taskOverride config.TaskOverride, baseConfig map[string]any) (*Result, error) {
	if !Recognizes(slug) {
		return nil, nil
	}

	op := matchOperation(toolName)
	if op == opNone {
		return nil, nil
	}

	token := ResolveCredential(taskOverride, baseConfig)
	if token == "" {
		logging.Debug("Fallback", "No credential resolved for %s; skipping fallback", slug)
		return nil, nil
	}

	logging.Info("Fallback", "Attempting secondary path for %s.%s", slug, toolName)

	switch op {
	case opPostMessage:
		return e.postMessage(ctx, token, params)
	case opFetchHistory:
		return e.fetchHistory(ctx, token, params)
	default:
		return e.listChannels(ctx, token)
	}
}

func (e *Executor) listChannels(ctx context.Context, token string) (*Result, error) {
	data, err := e.get(ctx, token, "conversations.list", url.Values{"limit": {"100"}})
	if err != nil {
		return nil, err
	}
	return &Result{Operation: "conversations.list", Data: data}, nil
}

func (e *Executor) fetchHistory(ctx context.Context, token string, params map[string]any) (*Result, error) {
	channel := stringParam(params, "channel", "channel_id")
	if channel == "" {
		return nil, fmt.Errorf("fallback history fetch requires a channel parameter")
	}
	data, err := e.get(ctx, token, "conversations.history", url.Values{"channel": {channel}, "limit": {"50"}})
	if err != nil {
		return nil, err
	}
	return &Result{Operation: "conversations.history", Data: data}, nil
}

func (e *Executor) postMessage(ctx context.Context, token string, params map[string]any) (*Result, error) {
	channel := stringParam(params, "channel", "channel_id")
	text := stringParam(params, "text", "message")
	if channel == "" || text == "" {
		return nil, fmt.Errorf("fallback message post requires channel and text parameters")
	}

	payload, err := json.Marshal(map[string]string{"channel": channel, "text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message payload: %w", err)
	}

	data, err := e.post(ctx, token, "chat.postMessage", payload)
	if err != nil {
		return nil, err
	}
	return &Result{Operation: "chat.postMessage", Data: data}, nil
}

func (e *Executor) get(ctx context.Context, token, method string, query url.Values) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/"+method+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return e.do(req, method)
}

func (e *Executor) post(ctx context.Context, token, method string, payload []byte) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return e.do(req, method)
}

func (e *Executor) do(req *http.Request, method string) (map[string]any, error) {
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("secondary protocol call %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("secondary protocol call %s returned status %d: %s", method, resp.StatusCode, string(body))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if ok, _ := result["ok"].(bool); !ok {
		apiErr, _ := result["error"].(string)
		return nil, fmt.Errorf("secondary protocol call %s rejected: %s", method, apiErr)
	}
	return result, nil
}

func stringParam(params map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := params[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
