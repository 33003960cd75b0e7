package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpflow/internal/config"
	"mcpflow/internal/connection"
	"mcpflow/internal/override"
	"mcpflow/internal/registry"
	"mcpflow/internal/reporting"
)

type stubClient struct {
	mu      sync.Mutex
	listErr error
	probes  int
}

func (s *stubClient) Initialize(ctx context.Context) error { return nil }

func (s *stubClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	s.mu.Lock()
	s.probes++
	err := s.listErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []mcp.Tool{{Name: "noop"}}, nil
}

func (s *stubClient) probeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes
}

func (s *stubClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}

func (s *stubClient) Close() error { return nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMonitor(t *testing.T, client *stubClient, bus reporting.EventBus) (*Monitor, *testClock) {
	t.Helper()

	reg := registry.New()
	require.NoError(t, reg.Reconfigure([]config.ServerDefinition{{
		ID:      "github",
		Name:    "GitHub",
		Enabled: true,
		Command: []string{"/bin/github"},
	}}))

	connections := connection.NewManager(reg, override.NewResolver())
	connections.SetDialFunc(func(ctx context.Context, spec connection.TransportSpec) (connection.ToolClient, error) {
		return client, nil
	})

	monitor := NewMonitor(connections, bus)
	clock := &testClock{now: time.Unix(1700000000, 0)}
	monitor.SetClock(clock.Now)
	return monitor, clock
}

func TestCheckCachesWithinTTL(t *testing.T) {
	monitor, clock := newTestMonitor(t, &stubClient{}, nil)
	ctx := context.Background()

	first := monitor.Check(ctx, "github")
	assert.Equal(t, StatusHealthy, first.Status)

	// Within the TTL the cached record comes back unchanged.
	clock.Advance(30 * time.Second)
	second := monitor.Check(ctx, "github")
	assert.Equal(t, first.LastChecked, second.LastChecked)

	// Past the TTL a new probe runs.
	clock.Advance(31 * time.Second)
	third := monitor.Check(ctx, "github")
	assert.True(t, third.LastChecked.After(first.LastChecked))
}

func TestCheckRecordsFailures(t *testing.T) {
	client := &stubClient{listErr: errors.New("connection reset")}
	monitor, clock := newTestMonitor(t, client, nil)
	ctx := context.Background()

	record := monitor.Check(ctx, "github")
	assert.Equal(t, StatusDown, record.Status)
	require.Len(t, record.Errors, 1)
	assert.Contains(t, record.Errors[0], "connection reset")

	// Failures are cached too; the server is not re-probed inside the TTL.
	cached := monitor.Check(ctx, "github")
	assert.Equal(t, record.LastChecked, cached.LastChecked)

	// Error history accumulates across probes, capped at the window size.
	for i := 0; i < 10; i++ {
		clock.Advance(61 * time.Second)
		record = monitor.Check(ctx, "github")
	}
	assert.Len(t, record.Errors, 5)
}

func TestCheckUnknownServerIsDown(t *testing.T) {
	monitor, _ := newTestMonitor(t, &stubClient{}, nil)

	record := monitor.Check(context.Background(), "missing")
	assert.Equal(t, StatusDown, record.Status)
	require.NotEmpty(t, record.Errors)
	assert.Contains(t, record.Errors[0], "not configured")
}

func TestCheckPublishesEvents(t *testing.T) {
	bus := reporting.NewEventBus()
	defer bus.Close()

	var mu sync.Mutex
	var events []reporting.HealthCheckEvent
	bus.Subscribe(reporting.FilterByType(reporting.EventTypeHealthCheck), func(e reporting.Event) {
		if he, ok := e.(reporting.HealthCheckEvent); ok {
			mu.Lock()
			events = append(events, he)
			mu.Unlock()
		}
	})

	monitor, clock := newTestMonitor(t, &stubClient{}, bus)
	ctx := context.Background()

	monitor.Check(ctx, "github")
	// The cached call must not publish a second event.
	monitor.Check(ctx, "github")
	clock.Advance(61 * time.Second)
	monitor.Check(ctx, "github")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.True(t, events[0].IsHealthy)
	assert.Equal(t, "github", events[0].ServerID)
}

func TestProbeFailureEvictsPooledConnection(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Reconfigure([]config.ServerDefinition{{
		ID:      "github",
		Name:    "GitHub",
		Enabled: true,
		Command: []string{"/bin/github"},
	}}))

	// The first dial produces a client whose probes fail; any redial
	// yields a healthy one.
	dials := 0
	connections := connection.NewManager(reg, override.NewResolver())
	connections.SetDialFunc(func(ctx context.Context, spec connection.TransportSpec) (connection.ToolClient, error) {
		dials++
		if dials == 1 {
			return &stubClient{listErr: errors.New("stream closed")}, nil
		}
		return &stubClient{}, nil
	})

	monitor := NewMonitor(connections, nil)
	clock := &testClock{now: time.Unix(1700000000, 0)}
	monitor.SetClock(clock.Now)
	ctx := context.Background()

	record := monitor.Check(ctx, "github")
	assert.Equal(t, StatusDown, record.Status)
	// The dead transport was evicted from the pool.
	assert.Empty(t, connections.ActiveKeys())

	// After the TTL the probe dials fresh and the server recovers.
	clock.Advance(61 * time.Second)
	record = monitor.Check(ctx, "github")
	assert.Equal(t, StatusHealthy, record.Status)
	assert.Equal(t, 2, dials)
}

func TestResetForcesReprobe(t *testing.T) {
	client := &stubClient{}
	monitor, _ := newTestMonitor(t, client, nil)
	ctx := context.Background()

	monitor.Check(ctx, "github")
	monitor.Check(ctx, "github")
	assert.Equal(t, 1, client.probeCount())

	monitor.Reset()
	monitor.Check(ctx, "github")
	assert.Equal(t, 2, client.probeCount())
}
