package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToHandler(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var received []Event
	bus.Subscribe(nil, func(e Event) {
		received = append(received, e)
	})

	bus.Publish(NewBaseEvent(EventTypeToolRequest, "test", SeverityInfo))
	bus.Publish(NewBaseEvent(EventTypeHealthCheck, "test", SeverityDebug))

	require.Len(t, received, 2)
	assert.Equal(t, EventTypeToolRequest, received[0].Type())
}

func TestFilterByType(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var received []Event
	bus.Subscribe(FilterByType(EventTypeHealthCheck), func(e Event) {
		received = append(received, e)
	})

	bus.Publish(NewBaseEvent(EventTypeToolRequest, "test", SeverityInfo))
	bus.Publish(NewHealthCheckEvent("github", true, time.Millisecond, nil))

	require.Len(t, received, 1)
	assert.Equal(t, EventTypeHealthCheck, received[0].Type())
}

func TestChannelSubscriptionDropsWhenFull(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	sub := bus.SubscribeChannel(nil, 1)
	require.NotNil(t, sub)

	bus.Publish(NewBaseEvent(EventTypeToolRequest, "test", SeverityInfo))
	bus.Publish(NewBaseEvent(EventTypeToolRequest, "test", SeverityInfo))

	metrics := bus.GetMetrics()
	assert.Equal(t, int64(2), metrics.EventsPublished)
	assert.Equal(t, int64(1), metrics.EventsDelivered)
	assert.Equal(t, int64(1), metrics.EventsDropped)
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	bus.Subscribe(nil, func(e Event) { panic("boom") })

	delivered := false
	bus.Subscribe(nil, func(e Event) { delivered = true })

	bus.Publish(NewBaseEvent(EventTypeToolRequest, "test", SeverityInfo))
	assert.True(t, delivered)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	count := 0
	sub := bus.Subscribe(nil, func(e Event) { count++ })

	bus.Publish(NewBaseEvent(EventTypeToolRequest, "test", SeverityInfo))
	bus.Unsubscribe(sub)
	bus.Publish(NewBaseEvent(EventTypeToolRequest, "test", SeverityInfo))

	assert.Equal(t, 1, count)
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewEventBus()

	count := 0
	bus.Subscribe(nil, func(e Event) { count++ })
	bus.Close()

	bus.Publish(NewBaseEvent(EventTypeToolRequest, "test", SeverityInfo))
	assert.Equal(t, 0, count)
}

func TestResponseEventSharesRequestCorrelation(t *testing.T) {
	request := NewToolRequestEvent("github", "GitHub", "", "read_file", "task-1", "", nil)
	response := NewToolResponseEvent("github", "GitHub", "read_file", "task-1", "", true, time.Millisecond)
	response.WithCorrelation(request.CorrelationID())

	assert.Equal(t, request.CorrelationID(), response.CorrelationID())
	assert.NotEmpty(t, response.CorrelationID())
}
