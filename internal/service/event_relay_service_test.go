package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDelivery struct {
	mu        sync.Mutex
	delivered map[string][][]byte
}

func (f *fakeDelivery) Deliver(ctx context.Context, sessionID string, msg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered[sessionID] = append(f.delivered[sessionID], msg)
}

func (f *fakeDelivery) count(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered[sessionID])
}

func TestEventRelayService_Consume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	delivery := &fakeDelivery{delivered: map[string][][]byte{}}
	sink := &recordingPublisher{}
	relay := NewEventRelayService(pubSub, "workflow_events", delivery, sink, logger.NewNopLogger())
	require.NoError(t, relay.Consume(ctx))

	publisher := NewPublisherService("workflow_events", pubSub)
	require.NoError(t, publisher.Publish(ctx, events.New(events.TypeStageChanged, "session-1", map[string]interface{}{
		"to": "analyze",
	})))
	// Global events reach the sink but no websocket watcher.
	require.NoError(t, publisher.Publish(ctx, events.New(events.TypeBackendCallFailed, "", nil)))

	assert.Eventually(t, func() bool {
		return delivery.count("session-1") == 1 && len(sink.ofType(events.TypeBackendCallFailed)) == 1
	}, time.Second, 10*time.Millisecond)

	delivery.mu.Lock()
	decoded, err := events.Unmarshal(delivery.delivered["session-1"][0])
	delivery.mu.Unlock()
	require.NoError(t, err)
	assert.Equal(t, events.TypeStageChanged, decoded.EventType())
	assert.Equal(t, "analyze", decoded.Payload()["to"])

	forwarded := sink.ofType(events.TypeStageChanged)
	require.Len(t, forwarded, 1)
	assert.Equal(t, "session-1", forwarded[0].SessionID())
	assert.Equal(t, 0, delivery.count(""))
}

func TestEventRelayService_AcksUndecodableMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	delivery := &fakeDelivery{delivered: map[string][][]byte{}}
	relay := NewEventRelayService(pubSub, "workflow_events", delivery, nil, logger.NewNopLogger())
	require.NoError(t, relay.Consume(ctx))

	require.NoError(t, pubSub.Publish("workflow_events", message.NewMessage(watermill.NewUUID(), []byte("not json"))))
	publisher := NewPublisherService("workflow_events", pubSub)
	require.NoError(t, publisher.Publish(ctx, events.New(events.TypeSessionCreated, "session-2", nil)))

	assert.Eventually(t, func() bool {
		return delivery.count("session-2") == 1
	}, time.Second, 10*time.Millisecond)
}
