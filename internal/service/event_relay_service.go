package service

import (
	"context"

	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// SessionDelivery pushes a serialized event to the watchers of a session.
type SessionDelivery interface {
	Deliver(ctx context.Context, sessionID string, message []byte)
}

// EventSink forwards events to an external bus.
type EventSink interface {
	Publish(ctx context.Context, event events.Event) error
}

type IEventRelayService interface {
	Consume(ctx context.Context) error
}

type eventRelayService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	delivery  SessionDelivery
	sink      EventSink
	logger    logger.ILogger
}

// NewEventRelayService relays bus events to websocket watchers and, when sink
// is non-nil, to the external bus.
func NewEventRelayService(
	pubSub *gochannel.GoChannel,
	topicName string,
	delivery SessionDelivery,
	sink EventSink,
	logger logger.ILogger,
) IEventRelayService {
	return &eventRelayService{
		pubSub:    pubSub,
		topicName: topicName,
		delivery:  delivery,
		sink:      sink,
		logger:    logger,
	}
}

func (rs *eventRelayService) Consume(ctx context.Context) error {
	messages, err := rs.pubSub.Subscribe(ctx, rs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			rs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (rs *eventRelayService) processMessage(ctx context.Context, msg *message.Message) {
	event, err := events.Unmarshal(msg.Payload)
	if err != nil {
		rs.logger.Error("EVENT_RELAY", "Failed to decode event", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if rs.delivery != nil && event.SessionID() != "" {
		rs.delivery.Deliver(ctx, event.SessionID(), msg.Payload)
	}

	if rs.sink != nil {
		if err := rs.sink.Publish(ctx, event); err != nil {
			rs.logger.Warn("EVENT_RELAY", "Failed to forward event", map[string]interface{}{
				"event_type": event.EventType(),
				"session_id": event.SessionID(),
				"error":      err.Error(),
			})
		}
	}

	msg.Ack()
}
