package relay

import (
	"context"
	"log"

	"github.com/IBM/sarama"
)

// FrameHandler receives every frame the consumer group claims. Returning
// an error leaves the offset unmarked so the frame is redelivered.
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame Frame) error
}

// InstanceGroup derives a consumer group id unique to one server
// instance. Instances must never share a group: the group balancer hands
// each frame to a single member, and every instance needs the full topic
// to reach its local subscribers.
func InstanceGroup(base, instanceID string) string {
	return base + "-" + instanceID
}

// Consumer joins the relay consumer group and fans claimed frames into
// the handler. Each server instance runs one consumer in its own group,
// so every instance sees every frame and can deliver to its local
// subscribers.
type Consumer struct {
	consumerGroup sarama.ConsumerGroup
	topics        []string
	handler       FrameHandler
}

func NewConsumer(brokers []string, groupID string, topics []string,
	config *sarama.Config, handler FrameHandler) (*Consumer, error) {
	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		consumerGroup: consumerGroup,
		topics:        topics,
		handler:       handler,
	}, nil
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		frame, err := DecodeFrame(message.Value)
		if err != nil {
			// A frame we cannot parse will never parse, skip it.
			log.Printf("Failed to decode frame at offset %d: %v", message.Offset, err)
			session.MarkMessage(message, "")
			continue
		}
		if err := c.handler.HandleFrame(session.Context(), frame); err != nil {
			log.Printf("Failed to handle frame %s: %v", frame.ID, err)
			continue
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.consumerGroup.Consume(ctx, c.topics, c); err != nil {
			if err == sarama.ErrClosedConsumerGroup {
				return nil
			}
			log.Printf("Relay consume error: %v", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumerGroup.Close()
}
