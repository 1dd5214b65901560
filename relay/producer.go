package relay

import (
	"log"

	"github.com/IBM/sarama"
)

// Publisher forwards chat frames to the broker topic. Sends are
// synchronous: a returned nil means the broker acked the frame.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewPublisher(brokers []string, topic string, config *sarama.Config) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &Publisher{producer: producer, topic: topic}, nil
}

func (p *Publisher) Publish(frame Frame) error {
	value, err := frame.Encode()
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(frame.RoomID),
		Value: sarama.ByteEncoder(value),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		log.Printf("Failed to publish frame %s: %v", frame.ID, err)
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

// FrameInterceptor tags outgoing messages so relayed traffic is
// recognizable in broker tooling.
type FrameInterceptor struct{}

func NewFrameInterceptor() *FrameInterceptor {
	return &FrameInterceptor{}
}

func (i *FrameInterceptor) OnSend(msg *sarama.ProducerMessage) {
	msg.Headers = append(msg.Headers, sarama.RecordHeader{
		Key:   []byte("relayed-by"),
		Value: []byte("chatrelay"),
	})
}
