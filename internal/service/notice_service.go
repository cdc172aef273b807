package service

import (
	"context"
	"encoding/json"

	"catalog-lens/internal/pkg/logger"
	"catalog-lens/pkg/capture"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	noticeModule = "Notice"
	NoticeTopic  = "capture.notices"
)

// NoticePublisher puts workflow notices on the event bus. It implements
// capture.Notifier.
type NoticePublisher struct {
	publisher message.Publisher
	logger    logger.ILogger
}

func NewNoticePublisher(publisher message.Publisher, log logger.ILogger) *NoticePublisher {
	return &NoticePublisher{publisher: publisher, logger: log}
}

func (p *NoticePublisher) Notify(_ context.Context, n capture.Notice) {
	payload, err := json.Marshal(n)
	if err != nil {
		p.logger.Error(noticeModule, "Failed to encode notice", map[string]interface{}{"error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.publisher.Publish(NoticeTopic, msg); err != nil {
		p.logger.Warn(noticeModule, "Failed to publish notice", map[string]interface{}{
			"code":  n.Code,
			"error": err.Error(),
		})
	}
}

// NoticeSink delivers encoded frames to connected UIs.
type NoticeSink interface {
	Broadcast(data []byte)
}

type INoticeConsumer interface {
	Consume(ctx context.Context) error
}

type noticeConsumer struct {
	subscriber message.Subscriber
	sink       NoticeSink
	logger     logger.ILogger
}

func NewNoticeConsumer(subscriber message.Subscriber, sink NoticeSink, log logger.ILogger) INoticeConsumer {
	return &noticeConsumer{subscriber: subscriber, sink: sink, logger: log}
}

// Consume subscribes and forwards notices until ctx is done. It returns once
// the subscription is established.
func (c *noticeConsumer) Consume(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, NoticeTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			c.processMessage(msg)
		}
	}()
	return nil
}

func (c *noticeConsumer) processMessage(msg *message.Message) {
	// Ack malformed messages too; retrying them cannot help.
	defer msg.Ack()

	var notice capture.Notice
	if err := json.Unmarshal(msg.Payload, &notice); err != nil {
		c.logger.Warn(noticeModule, "Dropping malformed notice", map[string]interface{}{"error": err.Error()})
		return
	}
	frame, err := json.Marshal(map[string]interface{}{
		"type": "notice",
		"data": notice,
	})
	if err != nil {
		return
	}
	c.sink.Broadcast(frame)
}
