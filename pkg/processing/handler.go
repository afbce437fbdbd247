package processing

import (
	"fmt"
)

// JSONPublisher publishes a value wrapped in a typed envelope.
type JSONPublisher interface {
	PublishJSON(topic string, messageType string, data interface{}) error
}

// NewPublishProcessor returns a Processor that publishes every item on topic.
func NewPublishProcessor(publisher JSONPublisher, topic, messageType string) Processor {
	return func(item interface{}) error {
		if err := publisher.PublishJSON(topic, messageType, item); err != nil {
			return fmt.Errorf("publish on %s: %w", topic, err)
		}
		return nil
	}
}
