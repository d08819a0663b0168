package rabbitmq

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one message received on topic (the subscription filter).
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes and dispatches to a handler until ctx is done.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// qosFor picks at-least-once delivery for commands and events.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "cmd/") || strings.HasPrefix(t, "event/") {
		return 1
	}
	return 0
}

// Consumer subscribes to one or more topic filters on a shared client.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	handler Handler
}

func NewConsumer(client mqtt.Client, handler Handler, topics ...string) *Consumer {
	return &Consumer{client: client, topics: topics, handler: handler}
}

func (c *Consumer) SetHandler(handler Handler) { c.handler = handler }

func (c *Consumer) Topics() []string { return c.topics }

// Subscribe (re)installs every subscription; safe to call from an
// OnConnect hook.
func (c *Consumer) Subscribe() {
	for _, topic := range c.topics {
		topic := topic
		token := c.client.Subscribe(topic, qosFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				log.Printf("consumer: no handler for %s", topic)
				return
			}
			if err := c.handler(topic, msg); err != nil {
				log.Printf("consumer: %s: %v", msg.Topic(), err)
			}
		})
		if token.Wait() && token.Error() != nil {
			log.Printf("consumer: subscribe %s: %v", topic, token.Error())
			continue
		}
		log.Printf("consumer: subscribed to %s (qos=%d)", topic, qosFor(topic))
	}
}

// ConsumeMessage subscribes and blocks until ctx is done, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	c.Subscribe()
	<-ctx.Done()
	if len(c.topics) > 0 && c.client.IsConnected() {
		c.client.Unsubscribe(c.topics...).Wait()
	}
}
