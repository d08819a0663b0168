package irrigation_controller

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

// Topic templates for published events.
const (
	TopicStateChange = "event/StateChange/{field}/{key}"
	TopicDosage      = "event/dosage/{field}/{key}"
	TopicCycle       = "event/cycle/{field}/{key}"
	TopicDayRecord   = "event/dayRecord/{field}"
)

func formatTopic(tmpl, field, key string) string {
	return strings.NewReplacer("{field}", field, "{key}", key).Replace(tmpl)
}

// Notifier receives telemetry from the control loop. Implementations must
// not block.
type Notifier interface {
	Notify(topic string, payload any)
}

type NopNotifier struct{}

func (NopNotifier) Notify(string, any) {}

// QosPublisher is the subset of the MQTT publisher the notifier needs.
type QosPublisher interface {
	PublishToQos(topic string, qos byte, retained bool, payload string) error
}

type envelope struct {
	topic   string
	payload []byte
}

// MQTTNotifier queues events from the tick and publishes them from its own
// goroutine behind a circuit breaker, dropping events when the queue is full.
type MQTTNotifier struct {
	pub     QosPublisher
	queue   chan envelope
	cb      *gobreaker.CircuitBreaker
	dropped atomic.Uint64
}

func NewMQTTNotifier(pub QosPublisher, size int) *MQTTNotifier {
	if size <= 0 {
		size = 256
	}
	return &MQTTNotifier{
		pub:   pub,
		queue: make(chan envelope, size),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "mqtt-notifier",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("notifier: breaker %s %s -> %s", name, from, to)
			},
		}),
	}
}

func (n *MQTTNotifier) Notify(topic string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notifier: marshal %s: %v", topic, err)
		return
	}
	select {
	case n.queue <- envelope{topic: topic, payload: b}:
	default:
		if n.dropped.Add(1)%100 == 1 {
			log.Printf("notifier: queue full, dropped=%d", n.dropped.Load())
		}
	}
}

// Run publishes queued events until ctx is done.
func (n *MQTTNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-n.queue:
			_, err := n.cb.Execute(func() (any, error) {
				return nil, n.pub.PublishToQos(e.topic, 1, false, string(e.payload))
			})
			if err != nil {
				n.dropped.Add(1)
				log.Printf("notifier: publish %s: %v", e.topic, err)
			}
		}
	}
}

func (n *MQTTNotifier) Dropped() uint64 { return n.dropped.Load() }
