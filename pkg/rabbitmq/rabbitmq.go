package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config describes the broker connection. The broker is RabbitMQ with its
// MQTT plugin, or any MQTT 3.1.1 broker.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	ClientID  string
	KeepAlive time.Duration
	// MaxRetries bounds the initial connection attempts.
	MaxRetries int
	// OnConnect runs after every (re)connection, e.g. to resubscribe.
	OnConnect func(mqtt.Client)
}

func (c *Config) broker() string { return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port) }

// NewConn connects with exponential backoff and disconnects when ctx is done.
func NewConn(ctx context.Context, cfg *Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.broker())
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqtt: connection lost: %v", err)
	})
	if cfg.OnConnect != nil {
		opts.SetOnConnectHandler(cfg.OnConnect)
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	client := mqtt.NewClient(opts)
	err := backoff.Retry(func() error {
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqtt: connect %s: %v", cfg.broker(), token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}
	log.Printf("mqtt: connected to %s as %s", cfg.broker(), cfg.ClientID)

	go func() {
		<-ctx.Done()
		Close(client)
	}()
	return client, nil
}

func Close(client mqtt.Client) {
	if client.IsConnected() {
		client.Disconnect(250)
		log.Println("mqtt: connection closed")
	}
}
