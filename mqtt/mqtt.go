// Package mqtt carries candidates in from, and filtered output out to, an
// MQTT broker.
package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotblauer/fixguard/app"
	"github.com/rotblauer/fixguard/ingest"
	"github.com/rotblauer/fixguard/params"
	"github.com/rotblauer/fixguard/types/fix"
)

// PublishTimeout bounds how long one publish waits for the broker.
const PublishTimeout = 5 * time.Second

var ErrTimeout = errors.New("mqtt timeout")

// Dispatcher decides parsed items. *app.Host satisfies it.
type Dispatcher interface {
	DispatchAll(items []ingest.Item) []app.Outcome
}

// publisher is the part of paho.Client the Publisher needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

func clientOptions(config *params.MQTTConfig, role string) *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID + "-" + role).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
}

func connect(client paho.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("connect: %w", ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

func wait(token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return token.Error()
}

// Publisher forwards accepted samples and pass-through values to the
// output topic as Signal K deltas. It satisfies app.Forwarder.
type Publisher struct {
	client publisher
	topic  string
	qos    byte
	close  func()
}

// NewPublisher connects to the configured broker.
func NewPublisher(config *params.MQTTConfig) (*Publisher, error) {
	opts := clientOptions(config, "pub")
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		slog.Warn("MQTT publisher connection lost", "d", "mqtt", "error", err)
	})
	client := paho.NewClient(opts)
	if err := connect(client, config.ConnectTimeout); err != nil {
		return nil, err
	}
	return &Publisher{
		client: client,
		topic:  config.OutputTopic,
		qos:    config.QoS,
		close:  func() { client.Disconnect(1000) },
	}, nil
}

// Accept publishes an accepted candidate in the value it arrived in, or
// as a navigation.position delta when it arrived flat.
func (p *Publisher) Accept(s fix.Sample, v ingest.Value) error {
	return p.Pass(ingest.ValueOf(s, v))
}

// Pass publishes v unchanged.
func (p *Publisher) Pass(v ingest.Value) error {
	payload, err := ingest.EncodeDelta(v)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	if err := wait(p.client.Publish(p.topic, p.qos, false, payload), PublishTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", v.Path, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}

// Subscriber feeds messages from the input topic to a Dispatcher.
// Each message may hold a flat candidate or a Signal K delta.
type Subscriber struct {
	host   Dispatcher
	parser *ingest.Parser
	topic  string
	qos    byte
	client paho.Client
	logger *slog.Logger
}

func newSubscriber(config *params.MQTTConfig, host Dispatcher) *Subscriber {
	return &Subscriber{
		host:   host,
		parser: ingest.NewParser(),
		topic:  config.InputTopic,
		qos:    config.QoS,
		logger: slog.With("d", "mqtt"),
	}
}

// NewSubscriber connects and subscribes. The subscription is renewed on
// every reconnect.
func NewSubscriber(config *params.MQTTConfig, host Dispatcher) (*Subscriber, error) {
	s := newSubscriber(config, host)
	opts := clientOptions(config, "sub").
		SetCleanSession(true).
		SetOnConnectHandler(func(c paho.Client) {
			token := c.Subscribe(s.topic, s.qos, s.handle)
			if err := wait(token, config.ConnectTimeout); err != nil {
				s.logger.Error("Failed to subscribe", "topic", s.topic, "error", err)
				return
			}
			s.logger.Info("Subscribed", "topic", s.topic)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Warn("MQTT subscriber connection lost", "error", err)
		})
	s.client = paho.NewClient(opts)
	if err := connect(s.client, config.ConnectTimeout); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Subscriber) handle(_ paho.Client, msg paho.Message) {
	outcomes := s.Handle(msg.Payload())
	s.logger.Debug("Message", "topic", msg.Topic(), "bytes", len(msg.Payload()), "items", len(outcomes))
}

// Handle parses and dispatches one message payload.
func (s *Subscriber) Handle(payload []byte) []app.Outcome {
	return s.host.DispatchAll(s.parser.Parse(payload))
}

func (s *Subscriber) Close() error {
	if s.client == nil {
		return nil
	}
	if err := wait(s.client.Unsubscribe(s.topic), time.Second); err != nil {
		s.logger.Warn("Failed to unsubscribe", "topic", s.topic, "error", err)
	}
	s.client.Disconnect(1000)
	return nil
}
