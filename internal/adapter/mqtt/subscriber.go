// Package mqtt consumes OwnTracks-style location fixes from an MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/mute-zones-service/internal/config"
	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

const (
	subscribeQoS   = 1
	connectTimeout = 10 * time.Second
	disconnectWait = 250 // milliseconds
)

// Subscriber receives fixes pushed by the broker and hands them out in batches.
// It implements pipeline.BatchExtractor.
type Subscriber struct {
	client        pahomqtt.Client
	topic         string
	flushInterval time.Duration
	messages      chan domain.RawFix
	logger        *slog.Logger
}

// NewSubscriber configures a persistent-session client for the configured
// broker and topic. Call Connect before extracting.
func NewSubscriber(cfg *config.Config, logger *slog.Logger) *Subscriber {
	s := newSubscriber(cfg.MQTTTopic, cfg.BatchFlushInterval, cfg.BatchSize, logger)

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetAutoAckDisabled(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			// Resubscribe on every (re)connect; the broker may have dropped
			// the subscription along with the connection.
			if err := s.subscribe(c); err != nil {
				s.logger.Error("mqtt resubscribe failed", "error", err, "topic", s.topic)
			}
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			s.logger.Warn("mqtt connection lost", "error", err)
		})
	s.client = pahomqtt.NewClient(opts)
	return s
}

func newSubscriber(topic string, flushInterval time.Duration, buffer int, logger *slog.Logger) *Subscriber {
	if buffer < 1 {
		buffer = 1
	}
	return &Subscriber{
		topic:         topic,
		flushInterval: flushInterval,
		messages:      make(chan domain.RawFix, buffer*2),
		logger:        logger,
	}
}

// Connect dials the broker. The subscription is made by the on-connect handler.
func (s *Subscriber) Connect(ctx context.Context) error {
	token := s.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	s.logger.Info("mqtt subscriber connected", "topic", s.topic)
	return nil
}

func (s *Subscriber) subscribe(c pahomqtt.Client) error {
	token := c.Subscribe(s.topic, subscribeQoS, s.handle)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("subscribe %s: timed out", s.topic)
	}
	return token.Error()
}

// handle runs on the paho router goroutine. Blocking here applies
// backpressure to the broker, which is what an unacked QoS 1 stream wants.
func (s *Subscriber) handle(_ pahomqtt.Client, msg pahomqtt.Message) {
	if msg.Retained() {
		// A retained fix is the last known position, possibly hours old.
		msg.Ack()
		return
	}
	s.messages <- mapMessageToRawFix(msg)
}

// ExtractBatch waits up to the flush interval for fixes and returns up to
// batchSize of them. An empty batch means nothing arrived in time.
func (s *Subscriber) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawFix, error) {
	timer := time.NewTimer(s.flushInterval)
	defer timer.Stop()

	batch := make([]domain.RawFix, 0, batchSize)
	for len(batch) < batchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return batch, nil
		case raw := <-s.messages:
			batch = append(batch, raw)
		}
	}
	return batch, nil
}

func (s *Subscriber) Close() error {
	if s.client == nil {
		return nil
	}
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	}
	s.client.Disconnect(disconnectWait)
	return nil
}

// mapMessageToRawFix copies the payload and acks the message on commit.
func mapMessageToRawFix(msg pahomqtt.Message) domain.RawFix {
	return domain.RawFix{
		Value:  msg.Payload(),
		Topic:  msg.Topic(),
		Offset: int64(msg.MessageID()),
		Device: deviceFromTopic(msg.Topic()),
		Commit: func(context.Context) error {
			msg.Ack()
			return nil
		},
	}
}

// deviceFromTopic extracts "user/device" from an OwnTracks location topic
// (owntracks/<user>/<device>). Other topics carry no device identity.
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "owntracks" || parts[1] == "" || parts[2] == "" {
		return ""
	}
	return parts[1] + "/" + parts[2]
}
