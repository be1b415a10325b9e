package broker

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Handler processes one message received on a subscription.
type Handler func(subscription string, message mqtt.Message) error

// IConsumer subscribes and dispatches messages to its handler until the
// context is cancelled.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer subscribes to a single topic filter.
type Consumer struct {
	client  mqtt.Client
	topic   string
	qos     byte
	handler Handler
}

// NewConsumer creates a consumer on the shared client.
func NewConsumer(client mqtt.Client, topic string, qos byte, handler Handler) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		qos:     qos,
		handler: handler,
	}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// ConsumeMessage subscribes and blocks until ctx is done, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	token := c.client.Subscribe(c.topic, c.qos, dispatch(c.topic, func() Handler { return c.handler }))
	if token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).WithField("topic", c.topic).Error("broker: subscribe error")
		return
	}
	log.WithFields(log.Fields{"topic": c.topic, "qos": c.qos}).Info("broker: subscribed to topic")

	<-ctx.Done()

	c.client.Unsubscribe(c.topic).Wait()
}

// MultiConsumer subscribes the same handler to several topic filters.
type MultiConsumer struct {
	client  mqtt.Client
	topics  []string
	qos     byte
	handler Handler
}

func NewMultiConsumer(client mqtt.Client, topics []string, qos byte, handler Handler) *MultiConsumer {
	return &MultiConsumer{
		client:  client,
		topics:  topics,
		qos:     qos,
		handler: handler,
	}
}

func (m *MultiConsumer) SetHandler(handler Handler) {
	m.handler = handler
}

func (m *MultiConsumer) ConsumeMessage(ctx context.Context) {
	for _, topic := range m.topics {
		token := m.client.Subscribe(topic, m.qos, dispatch(topic, func() Handler { return m.handler }))
		token.Wait()
		if token.Error() != nil {
			log.WithError(token.Error()).WithField("topic", topic).Error("broker: subscribe error")
			continue
		}
		log.WithFields(log.Fields{"topic": topic, "qos": m.qos}).Info("broker: subscribed to topic")
	}

	<-ctx.Done()

	m.client.Unsubscribe(m.topics...)
}

func dispatch(subscription string, handler func() Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		messageCounter(subscription).Inc()
		h := handler()
		if h == nil {
			log.WithField("topic", subscription).Warning("broker: no handler set")
			return
		}
		if err := h(subscription, msg); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"subscription": subscription,
				"topic":        msg.Topic(),
			}).Error("broker: handle message error")
		}
	}
}
