package broker

import (
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// IPublisher publishes a payload on a topic.
type IPublisher interface {
	PublishMessage(topic string, payload []byte) error
	Close()
}

// Publisher publishes on the shared client.
type Publisher struct {
	client   mqtt.Client
	qos      byte
	retained bool
}

// NewPublisher creates a Publisher instance using the shared MQTT client.
func NewPublisher(client mqtt.Client, qos byte, retained bool) *Publisher {
	return &Publisher{
		client:   client,
		qos:      qos,
		retained: retained,
	}
}

// PublishMessage publishes payload and waits for the broker to accept it.
func (p *Publisher) PublishMessage(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		publishCounter("error").Inc()
		return errors.Wrapf(err, "publish to %s", topic)
	}
	publishCounter("ok").Inc()

	log.WithFields(log.Fields{
		"topic": topic,
		"bytes": len(payload),
	}).Debug("broker: message published")
	return nil
}

// Close disconnects the shared client.
func (p *Publisher) Close() {
	Close(p.client)
}

// ExpandTopic substitutes {key} placeholders of a topic template. Values are
// stripped of MQTT wildcard and level characters.
func ExpandTopic(tmpl string, values map[string]string) string {
	out := tmpl
	for k, v := range values {
		out = strings.ReplaceAll(out, "{"+k+"}", sanitizeLevel(v))
	}
	return out
}

func sanitizeLevel(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
