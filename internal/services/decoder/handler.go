// Package decoder hosts the service that turns network-server uplinks into
// decoded Model 4916 readings.
package decoder

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/model/entities"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/model/messages"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/broker"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/dedup"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/format27"
)

const dedupTimeout = 2 * time.Second

// Handler decodes uplinks received from the network server and publishes
// the resulting readings.
type Handler struct {
	dedup     dedup.Deduper
	publisher broker.IPublisher
	topicTmpl string
	local     entities.DeviceInfo
	now       func() time.Time

	mu         sync.RWMutex
	lastDecode time.Time
}

// NewHandler creates a Handler. A nil deduper processes every message.
func NewHandler(d dedup.Deduper, p broker.IPublisher, topicTmpl string, local entities.DeviceInfo) *Handler {
	return &Handler{
		dedup:     d,
		publisher: p,
		topicTmpl: topicTmpl,
		local:     local.WithDefaults(),
		now:       time.Now,
	}
}

// Handle implements broker.Handler. Decode failures are counted and logged
// here and never returned; only publish errors are.
func (h *Handler) Handle(_ string, m mqtt.Message) error {
	start := h.now()

	if h.dedup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), dedupTimeout)
		ok := h.dedup.ShouldProcess(ctx, dedup.Key(m.Payload()))
		cancel()
		if !ok {
			uplinkCounter(OutcomeDuplicate).Inc()
			log.WithField("topic", m.Topic()).Debug("decoder: duplicate uplink dropped")
			return nil
		}
	}

	up, err := messages.ParseUplink(m.Topic(), m.Payload())
	if err != nil {
		uplinkCounter(OutcomeInvalidEnvelope).Inc()
		log.WithError(err).WithField("topic", m.Topic()).Warning("decoder: invalid uplink envelope")
		return nil
	}

	rec, err := format27.Decode(up.Payload, up.Port)
	outcome := format27.Outcome(err)
	uplinkCounter(outcome).Inc()
	if err != nil {
		logOutcome(up, outcome, err)
		return nil
	}

	reading := messages.DecodedReading{
		ID:         uuid.NewString(),
		DeviceID:   up.DeviceID,
		DevEUI:     up.DevEUI,
		Port:       up.Port,
		Payload:    rec,
		Local:      h.local,
		ReceivedAt: up.ReceivedAt,
		DecodedAt:  h.now().UTC(),
	}
	b, err := json.Marshal(reading)
	if err != nil {
		return errors.Wrap(err, "marshal decoded reading error")
	}

	topic := broker.ExpandTopic(h.topicTmpl, map[string]string{"device": up.DeviceID})
	if err := h.publisher.PublishMessage(topic, b); err != nil {
		uplinkCounter(OutcomePublishError).Inc()
		return errors.Wrap(err, "publish decoded reading error")
	}

	h.mu.Lock()
	h.lastDecode = reading.DecodedAt
	h.mu.Unlock()
	dd.Observe(h.now().Sub(start).Seconds())

	log.WithFields(log.Fields{
		"device_id": up.DeviceID,
		"dev_eui":   up.DevEUI,
		"network":   up.Network,
		"flags":     rec.Flags,
		"topic":     topic,
	}).Info("decoder: uplink decoded")
	return nil
}

// LastDecodeAge returns the time since the last published reading, or a
// negative duration when nothing has been decoded yet.
func (h *Handler) LastDecodeAge() time.Duration {
	h.mu.RLock()
	t := h.lastDecode
	h.mu.RUnlock()
	if t.IsZero() {
		return -1
	}
	return h.now().Sub(t)
}

func logOutcome(up messages.Uplink, outcome string, err error) {
	entry := log.WithError(err).WithFields(log.Fields{
		"device_id": up.DeviceID,
		"port":      up.Port,
		"outcome":   outcome,
	})
	switch outcome {
	case format27.OutcomePortNotApplicable:
		entry.Debug("decoder: uplink port not applicable")
	case format27.OutcomeUnrecognizedFormat:
		entry.Error("decoder: not ours!")
	case format27.OutcomeTruncatedInput:
		entry.Warning("decoder: truncated uplink payload")
	default:
		entry.Error("decoder: decode error")
	}
}
