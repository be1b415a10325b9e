// Package aggregator publishes per-device means of the decoded readings
// over fixed windows.
package aggregator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/model/messages"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/broker"
)

type Service struct {
	consumer  broker.IConsumer
	publisher broker.IPublisher
	topicTmpl string
	interval  time.Duration
	now       func() time.Time

	mutex       sync.Mutex
	buffer      map[string][]messages.DecodedReading
	windowStart time.Time
}

func NewService(consumer broker.IConsumer, publisher broker.IPublisher, topicTmpl string, interval time.Duration) *Service {
	return &Service{
		consumer:    consumer,
		publisher:   publisher,
		topicTmpl:   topicTmpl,
		interval:    interval,
		now:         time.Now,
		buffer:      make(map[string][]messages.DecodedReading),
		windowStart: time.Now().UTC(),
	}
}

// Handle buffers one decoded reading.
func (s *Service) Handle(_ string, message mqtt.Message) error {
	var r messages.DecodedReading
	if err := json.Unmarshal(message.Payload(), &r); err != nil {
		return errors.Wrap(err, "unmarshal decoded reading error")
	}
	if r.DeviceID == "" {
		return errors.New("decoded reading without device id")
	}

	s.mutex.Lock()
	s.buffer[r.DeviceID] = append(s.buffer[r.DeviceID], r)
	s.mutex.Unlock()

	log.WithField("device_id", r.DeviceID).Debug("aggregator: reading buffered")
	return nil
}

// Start consumes readings and publishes the aggregates every interval until
// ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(s.Handle)
	go s.consumer.ConsumeMessage(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.publisher.Close()
			return
		case <-ticker.C:
			s.AggregateAndPublish()
		}
	}
}

// AggregateAndPublish publishes one AggregatedReading per buffered device
// and resets the buffer.
func (s *Service) AggregateAndPublish() {
	s.mutex.Lock()
	buf := s.buffer
	start := s.windowStart
	end := s.now().UTC()
	s.buffer = make(map[string][]messages.DecodedReading)
	s.windowStart = end
	s.mutex.Unlock()

	for deviceID, readings := range buf {
		if len(readings) == 0 {
			continue
		}
		out := Aggregate(deviceID, readings, start, end)

		b, err := json.Marshal(out)
		if err != nil {
			log.WithError(err).Error("aggregator: marshal error")
			continue
		}
		topic := broker.ExpandTopic(s.topicTmpl, map[string]string{"device": deviceID})
		if err := s.publisher.PublishMessage(topic, b); err != nil {
			log.WithError(err).WithField("topic", topic).Error("aggregator: publish error")
			continue
		}
		log.WithFields(log.Fields{
			"device_id": deviceID,
			"samples":   out.Samples,
			"topic":     topic,
		}).Info("aggregator: aggregate published")
	}
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

// Aggregate computes the per-field means of readings. A field no reading
// carried stays nil.
func Aggregate(deviceID string, readings []messages.DecodedReading, start, end time.Time) messages.AggregatedReading {
	var vBat, tempC, p, rh, tDew mean
	for _, r := range readings {
		vBat.add(r.Payload.VBat)
		tempC.add(r.Payload.TempC)
		p.add(r.Payload.P)
		rh.add(r.Payload.RH)
		tDew.add(r.Payload.TDewC)
	}
	return messages.AggregatedReading{
		DeviceID:    deviceID,
		Samples:     len(readings),
		VBat:        vBat.value(),
		TempC:       tempC.value(),
		P:           p.value(),
		RH:          rh.value(),
		TDewC:       tDew.value(),
		WindowStart: start,
		WindowEnd:   end,
	}
}
