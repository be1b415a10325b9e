// Package persistence stores decoded readings in InfluxDB and serves the
// latest reading per device.
package persistence

import (
	"context"
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/model"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/broker"
)

type Service struct {
	consumer    broker.IConsumer
	writer      *Writer
	cache       *Cache
	measurement string
}

func NewService(consumer broker.IConsumer, writer *Writer, cache *Cache, measurement string) *Service {
	return &Service{
		consumer:    consumer,
		writer:      writer,
		cache:       cache,
		measurement: measurement,
	}
}

// Start consumes decoded readings until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(s.Handle)
	s.consumer.ConsumeMessage(ctx)
}

// Handle implements broker.Handler. Invalid messages are logged and
// skipped so they never block the stream.
func (s *Service) Handle(_ string, m mqtt.Message) error {
	var r model.DecodedReading
	if err := json.Unmarshal(m.Payload(), &r); err != nil {
		writeCounter("invalid").Inc()
		log.WithError(err).WithField("topic", m.Topic()).Warning("persistence: invalid decoded reading")
		return nil
	}
	if r.DeviceID == "" {
		writeCounter("invalid").Inc()
		log.WithField("topic", m.Topic()).Warning("persistence: decoded reading without device id")
		return nil
	}

	s.writer.Write(ReadingToPoint(s.measurement, r))
	s.cache.Put(r)

	log.WithFields(log.Fields{
		"device_id":   r.DeviceID,
		"measurement": s.measurement,
	}).Debug("persistence: reading queued")
	return nil
}
