package replay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/LeonardoBeccarini/model4916_decoder/pkg/broker"
)

// TopicTemplate is the The Things Stack v3 uplink topic.
const TopicTemplate = "v3/{app}/devices/{device}/up"

type envelope struct {
	EndDeviceIDs struct {
		DeviceID       string `json:"device_id"`
		ApplicationIDs struct {
			ApplicationID string `json:"application_id"`
		} `json:"application_ids"`
	} `json:"end_device_ids"`
	CorrelationIDs []string  `json:"correlation_ids"`
	ReceivedAt     time.Time `json:"received_at"`
	UplinkMessage  struct {
		FPort      int    `json:"f_port"`
		FRMPayload []byte `json:"frm_payload"`
	} `json:"uplink_message"`
}

// Envelope wraps c into a The Things Stack v3 uplink message.
func Envelope(c Capture, app string, at time.Time) ([]byte, error) {
	var env envelope
	env.EndDeviceIDs.DeviceID = c.DeviceID
	env.EndDeviceIDs.ApplicationIDs.ApplicationID = app
	env.CorrelationIDs = []string{"replay:uplink:" + uuid.NewString()}
	env.ReceivedAt = at.UTC()
	env.UplinkMessage.FPort = c.Port
	env.UplinkMessage.FRMPayload = c.Payload

	b, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "marshal envelope error")
	}
	return b, nil
}

// Replayer publishes captures at a fixed interval.
type Replayer struct {
	publisher broker.IPublisher
	app       string
	interval  time.Duration
	loop      bool
	now       func() time.Time
}

func NewReplayer(p broker.IPublisher, app string, interval time.Duration, loop bool) *Replayer {
	return &Replayer{
		publisher: p,
		app:       app,
		interval:  interval,
		loop:      loop,
		now:       time.Now,
	}
}

// Run publishes every capture once, or forever when looping, and returns
// the number of published messages. It stops early when ctx is done.
func (r *Replayer) Run(ctx context.Context, captures []Capture) (int, error) {
	if len(captures) == 0 {
		return 0, errors.New("no captures to replay")
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	sent := 0
	for {
		for _, c := range captures {
			b, err := Envelope(c, r.app, r.now())
			if err != nil {
				return sent, err
			}
			topic := broker.ExpandTopic(TopicTemplate, map[string]string{"app": r.app, "device": c.DeviceID})
			if err := r.publisher.PublishMessage(topic, b); err != nil {
				log.WithError(err).WithField("topic", topic).Error("replay: publish error")
			} else {
				sent++
				log.WithFields(log.Fields{
					"device_id": c.DeviceID,
					"port":      c.Port,
					"bytes":     len(c.Payload),
				}).Info("replay: uplink published")
			}

			select {
			case <-ctx.Done():
				return sent, nil
			case <-ticker.C:
			}
		}
		if !r.loop {
			return sent, nil
		}
	}
}
