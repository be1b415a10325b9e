package aggregator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/model/messages"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/testutil"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/broker"
)

func f(v float64) *float64 { return &v }

func reading(device string, tempC, vBat *float64) messages.DecodedReading {
	r := messages.DecodedReading{DeviceID: device, Port: 1}
	r.Payload.TempC = tempC
	r.Payload.VBat = vBat
	return r
}

func message(t *testing.T, r messages.DecodedReading) testutil.Message {
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return testutil.Message{TopicName: "sensor/decoded/" + r.DeviceID, Body: b}
}

func TestAggregate(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	out := Aggregate("dev-1", []messages.DecodedReading{
		reading("dev-1", f(20), nil),
		reading("dev-1", f(22), f(4.0)),
		reading("dev-1", nil, nil),
	}, start, end)

	assert.Equal(t, "dev-1", out.DeviceID)
	assert.Equal(t, 3, out.Samples)
	require.NotNil(t, out.TempC)
	assert.InDelta(t, 21.0, *out.TempC, 1e-9)
	require.NotNil(t, out.VBat)
	assert.InDelta(t, 4.0, *out.VBat, 1e-9)
	assert.Nil(t, out.P)
	assert.Nil(t, out.RH)
	assert.Nil(t, out.TDewC)
	assert.Equal(t, start, out.WindowStart)
	assert.Equal(t, end, out.WindowEnd)
}

func TestAggregateAndPublish(t *testing.T) {
	pub := &testutil.Publisher{}
	s := NewService(nil, pub, "sensor/aggregated/{device}", time.Minute)

	require.NoError(t, s.Handle("", message(t, reading("dev-1", f(10), nil))))
	require.NoError(t, s.Handle("", message(t, reading("dev-1", f(20), nil))))
	require.NoError(t, s.Handle("", message(t, reading("dev-2", nil, f(3.3)))))
	assert.Error(t, s.Handle("", testutil.Message{Body: []byte("{")}))
	assert.Error(t, s.Handle("", testutil.Message{Body: []byte(`{"port":1}`)}))

	s.AggregateAndPublish()

	sent := pub.Sent()
	require.Len(t, sent, 2)
	byTopic := map[string]messages.AggregatedReading{}
	for _, m := range sent {
		var a messages.AggregatedReading
		require.NoError(t, json.Unmarshal(m.Payload, &a))
		byTopic[m.Topic] = a
	}
	a1 := byTopic["sensor/aggregated/dev-1"]
	assert.Equal(t, 2, a1.Samples)
	assert.InDelta(t, 15.0, *a1.TempC, 1e-9)
	a2 := byTopic["sensor/aggregated/dev-2"]
	assert.Equal(t, 1, a2.Samples)
	assert.Nil(t, a2.TempC)

	// buffer is reset after each cycle
	s.AggregateAndPublish()
	assert.Len(t, pub.Sent(), 2)
}

func TestAggregatePublishErrorDoesNotStop(t *testing.T) {
	pub := &testutil.Publisher{Err: errors.New("broker gone")}
	s := NewService(nil, pub, "sensor/aggregated/{device}", time.Minute)
	require.NoError(t, s.Handle("", message(t, reading("dev-1", f(10), nil))))

	assert.NotPanics(t, s.AggregateAndPublish)
	assert.Empty(t, pub.Sent())
}

func TestStart(t *testing.T) {
	client := testutil.NewClient()
	pub := &testutil.Publisher{}
	consumer := broker.NewConsumer(client, "sensor/decoded/#", 1, nil)
	s := NewService(consumer, pub, "sensor/aggregated/{device}", 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return client.Subscribed("sensor/decoded/#") }, time.Second, 5*time.Millisecond)

	b, err := json.Marshal(reading("dev-1", f(21), nil))
	require.NoError(t, err)
	client.Publish("sensor/decoded/dev-1", 1, false, b)

	require.Eventually(t, func() bool { return len(pub.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "sensor/aggregated/dev-1", pub.Sent()[0].Topic)

	cancel()
	<-done
	assert.True(t, pub.Closed)
}
