package decoder

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/model/entities"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/model/messages"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/testutil"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/dedup"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/format27"
)

const decodedTmpl = "sensor/decoded/{device}"

func newTestHandler(pub *testutil.Publisher) *Handler {
	return NewHandler(dedup.New(time.Minute, 100), pub, decodedTmpl, entities.DeviceInfo{})
}

func fixtureMessage(t *testing.T, topic, fixture string) testutil.Message {
	return testutil.Message{TopicName: topic, Body: testutil.LoadFixture(t, fixture), QoS: 1}
}

func TestHandlerPublishesDecodedReading(t *testing.T) {
	pub := &testutil.Publisher{}
	h := newTestHandler(pub)
	assert.True(t, h.LastDecodeAge() < 0)

	before := promtest.ToFloat64(uplinkCounter(format27.OutcomeOK))
	require.NoError(t, h.Handle("v3/+/devices/+/up", fixtureMessage(t, "v3/multigas/devices/model4916-01/up", "uplinks/tts_v3.json")))
	assert.Equal(t, before+1, promtest.ToFloat64(uplinkCounter(format27.OutcomeOK)))

	sent := pub.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "sensor/decoded/model4916-01", sent[0].Topic)

	var r messages.DecodedReading
	require.NoError(t, json.Unmarshal(sent[0].Payload, &r))
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "model4916-01", r.DeviceID)
	assert.Equal(t, "0002cc010000046e", r.DevEUI.String())
	assert.Equal(t, 1, r.Port)
	assert.Equal(t, entities.DefaultDeviceInfo(), r.Local)
	require.NotNil(t, r.Payload.VBat)
	assert.InDelta(t, 4.8, *r.Payload.VBat, 0.001)
	require.NotNil(t, r.Payload.Boot)
	assert.EqualValues(t, 5, *r.Payload.Boot)
	require.NotNil(t, r.Payload.P)
	assert.InDelta(t, 1013.24, *r.Payload.P, 1e-9)
	assert.Equal(t, format27.ErrorNone, r.Payload.Error)
	assert.True(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Equal(r.ReceivedAt))

	assert.True(t, h.LastDecodeAge() >= 0)
}

func TestHandlerDropsDuplicates(t *testing.T) {
	pub := &testutil.Publisher{}
	h := newTestHandler(pub)
	m := fixtureMessage(t, "multigas/devices/model4916-02/up", "uplinks/ttn_v2.json")

	before := promtest.ToFloat64(uplinkCounter(OutcomeDuplicate))
	require.NoError(t, h.Handle("", m))
	require.NoError(t, h.Handle("", m))
	assert.Len(t, pub.Sent(), 1)
	assert.Equal(t, before+1, promtest.ToFloat64(uplinkCounter(OutcomeDuplicate)))
}

func TestHandlerWithoutDeduper(t *testing.T) {
	pub := &testutil.Publisher{}
	h := NewHandler(nil, pub, decodedTmpl, entities.DefaultDeviceInfo())
	m := fixtureMessage(t, "application/1/device/0002cc0100000470/event/up", "uplinks/chirpstack_v4.json")

	require.NoError(t, h.Handle("", m))
	require.NoError(t, h.Handle("", m))
	sent := pub.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "sensor/decoded/model4916-03", sent[0].Topic)
}

func TestHandlerOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		outcome string
	}{
		{
			name:    "port not applicable",
			body:    `{"end_device_ids":{"device_id":"d1"},"uplink_message":{"f_port":2,"frm_payload":"JwtMzQUXgGLzgA=="}}`,
			outcome: format27.OutcomePortNotApplicable,
		},
		{
			name:    "unrecognized format",
			body:    `{"dev_id":"d2","port":1,"payload_raw":"BQE="}`,
			outcome: format27.OutcomeUnrecognizedFormat,
		},
		{
			name:    "truncated input",
			body:    `{"dev_id":"d3","port":1,"payload_raw":"JwhM"}`,
			outcome: format27.OutcomeTruncatedInput,
		},
		{
			name:    "empty payload",
			body:    `{"dev_id":"d4","port":1,"payload_raw":""}`,
			outcome: format27.OutcomeTruncatedInput,
		},
		{
			name:    "invalid envelope",
			body:    `{"hello":"world"}`,
			outcome: OutcomeInvalidEnvelope,
		},
		{
			name:    "no device identity",
			body:    `{"uplink_message":{"f_port":1,"frm_payload":"JwIF"}}`,
			outcome: OutcomeInvalidEnvelope,
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			pub := &testutil.Publisher{}
			h := newTestHandler(pub)
			before := promtest.ToFloat64(uplinkCounter(tst.outcome))

			err := h.Handle("", testutil.Message{TopicName: "some/topic", Body: []byte(tst.body)})
			assert.NoError(t, err)
			assert.Empty(t, pub.Sent())
			assert.Equal(t, before+1, promtest.ToFloat64(uplinkCounter(tst.outcome)))
			assert.True(t, h.LastDecodeAge() < 0)
		})
	}
}

func TestHandlerPublishError(t *testing.T) {
	pub := &testutil.Publisher{Err: errors.New("broker gone")}
	h := newTestHandler(pub)

	before := promtest.ToFloat64(uplinkCounter(OutcomePublishError))
	err := h.Handle("", fixtureMessage(t, "v3/multigas/devices/model4916-01/up", "uplinks/tts_v3.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker gone")
	assert.Equal(t, before+1, promtest.ToFloat64(uplinkCounter(OutcomePublishError)))
	assert.True(t, h.LastDecodeAge() < 0)
}

type stubDeduper struct{ calls int }

func (s *stubDeduper) ShouldProcess(ctx context.Context, id string) bool {
	s.calls++
	_, ok := ctx.Deadline()
	return ok && len(id) == 64
}

func TestHandlerPassesDeadlineToDeduper(t *testing.T) {
	pub := &testutil.Publisher{}
	d := &stubDeduper{}
	h := NewHandler(d, pub, decodedTmpl, entities.DeviceInfo{})

	require.NoError(t, h.Handle("", fixtureMessage(t, "v3/a/devices/model4916-01/up", "uplinks/tts_v3.json")))
	assert.Equal(t, 1, d.calls)
	assert.Len(t, pub.Sent(), 1)
}
