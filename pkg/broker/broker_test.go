package broker

import (
	"context"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/testutil"
)

func TestConfigAddr(t *testing.T) {
	assert.Equal(t, "tcp://broker:1883", Config{Host: "broker", Port: 1883}.Addr())
}

func TestExpandTopic(t *testing.T) {
	assert.Equal(t, "sensor/decoded/dev-1", ExpandTopic("sensor/decoded/{device}", map[string]string{"device": "dev-1"}))
	assert.Equal(t, "sensor/decoded/a_b_c", ExpandTopic("sensor/decoded/{device}", map[string]string{"device": "a/b+c"}))
	assert.Equal(t, "sensor/decoded/{device}", ExpandTopic("sensor/decoded/{device}", nil))
}

func TestPublisher(t *testing.T) {
	client := testutil.NewClient()
	p := NewPublisher(client, 1, false)

	require.NoError(t, p.PublishMessage("sensor/decoded/dev", []byte(`{}`)))
	require.Len(t, client.Published, 1)
	assert.Equal(t, "sensor/decoded/dev", client.Published[0].Topic)

	client.PubErr = errors.New("broker gone")
	err := p.PublishMessage("sensor/decoded/dev", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sensor/decoded/dev")

	p.Close()
	assert.False(t, client.IsConnected())
}

func TestMultiConsumer(t *testing.T) {
	client := testutil.NewClient()
	received := make(chan string, 4)

	c := NewMultiConsumer(client, []string{"a/+/up", "b/#"}, 1, nil)
	c.SetHandler(func(sub string, m mqtt.Message) error {
		received <- sub + " " + m.Topic()
		return errors.New("handler errors are logged, not fatal")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.ConsumeMessage(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return client.Subscribed("a/+/up") && client.Subscribed("b/#")
	}, time.Second, 5*time.Millisecond)

	client.Publish("a/dev/up", 0, false, []byte("x"))
	client.Publish("b/c/d", 0, false, []byte("y"))
	client.Publish("c/ignored", 0, false, []byte("z"))

	assert.Equal(t, "a/+/up a/dev/up", <-received)
	assert.Equal(t, "b/# b/c/d", <-received)
	assert.Len(t, received, 0)

	cancel()
	<-done
	assert.False(t, client.Subscribed("a/+/up"))
	assert.False(t, client.Subscribed("b/#"))
}

func TestConsumerWithoutHandler(t *testing.T) {
	client := testutil.NewClient()
	c := NewConsumer(client, "x/y", 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.ConsumeMessage(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return client.Subscribed("x/y") }, time.Second, 5*time.Millisecond)

	assert.NotPanics(t, func() { client.Publish("x/y", 0, false, []byte("x")) })

	cancel()
	<-done
	assert.False(t, client.Subscribed("x/y"))
}
