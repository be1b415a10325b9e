// Package testutil holds fixtures and MQTT fakes shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// LoadFixture returns the content of a file under the repository testdata
// directory.
func LoadFixture(t *testing.T, rel string) []byte {
	t.Helper()
	candidates := []string{
		filepath.Join("testdata", rel),
		filepath.Join("..", "testdata", rel),
		filepath.Join("..", "..", "testdata", rel),
		filepath.Join("..", "..", "..", "testdata", rel),
		filepath.Join("..", "..", "..", "..", "testdata", rel),
	}
	for _, path := range candidates {
		if data, err := os.ReadFile(path); err == nil {
			return data
		}
	}
	t.Fatalf("unable to locate testdata file %s", rel)
	return nil
}

// Message implements mqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
	QoS       byte
}

func (m Message) Duplicate() bool   { return false }
func (m Message) Qos() byte         { return m.QoS }
func (m Message) Retained() bool    { return false }
func (m Message) Topic() string     { return m.TopicName }
func (m Message) MessageID() uint16 { return 0 }
func (m Message) Payload() []byte   { return m.Body }
func (m Message) Ack()              {}

// Published is a message captured by Publisher.
type Published struct {
	Topic   string
	Payload []byte
}

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	Messages []Published
	Err      error
	Closed   bool
}

func (p *Publisher) PublishMessage(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Messages = append(p.Messages, Published{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	p.Closed = true
	p.mu.Unlock()
}

// Sent returns a copy of the captured messages.
func (p *Publisher) Sent() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.Messages...)
}

// Token is an already completed mqtt.Token.
type Token struct {
	Err error
}

func (t Token) Wait() bool                     { return true }
func (t Token) WaitTimeout(time.Duration) bool { return true }
func (t Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t Token) Error() error { return t.Err }

// Client is an in-memory mqtt.Client. Publish delivers to matching
// subscriptions synchronously.
type Client struct {
	mu        sync.Mutex
	Connected bool
	Subs      map[string]mqtt.MessageHandler
	Published []Published
	PubErr    error
}

func NewClient() *Client {
	return &Client{Connected: true, Subs: map[string]mqtt.MessageHandler{}}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Connected
}

func (c *Client) IsConnectionOpen() bool { return c.IsConnected() }

func (c *Client) Connect() mqtt.Token {
	c.mu.Lock()
	c.Connected = true
	c.mu.Unlock()
	return Token{}
}

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	c.Connected = false
	c.mu.Unlock()
}

func (c *Client) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	if c.PubErr != nil {
		c.mu.Unlock()
		return Token{Err: c.PubErr}
	}
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = append([]byte(nil), p...)
	case string:
		body = []byte(p)
	}
	c.Published = append(c.Published, Published{Topic: topic, Payload: body})
	var handlers []mqtt.MessageHandler
	for filter, h := range c.Subs {
		if TopicMatches(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(c, Message{TopicName: topic, Body: body, QoS: qos})
	}
	return Token{}
}

func (c *Client) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.Subs[topic] = callback
	c.mu.Unlock()
	return Token{}
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic := range filters {
		c.Subscribe(topic, 0, callback)
	}
	return Token{}
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.Subs, t)
	}
	c.mu.Unlock()
	return Token{}
}

// Subscribed reports whether a filter is currently subscribed.
func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.Subs[topic]
	return ok
}

func (c *Client) AddRoute(string, mqtt.MessageHandler) {}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// TopicMatches applies MQTT filter matching with + and # wildcards.
func TopicMatches(filter, topic string) bool {
	fi, ti := 0, 0
	for {
		fEnd := indexOrLen(filter, fi)
		tEnd := indexOrLen(topic, ti)
		level := filter[fi:fEnd]
		if level == "#" {
			return true
		}
		if ti > len(topic) {
			return false
		}
		if level != "+" && level != topic[ti:tEnd] {
			return false
		}
		fDone, tDone := fEnd >= len(filter), tEnd >= len(topic)
		if fDone || tDone {
			if fDone && tDone {
				return true
			}
			// "a/#" also matches "a"
			return tDone && filter[fEnd+1:] == "#"
		}
		fi, ti = fEnd+1, tEnd+1
	}
}

func indexOrLen(s string, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == '/' {
			return i
		}
	}
	return len(s)
}
