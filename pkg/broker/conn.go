package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config holds the MQTT connection settings.
type Config struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	ClientID          string        `mapstructure:"client_id"`
	CleanSession      bool          `mapstructure:"clean_session"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectMaxElapsed time.Duration `mapstructure:"connect_max_elapsed"`
}

// Addr returns the broker URL.
func (c Config) Addr() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// NewConn connects to the broker, retrying with exponential backoff. The
// connection is closed when ctx is cancelled.
func NewConn(ctx context.Context, cfg Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Addr())
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(cfg.CleanSession)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		connectCounter().Inc()
		log.WithField("server", cfg.Addr()).Info("broker: connected to mqtt broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		disconnectCounter().Inc()
		log.WithError(err).WithField("server", cfg.Addr()).Warning("broker: mqtt connection lost")
	})

	bo := backoff.NewExponentialBackOff()
	if cfg.ConnectMaxElapsed > 0 {
		bo.MaxElapsedTime = cfg.ConnectMaxElapsed
	}
	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).WithField("server", cfg.Addr()).Error("broker: connecting to mqtt broker failed")
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx))
	if err != nil {
		return nil, errors.Wrap(err, "could not establish mqtt connection after retries")
	}

	go func() {
		<-ctx.Done()
		Close(client)
	}()

	return client, nil
}

// Close disconnects the client if it is still connected.
func Close(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		log.Info("broker: mqtt connection closed")
	}
}
