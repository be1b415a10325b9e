package main

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/cli"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/config"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/services/persistence"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/broker"
)

var version string // set by the build

func main() {
	cli.Execute(cli.NewRootCommand("model4916-persistence", "Store decoded Model 4916 readings in InfluxDB", version, run))
}

func run(ctx context.Context, cfg config.Config) error {
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.Influx.BatchSize)).
		SetFlushInterval(uint(cfg.Influx.FlushInterval.Milliseconds()))
	influx := influxdb2.NewClientWithOptions(cfg.Influx.URL, cfg.Influx.Token, opts)
	defer influx.Close()

	writeAPI := influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket)
	defer writeAPI.Flush()
	writer := persistence.NewWriter(writeAPI)

	client, err := broker.NewConn(ctx, cfg.MQTT)
	if err != nil {
		return errors.Wrap(err, "mqtt connection error")
	}
	defer broker.Close(client)

	cache := persistence.NewCache()
	consumer := broker.NewConsumer(client, cfg.Influx.SubTopic, 1, nil)
	svc := persistence.NewService(consumer, writer, cache, cfg.Influx.Measurement)
	go svc.Start(ctx)

	api := &persistence.API{
		Querier:      persistence.NewInfluxQuerier(influx, cfg.Influx.Org, cfg.Influx.Bucket, cfg.Influx.Measurement),
		Breaker:      persistence.NewBreaker("influx-query", cfg.Breaker.Failures, cfg.Breaker.OpenFor, cfg.Breaker.Interval),
		Cache:        cache,
		Writer:       writer,
		MQTT:         client,
		Influx:       influx,
		QueryTimeout: 5 * time.Second,
	}

	err = cli.ServeHTTP(ctx, cfg.HTTP.Bind, api.Router())
	log.Info("persistence: shutting down")
	return err
}
