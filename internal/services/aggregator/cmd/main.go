package main

import (
	"context"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/cli"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/config"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/services/aggregator"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/broker"
)

var version string // set by the build

func main() {
	cli.Execute(cli.NewRootCommand("model4916-aggregator", "Publish windowed means of decoded Model 4916 readings", version, run))
}

func run(ctx context.Context, cfg config.Config) error {
	client, err := broker.NewConn(ctx, cfg.MQTT)
	if err != nil {
		return errors.Wrap(err, "mqtt connection error")
	}
	defer broker.Close(client)

	consumer := broker.NewConsumer(client, cfg.Aggregator.SubTopic, 1, nil)
	publisher := broker.NewPublisher(client, 1, false)
	svc := aggregator.NewService(consumer, publisher, cfg.Aggregator.PubTopicTemplate, cfg.Aggregator.Interval)
	go svc.Start(ctx)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	err = cli.ServeHTTP(ctx, cfg.HTTP.Bind, r)
	log.Info("aggregator: shutting down")
	return err
}
