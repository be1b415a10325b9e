package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/cli"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/config"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/model/entities"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/services/decoder"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/broker"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/dedup"
)

func run(ctx context.Context, cfg config.Config) error {
	client, err := broker.NewConn(ctx, cfg.MQTT)
	if err != nil {
		return errors.Wrap(err, "mqtt connection error")
	}
	defer broker.Close(client)

	d, err := setupDedup(ctx, cfg)
	if err != nil {
		return err
	}

	publisher := broker.NewPublisher(client, 1, false)
	h := decoder.NewHandler(d, publisher, cfg.Decoder.DecodedTopicTemplate, entities.DeviceInfo{
		NodeType:        cfg.Decoder.NodeType,
		PlatformType:    cfg.Decoder.PlatformType,
		RadioType:       cfg.Decoder.RadioType,
		ApplicationName: cfg.Decoder.ApplicationName,
	})

	lis, err := net.Listen("tcp", cfg.GRPC.Bind)
	if err != nil {
		return errors.Wrap(err, "grpc listen error")
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	go func() {
		log.WithField("bind", cfg.GRPC.Bind).Info("grpc: listening")
		if err := gs.Serve(lis); err != nil {
			log.WithError(err).Error("grpc: serve error")
		}
	}()
	defer gs.GracefulStop()
	go decoder.WatchHealth(ctx, client, hs, 5*time.Second)

	consumer := broker.NewMultiConsumer(client, cfg.Decoder.UplinkTopics, 1, h.Handle)
	go consumer.ConsumeMessage(ctx)

	r := mux.NewRouter()
	r.Handle("/healthz", decoder.NewHealthHandler(client, h, 15*time.Minute)).Methods(http.MethodGet)
	r.Handle("/readyz", decoder.NewReadyHandler(client)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())

	err = cli.ServeHTTP(ctx, cfg.HTTP.Bind, r)
	log.Info("decoder: shutting down")
	return err
}

func setupDedup(ctx context.Context, cfg config.Config) (dedup.Deduper, error) {
	if cfg.Dedup.Backend != "redis" {
		return dedup.New(cfg.Dedup.TTL, cfg.Dedup.MaxEntries), nil
	}
	r, err := dedup.NewRedis(cfg.Redis.URL, cfg.Dedup.TTL)
	if err != nil {
		return nil, err
	}
	if err := r.Ping(ctx); err != nil {
		log.WithError(err).Warning("decoder: redis not reachable, dedup fails open until it is")
	}
	go func() {
		<-ctx.Done()
		_ = r.Close()
	}()
	return r, nil
}
