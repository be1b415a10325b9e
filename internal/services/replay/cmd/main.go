package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/LeonardoBeccarini/model4916_decoder/internal/config"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/logging"
	"github.com/LeonardoBeccarini/model4916_decoder/internal/services/replay"
	"github.com/LeonardoBeccarini/model4916_decoder/pkg/broker"
)

type options struct {
	Config   string        `short:"c" long:"config" description:"Path to configuration file (MQTT settings)"`
	File     string        `short:"f" long:"file" required:"true" description:"Capture file to replay"`
	App      string        `short:"a" long:"app" default:"multigas" description:"Application id used in the uplink topic"`
	Interval time.Duration `short:"i" long:"interval" default:"5s" description:"Delay between uplinks"`
	Loop     bool          `short:"l" long:"loop" description:"Replay the capture file forever"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(viper.New(), opts.Config)
	if err != nil {
		log.WithError(err).Fatal("load config error")
	}
	logging.Setup(cfg.General.LogLevel, cfg.General.LogJSON)

	f, err := os.Open(opts.File)
	if err != nil {
		log.WithError(err).Fatal("open capture file error")
	}
	captures, err := replay.ParseCaptures(f)
	f.Close()
	if err != nil {
		log.WithError(err).Fatal("parse capture file error")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg.SetService("model4916-replay")
	client, err := broker.NewConn(ctx, cfg.MQTT)
	if err != nil {
		log.WithError(err).Fatal("mqtt connection error")
	}
	defer broker.Close(client)

	r := replay.NewReplayer(broker.NewPublisher(client, 1, false), opts.App, opts.Interval, opts.Loop)
	sent, err := r.Run(ctx, captures)
	if err != nil {
		log.WithError(err).Error("replay error")
	}
	log.WithField("sent", sent).Info("replay: done")
}
