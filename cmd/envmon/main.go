// cmd/envmon/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"envmon-go/bus"
	"envmon-go/log"
	"envmon-go/messaging"
	"envmon-go/metrics"
	"envmon-go/services/clock"
	"envmon-go/services/config"
	"envmon-go/services/console"
	"envmon-go/services/display"
	"envmon-go/services/hal"
	"envmon-go/services/loop"
	"envmon-go/services/sampler"
	"envmon-go/services/status"
	"envmon-go/services/telemetry"
	"envmon-go/x/timex"
)

const (
	appID = "envmon"

	connectAttempts = 5
	heartbeatEvery  = 30 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath  = flag.String("config", "", "YAML config file; empty uses the embedded config for -device")
		device   = flag.String("device", "sim", "embedded config to use when -config is empty")
		logLevel = flag.String("log-level", "", "override log.level")
		envFile  = flag.String("env", ".env", "dotenv file loaded before config")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "godotenv.Load(%s): %s\n", *envFile, err)
		return 2
	}

	cfg, err := loadConfig(*cfgPath, *device)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %s\n", err)
		return 2
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, err := log.New(appID, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log: %s\n", err)
		return 2
	}
	l := log.Component(logger, "main")
	l.WithFields(logrus.Fields{
		"func":      "run",
		"event":     log.EventConfigLoaded,
		"device":    cfg.Device,
		"platform":  cfg.Platform.Kind,
		"transport": cfg.Messaging.Transport,
	}).Info("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		l.WithFields(logrus.Fields{"func": "run", "event": log.EventLoopFailed}).Error(err)
		return 1
	}
	l.WithFields(logrus.Fields{"func": "run", "event": log.EventSVCShutdown}).Info("bye")
	return 0
}

func loadConfig(path, device string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadEmbedded(device)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	b := bus.NewBus(32)
	config.NewConfigService().Publish(b.NewConnection("config"), cfg)

	sensors, err := hal.Open(hal.Params{
		Platform: cfg.Platform,
		Sensors:  cfg.Sensors,
		Log:      log.Component(logger, "hal"),
	})
	if err != nil {
		return err
	}
	defer sensors.Close()

	clk, err := clock.New(cfg.NTP.ClockMode)
	if err != nil {
		return err
	}

	client, err := messaging.New(cfg.Messaging, log.Component(logger, "messaging"))
	if err != nil {
		return err
	}
	if err := connect(ctx, client, log.Component(logger, "messaging")); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer client.Close()

	srv := status.New(&status.Cfg{Addr: cfg.Status.Addr, Bus: b, Metric: m, Log: log.Component(logger, "status")})
	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.WithFields(logrus.Fields{"component": "status", "func": "Run"}).Warn(err)
		}
	}()

	if err := console.New(b.NewConnection("console"), log.Component(logger, "console"), heartbeatEvery).Start(ctx); err != nil {
		return err
	}

	ident := telemetry.NewHostIdentity("")
	o := loop.New(&loop.Cfg{
		Publisher: telemetry.NewPublisher(&telemetry.Cfg{
			Client:         client,
			PublishTopic:   cfg.Messaging.PublishTopic,
			SubscribeTopic: cfg.Messaging.SubscribeTopic,
			Every:          cfg.Loop.PublishEvery,
			Identity:       ident,
			Now:            clk.Now,
			Log:            logrus.NewEntry(logger),
			Metric:         m,
		}),
		Resyncer: clock.NewResyncer(&clock.Cfg{
			Source: clock.NewNTPSource(cfg.NTP.Server, cfg.NTP.Timeout),
			Clock:  clk,
			Every:  cfg.Loop.ResyncEvery,
			Log:    logrus.NewEntry(logger),
			Metric: m,
		}),
		Sampler: sampler.New(&sampler.Cfg{
			TempHumidity: sensors.TempHumidity,
			Light:        sensors.Light,
			Analog:       sensors.Analog,
			Log:          logrus.NewEntry(logger),
			Metric:       m,
			Now:          clk.Now,
		}),
		Display:       display.NewUpdater(display.NewBusPanel(b.NewConnection("display")), cfg.Display.ChartWidth),
		Identity:      ident,
		Period:        cfg.Loop.Period,
		WrapBound:     cfg.Loop.WrapBound,
		Splash:        cfg.Display.Splash,
		SplashPeriods: cfg.Loop.SplashPeriods,
		SyncOnBoot:    cfg.Loop.SyncOnBoot,
		PublishOnBoot: cfg.Loop.PublishOnBoot,
		Conn:          b.NewConnection("loop"),
		Log:           logrus.NewEntry(logger),
		Metric:        m,
	})
	return o.Run(ctx)
}

// connect retries the initial broker connection with backoff.
func connect(ctx context.Context, c messaging.Client, l *logrus.Entry) error {
	next := timex.BackoffSeq(time.Second, 30*time.Second)
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = c.Connect(ctx); err == nil {
			l.WithFields(logrus.Fields{"func": "connect", "event": log.EventBrokerConnected, "attempt": attempt}).Info("broker session open")
			return nil
		}
		d := next()
		l.WithFields(logrus.Fields{"func": "connect", "attempt": attempt, "retry_in": d}).Warn(err)
		if attempt == connectAttempts || !timex.Sleep(ctx, d) {
			break
		}
	}
	return err
}
