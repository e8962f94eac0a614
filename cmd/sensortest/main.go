// cmd/sensortest/main.go
//
// One-shot sensor bring-up: opens the configured platform, samples a few
// times and prints the readings the way the status screen would show them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"envmon-go/log"
	"envmon-go/services/config"
	"envmon-go/services/display"
	"envmon-go/services/hal"
	"envmon-go/services/sampler"
	"envmon-go/services/telemetry"
)

// ---------- Configuration ----------

const (
	defaultSamples  = 3
	defaultInterval = time.Second
)

// stdoutUI prints each widget update on its own line.
type stdoutUI struct{}

func (stdoutUI) SetText(handle, text string) error {
	_, err := fmt.Printf("  %-12s %s\n", handle, text)
	return err
}

func (stdoutUI) PushSeriesValue(handle string, v float64) error {
	_, err := fmt.Printf("  %-12s <- %.2f\n", handle, v)
	return err
}

func (stdoutUI) Splash(text string) error {
	_, err := fmt.Println(text)
	return err
}

func main() {
	var (
		cfgPath  = flag.String("config", "", "YAML config file; empty uses the embedded config for -device")
		device   = flag.String("device", "sim", "embedded config")
		samples  = flag.Int("n", defaultSamples, "number of samples")
		interval = flag.Duration("interval", defaultInterval, "delay between samples")
	)
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
	} else {
		cfg, err = config.LoadEmbedded(*device)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %s\n", err)
		os.Exit(2)
	}

	logger, err := log.New("sensortest", "debug")
	if err != nil {
		fmt.Fprintf(os.Stderr, "log: %s\n", err)
		os.Exit(2)
	}

	sensors, err := hal.Open(hal.Params{Platform: cfg.Platform, Sensors: cfg.Sensors, Log: log.Component(logger, "hal")})
	if err != nil {
		logger.WithFields(logrus.Fields{"func": "main", "platforms": hal.Kinds()}).Error(err)
		os.Exit(1)
	}
	defer sensors.Close()

	s := sampler.New(&sampler.Cfg{
		TempHumidity: sensors.TempHumidity,
		Light:        sensors.Light,
		Analog:       sensors.Analog,
		Log:          logrus.NewEntry(logger),
	})
	ident := telemetry.NewHostIdentity("").Identity()
	ui := display.NewUpdater(stdoutUI{}, cfg.Display.ChartWidth)
	_ = ui.Splash(cfg.Display.Splash)

	failures := 0
	for i := 1; i <= *samples; i++ {
		snap, err := s.Sample(context.Background())
		if err != nil {
			failures++
			logger.WithFields(logrus.Fields{"func": "main", "sample": i}).Warn(err)
		} else {
			fmt.Printf("sample %d @ %s\n", i, snap.TakenAt.Format(time.RFC3339))
			if err := ui.Update(snap, ident.IP); err != nil {
				logger.WithFields(logrus.Fields{"func": "main"}).Error(err)
			}
			if b, err := telemetry.Marshal(telemetry.Build(snap, ident, snap.TakenAt)); err == nil {
				fmt.Printf("  %-12s %s\n", "payload", b)
			}
		}
		if i < *samples {
			time.Sleep(*interval)
		}
	}
	if failures > 0 {
		_ = sensors.Close()
		os.Exit(1)
	}
}
