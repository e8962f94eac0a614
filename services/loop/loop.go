// Package loop runs the fixed per-tick sequence: pump, advance, resync,
// sample, display, publish, sleep. One goroutine owns the counter, the
// display window and the last snapshot.
package loop

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"envmon-go/bus"
	"envmon-go/cadence"
	"envmon-go/errcode"
	"envmon-go/log"
	"envmon-go/metrics"
	"envmon-go/services/telemetry"
	"envmon-go/types"
	"envmon-go/x/timex"
)

// Collaborators, as seen from the loop.
type (
	Publisher interface {
		Pump(ctx context.Context) error
		MaybePublish(ctx context.Context, c *cadence.Counter, snap types.Snapshot) (bool, error)
		Publish(ctx context.Context, snap types.Snapshot) error
		Payload(snap types.Snapshot) ([]byte, error)
	}

	Resyncer interface {
		MaybeResync(ctx context.Context, c *cadence.Counter) bool
		Resync(ctx context.Context) error
	}

	Sampler interface {
		Sample(ctx context.Context) (types.Snapshot, error)
	}

	Display interface {
		Update(snap types.Snapshot, ip string) error
		Splash(text string) error
	}
)

// Report describes what one tick did.
type Report struct {
	Counter   uint32
	Resynced  bool
	Sampled   bool
	Published bool
	SampleErr error
	Snapshot  types.Snapshot
}

// Cfg is used to initialize an Orchestrator.
type Cfg struct {
	Publisher Publisher
	Resyncer  Resyncer
	Sampler   Sampler
	Display   Display
	Identity  telemetry.IdentitySource

	Period    time.Duration
	WrapBound uint32

	// Boot options.
	Splash        string
	SplashPeriods int
	SyncOnBoot    bool
	// PublishOnBoot samples, draws and publishes once before the first tick.
	PublishOnBoot bool

	Conn   *bus.Connection // optional; receives snapshot and state
	Log    *logrus.Entry
	Metric *metrics.Metrics
	// Sleep defaults to timex.Sleep; it reports false when ctx ended.
	Sleep func(ctx context.Context, d time.Duration) bool
}

type Orchestrator struct {
	pub      Publisher
	resync   Resyncer
	sampler  Sampler
	display  Display
	identity telemetry.IdentitySource

	period        time.Duration
	splash        string
	splashPeriods int
	syncOnBoot    bool
	publishOnBoot bool

	counter *cadence.Counter
	last    types.Snapshot
	hasLast bool

	conn   *bus.Connection
	log    *logrus.Entry
	metric *metrics.Metrics
	sleep  func(ctx context.Context, d time.Duration) bool
}

func New(c *Cfg) *Orchestrator {
	period := c.Period
	if period <= 0 {
		period = time.Second
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = timex.Sleep
	}
	return &Orchestrator{
		pub:           c.Publisher,
		resync:        c.Resyncer,
		sampler:       c.Sampler,
		display:       c.Display,
		identity:      c.Identity,
		period:        period,
		splash:        c.Splash,
		splashPeriods: c.SplashPeriods,
		syncOnBoot:    c.SyncOnBoot,
		publishOnBoot: c.PublishOnBoot,
		counter:       cadence.New(c.WrapBound),
		conn:          c.Conn,
		log:           c.Log.WithField("component", "loop"),
		metric:        c.Metric,
		sleep:         sleep,
	}
}

// Counter exposes the cadence counter value.
func (o *Orchestrator) Counter() uint32 { return o.counter.Value() }

// Last returns the most recent successful snapshot.
func (o *Orchestrator) Last() (types.Snapshot, bool) { return o.last, o.hasLast }

// Tick runs one pass. A sensor failure ends the pass early without error;
// any other failure is returned and ends the session.
func (o *Orchestrator) Tick(ctx context.Context) (Report, error) {
	start := time.Now()
	var rep Report

	if err := o.pub.Pump(ctx); err != nil {
		return rep, errors.Wrap(err, "pump")
	}

	rep.Counter = o.counter.Advance()
	defer func() { o.metric.Tick(start, rep.Counter) }()

	rep.Resynced = o.resync.MaybeResync(ctx, o.counter)

	snap, err := o.sampler.Sample(ctx)
	if err != nil {
		rep.SampleErr = err
		o.metric.TickAborted()
		o.log.WithFields(logrus.Fields{
			"func":    "Tick",
			"event":   log.EventTickAborted,
			"counter": rep.Counter,
			"code":    errcode.Of(err),
		}).Warn(err)
		return rep, nil
	}
	rep.Sampled, rep.Snapshot = true, snap
	o.last, o.hasLast = snap, true
	o.publishLocal(types.TopicSnapshot(), snap)
	o.debugReadings(rep.Counter, snap)

	if err := o.display.Update(snap, o.identity.Identity().IP); err != nil {
		return rep, errors.Wrap(err, "display")
	}

	rep.Published, err = o.pub.MaybePublish(ctx, o.counter, snap)
	if err != nil {
		return rep, errors.Wrap(err, "publish")
	}
	return rep, nil
}

// Run boots, then ticks every period until ctx ends (nil) or a tick fails
// (that error). The sleep is relative: tick duration is not subtracted.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.WithFields(logrus.Fields{"func": "Run", "event": log.EventSVCStarted, "period": o.period}).Info("loop started")
	o.setState("up", "running", nil)

	if err := o.boot(ctx); err != nil {
		return o.fail(ctx, err)
	}

	for {
		if ctx.Err() != nil {
			return o.stopped()
		}
		if _, err := o.Tick(ctx); err != nil {
			return o.fail(ctx, err)
		}
		if !o.sleep(ctx, o.period) {
			return o.stopped()
		}
	}
}

func (o *Orchestrator) boot(ctx context.Context) error {
	if o.splash != "" {
		if err := o.display.Splash(o.splash); err != nil {
			return errors.Wrap(err, "splash")
		}
		if !o.sleep(ctx, time.Duration(o.splashPeriods)*o.period) {
			return nil
		}
	}
	if o.syncOnBoot {
		_ = o.resync.Resync(ctx)
	}
	if o.publishOnBoot {
		return o.bootReading(ctx)
	}
	return nil
}

// bootReading is one pass at counter 0. A sensor failure skips it.
func (o *Orchestrator) bootReading(ctx context.Context) error {
	snap, err := o.sampler.Sample(ctx)
	if err != nil {
		o.metric.TickAborted()
		o.log.WithFields(logrus.Fields{
			"func":  "bootReading",
			"event": log.EventTickAborted,
			"code":  errcode.Of(err),
		}).Warn(err)
		return nil
	}
	o.last, o.hasLast = snap, true
	o.publishLocal(types.TopicSnapshot(), snap)
	if err := o.display.Update(snap, o.identity.Identity().IP); err != nil {
		return errors.Wrap(err, "display")
	}
	return errors.Wrap(o.pub.Publish(ctx, snap), "publish")
}

func (o *Orchestrator) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return o.stopped()
	}
	o.log.WithFields(logrus.Fields{
		"func":    "Run",
		"event":   log.EventLoopFailed,
		"counter": o.counter.Value(),
		"code":    errcode.Of(err),
	}).Error(err)
	o.setState("error", string(errcode.Of(err)), err)
	return err
}

func (o *Orchestrator) stopped() error {
	o.log.WithFields(logrus.Fields{"func": "Run", "event": log.EventSVCShutdown}).Info("loop stopped")
	o.setState("stopped", "cancelled", nil)
	return nil
}

func (o *Orchestrator) setState(level, status string, err error) {
	st := types.ServiceState{Level: level, Status: status, TSms: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	o.publishLocal(types.TopicState("loop"), st)
}

func (o *Orchestrator) publishLocal(t bus.Topic, payload any) {
	if o.conn == nil {
		return
	}
	o.conn.Publish(o.conn.NewMessage(t, payload, true))
}

func (o *Orchestrator) debugReadings(counter uint32, snap types.Snapshot) {
	if !o.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	l := o.log.WithFields(logrus.Fields{
		"func":      "Tick",
		"event":     log.EventTick,
		"counter":   counter,
		"air_temp":  snap.AirTemp,
		"air_humi":  snap.AirHumidity,
		"light":     snap.Illuminance,
		"earth_raw": snap.MoistureRaw,
		"earth_v":   snap.MoistureVolts(),
	})
	if payload, err := o.pub.Payload(snap); err == nil {
		l = l.WithField("payload", string(payload))
	}
	l.Debug("readings")
}
