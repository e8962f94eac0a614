// Package clock keeps the wall clock roughly right. A failed resync leaves
// the clock untouched and is never reported to the caller as an error.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"envmon-go/cadence"
	"envmon-go/errcode"
	"envmon-go/log"
	"envmon-go/metrics"
)

// TimeSource fetches the current time from the network.
type TimeSource interface {
	FetchCurrentTime(ctx context.Context) (time.Time, error)
}

// Clock is the device clock the resync writes to.
type Clock interface {
	Now() time.Time
	Set(t time.Time) error
}

// DefaultEvery is the resync cadence in ticks.
const DefaultEvery uint32 = 120

// Cfg is used to initialize a Resyncer.
type Cfg struct {
	Source TimeSource
	Clock  Clock
	Every  uint32
	Log    *logrus.Entry
	Metric *metrics.Metrics
}

type Resyncer struct {
	src    TimeSource
	clk    Clock
	every  uint32
	log    *logrus.Entry
	metric *metrics.Metrics
}

func NewResyncer(c *Cfg) *Resyncer {
	every := c.Every
	if every == 0 {
		every = DefaultEvery
	}
	return &Resyncer{
		src:    c.Source,
		clk:    c.Clock,
		every:  every,
		log:    c.Log.WithField("component", "clock"),
		metric: c.Metric,
	}
}

// MaybeResync resyncs when the counter is on the resync cadence. It reports
// whether a new time was applied.
func (r *Resyncer) MaybeResync(ctx context.Context, c *cadence.Counter) bool {
	if !c.IsDue(r.every) {
		return false
	}
	return r.Resync(ctx) == nil
}

// Resync performs one attempt. The error is returned for callers that care
// (boot); the loop ignores it.
func (r *Resyncer) Resync(ctx context.Context) error {
	before := r.clk.Now()
	t, err := r.src.FetchCurrentTime(ctx)
	if err != nil {
		return r.failed(errcode.New(errcode.NTPFailed, "clock.Fetch", err))
	}
	if err := r.clk.Set(t); err != nil {
		return r.failed(errcode.New(errcode.ClockSetFailed, "clock.Set", err))
	}
	r.metric.NTPSync(true)
	r.log.WithFields(logrus.Fields{
		"func":  "Resync",
		"event": log.EventNTPSynced,
		"step":  t.Sub(before).Round(time.Millisecond).String(),
	}).Info("clock synchronised")
	return nil
}

func (r *Resyncer) failed(err error) error {
	r.metric.NTPSync(false)
	r.log.WithFields(logrus.Fields{
		"func":  "Resync",
		"event": log.EventNTPFailed,
		"code":  errcode.Of(err),
	}).Warn(err)
	return err
}

// ---------------------------------------------------------------------------
// Offset clock
// ---------------------------------------------------------------------------

// OffsetClock keeps a software offset from the host clock; Set never touches
// the operating system.
type OffsetClock struct {
	mu     sync.RWMutex
	offset time.Duration
	base   func() time.Time
}

func NewOffsetClock() *OffsetClock { return &OffsetClock{base: time.Now} }

func (c *OffsetClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base().Add(c.offset)
}

func (c *OffsetClock) Set(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = t.Sub(c.base())
	return nil
}

// Offset returns the current correction relative to the host clock.
func (c *OffsetClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// New returns the clock for mode: "system" or "offset".
func New(mode string) (Clock, error) {
	switch mode {
	case "offset", "":
		return NewOffsetClock(), nil
	case "system":
		return newSystemClock()
	default:
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "clock.New", Msg: "clock mode " + mode}
	}
}
