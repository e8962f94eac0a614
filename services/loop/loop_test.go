package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envmon-go/bus"
	"envmon-go/cadence"
	"envmon-go/errcode"
	"envmon-go/log"
	"envmon-go/services/clock"
	"envmon-go/services/telemetry"
	"envmon-go/types"
)

// ---------------------------------------------------------------------------
// Fakes sharing one call log
// ---------------------------------------------------------------------------

type calls []string

func (c *calls) add(s string) { *c = append(*c, s) }

type fakePublisher struct {
	log       *calls
	pumpErr   error
	pubErr    error
	every     uint32
	published []uint32
}

func (f *fakePublisher) Pump(context.Context) error {
	f.log.add("pump")
	return f.pumpErr
}

func (f *fakePublisher) MaybePublish(_ context.Context, c *cadence.Counter, _ types.Snapshot) (bool, error) {
	f.log.add("publish?")
	if !c.IsDue(f.every) {
		return false, nil
	}
	if f.pubErr != nil {
		return false, f.pubErr
	}
	f.published = append(f.published, c.Value())
	return true, nil
}

func (f *fakePublisher) Publish(context.Context, types.Snapshot) error {
	f.log.add("publish!")
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published = append(f.published, 0)
	return nil
}

func (f *fakePublisher) Payload(types.Snapshot) ([]byte, error) { return []byte("{}"), nil }

type fakeResyncer struct {
	log     *calls
	every   uint32
	fail    bool
	resyncs []uint32
	boots   int
}

func (f *fakeResyncer) MaybeResync(_ context.Context, c *cadence.Counter) bool {
	f.log.add("resync?")
	if !c.IsDue(f.every) {
		return false
	}
	f.resyncs = append(f.resyncs, c.Value())
	return !f.fail
}

func (f *fakeResyncer) Resync(context.Context) error {
	f.log.add("resync!")
	f.boots++
	return nil
}

type fakeSampler struct {
	log    *calls
	failAt map[int]error
	n      int
}

func (f *fakeSampler) Sample(context.Context) (types.Snapshot, error) {
	f.log.add("sample")
	f.n++
	if err := f.failAt[f.n]; err != nil {
		return types.Snapshot{}, err
	}
	return types.Snapshot{AirTemp: 20 + float64(f.n%10), AirHumidity: 50, RefVoltage: 3.3}, nil
}

type fakeDisplay struct {
	log     *calls
	updates int
	splash  []string
	err     error
}

func (f *fakeDisplay) Update(types.Snapshot, string) error {
	f.log.add("display")
	f.updates++
	return f.err
}

func (f *fakeDisplay) Splash(text string) error {
	f.splash = append(f.splash, text)
	return nil
}

type staticIdentity struct{}

func (staticIdentity) Identity() telemetry.Identity {
	return telemetry.Identity{ClientID: "garden", IP: "10.0.0.2"}
}

type rig struct {
	log  *calls
	pub  *fakePublisher
	res  *fakeResyncer
	smp  *fakeSampler
	disp *fakeDisplay
	o    *Orchestrator
}

func newRig(t *testing.T, mutate func(*Cfg)) *rig {
	t.Helper()
	l := &calls{}
	r := &rig{
		log:  l,
		pub:  &fakePublisher{log: l, every: 60},
		res:  &fakeResyncer{log: l, every: 120},
		smp:  &fakeSampler{log: l, failAt: map[int]error{}},
		disp: &fakeDisplay{log: l},
	}
	cfg := &Cfg{
		Publisher: r.pub,
		Resyncer:  r.res,
		Sampler:   r.smp,
		Display:   r.disp,
		Identity:  staticIdentity{},
		Period:    time.Second,
		Log:       log.Discard(),
		Sleep:     func(context.Context, time.Duration) bool { return true },
	}
	if mutate != nil {
		mutate(cfg)
	}
	r.o = New(cfg)
	return r
}

func (r *rig) ticks(t *testing.T, n int) Report {
	t.Helper()
	var rep Report
	for i := 0; i < n; i++ {
		var err error
		rep, err = r.o.Tick(context.Background())
		require.NoError(t, err)
	}
	return rep
}

// ---------------------------------------------------------------------------
// Tick
// ---------------------------------------------------------------------------

func TestTick_StepOrder(t *testing.T) {
	r := newRig(t, nil)
	rep := r.ticks(t, 1)

	assert.Equal(t, calls{"pump", "resync?", "sample", "display", "publish?"}, *r.log)
	assert.Equal(t, uint32(1), rep.Counter)
	assert.True(t, rep.Sampled)
	assert.False(t, rep.Published)
	assert.False(t, rep.Resynced)
}

func TestTick_PublishesOnSixtieth(t *testing.T) {
	r := newRig(t, nil)

	rep := r.ticks(t, 59)
	assert.Equal(t, uint32(59), rep.Counter)
	assert.Empty(t, r.pub.published)

	rep = r.ticks(t, 1)
	assert.Equal(t, uint32(60), rep.Counter)
	assert.True(t, rep.Published)
	assert.Equal(t, []uint32{60}, r.pub.published)

	r.ticks(t, 60)
	assert.Equal(t, []uint32{60, 120}, r.pub.published)
	assert.Equal(t, []uint32{120}, r.res.resyncs)
}

func TestTick_ResyncFailureDoesNotDisturbTick(t *testing.T) {
	src := failingSource{}
	clk := clock.NewOffsetClock()
	r := newRig(t, func(c *Cfg) {
		c.Resyncer = clock.NewResyncer(&clock.Cfg{Source: src, Clock: clk, Log: log.Discard()})
	})

	rep := r.ticks(t, 120)
	assert.Equal(t, uint32(120), rep.Counter)
	assert.False(t, rep.Resynced)
	assert.True(t, rep.Sampled)
	assert.True(t, rep.Published)
	assert.Equal(t, 120, r.disp.updates)
	assert.Equal(t, time.Duration(0), clk.Offset())
}

type failingSource struct{}

func (failingSource) FetchCurrentTime(context.Context) (time.Time, error) {
	return time.Time{}, errors.New("i/o timeout")
}

func TestTick_SensorFailureAbortsRestOfTick(t *testing.T) {
	r := newRig(t, nil)
	r.smp.failAt[60] = &errcode.E{C: errcode.SensorRead, Op: "sampler.temperature"}

	r.ticks(t, 59)
	updates := r.disp.updates
	*r.log = nil

	rep, err := r.o.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(60), rep.Counter)
	assert.False(t, rep.Sampled)
	assert.False(t, rep.Published)
	assert.Equal(t, errcode.SensorRead, errcode.Of(rep.SampleErr))
	assert.Equal(t, updates, r.disp.updates, "display untouched")
	assert.Empty(t, r.pub.published, "publish skipped")
	assert.Equal(t, calls{"pump", "resync?", "sample"}, *r.log)

	// Next tick carries on normally.
	rep = r.ticks(t, 1)
	assert.Equal(t, uint32(61), rep.Counter)
	assert.True(t, rep.Sampled)
}

func TestTick_WrapsToOneAndIsNotDue(t *testing.T) {
	r := newRig(t, nil)

	rep := r.ticks(t, int(cadence.DefaultBound))
	assert.Equal(t, cadence.DefaultBound, rep.Counter)
	published := len(r.pub.published)
	assert.Equal(t, int(cadence.DefaultBound/60), published)

	rep = r.ticks(t, 1)
	assert.Equal(t, uint32(1), rep.Counter)
	assert.False(t, rep.Published)
	assert.Len(t, r.pub.published, published)
}

func TestTick_FatalErrors(t *testing.T) {
	t.Run("pump", func(t *testing.T) {
		r := newRig(t, nil)
		r.pub.pumpErr = &errcode.E{C: errcode.ConnectionLost}
		_, err := r.o.Tick(context.Background())
		assert.Equal(t, errcode.ConnectionLost, errcode.Of(err))
		assert.Equal(t, uint32(0), r.o.Counter(), "counter not advanced")
	})
	t.Run("display", func(t *testing.T) {
		r := newRig(t, nil)
		r.disp.err = &errcode.E{C: errcode.DisplayFailed}
		_, err := r.o.Tick(context.Background())
		assert.Equal(t, errcode.DisplayFailed, errcode.Of(err))
		assert.NotContains(t, *r.log, "publish?")
	})
	t.Run("publish", func(t *testing.T) {
		r := newRig(t, nil)
		r.pub.pubErr = &errcode.E{C: errcode.PublishFailed}
		r.ticks(t, 59)
		_, err := r.o.Tick(context.Background())
		assert.Equal(t, errcode.PublishFailed, errcode.Of(err))
	})
}

func TestTick_PublishesRetainedSnapshot(t *testing.T) {
	b := bus.NewBus(8)
	r := newRig(t, func(c *Cfg) { c.Conn = b.NewConnection("loop") })
	rep := r.ticks(t, 1)

	m, ok := b.Retained(types.TopicSnapshot())
	require.True(t, ok)
	assert.Equal(t, rep.Snapshot, m.Payload)

	last, ok := r.o.Last()
	assert.True(t, ok)
	assert.Equal(t, rep.Snapshot, last)
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_ReturnsNilOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var slept []time.Duration
	r := newRig(t, func(c *Cfg) {
		c.Sleep = func(_ context.Context, d time.Duration) bool {
			slept = append(slept, d)
			if len(slept) == 3 {
				cancel()
				return false
			}
			return true
		}
	})

	require.NoError(t, r.o.Run(ctx))
	assert.Equal(t, uint32(3), r.o.Counter())
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, slept)
}

func TestRun_ReturnsFatalErrorAndState(t *testing.T) {
	b := bus.NewBus(8)
	r := newRig(t, func(c *Cfg) { c.Conn = b.NewConnection("loop") })
	r.disp.err = &errcode.E{C: errcode.DisplayFailed}

	err := r.o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errcode.DisplayFailed, errcode.Of(err))

	m, ok := b.Retained(types.TopicState("loop"))
	require.True(t, ok)
	st := m.Payload.(types.ServiceState)
	assert.Equal(t, "error", st.Level)
	assert.Equal(t, string(errcode.DisplayFailed), st.Status)
}

func TestRun_BootSplashAndSync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var slept []time.Duration
	r := newRig(t, func(c *Cfg) {
		c.Splash = "Environment Monitor"
		c.SplashPeriods = 2
		c.SyncOnBoot = true
		c.Sleep = func(_ context.Context, d time.Duration) bool {
			slept = append(slept, d)
			if len(slept) == 2 {
				cancel()
				return false
			}
			return true
		}
	})

	require.NoError(t, r.o.Run(ctx))
	assert.Equal(t, []string{"Environment Monitor"}, r.disp.splash)
	assert.Equal(t, 1, r.res.boots)
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second}, slept)
	assert.Equal(t, uint32(1), r.o.Counter())
}

func TestRun_BootPublishesBeforeFirstTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newRig(t, func(c *Cfg) {
		c.SyncOnBoot = true
		c.PublishOnBoot = true
		c.Sleep = func(context.Context, time.Duration) bool {
			cancel()
			return false
		}
	})

	require.NoError(t, r.o.Run(ctx))
	assert.Equal(t, calls{
		"resync!", "sample", "display", "publish!",
		"pump", "resync?", "sample", "display", "publish?",
	}, *r.log)
	assert.Equal(t, []uint32{0}, r.pub.published)
	assert.Equal(t, uint32(1), r.o.Counter())
}

func TestRun_BootPublishSkippedOnSensorFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := newRig(t, func(c *Cfg) {
		c.PublishOnBoot = true
		c.Sleep = func(context.Context, time.Duration) bool {
			cancel()
			return false
		}
	})
	r.smp.failAt[1] = &errcode.E{C: errcode.SensorRead}

	require.NoError(t, r.o.Run(ctx))
	assert.Empty(t, r.pub.published)
	assert.Equal(t, 1, r.disp.updates, "only the first tick draws")
}

func TestRun_BootPublishFailureIsFatal(t *testing.T) {
	r := newRig(t, func(c *Cfg) { c.PublishOnBoot = true })
	r.pub.pubErr = &errcode.E{C: errcode.PublishFailed}

	err := r.o.Run(context.Background())
	assert.Equal(t, errcode.PublishFailed, errcode.Of(err))
	assert.Equal(t, uint32(0), r.o.Counter())
}
