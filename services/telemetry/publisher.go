// Package telemetry drives the broker session from the loop: it drains
// client events every tick and publishes a reading on the publish cadence.
package telemetry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"envmon-go/cadence"
	"envmon-go/errcode"
	"envmon-go/log"
	"envmon-go/messaging"
	"envmon-go/metrics"
	"envmon-go/types"
)

// DefaultEvery is the publish cadence in ticks.
const DefaultEvery uint32 = 60

// Cfg is used to initialize a Publisher.
type Cfg struct {
	Client         messaging.Client
	PublishTopic   string
	SubscribeTopic string
	Every          uint32
	Identity       IdentitySource
	Now            func() time.Time
	Log            *logrus.Entry
	Metric         *metrics.Metrics
}

type Publisher struct {
	client   messaging.Client
	pubTopic string
	subTopic string
	every    uint32
	identity IdentitySource
	now      func() time.Time
	log      *logrus.Entry
	metric   *metrics.Metrics
}

func NewPublisher(c *Cfg) *Publisher {
	every := c.Every
	if every == 0 {
		every = DefaultEvery
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return &Publisher{
		client:   c.Client,
		pubTopic: c.PublishTopic,
		subTopic: c.SubscribeTopic,
		every:    every,
		identity: c.Identity,
		now:      now,
		log:      c.Log.WithField("component", "telemetry"),
		metric:   c.Metric,
	}
}

// Pump handles every event the client queued since the last tick.
func (p *Publisher) Pump(ctx context.Context) error {
	evs, err := p.client.Pump(ctx)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		p.metric.BrokerEvent(ev.Kind.String())
		switch ev.Kind {
		case messaging.Connected:
			p.log.WithFields(logrus.Fields{"func": "Pump", "event": log.EventBrokerConnected}).Info("connected to broker")
			if err := p.client.Subscribe(ctx, p.subTopic); err != nil {
				return errors.Wrapf(err, "subscribe %s", p.subTopic)
			}
		case messaging.Message:
			p.log.WithFields(logrus.Fields{
				"func":  "Pump",
				"event": log.EventBrokerMessage,
				"topic": ev.Topic,
			}).Info(string(ev.Payload))
		case messaging.Disconnected:
			p.log.WithFields(logrus.Fields{
				"func":           "Pump",
				"event":          log.EventBrokerDisconnected,
				"auto_reconnect": p.client.AutoReconnect(),
			}).Warn(ev.Err)
			if !p.client.AutoReconnect() {
				return errcode.New(errcode.ConnectionLost, "telemetry.Pump", ev.Err)
			}
		}
	}
	return nil
}

// Payload serializes snap with the current identity and time.
func (p *Publisher) Payload(snap types.Snapshot) ([]byte, error) {
	return Marshal(Build(snap, p.identity.Identity(), p.now()))
}

// MaybePublish publishes snap when the counter is on the publish cadence.
func (p *Publisher) MaybePublish(ctx context.Context, c *cadence.Counter, snap types.Snapshot) (bool, error) {
	if !c.IsDue(p.every) {
		return false, nil
	}
	if err := p.Publish(ctx, snap); err != nil {
		return false, err
	}
	return true, nil
}

// Publish sends snap to the publish topic unconditionally.
func (p *Publisher) Publish(ctx context.Context, snap types.Snapshot) error {
	payload, err := p.Payload(snap)
	if err != nil {
		return errors.Wrap(err, "Marshal()")
	}
	if err := p.client.Publish(ctx, p.pubTopic, payload); err != nil {
		p.metric.Published(false)
		return err
	}
	p.metric.Published(true)
	p.log.WithFields(logrus.Fields{
		"func":  "Publish",
		"event": log.EventTelemetryPublished,
		"topic": p.pubTopic,
	}).Debug(string(payload))
	return nil
}
