package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"envmon-go/errcode"
	"envmon-go/services/config"
)

// NATSClient carries telemetry over core NATS. Topics are used verbatim as
// subjects.
type NATSClient struct {
	url            string
	opts           []nats.Option
	q              queue
	log            *logrus.Entry
	autoReconnect  bool
	flushTimeout   time.Duration
	connectTimeout time.Duration

	mu   sync.Mutex
	nc   *nats.Conn
	subs map[string]*nats.Subscription
}

func NewNATS(cfg config.MessagingConfig, clientID string, log *logrus.Entry) *NATSClient {
	c := &NATSClient{
		url:            fmt.Sprintf("nats://%s:%d", cfg.Host, cfg.Port),
		log:            log.WithFields(logrus.Fields{"component": "nats", "client_id": clientID}),
		autoReconnect:  cfg.AutoReconnect,
		flushTimeout:   cfg.PublishTimeout,
		connectTimeout: cfg.ConnectTimeout,
		subs:           map[string]*nats.Subscription{},
	}
	if c.flushTimeout <= 0 {
		c.flushTimeout = 5 * time.Second
	}
	c.opts = []nats.Option{
		nats.Name(clientID),
		nats.Timeout(cfg.ConnectTimeout),
		nats.PingInterval(cfg.KeepAlive),
		nats.DisconnectErrHandler(c.onDisconnect),
		nats.ReconnectHandler(c.onReconnect),
	}
	if cfg.User != "" {
		c.opts = append(c.opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	if !cfg.AutoReconnect {
		c.opts = append(c.opts, nats.NoReconnect())
	}
	return c
}

func (c *NATSClient) onDisconnect(_ *nats.Conn, err error) {
	c.q.push(Event{Kind: Disconnected, Err: err})
}

func (c *NATSClient) onReconnect(*nats.Conn) {
	c.q.push(Event{Kind: Connected})
}

func (c *NATSClient) onMessage(m *nats.Msg) {
	c.q.push(Event{
		Kind:    Message,
		Topic:   m.Subject,
		Payload: append([]byte(nil), m.Data...),
	})
}

// Connect dials synchronously and queues a Connected event on success.
func (c *NATSClient) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nc, err := nats.Connect(c.url, c.opts...)
	if err != nil {
		return errcode.New(errcode.NotConnected, "nats.Connect", errors.Wrap(err, c.url))
	}
	c.mu.Lock()
	c.nc = nc
	c.mu.Unlock()
	c.q.push(Event{Kind: Connected})
	return nil
}

func (c *NATSClient) conn() *nats.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nc
}

func (c *NATSClient) Pump(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	evs, dropped := c.q.drain()
	if dropped > 0 {
		c.log.WithFields(logrus.Fields{"func": "Pump", "dropped": dropped}).Warn("event queue overflow")
	}
	return evs, nil
}

func (c *NATSClient) Publish(ctx context.Context, topic string, payload []byte) error {
	nc := c.conn()
	if nc == nil || !nc.IsConnected() {
		return &errcode.E{C: errcode.NotConnected, Op: "nats.Publish", Msg: topic}
	}
	if err := nc.Publish(topic, payload); err != nil {
		return errcode.New(errcode.PublishFailed, "nats.Publish", errors.Wrap(err, topic))
	}
	fctx, cancel := context.WithTimeout(ctx, c.flushTimeout)
	defer cancel()
	if err := nc.FlushWithContext(fctx); err != nil {
		return errcode.New(errcode.PublishFailed, "nats.Flush", err)
	}
	return nil
}

// Subscribe is idempotent per topic; the NATS client restores its own
// subscriptions after a reconnect.
func (c *NATSClient) Subscribe(_ context.Context, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc == nil {
		return &errcode.E{C: errcode.NotConnected, Op: "nats.Subscribe", Msg: topic}
	}
	if _, ok := c.subs[topic]; ok {
		return nil
	}
	sub, err := c.nc.Subscribe(topic, c.onMessage)
	if err != nil {
		return errcode.New(errcode.NotConnected, "nats.Subscribe", errors.Wrap(err, topic))
	}
	c.subs[topic] = sub
	return nil
}

func (c *NATSClient) AutoReconnect() bool { return c.autoReconnect }

func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
	c.subs = map[string]*nats.Subscription{}
}
