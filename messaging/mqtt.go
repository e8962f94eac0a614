package messaging

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"envmon-go/errcode"
	"envmon-go/services/config"
)

const qosAtMostOnce = 0

type MQTTClient struct {
	cli            mqtt.Client
	q              queue
	log            *logrus.Entry
	autoReconnect  bool
	publishTimeout time.Duration
}

func NewMQTT(cfg config.MessagingConfig, clientID string, log *logrus.Entry) *MQTTClient {
	c := &MQTTClient{
		log:            log.WithFields(logrus.Fields{"component": "mqtt", "client_id": clientID}),
		autoReconnect:  cfg.AutoReconnect,
		publishTimeout: cfg.PublishTimeout,
	}
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(clientID).
		SetUsername(cfg.User).
		SetPassword(cfg.Password).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetCleanSession(true).
		SetAutoReconnect(cfg.AutoReconnect).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	c.cli = mqtt.NewClient(opts)
	return c
}

func (c *MQTTClient) onConnect(mqtt.Client) {
	c.q.push(Event{Kind: Connected})
}

func (c *MQTTClient) onConnectionLost(_ mqtt.Client, err error) {
	c.q.push(Event{Kind: Disconnected, Err: err})
}

func (c *MQTTClient) onMessage(_ mqtt.Client, m mqtt.Message) {
	c.q.push(Event{
		Kind:    Message,
		Topic:   m.Topic(),
		Payload: append([]byte(nil), m.Payload()...),
	})
}

func (c *MQTTClient) Connect(ctx context.Context) error {
	if err := wait(ctx, c.cli.Connect(), 0); err != nil {
		return errcode.New(errcode.NotConnected, "mqtt.Connect", err)
	}
	return nil
}

func (c *MQTTClient) Pump(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	evs, dropped := c.q.drain()
	if dropped > 0 {
		c.log.WithFields(logrus.Fields{"func": "Pump", "dropped": dropped}).Warn("event queue overflow")
	}
	return evs, nil
}

func (c *MQTTClient) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.cli.IsConnected() {
		return &errcode.E{C: errcode.NotConnected, Op: "mqtt.Publish", Msg: topic}
	}
	if err := wait(ctx, c.cli.Publish(topic, qosAtMostOnce, false, payload), c.publishTimeout); err != nil {
		return errcode.New(errcode.PublishFailed, "mqtt.Publish", errors.Wrap(err, topic))
	}
	return nil
}

func (c *MQTTClient) Subscribe(ctx context.Context, topic string) error {
	if err := wait(ctx, c.cli.Subscribe(topic, qosAtMostOnce, c.onMessage), c.publishTimeout); err != nil {
		return errcode.New(errcode.NotConnected, "mqtt.Subscribe", errors.Wrap(err, topic))
	}
	return nil
}

func (c *MQTTClient) AutoReconnect() bool { return c.autoReconnect }

func (c *MQTTClient) Close() {
	c.cli.Disconnect(250)
}

// wait blocks until tok completes, ctx ends or timeout (if > 0) elapses.
func wait(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return errcode.Timeout
	}
}
