// Package messaging is the broker side of telemetry. Transport callbacks run
// on the client's own goroutines; they only enqueue Events, which the loop
// drains synchronously through Pump.
package messaging

import (
	"context"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"envmon-go/errcode"
	"envmon-go/services/config"
	"envmon-go/x/strx"
)

type EventKind int

const (
	Connected EventKind = iota + 1
	Disconnected
	Message
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Message:
		return "message"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
	Err     error
}

type Client interface {
	Connect(ctx context.Context) error
	// Pump returns the events queued since the previous call, oldest first.
	Pump(ctx context.Context) ([]Event, error)
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) error
	AutoReconnect() bool
	Close()
}

// New builds the client selected by cfg.Transport.
func New(cfg config.MessagingConfig, log *logrus.Entry) (Client, error) {
	id := ClientID(cfg.ClientID)
	switch cfg.Transport {
	case "mqtt":
		return NewMQTT(cfg, id, log), nil
	case "nats":
		return NewNATS(cfg, id, log), nil
	default:
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "messaging.New", Msg: "transport " + cfg.Transport}
	}
}

// ClientID returns configured, or hostname plus a short random suffix.
func ClientID(configured string) string {
	host, _ := os.Hostname()
	return strx.Coalesce(configured, strx.Coalesce(host, "envmon")+"-"+uuid.NewString()[:8])
}

// ---------------------------------------------------------------------------
// Event queue
// ---------------------------------------------------------------------------

const maxQueued = 256

type queue struct {
	mu      sync.Mutex
	events  []Event
	dropped int
}

// push never blocks; past maxQueued the oldest event is dropped.
func (q *queue) push(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) >= maxQueued {
		q.events = q.events[1:]
		q.dropped++
	}
	q.events = append(q.events, ev)
}

func (q *queue) drain() (evs []Event, dropped int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	evs, q.events = q.events, nil
	dropped, q.dropped = q.dropped, 0
	return evs, dropped
}
