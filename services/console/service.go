// Package console is the headless display: it mirrors ui/* widget updates
// into the log and emits a periodic heartbeat with the latest readings.
package console

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"envmon-go/bus"
	"envmon-go/log"
	"envmon-go/types"
)

type Service struct {
	conn     *bus.Connection
	log      *logrus.Entry
	interval time.Duration

	mu     sync.Mutex
	screen map[string]string
}

func New(conn *bus.Connection, log *logrus.Entry, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Service{
		conn:     conn,
		log:      log.WithField("component", "console"),
		interval: interval,
		screen:   map[string]string{},
	}
}

// Screen returns a copy of the current text widgets by handle.
func (s *Service) Screen() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.screen))
	for k, v := range s.screen {
		out[k] = v
	}
	return out
}

func (s *Service) serviceLoop(ctx context.Context, sub *bus.Subscription) {
	defer s.conn.Unsubscribe(sub)

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.WithFields(logrus.Fields{"func": "serviceLoop", "event": log.EventSVCShutdown}).Info("console stopping")
			return
		case <-tick.C:
			s.heartbeat()
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			s.handle(msg)
		}
	}
}

func (s *Service) handle(msg *bus.Message) {
	if msg.Topic.Len() < 2 {
		return
	}
	kind, _ := msg.Topic.At(1).(string)
	switch kind {
	case "splash":
		text, _ := msg.Payload.(string)
		s.log.WithFields(logrus.Fields{"func": "handle", "event": log.EventDisplay}).Info(text)
	case "text":
		if msg.Topic.Len() < 3 {
			return
		}
		handle, _ := msg.Topic.At(2).(string)
		text, _ := msg.Payload.(string)
		s.mu.Lock()
		changed := s.screen[handle] != text
		s.screen[handle] = text
		s.mu.Unlock()
		if changed {
			s.log.WithFields(logrus.Fields{"func": "handle", "event": log.EventDisplay, "widget": handle}).Debug(text)
		}
	}
}

func (s *Service) heartbeat() {
	f := logrus.Fields{"func": "heartbeat", "event": log.EventHeartbeat}
	if m, ok := s.conn.Bus().Retained(types.TopicSnapshot()); ok {
		if snap, ok := m.Payload.(types.Snapshot); ok {
			f["air_temp"] = snap.AirTemp
			f["air_humi"] = snap.AirHumidity
			f["light"] = snap.Illuminance
			f["earth_raw"] = snap.MoistureRaw
			f["age"] = time.Since(snap.TakenAt).Round(time.Second).String()
		}
	}
	if m, ok := s.conn.Bus().Retained(types.TopicState("loop")); ok {
		if st, ok := m.Payload.(types.ServiceState); ok {
			f["loop"] = st.Level
		}
	}
	s.log.WithFields(f).Info("heartbeat")
}

// Start subscribes before returning so no update published afterwards is
// missed, then runs until ctx ends.
func (s *Service) Start(ctx context.Context) error {
	sub := s.conn.Subscribe(types.TopicUIAll())
	go s.serviceLoop(ctx, sub)
	return nil
}
