package log

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Inner log events.
const (
	EventSVCStarted         = "svc_started"
	EventSVCShutdown        = "svc_shutdown"
	EventTick               = "tick"
	EventTickAborted        = "tick_aborted"
	EventLoopFailed         = "loop_failed"
	EventNTPSynced          = "ntp_synced"
	EventNTPFailed          = "ntp_failed"
	EventBrokerConnected    = "broker_connected"
	EventBrokerDisconnected = "broker_disconnected"
	EventBrokerMessage      = "broker_message"
	EventTelemetryPublished = "telemetry_published"
	EventSensorInit         = "sensor_init"
	EventConfigLoaded       = "config_loaded"
	EventHeartbeat          = "heartbeat"
	EventDisplay            = "display"
	EventPanic              = "panic"
)

// New builds the process logger. Every entry carries the svc field.
func New(appID, logLevel string) (*logrus.Logger, error) {
	return NewWithOutput(appID, logLevel, os.Stdout)
}

// NewWithOutput is New writing to out.
func NewWithOutput(appID, logLevel string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, errors.Wrap(err, "ParseLevel()")
	}
	return &logrus.Logger{
		Level: lvl,
		Out:   out,
		Hooks: make(logrus.LevelHooks),
		Formatter: &formatter{
			Formatter: &logrus.TextFormatter{FullTimestamp: true},
			defaultFields: logrus.Fields{
				"svc": appID,
			},
		},
	}, nil
}

// Component returns an entry scoped to a named component.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return logrus.NewEntry(l).WithField("component", name)
}

// Discard returns an entry that drops everything; for tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

type formatter struct {
	logrus.Formatter
	defaultFields logrus.Fields
}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	for k, v := range f.defaultFields {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return f.Formatter.Format(entry)
}
