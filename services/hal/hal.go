// Package hal opens the sensor collaborators for the configured platform.
// Platforms register a Builder by kind; "sim" is always available, "linux"
// only on Linux builds.
package hal

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"envmon-go/errcode"
	"envmon-go/log"
	"envmon-go/services/config"
	"envmon-go/services/sampler"
)

// Params is the input handed to a platform Builder.
type Params struct {
	Platform config.PlatformConfig
	Sensors  config.SensorsConfig
	Log      *logrus.Entry
}

// Sensors bundles the three collaborators the sampler reads.
type Sensors struct {
	TempHumidity sampler.TempHumidity
	Light        sampler.Light
	Analog       sampler.Analog

	close func() error
}

// Close releases the underlying bus, if any.
func (s *Sensors) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

type Builder func(p Params) (*Sensors, error)

var (
	regMu    sync.RWMutex
	builders = map[string]Builder{}
)

// RegisterBuilder makes a platform kind available to Open.
func RegisterBuilder(kind string, b Builder) {
	regMu.Lock()
	defer regMu.Unlock()
	builders[kind] = b
}

// Kinds lists the registered platform kinds.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open builds the sensors for p.Platform.Kind.
func Open(p Params) (*Sensors, error) {
	regMu.RLock()
	b, ok := builders[p.Platform.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "hal.Open", Msg: "platform kind " + p.Platform.Kind}
	}
	s, err := b(p)
	if err != nil {
		return nil, err
	}
	p.Log.WithFields(logrus.Fields{
		"func":     "Open",
		"event":    log.EventSensorInit,
		"platform": p.Platform.Kind,
	}).Info("sensors ready")
	return s, nil
}
