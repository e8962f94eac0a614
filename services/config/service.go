package config

import (
	"envmon-go/bus"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

// TopicSection is the retained bus topic carrying one config section.
func TopicSection(name string) bus.Topic { return bus.T(configPrefix, name) }

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// Publish places every section of cfg on the bus as a retained message.
func (s *ConfigService) Publish(conn *bus.Connection, cfg *Config) {
	for k, v := range cfg.Sections() {
		conn.Publish(conn.NewMessage(TopicSection(k), v, true))
	}
}
