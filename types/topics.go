package types

import "envmon-go/bus"

// Local bus topics shared between services.

func TopicSnapshot() bus.Topic { return bus.T("env", "snapshot") }

func TopicUIText(handle string) bus.Topic   { return bus.T("ui", "text", handle) }
func TopicUISeries(handle string) bus.Topic { return bus.T("ui", "series", handle) }
func TopicUISplash() bus.Topic              { return bus.T("ui", "splash") }
func TopicUIAll() bus.Topic                 { return bus.T("ui", "#") }

func TopicState(service string) bus.Topic { return bus.T(service, "state") }
