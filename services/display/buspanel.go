package display

import (
	"envmon-go/bus"
	"envmon-go/types"
)

// BusPanel is a UI that publishes widget updates on the local bus. Text
// and splash updates are retained so late subscribers see the current screen.
type BusPanel struct {
	conn *bus.Connection
}

func NewBusPanel(conn *bus.Connection) *BusPanel { return &BusPanel{conn: conn} }

func (p *BusPanel) SetText(handle, text string) error {
	p.conn.Publish(p.conn.NewMessage(types.TopicUIText(handle), text, true))
	return nil
}

func (p *BusPanel) PushSeriesValue(handle string, v float64) error {
	p.conn.Publish(p.conn.NewMessage(types.TopicUISeries(handle), v, false))
	return nil
}

func (p *BusPanel) Splash(text string) error {
	p.conn.Publish(p.conn.NewMessage(types.TopicUISplash(), text, true))
	return nil
}
