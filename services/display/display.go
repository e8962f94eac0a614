// Package display renders each snapshot onto a small status screen: four
// text readouts and a rolling temperature chart with min/max labels.
package display

import (
	"fmt"

	"github.com/pkg/errors"

	"envmon-go/errcode"
	"envmon-go/types"
	"envmon-go/x/ring"
)

// UI is the widget sink. Handles name widgets; the sink decides how they
// are drawn.
type UI interface {
	SetText(handle, text string) error
	PushSeriesValue(handle string, v float64) error
	Splash(text string) error
}

// Widget handles.
const (
	HandleIP          = "ip"
	HandleTemp        = "temp"
	HandleEarth       = "earth"
	HandleLight       = "light"
	HandleChart       = "chart"
	HandleChartTop    = "chart_top"
	HandleChartBottom = "chart_bottom"
)

// DefaultChartWidth is the chart width in samples.
const DefaultChartWidth = 80

type Updater struct {
	ui     UI
	window *ring.Ring[float64]
}

func NewUpdater(ui UI, chartWidth int) *Updater {
	if chartWidth <= 0 {
		chartWidth = DefaultChartWidth
	}
	return &Updater{ui: ui, window: ring.New[float64](chartWidth)}
}

// Window returns the temperature history, oldest first.
func (u *Updater) Window() []float64 { return u.window.Values() }

func (u *Updater) Splash(text string) error {
	if err := u.ui.Splash(text); err != nil {
		return errcode.New(errcode.DisplayFailed, "display.Splash", err)
	}
	return nil
}

// Update pushes the temperature into the window and redraws every widget.
func (u *Updater) Update(snap types.Snapshot, ip string) error {
	u.window.Push(snap.AirTemp)
	lo, hi, _ := ring.MinMax(u.window)

	texts := [...]struct{ handle, text string }{
		{HandleChartTop, fmt.Sprintf("%.1f", hi)},
		{HandleChartBottom, fmt.Sprintf("%.1f", lo)},
		{HandleIP, "IP: " + ip},
		{HandleTemp, fmt.Sprintf("TEMP: %.1fC / %.1f%%", snap.AirTemp, snap.AirHumidity)},
		{HandleEarth, fmt.Sprintf("EARTH: %d %.2fV", snap.MoistureRaw, snap.MoistureVolts())},
		{HandleLight, fmt.Sprintf("Light: %.3f Lux", snap.Illuminance)},
	}
	for _, t := range texts {
		if err := u.ui.SetText(t.handle, t.text); err != nil {
			return errcode.New(errcode.DisplayFailed, "display.SetText", errors.Wrap(err, t.handle))
		}
	}
	if err := u.ui.PushSeriesValue(HandleChart, snap.AirTemp); err != nil {
		return errcode.New(errcode.DisplayFailed, "display.PushSeriesValue", err)
	}
	return nil
}
