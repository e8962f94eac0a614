//go:build !linux

package clock

import "envmon-go/errcode"

func newSystemClock() (Clock, error) {
	return nil, &errcode.E{C: errcode.Unsupported, Op: "clock.New", Msg: "system clock needs linux"}
}
