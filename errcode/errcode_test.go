package errcode

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestOf(t *testing.T) {
	base := errors.New("i2c nack")
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, OK},
		{"bare code", Timeout, Timeout},
		{"wrapper", New(SensorRead, "aht20.read", base), SensorRead},
		{"fmt wrapped", fmt.Errorf("tick: %w", New(OutOfRange, "sampler", nil)), OutOfRange},
		{"pkg/errors wrapped", pkgerrors.Wrap(New(ConnectionLost, "pump", nil), "loop"), ConnectionLost},
		{"plain", base, Error},
	}
	for _, c := range cases {
		if got := Of(c.err); got != c.want {
			t.Fatalf("%s: Of() = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestE_ErrorAndUnwrap(t *testing.T) {
	base := errors.New("bus timeout")
	e := &E{C: SensorRead, Op: "bh1750.read", Msg: "lux", Err: base}
	if got, want := e.Error(), "bh1750.read: sensor_read: lux: bus timeout"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(e, base) {
		t.Fatal("errors.Is should see the cause")
	}
	if !Is(e, SensorRead) {
		t.Fatal("Is(SensorRead) = false")
	}
}
