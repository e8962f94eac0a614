package aht20

import (
	"errors"
	"math"
	"testing"
	"time"
)

type fakeI2C struct {
	writes [][]byte
	reads  [][]byte // scripted payloads for r-only transactions
	err    error
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	if len(w) > 0 {
		f.writes = append(f.writes, append([]byte(nil), w...))
	}
	if len(r) > 0 && len(w) == 0 && len(f.reads) > 0 {
		copy(r, f.reads[0])
		f.reads = f.reads[1:]
	}
	if len(r) == 1 && len(w) == 1 && w[0] == cmdStatus {
		r[0] = 0x18
	}
	return nil
}

func fastConfig() Config {
	return Config{PollInterval: time.Millisecond, CollectTimeout: 20 * time.Millisecond, TriggerHint: time.Millisecond}
}

func TestRead_BusyThenReady(t *testing.T) {
	bus := &fakeI2C{reads: [][]byte{
		{0x98, 0, 0, 0, 0, 0, 0}, // busy
		{0x1C, 0x80, 0x00, 0x06, 0x00, 0x00, 0x00},
	}}
	d := New(bus, fastConfig())
	s, err := d.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if math.Abs(s.Celsius()-25.0) > 1e-9 {
		t.Fatalf("Celsius = %v, want 25", s.Celsius())
	}
	if math.Abs(s.RelHumidity()-50.0) > 1e-9 {
		t.Fatalf("RelHumidity = %v, want 50", s.RelHumidity())
	}
	if s.DeciCelsius() != 250 {
		t.Fatalf("DeciCelsius = %d, want 250", s.DeciCelsius())
	}
	if len(bus.writes) == 0 || bus.writes[0][0] != cmdTrigger {
		t.Fatalf("first write = %v, want trigger", bus.writes)
	}
}

func TestRead_TimesOutWhileBusy(t *testing.T) {
	busy := []byte{0x98, 0, 0, 0, 0, 0, 0}
	bus := &fakeI2C{}
	for i := 0; i < 100; i++ {
		bus.reads = append(bus.reads, busy)
	}
	d := New(bus, fastConfig())
	if _, err := d.Read(); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestRead_BusErrorPassesThrough(t *testing.T) {
	boom := errors.New("nack")
	d := New(&fakeI2C{err: boom}, fastConfig())
	if _, err := d.Read(); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want nack", err)
	}
}

func TestConfigure_SkipsInitWhenCalibrated(t *testing.T) {
	bus := &fakeI2C{}
	d := New(bus, fastConfig())
	if err := d.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	for _, w := range bus.writes {
		if w[0] == cmdInitialize {
			t.Fatal("initialize sent although status reports calibration")
		}
	}
	if d.Address() != Address {
		t.Fatalf("Address = %#x", d.Address())
	}
}
