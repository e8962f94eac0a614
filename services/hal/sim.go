package hal

func init() {
	RegisterBuilder("sim", func(p Params) (*Sensors, error) {
		return NewSim(p.Sensors.RefVoltage), nil
	})
}

// NewSim returns deterministic simulated sensors. Each read steps the
// value along a short repeating ramp so the display and telemetry move.
func NewSim(refVolts float64) *Sensors {
	if refVolts <= 0 {
		refVolts = 3.3
	}
	return &Sensors{
		TempHumidity: &SimTempHumidity{},
		Light:        &SimLight{},
		Analog:       &SimAnalog{Ref: refVolts},
	}
}

// SimTempHumidity yields 23.1, 23.2, ... °C and 50.2, 50.4, ... %RH,
// repeating every 50 reads.
type SimTempHumidity struct {
	tIdx, hIdx int
}

func (s *SimTempHumidity) ReadTemperature() (float64, error) {
	s.tIdx = s.tIdx%50 + 1
	return float64(230+s.tIdx) / 10, nil
}

func (s *SimTempHumidity) ReadHumidity() (float64, error) {
	s.hIdx = s.hIdx%50 + 1
	return float64(500+2*s.hIdx) / 10, nil
}

type SimLight struct {
	idx int
}

func (s *SimLight) ReadIlluminance() (float64, error) {
	s.idx = s.idx%100 + 1
	return 300 + 2.5*float64(s.idx), nil
}

type SimAnalog struct {
	Ref float64
	idx int
}

func (s *SimAnalog) ReadRaw() (uint16, error) {
	s.idx = s.idx%64 + 1
	return uint16(20000 + 256*s.idx), nil
}

func (s *SimAnalog) ReferenceVoltage() float64 { return s.Ref }
