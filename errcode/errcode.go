package errcode

// Code is a stable error identifier used in logs, metrics labels and bus state.
// It is a string newtype, comparable, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	SensorRead     Code = "sensor_read"
	OutOfRange     Code = "out_of_range"
	Timeout        Code = "timeout"
	NotReady       Code = "not_ready"
	ConnectionLost Code = "connection_lost"
	NotConnected   Code = "not_connected"
	PublishFailed  Code = "publish_failed"
	NTPFailed      Code = "ntp_failed"
	ClockSetFailed Code = "clock_set_failed"
	InvalidConfig  Code = "invalid_config"
	Unsupported    Code = "unsupported"
	DisplayFailed  Code = "display_failed"

	Error Code = "error" // generic fallback
)

// E keeps a Code together with the failing operation and its cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// New builds an *E for op with code c wrapping err.
func New(c Code, op string, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	for e := err; e != nil; {
		switch x := e.(type) {
		case Code:
			return x
		case coder:
			return x.Code()
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			// github.com/pkg/errors wrappers expose Cause instead of Unwrap.
			c, ok := e.(interface{ Cause() error })
			if !ok {
				break
			}
			e = c.Cause()
			continue
		}
		e = u.Unwrap()
	}
	return Error
}

// Is reports whether err carries code c anywhere in its chain.
func Is(err error, c Code) bool { return Of(err) == c }
