package clock

import (
	"context"
	"time"

	"github.com/beevik/ntp"
	"github.com/pkg/errors"
)

// NTPSource queries a single NTP server.
type NTPSource struct {
	Server  string
	Timeout time.Duration

	query func(host string, opt ntp.QueryOptions) (*ntp.Response, error)
}

func NewNTPSource(server string, timeout time.Duration) *NTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NTPSource{Server: server, Timeout: timeout, query: ntp.QueryWithOptions}
}

// FetchCurrentTime returns local time corrected by the server's clock offset.
func (s *NTPSource) FetchCurrentTime(ctx context.Context) (time.Time, error) {
	timeout := s.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	resp, err := s.query(s.Server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "ntp.Query(%s)", s.Server)
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, errors.Wrap(err, "ntp.Validate()")
	}
	return time.Now().Add(resp.ClockOffset), nil
}
