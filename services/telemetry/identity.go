package telemetry

import (
	"os"
	"sync"
	"time"

	sockaddr "github.com/hashicorp/go-sockaddr"

	"envmon-go/x/strx"
)

// Identity names the device in telemetry and on the display.
type Identity struct {
	ClientID string
	IP       string
}

type IdentitySource interface {
	Identity() Identity
}

const unknownIP = "0.0.0.0"

// HostIdentity derives the identity from the hostname and the first private
// IPv4 address. Lookups are cached for TTL.
type HostIdentity struct {
	ClientID string // overrides the hostname when set
	TTL      time.Duration

	mu       sync.Mutex
	cached   Identity
	cachedAt time.Time

	hostname  func() (string, error)
	privateIP func() (string, error)
	now       func() time.Time
}

func NewHostIdentity(clientID string) *HostIdentity {
	return &HostIdentity{
		ClientID:  clientID,
		TTL:       30 * time.Second,
		hostname:  os.Hostname,
		privateIP: sockaddr.GetPrivateIP,
		now:       time.Now,
	}
}

func (h *HostIdentity) Identity() Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.cachedAt.IsZero() && h.now().Sub(h.cachedAt) < h.TTL {
		return h.cached
	}
	host, _ := h.hostname()
	ip, err := h.privateIP()
	if err != nil {
		ip = ""
	}
	h.cached = Identity{
		ClientID: strx.Coalesce(h.ClientID, host, "envmon"),
		IP:       strx.Coalesce(ip, unknownIP),
	}
	h.cachedAt = h.now()
	return h.cached
}
