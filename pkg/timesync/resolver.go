package timesync

import (
	"errors"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// Resolver resolves the canonical time-service name to one address
// suitable for Datagram.Send.
type Resolver interface {
	Resolve(name string) (string, error)
}

// ErrNoAddress indicates the name resolved to no usable address.
var ErrNoAddress = errors.New("timesync: no address for name")

// DNSResolver queries a fixed DNS server directly instead of going
// through the system resolver, which the firmware environment does
// not have.
type DNSResolver struct {
	// Server is the DNS server address ("ip:53").
	Server string
	// Port is appended to the resolved address.
	Port int
	// Timeout bounds the exchange. Defaults to 2s.
	Timeout time.Duration
}

// Resolve implements Resolver.
func (r *DNSResolver) Resolve(name string) (string, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	client := &dns.Client{Timeout: timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)
	in, _, err := client.Exchange(msg, r.Server)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	for _, rr := range in.Answer {
		if a, ok := rr.(*dns.A); ok {
			return fmt.Sprintf("%s:%d", a.A.String(), r.Port), nil
		}
	}
	return "", ErrNoAddress
}
