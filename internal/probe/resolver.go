package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Resolver finds the hostname of an address. An address without a name
// yields "" and no error.
type Resolver interface {
	LookupAddr(ctx context.Context, ip string) (string, error)
}

// DNSResolver sends PTR queries to a fixed server.
type DNSResolver struct {
	client *dns.Client
	server string
}

// NewDNSResolver builds a resolver for server ("host" or "host:port").
func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSResolver{
		client: &dns.Client{Timeout: timeout},
		server: server,
	}
}

// LookupAddr implements Resolver.
func (r *DNSResolver) LookupAddr(ctx context.Context, ip string) (string, error) {
	name, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("reverse name for %s: %w", ip, err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypePTR)
	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return "", fmt.Errorf("ptr query for %s: %w", ip, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return "", nil
	}
	for _, answer := range resp.Answer {
		if ptr, ok := answer.(*dns.PTR); ok {
			return trimFqdn(ptr.Ptr), nil
		}
	}
	return "", nil
}

// SystemResolver uses the operating system's resolver.
type SystemResolver struct {
	resolver *net.Resolver
}

// LookupAddr implements Resolver.
func (r SystemResolver) LookupAddr(ctx context.Context, ip string) (string, error) {
	res := r.resolver
	if res == nil {
		res = net.DefaultResolver
	}
	names, err := res.LookupAddr(ctx, ip)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return "", nil
		}
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}
	return trimFqdn(names[0]), nil
}

// NewResolver picks a DNSResolver when a server is configured and the
// system resolver otherwise.
func NewResolver(cfg Config) Resolver {
	if cfg.DNSServer != "" {
		return NewDNSResolver(cfg.DNSServer, cfg.DNSTimeout)
	}
	return SystemResolver{}
}

func trimFqdn(name string) string {
	if dns.IsFqdn(name) {
		return strings.TrimSuffix(name, ".")
	}
	return name
}
