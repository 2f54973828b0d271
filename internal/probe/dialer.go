package probe

import (
	"context"
	"errors"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Dialer opens TCP connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober runs TCP connect checks against a single address.
type Prober struct {
	dialer Dialer
}

// NewProber returns a Prober using d, or a default net.Dialer when d is nil.
func NewProber(d Dialer) *Prober {
	if d == nil {
		d = &net.Dialer{}
	}
	return &Prober{dialer: d}
}

// Alive reports whether ip answers on any of ports within timeout. A refused
// connection counts as alive since something replied.
func (p *Prober) Alive(ctx context.Context, ip string, ports []int, timeout time.Duration) bool {
	if len(ports) == 0 {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan struct{}, len(ports))
	var wg sync.WaitGroup
	for _, port := range ports {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			err := p.dial(ctx, ip, port, timeout)
			if err == nil || isRefused(err) {
				found <- struct{}{}
			}
		}(port)
	}
	go func() {
		wg.Wait()
		close(found)
	}()

	_, ok := <-found
	return ok
}

// OpenPorts returns the ports of ip that accept a connection, ascending.
func (p *Prober) OpenPorts(ctx context.Context, ip string, ports []int, timeout time.Duration) []int {
	var (
		mu   sync.Mutex
		open []int
		wg   sync.WaitGroup
	)
	for _, port := range ports {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			if p.dial(ctx, ip, port, timeout) == nil {
				mu.Lock()
				open = append(open, port)
				mu.Unlock()
			}
		}(port)
	}
	wg.Wait()
	slices.Sort(open)
	return open
}

func (p *Prober) dial(ctx context.Context, ip string, port int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return conn.Close()
}

func isRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}
