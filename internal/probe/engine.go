package probe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/ipaddr"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/settings"
	"github.com/anstrom/netscope/internal/workers"
)

const probeJobType = "probe_host"

// Engine finds live hosts in a range. emit may be called from several
// goroutines at once and receives records that still need enrichment.
type Engine interface {
	Discover(ctx context.Context, params backend.ScanParameters, emit func(hosts.Record)) error
}

// ConnectEngine sweeps with plain TCP connects spread over a worker pool.
type ConnectEngine struct {
	cfg      Config
	prober   *Prober
	observer workers.Observer
	logger   *logging.Logger
}

// NewConnectEngine returns a TCP connect engine. observer may be nil.
func NewConnectEngine(cfg Config, prober *Prober, observer workers.Observer, logger *logging.Logger) *ConnectEngine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ConnectEngine{cfg: cfg, prober: prober, observer: observer, logger: logger}
}

// Discover implements Engine.
func (e *ConnectEngine) Discover(ctx context.Context, params backend.ScanParameters, emit func(hosts.Record)) error {
	opts := []workers.Option{workers.WithContext(ctx), workers.WithLogger(e.logger)}
	if e.observer != nil {
		opts = append(opts, workers.WithObserver(e.observer))
	}
	pool := workers.New(workers.Config{Size: e.cfg.Concurrency, QueueSize: e.cfg.Concurrency}, opts...)
	pool.Start()

	probePorts := params.ProbePorts()
	var submitErr error
	params.Range.Each(func(addr ipaddr.Address) bool {
		ip := addr.String()
		job := workers.NewFuncJob(ip, probeJobType, func(ctx context.Context) error {
			if rec, ok := e.probeHost(ctx, addr, probePorts, params); ok {
				emit(rec)
			}
			return ctx.Err()
		})
		if err := pool.SubmitWait(ctx, job); err != nil {
			submitErr = err
			return false
		}
		return true
	})

	shutdownErr := pool.Shutdown()
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case submitErr != nil:
		return submitErr
	default:
		return shutdownErr
	}
}

// probeHost checks one address. A host that fails the liveness check is
// still reported when hidden-host discovery finds one of its ports open.
func (e *ConnectEngine) probeHost(ctx context.Context, addr ipaddr.Address, probePorts []int, params backend.ScanParameters) (hosts.Record, bool) {
	ip := addr.String()
	alive := e.prober.Alive(ctx, ip, e.cfg.LivenessPorts, e.cfg.LivenessTimeout)
	if !alive && !params.HiddenHostDiscoveryEnabled {
		return hosts.Record{}, false
	}

	open := e.prober.OpenPorts(ctx, ip, probePorts, e.cfg.DialTimeout)
	if !alive && !anyPort(open, params.HiddenHostPorts) {
		return hosts.Record{}, false
	}
	if alive {
		e.logger.Debug("Host alive", "ip", ip, "open_ports", settings.FormatPortList(open))
	} else {
		e.logger.Debug("Hidden host found", "ip", ip, "open_ports", settings.FormatPortList(open))
	}
	return hosts.Record{IPAddress: addr, OpenPorts: open}, true
}

// NmapEngine runs an nmap connect scan over the range.
type NmapEngine struct {
	cfg    Config
	logger *logging.Logger
}

// NewNmapEngine returns an nmap engine.
func NewNmapEngine(cfg Config, logger *logging.Logger) *NmapEngine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NmapEngine{cfg: cfg, logger: logger}
}

// Discover implements Engine.
func (e *NmapEngine) Discover(ctx context.Context, params backend.ScanParameters, emit func(hosts.Record)) error {
	scanner, err := nmap.NewScanner(ctx, e.options(params)...)
	if err != nil {
		return fmt.Errorf("failed to create nmap scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return fmt.Errorf("nmap scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		e.logger.Warn("Nmap completed with warnings", "warnings", strings.Join(*warnings, "; "))
	}
	if result == nil {
		return errors.New("nmap returned no result")
	}

	for i := range result.Hosts {
		rec, ok := recordFromNmapHost(&result.Hosts[i])
		if !ok {
			continue
		}
		// Without host discovery nmap reports every target, so keep only
		// those that showed an open port.
		if params.HiddenHostDiscoveryEnabled && len(rec.OpenPorts) == 0 {
			continue
		}
		emit(rec)
	}
	return nil
}

func (e *NmapEngine) options(params backend.ScanParameters) []nmap.Option {
	options := []nmap.Option{
		nmap.WithTargets(params.Range.CIDRs()...),
		nmap.WithPorts(settings.FormatPortList(params.ProbePorts())),
		nmap.WithConnectScan(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
	}
	if params.HiddenHostDiscoveryEnabled {
		options = append(options, nmap.WithSkipHostDiscovery())
	}
	if e.cfg.NmapOSDetection {
		options = append(options, nmap.WithOSDetection())
	}
	if e.cfg.NmapBinaryPath != "" {
		options = append(options, nmap.WithBinaryPath(e.cfg.NmapBinaryPath))
	}
	return options
}

// recordFromNmapHost converts an up nmap host with an IPv4 address.
func recordFromNmapHost(h *nmap.Host) (hosts.Record, bool) {
	if h.Status.State != "up" {
		return hosts.Record{}, false
	}

	var rec hosts.Record
	found := false
	for _, a := range h.Addresses {
		switch a.AddrType {
		case "ipv4":
			addr, err := ipaddr.Parse(a.Addr)
			if err != nil {
				continue
			}
			rec.IPAddress = addr
			found = true
		case "mac":
			rec.MACAddress = strings.ToUpper(a.Addr)
		}
	}
	if !found {
		return hosts.Record{}, false
	}

	if len(h.Hostnames) > 0 {
		rec.Hostname = trimFqdn(h.Hostnames[0].Name)
	}

	rec.OpenPorts = []int{}
	for _, p := range h.Ports {
		if p.State.State == "open" && p.Protocol == "tcp" {
			rec.OpenPorts = append(rec.OpenPorts, int(p.ID))
		}
	}
	slices.Sort(rec.OpenPorts)

	if len(h.OS.Matches) > 0 {
		match := h.OS.Matches[0]
		rec.OS = match.Name
		if len(match.Classes) > 0 {
			class := match.Classes[0]
			rec.DeviceType = classifyOS(match.Name, class.Type, class.Family)
		}
	}
	return rec, true
}
