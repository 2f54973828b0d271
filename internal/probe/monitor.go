package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/workers"
)

const livenessJobType = "liveness_check"

// checkFunc reports whether one address is up.
type checkFunc func(ctx context.Context, ip string) bool

// monitorLoop polls a fixed host list on a cron schedule and publishes a
// status event whenever a host's liveness changes. Every host starts out
// online, so the first check only reports hosts that are down.
type monitorLoop struct {
	hosts       []string
	check       checkFunc
	publish     func(backend.Event)
	concurrency int
	observer    workers.Observer
	logger      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	cron   *cron.Cron
	first  sync.WaitGroup

	tickMu   sync.Mutex // held by the running tick
	statuses map[string]bool
}

func startMonitorLoop(parent context.Context, hostList []string, interval time.Duration, concurrency int,
	check checkFunc, publish func(backend.Event), observer workers.Observer, logger *logging.Logger,
) (*monitorLoop, error) {
	l := &monitorLoop{
		hosts:       append([]string(nil), hostList...),
		check:       check,
		publish:     publish,
		concurrency: concurrency,
		observer:    observer,
		logger:      logger,
		cron:        cron.New(),
		statuses:    make(map[string]bool, len(hostList)),
	}
	for _, ip := range l.hosts {
		l.statuses[ip] = true
	}
	l.ctx, l.cancel = context.WithCancel(parent)

	if _, err := l.cron.AddFunc(fmt.Sprintf("@every %s", interval), l.tick); err != nil {
		l.cancel()
		return nil, fmt.Errorf("invalid monitor interval %s: %w", interval, err)
	}
	l.cron.Start()

	l.first.Add(1)
	go func() {
		defer l.first.Done()
		l.tick()
	}()
	return l, nil
}

// stop cancels the loop and waits for any running tick. No event is
// published once stop returns.
func (l *monitorLoop) stop() {
	l.cancel()
	<-l.cron.Stop().Done()
	l.first.Wait()
}

func (l *monitorLoop) tick() {
	if !l.tickMu.TryLock() {
		l.logger.Debug("Skipping liveness tick, previous one still running")
		return
	}
	defer l.tickMu.Unlock()

	if l.ctx.Err() != nil {
		return
	}

	results := l.checkAll()
	if l.ctx.Err() != nil {
		return
	}

	changed := 0
	for _, ip := range l.hosts {
		online, ok := results[ip]
		if !ok || l.statuses[ip] == online {
			continue
		}
		if l.ctx.Err() != nil {
			return
		}
		l.statuses[ip] = online
		changed++
		l.publish(backend.HostStatusUpdate(ip, online))
	}
	l.logger.Debug("Liveness tick finished", "hosts", len(l.hosts), "changed", changed)
}

func (l *monitorLoop) checkAll() map[string]bool {
	opts := []workers.Option{workers.WithContext(l.ctx), workers.WithLogger(l.logger)}
	if l.observer != nil {
		opts = append(opts, workers.WithObserver(l.observer))
	}
	pool := workers.New(workers.Config{Size: l.concurrency, QueueSize: len(l.hosts)}, opts...)
	pool.Start()

	var mu sync.Mutex
	results := make(map[string]bool, len(l.hosts))
	for _, ip := range l.hosts {
		ip := ip
		job := workers.NewFuncJob(ip, livenessJobType, func(ctx context.Context) error {
			online := l.check(ctx, ip)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			mu.Lock()
			results[ip] = online
			mu.Unlock()
			return nil
		})
		if err := pool.Submit(job); err != nil {
			l.logger.Warn("Failed to queue liveness check", "ip", ip, "error", err)
		}
	}
	if err := pool.Shutdown(); err != nil {
		l.logger.Warn("Liveness pool shutdown", "error", err)
	}
	return results
}
