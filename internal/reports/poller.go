package reports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
)

// Fetcher is the interface the poller uses to retrieve report snapshots.
type Fetcher interface {
	FetchReports(ctx context.Context) (*ReportsResponse, error)
}

// Poller periodically fetches the full report collection and delivers each
// snapshot to a handler. Snapshots are delivered in tick order: a stale
// response that finishes after a newer one has been delivered is dropped
// rather than allowed to overwrite newer state.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	logger   log.Interface

	// handler receives each successfully fetched snapshot.
	handler func([]Report)

	// errHandler receives fetch failures. The failed tick is skipped; no
	// derived state is touched.
	errHandler func(error)

	mu            sync.Mutex
	tick          uint64
	lastDelivered uint64
	running       bool

	refresh  chan struct{}
	stopPoll chan struct{}
	pollDone chan struct{}
}

// NewPoller creates a poller that fetches every interval.
func NewPoller(fetcher Fetcher, interval time.Duration, handler func([]Report), errHandler func(error), logger log.Interface) *Poller {
	return &Poller{
		fetcher:    fetcher,
		interval:   interval,
		handler:    handler,
		errHandler: errHandler,
		logger:     logger,
	}
}

// Start begins the polling loop. The first poll runs immediately.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("poller already running")
	}

	p.running = true
	p.refresh = make(chan struct{}, 1)
	p.stopPoll = make(chan struct{})
	p.pollDone = make(chan struct{})

	go p.pollLoop()

	p.logger.WithField("interval", p.interval.String()).Info("Poller started")
	return nil
}

// Stop shuts down the polling loop and waits for it to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop := p.stopPoll
	done := p.pollDone
	p.mu.Unlock()

	close(stop)
	<-done

	p.logger.Info("Poller stopped")
}

// Refresh requests an immediate poll outside the regular interval, used
// after a successful report mutation to pick up the change without waiting.
func (p *Poller) Refresh() {
	p.mu.Lock()
	refresh := p.refresh
	running := p.running
	p.mu.Unlock()

	if !running {
		return
	}

	select {
	case refresh <- struct{}{}:
	default:
		// A refresh is already pending
	}
}

// pollLoop runs polls until stopped.
func (p *Poller) pollLoop() {
	defer close(p.pollDone)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()

	for {
		select {
		case <-ticker.C:
			p.poll()
		case <-p.refresh:
			p.poll()
		case <-p.stopPoll:
			return
		}
	}
}

// poll executes a single fetch and delivers the result in tick order.
func (p *Poller) poll() {
	p.mu.Lock()
	p.tick++
	tick := p.tick
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.interval*2)
	defer cancel()

	resp, err := p.fetcher.FetchReports(ctx)
	if err != nil {
		p.logger.WithError(err).Error("Poll cycle failed")
		if p.errHandler != nil {
			p.errHandler(err)
		}
		return
	}

	p.mu.Lock()
	if tick <= p.lastDelivered {
		p.mu.Unlock()
		p.logger.WithField("tick", tick).Debug("Dropping stale poll result")
		return
	}
	p.lastDelivered = tick
	p.mu.Unlock()

	p.logger.WithFields(log.Fields{
		"tick":        tick,
		"reportCount": len(resp.Reports),
	}).Debug("Poll cycle completed")

	if p.handler != nil {
		p.handler(resp.Reports)
	}
}
