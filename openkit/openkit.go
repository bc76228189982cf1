// Package openkit is the composition root: it wires the cache, evictor,
// sender, and watchdog together behind the small public surface a host
// application actually uses (CreateSession, WaitForInitCompletion,
// Shutdown), the way the teacher's DrandDaemon wires a beacon store,
// sync manager, and gateways behind NewDrandDaemon.
package openkit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/communication"
	"github.com/openkit-go/openkit/log"
	"github.com/openkit-go/openkit/objects"
	"github.com/openkit-go/openkit/protocol"
	"github.com/openkit-go/openkit/providers"
	"github.com/openkit-go/openkit/watchdog"
)

// OpenKit is one running instance of the RUM agent core: a beacon cache, a
// background evictor, a background sender state machine, and a background
// session watchdog, plus the metrics that observe them.
type OpenKit struct {
	cfg   Configuration
	l     log.Logger
	clock providers.TimingProvider
	rnd   providers.RandomProvider

	cache   *caching.BeaconCache
	evictor *caching.Evictor
	sender  *communication.SenderContext
	wd      *watchdog.SessionWatchdogContext
	metrics *metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	shuttingDown bool
	shutdownOnce sync.Once
	senderDone   chan struct{}
}

// New constructs and starts an OpenKit instance: the evictor, sender, and
// watchdog goroutines are all running by the time it returns.
func New(cfg Configuration, l log.Logger) *OpenKit {
	clock := providers.NewDefaultTimingProvider()
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	rnd := providers.NewRandomProvider(seed)

	cache := caching.NewBeaconCache(l)
	evictor := caching.NewEvictor(cache, caching.EvictorConfig{
		MaxRecordAge: cfg.CacheMaxRecordAge,
		LowerBound:   cfg.CacheLowerBoundBytes,
		UpperBound:   cfg.CacheUpperBoundBytes,
	}, clock, l, time.Second)

	factory := protocol.NewHTTPClientFactory(nil, l)
	sender := communication.NewSenderContext(communication.Config{
		Endpoint:              cfg.Endpoint,
		AppID:                 cfg.ApplicationID,
		Version:               cfg.ApplicationVersion,
		StatusCheckIntervalMs: int32(cfg.StatusCheckInterval.Milliseconds()),
	}, cache, factory, clock, l)

	wd := watchdog.NewSessionWatchdogContext(clock, l, time.Second)

	ok := &OpenKit{
		cfg:        cfg,
		l:          l.Named("OpenKit"),
		clock:      clock,
		rnd:        rnd,
		cache:      cache,
		evictor:    evictor,
		sender:     sender,
		wd:         wd,
		senderDone: make(chan struct{}),
	}
	ok.metrics = newMetrics(cache, sender, wd)
	ok.ctx, ok.cancel = context.WithCancel(context.Background())

	ok.evictor.Start(ok.ctx)
	ok.wd.Start()
	go func() {
		defer close(ok.senderDone)
		sender.Run()
	}()

	return ok
}

// WaitForInitCompletion blocks until the sender's initial handshake
// completes (successfully or not) or timeout elapses.
func (ok *OpenKit) WaitForInitCompletion(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = ok.cfg.InitTimeout
	}
	return ok.sender.WaitForInitCompletion(timeout)
}

// CreateSession returns a new Session bound to clientIP. After Shutdown,
// it returns a no-op Session instead (the null-object pattern the original
// project uses for calls made post-shutdown).
func (ok *OpenKit) CreateSession(clientIP string) Session {
	ok.mu.Lock()
	down := ok.shuttingDown
	ok.mu.Unlock()
	if down {
		return nullSession{}
	}

	creator := objects.NewSessionCreator(ok.cache, ok.clock, providers.NewThreadIDProvider(), ok.rnd, ok.l, clientIP)
	proxy := objects.NewSessionProxy(ok.l, creator, ok.sender, ok.wd)
	ok.metrics.sessionsCreated.Inc()
	return &sessionAdapter{proxy: proxy}
}

// Metrics returns the instance's metrics bundle; its Registry method
// exposes the Prometheus registry a host application can serve.
func (ok *OpenKit) Metrics() *metrics { return ok.metrics }

// Shutdown stops the evictor, the watchdog, and then the sender, and
// aggregates any errors encountered. Idempotent: subsequent calls return
// nil immediately.
func (ok *OpenKit) Shutdown(timeout time.Duration) error {
	var result error
	ok.shutdownOnce.Do(func() {
		ok.mu.Lock()
		ok.shuttingDown = true
		ok.mu.Unlock()

		ok.evictor.Stop()
		ok.wd.Stop()

		ok.sender.RequestShutdown()
		select {
		case <-ok.senderDone:
		case <-time.After(timeout):
			result = multierror.Append(result, context.DeadlineExceeded)
		}

		ok.cancel()
	})
	return result
}
