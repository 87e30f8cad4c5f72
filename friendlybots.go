// Package friendlybots admits verified search engine crawlers and keeps everybody else out.
//
// A client is a friendly bot if its address is one of the published addresses of a
// crawler vendor or if its user agent claims a known crawler and a reverse DNS lookup
// followed by a forward lookup confirms that the address belongs to that crawler.
// Verification results are cached per address or per /24 network.
package friendlybots

import (
	"context"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/scraperwall/friendlybots/config"
	log "github.com/sirupsen/logrus"
)

// FriendlyBots is the friendlybots daemon: the decision engine plus the interfaces
// through which web servers ask for decisions
type FriendlyBots struct {
	resources *Resources
	config    *config.Config
	api       *API
	socket    *WebserverSocket
	checker   *NatsChecker

	ctx context.Context
}

// New creates a new FriendlyBots instance. Everything is shut down when ctx is done
func New(ctx context.Context, cfg *config.Config) (*FriendlyBots, error) {
	var err error

	fb := &FriendlyBots{
		config: cfg,
		ctx:    ctx,
	}

	fb.resources, err = NewResources(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// NATS
	//
	if cfg.NatsPort != 0 {
		fb.resources.NatsServer, err = StartNatsServer(cfg)
		if err != nil {
			fb.resources.Store.Close()
			return nil, err
		}

		fb.resources.NatsConn, err = ConnectNats(fb.resources.NatsServer, cfg)
		if err != nil {
			fb.close()
			return nil, err
		}

		fb.checker, err = NewNatsChecker(ctx, fb.resources.NatsConn, fb.resources.Detector)
		if err != nil {
			fb.close()
			return nil, err
		}
		log.Infof("answering decision requests on nats subject %s", CheckSubject)
	}

	// Web server socket
	//
	if cfg.SocketFile != "" {
		fb.socket, err = NewWebserverSocket(ctx, cfg.SocketFile, fb.resources.Detector)
		if err != nil {
			fb.close()
			return nil, err
		}
		log.Infof("answering decision requests on %s", cfg.SocketFile)
	}

	// API
	//
	fb.api = NewAPI(ctx, cfg, fb.resources)

	if cfg.LogMemoryStats {
		go fb.logMemoryStats()
	}

	go fb.statsLogWorker()
	go fb.decisionsExpireWorker()

	// clean up when we're done
	go func() {
		<-ctx.Done()
		fb.close()
	}()

	return fb, nil
}

// Detector returns the decision engine
func (fb *FriendlyBots) Detector() *Detector {
	return fb.resources.Detector
}

// Serve starts the HTTP API
func (fb *FriendlyBots) Serve() {
	fb.api.Serve()
}

func (fb *FriendlyBots) close() {
	if fb.resources.NatsConn != nil {
		fb.resources.NatsConn.Drain()
	}
	if fb.resources.NatsServer != nil {
		fb.resources.NatsServer.Shutdown()
	}
	if err := fb.resources.Store.Close(); err != nil {
		log.Errorf("failed to close the cache backend: %s", err)
	}
}

func (fb *FriendlyBots) logMemoryStats() {
	ticker := time.NewTicker(fb.config.WindowSize)
	defer ticker.Stop()

	for {
		select {
		case <-fb.ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			log.Infof("-=- alloc: %s, in_use: %s, objs: %s, idle: %s, released: %s, stack: %s, goroutines: %s, frees: %s",
				humanize.Bytes(m.Alloc),
				humanize.Bytes(m.HeapInuse),
				humanize.FormatInteger("#,###.", int(m.HeapObjects)),
				humanize.Bytes(m.HeapIdle),
				humanize.Bytes(m.HeapReleased),
				humanize.Bytes(m.StackInuse),
				humanize.FormatInteger("#,###.", runtime.NumGoroutine()),
				humanize.FormatInteger("#,###.", int(m.Frees)))
		}
	}
}

func (fb *FriendlyBots) decisionsExpireWorker() {
	ticker := time.NewTicker(fb.config.WindowSize)
	defer ticker.Stop()

	for {
		select {
		case <-fb.ctx.Done():
			return
		case <-ticker.C:
			fb.resources.Decisions.Expire()
		}
	}
}

func (fb *FriendlyBots) statsLogWorker() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	log.Infof("starting statsLogWorker")
	for {
		select {
		case <-fb.ctx.Done():
			return
		case <-ticker.C:
			stats := fb.resources.Stats.Totals()
			cached, err := fb.resources.Cache.Len()
			if err != nil {
				log.Warnf("failed to count cache entries: %s", err)
			}

			log.Infof("stats :: %s requests / %s friendly bots (%s fixed IP / %s verified) / %s rejected / %s unknown / %s without useragent :: %s cache hits / %s cache entries",
				humanize.Comma(stats.Total),
				humanize.Comma(stats.GoodBots),
				humanize.Comma(stats.FixedIP),
				humanize.Comma(stats.Verified),
				humanize.Comma(stats.Rejected),
				humanize.Comma(stats.Unknown),
				humanize.Comma(stats.MissingUserAgent),
				humanize.Comma(stats.CacheHits),
				humanize.Comma(int64(cached)))
		}
	}
}
