package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/namsral/flag"
	"github.com/scraperwall/friendlybots"
	"github.com/scraperwall/friendlybots/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Default()

	flag.CommandLine = flag.NewFlagSetWithEnvPrefix(os.Args[0], "FRIENDLYBOTS", flag.ExitOnError)
	flag.String(flag.DefaultConfigFlagname, "", "path to config file")

	flag.StringVar(&cfg.APIAddress, "api-address", cfg.APIAddress, "the address the HTTP API listens on")
	flag.StringVar(&cfg.DNSServer, "dns-server", cfg.DNSServer, "the DNS server to use")
	flag.DurationVar(&cfg.DNSTimeout, "dns-timeout", cfg.DNSTimeout, "timeout of a single DNS query")
	flag.StringVar(&cfg.CacheBackend, "cache-backend", cfg.CacheBackend, "where verification results are cached: memory, badger or redis")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "cache verification results this long (0 = until the cache is cleared)")
	flag.StringVar(&cfg.BadgerPath, "badger-path", cfg.BadgerPath, "the directory where the badger database resides")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "the address of the redis server")
	flag.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "the redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "the redis database")
	flag.StringVar(&cfg.VendorsTOML, "vendors-toml", cfg.VendorsTOML, "TOML file that enables or disables crawler vendors")
	flag.StringVar(&cfg.SocketFile, "socket-file", cfg.SocketFile, "answer web server decision requests on this unix socket")
	flag.StringVar(&cfg.NatsAddr, "nats-addr", cfg.NatsAddr, "bind NATS to this IP")
	flag.IntVar(&cfg.NatsPort, "nats-port", cfg.NatsPort, "the port on which NATS listens (0 = no NATS)")
	flag.StringVar(&cfg.NatsUser, "nats-user", cfg.NatsUser, "the NATS user")
	flag.StringVar(&cfg.NatsPassword, "nats-password", cfg.NatsPassword, "the NATS password")
	flag.DurationVar(&cfg.WindowSize, "window-size", cfg.WindowSize, "size of one statistics window")
	flag.IntVar(&cfg.NumWindows, "num-windows", cfg.NumWindows, "number of statistics windows")
	flag.IntVar(&cfg.KeepDecisions, "keep-decisions", cfg.KeepDecisions, "keep this many most recent decisions")
	flag.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "the log level")
	flag.BoolVar(&cfg.LogMemoryStats, "log-memory-stats", cfg.LogMemoryStats, "periodically log memory statistics")
	flag.StringVar(&cfg.LogReplay, "log-replay", cfg.LogReplay, "classify the crawlers in this access log and exit")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "the format of the access log (nginx log_format syntax)")

	flag.Parse()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level %s: %s", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())

	fb, err := friendlybots.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.LogReplay != "" {
		summary, err := fb.LogReplay(cfg.LogReplay, cfg.LogFormat)
		cancel()
		if err != nil {
			log.Fatal(err)
		}

		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))

		// give the cache backend a moment to close
		time.Sleep(100 * time.Millisecond)
		return
	}

	fb.Serve()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Println("exiting...")
	cancel()

	time.Sleep(time.Second)
}
