package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/namsral/flag"
	"github.com/scraperwall/friendlybots"
	"github.com/scraperwall/friendlybots/config"
	"github.com/scraperwall/friendlybots/store"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := run(os.Args[0], os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(name string, args []string, out io.Writer) error {
	cfg := config.Default()

	fs := flag.NewFlagSetWithEnvPrefix(name, "FRIENDLYBOTS", flag.ContinueOnError)
	fs.String(flag.DefaultConfigFlagname, "", "path to config file")

	doClear := fs.Bool("clear", false, "delete all cached verification results")
	fs.StringVar(&cfg.APIAddress, "api-address", cfg.APIAddress, "the address of a running friendlybots API (memory cache)")
	fs.StringVar(&cfg.CacheBackend, "cache-backend", cfg.CacheBackend, "where verification results are cached: memory, badger or redis")
	fs.StringVar(&cfg.BadgerPath, "badger-path", cfg.BadgerPath, "the directory where the badger database resides")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "the address of the redis server")
	fs.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "the redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "the redis database")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}

	if !*doClear {
		fmt.Fprintln(out, `Add "--help" argument for command info.`)
		return nil
	}

	if err := clearCache(cfg); err != nil {
		return err
	}

	fmt.Fprintln(out, "    Friendly Bots cache deleted.")
	return nil
}

// clearCache empties the configured cache backend. An in-memory cache only lives
// inside the server process, so it is cleared through the server's API. The
// same goes for a badger directory that the running server holds locked.
func clearCache(cfg *config.Config) error {
	if cfg.CacheBackend == "" || cfg.CacheBackend == config.BackendMemory {
		return clearViaAPI(cfg.APIAddress)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := store.New(ctx, cfg)
	if err != nil {
		if cfg.CacheBackend == config.BackendBadger {
			log.Debugf("failed to open %s, trying the API: %s", cfg.BadgerPath, err)
			return clearViaAPI(cfg.APIAddress)
		}
		return err
	}
	defer kv.Close()

	return friendlybots.NewKVCache(kv, 0).Clear()
}

func clearViaAPI(apiAddress string) error {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("http://%s/cache", apiAddress), nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach the friendlybots API at %s: %w", apiAddress, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("friendlybots API at %s responded with %s", apiAddress, res.Status)
	}
	return nil
}
