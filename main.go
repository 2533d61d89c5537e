package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"aptos-nft-indexer/internal/config"
	"aptos-nft-indexer/internal/market"
	"aptos-nft-indexer/internal/metadata"
	"aptos-nft-indexer/internal/pipeline"
	"aptos-nft-indexer/internal/repository"
	"aptos-nft-indexer/internal/server"
)

// BuildCommit is set at build time via -ldflags.
var BuildCommit = "dev"

// aptCoinAddr is the well-known fully-qualified type of the native APT
// coin, used as the price cache/store key for the index price.
const aptCoinAddr = "0x1::aptos_coin::AptosCoin"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	log.Printf("[main] starting aptos-nft-indexer (%s)", BuildCommit)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.New(ctx, cfg.DbConfig.URL, cfg.DbConfig.PoolSize)
	if err != nil {
		log.Fatalf("[main] connect db: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx, repository.SchemaSQL); err != nil {
		log.Fatalf("[main] migrate: %v", err)
	}

	cache := market.NewPriceCache()

	var wg sync.WaitGroup

	indexer := market.NewIndexer(cfg.TappURL, aptCoinAddr, store, cache)
	wg.Add(1)
	go func() {
		defer wg.Done()
		indexer.Run(ctx)
	}()

	fetcher := metadata.New(store)
	wg.Add(1)
	go func() {
		defer wg.Done()
		fetcher.Run(ctx)
	}()

	if cfg.StreamConfig.Active {
		for _, mcfg := range cfg.NFTMarketplaceConfigs {
			mcfg := mcfg
			startingVersion, err := store.GetStartingVersion(ctx, mcfg.Name)
			if err != nil {
				log.Fatalf("[main] checkpoint for %q: %v", mcfg.Name, err)
			}
			if startingVersion == 0 {
				startingVersion = int64(firstNonZero(mcfg.StartingVersion, cfg.StreamConfig.StartingVersion))
			}

			pl, err := pipeline.New(mcfg, cfg.StreamConfig.IndexerGRPC, cfg.StreamConfig.AuthToken,
				aptCoinAddr, uint64(startingVersion), cfg.StreamConfig.EndingVersion, store, cache)
			if err != nil {
				log.Fatalf("[main] pipeline for %q: %v", mcfg.Name, err)
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := pl.Run(ctx); err != nil && ctx.Err() == nil {
					log.Printf("[main] pipeline %q stopped: %v", mcfg.Name, err)
				}
			}()
		}
	} else {
		log.Printf("[main] stream_config.active is false, no marketplace pipelines started")
	}

	httpSrv := &http.Server{
		Addr:    ":" + strconv.Itoa(int(portOrDefault(cfg.ServerConfig.Port))),
		Handler: server.New(store),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[main] http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[main] shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	wg.Wait()
	time.Sleep(5 * time.Second) // grace period for in-flight flushes after all tasks join
	log.Printf("[main] exited cleanly")
}

func firstNonZero(vals ...uint64) uint64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func portOrDefault(port uint16) uint16 {
	if port == 0 {
		return 8080
	}
	return port
}
