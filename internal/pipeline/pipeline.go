// Package pipeline wires the stream source, remapper, token extractor,
// reducer and batch writer into one goroutine-per-marketplace flow. Each
// marketplace gets its own Pipeline; batches within one Pipeline are
// processed strictly in arrival order so the writer's transaction always
// sees a consistent, ordered view.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"aptos-nft-indexer/internal/chain"
	"aptos-nft-indexer/internal/config"
	"aptos-nft-indexer/internal/decoder"
	"aptos-nft-indexer/internal/extractor"
	"aptos-nft-indexer/internal/models"
	"aptos-nft-indexer/internal/reducer"
	"aptos-nft-indexer/internal/remap"
	"aptos-nft-indexer/internal/repository"
)

// PriceCache is the narrow read capability the pipeline needs from
// market.PriceCache, kept as an interface so this package does not import
// internal/market (prices are the pipeline's consumer, not its concern).
type PriceCache interface {
	Get(tokenAddr string) (decimal.Decimal, bool)
}

// DefaultUpdateProcessorStatusSecs is the minimum interval between
// checkpoint saves.
const DefaultUpdateProcessorStatusSecs = 5 * time.Second

// Pipeline runs one marketplace's end-to-end flow: Source -> (Remap +
// Extract) -> Reduce -> Write -> checkpoint.
type Pipeline struct {
	Marketplace config.NFTMarketplaceConfig
	AptAddr     string
	Source      *chain.Source
	Store       *repository.Store
	Cache       PriceCache

	// CheckpointInterval gates how often SaveProcessorStatus is called;
	// zero means DefaultUpdateProcessorStatusSecs. The writer's batch
	// transaction still commits every batch regardless of this gate.
	CheckpointInterval time.Duration
	lastCheckpoint     time.Time
}

// New builds a Pipeline for one marketplace, creating its Source at the
// given starting version (normally the checkpointed last_success_version).
// The Source dials the feed when Run starts.
func New(mcfg config.NFTMarketplaceConfig, grpcURL, authToken, aptAddr string, startingVersion uint64, endingVersion *uint64, store *repository.Store, cache PriceCache) (*Pipeline, error) {
	normalized, err := decoder.NormalizeAddress(mcfg.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("marketplace %q: %w", mcfg.Name, err)
	}
	src := chain.NewSource(grpcURL, authToken, normalized, startingVersion, endingVersion)
	return &Pipeline{
		Marketplace: mcfg,
		AptAddr:     aptAddr,
		Source:      src,
		Store:       store,
		Cache:       cache,
	}, nil
}

// Run drives the pipeline until ctx is cancelled or the Source's reconnect
// budget is exhausted.
func (p *Pipeline) Run(ctx context.Context) error {
	ex := extractor.New()

	return p.Source.Run(ctx, func(batch chain.Batch) error {
		return p.processBatch(ctx, ex, batch)
	})
}

// resolveAptPrices resolves the APT/USD price at every distinct block_time
// an activity in this batch carries. A batch usually spans a handful of
// distinct timestamps, so this is a handful of lookups, not one per
// activity.
func (p *Pipeline) resolveAptPrices(ctx context.Context, marketplaceActivities []remap.MarketplaceActivity, extracted []models.Activity) (map[time.Time]decimal.Decimal, error) {
	seen := make(map[time.Time]struct{})
	for _, a := range marketplaceActivities {
		seen[a.BlockTime] = struct{}{}
	}
	for _, a := range extracted {
		seen[a.BlockTime] = struct{}{}
	}

	prices := make(map[time.Time]decimal.Decimal, len(seen))
	for blockTime := range seen {
		price, err := p.resolveAptPriceAt(ctx, blockTime)
		if err != nil {
			return nil, err
		}
		prices[blockTime] = price
	}
	return prices, nil
}

// resolveAptPriceAt checks the price cache first, then the store with the
// most-recent-row-at-or-before-block_time lookup, and returns zero if
// neither has ever recorded a price.
func (p *Pipeline) resolveAptPriceAt(ctx context.Context, blockTime time.Time) (decimal.Decimal, error) {
	if price, ok := p.Cache.Get(p.AptAddr); ok {
		return price, nil
	}
	return p.Store.GetTokenPriceAt(ctx, p.AptAddr, blockTime)
}

func (p *Pipeline) processBatch(ctx context.Context, ex *extractor.Extractor, batch chain.Batch) error {
	defer ex.Drain()

	var marketplaceActivities []remap.MarketplaceActivity
	for _, tx := range batch.Transactions {
		marketplaceActivities = append(marketplaceActivities, remap.Remap(tx, p.Marketplace)...)
	}
	extracted := ex.ExtractBatch(batch.Transactions)

	aptPrices, err := p.resolveAptPrices(ctx, marketplaceActivities, extracted.Activities)
	if err != nil {
		return fmt.Errorf("resolve apt prices [%d,%d]: %w", batch.StartVersion, batch.EndVersion, err)
	}

	out := reducer.Reduce(reducer.Input{
		MarketplaceActivities: marketplaceActivities,
		ExtractedActivities:   extracted.Activities,
		Collections:           extracted.Collections,
		Nfts:                  extracted.Nfts,
		Wallets:               extracted.Wallets,
		AptUSDPriceAt:         aptPrices,
	})

	counts, err := p.Store.WriteBatch(ctx, out)
	if err != nil {
		return fmt.Errorf("write batch [%d,%d]: %w", batch.StartVersion, batch.EndVersion, err)
	}
	log.Printf("[pipeline:%s] wrote batch [%d,%d]: %d activities, %d bids, %d listings, %d collections, %d nfts, %d wallets",
		p.Marketplace.Name, batch.StartVersion, batch.EndVersion,
		counts.Activities, counts.Bids, counts.Listings, counts.Collections, counts.Nfts, counts.Wallets)

	interval := p.CheckpointInterval
	if interval <= 0 {
		interval = DefaultUpdateProcessorStatusSecs
	}
	if time.Since(p.lastCheckpoint) < interval {
		return nil
	}

	lastTxTime := time.Now().UTC()
	if n := len(batch.Transactions); n > 0 {
		lastTxTime = batch.Transactions[n-1].Timestamp
	}
	if err := p.Store.SaveProcessorStatus(ctx, p.Marketplace.Name, int64(batch.EndVersion), lastTxTime); err != nil {
		return fmt.Errorf("checkpoint batch [%d,%d]: %w", batch.StartVersion, batch.EndVersion, err)
	}
	p.lastCheckpoint = time.Now()
	return nil
}
