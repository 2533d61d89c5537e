package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// PriceStore is the narrow capability the price indexer needs from the
// store.
type PriceStore interface {
	InsertTokenPrice(ctx context.Context, tokenAddress string, price decimal.Decimal, createdAt time.Time) error
}

// Indexer polls the external index-price feed: every 5 minutes it rounds
// the current UTC time to the minute, POSTs a JSON-RPC request for the
// APT/USD index price, and writes the result through the store and the
// price cache.
type Indexer struct {
	URL      string
	AptAddr  string
	Store    PriceStore
	Cache    *PriceCache
	Interval time.Duration
	client   *http.Client
}

// NewIndexer builds an Indexer with the default 5-minute tick and a 10s
// HTTP client timeout.
func NewIndexer(url, aptAddr string, store PriceStore, cache *PriceCache) *Indexer {
	return &Indexer{
		URL:      url,
		AptAddr:  aptAddr,
		Store:    store,
		Cache:    cache,
		Interval: 5 * time.Minute,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  jsonRPCParams `json:"params"`
	ID      int           `json:"id"`
}

type jsonRPCParams struct {
	Name string `json:"name"`
}

type jsonRPCResponse struct {
	Result struct {
		BaseCurrency  string `json:"base_currency"`
		QuoteCurrency string `json:"quote_currency"`
		Price         string `json:"price"`
		PriceDecimals int    `json:"price_decimals"`
		Name          string `json:"name"`
		Type          string `json:"type"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Run ticks until ctx is cancelled. A failed tick logs and is retried on
// the next tick; it never stops the loop or fails the process.
func (ix *Indexer) Run(ctx context.Context) {
	ticker := time.NewTicker(ix.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ix.tick(ctx); err != nil {
				log.Printf("[price-indexer] tick failed: %v", err)
			}
		}
	}
}

func (ix *Indexer) tick(ctx context.Context) error {
	rounded := time.Now().UTC().Truncate(time.Minute)

	price, err := ix.fetchPrice(ctx)
	if err != nil {
		return fmt.Errorf("fetch index price: %w", err)
	}

	if err := ix.Store.InsertTokenPrice(ctx, ix.AptAddr, price, rounded); err != nil {
		return fmt.Errorf("insert token price: %w", err)
	}
	ix.Cache.Set(ix.AptAddr, price)
	return nil
}

func (ix *Indexer) fetchPrice(ctx context.Context) (decimal.Decimal, error) {
	reqBody := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "public/get_index_price",
		Params:  jsonRPCParams{Name: ix.AptAddr + "_usd"},
		ID:      1,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return decimal.Zero, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ix.URL, bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ix.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("price rpc status: %s", resp.Status)
	}

	var out jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("decode price rpc response: %w", err)
	}
	if out.Error != nil {
		return decimal.Zero, fmt.Errorf("price rpc error: %s", out.Error.Message)
	}

	price, err := decimal.NewFromString(out.Result.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", out.Result.Price, err)
	}
	return price, nil
}
