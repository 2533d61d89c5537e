// Package metadata is the periodic background worker that resolves NFTs'
// off-chain `uri` JSON into the nft_metadata and attributes tables,
// independent of the streaming pipeline.
package metadata

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"aptos-nft-indexer/internal/models"
	"aptos-nft-indexer/internal/repository"
)

const (
	pollInterval  = 60 * time.Second
	pageSize      = 20
	fetchTimeout  = 10 * time.Second
	maxBodyBytes  = 2 * 1024 * 1024 // cap on a metadata JSON body
	maxConcurrent = 8
)

// Fetcher drives the periodic backlog scan.
type Fetcher struct {
	Store  *repository.Store
	client *http.Client
}

func New(store *repository.Store) *Fetcher {
	return &Fetcher{
		Store:  store,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Run ticks every pollInterval until ctx is cancelled, paging through the
// backlog once per tick. A failed page logs and is retried on the next
// tick; it never stops the loop.
func (f *Fetcher) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.sweep(ctx); err != nil {
				log.Printf("[metadata-fetcher] sweep failed: %v", err)
			}
		}
	}
}

func (f *Fetcher) sweep(ctx context.Context) error {
	total, err := f.Store.CountNftsNeedingMetadata(ctx)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}
	log.Printf("[metadata-fetcher] %d nfts need metadata", total)

	offset := 0
	for {
		page, err := f.Store.PageNftsNeedingMetadata(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		metas, attrs := f.fetchPage(ctx, page)
		if err := f.Store.UpsertNftMetadataPage(ctx, metas, attrs); err != nil {
			return err
		}

		// A page that resolved rows shrinks the backlog under a stable
		// offset; if nothing resolved (every fetch failed) advance offset
		// so the sweep doesn't spin forever on the same unreachable URIs.
		if len(metas) == 0 {
			offset += pageSize
		}
	}
}

// fetchPage resolves one page's URIs concurrently, capped at
// maxConcurrent in-flight requests.
func (f *Fetcher) fetchPage(ctx context.Context, page []repository.NftNeedingMetadata) ([]models.NFTMetadata, []models.Attribute) {
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var metas []models.NFTMetadata
	var attrs []models.Attribute

	for _, row := range page {
		row := row
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			meta, rowAttrs, err := f.fetchOne(ctx, row)
			if err != nil {
				log.Printf("[metadata-fetcher] fetch %s: %v", row.URI, err)
				return
			}
			mu.Lock()
			metas = append(metas, meta)
			attrs = append(attrs, rowAttrs...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return metas, attrs
}

type rawMetadata struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Image           string          `json:"image"`
	AnimationURL    string          `json:"animation_url"`
	AvatarURL       string          `json:"avatar_url"`
	BackgroundColor string          `json:"background_color"`
	ImageData       string          `json:"image_data"`
	YoutubeURL      string          `json:"youtube_url"`
	ExternalURL     string          `json:"external_url"`
	Properties      json.RawMessage `json:"properties"`
	Attributes      []rawAttribute  `json:"attributes"`
}

type rawAttribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

func (f *Fetcher) fetchOne(ctx context.Context, row repository.NftNeedingMetadata) (models.NFTMetadata, []models.Attribute, error) {
	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, row.URI, nil)
	if err != nil {
		return models.NFTMetadata{}, nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return models.NFTMetadata{}, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.NFTMetadata{}, nil, err
	}

	var raw rawMetadata
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.NFTMetadata{}, nil, err
	}

	meta := models.NFTMetadata{
		URI:             row.URI,
		CollectionID:    row.CollectionID,
		NftID:           row.NftID,
		Name:            raw.Name,
		Description:     raw.Description,
		Image:           raw.Image,
		AnimationURL:    raw.AnimationURL,
		AvatarURL:       raw.AvatarURL,
		BackgroundColor: raw.BackgroundColor,
		ImageData:       raw.ImageData,
		YoutubeURL:      raw.YoutubeURL,
		ExternalURL:     raw.ExternalURL,
		PropertiesJSON:  raw.Properties,
	}

	attrs := make([]models.Attribute, 0, len(raw.Attributes))
	for _, a := range raw.Attributes {
		if a.TraitType == "" {
			continue
		}
		attrs = append(attrs, models.Attribute{
			CollectionID: row.CollectionID,
			NftID:        row.NftID,
			Type:         strings.ToLower(a.TraitType),
			Value:        strings.ToLower(toString(a.Value)),
		})
	}

	return meta, attrs, nil
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
