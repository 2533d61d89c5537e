package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"aptos-nft-indexer/internal/models"
)

// InsertCollections upserts keyed by id; later upserts overwrite scalar
// fields unconditionally and rows are never deleted. Unlike nfts/bids
// there is no COALESCE discipline here: every upsert overwrites all scalar
// columns, including with the empty values of a partial row (the v1 mint
// row carries only title and creator, the supply row only supply).
func InsertCollections(ctx context.Context, tx pgx.Tx, collections []models.Collection) (int64, error) {
	if len(collections) == 0 {
		return 0, nil
	}

	ids := make([]string, len(collections))
	slugs := make([]string, len(collections))
	titles := make([]string, len(collections))
	descriptions := make([]string, len(collections))
	coverURIs := make([]string, len(collections))
	creators := make([]string, len(collections))
	supplies := make([]int64, len(collections))
	royaltyRatios := make([]string, len(collections))
	discordURLs := make([]string, len(collections))
	twitterURLs := make([]string, len(collections))
	websiteURLs := make([]string, len(collections))
	tableHandles := make([]string, len(collections))
	verifieds := make([]bool, len(collections))
	updatedAts := make([]interface{}, len(collections))

	for i, c := range collections {
		ids[i] = c.ID
		slugs[i] = c.Slug
		titles[i] = c.Title
		descriptions[i] = c.Description
		coverURIs[i] = c.CoverURI
		creators[i] = c.CreatorAddress
		supplies[i] = c.Supply
		royaltyRatios[i] = c.RoyaltyRatio.String()
		discordURLs[i] = c.DiscordURL
		twitterURLs[i] = c.TwitterURL
		websiteURLs[i] = c.WebsiteURL
		tableHandles[i] = c.TableHandle
		verifieds[i] = c.Verified
		if c.UpdatedAt.IsZero() {
			updatedAts[i] = c.CreatedAt
		} else {
			updatedAts[i] = c.UpdatedAt
		}
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO collections (
			id, slug, title, description, cover_uri, creator_address, supply,
			royalty_ratio, discord_url, twitter_url, website_url,
			table_handle, verified, updated_at
		)
		SELECT
			t.id::uuid, t.slug, t.title, t.description, t.cover_uri,
			t.creator_address, t.supply, t.royalty_ratio::numeric,
			t.discord_url, t.twitter_url, t.website_url, t.table_handle,
			t.verified, t.updated_at
		FROM UNNEST(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
			$6::text[], $7::bigint[], $8::text[], $9::text[], $10::text[],
			$11::text[], $12::text[], $13::bool[], $14::timestamptz[]
		) AS t(id, slug, title, description, cover_uri, creator_address,
			supply, royalty_ratio, discord_url, twitter_url, website_url,
			table_handle, verified, updated_at)
		ON CONFLICT (id) DO UPDATE SET
			slug            = EXCLUDED.slug,
			title           = EXCLUDED.title,
			description     = EXCLUDED.description,
			cover_uri       = EXCLUDED.cover_uri,
			creator_address = EXCLUDED.creator_address,
			supply          = EXCLUDED.supply,
			royalty_ratio   = EXCLUDED.royalty_ratio,
			discord_url     = EXCLUDED.discord_url,
			twitter_url     = EXCLUDED.twitter_url,
			website_url     = EXCLUDED.website_url,
			table_handle    = EXCLUDED.table_handle,
			verified        = EXCLUDED.verified,
			updated_at      = EXCLUDED.updated_at
	`, ids, slugs, titles, descriptions, coverURIs, creators, supplies, royaltyRatios,
		discordURLs, twitterURLs, websiteURLs, tableHandles, verifieds, updatedAts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
