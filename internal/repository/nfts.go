package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"aptos-nft-indexer/internal/models"
)

// InsertNfts upserts keyed by id; owner/burned/updated_at overwrite, uri
// overwrites when the new value is non-empty, created_at keeps the first
// recorded value, and all other scalar fields COALESCE(new, old) so later
// events do not blank out metadata a previous event already populated.
//
// burned is monotonic (nfts.burned OR EXCLUDED.burned) and owner is forced
// to NULL whenever either side already recorded a burn, so a write-resource
// that arrives in a later batch, after the burning batch already committed,
// cannot resurrect owner.
func InsertNfts(ctx context.Context, tx pgx.Tx, nfts []models.Nft) (int64, error) {
	if len(nfts) == 0 {
		return 0, nil
	}

	ids := make([]string, len(nfts))
	collectionIDs := make([]string, len(nfts))
	owners := make([]string, len(nfts))
	names := make([]string, len(nfts))
	uris := make([]string, len(nfts))
	descriptions := make([]string, len(nfts))
	properties := make([][]byte, len(nfts))
	royalties := make([]string, len(nfts))
	versions := make([]string, len(nfts))
	burned := make([]bool, len(nfts))
	burnTxIDs := make([]string, len(nfts))
	createdAts := make([]interface{}, len(nfts))
	updatedAts := make([]interface{}, len(nfts))

	for i, n := range nfts {
		ids[i] = n.ID
		collectionIDs[i] = n.CollectionID
		owners[i] = n.Owner
		names[i] = n.Name
		uris[i] = n.URI
		descriptions[i] = n.Description
		properties[i] = n.Properties
		royalties[i] = n.Royalty.String()
		versions[i] = string(n.Version)
		burned[i] = n.Burned
		burnTxIDs[i] = n.BurnTxID
		if !n.CreatedAt.IsZero() {
			createdAts[i] = n.CreatedAt
		}
		if n.UpdatedAt.IsZero() {
			updatedAts[i] = n.CreatedAt
		} else {
			updatedAts[i] = n.UpdatedAt
		}
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO nfts (
			id, collection_id, owner, name, uri, description, properties,
			royalty, version, burned, burn_tx_id, created_at, updated_at
		)
		SELECT
			t.id::uuid, NULLIF(t.collection_id, '')::uuid,
			NULLIF(t.owner, ''), t.name, t.uri, t.description,
			NULLIF(t.properties, '')::jsonb, t.royalty::numeric, t.version,
			t.burned, NULLIF(t.burn_tx_id, ''),
			COALESCE(t.created_at, t.updated_at, now()), t.updated_at
		FROM UNNEST(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
			$6::text[], $7::text[], $8::text[], $9::text[], $10::bool[],
			$11::text[], $12::timestamptz[], $13::timestamptz[]
		) AS t(id, collection_id, owner, name, uri, description, properties,
			royalty, version, burned, burn_tx_id, created_at, updated_at)
		ON CONFLICT (id) DO UPDATE SET
			owner         = CASE WHEN nfts.burned OR EXCLUDED.burned THEN NULL ELSE EXCLUDED.owner END,
			burned        = nfts.burned OR EXCLUDED.burned,
			uri           = CASE WHEN EXCLUDED.uri <> '' THEN EXCLUDED.uri ELSE nfts.uri END,
			updated_at    = EXCLUDED.updated_at,
			collection_id = COALESCE(EXCLUDED.collection_id, nfts.collection_id),
			name          = COALESCE(NULLIF(EXCLUDED.name, ''), nfts.name),
			description   = COALESCE(NULLIF(EXCLUDED.description, ''), nfts.description),
			properties    = COALESCE(EXCLUDED.properties, nfts.properties),
			royalty       = COALESCE(NULLIF(EXCLUDED.royalty, 0), nfts.royalty),
			version       = COALESCE(NULLIF(EXCLUDED.version, ''), nfts.version),
			burn_tx_id    = COALESCE(EXCLUDED.burn_tx_id, nfts.burn_tx_id),
			created_at    = COALESCE(nfts.created_at, EXCLUDED.created_at)
	`, ids, collectionIDs, owners, names, uris, descriptions, bytesToStrings(properties),
		royalties, versions, burned, burnTxIDs, createdAts, updatedAts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func bytesToStrings(b [][]byte) []string {
	out := make([]string, len(b))
	for i, v := range b {
		out[i] = string(v)
	}
	return out
}
