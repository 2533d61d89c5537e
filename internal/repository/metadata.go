package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"aptos-nft-indexer/internal/models"
)

// CountNftsNeedingMetadata counts the metadata backlog: NFTs that are not
// burned, whose uri ends with ".json" and have no row yet in nft_metadata.
func (s *Store) CountNftsNeedingMetadata(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM nfts n
		WHERE n.uri LIKE '%.json'
		  AND NOT n.burned
		  AND NOT EXISTS (
		      SELECT 1 FROM nft_metadata m WHERE m.uri = n.uri AND m.collection_id = n.collection_id
		  )
	`).Scan(&n)
	return n, err
}

// NftNeedingMetadata is one row of the metadata backlog.
type NftNeedingMetadata struct {
	NftID        string
	CollectionID string
	URI          string
}

// PageNftsNeedingMetadata returns one page of NFTs still missing metadata,
// ordered stably by id so repeated pages do not skip or repeat rows as the
// backlog shrinks between pages.
func (s *Store) PageNftsNeedingMetadata(ctx context.Context, pageSize, offset int) ([]NftNeedingMetadata, error) {
	rows, err := s.db.Query(ctx, `
		SELECT n.id, n.collection_id, n.uri FROM nfts n
		WHERE n.uri LIKE '%.json'
		  AND NOT n.burned
		  AND NOT EXISTS (
		      SELECT 1 FROM nft_metadata m WHERE m.uri = n.uri AND m.collection_id = n.collection_id
		  )
		ORDER BY n.id
		LIMIT $1 OFFSET $2
	`, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NftNeedingMetadata
	for rows.Next() {
		var r NftNeedingMetadata
		if err := rows.Scan(&r.NftID, &r.CollectionID, &r.URI); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertNftMetadataPage commits one fetched page in its own transaction:
// the nft_metadata row, the enriched nft fields (preserving existing
// non-null name/description via COALESCE), and the flattened attribute
// rows.
func (s *Store) UpsertNftMetadataPage(ctx context.Context, metas []models.NFTMetadata, attrs []models.Attribute) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if err := insertNftMetadata(ctx, tx, metas); err != nil {
			return err
		}
		if err := enrichNftsFromMetadata(ctx, tx, metas); err != nil {
			return err
		}
		return insertAttributes(ctx, tx, attrs)
	})
}

func insertNftMetadata(ctx context.Context, tx pgx.Tx, metas []models.NFTMetadata) error {
	if len(metas) == 0 {
		return nil
	}

	uris := make([]string, len(metas))
	collectionIDs := make([]string, len(metas))
	nftIDs := make([]string, len(metas))
	names := make([]string, len(metas))
	descriptions := make([]string, len(metas))
	images := make([]string, len(metas))
	animationURLs := make([]string, len(metas))
	avatarURLs := make([]string, len(metas))
	backgroundColors := make([]string, len(metas))
	imageDatas := make([]string, len(metas))
	youtubeURLs := make([]string, len(metas))
	externalURLs := make([]string, len(metas))
	propsJSON := make([]string, len(metas))

	for i, m := range metas {
		uris[i] = m.URI
		collectionIDs[i] = m.CollectionID
		nftIDs[i] = m.NftID
		names[i] = m.Name
		descriptions[i] = m.Description
		images[i] = m.Image
		animationURLs[i] = m.AnimationURL
		avatarURLs[i] = m.AvatarURL
		backgroundColors[i] = m.BackgroundColor
		imageDatas[i] = m.ImageData
		youtubeURLs[i] = m.YoutubeURL
		externalURLs[i] = m.ExternalURL
		propsJSON[i] = string(m.PropertiesJSON)
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO nft_metadata (
			uri, collection_id, nft_id, name, description, image,
			animation_url, avatar_url, background_color, image_data,
			youtube_url, external_url, properties
		)
		SELECT
			t.uri, NULLIF(t.collection_id, '')::uuid, NULLIF(t.nft_id, '')::uuid,
			t.name, t.description, t.image, t.animation_url, t.avatar_url,
			t.background_color, t.image_data, t.youtube_url, t.external_url,
			NULLIF(t.properties, '')::jsonb
		FROM UNNEST(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
			$6::text[], $7::text[], $8::text[], $9::text[], $10::text[],
			$11::text[], $12::text[], $13::text[]
		) AS t(uri, collection_id, nft_id, name, description, image,
			animation_url, avatar_url, background_color, image_data,
			youtube_url, external_url, properties)
		ON CONFLICT (uri, collection_id) DO NOTHING
	`, uris, collectionIDs, nftIDs, names, descriptions, images, animationURLs,
		avatarURLs, backgroundColors, imageDatas, youtubeURLs, externalURLs, propsJSON)
	return err
}

func enrichNftsFromMetadata(ctx context.Context, tx pgx.Tx, metas []models.NFTMetadata) error {
	if len(metas) == 0 {
		return nil
	}

	nftIDs := make([]string, len(metas))
	names := make([]string, len(metas))
	descriptions := make([]string, len(metas))
	uris := make([]string, len(metas))

	for i, m := range metas {
		nftIDs[i] = m.NftID
		names[i] = m.Name
		descriptions[i] = m.Description
		uris[i] = m.URI
	}

	_, err := tx.Exec(ctx, `
		UPDATE nfts n SET
			name        = COALESCE(NULLIF(n.name, ''), t.name),
			description = COALESCE(NULLIF(n.description, ''), t.description),
			updated_at  = now()
		FROM UNNEST($1::text[], $2::text[], $3::text[], $4::text[])
			AS t(nft_id, name, description, uri)
		WHERE n.id = NULLIF(t.nft_id, '')::uuid
	`, nftIDs, names, descriptions, uris)
	return err
}

func insertAttributes(ctx context.Context, tx pgx.Tx, attrs []models.Attribute) error {
	if len(attrs) == 0 {
		return nil
	}

	collectionIDs := make([]string, len(attrs))
	nftIDs := make([]string, len(attrs))
	types := make([]string, len(attrs))
	values := make([]string, len(attrs))

	for i, a := range attrs {
		collectionIDs[i] = a.CollectionID
		nftIDs[i] = a.NftID
		types[i] = a.Type
		values[i] = a.Value
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO attributes (collection_id, nft_id, type, value)
		SELECT NULLIF(t.collection_id, '')::uuid, NULLIF(t.nft_id, '')::uuid, t.type, t.value
		FROM UNNEST($1::text[], $2::text[], $3::text[], $4::text[])
			AS t(collection_id, nft_id, type, value)
		ON CONFLICT (collection_id, nft_id, type, value) DO NOTHING
	`, collectionIDs, nftIDs, types, values)
	return err
}
