package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"aptos-nft-indexer/internal/models"
)

// InsertListings upserts keyed by id (derived from (market_contract,
// nft_id)); on conflict all lifecycle fields overwrite unconditionally.
// The reducer has already chosen the newest record per key before this is
// called.
func InsertListings(ctx context.Context, tx pgx.Tx, listings []models.Listing) (int64, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	ids := make([]string, len(listings))
	nftIDs := make([]string, len(listings))
	marketContracts := make([]string, len(listings))
	listed := make([]bool, len(listings))
	prices := make([]int64, len(listings))
	sellers := make([]string, len(listings))
	nonces := make([]string, len(listings))
	blockTimes := make([]interface{}, len(listings))
	blockHeights := make([]int64, len(listings))
	txIndexes := make([]int64, len(listings))

	for i, l := range listings {
		ids[i] = l.ID
		nftIDs[i] = l.NftID
		marketContracts[i] = l.MarketContractID
		listed[i] = l.Listed
		prices[i] = l.Price
		sellers[i] = l.Seller
		nonces[i] = l.Nonce
		blockTimes[i] = l.BlockTime
		blockHeights[i] = l.BlockHeight
		txIndexes[i] = l.TxIndex
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO listings (
			id, nft_id, market_contract_id, listed, price, seller, nonce,
			block_time, block_height, tx_index
		)
		SELECT
			t.id, NULLIF(t.nft_id, '')::uuid, t.market_contract_id, t.listed,
			t.price, t.seller, t.nonce, t.block_time, t.block_height, t.tx_index
		FROM UNNEST(
			$1::text[], $2::text[], $3::text[], $4::bool[], $5::bigint[],
			$6::text[], $7::text[], $8::timestamptz[], $9::bigint[], $10::bigint[]
		) AS t(id, nft_id, market_contract_id, listed, price, seller, nonce,
			block_time, block_height, tx_index)
		ON CONFLICT (id) DO UPDATE SET
			nft_id              = EXCLUDED.nft_id,
			market_contract_id  = EXCLUDED.market_contract_id,
			listed              = EXCLUDED.listed,
			price               = EXCLUDED.price,
			seller              = EXCLUDED.seller,
			nonce               = EXCLUDED.nonce,
			block_time          = EXCLUDED.block_time,
			block_height        = EXCLUDED.block_height,
			tx_index            = EXCLUDED.tx_index
	`, ids, nftIDs, marketContracts, listed, prices, sellers, nonces, blockTimes, blockHeights, txIndexes)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
