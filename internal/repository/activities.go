package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"aptos-nft-indexer/internal/models"
)

// InsertActivities bulk-inserts with ON CONFLICT(id) DO NOTHING: activities
// are append-only, and a conflict means this activity was already recorded
// by a previous, possibly-replayed batch. Empty input is a no-op.
func InsertActivities(ctx context.Context, tx pgx.Tx, activities []models.Activity) (int64, error) {
	if len(activities) == 0 {
		return 0, nil
	}

	ids := make([]string, len(activities))
	txIndexes := make([]int64, len(activities))
	txTypes := make([]string, len(activities))
	txIDs := make([]string, len(activities))
	senders := make([]string, len(activities))
	receivers := make([]string, len(activities))
	prices := make([]int64, len(activities))
	usdPrices := make([]string, len(activities))
	nftIDs := make([]string, len(activities))
	collectionIDs := make([]string, len(activities))
	marketContracts := make([]string, len(activities))
	marketNames := make([]string, len(activities))
	blockTimes := make([]interface{}, len(activities))
	blockHeights := make([]int64, len(activities))
	amounts := make([]int64, len(activities))

	for i, a := range activities {
		ids[i] = a.ID
		txIndexes[i] = a.TxIndex
		txTypes[i] = string(a.TxType)
		txIDs[i] = a.TxID
		senders[i] = a.Sender
		receivers[i] = a.Receiver
		prices[i] = a.Price
		usdPrices[i] = a.USDPrice.String()
		nftIDs[i] = a.NftID
		collectionIDs[i] = a.CollectionID
		marketContracts[i] = a.MarketContractID
		marketNames[i] = a.MarketName
		blockTimes[i] = a.BlockTime
		blockHeights[i] = a.BlockHeight
		amounts[i] = a.Amount
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO activities (
			id, tx_index, tx_type, tx_id, sender, receiver, price, usd_price,
			nft_id, collection_id, market_contract_id, market_name,
			block_time, block_height, amount
		)
		SELECT
			t.id::uuid, t.tx_index, t.tx_type, t.tx_id, t.sender, t.receiver,
			t.price, t.usd_price::numeric, NULLIF(t.nft_id, '')::uuid,
			NULLIF(t.collection_id, '')::uuid, t.market_contract_id,
			t.market_name, t.block_time, t.block_height, t.amount
		FROM UNNEST(
			$1::text[], $2::bigint[], $3::text[], $4::text[], $5::text[],
			$6::text[], $7::bigint[], $8::text[], $9::text[], $10::text[],
			$11::text[], $12::text[], $13::timestamptz[], $14::bigint[], $15::bigint[]
		) AS t(id, tx_index, tx_type, tx_id, sender, receiver, price, usd_price,
			nft_id, collection_id, market_contract_id, market_name,
			block_time, block_height, amount)
		ON CONFLICT (id) DO NOTHING
	`, ids, txIndexes, txTypes, txIDs, senders, receivers, prices, usdPrices,
		nftIDs, collectionIDs, marketContracts, marketNames, blockTimes, blockHeights, amounts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
