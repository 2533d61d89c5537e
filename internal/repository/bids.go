package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"aptos-nft-indexer/internal/models"
)

// InsertBids upserts keyed by id. bidder/status/nonce/receiver/updated_at
// always overwrite; created_tx_id/accepted_tx_id/cancelled_tx_id/nft_id use
// COALESCE(new, old) so an already-recorded transition is not lost when an
// unrelated update arrives later. price, collection_id and expired_at
// follow the same COALESCE discipline; bid_type keeps its first-written
// value.
func InsertBids(ctx context.Context, tx pgx.Tx, bids []models.Bid) (int64, error) {
	if len(bids) == 0 {
		return 0, nil
	}

	ids := make([]string, len(bids))
	marketContracts := make([]string, len(bids))
	collectionIDs := make([]string, len(bids))
	nftIDs := make([]string, len(bids))
	bidders := make([]string, len(bids))
	receivers := make([]string, len(bids))
	statuses := make([]string, len(bids))
	kinds := make([]string, len(bids))
	prices := make([]int64, len(bids))
	nonces := make([]string, len(bids))
	createdTxIDs := make([]string, len(bids))
	acceptedTxIDs := make([]string, len(bids))
	cancelledTxIDs := make([]string, len(bids))
	expiredAts := make([]interface{}, len(bids))
	updatedAts := make([]interface{}, len(bids))

	for i, b := range bids {
		ids[i] = b.ID
		marketContracts[i] = b.MarketContractID
		collectionIDs[i] = b.CollectionID
		nftIDs[i] = b.NftID
		bidders[i] = b.Bidder
		receivers[i] = b.Receiver
		statuses[i] = string(b.Status)
		kinds[i] = string(b.Kind)
		prices[i] = b.Price
		nonces[i] = b.Nonce
		createdTxIDs[i] = b.CreatedTxID
		acceptedTxIDs[i] = b.AcceptedTxID
		cancelledTxIDs[i] = b.CancelledTxID
		if b.ExpiredAt != nil {
			expiredAts[i] = *b.ExpiredAt
		}
		updatedAts[i] = b.UpdatedAt
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO bids (
			id, market_contract_id, collection_id, nft_id, bidder, receiver,
			status, bid_type, price, nonce, created_tx_id, accepted_tx_id,
			cancelled_tx_id, expired_at, updated_at
		)
		SELECT
			t.id, t.market_contract_id, NULLIF(t.collection_id, '')::uuid,
			NULLIF(t.nft_id, '')::uuid, t.bidder, t.receiver, t.status,
			t.bid_type, t.price, t.nonce, NULLIF(t.created_tx_id, ''),
			NULLIF(t.accepted_tx_id, ''), NULLIF(t.cancelled_tx_id, ''),
			t.expired_at, t.updated_at
		FROM UNNEST(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
			$6::text[], $7::text[], $8::text[], $9::bigint[], $10::text[],
			$11::text[], $12::text[], $13::text[], $14::timestamptz[], $15::timestamptz[]
		) AS t(id, market_contract_id, collection_id, nft_id, bidder, receiver,
			status, bid_type, price, nonce, created_tx_id, accepted_tx_id,
			cancelled_tx_id, expired_at, updated_at)
		ON CONFLICT (id) DO UPDATE SET
			bidder          = EXCLUDED.bidder,
			status          = EXCLUDED.status,
			nonce           = EXCLUDED.nonce,
			receiver        = EXCLUDED.receiver,
			updated_at      = EXCLUDED.updated_at,
			created_tx_id   = COALESCE(EXCLUDED.created_tx_id, bids.created_tx_id),
			accepted_tx_id  = COALESCE(EXCLUDED.accepted_tx_id, bids.accepted_tx_id),
			cancelled_tx_id = COALESCE(EXCLUDED.cancelled_tx_id, bids.cancelled_tx_id),
			nft_id          = COALESCE(EXCLUDED.nft_id, bids.nft_id),
			collection_id   = COALESCE(EXCLUDED.collection_id, bids.collection_id),
			price           = COALESCE(NULLIF(EXCLUDED.price, 0), bids.price),
			expired_at      = COALESCE(EXCLUDED.expired_at, bids.expired_at)
	`, ids, marketContracts, collectionIDs, nftIDs, bidders, receivers, statuses,
		kinds, prices, nonces, createdTxIDs, acceptedTxIDs, cancelledTxIDs, expiredAts, updatedAts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
