package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"aptos-nft-indexer/internal/reducer"
)

// BatchCounts reports how many rows of each kind a WriteBatch call
// persisted, for logging at the pipeline call site.
type BatchCounts struct {
	Activities  int64
	Bids        int64
	Listings    int64
	Collections int64
	Nfts        int64
	Wallets     int64
}

// WriteBatch commits one database transaction spanning the whole batch.
// Collections, nfts and wallets are written first so that
// activities/bids/listings referencing their ids land after the rows they
// point at exist; activities, bids and listings are then written in that
// order. Any error aborts the transaction: a batch is never partially
// applied.
func (s *Store) WriteBatch(ctx context.Context, out reducer.Output) (BatchCounts, error) {
	var counts BatchCounts

	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		n, err := InsertCollections(ctx, tx, out.Collections)
		if err != nil {
			return fmt.Errorf("insert collections: %w", err)
		}
		counts.Collections = n

		n, err = InsertNfts(ctx, tx, out.Nfts)
		if err != nil {
			return fmt.Errorf("insert nfts: %w", err)
		}
		counts.Nfts = n

		n, err = InsertWallets(ctx, tx, out.Wallets)
		if err != nil {
			return fmt.Errorf("insert wallets: %w", err)
		}
		counts.Wallets = n

		n, err = InsertActivities(ctx, tx, out.Activities)
		if err != nil {
			return fmt.Errorf("insert activities: %w", err)
		}
		counts.Activities = n

		n, err = InsertBids(ctx, tx, out.Bids)
		if err != nil {
			return fmt.Errorf("insert bids: %w", err)
		}
		counts.Bids = n

		n, err = InsertListings(ctx, tx, out.Listings)
		if err != nil {
			return fmt.Errorf("insert listings: %w", err)
		}
		counts.Listings = n

		return nil
	})
	if err != nil {
		return BatchCounts{}, err
	}
	return counts, nil
}
