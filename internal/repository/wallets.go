package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"aptos-nft-indexer/internal/models"
)

// InsertWallets records presence rows with ON CONFLICT DO NOTHING: a wallet
// is a lightweight "this address exists" marker, never updated once seen.
func InsertWallets(ctx context.Context, tx pgx.Tx, wallets []models.Wallet) (int64, error) {
	if len(wallets) == 0 {
		return 0, nil
	}

	addresses := make([]string, len(wallets))
	firstSeenTxIDs := make([]string, len(wallets))
	firstSeenAts := make([]interface{}, len(wallets))

	for i, w := range wallets {
		addresses[i] = w.Address
		firstSeenTxIDs[i] = w.FirstSeenTx
		firstSeenAts[i] = w.FirstSeenAt
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO wallets (address, first_seen_tx_id, first_seen_at)
		SELECT * FROM UNNEST($1::text[], $2::text[], $3::timestamptz[])
		ON CONFLICT (address) DO NOTHING
	`, addresses, firstSeenTxIDs, firstSeenAts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
