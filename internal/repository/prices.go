package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// InsertTokenPrice records one price observation from the price indexer.
// created_at is rounded to the minute by the caller;
// ON CONFLICT(token_address, created_at) DO NOTHING makes a retried tick
// idempotent.
func (s *Store) InsertTokenPrice(ctx context.Context, tokenAddress string, price decimal.Decimal, createdAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO token_prices (token_address, price, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_address, created_at) DO NOTHING
	`, tokenAddress, price, createdAt)
	return err
}

// GetTokenPrice returns the most recent price for tokenAddress, or zero if
// none has ever been recorded.
func (s *Store) GetTokenPrice(ctx context.Context, tokenAddress string) (decimal.Decimal, error) {
	var p decimal.Decimal
	err := s.db.QueryRow(ctx, `
		SELECT price FROM token_prices
		WHERE token_address = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, tokenAddress).Scan(&p)
	if err == pgx.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return p, nil
}

// GetTokenPriceAt returns the most recent price at or before asOf, or zero
// if none exists yet.
func (s *Store) GetTokenPriceAt(ctx context.Context, tokenAddress string, asOf time.Time) (decimal.Decimal, error) {
	var p decimal.Decimal
	err := s.db.QueryRow(ctx, `
		SELECT price FROM token_prices
		WHERE token_address = $1 AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT 1
	`, tokenAddress, asOf).Scan(&p)
	if err == pgx.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return p, nil
}
