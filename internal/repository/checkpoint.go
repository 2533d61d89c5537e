package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetStartingVersion returns the processor's last committed version, or 0
// if it has never run. Called once per marketplace at startup; main falls
// back to the configured starting_version when this returns 0.
func (s *Store) GetStartingVersion(ctx context.Context, processorName string) (int64, error) {
	var v int64
	err := s.db.QueryRow(ctx,
		`SELECT last_success_version FROM processor_status WHERE processor = $1`,
		processorName,
	).Scan(&v)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// SaveProcessorStatus upserts the per-processor checkpoint. Called only
// after the writer's batch transaction has committed, and no more
// frequently than the pipeline's checkpoint cadence.
func (s *Store) SaveProcessorStatus(ctx context.Context, processorName string, lastSuccessVersion int64, lastTxTimestamp time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO processor_status (processor, last_success_version, last_transaction_timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (processor) DO UPDATE SET
			last_success_version        = EXCLUDED.last_success_version,
			last_transaction_timestamp  = EXCLUDED.last_transaction_timestamp
	`, processorName, lastSuccessVersion, lastTxTimestamp)
	return err
}

// AllProcessorStatuses backs the /status endpoint.
func (s *Store) AllProcessorStatuses(ctx context.Context) ([]ProcessorStatusRow, error) {
	rows, err := s.db.Query(ctx, `SELECT processor, last_success_version, last_transaction_timestamp FROM processor_status ORDER BY processor`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProcessorStatusRow
	for rows.Next() {
		var r ProcessorStatusRow
		if err := rows.Scan(&r.Processor, &r.LastSuccessVersion, &r.LastTransactionTimestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProcessorStatusRow is the read-side shape for the /status endpoint.
type ProcessorStatusRow struct {
	Processor                string    `json:"processor"`
	LastSuccessVersion       int64     `json:"last_success_version"`
	LastTransactionTimestamp time.Time `json:"last_transaction_timestamp"`
}
