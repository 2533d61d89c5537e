package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"

	"aptos-nft-indexer/internal/models"
)

// TestEmptyBatchesAreNoOps: every Insert* helper must return before
// touching its tx argument on empty input, so a nil pgx.Tx here is a
// valid probe, not a crash.
func TestEmptyBatchesAreNoOps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var tx pgx.Tx // intentionally nil; Insert* must short-circuit on empty input

	if n, err := InsertActivities(ctx, tx, nil); err != nil || n != 0 {
		t.Fatalf("InsertActivities(nil) = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := InsertBids(ctx, tx, []models.Bid{}); err != nil || n != 0 {
		t.Fatalf("InsertBids(empty) = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := InsertListings(ctx, tx, nil); err != nil || n != 0 {
		t.Fatalf("InsertListings(nil) = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := InsertNfts(ctx, tx, nil); err != nil || n != 0 {
		t.Fatalf("InsertNfts(nil) = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := InsertWallets(ctx, tx, nil); err != nil || n != 0 {
		t.Fatalf("InsertWallets(nil) = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := InsertCollections(ctx, tx, nil); err != nil || n != 0 {
		t.Fatalf("InsertCollections(nil) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestBytesToStrings(t *testing.T) {
	t.Parallel()
	got := bytesToStrings([][]byte{[]byte("a"), nil, []byte("c")})
	want := []string{"a", "", "c"}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bytesToStrings[%d]=%q want %q", i, got[i], want[i])
		}
	}
}
