package reducer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"aptos-nft-indexer/internal/identity"
	"aptos-nft-indexer/internal/models"
	"aptos-nft-indexer/internal/remap"
)

func baseActivity(kind models.MarketplaceEventKind, txVersion, eventIndex uint64) remap.MarketplaceActivity {
	return remap.MarketplaceActivity{
		Marketplace:    "wapal",
		MarketContract: "0xcafe",
		TxID:           "tx",
		TxVersion:      txVersion,
		EventIndex:     eventIndex,
		TxIndex:        identity.TxIndex(txVersion, eventIndex),
		Kind:           kind,
		ActivityType:   models.ActivitySoloBid,
	}
}

// TestFoldBidsSoloLifecycle walks a solo bid through create and accept
// across two batches.
func TestFoldBidsSoloLifecycle(t *testing.T) {
	t.Parallel()

	expiry := uint64(1_700_000_000_000_000) // microseconds
	create := baseActivity(models.EventKindSoloBidEvent, 1, 0)
	create.NftID = "nft1"
	create.Bidder = "0xbidder"
	create.Nonce = "n1"
	create.TxID = "tx1"
	create.ExpirationTime = &expiry

	out1 := Reduce(Input{MarketplaceActivities: []remap.MarketplaceActivity{create}})
	if len(out1.Bids) != 1 {
		t.Fatalf("expected 1 bid, got %d", len(out1.Bids))
	}
	b1 := out1.Bids[0]
	if b1.Status != models.BidStatusActive || b1.Nonce != "n1" || b1.CreatedTxID != "tx1" {
		t.Fatalf("unexpected bid after create: %+v", b1)
	}
	if b1.ExpiredAt == nil {
		t.Fatalf("expected expiry to be set")
	}

	accept := baseActivity(models.EventKindAcceptBidEvent, 2, 0)
	accept.NftID = "nft1"
	accept.Bidder = "0xbidder"
	accept.TxID = "tx2"

	out2 := Reduce(Input{MarketplaceActivities: []remap.MarketplaceActivity{accept}})
	if len(out2.Bids) != 1 {
		t.Fatalf("expected 1 bid, got %d", len(out2.Bids))
	}
	b2 := out2.Bids[0]
	if b2.Status != models.BidStatusMatched || b2.AcceptedTxID != "tx2" {
		t.Fatalf("unexpected bid after accept: %+v", b2)
	}
	if b2.ID != b1.ID {
		t.Fatalf("bid id changed across batches: %q != %q", b2.ID, b1.ID)
	}
}

// TestFoldListingsSupersession checks that the latest list event wins and
// a later unlist blanks the lifecycle fields.
func TestFoldListingsSupersession(t *testing.T) {
	t.Parallel()

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t2.Add(time.Minute)

	list1 := baseActivity(models.EventKindListEvent, 1, 0)
	list1.NftID = "nft1"
	list1.BlockTime = t1
	list1.Seller = "0xseller1"
	list1.Price = 100

	list2 := baseActivity(models.EventKindListEvent, 1, 1)
	list2.NftID = "nft1"
	list2.BlockTime = t2
	list2.Seller = "0xseller2"
	list2.Price = 200

	out := Reduce(Input{MarketplaceActivities: []remap.MarketplaceActivity{list1, list2}})
	if len(out.Listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(out.Listings))
	}
	if out.Listings[0].Seller != "0xseller2" || out.Listings[0].Price != 200 {
		t.Fatalf("expected t2 listing to win, got %+v", out.Listings[0])
	}

	unlist := baseActivity(models.EventKindUnlistEvent, 2, 0)
	unlist.NftID = "nft1"
	unlist.BlockTime = t3

	out2 := Reduce(Input{MarketplaceActivities: []remap.MarketplaceActivity{unlist}})
	if len(out2.Listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(out2.Listings))
	}
	l := out2.Listings[0]
	if l.Listed || l.Price != 0 || l.Seller != "" || l.Nonce != "" {
		t.Fatalf("expected blanked unlisted row, got %+v", l)
	}
}

// TestEnrichUSDWithCacheMiss: the reducer only sees the already-resolved
// price map; 5.00 USD/APT stands in for the price the pipeline reads from
// the store after a cache miss. Price 2 APT at 5.00 USD/APT enriches to
// 10.00 USD.
func TestEnrichUSDWithCacheMiss(t *testing.T) {
	t.Parallel()

	activity := models.Activity{ID: "a1", TxIndex: 1, Price: 2 * 100_000_000}
	prices := map[time.Time]decimal.Decimal{activity.BlockTime: decimal.NewFromFloat(5.00)}
	out := Reduce(Input{ExtractedActivities: []models.Activity{activity}, AptUSDPriceAt: prices})

	if len(out.Activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(out.Activities))
	}
	want := decimal.NewFromFloat(10.00)
	if !out.Activities[0].USDPrice.Equal(want) {
		t.Fatalf("usd_price = %s, want %s", out.Activities[0].USDPrice, want)
	}
}

func TestEnrichUSDZeroWhenPriceUnknown(t *testing.T) {
	t.Parallel()

	activity := models.Activity{ID: "a1", TxIndex: 1, Price: 100}
	out := Reduce(Input{ExtractedActivities: []models.Activity{activity}})
	if !out.Activities[0].USDPrice.IsZero() {
		t.Fatalf("expected zero usd_price on missing apt price, got %s", out.Activities[0].USDPrice)
	}
}

// TestEnrichUSDVariesByBlockTime: a batch spanning a price change must
// enrich each activity with the price as of its own block_time, not one
// price applied to the whole batch.
func TestEnrichUSDVariesByBlockTime(t *testing.T) {
	t.Parallel()

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)

	early := models.Activity{ID: "a1", TxIndex: 1, Price: 100_000_000, BlockTime: t1}
	later := models.Activity{ID: "a2", TxIndex: 2, Price: 100_000_000, BlockTime: t2}

	out := Reduce(Input{
		ExtractedActivities: []models.Activity{early, later},
		AptUSDPriceAt: map[time.Time]decimal.Decimal{
			t1: decimal.NewFromFloat(4.00),
			t2: decimal.NewFromFloat(6.00),
		},
	})

	byTxIndex := map[int64]models.Activity{}
	for _, a := range out.Activities {
		byTxIndex[a.TxIndex] = a
	}
	if !byTxIndex[1].USDPrice.Equal(decimal.NewFromFloat(4.00)) {
		t.Fatalf("early activity usd_price = %s, want 4.00", byTxIndex[1].USDPrice)
	}
	if !byTxIndex[2].USDPrice.Equal(decimal.NewFromFloat(6.00)) {
		t.Fatalf("later activity usd_price = %s, want 6.00", byTxIndex[2].USDPrice)
	}
}
