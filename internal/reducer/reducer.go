// Package reducer folds one batch's remapped marketplace activities
// together with the token extractor's generic activities into the final
// activity, bid, and listing sets that the writer persists.
package reducer

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"aptos-nft-indexer/internal/identity"
	"aptos-nft-indexer/internal/models"
	"aptos-nft-indexer/internal/remap"
)

// Input is everything one batch contributes to the fold.
type Input struct {
	MarketplaceActivities []remap.MarketplaceActivity
	ExtractedActivities   []models.Activity
	Collections           []models.Collection
	Nfts                  []models.Nft
	Wallets               []models.Wallet
	// AptUSDPriceAt is the APT/USD price resolved for each distinct
	// block_time present in this batch's activities: the cached current
	// price on a cache hit, else the store's latest row at or before that
	// time. A time absent from the map enriches to zero.
	AptUSDPriceAt map[time.Time]decimal.Decimal
}

// Output is the final, deduplicated set of rows the Writer commits.
type Output struct {
	Activities  []models.Activity
	Bids        []models.Bid
	Listings    []models.Listing
	Collections []models.Collection
	Nfts        []models.Nft
	Wallets     []models.Wallet
}

type bidKey struct {
	marketContract, bidID, bidder string
}

type listingKey struct {
	marketContract, nftID string
}

// Reduce folds Input into the deduplicated Output a single batch commit
// will persist.
func Reduce(in Input) Output {
	activities := foldActivities(in)
	bids := foldBids(in.MarketplaceActivities)
	listings := foldListings(in.MarketplaceActivities)

	return Output{
		Activities:  activities,
		Bids:        bids,
		Listings:    listings,
		Collections: in.Collections,
		Nfts:        in.Nfts,
		Wallets:     in.Wallets,
	}
}

// foldActivities keys by tx_index (last-write-wins, degenerate since every
// event ordinal is unique) and applies USD enrichment.
func foldActivities(in Input) []models.Activity {
	byTxIndex := make(map[int64]models.Activity)

	for _, a := range in.ExtractedActivities {
		byTxIndex[a.TxIndex] = enrichUSD(a, in.AptUSDPriceAt[a.BlockTime])
	}
	for _, ma := range in.MarketplaceActivities {
		a := activityFromMarketplace(ma)
		byTxIndex[a.TxIndex] = enrichUSD(a, in.AptUSDPriceAt[a.BlockTime])
	}

	out := make([]models.Activity, 0, len(byTxIndex))
	for _, a := range byTxIndex {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TxIndex < out[j].TxIndex })
	return out
}

// enrichUSD applies usd_price = price/10^8 * apt_price.
func enrichUSD(a models.Activity, aptPrice decimal.Decimal) models.Activity {
	if a.Price == 0 || aptPrice.IsZero() {
		a.USDPrice = decimal.Zero
		return a
	}
	a.USDPrice = decimal.NewFromInt(a.Price).
		Div(decimal.NewFromInt(100_000_000)).
		Mul(aptPrice)
	return a
}

func activityFromMarketplace(ma remap.MarketplaceActivity) models.Activity {
	return models.Activity{
		ID:               identity.ActivityID(ma.TxIndex),
		TxIndex:          ma.TxIndex,
		TxID:             ma.TxID,
		TxType:           ma.ActivityType,
		Sender:           ma.Sender,
		Receiver:         ma.Receiver,
		Price:            ma.Price,
		NftID:            ma.NftID,
		CollectionID:     ma.CollectionID,
		BlockTime:        ma.BlockTime,
		BlockHeight:      int64(ma.BlockHeight),
		Amount:           ma.Amount,
		MarketContractID: ma.MarketContract,
		MarketName:       ma.Marketplace,
	}
}

var bidKinds = map[models.MarketplaceEventKind]bool{
	models.EventKindSoloBidEvent:             true,
	models.EventKindUnlistBidEvent:           true,
	models.EventKindAcceptBidEvent:           true,
	models.EventKindCollectionBidEvent:       true,
	models.EventKindCancelCollectionBidEvent: true,
	models.EventKindAcceptCollectionBidEvent: true,
}

var soloBidKinds = map[models.MarketplaceEventKind]bool{
	models.EventKindSoloBidEvent:   true,
	models.EventKindUnlistBidEvent: true,
	models.EventKindAcceptBidEvent: true,
}

// foldBids merges bid-relevant activities keyed by (market_contract,
// bid_id, bidder). Candidates are sorted by (tx_version, event_index)
// before folding, so when a batch carries conflicting terminal statuses
// for the same bid id the chronologically later event wins.
func foldBids(activities []remap.MarketplaceActivity) []models.Bid {
	var candidates []remap.MarketplaceActivity
	for _, a := range activities {
		if bidKinds[a.Kind] {
			candidates = append(candidates, a)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].TxVersion != candidates[j].TxVersion {
			return candidates[i].TxVersion < candidates[j].TxVersion
		}
		return candidates[i].EventIndex < candidates[j].EventIndex
	})

	acc := make(map[bidKey]*models.Bid)
	var order []bidKey
	for _, a := range candidates {
		kind := models.BidKindCollection
		if soloBidKinds[a.Kind] {
			kind = models.BidKindSolo
		}

		id := a.BidID
		if id == "" {
			if kind == models.BidKindSolo {
				id = identity.SoloBidID(a.NftID)
			} else {
				id = identity.CollectionBidID(a.CollectionID)
			}
		}

		key := bidKey{marketContract: a.MarketContract, bidID: id, bidder: a.Bidder}
		b, ok := acc[key]
		if !ok {
			b = &models.Bid{
				ID:               identity.BidStorageID(a.MarketContract, id, a.Bidder),
				MarketContractID: a.MarketContract,
				CollectionID:     a.CollectionID,
				NftID:            a.NftID,
				Bidder:           a.Bidder,
				Kind:             kind,
			}
			acc[key] = b
			order = append(order, key)
		}

		if a.Nonce != "" {
			b.Nonce = a.Nonce
		}
		if a.Receiver != "" {
			b.Receiver = a.Receiver
		}
		if a.Price != 0 {
			b.Price = a.Price
		}

		switch {
		case a.Kind == models.EventKindSoloBidEvent || a.Kind == models.EventKindCollectionBidEvent:
			b.CreatedTxID = a.TxID
			b.Status = models.BidStatusActive
		case a.Kind == models.EventKindAcceptBidEvent || a.Kind == models.EventKindAcceptCollectionBidEvent:
			b.AcceptedTxID = a.TxID
			b.Status = models.BidStatusMatched
		case a.Kind == models.EventKindUnlistBidEvent || a.Kind == models.EventKindCancelCollectionBidEvent:
			b.CancelledTxID = a.TxID
			b.Status = models.BidStatusCancelled
		}

		if expiry := expiryFor(a); expiry != nil {
			b.ExpiredAt = expiry
		}
		b.UpdatedAt = a.BlockTime
	}

	out := make([]models.Bid, 0, len(order))
	for _, key := range order {
		out = append(out, *acc[key])
	}
	return out
}

// expiryFor resolves a bid's expiry: either an explicit microsecond-epoch
// expiration_time, or start_time+duration in milliseconds. At most one of
// the two forms appears on a well-formed event.
func expiryFor(a remap.MarketplaceActivity) *time.Time {
	if a.ExpirationTime != nil {
		t := time.UnixMicro(int64(*a.ExpirationTime)).UTC()
		return &t
	}
	if a.StartTime != nil && a.Duration != nil {
		t := time.UnixMilli(int64(*a.StartTime + *a.Duration)).UTC()
		return &t
	}
	return nil
}

var listedKinds = map[models.MarketplaceEventKind]bool{
	models.EventKindListEvent: true,
}

// foldListings keeps at most one listing row per (market_contract, nft_id):
// the candidate with the greatest block_time wins, and seller/price/nonce
// are blanked when the winning row is an unlist or buy.
func foldListings(activities []remap.MarketplaceActivity) []models.Listing {
	var candidates []remap.MarketplaceActivity
	for _, a := range activities {
		switch a.Kind {
		case models.EventKindListEvent, models.EventKindUnlistEvent, models.EventKindBuyEvent:
			candidates = append(candidates, a)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].BlockTime.Equal(candidates[j].BlockTime) {
			return candidates[i].BlockTime.Before(candidates[j].BlockTime)
		}
		if candidates[i].TxVersion != candidates[j].TxVersion {
			return candidates[i].TxVersion < candidates[j].TxVersion
		}
		return candidates[i].EventIndex < candidates[j].EventIndex
	})

	winners := make(map[listingKey]remap.MarketplaceActivity)
	var order []listingKey
	for _, a := range candidates {
		key := listingKey{marketContract: a.MarketContract, nftID: a.NftID}
		if _, ok := winners[key]; !ok {
			order = append(order, key)
		}
		winners[key] = a // candidates are sorted ascending, so the last write per key is the greatest block_time
	}

	out := make([]models.Listing, 0, len(order))
	for _, key := range order {
		a := winners[key]
		listing := models.Listing{
			ID:               identity.ListingID(a.MarketContract, a.NftID),
			NftID:            a.NftID,
			MarketContractID: a.MarketContract,
			BlockTime:        a.BlockTime,
			BlockHeight:      int64(a.BlockHeight),
			Listed:           listedKinds[a.Kind],
		}
		if listing.Listed {
			listing.Price = a.Price
			listing.Seller = a.Seller
			listing.Nonce = a.Nonce
			listing.TxIndex = a.TxIndex
		}
		out = append(out, listing)
	}
	return out
}
