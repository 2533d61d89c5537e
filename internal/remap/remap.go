// Package remap turns one decoded transaction into zero or more
// MarketplaceActivity values, driven entirely by a marketplace's
// declarative event_model_mapping/events/resources configuration tables.
package remap

import (
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"aptos-nft-indexer/internal/chain"
	"aptos-nft-indexer/internal/config"
	"aptos-nft-indexer/internal/decoder"
	"aptos-nft-indexer/internal/identity"
	"aptos-nft-indexer/internal/models"
)

// MarketplaceActivity is the blank-slate record the remapper fills in from
// the event frame and then from the configured JSON-path table. It is wide
// enough to carry activity, bid, and listing fields because a single raw
// event (e.g. SoloBidEvent) feeds all three downstream in the Reducer.
type MarketplaceActivity struct {
	Marketplace    string
	MarketContract string
	TxID           string
	TxVersion      uint64
	EventIndex     uint64
	TxIndex        int64
	BlockTime      time.Time
	BlockHeight    uint64
	RawEventType   string
	Kind           models.MarketplaceEventKind
	ActivityType   models.ActivityType

	Sender   string
	Receiver string
	Seller   string
	Buyer    string
	Price    int64
	Amount   int64
	NftID    string
	CollectionID string
	Nonce    string
	Listed   *bool

	BidID         string
	Bidder        string
	BidKindField  models.BidKind
	CreatedTxID   string
	AcceptedTxID  string
	CancelledTxID string
	ExpirationTime *uint64 // microsecond epoch
	StartTime      *uint64 // millisecond epoch
	Duration       *uint64 // milliseconds
}

// Valid reports whether the activity carries the two fields required
// before it is allowed downstream: a contract address and a marketplace
// label.
func (a MarketplaceActivity) Valid() bool {
	return a.MarketContract != "" && a.Marketplace != ""
}

var activityTypeByKind = map[models.MarketplaceEventKind]models.ActivityType{
	models.EventKindMintEvent:                models.ActivityMint,
	models.EventKindBurnEvent:                models.ActivityBurn,
	models.EventKindDepositEvent:             models.ActivityDeposit,
	models.EventKindWithdrawEvent:            models.ActivityTransfer,
	models.EventKindListEvent:                models.ActivityList,
	models.EventKindUnlistEvent:              models.ActivityUnlist,
	models.EventKindBuyEvent:                 models.ActivityBuy,
	models.EventKindSoloBidEvent:             models.ActivitySoloBid,
	models.EventKindUnlistBidEvent:           models.ActivityUnlistBid,
	models.EventKindAcceptBidEvent:           models.ActivityAcceptBid,
	models.EventKindCollectionBidEvent:       models.ActivityCollectionBid,
	models.EventKindCancelCollectionBidEvent: models.ActivityCancelCollectionBid,
	models.EventKindAcceptCollectionBidEvent: models.ActivityAcceptCollectionBid,
}

// Remap is the per-marketplace stateless remap(transaction) function. It
// never touches shared state; it is safe to call concurrently across
// disjoint transactions of the same marketplace.
func Remap(tx chain.Transaction, mcfg config.NFTMarketplaceConfig) []MarketplaceActivity {
	normalizedContract, err := decoder.NormalizeAddress(mcfg.ContractAddress)
	if err != nil {
		return nil
	}

	var out []MarketplaceActivity
	for _, e := range tx.Events {
		rawKind, ok := mcfg.EventModelMapping[e.Type]
		if !ok {
			continue
		}
		kind := models.MarketplaceEventKind(rawKind)

		act := MarketplaceActivity{
			Marketplace:    mcfg.Name,
			MarketContract: normalizedContract,
			TxID:           tx.Hash,
			TxVersion:      tx.Version,
			EventIndex:     e.Index,
			TxIndex:        identity.TxIndex(tx.Version, e.Index),
			BlockTime:      tx.Timestamp,
			BlockHeight:    tx.BlockHeight,
			RawEventType:   e.Type,
			Kind:           kind,
			ActivityType:   activityTypeByKind[kind],
		}

		if table, ok := mcfg.Events[e.Type]; ok {
			applyColumns(&act, table, e.Data)
		}

		out = append(out, act)
	}

	for _, c := range tx.Changes {
		if c.Type != chain.ChangeWriteResource {
			continue
		}
		table, ok := mcfg.Resources[c.ResourceType]
		if !ok {
			continue
		}
		// Resource-driven augmentation: the same write-set typically carries
		// the fields a marketplace event's own payload omits (e.g. a listing
		// price stored on-resource rather than in the event). Apply the hit
		// to every activity derived from this transaction.
		for i := range out {
			applyColumns(&out[i], table, c.Data)
		}
	}

	valid := out[:0]
	for _, a := range out {
		if a.Valid() {
			valid = append(valid, a)
		}
	}
	return valid
}

// applyColumns walks a json_path -> [DbColumn] table against one JSON
// payload and, for every path that resolves to a non-empty value, invokes
// the typed field setter for each matching activities column.
func applyColumns(act *MarketplaceActivity, table map[string][]config.ConfigDbColumn, payload []byte) {
	for path, cols := range table {
		res := gjson.GetBytes(payload, path)
		if !res.Exists() {
			continue
		}
		val := res.String()
		if val == "" {
			continue
		}
		for _, col := range cols {
			if col.Table != "activities" {
				continue
			}
			setField(act, col.Column, val)
		}
	}
}

// setField converts a textual payload value into the target field's kind.
// config.Load rejects any column not handled here; a column the switch does
// not list falls through it and is ignored.
func setField(act *MarketplaceActivity, column, val string) {
	switch column {
	case "sender":
		act.Sender = val
	case "receiver":
		act.Receiver = val
	case "seller":
		act.Seller = val
	case "buyer":
		act.Buyer = val
	case "price":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			act.Price = v
		}
	case "amount":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			act.Amount = v
		}
	case "nft_id":
		act.NftID = val
	case "collection_id":
		act.CollectionID = val
	case "nonce":
		act.Nonce = val
	case "listed":
		if v, err := strconv.ParseBool(val); err == nil {
			act.Listed = &v
		}
	case "bid_id":
		act.BidID = val
	case "bidder":
		act.Bidder = val
	case "bid_kind":
		act.BidKindField = models.BidKind(val)
	case "created_tx_id":
		act.CreatedTxID = val
	case "accepted_tx_id":
		act.AcceptedTxID = val
	case "cancelled_tx_id":
		act.CancelledTxID = val
	case "expiration_time":
		if v, err := strconv.ParseUint(val, 10, 64); err == nil {
			act.ExpirationTime = &v
		}
	case "start_time":
		if v, err := strconv.ParseUint(val, 10, 64); err == nil {
			act.StartTime = &v
		}
	case "duration":
		if v, err := strconv.ParseUint(val, 10, 64); err == nil {
			act.Duration = &v
		}
	case "contract_address":
		if norm, err := decoder.NormalizeAddress(val); err == nil {
			act.MarketContract = norm
		}
	case "marketplace":
		act.Marketplace = val
	}
}
