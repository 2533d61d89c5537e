// Package extractor derives (activities, collections, nfts, wallets) from
// raw transactions using generic v1/v2 token-standard semantics. It is
// orthogonal to the marketplace remapper, which only sees configured
// marketplace events.
package extractor

import (
	"encoding/json"
	"log"
	"sort"

	"github.com/shopspring/decimal"

	"aptos-nft-indexer/internal/chain"
	"aptos-nft-indexer/internal/decoder"
	"aptos-nft-indexer/internal/identity"
	"aptos-nft-indexer/internal/models"
)

// Extractor holds cross-transaction scratch state scoped to one batch:
// pending burns and mint/withdraw price pairing. Create one per
// marketplace pipeline and call Drain between batches.
type Extractor struct {
	pendingBurns           map[string]models.Nft
	mintPriceByReceiver    map[string]int64
	mintActivityByReceiver map[string]int // index into the in-progress batch's Result.Activities
}

func New() *Extractor {
	ex := &Extractor{}
	ex.Drain()
	return ex
}

// Drain clears all per-batch scratch state so it cannot leak between
// batches.
func (ex *Extractor) Drain() {
	ex.pendingBurns = make(map[string]models.Nft)
	ex.mintPriceByReceiver = make(map[string]int64)
	ex.mintActivityByReceiver = make(map[string]int)
}

// Result is the set of rows the extractor derived from one batch.
type Result struct {
	Activities  []models.Activity
	Collections []models.Collection
	Nfts        []models.Nft
	Wallets     []models.Wallet
}

// ExtractBatch runs the generic token-standard extraction over every
// transaction in a batch, in order, consuming and producing this
// Extractor's scratch state as it goes.
func (ex *Extractor) ExtractBatch(txs []chain.Transaction) Result {
	res := Result{}
	seenWallets := make(map[string]struct{})
	addWallet := func(addr string, tx chain.Transaction) {
		if addr == "" {
			return
		}
		if _, ok := seenWallets[addr]; ok {
			return
		}
		seenWallets[addr] = struct{}{}
		res.Wallets = append(res.Wallets, models.Wallet{
			Address:     addr,
			FirstSeenTx: tx.Hash,
			FirstSeenAt: tx.Timestamp,
		})
	}

	for _, tx := range txs {
		bundles, tableHandleOwners := decoder.DecodeResources(tx.Changes)

		events := append([]chain.Event(nil), tx.Events...)
		sort.Slice(events, func(i, j int) bool { return events[i].Index < events[j].Index })

		decoded := make([]decodedEvent, 0, len(events))
		mintedThisTx := make(map[string]bool)
		for _, e := range events {
			tokEvt, v2Evt, coinEvt, err := decoder.DecodeEvent(e)
			if err != nil {
				log.Printf("[extractor] skip malformed event tx=%d idx=%d: %v", tx.Version, e.Index, err)
				continue
			}
			decoded = append(decoded, decodedEvent{event: e, tok: tokEvt, v2: v2Evt, coin: coinEvt})
			if tokEvt != nil && tokEvt.Kind == decoder.TokenEventMint {
				mintedThisTx[tokEvt.TokenID] = true
			}
		}

		// Pre-scan this transaction's Deposit events into a token_id -> owner
		// map before any Mint is processed: a real 0x3::token::DepositEvent
		// carries no `to` field, so the owner is the account the event's own
		// handle lives under, and the paired Mint's receiver is backfilled
		// from the deposit rather than the transaction sender.
		depositOwnerByToken := make(map[string]string)
		for _, d := range decoded {
			if d.tok != nil && d.tok.Kind == decoder.TokenEventDeposit {
				depositOwnerByToken[d.tok.TokenID] = resolveV1DepositOwner(d.tok, d.event)
			}
		}

		for _, d := range decoded {
			switch {
			case d.tok != nil:
				ex.handleV1TokenEvent(&res, tx, d.event, d.tok, mintedThisTx, depositOwnerByToken, addWallet)
			case d.v2 != nil:
				ex.handleV2TokenEvent(&res, tx, d.event, d.v2, bundles, addWallet)
			case d.coin != nil:
				ex.handleCoinEvent(&res, d.coin)
			}
		}

		ex.applyResourceBundles(&res, tx, bundles)
		ex.applyTokenTableItems(&res, tx, tableHandleOwners)
	}

	return res
}

// decodedEvent caches one transaction event's decode result so same-tx
// mints can be pre-scanned for deposit suppression without decoding every
// event twice.
type decodedEvent struct {
	event chain.Event
	tok   *decoder.TokenEvent
	v2    *decoder.V2TokenEvent
	coin  *decoder.CoinEvent
}

func (ex *Extractor) handleV1TokenEvent(res *Result, tx chain.Transaction, e chain.Event, tok *decoder.TokenEvent, mintedThisTx map[string]bool, depositOwnerByToken map[string]string, addWallet func(string, chain.Transaction)) {
	nftID := identity.NftIDFromAddress(tok.TokenID)
	// A v1 collection has no dedicated on-chain address; its identity is
	// creator::name. Events that carry only a bare collection name (no
	// creator) fall back to hashing the name alone.
	collectionID := identity.CollectionIDFromAddress(tok.Collection)
	if tok.Creator != "" {
		collectionID = identity.CollectionIDFromCreatorName(tok.Creator, tok.Collection)
	}
	txIndex := identity.TxIndex(tx.Version, e.Index)

	switch tok.Kind {
	case decoder.TokenEventMint:
		// The Mint event itself carries no receiver; it is attributed from
		// the paired Deposit event in the same transaction, never from the
		// transaction sender (a marketplace-mediated mint's sender is the
		// marketplace contract, not the new owner).
		receiver := depositOwnerByToken[tok.TokenID]
		addWallet(receiver, tx)
		act := models.Activity{
			ID:           identity.ActivityID(txIndex),
			TxIndex:      txIndex,
			TxID:         tx.Hash,
			TxType:       models.ActivityMint,
			Receiver:     receiver,
			NftID:        nftID,
			CollectionID: collectionID,
			BlockTime:    tx.Timestamp,
			BlockHeight:  int64(tx.BlockHeight),
		}
		ex.pairMint(res, act, receiver)
		res.Nfts = append(res.Nfts, models.Nft{
			ID:           nftID,
			CollectionID: collectionID,
			Owner:        receiver,
			Version:      models.TokenStandardV1,
			CreatedAt:    tx.Timestamp,
			UpdatedAt:    tx.Timestamp,
		})
		if tok.Collection != "" {
			res.Collections = append(res.Collections, models.Collection{
				ID:             collectionID,
				Title:          tok.Collection,
				CreatorAddress: tok.Creator,
				CreatedAt:      tx.Timestamp,
				UpdatedAt:      tx.Timestamp,
			})
		}

	case decoder.TokenEventBurn:
		addWallet(tok.PrevOwner, tx)
		res.Activities = append(res.Activities, models.Activity{
			ID:           identity.ActivityID(txIndex),
			TxIndex:      txIndex,
			TxID:         tx.Hash,
			TxType:       models.ActivityBurn,
			Sender:       tok.PrevOwner,
			NftID:        nftID,
			CollectionID: collectionID,
			BlockTime:    tx.Timestamp,
			BlockHeight:  int64(tx.BlockHeight),
		})
		burnedNft := models.Nft{
			ID:           nftID,
			CollectionID: collectionID,
			Burned:       true,
			BurnTxID:     tx.Hash,
			Version:      models.TokenStandardV1,
			UpdatedAt:    tx.Timestamp,
		}
		res.Nfts = append(res.Nfts, burnedNft)
		// Recorded so a later write-resource for this id within the same
		// batch cannot resurrect owner.
		ex.pendingBurns[nftID] = burnedNft

	case decoder.TokenEventDeposit:
		owner := depositOwnerByToken[tok.TokenID]
		addWallet(owner, tx)
		// A DepositEvent that lands in the same transaction as a MintEvent
		// for the same token is the mint's own deposit into the recipient's
		// token store, not an independent transfer, so it does not get its
		// own activity row.
		if !mintedThisTx[tok.TokenID] {
			res.Activities = append(res.Activities, models.Activity{
				ID:           identity.ActivityID(txIndex),
				TxIndex:      txIndex,
				TxID:         tx.Hash,
				TxType:       models.ActivityDeposit,
				Receiver:     owner,
				NftID:        nftID,
				CollectionID: collectionID,
				BlockTime:    tx.Timestamp,
				BlockHeight:  int64(tx.BlockHeight),
			})
		}
		if _, burned := ex.pendingBurns[nftID]; !burned {
			res.Nfts = append(res.Nfts, models.Nft{
				ID:           nftID,
				CollectionID: collectionID,
				Owner:        owner,
				Version:      models.TokenStandardV1,
				UpdatedAt:    tx.Timestamp,
			})
		}

	case decoder.TokenEventWithdraw:
		// Bookkeeping only: ownership is settled by the paired DepositEvent.
		addWallet(tok.From, tx)
	}
}

func (ex *Extractor) handleV2TokenEvent(res *Result, tx chain.Transaction, e chain.Event, tok *decoder.V2TokenEvent, bundles map[string]*decoder.ObjectBundle, addWallet func(string, chain.Transaction)) {
	nftID := identity.NftIDFromAddress(tok.Object)
	txIndex := identity.TxIndex(tx.Version, e.Index)
	bundle := bundles[tok.Object]
	collectionID := collectionIDFromBundle(bundle)

	switch tok.Kind {
	case decoder.V2TokenEventMint:
		// The new owner is the aggregated object's ObjectCore.owner, never
		// the transaction sender: a marketplace-mediated mint is submitted
		// by the marketplace contract, not the buyer who ends up owning it.
		receiver := ""
		if bundle != nil && bundle.Core != nil {
			receiver = bundle.Core.Owner
		}
		addWallet(receiver, tx)
		act := models.Activity{
			ID:           identity.ActivityID(txIndex),
			TxIndex:      txIndex,
			TxID:         tx.Hash,
			TxType:       models.ActivityMint,
			Receiver:     receiver,
			NftID:        nftID,
			CollectionID: collectionID,
			BlockTime:    tx.Timestamp,
			BlockHeight:  int64(tx.BlockHeight),
		}
		ex.pairMint(res, act, receiver)
		res.Nfts = append(res.Nfts, nftFromBundle(nftID, collectionID, receiver, bundle, tx))

	case decoder.V2TokenEventBurn:
		addWallet(tok.From, tx)
		res.Activities = append(res.Activities, models.Activity{
			ID:           identity.ActivityID(txIndex),
			TxIndex:      txIndex,
			TxID:         tx.Hash,
			TxType:       models.ActivityBurn,
			Sender:       tok.From,
			NftID:        nftID,
			CollectionID: collectionID,
			BlockTime:    tx.Timestamp,
			BlockHeight:  int64(tx.BlockHeight),
		})
		burnedNft := models.Nft{
			ID:           nftID,
			CollectionID: collectionID,
			Burned:       true,
			BurnTxID:     tx.Hash,
			Version:      models.TokenStandardV2,
			UpdatedAt:    tx.Timestamp,
		}
		res.Nfts = append(res.Nfts, burnedNft)
		ex.pendingBurns[nftID] = burnedNft

	case decoder.V2TokenEventTransfer:
		addWallet(tok.From, tx)
		addWallet(tok.To, tx)
		res.Activities = append(res.Activities, models.Activity{
			ID:           identity.ActivityID(txIndex),
			TxIndex:      txIndex,
			TxID:         tx.Hash,
			TxType:       models.ActivityTransfer,
			Sender:       tok.From,
			Receiver:     tok.To,
			NftID:        nftID,
			CollectionID: collectionID,
			BlockTime:    tx.Timestamp,
			BlockHeight:  int64(tx.BlockHeight),
		})
		if _, burned := ex.pendingBurns[nftID]; !burned {
			res.Nfts = append(res.Nfts, nftFromBundle(nftID, collectionID, tok.To, bundle, tx))
		}
	}
}

func (ex *Extractor) handleCoinEvent(res *Result, coin *decoder.CoinEvent) {
	if coin.Kind != decoder.CoinEventWithdraw {
		return
	}
	amount := int64(coin.Amount)
	if idx, ok := ex.mintActivityByReceiver[coin.Account]; ok {
		res.Activities[idx].Price = amount
		delete(ex.mintActivityByReceiver, coin.Account)
		return
	}
	ex.mintPriceByReceiver[coin.Account] = amount
}

// pairMint pairs a mint activity with the matching coin withdraw in the
// same transaction: whichever side is seen first, the other completes the
// pairing when it arrives. The activity is appended to res
// immediately; an index (not a pointer) is kept so a later append growing
// res.Activities's backing array cannot leave a stale reference behind.
func (ex *Extractor) pairMint(res *Result, act models.Activity, receiver string) {
	if receiver == "" {
		// No attributed owner: nothing to key a withdraw pairing on, so the
		// mint goes through unpriced rather than colliding with every other
		// unattributed mint in the batch under the same empty key.
		res.Activities = append(res.Activities, act)
		return
	}
	if price, ok := ex.mintPriceByReceiver[receiver]; ok {
		act.Price = price
		delete(ex.mintPriceByReceiver, receiver)
		res.Activities = append(res.Activities, act)
		return
	}
	res.Activities = append(res.Activities, act)
	ex.mintActivityByReceiver[receiver] = len(res.Activities) - 1
}

// applyResourceBundles backfills NFT metadata from resources that were
// written without (or in addition to) an accompanying token event, and
// consumes any pending burn whose nft id now has a later write-resource,
// stamping the row burned with owner cleared.
func (ex *Extractor) applyResourceBundles(res *Result, tx chain.Transaction, bundles map[string]*decoder.ObjectBundle) {
	for addr, bundle := range bundles {
		if bundle.Token == nil {
			continue
		}
		nftID := identity.NftIDFromAddress(addr)
		if pending, ok := ex.pendingBurns[nftID]; ok {
			pending.Name = bundle.Token.Name
			pending.URI = bundle.Token.URI
			pending.Description = bundle.Token.Description
			res.Nfts = append(res.Nfts, pending)
			delete(ex.pendingBurns, nftID)
			continue
		}
		collectionID := collectionIDFromBundle(bundle)
		owner := ""
		if bundle.Core != nil {
			owner = bundle.Core.Owner
		}
		res.Nfts = append(res.Nfts, nftFromBundle(nftID, collectionID, owner, bundle, tx))

		if bundle.SupplyInfo != nil {
			res.Collections = append(res.Collections, models.Collection{
				ID:        collectionID,
				Supply:    int64(bundle.SupplyInfo.Current),
				UpdatedAt: tx.Timestamp,
			})
		}
	}
}

func collectionIDFromBundle(bundle *decoder.ObjectBundle) string {
	if bundle == nil || bundle.Token == nil || bundle.Token.CollectionAddress == "" {
		return ""
	}
	return identity.CollectionIDFromAddress(bundle.Token.CollectionAddress)
}

func nftFromBundle(nftID, collectionID, owner string, bundle *decoder.ObjectBundle, tx chain.Transaction) models.Nft {
	nft := models.Nft{
		ID:           nftID,
		CollectionID: collectionID,
		Owner:        owner,
		Version:      models.TokenStandardV2,
		UpdatedAt:    tx.Timestamp,
	}
	if bundle != nil && bundle.Token != nil {
		nft.Name = bundle.Token.Name
		nft.URI = bundle.Token.URI
		nft.Description = bundle.Token.Description
	}
	if bundle != nil && bundle.RoyaltyInfo != nil && bundle.RoyaltyInfo.Denominator != 0 {
		nft.Royalty = decimal.NewFromInt(int64(bundle.RoyaltyInfo.Numerator)).
			Div(decimal.NewFromInt(int64(bundle.RoyaltyInfo.Denominator)))
	}
	return nft
}

// resolveV1DepositOwner attributes a v1 Deposit event's owner. The event
// payload's own `to` is preferred when present; a real
// 0x3::token::DepositEvent carries no such field, in which case the owner
// is the account address of the event's own key: a deposit is emitted on
// the receiving token store's handle, which lives under the owner.
func resolveV1DepositOwner(tok *decoder.TokenEvent, e chain.Event) string {
	if tok.To != "" {
		return tok.To
	}
	return e.AccountAddress
}

// applyTokenTableItems derives v1 nft ownership from token write-table
// items: the item's handle identifies whose TokenStore it was written to,
// resolved through the table_handle -> owner map that the same
// transaction's TokenStore write-resources populate. An unknown handle or
// an item for a pending-burned token is skipped.
func (ex *Extractor) applyTokenTableItems(res *Result, tx chain.Transaction, tableHandleOwners map[string]string) {
	for _, c := range tx.Changes {
		if c.Type != chain.ChangeWriteTableItem || c.ValueType != "0x3::token::Token" {
			continue
		}
		owner := tableHandleOwners[c.Handle]
		if owner == "" {
			continue
		}

		var payload struct {
			ID struct {
				TokenDataID struct {
					Creator    string `json:"creator"`
					Collection string `json:"collection"`
					Name       string `json:"name"`
				} `json:"token_data_id"`
			} `json:"id"`
		}
		if json.Unmarshal(c.Value, &payload) != nil || payload.ID.TokenDataID.Creator == "" {
			continue
		}
		td := payload.ID.TokenDataID
		nftID := identity.NftIDFromAddress(td.Creator + "/" + td.Collection + "/" + td.Name)
		if _, burned := ex.pendingBurns[nftID]; burned {
			continue
		}
		res.Nfts = append(res.Nfts, models.Nft{
			ID:           nftID,
			CollectionID: identity.CollectionIDFromCreatorName(td.Creator, td.Collection),
			Owner:        owner,
			Version:      models.TokenStandardV1,
			UpdatedAt:    tx.Timestamp,
		})
	}
}
