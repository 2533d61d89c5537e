// Package models defines the normalized marketplace entities the indexing
// pipeline produces and the store persists. These are semantic types, not
// wire types: the decoder/remapper/extractor packages all converge on them.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityType enumerates the normalized marketplace event taxonomy every
// raw, marketplace-specific event type is mapped into.
type ActivityType string

const (
	ActivityMint                   ActivityType = "mint"
	ActivityBurn                   ActivityType = "burn"
	ActivityTransfer               ActivityType = "transfer"
	ActivityList                   ActivityType = "list"
	ActivityUnlist                 ActivityType = "unlist"
	ActivityBuy                    ActivityType = "buy"
	ActivitySoloBid                ActivityType = "solo-bid"
	ActivityUnlistBid              ActivityType = "unlist-bid"
	ActivityAcceptBid              ActivityType = "accept-bid"
	ActivityCollectionBid          ActivityType = "collection-bid"
	ActivityCancelCollectionBid    ActivityType = "cancel-collection-bid"
	ActivityAcceptCollectionBid    ActivityType = "accept-collection-bid"
	ActivityDeposit                ActivityType = "deposit"
)

// BidKind distinguishes a solo (single-token) bid from a collection-wide bid.
type BidKind string

const (
	BidKindSolo       BidKind = "solo"
	BidKindCollection BidKind = "collection"
)

// BidStatus is the lifecycle state of a Bid row.
type BidStatus string

const (
	BidStatusActive    BidStatus = "active"
	BidStatusMatched   BidStatus = "matched"
	BidStatusCancelled BidStatus = "cancelled"
)

// TokenStandard distinguishes the table-item-based v1 token model from the
// resource+object-based v2 model.
type TokenStandard string

const (
	TokenStandardV1 TokenStandard = "v1"
	TokenStandardV2 TokenStandard = "v2"
)

// Collection is the semantic record for an on-chain NFT collection.
// Identity is a v5 UUID derived from the collection address (v2) or
// hash(creator::name) (v1); see internal/identity.
type Collection struct {
	ID              string // UUID v5, pure function of address/creator+name
	Slug            string
	Title           string
	Description     string
	CoverURI        string
	CreatorAddress  string
	Supply          int64
	RoyaltyRatio    decimal.Decimal
	DiscordURL      string
	TwitterURL      string
	WebsiteURL      string
	TableHandle     string // v1 lookup handle; empty for v2
	Verified        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Nft is the semantic record for a single on-chain token.
type Nft struct {
	ID           string // UUID v5 of the token address
	CollectionID string
	Owner        string // empty/absent once Burned
	Name         string
	URI          string
	Description  string
	Properties   []byte // opaque JSON
	Royalty      decimal.Decimal
	Version      TokenStandard
	Burned       bool
	BurnTxID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Activity is an append-only, id-stable record of one on-chain event that
// moves, lists, or bids on an NFT. Id is v5(tx_version*100_000+event_index).
type Activity struct {
	ID                string
	TxIndex           int64 // tx_version*100_000 + event_index
	TxID              string
	TxType            ActivityType
	Sender            string
	Receiver          string
	Price             int64 // native minimal units
	USDPrice          decimal.Decimal
	NftID             string
	CollectionID      string
	BlockTime         time.Time
	BlockHeight       int64
	Amount            int64
	MarketContractID  string
	MarketName        string
	IsDeleted         bool
}

// Listing is the at-most-one-active-per-(market,nft) sell order.
type Listing struct {
	ID               string // (market_contract, nft_id) derived key
	NftID            string
	MarketContractID string
	Listed           bool
	Price            int64
	Seller           string
	Nonce            string
	BlockTime        time.Time
	BlockHeight      int64
	TxIndex          int64
}

// Bid is an offer on a solo token or on any token from a collection.
type Bid struct {
	ID               string // v5 UUID of (market contract, hash(token_addr) or hash(collection_addr), bidder)
	MarketContractID string
	CollectionID     string
	NftID            string
	Bidder           string
	Receiver         string
	Status           BidStatus
	Kind             BidKind
	Price            int64
	Nonce            string
	CreatedTxID      string
	AcceptedTxID     string
	CancelledTxID    string
	ExpiredAt        *time.Time
	UpdatedAt        time.Time
}

// Wallet is a lightweight presence row for any address the pipeline observes
// as a sender/receiver/bidder/seller.
type Wallet struct {
	Address     string
	FirstSeenTx string
	FirstSeenAt time.Time
}

// TokenPrice is one observation of the native-token-to-USD exchange rate.
type TokenPrice struct {
	TokenAddress string
	Price        decimal.Decimal
	CreatedAt    time.Time
}

// ProcessorStatus is the per-processor checkpoint row.
type ProcessorStatus struct {
	Processor                string
	LastSuccessVersion       int64
	LastTransactionTimestamp time.Time
}

// NFTMetadata is the result of resolving a token's `uri` into off-chain JSON.
type NFTMetadata struct {
	URI              string
	CollectionID     string
	NftID            string
	Name             string
	Description      string
	Image            string
	AnimationURL     string
	AvatarURL        string
	BackgroundColor  string
	ImageData        string
	YoutubeURL       string
	ExternalURL      string
	PropertiesJSON   []byte
}

// Attribute is one trait_type/value pair extracted from NFTMetadata.
type Attribute struct {
	CollectionID string
	NftID        string
	Type         string // lower-cased trait_type
	Value        string // lower-cased value
}

// DbColumn identifies where a remapped field is written: which logical
// table, and which column within it.
type DbColumn struct {
	Table  string
	Column string
}

// MarketplaceEventKind is the normalized taxonomy a raw, marketplace-specific
// event type maps into before field remapping.
type MarketplaceEventKind string

const (
	EventKindMintEvent                  MarketplaceEventKind = "MintEvent"
	EventKindBurnEvent                  MarketplaceEventKind = "BurnEvent"
	EventKindDepositEvent               MarketplaceEventKind = "DepositTokenEvent"
	EventKindWithdrawEvent              MarketplaceEventKind = "WithdrawEvent"
	EventKindListEvent                  MarketplaceEventKind = "ListEvent"
	EventKindUnlistEvent                MarketplaceEventKind = "UnlistEvent"
	EventKindBuyEvent                   MarketplaceEventKind = "BuyEvent"
	EventKindSoloBidEvent               MarketplaceEventKind = "SoloBidEvent"
	EventKindUnlistBidEvent             MarketplaceEventKind = "UnlistBidEvent"
	EventKindAcceptBidEvent             MarketplaceEventKind = "AcceptBidEvent"
	EventKindCollectionBidEvent         MarketplaceEventKind = "CollectionBidEvent"
	EventKindCancelCollectionBidEvent   MarketplaceEventKind = "CancelCollectionBidEvent"
	EventKindAcceptCollectionBidEvent   MarketplaceEventKind = "AcceptCollectionBidEvent"
)
