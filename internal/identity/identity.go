// Package identity derives the stable ids used throughout the pipeline:
// UUID v5 for collections/nfts/activities, SHA3-256 address hashes for
// bid ids. Every id is a pure function of its input, so replaying the
// same transactions always yields the same rows.
package identity

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// Namespace is the root UUID namespace every v5 id in this system is
// derived from. Using one fixed namespace (rather than the RFC's DNS/URL
// namespaces) keeps ids stable across deployments as long as the input
// string is stable.
var Namespace = uuid.MustParse("6f9c2d9e-6b0f-4f0c-9c5d-0f7a1f6b8a31")

// CollectionIDFromAddress derives a v2 collection id: v5(namespace, address).
func CollectionIDFromAddress(address string) string {
	return uuid.NewSHA1(Namespace, []byte(address)).String()
}

// CollectionIDFromCreatorName derives a v1 collection id, which has no
// dedicated on-chain collection address: v5(namespace, hash(creator::name)).
func CollectionIDFromCreatorName(creator, name string) string {
	key := sha3Hex(creator + "::" + name)
	return uuid.NewSHA1(Namespace, []byte(key)).String()
}

// NftIDFromAddress derives the token id: v5(namespace, token address).
func NftIDFromAddress(address string) string {
	return uuid.NewSHA1(Namespace, []byte(address)).String()
}

// ActivityID derives the append-only activity id from the globally
// monotonic per-event ordinal (tx_index).
func ActivityID(txIndex int64) string {
	return uuid.NewSHA1(Namespace, []byte(fmt.Sprintf("%d", txIndex))).String()
}

// TxIndex computes tx_version*100_000 + event_index, the stable per-event
// ordinal unique across the chain.
func TxIndex(txVersion uint64, eventIndex uint64) int64 {
	return int64(txVersion)*100_000 + int64(eventIndex)
}

// SoloBidID derives a solo bid's storage key: hash(token_addr).
func SoloBidID(tokenAddress string) string {
	return sha3Hex(tokenAddress)
}

// CollectionBidID derives a collection bid's storage key: hash(collection_addr).
func CollectionBidID(collectionAddress string) string {
	return sha3Hex(collectionAddress)
}

// BidStorageID derives a Bid row's actual primary key. SoloBidID/
// CollectionBidID alone only identify the token/collection being bid on;
// the storage key additionally folds in the market contract and bidder so
// that two marketplaces, or two bidders on the same token, never collide
// on the same row.
func BidStorageID(marketContract, bidID, bidder string) string {
	return uuid.NewSHA1(Namespace, []byte(marketContract+"::"+bidID+"::"+bidder)).String()
}

// ListingID derives a listing's storage key: the (market_contract, nft_id)
// pair is the logical identity, collapsed to one string suitable as a
// primary key.
func ListingID(marketContract, nftID string) string {
	return sha3Hex(marketContract + "::" + nftID)
}

// sha3Hex returns the lowercase hex-encoded SHA3-256 digest of s.
func sha3Hex(s string) string {
	sum := sha3.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}
