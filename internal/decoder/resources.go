package decoder

import (
	"encoding/json"

	"aptos-nft-indexer/internal/chain"
)

// ObjectCore mirrors 0x1::object::ObjectCore.
type ObjectCore struct {
	Owner                string
	AllowUngatedTransfer bool
}

// TokenIdentifiers mirrors 0x4::token::TokenIdentifiers.
type TokenIdentifiers struct {
	Name           string
	CollectionName string
}

// TokenResource mirrors 0x4::token::Token.
type TokenResource struct {
	CollectionAddress string
	Description       string
	Name              string
	URI               string
}

// PropertyMap mirrors 0x4::property_map::PropertyMap; kept opaque.
type PropertyMap struct {
	Data json.RawMessage
}

// Royalty mirrors 0x4::royalty::Royalty.
type Royalty struct {
	Numerator    uint64
	Denominator  uint64
	PayeeAddress string
}

// SupplyKind distinguishes the three v2 collection supply resources.
type SupplyKind string

const (
	SupplyFixed      SupplyKind = "fixed"
	SupplyUnlimited  SupplyKind = "unlimited"
	SupplyConcurrent SupplyKind = "concurrent"
)

// Supply mirrors whichever of 0x4::collection::{Fixed,Unlimited,Concurrent}Supply
// was written for a collection's object address.
type Supply struct {
	Kind    SupplyKind
	Current uint64
}

// ObjectBundle is the per-object-address aggregate of every recognized v2
// sibling resource observed in one transaction's write set, collected into
// one record keyed by the object address.
type ObjectBundle struct {
	Address     string
	Core        *ObjectCore
	Token       *TokenResource
	Identifiers *TokenIdentifiers
	Properties  *PropertyMap
	RoyaltyInfo *Royalty
	SupplyInfo  *Supply
}

// DecodeResources scans a transaction's write-set changes and returns:
//   - the per-object aggregated resource bundles, keyed by address;
//   - the table_handle -> owner_address map built from v1 TokenStore
//     write-set items, used to attribute v1 token write-table items to
//     the owner of the store they were written to.
func DecodeResources(changes []chain.WriteSetChange) (map[string]*ObjectBundle, map[string]string) {
	bundles := make(map[string]*ObjectBundle)
	tableHandleOwners := make(map[string]string)

	for _, c := range changes {
		if c.Type != chain.ChangeWriteResource {
			continue
		}

		addr, err := NormalizeAddress(c.Address)
		if err != nil {
			continue
		}

		et, err := ParseEventType(c.ResourceType)
		if err != nil {
			continue
		}

		switch {
		case et.Module == "object" && et.Struct == "ObjectCore":
			applyObjectCore(bundles, addr, c.Data)
		case et.Module == "token" && et.Struct == "Token":
			applyTokenResource(bundles, addr, c.Data)
		case et.Module == "token" && et.Struct == "TokenIdentifiers":
			applyTokenIdentifiers(bundles, addr, c.Data)
		case et.Module == "property_map" && et.Struct == "PropertyMap":
			applyPropertyMap(bundles, addr, c.Data)
		case et.Module == "royalty" && et.Struct == "Royalty":
			applyRoyalty(bundles, addr, c.Data)
		case et.Module == "collection" && isSupplyStruct(et.Struct):
			applySupply(bundles, addr, et.Struct, c.Data)
		case et.Module == "token" && et.Struct == "TokenStore":
			applyTokenStore(tableHandleOwners, addr, c.Data)
		}
	}

	return bundles, tableHandleOwners
}

func isSupplyStruct(s string) bool {
	switch s {
	case "FixedSupply", "UnlimitedSupply", "ConcurrentSupply":
		return true
	}
	return false
}

func bundleFor(bundles map[string]*ObjectBundle, addr string) *ObjectBundle {
	b, ok := bundles[addr]
	if !ok {
		b = &ObjectBundle{Address: addr}
		bundles[addr] = b
	}
	return b
}

func applyObjectCore(bundles map[string]*ObjectBundle, addr string, data []byte) {
	var payload struct {
		Owner                string `json:"owner"`
		AllowUngatedTransfer bool   `json:"allow_ungated_transfer"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return
	}
	bundleFor(bundles, addr).Core = &ObjectCore{
		Owner:                payload.Owner,
		AllowUngatedTransfer: payload.AllowUngatedTransfer,
	}
}

func applyTokenResource(bundles map[string]*ObjectBundle, addr string, data []byte) {
	var payload struct {
		Collection struct {
			Inner string `json:"inner"`
		} `json:"collection"`
		Description string `json:"description"`
		Name        string `json:"name"`
		URI         string `json:"uri"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return
	}
	bundleFor(bundles, addr).Token = &TokenResource{
		CollectionAddress: payload.Collection.Inner,
		Description:       payload.Description,
		Name:              payload.Name,
		URI:               payload.URI,
	}
}

func applyTokenIdentifiers(bundles map[string]*ObjectBundle, addr string, data []byte) {
	var payload struct {
		Name           struct{ Value string `json:"value"` } `json:"name"`
		CollectionName struct{ Value string `json:"value"` } `json:"collection_name"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return
	}
	bundleFor(bundles, addr).Identifiers = &TokenIdentifiers{
		Name:           payload.Name.Value,
		CollectionName: payload.CollectionName.Value,
	}
}

func applyPropertyMap(bundles map[string]*ObjectBundle, addr string, data []byte) {
	bundleFor(bundles, addr).Properties = &PropertyMap{Data: append(json.RawMessage(nil), data...)}
}

func applyRoyalty(bundles map[string]*ObjectBundle, addr string, data []byte) {
	var payload struct {
		Numerator    string `json:"numerator"`
		Denominator  string `json:"denominator"`
		PayeeAddress string `json:"payee_address"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return
	}
	bundleFor(bundles, addr).RoyaltyInfo = &Royalty{
		Numerator:    parseUintLoose(payload.Numerator),
		Denominator:  parseUintLoose(payload.Denominator),
		PayeeAddress: payload.PayeeAddress,
	}
}

func applySupply(bundles map[string]*ObjectBundle, addr, structName string, data []byte) {
	var payload struct {
		Current struct {
			Value string `json:"value"`
		} `json:"current_supply"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return
	}
	kind := SupplyUnlimited
	switch structName {
	case "FixedSupply":
		kind = SupplyFixed
	case "ConcurrentSupply":
		kind = SupplyConcurrent
	}
	bundleFor(bundles, addr).SupplyInfo = &Supply{Kind: kind, Current: parseUintLoose(payload.Current.Value)}
}

func applyTokenStore(tableHandleOwners map[string]string, ownerAddr string, data []byte) {
	var payload struct {
		Tokens struct {
			Handle string `json:"handle"`
		} `json:"tokens"`
	}
	if json.Unmarshal(data, &payload) != nil {
		return
	}
	if payload.Tokens.Handle != "" {
		tableHandleOwners[payload.Tokens.Handle] = ownerAddr
	}
}
