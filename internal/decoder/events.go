package decoder

import (
	"encoding/json"
	"fmt"

	"aptos-nft-indexer/internal/chain"
)

// TokenEventKind enumerates the v1 (table-item based) token events.
type TokenEventKind string

const (
	TokenEventMint     TokenEventKind = "mint"
	TokenEventBurn     TokenEventKind = "burn"
	TokenEventDeposit  TokenEventKind = "deposit"
	TokenEventWithdraw TokenEventKind = "withdraw"
)

// TokenEvent is a decoded v1 token-standard event.
type TokenEvent struct {
	Kind        TokenEventKind
	TokenID     string // creator/collection/name token id, else the payload's `token` field
	Creator     string
	Collection  string
	Amount      uint64
	To          string
	From        string
	PrevOwner   string
}

// V2TokenEventKind enumerates the v2 (resource+object based) token events.
type V2TokenEventKind string

const (
	V2TokenEventMint     V2TokenEventKind = "mint"
	V2TokenEventBurn     V2TokenEventKind = "burn"
	V2TokenEventTransfer V2TokenEventKind = "transfer"
)

// V2TokenEvent is a decoded v2 token-standard event.
type V2TokenEvent struct {
	Kind   V2TokenEventKind
	Object string // the token/object address
	To     string
	From   string
}

// CoinEventKind enumerates native-coin events used to pair mint price with
// the buyer's coin withdrawal.
type CoinEventKind string

const (
	CoinEventWithdraw CoinEventKind = "withdraw"
	CoinEventDeposit  CoinEventKind = "deposit"
)

// CoinEvent is a decoded native-coin movement event.
type CoinEvent struct {
	Kind    CoinEventKind
	Amount  uint64
	Account string
}

// v1TokenEventPayload is the tolerant JSON shape of 0x3::token events.
type v1TokenEventPayload struct {
	ID struct {
		TokenDataID struct {
			Creator    string `json:"creator"`
			Collection string `json:"collection"`
			Name       string `json:"name"`
		} `json:"token_data_id"`
	} `json:"id"`
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	To         string `json:"to"`
	From       string `json:"from"`
	PrevOwner  string `json:"prev_owner"`
	Collection string `json:"collection"`
}

type v2TokenEventPayload struct {
	Object string `json:"object"`
	Token  string `json:"token"`
	To     string `json:"to"`
	From   string `json:"from"`
}

type coinEventPayload struct {
	Amount  string `json:"amount"`
	Account string `json:"account"`
	Acct    string `json:"acct"`
}

// DecodeEvent classifies and decodes one transaction event into a TokenEvent,
// V2TokenEvent, or CoinEvent by its module and struct name; the address part
// of the type is not checked. An event whose module/struct is not one of the
// recognized token or coin events yields (nil, nil, nil, nil) and the
// extractor skips it.
func DecodeEvent(e chain.Event) (*TokenEvent, *V2TokenEvent, *CoinEvent, error) {
	et, err := ParseEventType(e.Type)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decode event: %w", err)
	}

	switch {
	case et.Module == "token" && isV1TokenStruct(et.Struct):
		tok, err := decodeV1TokenEvent(et.Struct, e.Data)
		if err != nil {
			return nil, nil, nil, err
		}
		return tok, nil, nil, nil

	case (et.Module == "collection" || et.Module == "token") && isV2TokenStruct(et.Struct):
		tok, err := decodeV2TokenEvent(et.Struct, e.Data)
		if err != nil {
			return nil, nil, nil, err
		}
		return nil, tok, nil, nil

	case et.Module == "object" && et.Struct == "TransferEvent":
		tok, err := decodeV2Transfer(e.Data)
		if err != nil {
			return nil, nil, nil, err
		}
		return nil, tok, nil, nil

	case et.Module == "coin" && isCoinStruct(et.Struct):
		coin, err := decodeCoinEvent(et.Struct, e.Data)
		if err != nil {
			return nil, nil, nil, err
		}
		return nil, nil, coin, nil
	}

	return nil, nil, nil, nil
}

func isV1TokenStruct(s string) bool {
	switch s {
	case "MintTokenEvent", "BurnTokenEvent", "DepositEvent", "WithdrawEvent":
		return true
	}
	return false
}

func isV2TokenStruct(s string) bool {
	switch s {
	case "MintEvent", "BurnEvent", "Mint", "Burn":
		return true
	}
	return false
}

func isCoinStruct(s string) bool {
	switch s {
	case "WithdrawEvent", "DepositEvent":
		return true
	}
	return false
}

func decodeV1TokenEvent(structName string, data []byte) (*TokenEvent, error) {
	var p v1TokenEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed v1 token event %s: %w", structName, err)
	}

	tok := &TokenEvent{
		Collection: p.Collection,
		Amount:     parseUintLoose(p.Amount),
	}
	if p.ID.TokenDataID.Creator != "" {
		tok.TokenID = fmt.Sprintf("%s/%s/%s", p.ID.TokenDataID.Creator, p.ID.TokenDataID.Collection, p.ID.TokenDataID.Name)
		tok.Creator = p.ID.TokenDataID.Creator
		tok.Collection = p.ID.TokenDataID.Collection
	} else {
		tok.TokenID = p.Token
	}

	switch structName {
	case "MintTokenEvent":
		tok.Kind = TokenEventMint
	case "BurnTokenEvent":
		tok.Kind = TokenEventBurn
		tok.PrevOwner = p.PrevOwner
	case "DepositEvent":
		tok.Kind = TokenEventDeposit
		tok.To = p.To
	case "WithdrawEvent":
		tok.Kind = TokenEventWithdraw
		tok.From = p.From
	}
	return tok, nil
}

func decodeV2TokenEvent(structName string, data []byte) (*V2TokenEvent, error) {
	var p v2TokenEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed v2 token event %s: %w", structName, err)
	}

	tok := &V2TokenEvent{Object: firstNonEmpty(p.Object, p.Token), To: p.To, From: p.From}
	switch structName {
	case "MintEvent", "Mint":
		tok.Kind = V2TokenEventMint
	case "BurnEvent", "Burn":
		tok.Kind = V2TokenEventBurn
	}
	return tok, nil
}

func decodeV2Transfer(data []byte) (*V2TokenEvent, error) {
	var p v2TokenEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed object transfer event: %w", err)
	}
	return &V2TokenEvent{Kind: V2TokenEventTransfer, Object: p.Object, To: p.To, From: p.From}, nil
}

func decodeCoinEvent(structName string, data []byte) (*CoinEvent, error) {
	var p coinEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed coin event %s: %w", structName, err)
	}

	coin := &CoinEvent{Amount: parseUintLoose(p.Amount), Account: firstNonEmpty(p.Account, p.Acct)}
	switch structName {
	case "WithdrawEvent":
		coin.Kind = CoinEventWithdraw
	case "DepositEvent":
		coin.Kind = CoinEventDeposit
	}
	return coin, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseUintLoose(s string) uint64 {
	var v uint64
	if s == "" {
		return 0
	}
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0
	}
	return v
}
