package remap

import (
	"testing"
	"time"

	"aptos-nft-indexer/internal/chain"
	"aptos-nft-indexer/internal/config"
	"aptos-nft-indexer/internal/models"
)

func testMarketplaceConfig() config.NFTMarketplaceConfig {
	return config.NFTMarketplaceConfig{
		Name:            "wapal",
		ContractAddress: "0xcafe",
		EventModelMapping: map[string]string{
			"0xcafe::listing::ListEvent": string(models.EventKindListEvent),
		},
		Events: map[string]map[string][]config.ConfigDbColumn{
			"0xcafe::listing::ListEvent": {
				"seller": {{Table: "activities", Column: "seller"}},
				"price":  {{Table: "activities", Column: "price"}},
				"nft_id": {{Table: "activities", Column: "nft_id"}},
			},
		},
	}
}

func TestRemapSkipsUnmappedEventTypes(t *testing.T) {
	t.Parallel()

	tx := chain.Transaction{
		Version: 1,
		Events: []chain.Event{
			{Index: 0, Type: "0xcafe::other::Unrelated", Data: []byte(`{}`)},
		},
	}
	got := Remap(tx, testMarketplaceConfig())
	if len(got) != 0 {
		t.Fatalf("expected no activities, got %d", len(got))
	}
}

func TestRemapFillsFrameAndConfiguredColumns(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tx := chain.Transaction{
		Version:     42,
		BlockHeight: 7,
		Hash:        "0xhash",
		Timestamp:   ts,
		Events: []chain.Event{
			{Index: 3, Type: "0xcafe::listing::ListEvent", Data: []byte(`{"seller":"0xseller","price":"1500","nft_id":"0xtoken"}`)},
		},
	}

	got := Remap(tx, testMarketplaceConfig())
	if len(got) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(got))
	}
	a := got[0]
	if a.ActivityType != models.ActivityList {
		t.Fatalf("ActivityType = %v, want list", a.ActivityType)
	}
	if a.Seller != "0xseller" || a.Price != 1500 || a.NftID != "0xtoken" {
		t.Fatalf("configured columns not applied: %+v", a)
	}
	if a.TxIndex != 42*100_000+3 {
		t.Fatalf("TxIndex = %d, want %d", a.TxIndex, 42*100_000+3)
	}
	if !a.Valid() {
		t.Fatalf("expected activity to be valid: %+v", a)
	}
}

func TestRemapAppliesResourceAugmentation(t *testing.T) {
	t.Parallel()

	mcfg := testMarketplaceConfig()
	mcfg.Resources = map[string]map[string][]config.ConfigDbColumn{
		"0xcafe::listing::Listing": {
			"nonce": {{Table: "activities", Column: "nonce"}},
		},
	}

	tx := chain.Transaction{
		Version: 1,
		Hash:    "0xhash",
		Events: []chain.Event{
			{Index: 0, Type: "0xcafe::listing::ListEvent", Data: []byte(`{"seller":"0xseller","price":"10","nft_id":"0xt"}`)},
		},
		Changes: []chain.WriteSetChange{
			{
				Type:         chain.ChangeWriteResource,
				Address:      "0xlisting1",
				ResourceType: "0xcafe::listing::Listing",
				Data:         []byte(`{"nonce":"abc123"}`),
			},
		},
	}

	got := Remap(tx, mcfg)
	if len(got) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(got))
	}
	if got[0].Nonce != "abc123" {
		t.Fatalf("nonce not augmented from resource: %+v", got[0])
	}
}

func TestRemapDropsActivitiesMissingContractOrMarketplace(t *testing.T) {
	t.Parallel()

	mcfg := testMarketplaceConfig()
	mcfg.ContractAddress = "not-a-valid-address"

	tx := chain.Transaction{
		Version: 1,
		Events: []chain.Event{
			{Index: 0, Type: "0xcafe::listing::ListEvent", Data: []byte(`{}`)},
		},
	}
	got := Remap(tx, mcfg)
	if got != nil {
		t.Fatalf("expected nil activities for invalid contract address, got %v", got)
	}
}
