package identity

import "testing"

func TestCollectionIDFromAddressIsPure(t *testing.T) {
	t.Parallel()

	a := CollectionIDFromAddress("0xdeadbeef")
	b := CollectionIDFromAddress("0xdeadbeef")
	if a != b {
		t.Fatalf("CollectionIDFromAddress not pure: %q != %q", a, b)
	}
	if c := CollectionIDFromAddress("0xcafebabe"); c == a {
		t.Fatalf("different addresses produced the same id")
	}
}

func TestCollectionIDFromCreatorNameIsPure(t *testing.T) {
	t.Parallel()

	a := CollectionIDFromCreatorName("0xalice", "Monkeys")
	b := CollectionIDFromCreatorName("0xalice", "Monkeys")
	if a != b {
		t.Fatalf("CollectionIDFromCreatorName not pure")
	}
	if c := CollectionIDFromCreatorName("0xalice", "Apes"); c == a {
		t.Fatalf("different names produced the same id")
	}
}

func TestTxIndex(t *testing.T) {
	t.Parallel()

	if got := TxIndex(5, 3); got != 500_003 {
		t.Fatalf("TxIndex(5,3) = %d, want 500003", got)
	}
}

func TestActivityIDIsPure(t *testing.T) {
	t.Parallel()

	a := ActivityID(TxIndex(5, 3))
	b := ActivityID(TxIndex(5, 3))
	if a != b {
		t.Fatalf("ActivityID not pure")
	}
}

func TestSoloBidIDIsPure(t *testing.T) {
	t.Parallel()

	a := SoloBidID("0xtoken")
	b := SoloBidID("0xtoken")
	if a != b {
		t.Fatalf("SoloBidID not pure")
	}
}

func TestBidStorageIDScopesByMarketAndBidder(t *testing.T) {
	t.Parallel()

	base := BidStorageID("0xmarket1", SoloBidID("0xtoken"), "0xbidder1")
	if BidStorageID("0xmarket2", SoloBidID("0xtoken"), "0xbidder1") == base {
		t.Fatalf("bids on the same token from two marketplaces collided")
	}
	if BidStorageID("0xmarket1", SoloBidID("0xtoken"), "0xbidder2") == base {
		t.Fatalf("bids on the same token from two bidders collided")
	}
	if BidStorageID("0xmarket1", SoloBidID("0xtoken"), "0xbidder1") != base {
		t.Fatalf("BidStorageID not pure")
	}
}
