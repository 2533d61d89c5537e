package decoder

import "testing"

func TestParseEventTypeRejectsShortStrings(t *testing.T) {
	t.Parallel()

	cases := []string{"", "foo", "foo::bar", "0x1::bar"}
	for _, c := range cases {
		if _, err := ParseEventType(c); err == nil {
			t.Fatalf("ParseEventType(%q): expected error, got nil", c)
		}
	}
}

func TestParseEventTypeNormalizesAddress(t *testing.T) {
	t.Parallel()

	et, err := ParseEventType("0x1::token::MintEvent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(et.Address) != 66 {
		t.Fatalf("address length = %d, want 66", len(et.Address))
	}
	if et.Module != "token" || et.Struct != "MintEvent" {
		t.Fatalf("unexpected module/struct: %+v", et)
	}
	want := "0x0000000000000000000000000000000000000000000000000000000000000001::token::MintEvent"
	if et.String() != want {
		t.Fatalf("String() = %q, want %q", et.String(), want)
	}
}

func TestIsFrameworkEvent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want bool
	}{
		{"0x1::token::MintEvent", true},
		{"0xf::token::MintEvent", true},
		{"0x10::token::MintEvent", false},
		{"0xcafe::marketplace::ListEvent", false},
	}

	for _, c := range cases {
		et, err := ParseEventType(c.raw)
		if err != nil {
			t.Fatalf("ParseEventType(%q): %v", c.raw, err)
		}
		if got := IsFrameworkEvent(et); got != c.want {
			t.Fatalf("IsFrameworkEvent(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}
