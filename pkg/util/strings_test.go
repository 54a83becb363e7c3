package util

import (
	"slices"
	"testing"
)

func TestParseIntList(t *testing.T) {
	if got := ParseIntList(" 5, 20,x,-3,0,60 "); !slices.Equal(got, []int{5, 20, 60}) {
		t.Fatalf("ParseIntList = %v", got)
	}
	if got := ParseIntList(""); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestNormalizeTicker(t *testing.T) {
	if got := NormalizeTicker("  brk.b "); got != "BRK.B" {
		t.Fatalf("NormalizeTicker = %q", got)
	}
}

func TestValidTicker(t *testing.T) {
	for _, s := range []string{"aapl", "BRK.B", "^GSPC", "EURUSD=X", "BTC-USD"} {
		if !ValidTicker(s) {
			t.Errorf("ValidTicker(%q) = false", s)
		}
	}
	for _, s := range []string{"", "..", "../escape", "A/B", `A\B`, "AAPL US", "ABCDEFGHIJKLMNOPQ"} {
		if ValidTicker(s) {
			t.Errorf("ValidTicker(%q) = true", s)
		}
	}
}
