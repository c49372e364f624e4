package model

import "testing"

func TestUniverse_Canonical(t *testing.T) {
	u := NewUniverse("AAPL", "msft", " ", "aapl", "GOOGL")

	if u.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", u.Len())
	}

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"AAPL", "AAPL", true},
		{"aapl", "AAPL", true},
		{" Aapl ", "AAPL", true},
		{"MSFT", "msft", true},
		{"ZZZZ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := u.Canonical(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Canonical(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUniverse_SymbolsIsCopy(t *testing.T) {
	u := NewUniverse("AAPL", "MSFT")
	syms := u.Symbols()
	syms[0] = "HACKED"

	if u.Symbols()[0] != "AAPL" {
		t.Fatal("Symbols() must not expose internal state")
	}
	if !u.Contains("AAPL") || u.Contains("aapl") {
		t.Error("Contains should require the canonical spelling")
	}
}
