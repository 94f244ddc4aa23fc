package surebet

import (
	"errors"
	"testing"
)

func TestMargin(t *testing.T) {
	tests := []struct {
		name    string
		odds1   float64
		odds2   float64
		want    float64
		wantErr error
	}{
		{name: "surebet pair", odds1: 2.10, odds2: 2.10, want: 0.95238},
		{name: "bookmaker margin", odds1: 1.90, odds2: 1.90, want: 1.05263},
		{name: "odds at one", odds1: 1.0, odds2: 2.5, wantErr: ErrInvalidOdds},
		{name: "negative odds", odds1: -2, odds2: 2.5, wantErr: ErrInvalidOdds},
	}

	for _, tt := range tests {
		got, err := Margin(tt.odds1, tt.odds2)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got < tt.want-0.0001 || got > tt.want+0.0001 {
			t.Fatalf("%s: Margin = %v, want ~%v", tt.name, got, tt.want)
		}
	}
}

func TestAllocate_EqualOdds(t *testing.T) {
	// 2.10 / 2.10 with R$1000.00: even split, ~5% guaranteed return.
	alloc, err := Allocate(2.10, 2.10, 100000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alloc.Stake1+alloc.Stake2 != 100000 {
		t.Fatalf("stakes must sum to total: %d + %d", alloc.Stake1, alloc.Stake2)
	}
	if alloc.Stake1 != 50000 {
		t.Fatalf("equal odds should split evenly, got %d", alloc.Stake1)
	}
	if alloc.ProfitCents <= 0 {
		t.Fatalf("expected guaranteed profit, got %d", alloc.ProfitCents)
	}
	if alloc.ROI < 0.04 || alloc.ROI > 0.06 {
		t.Fatalf("expected ~5%% ROI, got %v", alloc.ROI)
	}
}

func TestAllocate_BothOutcomesCovered(t *testing.T) {
	alloc, err := Allocate(1.55, 3.20, 250000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Whatever happens, the winning leg must return more than the total.
	return1 := float64(alloc.Stake1) * 1.55
	return2 := float64(alloc.Stake2) * 3.20
	if return1 < 250000 || return2 < 250000 {
		t.Fatalf("a leg pays below total stake: %v / %v", return1, return2)
	}
	if alloc.ProfitCents <= 0 {
		t.Fatalf("expected guaranteed profit, got %d", alloc.ProfitCents)
	}
}

func TestAllocate_Errors(t *testing.T) {
	if _, err := Allocate(1.90, 1.90, 100000); !errors.Is(err, ErrNoArbitrage) {
		t.Fatalf("expected ErrNoArbitrage, got %v", err)
	}
	if _, err := Allocate(2.10, 2.10, 0); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("expected ErrInvalidStake, got %v", err)
	}
	if _, err := Allocate(0, 2.10, 100000); !errors.Is(err, ErrInvalidOdds) {
		t.Fatalf("expected ErrInvalidOdds, got %v", err)
	}
}
