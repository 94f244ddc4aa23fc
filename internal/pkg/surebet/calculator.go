package surebet

import (
	"errors"
	"math"
)

var (
	ErrInvalidOdds  = errors.New("odds must be greater than 1.0")
	ErrInvalidStake = errors.New("total stake must be positive")
	ErrNoArbitrage  = errors.New("odds do not form an arbitrage")
)

// Allocation is the result of splitting a total stake across the two
// outcomes of an arbitrage. Monetary values are in centavos.
type Allocation struct {
	Stake1      int64
	Stake2      int64
	ProfitCents int64
	ROI         float64
}

// Margin returns the combined implied probability of the two outcomes.
// Values below 1.0 mean the pair is a surebet.
func Margin(odds1, odds2 float64) (float64, error) {
	if odds1 <= 1 || odds2 <= 1 {
		return 0, ErrInvalidOdds
	}
	return 1/odds1 + 1/odds2, nil
}

// Allocate splits totalStake across both legs so that every outcome returns
// the same amount. Stakes are rounded to whole centavos with the rounding
// remainder pushed into leg 2, and the reported profit is the worst case of
// the two outcomes after rounding.
func Allocate(odds1, odds2 float64, totalStake int64) (*Allocation, error) {
	margin, err := Margin(odds1, odds2)
	if err != nil {
		return nil, err
	}
	if totalStake <= 0 {
		return nil, ErrInvalidStake
	}
	if margin >= 1 {
		return nil, ErrNoArbitrage
	}

	total := float64(totalStake)
	stake1 := int64(math.Round(total * (1 / odds1) / margin))
	stake2 := totalStake - stake1

	return1 := int64(math.Floor(float64(stake1) * odds1))
	return2 := int64(math.Floor(float64(stake2) * odds2))
	worst := return1
	if return2 < worst {
		worst = return2
	}

	profit := worst - totalStake
	return &Allocation{
		Stake1:      stake1,
		Stake2:      stake2,
		ProfitCents: profit,
		ROI:         float64(profit) / float64(totalStake),
	}, nil
}
