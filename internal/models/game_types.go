package models

import "fmt"

// Wager is a stake in whole US dollars.
type Wager int

const (
	WagerOne    Wager = 1
	WagerFive   Wager = 5
	WagerTwenty Wager = 20
)

var WagerOptions = []Wager{WagerOne, WagerFive, WagerTwenty}

func (w Wager) Valid() bool {
	switch w {
	case WagerOne, WagerFive, WagerTwenty:
		return true
	}
	return false
}

func ParseWager(amount int) (Wager, error) {
	w := Wager(amount)
	if !w.Valid() {
		return 0, fmt.Errorf("invalid wager: $%d (allowed: $1, $5, $20)", amount)
	}
	return w, nil
}

type Period string

const (
	PeriodAll     Period = "all"
	PeriodMonthly Period = "monthly"
	PeriodDaily   Period = "daily"
)

var Periods = []Period{PeriodAll, PeriodMonthly, PeriodDaily}

func (p Period) Valid() bool {
	switch p {
	case PeriodAll, PeriodMonthly, PeriodDaily:
		return true
	}
	return false
}

func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid period: %q", s)
	}
	return p, nil
}
