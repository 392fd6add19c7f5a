package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func NewRequestID() string {
	return fmt.Sprintf("req_%s", uuid.NewString())
}

// ParseAmountSOL parses user input for a withdrawal amount. The result is
// always positive and finite.
func ParseAmountSOL(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("amount must be a number: %q", raw)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be greater than zero")
	}
	f, _ := d.Float64()
	return f, nil
}

func FormatUSD(amount float64) string {
	return "$" + decimal.NewFromFloat(amount).StringFixed(2)
}

func FormatSOL(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(4) + " SOL"
}
