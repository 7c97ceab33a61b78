package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/contabank/ledger/internal/models"
)

var ErrMalformedAmount = errors.New("malformed amount")

// ParseAmount turns raw user input into the fixed-point amount the
// processor works with. Amounts must be positive and carry at most
// two decimal places.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: parse %q error %w", raw, ErrMalformedAmount)
	}

	if amount.Exponent() < -2 {
		return decimal.Zero, fmt.Errorf("ledger: %q has more than two decimal places error %w", raw, ErrMalformedAmount)
	}

	if amount.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero, models.ErrAmountMustBePositive
	}

	return amount, nil
}
