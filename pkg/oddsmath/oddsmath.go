// Package oddsmath carries the value types used to normalize raw exchange
// numbers: a price tagged with the odds format it was quoted in, a monetary
// amount tagged with its currency, and the commission arithmetic applied to
// settled fills. Everything here is pure; no I/O, no state.
package oddsmath

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrZeroRisk is returned when a commission-adjusted price is requested
	// for a fill with zero risk. The division is undefined; callers get an
	// error instead of an Inf/NaN sneaking downstream.
	ErrZeroRisk = errors.New("oddsmath: zero risk in commission-adjusted price")

	// ErrCurrencyMismatch is returned when two amounts in different
	// currencies are combined. Conversion is out of scope by design.
	ErrCurrencyMismatch = errors.New("oddsmath: currency mismatch")
)

// PriceFormat identifies how raw odds numbers are to be read. The exchange
// fixes the format per session at login; it never changes mid-session.
type PriceFormat int

const (
	American PriceFormat = iota
	Decimal
)

func (f PriceFormat) String() string {
	switch f {
	case American:
		return "american"
	case Decimal:
		return "decimal"
	default:
		return fmt.Sprintf("PriceFormat(%d)", int(f))
	}
}

// ParseOddsFormat maps the login response's oddsFormat field to a
// PriceFormat. Only "american" selects American; the exchange treats every
// other preference as decimal.
func ParseOddsFormat(s string) PriceFormat {
	if strings.EqualFold(strings.TrimSpace(s), "american") {
		return American
	}
	return Decimal
}

// OriginOffer marks a fill that started life as a resting offer posted by
// the user. Offers are commission-exempt; everything else pays the
// configured rate.
const OriginOffer = "offer"

// Price tags a raw odds number with the format it must be interpreted
// under. No format conversion happens here — the exchange already quotes
// odds in the session's active format, so the tag exists purely to stop
// downstream code from mixing formats.
type Price struct {
	Format PriceFormat
	Odds   decimal.Decimal
}

// NewPrice builds a Price from a raw odds number. Two prices built from the
// same (format, odds) pair compare equal.
func NewPrice(format PriceFormat, odds decimal.Decimal) Price {
	return Price{Format: format, Odds: odds}
}

func (p Price) Equal(other Price) bool {
	return p.Format == other.Format && p.Odds.Equal(other.Odds)
}

func (p Price) String() string {
	return fmt.Sprintf("%s (%s)", p.Odds.String(), p.Format)
}

// Amount pairs a decimal quantity with the currency it was quoted in. The
// pairing is the whole point: an Amount never silently reinterprets its
// currency, and mixing currencies is an error the caller must handle.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

func NewAmount(value decimal.Decimal, currency string) Amount {
	return Amount{Value: value, Currency: currency}
}

func (a Amount) Equal(other Amount) bool {
	return a.Currency == other.Currency && a.Value.Equal(other.Value)
}

// Add combines two amounts in the same currency.
func (a Amount) Add(other Amount) (Amount, error) {
	if a.Currency != other.Currency {
		return Amount{}, errors.Wrapf(ErrCurrencyMismatch, "%s + %s", a.Currency, other.Currency)
	}
	return Amount{Value: a.Value.Add(other.Value), Currency: a.Currency}, nil
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Value.String(), a.Currency)
}

// Context is the settlement context threaded through every normalization
// call: the session's odds format, the account currency, and the commission
// rate charged on matched wagers.
type Context struct {
	Format         PriceFormat
	Currency       string
	CommissionRate decimal.Decimal
}

// NewContext builds a settlement context.
func NewContext(format PriceFormat, currency string, commissionRate decimal.Decimal) Context {
	return Context{Format: format, Currency: currency, CommissionRate: commissionRate}
}

// Price tags raw odds with this context's format.
func (c Context) Price(odds decimal.Decimal) Price {
	return NewPrice(c.Format, odds)
}

// Amount tags a raw value with this context's currency.
func (c Context) Amount(value decimal.Decimal) Amount {
	return NewAmount(value, c.Currency)
}

// EffectiveCommission returns the commission rate actually charged for a
// fill with the given origin. Offers posted by the user are makers and pay
// nothing; fills against standing liquidity pay the configured rate
// verbatim.
func EffectiveCommission(origin string, rate decimal.Decimal) decimal.Decimal {
	if origin == OriginOffer {
		return decimal.Zero
	}
	return rate
}

// DecimalWithCommission computes the commission-adjusted decimal price of a
// fill, win/risk + 1. Risk of zero is a reportable error, not an infinity.
func DecimalWithCommission(win, risk Amount) (decimal.Decimal, error) {
	if win.Currency != risk.Currency {
		return decimal.Decimal{}, errors.Wrapf(ErrCurrencyMismatch, "win %s, risk %s", win.Currency, risk.Currency)
	}
	if risk.Value.IsZero() {
		return decimal.Decimal{}, ErrZeroRisk
	}
	return win.Value.Div(risk.Value).Add(decimal.NewFromInt(1)), nil
}
