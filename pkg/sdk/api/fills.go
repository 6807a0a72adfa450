package api

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/fourcasters/pkg/oddsmath"
)

// ErrNotNormalized is returned when settlement math is requested on a
// record whose derived fields were never populated. Records straight off
// the wire must pass through normalization first.
var ErrNotNormalized = errors.New("api: record not normalized")

// Fill is the shared shape of the three matched-record variants: a history
// bet, a streamed position match, and an instant fill from a place call.
// Commission handling is per-variant; offers pay nothing, wagers pay the
// configured rate, and instant fills are always wagers.
type Fill interface {
	// OfferID is the session ID a cancel call expects.
	OfferID() string
	// BetID is the exchange transaction ID of the match.
	BetID() string
	FillPrice() *oddsmath.Price
	FillRisk() *oddsmath.Amount
	FillWin() *oddsmath.Amount
	IsOffer() bool
	CommissionRate() decimal.Decimal
	// DecimalPriceWithCommission is win/risk + 1 in decimal odds.
	DecimalPriceWithCommission() (decimal.Decimal, error)
}

var (
	_ Fill = (*Bet)(nil)
	_ Fill = (*Matched)(nil)
	_ Fill = (*PlacedMatched)(nil)
)

func fillDecimalPrice(win, risk *oddsmath.Amount) (decimal.Decimal, error) {
	if win == nil || risk == nil {
		return decimal.Decimal{}, ErrNotNormalized
	}
	return oddsmath.DecimalWithCommission(*win, *risk)
}

// Bet

func (b *Bet) OfferID() string { return b.ID }

func (b *Bet) BetID() string { return b.TxID }

func (b *Bet) FillPrice() *oddsmath.Price { return b.Price }

func (b *Bet) FillRisk() *oddsmath.Amount { return b.Risk }

func (b *Bet) FillWin() *oddsmath.Amount { return b.Win }

func (b *Bet) IsOffer() bool { return b.Origin == oddsmath.OriginOffer }

func (b *Bet) CommissionRate() decimal.Decimal { return b.commissionRate }

func (b *Bet) DecimalPriceWithCommission() (decimal.Decimal, error) {
	return fillDecimalPrice(b.Win, b.Risk)
}

// Matched

func (m *Matched) OfferID() string { return m.OrderID }

func (m *Matched) BetID() string { return m.TxID }

func (m *Matched) FillPrice() *oddsmath.Price { return m.Price }

func (m *Matched) FillRisk() *oddsmath.Amount { return m.Risk }

func (m *Matched) FillWin() *oddsmath.Amount { return m.Win }

func (m *Matched) IsOffer() bool { return m.Origin == oddsmath.OriginOffer }

func (m *Matched) CommissionRate() decimal.Decimal { return m.commissionRate }

func (m *Matched) DecimalPriceWithCommission() (decimal.Decimal, error) {
	return fillDecimalPrice(m.Win, m.Risk)
}

// PlacedMatched

func (p *PlacedMatched) OfferID() string { return p.OrderID }

func (p *PlacedMatched) BetID() string { return p.TxID }

func (p *PlacedMatched) FillPrice() *oddsmath.Price { return p.Price }

func (p *PlacedMatched) FillRisk() *oddsmath.Amount { return p.Risk }

func (p *PlacedMatched) FillWin() *oddsmath.Amount { return p.Win }

// IsOffer is always false: instantly matched from place means wager.
func (p *PlacedMatched) IsOffer() bool { return false }

func (p *PlacedMatched) CommissionRate() decimal.Decimal { return p.commissionRate }

func (p *PlacedMatched) DecimalPriceWithCommission() (decimal.Decimal, error) {
	return fillDecimalPrice(p.Win, p.Risk)
}
