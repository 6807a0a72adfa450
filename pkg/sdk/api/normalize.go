package api

import (
	"github.com/shopspring/decimal"

	"github.com/betbot/fourcasters/pkg/oddsmath"
)

// Normalization derives tagged prices and amounts from raw wire numbers.
// Every function here returns a normalized copy and leaves its input alone,
// so two calls over the same raw value always produce the same result.

// NormalizeOrder tags a resting order's odds with the session format and its
// stake with the account currency.
func NormalizeOrder(o Order, ctx oddsmath.Context) Order {
	price := ctx.Price(o.Odds.Decimal)
	stake := ctx.Amount(o.Bet.Decimal)
	o.Price = &price
	o.Stake = &stake
	return o
}

func normalizeLadder(orders []Order, ctx oddsmath.Context) []Order {
	if len(orders) == 0 {
		return orders
	}
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = NormalizeOrder(o, ctx)
	}
	return out
}

// NormalizeGame normalizes every order on the game's six ladders. Empty
// ladders pass through untouched; order within each ladder is preserved.
func NormalizeGame(g Game, ctx oddsmath.Context) Game {
	g.AwayMoneylines = normalizeLadder(g.AwayMoneylines, ctx)
	g.HomeMoneylines = normalizeLadder(g.HomeMoneylines, ctx)
	g.AwaySpreads = normalizeLadder(g.AwaySpreads, ctx)
	g.HomeSpreads = normalizeLadder(g.HomeSpreads, ctx)
	g.Over = normalizeLadder(g.Over, ctx)
	g.Under = normalizeLadder(g.Under, ctx)
	return g
}

// NormalizeBet normalizes a history bet: the nested game, the price, and the
// risk/win/result amounts. The raw strings may be empty, meaning the
// exchange never populated them; empty stays nil rather than becoming a
// fake zero.
func NormalizeBet(b Bet, ctx oddsmath.Context) Bet {
	if b.Game != nil {
		g := NormalizeGame(*b.Game, ctx)
		b.Game = &g
	}

	price := ctx.Price(b.Odds.Decimal)
	b.Price = &price

	b.Risk = amountFromString(b.RawRisk, ctx)
	b.Win = amountFromString(b.RawWin, ctx)
	b.Result = amountFromString(b.RawResult, ctx)

	b.commissionRate = oddsmath.EffectiveCommission(b.Origin, ctx.CommissionRate)
	return b
}

// amountFromString parses a quoted wire amount. Empty or unparseable input
// yields nil.
func amountFromString(s string, ctx oddsmath.Context) *oddsmath.Amount {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	a := ctx.Amount(d)
	return &a
}

func amountFromNumeric(n *Numeric, ctx oddsmath.Context) *oddsmath.Amount {
	if n == nil {
		return nil
	}
	a := ctx.Amount(n.Decimal)
	return &a
}

// NormalizeMatched normalizes the matched half of a position update. The
// origin must already be set; position updates carry it at the message level
// and NormalizePositionUpdate copies it down first.
func NormalizeMatched(m Matched, ctx oddsmath.Context) Matched {
	if m.Odds != nil {
		price := ctx.Price(m.Odds.Decimal)
		m.Price = &price
	}
	m.Risk = amountFromNumeric(m.RawRisk, ctx)
	m.Win = amountFromNumeric(m.RawWin, ctx)
	m.commissionRate = oddsmath.EffectiveCommission(m.Origin, ctx.CommissionRate)
	return m
}

// NormalizeUnmatched normalizes the resting half of a position update.
func NormalizeUnmatched(u Unmatched, ctx oddsmath.Context) Unmatched {
	if u.Odds != nil {
		price := ctx.Price(u.Odds.Decimal)
		u.Price = &price
	}
	u.Filled = amountFromNumeric(u.RawFilled, ctx)
	u.Offered = amountFromNumeric(u.RawOffered, ctx)
	u.Remaining = amountFromNumeric(u.RawRemaining, ctx)
	return u
}

// NormalizePlacedMatched normalizes an instant fill from a place call.
// Instant fills are always wagers against standing liquidity, so the full
// commission rate applies.
func NormalizePlacedMatched(m PlacedMatched, ctx oddsmath.Context) PlacedMatched {
	price := ctx.Price(m.Odds.Decimal)
	risk := ctx.Amount(m.RawRisk.Decimal)
	win := ctx.Amount(m.RawWin.Decimal)
	m.Price = &price
	m.Risk = &risk
	m.Win = &win
	m.commissionRate = ctx.CommissionRate
	return m
}

// NormalizePlacedUnmatched normalizes the resting remainder of a place call.
func NormalizePlacedUnmatched(u PlacedUnmatched, ctx oddsmath.Context) PlacedUnmatched {
	offered := ctx.Amount(u.RawOffered.Decimal)
	u.Offered = &offered
	return u
}

// NormalizePlaceResponse normalizes every created session in document order.
// Nil sessions are carried through untouched.
func NormalizePlaceResponse(r PlaceResponse, ctx oddsmath.Context) PlaceResponse {
	if r.Data == nil {
		return r
	}
	data := *r.Data
	if len(data.CreatedSessions) > 0 {
		sessions := make([]*PlacedSession, len(data.CreatedSessions))
		for i, s := range data.CreatedSessions {
			if s == nil {
				continue
			}
			ns := *s
			if len(ns.Matched) > 0 {
				matched := make([]PlacedMatched, len(ns.Matched))
				for j, m := range ns.Matched {
					matched[j] = NormalizePlacedMatched(m, ctx)
				}
				ns.Matched = matched
			}
			if ns.Unmatched != nil {
				nu := NormalizePlacedUnmatched(*ns.Unmatched, ctx)
				ns.Unmatched = &nu
			}
			sessions[i] = &ns
		}
		data.CreatedSessions = sessions
	}
	r.Data = &data
	return r
}

// NormalizePositionUpdate normalizes a user-channel position update. The
// exchange reports the fill origin on the message, not on the matched
// record, so it is copied down before the matched half is normalized.
func NormalizePositionUpdate(msg PositionUpdateMessage, ctx oddsmath.Context) PositionUpdateMessage {
	if msg.Matched != nil {
		m := *msg.Matched
		m.Origin = msg.Origin
		m = NormalizeMatched(m, ctx)
		msg.Matched = &m
	}
	if msg.Unmatched != nil {
		u := NormalizeUnmatched(*msg.Unmatched, ctx)
		msg.Unmatched = &u
	}
	return msg
}

// NormalizeSideOrder tags a public-channel ladder entry.
func NormalizeSideOrder(o SideOrder, ctx oddsmath.Context) SideOrder {
	price := ctx.Price(o.Odds.Decimal)
	stake := ctx.Amount(o.Bet.Decimal)
	o.Price = &price
	o.Stake = &stake
	return o
}

// NormalizeOrderUpdate normalizes every side order in an order update.
func NormalizeOrderUpdate(msg OrderUpdateMessage, ctx oddsmath.Context) OrderUpdateMessage {
	if len(msg.SideOrders) == 0 {
		return msg
	}
	orders := make([]SideOrder, len(msg.SideOrders))
	for i, o := range msg.SideOrders {
		orders[i] = NormalizeSideOrder(o, ctx)
	}
	msg.SideOrders = orders
	return msg
}
