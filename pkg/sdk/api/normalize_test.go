package api

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/betbot/fourcasters/pkg/oddsmath"
)

func testContext() oddsmath.Context {
	return oddsmath.NewContext(oddsmath.Decimal, "USD", decimal.RequireFromString("0.01"))
}

func TestNumeric_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain number", `1.91`, "1.91"},
		{"integer", `150`, "150"},
		{"quoted number", `"10.50"`, "10.5"},
		{"quoted negative", `"-110"`, "-110"},
		{"null", `null`, "0"},
		{"empty string", `""`, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Numeric
			if err := json.Unmarshal([]byte(tt.in), &n); err != nil {
				t.Fatalf("unmarshal %s: %v", tt.in, err)
			}
			if !n.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("got %s, want %s", n, tt.want)
			}
		})
	}
}

func TestNumeric_UnmarshalJSON_Garbage(t *testing.T) {
	var n Numeric
	if err := json.Unmarshal([]byte(`"not a number"`), &n); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
}

func TestNormalizeOrder(t *testing.T) {
	o := Order{
		ID:   "o1",
		Odds: num(decimal.RequireFromString("1.91")),
		Bet:  num(decimal.NewFromInt(100)),
	}

	got := NormalizeOrder(o, testContext())

	if got.Price == nil || got.Price.Format != oddsmath.Decimal {
		t.Fatalf("price not tagged with session format: %+v", got.Price)
	}
	if !got.Price.Odds.Equal(decimal.RequireFromString("1.91")) {
		t.Errorf("price odds = %s, want 1.91", got.Price.Odds)
	}
	if got.Stake == nil || got.Stake.Currency != "USD" {
		t.Fatalf("stake not tagged with currency: %+v", got.Stake)
	}

	// Input must be untouched.
	if o.Price != nil || o.Stake != nil {
		t.Error("NormalizeOrder mutated its input")
	}
}

func TestNormalizeGame_EmptyLadders(t *testing.T) {
	g := Game{ID: "g1"}
	got := NormalizeGame(g, testContext())

	for name, ladder := range map[string][]Order{
		"awayMoneylines": got.AwayMoneylines,
		"homeMoneylines": got.HomeMoneylines,
		"awaySpreads":    got.AwaySpreads,
		"homeSpreads":    got.HomeSpreads,
		"over":           got.Over,
		"under":          got.Under,
	} {
		if len(ladder) != 0 {
			t.Errorf("%s should stay empty, got %d orders", name, len(ladder))
		}
	}
}

func TestNormalizeGame_LadderOrderPreserved(t *testing.T) {
	g := Game{
		HomeMoneylines: []Order{
			{ID: "a", Odds: num(decimal.RequireFromString("1.5"))},
			{ID: "b", Odds: num(decimal.RequireFromString("1.6"))},
			{ID: "c", Odds: num(decimal.RequireFromString("1.7"))},
		},
	}

	got := NormalizeGame(g, testContext())

	if len(got.HomeMoneylines) != 3 {
		t.Fatalf("ladder length changed: %d", len(got.HomeMoneylines))
	}
	for i, want := range []string{"a", "b", "c"} {
		o := got.HomeMoneylines[i]
		if o.ID != want {
			t.Errorf("ladder[%d] = %s, want %s", i, o.ID, want)
		}
		if o.Price == nil {
			t.Errorf("ladder[%d] not normalized", i)
		}
	}
}

func TestNormalizeBet_AbsentAmountsStayNil(t *testing.T) {
	b := Bet{
		ID:     "b1",
		Odds:   num(decimal.RequireFromString("2.2")),
		Origin: "wager",
		// risk/win/result never populated by the exchange
	}

	got := NormalizeBet(b, testContext())

	if got.Price == nil {
		t.Fatal("price missing")
	}
	if got.Risk != nil || got.Win != nil || got.Result != nil {
		t.Errorf("absent wire fields must stay nil: risk=%v win=%v result=%v",
			got.Risk, got.Win, got.Result)
	}
}

func TestNormalizeBet_PopulatedAmounts(t *testing.T) {
	b := Bet{
		ID:        "b2",
		Odds:      num(decimal.RequireFromString("2.5")),
		Origin:    "offer",
		RawRisk:   "100",
		RawWin:    "150",
		RawResult: "150",
	}

	got := NormalizeBet(b, testContext())

	if got.Risk == nil || !got.Risk.Value.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("risk = %v, want 100 USD", got.Risk)
	}
	if got.Win == nil || got.Win.Currency != "USD" {
		t.Fatalf("win = %v, want USD amount", got.Win)
	}

	// Offer origin means no commission.
	if !got.CommissionRate().IsZero() {
		t.Errorf("offer commission = %s, want 0", got.CommissionRate())
	}
	if !got.IsOffer() {
		t.Error("origin offer should report IsOffer")
	}
}

func TestNormalizeBet_WagerCommission(t *testing.T) {
	b := Bet{
		ID:      "b3",
		Odds:    num(decimal.RequireFromString("2")),
		Origin:  "wager",
		RawRisk: "10",
		RawWin:  "10",
	}

	got := NormalizeBet(b, testContext())

	if !got.CommissionRate().Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("wager commission = %s, want 0.01", got.CommissionRate())
	}

	price, err := got.DecimalPriceWithCommission()
	if err != nil {
		t.Fatalf("DecimalPriceWithCommission: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(2)) {
		t.Errorf("decimal price = %s, want 2", price)
	}
}

func TestBet_DecimalPrice_NotNormalized(t *testing.T) {
	b := &Bet{ID: "raw"}
	if _, err := b.DecimalPriceWithCommission(); err == nil {
		t.Fatal("expected error on un-normalized record")
	}
}

func TestNormalizePlaceResponse(t *testing.T) {
	n := func(s string) Numeric { return num(decimal.RequireFromString(s)) }

	resp := PlaceResponse{
		Data: &PlaceData{
			CreatedSessions: []*PlacedSession{
				{
					Matched: []PlacedMatched{
						{TxID: "t1", Odds: n("1.91"), RawRisk: n("100"), RawWin: n("91")},
					},
					Unmatched: &PlacedUnmatched{OrderID: "u1", RawOffered: n("50"), Odds: n("1.91")},
				},
				nil,
				{Error: "insufficient balance"},
			},
		},
	}

	got := NormalizePlaceResponse(resp, testContext())

	sessions := got.Data.CreatedSessions
	if len(sessions) != 3 {
		t.Fatalf("session count changed: %d", len(sessions))
	}
	if sessions[1] != nil {
		t.Error("nil session should pass through as nil")
	}

	m := sessions[0].Matched[0]
	if m.Price == nil || m.Risk == nil || m.Win == nil {
		t.Fatal("instant fill not normalized")
	}
	// Instant fills are wagers; commission always applies.
	if m.IsOffer() {
		t.Error("instant fill must not report IsOffer")
	}
	if !m.CommissionRate().Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("instant fill commission = %s, want configured rate", m.CommissionRate())
	}

	u := sessions[0].Unmatched
	if u.Offered == nil || !u.Offered.Value.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unmatched offered = %v, want 50 USD", u.Offered)
	}

	// Input untouched.
	if resp.Data.CreatedSessions[0].Matched[0].Price != nil {
		t.Error("NormalizePlaceResponse mutated its input")
	}
}

func TestNormalizePositionUpdate_OriginCopiedToMatched(t *testing.T) {
	odds := num(decimal.RequireFromString("1.91"))
	risk := num(decimal.NewFromInt(100))
	win := num(decimal.NewFromInt(91))

	msg := PositionUpdateMessage{
		GameID: "g1",
		Origin: "offer",
		Matched: &Matched{
			TxID:    "t1",
			Odds:    &odds,
			RawRisk: &risk,
			RawWin:  &win,
		},
	}

	got := NormalizePositionUpdate(msg, testContext())

	if got.Matched.Origin != "offer" {
		t.Fatalf("matched origin = %q, want message origin copied down", got.Matched.Origin)
	}
	if !got.Matched.IsOffer() {
		t.Error("offer-origin match should report IsOffer")
	}
	if !got.Matched.CommissionRate().IsZero() {
		t.Errorf("offer commission = %s, want 0", got.Matched.CommissionRate())
	}
	if got.Matched.Price == nil || got.Matched.Risk == nil || got.Matched.Win == nil {
		t.Fatal("matched half not normalized")
	}
}

func TestNormalizeUnmatched_OptionalFieldsGateDerived(t *testing.T) {
	offered := num(decimal.NewFromInt(50))

	u := Unmatched{
		OrderID:    "u1",
		RawOffered: &offered,
		// odds, filled, remaining absent
	}

	got := NormalizeUnmatched(u, testContext())

	if got.Price != nil {
		t.Error("absent odds must not produce a price")
	}
	if got.Filled != nil || got.Remaining != nil {
		t.Error("absent amounts must stay nil")
	}
	if got.Offered == nil || !got.Offered.Value.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("offered = %v, want 50 USD", got.Offered)
	}
	if got.OfferID() != "u1" {
		t.Errorf("OfferID = %q, want u1", got.OfferID())
	}
}

func TestNormalizeOrderUpdate(t *testing.T) {
	msg := OrderUpdateMessage{
		GameID: "g1",
		SideOrders: []SideOrder{
			{ID: "s1", Odds: num(decimal.RequireFromString("2.1")), Bet: num(decimal.NewFromInt(25))},
		},
	}

	got := NormalizeOrderUpdate(msg, testContext())

	s := got.SideOrders[0]
	if s.Price == nil || s.Price.Format != oddsmath.Decimal {
		t.Fatal("side order price not normalized")
	}
	if s.Stake == nil || s.Stake.Currency != "USD" {
		t.Fatal("side order stake not normalized")
	}
	if msg.SideOrders[0].Price != nil {
		t.Error("NormalizeOrderUpdate mutated its input")
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	o := Order{ID: "o1", Odds: num(decimal.RequireFromString("1.91")), Bet: num(decimal.NewFromInt(10))}

	a := NormalizeOrder(o, testContext())
	b := NormalizeOrder(o, testContext())

	if !a.Price.Equal(*b.Price) {
		t.Error("same input normalized twice produced different prices")
	}
	if !a.Stake.Equal(*b.Stake) {
		t.Error("same input normalized twice produced different stakes")
	}
}
