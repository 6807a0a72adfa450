package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/betbot/fourcasters/pkg/oddsmath"
	exhttp "github.com/betbot/fourcasters/pkg/sdk/http"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse date %s: %v", s, err)
	}
	return d
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:        srv.URL,
		SocketURL:      "wss://example.invalid/",
		Username:       "trader",
		Password:       "hunter2",
		Currency:       "USD",
		CommissionRate: decimal.RequireFromString("0.01"),
	})
}

func loginHandler(t *testing.T, oddsFormat string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "trader", req.Username)
		require.Equal(t, "hunter2", req.Password)

		resp := map[string]any{
			"data": map[string]any{
				"user": map[string]any{
					"id":         "u-1",
					"username":   "trader",
					"auth":       "session-token",
					"oddsFormat": oddsFormat,
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestLogin_NonAmericanSelectsDecimal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", loginHandler(t, "decimal"))

	c := newTestClient(t, mux)
	require.Equal(t, oddsmath.American, c.PriceFormat(), "format must start American")

	resp, err := c.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, "session-token", resp.Data.User.Auth)
	require.Equal(t, oddsmath.Decimal, c.PriceFormat())
}

func TestLogin_AmericanStaysAmerican(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", loginHandler(t, "american"))

	c := newTestClient(t, mux)
	_, err := c.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, oddsmath.American, c.PriceFormat())
}

func TestLogin_MissingUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	})

	c := newTestClient(t, mux)
	_, err := c.Login(context.Background())
	require.Error(t, err)
}

func TestGetGames_NormalizesLadders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", loginHandler(t, "decimal"))
	mux.HandleFunc("/exchange/v2/getGames", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "session-token", r.Header.Get("Authorization"))
		require.Equal(t, "NFL", r.URL.Query().Get("league"))
		require.Equal(t, "football", r.URL.Query().Get("sport"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"games":[{
			"id":"g1",
			"homeMoneylines":[{"id":"o1","odds":1.91,"bet":100}],
			"awayMoneylines":[]
		}]}}`))
	})

	c := newTestClient(t, mux)
	_, err := c.Login(context.Background())
	require.NoError(t, err)

	resp, err := c.GetGames(context.Background(), "NFL", "football")
	require.NoError(t, err)
	require.Len(t, resp.Data.Games, 1)

	o := resp.Data.Games[0].HomeMoneylines[0]
	require.NotNil(t, o.Price)
	require.Equal(t, oddsmath.Decimal, o.Price.Format)
	require.True(t, o.Price.Odds.Equal(decimal.RequireFromString("1.91")))
	require.NotNil(t, o.Stake)
	require.Equal(t, "USD", o.Stake.Currency)

	require.Empty(t, resp.Data.Games[0].AwayMoneylines)
}

func TestPlace_TwoOpposingOrders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", loginHandler(t, "decimal"))
	mux.HandleFunc("/session/v2/place", func(w http.ResponseWriter, r *http.Request) {
		// Token must travel in both the header and the body.
		require.Equal(t, "session-token", r.Header.Get("Authorization"))

		var req PlaceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "session-token", req.Token)
		require.Len(t, req.Orders, 2)
		for _, o := range req.Orders {
			require.NotEmpty(t, o.UserReference, "blank references must be auto-filled")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"createdSessions":[
			{"matched":[{"txID":"t1","orderID":"o1","risk":100,"win":91,"odds":1.91,"amount":100}]},
			{"unmatched":{"orderID":"o2","offered":100,"odds":2.1}}
		]}}`))
	})

	c := newTestClient(t, mux)
	_, err := c.Login(context.Background())
	require.NoError(t, err)

	odds := func(s string) Numeric { return num(decimal.RequireFromString(s)) }
	orders := []PlaceOrder{
		{GameID: "g1", Odds: odds("1.91"), Bet: odds("100"), Type: "moneyline", Side: "home"},
		{GameID: "g1", Odds: odds("2.1"), Bet: odds("100"), Type: "moneyline", Side: "away"},
	}
	resp, err := c.Place(context.Background(), orders)
	require.NoError(t, err)
	require.Len(t, resp.Data.CreatedSessions, 2)

	for _, o := range orders {
		require.Empty(t, o.UserReference, "references are filled on a copy, not the caller's slice")
	}

	fill := resp.Data.CreatedSessions[0].Matched[0]
	require.NotNil(t, fill.Price)
	require.False(t, fill.IsOffer())
	require.True(t, fill.CommissionRate().Equal(decimal.RequireFromString("0.01")))

	rest := resp.Data.CreatedSessions[1].Unmatched
	require.NotNil(t, rest.Offered)
	require.Equal(t, "o2", rest.OfferID())
}

func TestCancel_TwiceIsBenign(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/user/login", loginHandler(t, "decimal"))
	mux.HandleFunc("/session/cancel", func(w http.ResponseWriter, r *http.Request) {
		var req CancelRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "s1", req.SessionID)

		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			w.Write([]byte(`{"data":{"cancelledOrder":{"sideString":"home","odds":1.91,"volume":100}}}`))
			return
		}
		// Already cancelled: the exchange answers without a cancelled order.
		w.Write([]byte(`{"data":{}}`))
	})

	c := newTestClient(t, mux)
	_, err := c.Login(context.Background())
	require.NoError(t, err)

	first, err := c.Cancel(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, first.Data.CancelledOrder)

	second, err := c.Cancel(context.Background(), "s1")
	require.NoError(t, err)
	require.Nil(t, second.Data.CancelledOrder)
}

func TestRequestError_CarriesOperation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/exchange/v2/getGames", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	c := newTestClient(t, mux)
	_, err := c.GetGames(context.Background(), "NFL", "")
	require.Error(t, err)

	var reqErr *exhttp.RequestError
	require.True(t, errors.As(err, &reqErr))
	require.Equal(t, "games", reqErr.Op)
	require.Equal(t, http.StatusBadGateway, reqErr.Status)
}

func TestInitialiseChannels_RequiresLogin(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	err := c.InitialiseChannels(context.Background())
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestClose_BeforeInitialise(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	// Never initialised, closed twice: must not panic.
	c.Close()
	c.Close()
}

func TestGetGradedWagers_DateFormat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user/getGradedWagers", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "01-15-2026", r.URL.Query().Get("startDate"))
		require.Equal(t, "01-31-2026", r.URL.Query().Get("endDate"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"graded":[{"id":"b1","odds":2,"origin":"offer","risk":"10","win":"10"}]}}`))
	})

	c := newTestClient(t, mux)

	start := mustDate(t, "2026-01-15")
	end := mustDate(t, "2026-01-31")
	resp, err := c.GetGradedWagers(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, resp.Data.Graded, 1)

	b := resp.Data.Graded[0]
	require.True(t, b.IsOffer())
	require.True(t, b.CommissionRate().IsZero())
	require.NotNil(t, b.Risk)
}
