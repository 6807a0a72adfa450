package api

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/fourcasters/pkg/oddsmath"
	exhttp "github.com/betbot/fourcasters/pkg/sdk/http"
	"github.com/betbot/fourcasters/pkg/sdk/websocket"
)

// ErrNotLoggedIn is returned when an operation that needs a session token
// runs before a successful Login.
var ErrNotLoggedIn = errors.New("api: not logged in")

const gradedDateLayout = "01-02-2006"

// Config holds everything a Client needs to talk to the exchange.
type Config struct {
	BaseURL   string
	SocketURL string
	Username  string
	Password  string

	// Currency tags every derived amount; defaults to USD.
	Currency string
	// CommissionRate is charged on wager fills; offers are exempt.
	CommissionRate decimal.Decimal

	TradingTimeout   time.Duration
	ReportingTimeout time.Duration

	Socket *websocket.Config
	Logger *logrus.Entry
}

// Client is the exchange facade: authenticated REST operations plus the two
// push channels. All returned records are already normalized against the
// session's price format, currency and commission rate.
type Client struct {
	username       string
	password       string
	currency       string
	commissionRate decimal.Decimal

	http    *exhttp.Client
	manager *websocket.Manager
	log     *logrus.Entry

	// Session state. The price format is American until Login learns
	// otherwise, and never changes again within a session.
	sessionMu sync.RWMutex
	token     string
	format    oddsmath.PriceFormat

	subMu        sync.RWMutex
	positionSubs []func(PositionUpdateMessage)
	gameSubs     []func(GameUpdateMessage)
	orderSubs    []func(OrderUpdateMessage)
}

// NewClient creates an exchange client. It does not touch the network;
// call Login first, then InitialiseChannels for the push feeds.
func NewClient(cfg Config) *Client {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.CommissionRate.IsZero() {
		cfg.CommissionRate = decimal.NewFromInt(1)
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	c := &Client{
		username:       cfg.Username,
		password:       cfg.Password,
		currency:       cfg.Currency,
		commissionRate: cfg.CommissionRate,
		http:           exhttp.NewClient(cfg.BaseURL, cfg.TradingTimeout, cfg.ReportingTimeout),
		manager:        websocket.NewManager(cfg.SocketURL, cfg.Username, cfg.Socket, log),
		log:            log.WithField("component", "exchange"),
		format:         oddsmath.American,
	}

	c.manager.HandleUser(websocket.EventPositionUpdate, c.handlePositionUpdate)
	c.manager.HandlePublic(websocket.EventGameUpdate, c.handleGameUpdate)
	c.manager.HandlePublic(websocket.EventOrderUpdate, c.handleOrderUpdate)

	return c
}

// Currency returns the account currency amounts are tagged with.
func (c *Client) Currency() string {
	return c.currency
}

// CommissionRate returns the configured wager commission rate.
func (c *Client) CommissionRate() decimal.Decimal {
	return c.commissionRate
}

// PriceFormat returns the session's active odds format.
func (c *Client) PriceFormat() oddsmath.PriceFormat {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.format
}

func (c *Client) sessionToken() string {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.token
}

// context snapshots the settlement context for normalization.
func (c *Client) context() oddsmath.Context {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return oddsmath.NewContext(c.format, c.currency, c.commissionRate)
}

// Login authenticates and stores the session token. The account's odds
// preference fixes the price format for the rest of the session: anything
// other than "american" means decimal.
func (c *Client) Login(ctx context.Context) (*LoginResponse, error) {
	req := LoginRequest{Username: c.username, Password: c.password}

	var resp LoginResponse
	if err := c.http.Post(ctx, exhttp.Trading, "login", "user/login", req, "", &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.User == nil {
		return nil, errors.New("api: login response missing user")
	}

	user := resp.Data.User
	c.sessionMu.Lock()
	c.token = user.Auth
	c.format = oddsmath.ParseOddsFormat(user.OddsFormat)
	c.sessionMu.Unlock()

	c.log.WithFields(logrus.Fields{
		"username": user.Username,
		"format":   c.PriceFormat().String(),
	}).Info("logged in")

	return &resp, nil
}

// InitialiseChannels opens (or reopens) the user and public push channels
// with the current session token. Existing channels are torn down first.
func (c *Client) InitialiseChannels(ctx context.Context) error {
	token := c.sessionToken()
	if token == "" {
		return ErrNotLoggedIn
	}
	return c.manager.Initialise(ctx, token)
}

// Close tears down the push channels. Safe to call repeatedly, and before
// InitialiseChannels was ever called.
func (c *Client) Close() {
	c.manager.Close()
}

// GetParticipants fetches the participant reference data.
func (c *Client) GetParticipants(ctx context.Context) (*ParticipantsResponse, error) {
	var resp ParticipantsResponse
	if err := c.http.Get(ctx, exhttp.Trading, "participants", "exchange/getParticipants", nil, c.sessionToken(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetLeagues fetches the league list.
func (c *Client) GetLeagues(ctx context.Context) (*LeaguesResponse, error) {
	var resp LeaguesResponse
	if err := c.http.Get(ctx, exhttp.Trading, "leagues", "exchange/getLeagues", nil, c.sessionToken(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetGames fetches games for a league, optionally filtered by sport, with
// every ladder order normalized. league defaults to "upcoming".
func (c *Client) GetGames(ctx context.Context, league, sport string) (*GamesResponse, error) {
	if league == "" {
		league = "upcoming"
	}
	query := map[string]string{"league": league}
	if sport != "" {
		query["sport"] = sport
	}

	var resp GamesResponse
	if err := c.http.Get(ctx, exhttp.Reporting, "games", "exchange/v2/getGames", query, c.sessionToken(), &resp); err != nil {
		return nil, err
	}

	if resp.Data != nil && len(resp.Data.Games) > 0 {
		octx := c.context()
		for i, g := range resp.Data.Games {
			resp.Data.Games[i] = NormalizeGame(g, octx)
		}
	}
	return &resp, nil
}

// GetOrderBook fetches the authenticated order book for a league.
func (c *Client) GetOrderBook(ctx context.Context, league string) (*OrderBookResponse, error) {
	if league == "" {
		league = "upcoming"
	}
	req := OrderBookRequest{
		AuthenticatedRequest: AuthenticatedRequest{Token: c.sessionToken()},
		League:               league,
	}

	var resp OrderBookResponse
	if err := c.http.Post(ctx, exhttp.Trading, "orderbook", "exchange/v2/getOrderbook", req, c.sessionToken(), &resp); err != nil {
		return nil, err
	}

	if resp.Data != nil && len(resp.Data.Games) > 0 {
		octx := c.context()
		for i, g := range resp.Data.Games {
			resp.Data.Games[i] = NormalizeGame(g, octx)
		}
	}
	return &resp, nil
}

// GetMatchedBets fetches the user's matched bets, normalized.
func (c *Client) GetMatchedBets(ctx context.Context) (*MatchedBetsResponse, error) {
	var resp MatchedBetsResponse
	if err := c.http.Get(ctx, exhttp.Reporting, "matchedBets", "user/getMatchedBets", nil, c.sessionToken(), &resp); err != nil {
		return nil, err
	}

	if resp.Data != nil && len(resp.Data.MatchedBets) > 0 {
		octx := c.context()
		for i, b := range resp.Data.MatchedBets {
			resp.Data.MatchedBets[i] = NormalizeBet(b, octx)
		}
	}
	return &resp, nil
}

// GetUnmatchedBets fetches the user's resting bets, normalized.
func (c *Client) GetUnmatchedBets(ctx context.Context) (*UnmatchedBetsResponse, error) {
	var resp UnmatchedBetsResponse
	if err := c.http.Get(ctx, exhttp.Reporting, "unmatchedBets", "user/getUnmatched", nil, c.sessionToken(), &resp); err != nil {
		return nil, err
	}

	if resp.Data != nil && len(resp.Data.Unmatched) > 0 {
		octx := c.context()
		for i, b := range resp.Data.Unmatched {
			resp.Data.Unmatched[i] = NormalizeBet(b, octx)
		}
	}
	return &resp, nil
}

// GetGradedWagers fetches settled bets in a date range, normalized. The
// exchange expects MM-dd-yyyy dates.
func (c *Client) GetGradedWagers(ctx context.Context, start, end time.Time) (*GradedWagersResponse, error) {
	query := map[string]string{
		"startDate": start.Format(gradedDateLayout),
		"endDate":   end.Format(gradedDateLayout),
	}

	var resp GradedWagersResponse
	if err := c.http.Get(ctx, exhttp.Reporting, "gradedWagers", "user/getGradedWagers", query, c.sessionToken(), &resp); err != nil {
		return nil, err
	}

	if resp.Data != nil && len(resp.Data.Graded) > 0 {
		octx := c.context()
		for i, b := range resp.Data.Graded {
			resp.Data.Graded[i] = NormalizeBet(b, octx)
		}
	}
	return &resp, nil
}

// Place submits orders. Orders without a user reference get a generated
// UUID so fills can be traced back through the position feed; references
// are filled on a copy, the caller's slice stays untouched. The response
// is normalized per created session.
func (c *Client) Place(ctx context.Context, orders []PlaceOrder) (*PlaceResponse, error) {
	orders = append([]PlaceOrder(nil), orders...)
	for i := range orders {
		if orders[i].UserReference == "" {
			orders[i].UserReference = uuid.NewString()
		}
	}

	req := PlaceRequest{
		AuthenticatedRequest: AuthenticatedRequest{Token: c.sessionToken()},
		Orders:               orders,
	}

	var resp PlaceResponse
	if err := c.http.Post(ctx, exhttp.Trading, "place", "session/v2/place", req, c.sessionToken(), &resp); err != nil {
		return nil, err
	}

	normalized := NormalizePlaceResponse(resp, c.context())
	return &normalized, nil
}

// Cancel cancels one resting session. Cancelling an already-cancelled
// session is benign on the exchange side; the response just carries no
// cancelled order.
func (c *Client) Cancel(ctx context.Context, sessionID string) (*CancelResponse, error) {
	req := CancelRequest{
		AuthenticatedRequest: AuthenticatedRequest{Token: c.sessionToken()},
		SessionID:            sessionID,
	}

	var resp CancelResponse
	if err := c.http.Post(ctx, exhttp.Trading, "cancel", "session/cancel", req, c.sessionToken(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelMultiple cancels a batch of resting sessions.
func (c *Client) CancelMultiple(ctx context.Context, sessionIDs []string) (*CancelMultipleResponse, error) {
	req := CancelMultipleRequest{
		AuthenticatedRequest: AuthenticatedRequest{Token: c.sessionToken()},
		SessionIDs:           sessionIDs,
	}

	var resp CancelMultipleResponse
	if err := c.http.Post(ctx, exhttp.Trading, "cancelMultiple", "session/cancelMultiple", req, c.sessionToken(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelAllOrders cancels every resting order on the account. The exchange
// walks the whole book for this, so it rides the reporting transport.
func (c *Client) CancelAllOrders(ctx context.Context) (*CancelAllOrdersResponse, error) {
	req := CancelAllOrdersRequest{
		AuthenticatedRequest: AuthenticatedRequest{Token: c.sessionToken()},
	}

	var resp CancelAllOrdersResponse
	if err := c.http.Post(ctx, exhttp.Reporting, "cancelAllOrders", "session/cancelAllOrders", req, c.sessionToken(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OnPositionUpdate subscribes to user-channel position updates. Register
// before InitialiseChannels.
func (c *Client) OnPositionUpdate(fn func(PositionUpdateMessage)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.positionSubs = append(c.positionSubs, fn)
}

// OnGameUpdate subscribes to public-channel game updates.
func (c *Client) OnGameUpdate(fn func(GameUpdateMessage)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.gameSubs = append(c.gameSubs, fn)
}

// OnOrderUpdate subscribes to public-channel order updates.
func (c *Client) OnOrderUpdate(fn func(OrderUpdateMessage)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.orderSubs = append(c.orderSubs, fn)
}

// OnUserConnected fires when the user channel connects or reconnects.
func (c *Client) OnUserConnected(fn func()) {
	c.manager.OnUserConnected(fn)
}

// OnUserDisconnected fires when the user channel drops.
func (c *Client) OnUserDisconnected(fn func(reason string)) {
	c.manager.OnUserDisconnected(fn)
}

// OnPublicConnected fires when the public channel connects or reconnects.
func (c *Client) OnPublicConnected(fn func()) {
	c.manager.OnPublicConnected(fn)
}

// OnPublicDisconnected fires when the public channel drops.
func (c *Client) OnPublicDisconnected(fn func(reason string)) {
	c.manager.OnPublicDisconnected(fn)
}

func (c *Client) handlePositionUpdate(payload json.RawMessage) {
	var msg PositionUpdateMessage
	if err := decodePayload(payload, &msg); err != nil {
		c.log.Warnf("bad positionUpdate payload: %v", err)
		return
	}
	msg = NormalizePositionUpdate(msg, c.context())

	c.subMu.RLock()
	subs := c.positionSubs
	c.subMu.RUnlock()
	for _, fn := range subs {
		fn(msg)
	}
}

func (c *Client) handleGameUpdate(payload json.RawMessage) {
	var msg GameUpdateMessage
	if err := decodePayload(payload, &msg); err != nil {
		c.log.Warnf("bad gameUpdate payload: %v", err)
		return
	}

	c.subMu.RLock()
	subs := c.gameSubs
	c.subMu.RUnlock()
	for _, fn := range subs {
		fn(msg)
	}
}

func (c *Client) handleOrderUpdate(payload json.RawMessage) {
	var msg OrderUpdateMessage
	if err := decodePayload(payload, &msg); err != nil {
		c.log.Warnf("bad orderUpdate payload: %v", err)
		return
	}
	msg = NormalizeOrderUpdate(msg, c.context())

	c.subMu.RLock()
	subs := c.orderSubs
	c.subMu.RUnlock()
	for _, fn := range subs {
		fn(msg)
	}
}

// decodePayload unwraps a push payload. The exchange double-encodes the
// object as a JSON string inside the frame, but plain objects are accepted
// too.
func decodePayload(payload json.RawMessage, v any) error {
	data := bytes.TrimSpace(payload)
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "unwrap payload")
		}
		data = []byte(s)
	}
	return errors.Wrap(json.Unmarshal(data, v), "decode payload")
}
