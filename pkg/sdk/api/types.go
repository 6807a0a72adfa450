package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/fourcasters/pkg/oddsmath"
)

// Numeric handles exchange numbers that may arrive as JSON numbers or as
// quoted strings (the bet history endpoints quote risk/win/fee). Backed by
// decimal so stakes and odds never pick up float noise.
type Numeric struct {
	decimal.Decimal
}

func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || strings.EqualFold(string(data), "null") {
		n.Decimal = decimal.Zero
		return nil
	}

	// Handle quoted numbers.
	if data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			n.Decimal = decimal.Zero
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		n.Decimal = d
		return nil
	}

	return n.Decimal.UnmarshalJSON(data)
}

func num(d decimal.Decimal) Numeric {
	return Numeric{Decimal: d}
}

// LOGIN //////////////////////////////////////////////////////////////////

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Data *LoginData `json:"data"`
}

type LoginData struct {
	User *User `json:"user"`
}

// User is the account record returned by user/login. Auth carries the
// session token consumed by every subsequent call.
type User struct {
	SeedAccess           bool    `json:"seedAccess"`
	IsAdmin              bool    `json:"isAdmin"`
	ID                   string  `json:"id"`
	Username             string  `json:"username"`
	DisplayBalance       Numeric `json:"displayBalance"`
	MatchedBalance       Numeric `json:"matchedBalance"`
	Liability            Numeric `json:"liability"`
	CreditLimit          Numeric `json:"creditLimit"`
	Language             string  `json:"language"`
	Auth                 string  `json:"auth"`
	OddsFormat           string  `json:"oddsFormat"`
	Type                 string  `json:"type"`
	HasMarketMakerAccess bool    `json:"hasMarketMakerAccess"`
	SportsbookDefault    bool    `json:"sportsbookDefault"`
	DefaultFollowPinny   bool    `json:"defaultFollowPinny"`
	AccessCode           string  `json:"accessCode"`
	CommissionCharged    Numeric `json:"commissionCharged"`
	IsPro                bool    `json:"isPro"`
}

// AuthenticatedRequest is embedded by every POST body. The exchange accepts
// the token in the body or the Authorization header; we always send both.
type AuthenticatedRequest struct {
	Token string `json:"token"`
}

// REFERENCE DATA /////////////////////////////////////////////////////////

type ParticipantsResponse struct {
	Data *ParticipantsData `json:"data"`
}

type ParticipantsData struct {
	Participants []Participant `json:"participants"`
}

type Participant struct {
	ParticipantID string `json:"participantID"`
	LongName      string `json:"longName"`
	ShortName     string `json:"shortName"`
	League        string `json:"league"`
	Sport         string `json:"sport"`
}

type LeaguesResponse struct {
	Data *LeaguesData `json:"data"`
}

type LeaguesData struct {
	Leagues []string `json:"leagues"`
}

// GAMES //////////////////////////////////////////////////////////////////

type GamesResponse struct {
	Data *GamesData `json:"data"`
}

type GamesData struct {
	Games []Game `json:"games"`
}

// Game is a match with one resting-order ladder per market side.
type Game struct {
	IsFutures    bool              `json:"isFutures"`
	EventName    string            `json:"eventName"`
	FuturesTeam  string            `json:"futuresTeam"`
	ID           string            `json:"id"`
	ParentGameID string            `json:"parentGameID"`
	CheapDataUID string            `json:"cheapDataUID"`
	League       string            `json:"league"`
	Sport        string            `json:"sport"`
	Start        time.Time         `json:"start"`
	Ended        bool              `json:"ended"`
	Featured     bool              `json:"featured"`
	Live         bool              `json:"live"`
	Participants []GameParticipant `json:"participants"`

	AwayMoneylines []Order `json:"awayMoneylines"`
	HomeMoneylines []Order `json:"homeMoneylines"`
	AwaySpreads    []Order `json:"awaySpreads"`
	HomeSpreads    []Order `json:"homeSpreads"`
	Over           []Order `json:"over"`
	Under          []Order `json:"under"`
}

type GameParticipant struct {
	ID             string `json:"id"`
	LongName       string `json:"longName"`
	ShortName      string `json:"shortName"`
	MainPitcher    string `json:"mainPitcher"`
	HomeAway       string `json:"homeAway"`
	RotationNumber string `json:"rotationNumber"`
	FuturesSide    string `json:"futuresSide"`
	Score          *int   `json:"score"`
}

// Order is a resting order on a game ladder. Price and Stake are derived
// once during normalization and never recomputed after.
type Order struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	CreatedBy     string     `json:"createdBy"`
	SumUntaken    Numeric    `json:"sumUntaken"`
	Odds          Numeric    `json:"odds"`
	Bet           Numeric    `json:"bet"`
	GameID        string     `json:"gameID"`
	TakenRatio    Numeric    `json:"takenRatio"`
	ParticipantID string     `json:"participantID"`
	Total         *Numeric   `json:"total"`
	Spread        *Numeric   `json:"spread"`
	OU            string     `json:"OU"`
	Source        string     `json:"source"`
	Level         *int       `json:"level"`
	Expiry        *time.Time `json:"expiry"`
	CreatedAt     time.Time  `json:"createdAt"`

	Price *oddsmath.Price  `json:"-"`
	Stake *oddsmath.Amount `json:"-"`
}

// ORDER BOOK /////////////////////////////////////////////////////////////

type OrderBookRequest struct {
	AuthenticatedRequest
	League string `json:"league"`
}

type OrderBookResponse struct {
	Data *OrderBookData `json:"data"`
}

type OrderBookData struct {
	Market string `json:"market"`
	Games  []Game `json:"games"`
}

// BETS ///////////////////////////////////////////////////////////////////

type MatchedBetsResponse struct {
	Data *MatchedBetsData `json:"data"`
}

type MatchedBetsData struct {
	MatchedBets []Bet `json:"matchedBets"`
}

type UnmatchedBetsResponse struct {
	Data *UnmatchedBetsData `json:"data"`
}

type UnmatchedBetsData struct {
	Unmatched []Bet `json:"unmatched"`
}

type GradedWagersResponse struct {
	Data *GradedWagersData `json:"data"`
}

type GradedWagersData struct {
	Graded []Bet `json:"graded"`
}

// Bet is a user bet record from the history endpoints. Risk/win/fee/result
// arrive as quoted strings and may be absent; an absent field leaves the
// derived amount nil, which is distinct from a real zero.
type Bet struct {
	Game               *Game      `json:"game"`
	ID                 string     `json:"id"`
	Graded             bool       `json:"graded"`
	Type               string     `json:"type"`
	Bet                Numeric    `json:"bet"`
	TxID               string     `json:"txID"`
	Closed             bool       `json:"closed"`
	CreatedAt          time.Time  `json:"createdAt"`
	Origin             string     `json:"origin"`
	AdminRefund        bool       `json:"adminRefund"`
	TicketNumber       string     `json:"ticketNumber"`
	Cancelled          *bool      `json:"cancelled"`
	Odds               Numeric    `json:"odds"`
	Spread             *Numeric   `json:"spread"`
	Total              *Numeric   `json:"total"`
	ParticipantID      string     `json:"participantID"`
	MatchedTime        *time.Time `json:"matchedTime"`
	OU                 string     `json:"OU"`
	Outcome            string     `json:"outcome"`
	Expiry             *time.Time `json:"expiry"`
	TakenRatio         *Numeric   `json:"takenRatio"`
	OtherParticipantID string     `json:"otherParticipantID"`
	RawRisk            string     `json:"risk"`
	RawWin             string     `json:"win"`
	RawFee             string     `json:"fee"`
	RawResult          string     `json:"result"`
	SettledAt          *time.Time `json:"settledAt"`
	Platform           string     `json:"platform"`

	Price  *oddsmath.Price  `json:"-"`
	Risk   *oddsmath.Amount `json:"-"`
	Win    *oddsmath.Amount `json:"-"`
	Result *oddsmath.Amount `json:"-"`

	commissionRate decimal.Decimal
}

// Pagination is the history endpoints' paging envelope.
type Pagination struct {
	TotalDocs     int  `json:"totalDocs"`
	Offset        int  `json:"offset"`
	Limit         int  `json:"limit"`
	TotalPages    int  `json:"totalPages"`
	Page          int  `json:"page"`
	PagingCounter int  `json:"pagingCounter"`
	HasPrevPage   bool `json:"hasPrevPage"`
	HasNextPage   bool `json:"hasNextPage"`
	PrevPage      *int `json:"prevPage"`
	NextPage      *int `json:"nextPage"`
}

// OrderSummary aggregates open risk/win per market for a game.
type OrderSummary struct {
	ML     *MoneylineSummary `json:"ml"`
	Spread *SpreadSummary    `json:"spread"`
	Total  *TotalSummary     `json:"total"`
}

type MoneylineSummary struct {
	HomeRisk Numeric `json:"homeRisk"`
	AwayRisk Numeric `json:"awayRisk"`
	HomeWin  Numeric `json:"homeWin"`
	AwayWin  Numeric `json:"awayWin"`
}

type SpreadSummary struct {
	HomeRisk Numeric `json:"homeRisk"`
	AwayRisk Numeric `json:"awayRisk"`
	HomeWin  Numeric `json:"homeWin"`
	AwayWin  Numeric `json:"awayWin"`
}

type TotalSummary struct {
	OverRisk  Numeric `json:"overRisk"`
	UnderRisk Numeric `json:"underRisk"`
	OverWin   Numeric `json:"overWin"`
	UnderWin  Numeric `json:"underWin"`
}

// PLACEMENT //////////////////////////////////////////////////////////////

type PlaceRequest struct {
	AuthenticatedRequest
	Orders []PlaceOrder `json:"orders"`
}

// PlaceOrder is one order in a place request. Number carries the spread or
// total line where the order type needs one.
type PlaceOrder struct {
	GameID        string   `json:"gameID"`
	Odds          Numeric  `json:"odds"`
	Bet           Numeric  `json:"bet"`
	Type          string   `json:"type"`
	Number        *Numeric `json:"number,omitempty"`
	Side          string   `json:"side"`
	UserReference string   `json:"userReference,omitempty"`
}

type PlaceResponse struct {
	Data *PlaceData `json:"data"`
}

type PlaceData struct {
	CreatedSessions []*PlacedSession `json:"createdSessions"`
}

// PlacedSession is the per-order outcome of a place call: instantly matched
// fills plus the remainder left resting on the book.
type PlacedSession struct {
	Error     string           `json:"error"`
	Matched   []PlacedMatched  `json:"matched"`
	Unmatched *PlacedUnmatched `json:"unmatched"`
}

// PlacedMatched is a fill created instantly by a place call. Instantly
// matched means taker, so commission always applies.
type PlacedMatched struct {
	TxID           string   `json:"txID"`
	OrderID        string   `json:"orderID"`
	RawRisk        Numeric  `json:"risk"`
	RawWin         Numeric  `json:"win"`
	Odds           Numeric  `json:"odds"`
	Amount         Numeric  `json:"amount"`
	Type           string   `json:"type"`
	Number         *Numeric `json:"number"`
	Side           string   `json:"side"`
	WagerRequestID string   `json:"wagerRequestID"`
	UserReference  string   `json:"userReference"`

	Price *oddsmath.Price  `json:"-"`
	Risk  *oddsmath.Amount `json:"-"`
	Win   *oddsmath.Amount `json:"-"`

	commissionRate decimal.Decimal
}

// PlacedUnmatched is the resting remainder of a place call.
type PlacedUnmatched struct {
	OrderID        string   `json:"orderID"`
	RawOffered     Numeric  `json:"offered"`
	Odds           Numeric  `json:"odds"`
	Type           string   `json:"type"`
	Number         *Numeric `json:"number"`
	Side           string   `json:"side"`
	WagerRequestID string   `json:"wagerRequestID"`
	UserReference  string   `json:"userReference"`

	Offered *oddsmath.Amount `json:"-"`
}

// OfferID is the session ID to pass to cancel calls.
func (u *PlacedUnmatched) OfferID() string {
	return u.OrderID
}

// STREAMED EVENTS ////////////////////////////////////////////////////////

// PositionUpdateMessage is pushed on the user channel whenever one of the
// user's positions changes. Matched inherits the message-level origin.
type PositionUpdateMessage struct {
	GameID             string     `json:"gameID"`
	ParentGameID       string     `json:"parentGameID"`
	EventName          string     `json:"eventName"`
	League             string     `json:"league"`
	Sport              string     `json:"sport"`
	Platform           string     `json:"platform"`
	Origin             string     `json:"origin"`
	AwayRotationNumber string     `json:"awayRotationNumber"`
	Live               bool       `json:"live"`
	Start              time.Time  `json:"start"`
	Matched            *Matched   `json:"matched"`
	Unmatched          *Unmatched `json:"unmatched"`
}

// Matched is the matched half of a position update. Every numeric field is
// optional on the wire.
type Matched struct {
	TxID          string   `json:"txID"`
	OrderID       string   `json:"orderID"`
	Odds          *Numeric `json:"odds"`
	Amount        *Numeric `json:"amount"`
	RawRisk       *Numeric `json:"risk"`
	RawWin        *Numeric `json:"win"`
	Type          string   `json:"type"`
	Side          string   `json:"side"`
	Number        *Numeric `json:"number"`
	Origin        string   `json:"origin"`
	UserReference string   `json:"userReference"`

	Price *oddsmath.Price  `json:"-"`
	Risk  *oddsmath.Amount `json:"-"`
	Win   *oddsmath.Amount `json:"-"`

	commissionRate decimal.Decimal
}

// Unmatched is the resting half of a position update.
type Unmatched struct {
	OrderID        string   `json:"orderID"`
	RawFilled      *Numeric `json:"filled"`
	RawOffered     *Numeric `json:"offered"`
	RawRemaining   *Numeric `json:"remaining"`
	Odds           *Numeric `json:"odds"`
	Type           string   `json:"type"`
	Side           string   `json:"side"`
	Number         *Numeric `json:"number"`
	UserReference  string   `json:"userReference"`
	WagerRequestID string   `json:"wagerRequestID"`

	Price     *oddsmath.Price  `json:"-"`
	Filled    *oddsmath.Amount `json:"-"`
	Offered   *oddsmath.Amount `json:"-"`
	Remaining *oddsmath.Amount `json:"-"`
}

// OfferID is the session ID to pass to cancel calls.
func (u *Unmatched) OfferID() string {
	return u.OrderID
}

// OrderUpdateMessage is pushed on the public channel when one side of a
// game's ladder changes.
type OrderUpdateMessage struct {
	GameID        string      `json:"gameID"`
	Sport         string      `json:"sport"`
	Type          string      `json:"type"`
	Live          bool        `json:"live"`
	SideOrders    []SideOrder `json:"sideOrders"`
	ParticipantID string      `json:"participantID"`
}

type SideOrder struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	CreatedBy       string     `json:"createdBy"`
	SumUntaken      Numeric    `json:"sumUntaken"`
	Odds            Numeric    `json:"odds"`
	Bet             Numeric    `json:"bet"`
	GameID          string     `json:"gameID"`
	TakenRatio      *Numeric   `json:"takenRatio"`
	ParticipantID   string     `json:"participantID"`
	Total           *Numeric   `json:"total"`
	Spread          *Numeric   `json:"spread"`
	OU              string     `json:"OU"`
	FollowPinnacle  bool       `json:"followPinnacle"`
	PinnacleOdds    Numeric    `json:"pinnacleOdds"`
	Source          string     `json:"source"`
	Level           *int       `json:"level"`
	Expiry          *time.Time `json:"expiry"`
	CreatedAt       time.Time  `json:"createdAt"`
	GameStartExpiry bool       `json:"gameStartExpiry"`

	Price *oddsmath.Price  `json:"-"`
	Stake *oddsmath.Amount `json:"-"`
}

// GameUpdateMessage is pushed on the public channel on score or main-line
// changes.
type GameUpdateMessage struct {
	IsFutures      bool              `json:"isFutures"`
	FuturesTeam    string            `json:"futuresTeam"`
	ID             string            `json:"id"`
	ParentGameID   string            `json:"parentGameID"`
	CheapDataUID   string            `json:"cheapDataUID"`
	League         string            `json:"league"`
	Sport          string            `json:"sport"`
	Start          time.Time         `json:"start"`
	Ended          bool              `json:"ended"`
	Participants   []GameParticipant `json:"participants"`
	EventName      string            `json:"eventName"`
	MainHomeSpread *Numeric          `json:"mainHomeSpread"`
	MainAwaySpread *Numeric          `json:"mainAwaySpread"`
	MainTotal      *Numeric          `json:"mainTotal"`
}

// CANCELLATION ///////////////////////////////////////////////////////////

type CancelRequest struct {
	AuthenticatedRequest
	SessionID string `json:"sessionID"`
}

type CancelResponse struct {
	Data *CancelData `json:"data"`
}

type CancelData struct {
	CancelledOrder *CancelledOrder `json:"cancelledOrder"`
}

type CancelledOrder struct {
	SideString string   `json:"sideString"`
	Odds       *Numeric `json:"odds"`
	Volume     *Numeric `json:"volume"`
}

type CancelMultipleRequest struct {
	AuthenticatedRequest
	SessionIDs []string `json:"sessionIDs"`
}

type CancelMultipleResponse struct {
	Data []CancelledSession `json:"data"`
}

type CancelledSession struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionID"`
	GameID    string `json:"gameID"`
}

type CancelAllOrdersRequest struct {
	AuthenticatedRequest
}

type CancelAllOrdersResponse struct {
	Data []CancelledOpenOrder `json:"data"`
}

type CancelledOpenOrder struct {
	Success   bool    `json:"success"`
	SessionID string  `json:"sessionID"`
	Odds      Numeric `json:"odds"`
	GameID    string  `json:"gameID"`
}
