package wire

import (
	"github.com/shopspring/decimal"
)

// Side is the aggressor or order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// EventTrigger selects what updates the ticker channel.
type EventTrigger string

const (
	EventTriggerTrades EventTrigger = "trades"
	EventTriggerBBO    EventTrigger = "bbo"
)

// Trade is one print on the trade channel.
type Trade struct {
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Qty       decimal.Decimal `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	OrdType   string          `json:"ord_type"`
	TradeID   int64           `json:"trade_id"`
	Timestamp string          `json:"timestamp"`
}

// Ticker is the level-1 summary for one symbol.
type Ticker struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	BidQty    decimal.Decimal `json:"bid_qty"`
	Ask       decimal.Decimal `json:"ask"`
	AskQty    decimal.Decimal `json:"ask_qty"`
	Last      decimal.Decimal `json:"last"`
	Volume    decimal.Decimal `json:"volume"`
	VWAP      decimal.Decimal `json:"vwap"`
	Low       decimal.Decimal `json:"low"`
	High      decimal.Decimal `json:"high"`
	Change    decimal.Decimal `json:"change"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// Ohlc is one candle on the ohlc channel.
type Ohlc struct {
	Symbol        string          `json:"symbol"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	VWAP          decimal.Decimal `json:"vwap"`
	Trades        int64           `json:"trades"`
	Volume        decimal.Decimal `json:"volume"`
	IntervalBegin string          `json:"interval_begin"`
	Interval      int             `json:"interval"`
	// Timestamp is deprecated by the exchange in favour of IntervalBegin.
	Timestamp string `json:"timestamp,omitempty"`
}

// BidAsk is one aggregated price level of the level-2 book.
type BidAsk struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

// L2 is the level-2 book snapshot or update for one symbol.
type L2 struct {
	Symbol    string   `json:"symbol"`
	Checksum  uint32   `json:"checksum"`
	Bids      []BidAsk `json:"bids"`
	Asks      []BidAsk `json:"asks"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// L3Event is the change applied to one order of the level-3 book.
type L3Event string

const (
	L3EventAdd    L3Event = "add"
	L3EventModify L3Event = "modify"
	L3EventDelete L3Event = "delete"
)

// L3Order is one resting order of the level-3 book. Event is empty on
// snapshots.
type L3Order struct {
	Event      L3Event         `json:"event,omitempty"`
	OrderID    string          `json:"order_id"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	OrderQty   decimal.Decimal `json:"order_qty"`
	Timestamp  string          `json:"timestamp"`
}

// L3 is the level-3 (order-by-order) book for one symbol.
type L3 struct {
	Symbol    string    `json:"symbol"`
	Checksum  uint32    `json:"checksum"`
	Bids      []L3Order `json:"bids"`
	Asks      []L3Order `json:"asks"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// Asset describes one asset on the instrument channel.
type Asset struct {
	ID               string          `json:"id"`
	Status           string          `json:"status"`
	Precision        int             `json:"precision"`
	PrecisionDisplay int             `json:"precision_display"`
	Borrowable       bool            `json:"borrowable"`
	CollateralValue  decimal.Decimal `json:"collateral_value"`
	MarginRate       decimal.Decimal `json:"margin_rate"`
}

// Pair describes one tradable pair on the instrument channel.
type Pair struct {
	Symbol             string           `json:"symbol"`
	Base               string           `json:"base"`
	Quote              string           `json:"quote"`
	Status             string           `json:"status"`
	QtyPrecision       int              `json:"qty_precision"`
	QtyIncrement       decimal.Decimal  `json:"qty_increment"`
	PricePrecision     int              `json:"price_precision"`
	CostPrecision      int              `json:"cost_precision"`
	Marginable         bool             `json:"marginable"`
	HasIndex           bool             `json:"has_index"`
	CostMin            decimal.Decimal  `json:"cost_min"`
	MarginInitial      *decimal.Decimal `json:"margin_initial,omitempty"`
	PositionLimitLong  *int64           `json:"position_limit_long,omitempty"`
	PositionLimitShort *int64           `json:"position_limit_short,omitempty"`
	PriceIncrement     decimal.Decimal  `json:"price_increment"`
	QtyMin             decimal.Decimal  `json:"qty_min"`
	// TickSize is deprecated by the exchange in favour of PriceIncrement.
	TickSize *decimal.Decimal `json:"tick_size,omitempty"`
}

// Instruments is the object payload of the instrument channel.
type Instruments struct {
	Assets []Asset `json:"assets"`
	Pairs  []Pair  `json:"pairs"`
}
