package wire

import (
	"github.com/shopspring/decimal"
)

// ExecType is the kind of event reported on the executions channel.
type ExecType string

const (
	ExecPendingNew ExecType = "pending_new"
	ExecNew        ExecType = "new"
	ExecTrade      ExecType = "trade"
	ExecFilled     ExecType = "filled"
	ExecIcebergRef ExecType = "iceberg_refill"
	ExecCanceled   ExecType = "canceled"
	ExecExpired    ExecType = "expired"
	ExecAmended    ExecType = "amended"
	ExecRestated   ExecType = "restated"
	ExecStatus     ExecType = "status"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPendingNew      OrderStatus = "pending_new"
	OrderNew             OrderStatus = "new"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderFilled          OrderStatus = "filled"
	OrderCanceled        OrderStatus = "canceled"
	OrderExpired         OrderStatus = "expired"
)

// PriceType says how a limit or trigger price is interpreted.
type PriceType string

const (
	PriceStatic PriceType = "static"
	PricePct    PriceType = "pct"
	PriceQuote  PriceType = "quote"
)

// TriggerReference is the price source a trigger watches.
type TriggerReference string

const (
	TriggerIndex TriggerReference = "index"
	TriggerLast  TriggerReference = "last"
)

// TriggerStatus reports whether a conditional order has fired.
type TriggerStatus string

const (
	TriggerTriggered   TriggerStatus = "triggered"
	TriggerUntriggered TriggerStatus = "untriggered"
)

// FeePreference selects the currency fees are charged in.
type FeePreference string

const (
	FeeInBase  FeePreference = "fcib"
	FeeInQuote FeePreference = "fciq"
)

// TriggerDescription describes the trigger of a conditional order.
type TriggerDescription struct {
	Reference   TriggerReference `json:"reference"`
	Price       decimal.Decimal  `json:"price"`
	PriceType   PriceType        `json:"price_type"`
	ActualPrice *decimal.Decimal `json:"actual_price,omitempty"`
	PeakPrice   *decimal.Decimal `json:"peak_price,omitempty"`
	LastPrice   *decimal.Decimal `json:"last_price,omitempty"`
	Status      TriggerStatus    `json:"status"`
	Timestamp   string           `json:"timestamp,omitempty"`
}

// Fee is one fee charged on a fill.
type Fee struct {
	Asset string          `json:"asset"`
	Qty   decimal.Decimal `json:"qty"`
}

// Execution is one order or fill event on the executions channel. Optional
// fields are nil when the exchange did not send them.
type Execution struct {
	ExecType       ExecType            `json:"exec_type"`
	OrderID        string              `json:"order_id"`
	ClOrdID        *string             `json:"cl_ord_id,omitempty"`
	OrderUserRef   *int64              `json:"order_userref,omitempty"`
	Symbol         *string             `json:"symbol,omitempty"`
	Side           *Side               `json:"side,omitempty"`
	OrderType      *string             `json:"order_type,omitempty"`
	OrderQty       *decimal.Decimal    `json:"order_qty,omitempty"`
	CashOrderQty   *decimal.Decimal    `json:"cash_order_qty,omitempty"`
	DisplayQty     *decimal.Decimal    `json:"display_qty,omitempty"`
	LimitPrice     *decimal.Decimal    `json:"limit_price,omitempty"`
	LimitPriceType *PriceType          `json:"limit_price_type,omitempty"`
	Triggers       *TriggerDescription `json:"triggers,omitempty"`
	TimeInForce    *string             `json:"time_in_force,omitempty"`
	PostOnly       *bool               `json:"post_only,omitempty"`
	ReduceOnly     *bool               `json:"reduce_only,omitempty"`
	Margin         *bool               `json:"margin,omitempty"`
	NoMPP          *bool               `json:"no_mpp,omitempty"`
	EffectiveTime  *string             `json:"effective_time,omitempty"`
	ExpireTime     *string             `json:"expire_time,omitempty"`
	OrderStatus    OrderStatus         `json:"order_status"`
	ExecID         *string             `json:"exec_id,omitempty"`
	TradeID        *int64              `json:"trade_id,omitempty"`
	LastQty        *decimal.Decimal    `json:"last_qty,omitempty"`
	LastPrice      *decimal.Decimal    `json:"last_price,omitempty"`
	Cost           *decimal.Decimal    `json:"cost,omitempty"`
	CumQty         *decimal.Decimal    `json:"cum_qty,omitempty"`
	CumCost        *decimal.Decimal    `json:"cum_cost,omitempty"`
	AvgPrice       *decimal.Decimal    `json:"avg_price,omitempty"`
	LiquidityInd   *string             `json:"liquidity_ind,omitempty"`
	Fees           []Fee               `json:"fees,omitempty"`
	FeeUSDEquiv    *decimal.Decimal    `json:"fee_usd_equiv,omitempty"`
	FeeCcyPref     *FeePreference      `json:"fee_ccy_pref,omitempty"`
	PositionStatus *string             `json:"position_status,omitempty"`
	Reason         *string             `json:"reason,omitempty"`
	Timestamp      string              `json:"timestamp"`
}

// Wallet is one wallet contributing to an asset balance.
type Wallet struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

// Balance is one asset row of a balances snapshot.
type Balance struct {
	Asset      string          `json:"asset"`
	AssetClass string          `json:"asset_class,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
	Wallets    []Wallet        `json:"wallets,omitempty"`
}

// LedgerUpdate is one ledger entry of a balances update.
type LedgerUpdate struct {
	Asset      string          `json:"asset"`
	AssetClass string          `json:"asset_class"`
	Amount     decimal.Decimal `json:"amount"`
	Balance    decimal.Decimal `json:"balance"`
	Fee        decimal.Decimal `json:"fee"`
	LedgerID   string          `json:"ledger_id"`
	RefID      string          `json:"ref_id"`
	Timestamp  string          `json:"timestamp"`
	Type       string          `json:"type"`
	Subtype    string          `json:"subtype,omitempty"`
	Category   string          `json:"category,omitempty"`
	WalletType string          `json:"wallet_type"`
	WalletID   string          `json:"wallet_id"`
}
