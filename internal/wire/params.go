package wire

import (
	"bytes"

	"github.com/coachpo/krakenws/errs"
)

// Params is the parameter set of an outgoing request. IsEmpty reports whether
// the set is logically empty, in which case the params field is omitted from
// the wire form entirely.
type Params interface {
	IsEmpty() bool
}

// NoParams is the parameter set of calls that take none, such as ping.
type NoParams struct{}

func (NoParams) IsEmpty() bool { return true }

// SubscribeParams is the parameter set of a subscribe call for one channel.
type SubscribeParams interface {
	Params
	SubscriptionChannel() SubscriptionChannel
	isSubscribeParams()
}

// UnsubscribeParams is the parameter set of an unsubscribe call for one channel.
type UnsubscribeParams interface {
	Params
	SubscriptionChannel() SubscriptionChannel
	isUnsubscribeParams()
}

// Token is a session token for authenticated channels. It marshals verbatim
// but never prints.
type Token string

func (Token) String() string   { return "Token(<redacted>)" }
func (Token) GoString() string { return "Token(<redacted>)" }

// ExecutionsSubscription subscribes to order and fill events; Token is required.
type ExecutionsSubscription struct {
	Token          Token `json:"token"`
	SnapshotTrades *bool `json:"snapshot_trades,omitempty"`
	Snapshot       *bool `json:"snapshot,omitempty"`
	RateCounter    *bool `json:"ratecounter,omitempty"`
}

// BalancesSubscription subscribes to balances and ledger updates; Token is required.
type BalancesSubscription struct {
	Token    Token `json:"token"`
	Snapshot *bool `json:"snapshot,omitempty"`
}

// TickerSubscription subscribes to level-1 updates for the listed symbols.
type TickerSubscription struct {
	Symbol       []string     `json:"symbol"`
	EventTrigger EventTrigger `json:"event_trigger,omitempty"`
	Snapshot     *bool        `json:"snapshot,omitempty"`
}

// BookSubscription subscribes to the level-2 book; Depth is one of 10, 25, 100, 500, 1000.
type BookSubscription struct {
	Symbol   []string `json:"symbol"`
	Depth    *int     `json:"depth,omitempty"`
	Snapshot *bool    `json:"snapshot,omitempty"`
}

// Level3Subscription requires a session token; L3 data is authenticated.
type Level3Subscription struct {
	Symbol   []string `json:"symbol"`
	Depth    *int     `json:"depth,omitempty"`
	Snapshot *bool    `json:"snapshot,omitempty"`
	Token    Token    `json:"token"`
}

// OhlcSubscription subscribes to candles of Interval minutes.
type OhlcSubscription struct {
	Symbol   []string `json:"symbol"`
	Interval int      `json:"interval"`
	Snapshot *bool    `json:"snapshot,omitempty"`
}

// TradeSubscription subscribes to prints for the listed symbols.
type TradeSubscription struct {
	Symbol   []string `json:"symbol"`
	Snapshot *bool    `json:"snapshot,omitempty"`
}

// InstrumentSubscription subscribes to asset and pair reference data.
type InstrumentSubscription struct {
	Snapshot *bool `json:"snapshot,omitempty"`
}

// ExecutionsUnsubscription leaves the executions channel.
type ExecutionsUnsubscription struct {
	Token Token `json:"token"`
}

// BalancesUnsubscription leaves the balances channel.
type BalancesUnsubscription struct {
	Token Token `json:"token"`
}

// TickerUnsubscription leaves the ticker channel for the listed symbols.
type TickerUnsubscription struct {
	Symbol       []string     `json:"symbol"`
	EventTrigger EventTrigger `json:"event_trigger,omitempty"`
}

// BookUnsubscription leaves the book channel at the given depth.
type BookUnsubscription struct {
	Symbol []string `json:"symbol"`
	Depth  *int     `json:"depth,omitempty"`
}

// Level3Unsubscription leaves the level3 channel for the listed symbols.
type Level3Unsubscription struct {
	Symbol []string `json:"symbol"`
	Token  Token    `json:"token"`
}

// OhlcUnsubscription leaves the ohlc channel at the given interval.
type OhlcUnsubscription struct {
	Symbol   []string `json:"symbol"`
	Interval int      `json:"interval"`
}

// TradeUnsubscription leaves the trade channel for the listed symbols.
type TradeUnsubscription struct {
	Symbol []string `json:"symbol"`
}

// InstrumentUnsubscription leaves the instrument channel.
type InstrumentUnsubscription struct{}

// Channel-tagged params always carry at least their channel.
func (ExecutionsSubscription) IsEmpty() bool   { return false }
func (BalancesSubscription) IsEmpty() bool     { return false }
func (TickerSubscription) IsEmpty() bool       { return false }
func (BookSubscription) IsEmpty() bool         { return false }
func (Level3Subscription) IsEmpty() bool       { return false }
func (OhlcSubscription) IsEmpty() bool         { return false }
func (TradeSubscription) IsEmpty() bool        { return false }
func (InstrumentSubscription) IsEmpty() bool   { return false }
func (ExecutionsUnsubscription) IsEmpty() bool { return false }
func (BalancesUnsubscription) IsEmpty() bool   { return false }
func (TickerUnsubscription) IsEmpty() bool     { return false }
func (BookUnsubscription) IsEmpty() bool       { return false }
func (Level3Unsubscription) IsEmpty() bool     { return false }
func (OhlcUnsubscription) IsEmpty() bool       { return false }
func (TradeUnsubscription) IsEmpty() bool      { return false }
func (InstrumentUnsubscription) IsEmpty() bool { return false }

func (ExecutionsSubscription) SubscriptionChannel() SubscriptionChannel {
	return SubscriptionExecutions
}
func (BalancesSubscription) SubscriptionChannel() SubscriptionChannel { return SubscriptionBalances }
func (TickerSubscription) SubscriptionChannel() SubscriptionChannel   { return SubscriptionTicker }
func (BookSubscription) SubscriptionChannel() SubscriptionChannel     { return SubscriptionBook }
func (Level3Subscription) SubscriptionChannel() SubscriptionChannel   { return SubscriptionLevel3 }
func (OhlcSubscription) SubscriptionChannel() SubscriptionChannel     { return SubscriptionOhlc }
func (TradeSubscription) SubscriptionChannel() SubscriptionChannel    { return SubscriptionTrade }
func (InstrumentSubscription) SubscriptionChannel() SubscriptionChannel {
	return SubscriptionInstrument
}

func (ExecutionsUnsubscription) SubscriptionChannel() SubscriptionChannel {
	return SubscriptionExecutions
}
func (BalancesUnsubscription) SubscriptionChannel() SubscriptionChannel { return SubscriptionBalances }
func (TickerUnsubscription) SubscriptionChannel() SubscriptionChannel   { return SubscriptionTicker }
func (BookUnsubscription) SubscriptionChannel() SubscriptionChannel     { return SubscriptionBook }
func (Level3Unsubscription) SubscriptionChannel() SubscriptionChannel   { return SubscriptionLevel3 }
func (OhlcUnsubscription) SubscriptionChannel() SubscriptionChannel     { return SubscriptionOhlc }
func (TradeUnsubscription) SubscriptionChannel() SubscriptionChannel    { return SubscriptionTrade }
func (InstrumentUnsubscription) SubscriptionChannel() SubscriptionChannel {
	return SubscriptionInstrument
}

func (ExecutionsSubscription) isSubscribeParams()     {}
func (BalancesSubscription) isSubscribeParams()       {}
func (TickerSubscription) isSubscribeParams()         {}
func (BookSubscription) isSubscribeParams()           {}
func (Level3Subscription) isSubscribeParams()         {}
func (OhlcSubscription) isSubscribeParams()           {}
func (TradeSubscription) isSubscribeParams()          {}
func (InstrumentSubscription) isSubscribeParams()     {}
func (ExecutionsUnsubscription) isUnsubscribeParams() {}
func (BalancesUnsubscription) isUnsubscribeParams()   {}
func (TickerUnsubscription) isUnsubscribeParams()     {}
func (BookUnsubscription) isUnsubscribeParams()       {}
func (Level3Unsubscription) isUnsubscribeParams()     {}
func (OhlcUnsubscription) isUnsubscribeParams()       {}
func (TradeUnsubscription) isUnsubscribeParams()      {}
func (InstrumentUnsubscription) isUnsubscribeParams() {}

func (s ExecutionsSubscription) MarshalJSON() ([]byte, error) {
	type plain ExecutionsSubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s BalancesSubscription) MarshalJSON() ([]byte, error) {
	type plain BalancesSubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s TickerSubscription) MarshalJSON() ([]byte, error) {
	type plain TickerSubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s BookSubscription) MarshalJSON() ([]byte, error) {
	type plain BookSubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s Level3Subscription) MarshalJSON() ([]byte, error) {
	type plain Level3Subscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s OhlcSubscription) MarshalJSON() ([]byte, error) {
	type plain OhlcSubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s TradeSubscription) MarshalJSON() ([]byte, error) {
	type plain TradeSubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s InstrumentSubscription) MarshalJSON() ([]byte, error) {
	type plain InstrumentSubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s ExecutionsUnsubscription) MarshalJSON() ([]byte, error) {
	type plain ExecutionsUnsubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s BalancesUnsubscription) MarshalJSON() ([]byte, error) {
	type plain BalancesUnsubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s TickerUnsubscription) MarshalJSON() ([]byte, error) {
	type plain TickerUnsubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s BookUnsubscription) MarshalJSON() ([]byte, error) {
	type plain BookUnsubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s Level3Unsubscription) MarshalJSON() ([]byte, error) {
	type plain Level3Unsubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s OhlcUnsubscription) MarshalJSON() ([]byte, error) {
	type plain OhlcUnsubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s TradeUnsubscription) MarshalJSON() ([]byte, error) {
	type plain TradeUnsubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

func (s InstrumentUnsubscription) MarshalJSON() ([]byte, error) {
	type plain InstrumentUnsubscription
	return tagged(s.SubscriptionChannel(), plain(s))
}

// tagged marshals body and prepends the channel key to the resulting object.
func tagged(channel SubscriptionChannel, body any) ([]byte, error) {
	fields, err := marshalNoEscape(body)
	if err != nil {
		return nil, err
	}
	head, err := marshalNoEscape(channel)
	if err != nil {
		return nil, err
	}
	fields = bytes.TrimSpace(fields)
	if len(fields) < 2 || fields[0] != '{' {
		return nil, errs.New(errs.CodeInvalid,
			errs.WithMessage("params must marshal to an object"),
			errs.WithField("channel", string(channel)))
	}
	rest := fields[1:]
	out := make([]byte, 0, len(fields)+len(head)+12)
	out = append(out, `{"channel":`...)
	out = append(out, head...)
	if rest[0] != '}' {
		out = append(out, ',')
	}
	return append(out, rest...), nil
}
