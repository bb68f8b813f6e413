package wire

import (
	json "github.com/goccy/go-json"

	"github.com/coachpo/krakenws/errs"
)

// SubscriptionChannel tags subscribe and unsubscribe results. It carries the
// same vocabulary as Channel but is kept a separate type: the feed
// discriminator and the call-result discriminator evolve independently on
// the exchange side.
type SubscriptionChannel string

const (
	SubscriptionExecutions SubscriptionChannel = "executions"
	SubscriptionBalances   SubscriptionChannel = "balances"
	SubscriptionTicker     SubscriptionChannel = "ticker"
	SubscriptionBook       SubscriptionChannel = "book"
	SubscriptionLevel3     SubscriptionChannel = "level3"
	SubscriptionOhlc       SubscriptionChannel = "ohlc"
	SubscriptionTrade      SubscriptionChannel = "trade"
	SubscriptionInstrument SubscriptionChannel = "instrument"
)

// SubscriptionChannels lists every known result tag.
func SubscriptionChannels() []SubscriptionChannel {
	return []SubscriptionChannel{
		SubscriptionExecutions,
		SubscriptionBalances,
		SubscriptionTicker,
		SubscriptionBook,
		SubscriptionLevel3,
		SubscriptionOhlc,
		SubscriptionTrade,
		SubscriptionInstrument,
	}
}

// SubscriptionAck is the result of a successful subscribe call. Its fields
// reflect what the exchange granted, which can differ from the request.
type SubscriptionAck interface {
	MethodResult
	SubscriptionChannel() SubscriptionChannel
	isSubscriptionAck()
}

// UnsubscriptionAck is the result of a successful unsubscribe call.
type UnsubscriptionAck interface {
	MethodResult
	SubscriptionChannel() SubscriptionChannel
	isUnsubscriptionAck()
}

// ExecutionsAck acknowledges an executions subscription.
type ExecutionsAck struct {
	MaxRateCount *int64   `json:"maxratecount,omitempty"`
	Snapshot     *bool    `json:"snapshot,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// BalancesAck acknowledges a balances subscription.
type BalancesAck struct {
	Snapshot *bool    `json:"snapshot,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// TickerAck acknowledges a ticker subscription.
type TickerAck struct {
	Symbol       string       `json:"symbol"`
	EventTrigger EventTrigger `json:"event_trigger,omitempty"`
	Snapshot     *bool        `json:"snapshot,omitempty"`
}

// BookAck acknowledges a book subscription with the granted depth.
type BookAck struct {
	Symbol   string   `json:"symbol"`
	Snapshot *bool    `json:"snapshot,omitempty"`
	Depth    *int     `json:"depth,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Level3Ack has the book acknowledgement shape; depth is not granted on L3.
type Level3Ack BookAck

// OhlcAck acknowledges an ohlc subscription with the granted interval.
type OhlcAck struct {
	Symbol   string   `json:"symbol"`
	Snapshot *bool    `json:"snapshot,omitempty"`
	Interval int      `json:"interval"`
	Warnings []string `json:"warnings,omitempty"`
}

// TradeAck acknowledges a trade subscription.
type TradeAck struct {
	Symbol   string   `json:"symbol"`
	Snapshot *bool    `json:"snapshot,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// InstrumentAck acknowledges an instrument subscription.
type InstrumentAck struct {
	Snapshot *bool    `json:"snapshot,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ExecutionsUnsubAck acknowledges leaving the executions channel.
type ExecutionsUnsubAck struct{}

// BalancesUnsubAck acknowledges leaving the balances channel.
type BalancesUnsubAck struct{}

// TickerUnsubAck acknowledges leaving the ticker channel for one symbol.
type TickerUnsubAck struct {
	Symbol       string       `json:"symbol"`
	EventTrigger EventTrigger `json:"event_trigger,omitempty"`
}

// BookUnsubAck acknowledges leaving the book channel for one symbol.
type BookUnsubAck struct {
	Symbol string `json:"symbol"`
	Depth  *int   `json:"depth,omitempty"`
}

// Level3UnsubAck acknowledges leaving the level3 channel for one symbol.
type Level3UnsubAck struct {
	Symbol string `json:"symbol"`
}

// OhlcUnsubAck acknowledges leaving the ohlc channel for one symbol and interval.
type OhlcUnsubAck struct {
	Symbol   string `json:"symbol"`
	Interval int    `json:"interval"`
}

// TradeUnsubAck acknowledges leaving the trade channel for one symbol.
type TradeUnsubAck struct {
	Symbol string `json:"symbol"`
}

// InstrumentUnsubAck acknowledges leaving the instrument channel.
type InstrumentUnsubAck struct{}

func (ExecutionsAck) SubscriptionChannel() SubscriptionChannel { return SubscriptionExecutions }
func (BalancesAck) SubscriptionChannel() SubscriptionChannel   { return SubscriptionBalances }
func (TickerAck) SubscriptionChannel() SubscriptionChannel     { return SubscriptionTicker }
func (BookAck) SubscriptionChannel() SubscriptionChannel       { return SubscriptionBook }
func (Level3Ack) SubscriptionChannel() SubscriptionChannel     { return SubscriptionLevel3 }
func (OhlcAck) SubscriptionChannel() SubscriptionChannel       { return SubscriptionOhlc }
func (TradeAck) SubscriptionChannel() SubscriptionChannel      { return SubscriptionTrade }
func (InstrumentAck) SubscriptionChannel() SubscriptionChannel { return SubscriptionInstrument }

func (ExecutionsUnsubAck) SubscriptionChannel() SubscriptionChannel { return SubscriptionExecutions }
func (BalancesUnsubAck) SubscriptionChannel() SubscriptionChannel   { return SubscriptionBalances }
func (TickerUnsubAck) SubscriptionChannel() SubscriptionChannel     { return SubscriptionTicker }
func (BookUnsubAck) SubscriptionChannel() SubscriptionChannel       { return SubscriptionBook }
func (Level3UnsubAck) SubscriptionChannel() SubscriptionChannel     { return SubscriptionLevel3 }
func (OhlcUnsubAck) SubscriptionChannel() SubscriptionChannel       { return SubscriptionOhlc }
func (TradeUnsubAck) SubscriptionChannel() SubscriptionChannel      { return SubscriptionTrade }
func (InstrumentUnsubAck) SubscriptionChannel() SubscriptionChannel { return SubscriptionInstrument }

func (ExecutionsAck) isMethodResult()      {}
func (BalancesAck) isMethodResult()        {}
func (TickerAck) isMethodResult()          {}
func (BookAck) isMethodResult()            {}
func (Level3Ack) isMethodResult()          {}
func (OhlcAck) isMethodResult()            {}
func (TradeAck) isMethodResult()           {}
func (InstrumentAck) isMethodResult()      {}
func (ExecutionsUnsubAck) isMethodResult() {}
func (BalancesUnsubAck) isMethodResult()   {}
func (TickerUnsubAck) isMethodResult()     {}
func (BookUnsubAck) isMethodResult()       {}
func (Level3UnsubAck) isMethodResult()     {}
func (OhlcUnsubAck) isMethodResult()       {}
func (TradeUnsubAck) isMethodResult()      {}
func (InstrumentUnsubAck) isMethodResult() {}

func (ExecutionsAck) isSubscriptionAck() {}
func (BalancesAck) isSubscriptionAck()   {}
func (TickerAck) isSubscriptionAck()     {}
func (BookAck) isSubscriptionAck()       {}
func (Level3Ack) isSubscriptionAck()     {}
func (OhlcAck) isSubscriptionAck()       {}
func (TradeAck) isSubscriptionAck()      {}
func (InstrumentAck) isSubscriptionAck() {}

func (ExecutionsUnsubAck) isUnsubscriptionAck() {}
func (BalancesUnsubAck) isUnsubscriptionAck()   {}
func (TickerUnsubAck) isUnsubscriptionAck()     {}
func (BookUnsubAck) isUnsubscriptionAck()       {}
func (Level3UnsubAck) isUnsubscriptionAck()     {}
func (OhlcUnsubAck) isUnsubscriptionAck()       {}
func (TradeUnsubAck) isUnsubscriptionAck()      {}
func (InstrumentUnsubAck) isUnsubscriptionAck() {}

func resultChannel(raw json.RawMessage, opts ...errs.Option) (SubscriptionChannel, error) {
	var head struct {
		Channel *string `json:"channel"`
	}
	if err := decodeRaw(raw, &head, opts...); err != nil {
		return "", err
	}
	if head.Channel == nil {
		return "", mismatch("missing required field", append(opts, errs.WithField("field", "result.channel"))...)
	}
	return SubscriptionChannel(*head.Channel), nil
}

func decodeSubscriptionAck(raw json.RawMessage) (SubscriptionAck, error) {
	opts := []errs.Option{errs.WithField("method", string(MethodSubscribe))}
	channel, err := resultChannel(raw, opts...)
	if err != nil {
		return nil, err
	}
	switch channel {
	case SubscriptionExecutions:
		return decodeAck[ExecutionsAck](raw, opts...)
	case SubscriptionBalances:
		return decodeAck[BalancesAck](raw, opts...)
	case SubscriptionTicker:
		return decodeAck[TickerAck](raw, opts...)
	case SubscriptionBook:
		return decodeAck[BookAck](raw, opts...)
	case SubscriptionLevel3:
		return decodeAck[Level3Ack](raw, opts...)
	case SubscriptionOhlc:
		return decodeAck[OhlcAck](raw, opts...)
	case SubscriptionTrade:
		return decodeAck[TradeAck](raw, opts...)
	case SubscriptionInstrument:
		return decodeAck[InstrumentAck](raw, opts...)
	default:
		return nil, unrecognizedTag("subscription_channel", string(channel))
	}
}

func decodeUnsubscriptionAck(raw json.RawMessage) (UnsubscriptionAck, error) {
	opts := []errs.Option{errs.WithField("method", string(MethodUnsubscribe))}
	channel, err := resultChannel(raw, opts...)
	if err != nil {
		return nil, err
	}
	switch channel {
	case SubscriptionExecutions:
		return decodeAck[ExecutionsUnsubAck](raw, opts...)
	case SubscriptionBalances:
		return decodeAck[BalancesUnsubAck](raw, opts...)
	case SubscriptionTicker:
		return decodeAck[TickerUnsubAck](raw, opts...)
	case SubscriptionBook:
		return decodeAck[BookUnsubAck](raw, opts...)
	case SubscriptionLevel3:
		return decodeAck[Level3UnsubAck](raw, opts...)
	case SubscriptionOhlc:
		return decodeAck[OhlcUnsubAck](raw, opts...)
	case SubscriptionTrade:
		return decodeAck[TradeUnsubAck](raw, opts...)
	case SubscriptionInstrument:
		return decodeAck[InstrumentUnsubAck](raw, opts...)
	default:
		return nil, unrecognizedTag("subscription_channel", string(channel))
	}
}

func decodeAck[T any](raw json.RawMessage, opts ...errs.Option) (T, error) {
	var ack T
	if err := decodeRaw(raw, &ack, opts...); err != nil {
		var zero T
		return zero, err
	}
	return ack, nil
}
