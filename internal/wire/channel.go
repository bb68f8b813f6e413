package wire

import (
	"github.com/coachpo/krakenws/errs"
)

// Channel tags asynchronous feed messages.
type Channel string

const (
	ChannelHeartbeat  Channel = "heartbeat"
	ChannelStatus     Channel = "status"
	ChannelExecutions Channel = "executions"
	ChannelBalances   Channel = "balances"
	ChannelTrade      Channel = "trade"
	ChannelTicker     Channel = "ticker"
	ChannelOhlc       Channel = "ohlc"
	ChannelInstrument Channel = "instrument"
	ChannelBook       Channel = "book"
	ChannelLevel3     Channel = "level3"
)

// Channels lists every known feed tag.
func Channels() []Channel {
	return []Channel{
		ChannelHeartbeat,
		ChannelStatus,
		ChannelExecutions,
		ChannelBalances,
		ChannelTrade,
		ChannelTicker,
		ChannelOhlc,
		ChannelInstrument,
		ChannelBook,
		ChannelLevel3,
	}
}

// FeedType distinguishes an initial full-state dump from an incremental change.
type FeedType string

const (
	FeedSnapshot FeedType = "snapshot"
	FeedUpdate   FeedType = "update"
)

// ChannelMessage is one decoded feed message. The concrete type is
// determined by the channel tag.
type ChannelMessage interface {
	Message
	Channel() Channel
}

// Heartbeat is sent roughly once per second when no other feed traffic flows.
type Heartbeat struct{}

// StatusMessage reports the exchange system state, sent on connect and on change.
type StatusMessage struct {
	Type FeedType
	Data Status
}

// ExecutionsMessage carries order and fill events for the authenticated user.
type ExecutionsMessage struct {
	Type     FeedType
	Sequence int64
	Data     []Execution
}

// BalancesMessage carries Snapshot rows when Type is snapshot and Updates
// ledger entries when Type is update.
type BalancesMessage struct {
	Type     FeedType
	Sequence int64
	Snapshot []Balance
	Updates  []LedgerUpdate
}

// TradeMessage carries one or more prints in exchange order.
type TradeMessage struct {
	Type FeedType
	Data []Trade
}

// TickerMessage carries the level-1 summary of one symbol.
type TickerMessage struct {
	Type FeedType
	Data Ticker
}

// OhlcMessage carries candles; Timestamp is the frame time when present.
type OhlcMessage struct {
	Type      FeedType
	Timestamp string
	Data      []Ohlc
}

// InstrumentMessage carries the reference data for assets and pairs.
type InstrumentMessage struct {
	Type FeedType
	Data Instruments
}

// BookMessage carries a level-2 snapshot or update for one symbol.
type BookMessage struct {
	Type FeedType
	Data L2
}

// Level3Message carries order-by-order book changes for one symbol.
type Level3Message struct {
	Type FeedType
	Data L3
}

func (Heartbeat) Channel() Channel         { return ChannelHeartbeat }
func (StatusMessage) Channel() Channel     { return ChannelStatus }
func (ExecutionsMessage) Channel() Channel { return ChannelExecutions }
func (BalancesMessage) Channel() Channel   { return ChannelBalances }
func (TradeMessage) Channel() Channel      { return ChannelTrade }
func (TickerMessage) Channel() Channel     { return ChannelTicker }
func (OhlcMessage) Channel() Channel       { return ChannelOhlc }
func (InstrumentMessage) Channel() Channel { return ChannelInstrument }
func (BookMessage) Channel() Channel       { return ChannelBook }
func (Level3Message) Channel() Channel     { return ChannelLevel3 }

func (Heartbeat) Family() Family         { return FamilyChannel }
func (StatusMessage) Family() Family     { return FamilyChannel }
func (ExecutionsMessage) Family() Family { return FamilyChannel }
func (BalancesMessage) Family() Family   { return FamilyChannel }
func (TradeMessage) Family() Family      { return FamilyChannel }
func (TickerMessage) Family() Family     { return FamilyChannel }
func (OhlcMessage) Family() Family       { return FamilyChannel }
func (InstrumentMessage) Family() Family { return FamilyChannel }
func (BookMessage) Family() Family       { return FamilyChannel }
func (Level3Message) Family() Family     { return FamilyChannel }

func decodeChannelMessage(f frame) (ChannelMessage, error) {
	var tag string
	if err := f.field("channel", &tag); err != nil {
		return nil, err
	}
	opts := []errs.Option{errs.WithField("channel", tag)}

	feedType, err := decodeFeedType(f, opts)
	if err != nil {
		return nil, err
	}

	switch Channel(tag) {
	case ChannelHeartbeat:
		return Heartbeat{}, nil
	case ChannelStatus:
		data, err := singularData[Status](f, opts)
		if err != nil {
			return nil, err
		}
		return StatusMessage{Type: feedType, Data: data}, nil
	case ChannelExecutions:
		return decodeExecutions(f, feedType, opts)
	case ChannelBalances:
		return decodeBalances(f, feedType, opts)
	case ChannelTrade:
		msg := TradeMessage{Type: feedType}
		if err := f.field("data", &msg.Data, opts...); err != nil {
			return nil, err
		}
		return msg, nil
	case ChannelTicker:
		data, err := singularData[Ticker](f, opts)
		if err != nil {
			return nil, err
		}
		return TickerMessage{Type: feedType, Data: data}, nil
	case ChannelOhlc:
		msg := OhlcMessage{Type: feedType}
		if err := f.field("data", &msg.Data, opts...); err != nil {
			return nil, err
		}
		if _, err := f.optionalField("timestamp", &msg.Timestamp, opts...); err != nil {
			return nil, err
		}
		return msg, nil
	case ChannelInstrument:
		msg := InstrumentMessage{Type: feedType}
		if err := f.field("data", &msg.Data, opts...); err != nil {
			return nil, err
		}
		return msg, nil
	case ChannelBook:
		data, err := singularData[L2](f, opts)
		if err != nil {
			return nil, err
		}
		return BookMessage{Type: feedType, Data: data}, nil
	case ChannelLevel3:
		data, err := singularData[L3](f, opts)
		if err != nil {
			return nil, err
		}
		return Level3Message{Type: feedType, Data: data}, nil
	default:
		return nil, unrecognizedTag("channel", tag)
	}
}

func decodeFeedType(f frame, opts []errs.Option) (FeedType, error) {
	var raw string
	ok, err := f.optionalField("type", &raw, opts...)
	if err != nil || !ok {
		return "", err
	}
	switch t := FeedType(raw); t {
	case FeedSnapshot, FeedUpdate:
		return t, nil
	default:
		return "", unrecognizedTag("type", raw)
	}
}

func singularData[T any](f frame, opts []errs.Option) (T, error) {
	if !f.has("data") {
		var zero T
		return zero, mismatch("missing required field", append(opts, errs.WithField("field", "data"))...)
	}
	return decodeSingleton[T](f["data"], append(opts, errs.WithField("field", "data"))...)
}

func decodeExecutions(f frame, feedType FeedType, opts []errs.Option) (ChannelMessage, error) {
	if feedType == "" {
		return nil, mismatch("missing required field", append(opts, errs.WithField("field", "type"))...)
	}
	msg := ExecutionsMessage{Type: feedType}
	if err := f.field("sequence", &msg.Sequence, opts...); err != nil {
		return nil, err
	}
	if err := f.field("data", &msg.Data, opts...); err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeBalances(f frame, feedType FeedType, opts []errs.Option) (ChannelMessage, error) {
	msg := BalancesMessage{Type: feedType}
	if err := f.field("sequence", &msg.Sequence, opts...); err != nil {
		return nil, err
	}
	switch feedType {
	case FeedSnapshot:
		if err := f.field("data", &msg.Snapshot, opts...); err != nil {
			return nil, err
		}
	case FeedUpdate:
		if err := f.field("data", &msg.Updates, opts...); err != nil {
			return nil, err
		}
	default:
		return nil, mismatch("missing required field", append(opts, errs.WithField("field", "type"))...)
	}
	return msg, nil
}
