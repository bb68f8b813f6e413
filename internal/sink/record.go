// Package sink forwards decoded feed messages to external stores.
package sink

import (
	"bytes"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/coachpo/krakenws/internal/wire"
)

// ErrSkipped is returned by RecordsOf for messages that carry nothing worth
// forwarding, such as heartbeats.
var ErrSkipped = errors.New("sink: message skipped")

// Record is the sink-side form of one feed message.
type Record struct {
	Channel wire.Channel
	Type    wire.FeedType
	// Symbol is empty for account and system channels.
	Symbol  string
	Payload []byte
}

// Key identifies the latest-state slot a record replaces.
func (r Record) Key() string {
	if r.Symbol == "" {
		return string(r.Channel)
	}
	return string(r.Channel) + ":" + r.Symbol
}

type payload struct {
	Channel wire.Channel  `json:"channel"`
	Type    wire.FeedType `json:"type,omitempty"`
	Data    any           `json:"data"`
}

// RecordsOf converts a feed message into records whose payloads are the
// message re-encoded as JSON with decimals kept as strings. Trade and ohlc
// batches that mix symbols yield one record per symbol, in order of first
// appearance, so each record lands on its own symbol's key.
func RecordsOf(msg wire.ChannelMessage) ([]Record, error) {
	switch m := msg.(type) {
	case wire.StatusMessage:
		return one(msg.Channel(), m.Type, "", m.Data)
	case wire.ExecutionsMessage:
		return one(msg.Channel(), m.Type, "", m.Data)
	case wire.BalancesMessage:
		if m.Type == wire.FeedUpdate {
			return one(msg.Channel(), m.Type, "", m.Updates)
		}
		return one(msg.Channel(), m.Type, "", m.Snapshot)
	case wire.TradeMessage:
		return perSymbol(msg.Channel(), m.Type, m.Data, func(t wire.Trade) string { return t.Symbol })
	case wire.TickerMessage:
		return one(msg.Channel(), m.Type, m.Data.Symbol, m.Data)
	case wire.OhlcMessage:
		return perSymbol(msg.Channel(), m.Type, m.Data, func(o wire.Ohlc) string { return o.Symbol })
	case wire.InstrumentMessage:
		return one(msg.Channel(), m.Type, "", m.Data)
	case wire.BookMessage:
		return one(msg.Channel(), m.Type, m.Data.Symbol, m.Data)
	case wire.Level3Message:
		return one(msg.Channel(), m.Type, m.Data.Symbol, m.Data)
	default:
		return nil, ErrSkipped
	}
}

func one(channel wire.Channel, feedType wire.FeedType, symbol string, data any) ([]Record, error) {
	rec, err := newRecord(channel, feedType, symbol, data)
	if err != nil {
		return nil, err
	}
	return []Record{rec}, nil
}

func perSymbol[T any](channel wire.Channel, feedType wire.FeedType, data []T, symbolOf func(T) string) ([]Record, error) {
	if len(data) == 0 {
		return one(channel, feedType, "", data)
	}
	var order []string
	groups := make(map[string][]T)
	for _, d := range data {
		sym := symbolOf(d)
		if _, ok := groups[sym]; !ok {
			order = append(order, sym)
		}
		groups[sym] = append(groups[sym], d)
	}
	out := make([]Record, 0, len(order))
	for _, sym := range order {
		rec, err := newRecord(channel, feedType, sym, groups[sym])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func newRecord(channel wire.Channel, feedType wire.FeedType, symbol string, data any) (Record, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload{Channel: channel, Type: feedType, Data: data}); err != nil {
		return Record{}, fmt.Errorf("encode %s record: %w", channel, err)
	}
	return Record{
		Channel: channel,
		Type:    feedType,
		Symbol:  symbol,
		Payload: bytes.TrimSpace(buf.Bytes()),
	}, nil
}
