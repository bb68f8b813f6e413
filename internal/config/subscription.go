package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/coachpo/krakenws/internal/wire"
)

var (
	ohlcIntervals = []int{1, 5, 15, 30, 60, 240, 1440, 10080, 21600}
	bookDepths    = []int{10, 25, 100, 500, 1000}
)

// SubscriptionConfig declares one channel subscription. Session tokens are
// never stored in the file; TokenEnv names the environment variable that
// holds one.
type SubscriptionConfig struct {
	Channel        string   `yaml:"channel"`
	Symbols        []string `yaml:"symbols"`
	Depth          int      `yaml:"depth"`
	Interval       int      `yaml:"interval"`
	EventTrigger   string   `yaml:"eventTrigger"`
	Snapshot       *bool    `yaml:"snapshot"`
	SnapshotTrades *bool    `yaml:"snapshotTrades"`
	RateCounter    *bool    `yaml:"rateCounter"`
	TokenEnv       string   `yaml:"tokenEnv"`
}

func (s *SubscriptionConfig) normalise() {
	s.Channel = strings.ToLower(strings.TrimSpace(s.Channel))
	s.EventTrigger = strings.ToLower(strings.TrimSpace(s.EventTrigger))
	s.TokenEnv = strings.TrimSpace(s.TokenEnv)
	symbols := make([]string, 0, len(s.Symbols))
	for _, sym := range s.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || slices.Contains(symbols, sym) {
			continue
		}
		symbols = append(symbols, sym)
	}
	s.Symbols = symbols
}

func (s SubscriptionConfig) channel() wire.SubscriptionChannel {
	return wire.SubscriptionChannel(s.Channel)
}

func (s SubscriptionConfig) requiresToken() bool {
	switch s.channel() {
	case wire.SubscriptionExecutions, wire.SubscriptionBalances, wire.SubscriptionLevel3:
		return true
	default:
		return false
	}
}

func (s SubscriptionConfig) requiresSymbols() bool {
	switch s.channel() {
	case wire.SubscriptionTicker, wire.SubscriptionBook, wire.SubscriptionLevel3,
		wire.SubscriptionOhlc, wire.SubscriptionTrade:
		return true
	default:
		return false
	}
}

func (s SubscriptionConfig) key() string {
	parts := []string{s.Channel, strings.Join(s.Symbols, ",")}
	if s.channel() == wire.SubscriptionOhlc {
		parts = append(parts, strconv.Itoa(s.Interval))
	}
	return strings.Join(parts, "/")
}

func (s SubscriptionConfig) validate() error {
	if !slices.Contains(wire.SubscriptionChannels(), s.channel()) {
		return fmt.Errorf("unknown channel %q", s.Channel)
	}
	if s.requiresSymbols() && len(s.Symbols) == 0 {
		return fmt.Errorf("channel %s requires symbols", s.Channel)
	}
	if !s.requiresSymbols() && len(s.Symbols) > 0 {
		return fmt.Errorf("channel %s does not take symbols", s.Channel)
	}
	if s.requiresToken() && s.TokenEnv == "" {
		return fmt.Errorf("channel %s requires tokenEnv", s.Channel)
	}
	switch s.channel() {
	case wire.SubscriptionOhlc:
		if !slices.Contains(ohlcIntervals, s.Interval) {
			return fmt.Errorf("ohlc interval %d not one of %v", s.Interval, ohlcIntervals)
		}
	case wire.SubscriptionBook, wire.SubscriptionLevel3:
		if s.Depth != 0 && !slices.Contains(bookDepths, s.Depth) {
			return fmt.Errorf("depth %d not one of %v", s.Depth, bookDepths)
		}
	case wire.SubscriptionTicker:
		switch wire.EventTrigger(s.EventTrigger) {
		case "", wire.EventTriggerTrades, wire.EventTriggerBBO:
		default:
			return fmt.Errorf("eventTrigger must be trades or bbo")
		}
	}
	return nil
}

func (s SubscriptionConfig) token() (wire.Token, error) {
	if !s.requiresToken() {
		return "", nil
	}
	value, ok := os.LookupEnv(s.TokenEnv)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("environment variable %s holds no session token", s.TokenEnv)
	}
	return wire.Token(strings.TrimSpace(value)), nil
}

func (s SubscriptionConfig) depth() *int {
	if s.Depth == 0 {
		return nil
	}
	d := s.Depth
	return &d
}

// Params builds the subscribe parameters for the configured channel.
func (s SubscriptionConfig) Params() (wire.SubscribeParams, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	switch s.channel() {
	case wire.SubscriptionExecutions:
		return wire.ExecutionsSubscription{
			Token:          token,
			Snapshot:       s.Snapshot,
			SnapshotTrades: s.SnapshotTrades,
			RateCounter:    s.RateCounter,
		}, nil
	case wire.SubscriptionBalances:
		return wire.BalancesSubscription{Token: token, Snapshot: s.Snapshot}, nil
	case wire.SubscriptionTicker:
		return wire.TickerSubscription{
			Symbol:       s.Symbols,
			EventTrigger: wire.EventTrigger(s.EventTrigger),
			Snapshot:     s.Snapshot,
		}, nil
	case wire.SubscriptionBook:
		return wire.BookSubscription{Symbol: s.Symbols, Depth: s.depth(), Snapshot: s.Snapshot}, nil
	case wire.SubscriptionLevel3:
		return wire.Level3Subscription{Symbol: s.Symbols, Depth: s.depth(), Snapshot: s.Snapshot, Token: token}, nil
	case wire.SubscriptionOhlc:
		return wire.OhlcSubscription{Symbol: s.Symbols, Interval: s.Interval, Snapshot: s.Snapshot}, nil
	case wire.SubscriptionTrade:
		return wire.TradeSubscription{Symbol: s.Symbols, Snapshot: s.Snapshot}, nil
	case wire.SubscriptionInstrument:
		return wire.InstrumentSubscription{Snapshot: s.Snapshot}, nil
	default:
		return nil, fmt.Errorf("unknown channel %q", s.Channel)
	}
}

// UnsubscribeParams builds the matching unsubscribe parameters.
func (s SubscriptionConfig) UnsubscribeParams() (wire.UnsubscribeParams, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	switch s.channel() {
	case wire.SubscriptionExecutions:
		return wire.ExecutionsUnsubscription{Token: token}, nil
	case wire.SubscriptionBalances:
		return wire.BalancesUnsubscription{Token: token}, nil
	case wire.SubscriptionTicker:
		return wire.TickerUnsubscription{Symbol: s.Symbols, EventTrigger: wire.EventTrigger(s.EventTrigger)}, nil
	case wire.SubscriptionBook:
		return wire.BookUnsubscription{Symbol: s.Symbols, Depth: s.depth()}, nil
	case wire.SubscriptionLevel3:
		return wire.Level3Unsubscription{Symbol: s.Symbols, Token: token}, nil
	case wire.SubscriptionOhlc:
		return wire.OhlcUnsubscription{Symbol: s.Symbols, Interval: s.Interval}, nil
	case wire.SubscriptionTrade:
		return wire.TradeUnsubscription{Symbol: s.Symbols}, nil
	case wire.SubscriptionInstrument:
		return wire.InstrumentUnsubscription{}, nil
	default:
		return nil, fmt.Errorf("unknown channel %q", s.Channel)
	}
}
