package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/krakenws/errs"
)

func intPtr(v int) *int { return &v }

func TestDecodeSubscriptionAcks(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		reqID int64
		want  SubscriptionAck
	}{
		{
			name:  "executions",
			frame: `{"method":"subscribe","req_id":0,"result":{"channel":"executions","maxratecount":180,"snapshot":true,"warnings":["cancel_reason is deprecated, use reason","stop_price is deprecated, use triggers.price","trigger is deprecated use triggers.reference","triggered_price is deprecated use triggers.last_price"]},"success":true,"time_in":"2024-05-19T19:30:36.343170Z","time_out":"2024-05-19T19:30:36.350083Z"}`,
			reqID: 0,
			want: ExecutionsAck{
				MaxRateCount: int64Ptr(180),
				Snapshot:     boolPtr(true),
				Warnings: []string{
					"cancel_reason is deprecated, use reason",
					"stop_price is deprecated, use triggers.price",
					"trigger is deprecated use triggers.reference",
					"triggered_price is deprecated use triggers.last_price",
				},
			},
		},
		{
			name:  "balances",
			frame: `{"method":"subscribe","req_id":10312008,"result":{"channel":"balances","snapshot":true},"success":true,"time_in":"2024-05-19T16:25:28.289124Z","time_out":"2024-05-19T16:25:28.293750Z"}`,
			reqID: 10312008,
			want:  BalancesAck{Snapshot: boolPtr(true)},
		},
		{
			name:  "ticker",
			frame: `{"method":"subscribe","req_id":42,"result":{"channel":"ticker","event_trigger":"trades","snapshot":true,"symbol":"BTC/USD"},"success":true,"time_in":"2024-05-15T11:20:43.013486Z","time_out":"2024-05-15T11:20:43.013545Z"}`,
			reqID: 42,
			want:  TickerAck{Symbol: "BTC/USD", EventTrigger: EventTriggerTrades, Snapshot: boolPtr(true)},
		},
		{
			name:  "book",
			frame: `{"method":"subscribe","req_id":11,"result":{"channel":"book","depth":10,"snapshot":true,"symbol":"BTC/USD"},"success":true,"time_in":"2024-05-19T16:27:13.694962Z","time_out":"2024-05-19T16:27:13.695006Z"}`,
			reqID: 11,
			want:  BookAck{Symbol: "BTC/USD", Snapshot: boolPtr(true), Depth: intPtr(10)},
		},
		{
			name:  "level3",
			frame: `{"method":"subscribe","req_id":99,"result":{"channel":"level3","snapshot":true,"symbol":"BTC/USD"},"success":true,"time_in":"2024-05-19T18:51:30.701627Z","time_out":"2024-05-19T18:51:30.708403Z"}`,
			reqID: 99,
			want:  Level3Ack{Symbol: "BTC/USD", Snapshot: boolPtr(true)},
		},
		{
			name:  "ohlc",
			frame: `{"method":"subscribe","req_id":121,"result":{"channel":"ohlc","interval":60,"snapshot":true,"symbol":"ETH/USD","warnings":["timestamp is deprecated, use interval_begin"]},"success":true,"time_in":"2024-05-19T19:06:57.002983Z","time_out":"2024-05-19T19:06:57.003037Z"}`,
			reqID: 121,
			want: OhlcAck{
				Symbol:   "ETH/USD",
				Snapshot: boolPtr(true),
				Interval: 60,
				Warnings: []string{"timestamp is deprecated, use interval_begin"},
			},
		},
		{
			name:  "trade",
			frame: `{"method":"subscribe","req_id":0,"result":{"channel":"trade","snapshot":true,"symbol":"BTC/USD"},"success":true,"time_in":"2024-05-19T19:11:23.034030Z","time_out":"2024-05-19T19:11:23.034073Z"}`,
			reqID: 0,
			want:  TradeAck{Symbol: "BTC/USD", Snapshot: boolPtr(true)},
		},
		{
			name:  "instrument",
			frame: `{"method":"subscribe","req_id":0,"result":{"channel":"instrument","snapshot":true,"warnings":["tick_size is deprecated, use price_increment"]},"success":true,"time_in":"2024-05-19T19:44:43.264430Z","time_out":"2024-05-19T19:44:43.264464Z"}`,
			reqID: 0,
			want:  InstrumentAck{Snapshot: boolPtr(true), Warnings: []string{"tick_size is deprecated, use price_increment"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.frame))
			require.NoError(t, err)

			reply, ok := msg.(*MethodReply)
			require.True(t, ok, "expected *MethodReply, got %T", msg)
			require.Equal(t, MethodSubscribe, reply.Method)
			require.True(t, reply.Success)
			require.Equal(t, tc.reqID, reply.ReqID)

			ack, ok := reply.Result.(SubscriptionAck)
			require.True(t, ok, "expected SubscriptionAck, got %T", reply.Result)
			require.Equal(t, tc.want, ack)
			require.Equal(t, SubscriptionChannel(tc.name), ack.SubscriptionChannel())
		})
	}
}

func TestDecodeUnsubscriptionAcks(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		want  UnsubscriptionAck
	}{
		{
			name:  "executions",
			frame: `{"method":"unsubscribe","req_id":121,"result":{"channel":"executions"},"success":true,"time_in":"2024-05-19T19:06:57.002983Z","time_out":"2024-05-19T19:06:57.003037Z"}`,
			want:  ExecutionsUnsubAck{},
		},
		{
			name:  "ohlc",
			frame: `{"method":"unsubscribe","req_id":121,"result":{"channel":"ohlc","interval":60,"symbol":"ETH/USD"},"success":true,"time_in":"2024-05-19T19:06:57.002983Z","time_out":"2024-05-19T19:06:57.003037Z"}`,
			want:  OhlcUnsubAck{Symbol: "ETH/USD", Interval: 60},
		},
		{
			name:  "book",
			frame: `{"method":"unsubscribe","req_id":121,"result":{"channel":"book","depth":25,"symbol":"BTC/USD"},"success":true,"time_in":"2024-05-19T19:06:57.002983Z","time_out":"2024-05-19T19:06:57.003037Z"}`,
			want:  BookUnsubAck{Symbol: "BTC/USD", Depth: intPtr(25)},
		},
		{
			name:  "instrument",
			frame: `{"method":"unsubscribe","req_id":121,"result":{"channel":"instrument"},"success":true,"time_in":"2024-05-19T19:06:57.002983Z","time_out":"2024-05-19T19:06:57.003037Z"}`,
			want:  InstrumentUnsubAck{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.frame))
			require.NoError(t, err)

			reply := msg.(*MethodReply)
			require.Equal(t, MethodUnsubscribe, reply.Method)
			require.EqualValues(t, 121, reply.ReqID)
			ack, ok := reply.Result.(UnsubscriptionAck)
			require.True(t, ok, "expected UnsubscriptionAck, got %T", reply.Result)
			require.Equal(t, tc.want, ack)
			require.Equal(t, SubscriptionChannel(tc.name), ack.SubscriptionChannel())
		})
	}
}

func TestDecodeAckUnknownChannel(t *testing.T) {
	frame := `{"method":"subscribe","req_id":1,"result":{"channel":"spread","symbol":"BTC/USD"},"success":true,"time_in":"a","time_out":"b"}`
	_, err := Decode([]byte(frame))
	require.True(t, errs.HasCode(err, errs.CodeUnrecognizedTag), "got %v", err)

	frame = `{"method":"unsubscribe","req_id":1,"result":{"symbol":"BTC/USD"},"success":true,"time_in":"a","time_out":"b"}`
	_, err = Decode([]byte(frame))
	require.True(t, errs.HasCode(err, errs.CodeStructuralMismatch), "got %v", err)
}
