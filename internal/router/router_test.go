package router

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/coachpo/krakenws/errs"
	"github.com/coachpo/krakenws/internal/observability"
	"github.com/coachpo/krakenws/internal/telemetry"
	"github.com/coachpo/krakenws/internal/wire"
)

const (
	tickerAck  = `{"method":"subscribe","req_id":42,"result":{"channel":"ticker","event_trigger":"trades","snapshot":true,"symbol":"BTC/USD"},"success":true,"time_in":"2024-05-15T11:20:43.013486Z","time_out":"2024-05-15T11:20:43.013545Z"}`
	errorReply = `{"error":"ESession:Invalid session","method":"subscribe","req_id":7,"status":"error","success":false,"time_in":"2023-04-19T12:04:41.320119Z","time_out":"2023-04-19T12:04:41.980119Z"}`
	heartbeat  = `{"channel":"heartbeat"}`
	tradeFrame = `{"channel":"trade","type":"update","data":[{"symbol":"BTC/USD","side":"sell","price":66000.1,"qty":0.01,"ord_type":"market","trade_id":4665846,"timestamp":"2024-05-19T16:32:26.777454Z"}]}`
)

type captureLogger struct {
	mu    sync.Mutex
	infos []string
	errs  []string
}

func (c *captureLogger) Debug(string, ...observability.Field) {}
func (c *captureLogger) Info(msg string, _ ...observability.Field) {
	c.mu.Lock()
	c.infos = append(c.infos, msg)
	c.mu.Unlock()
}
func (c *captureLogger) Error(msg string, _ ...observability.Field) {
	c.mu.Lock()
	c.errs = append(c.errs, msg)
	c.mu.Unlock()
}

func newTestRouter(t *testing.T) (*Router, *sdkmetric.ManualReader, *captureLogger) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	logger := &captureLogger{}
	return New(WithMeter(mp.Meter("test")), WithLogger(logger)), reader, logger
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestRouteResolvesPendingReply(t *testing.T) {
	r, reader, _ := newTestRouter(t)
	ctx := context.Background()

	p, err := r.Expect(ctx, 42)
	require.NoError(t, err)
	require.EqualValues(t, 42, p.ReqID())
	require.Equal(t, 1, r.InFlight())
	require.NoError(t, r.Route(ctx, []byte(tickerAck)))
	require.Equal(t, 0, r.InFlight())

	msg, err := p.Wait(ctx)
	require.NoError(t, err)
	reply, ok := msg.(*wire.MethodReply)
	require.True(t, ok)
	require.Equal(t, wire.MethodSubscribe, reply.Method)
	require.Equal(t, wire.SubscriptionTicker, reply.Result.(wire.SubscriptionAck).SubscriptionChannel())

	require.EqualValues(t, 1, counterTotal(t, reader, telemetry.MetricRepliesResolved))
	require.EqualValues(t, 0, counterTotal(t, reader, telemetry.MetricPendingRequests))
}

func TestRouteDeliversErrorReply(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()

	msg, err := r.Call(ctx, 7, func(context.Context) error {
		go func() { _ = r.Route(ctx, []byte(errorReply)) }()
		return nil
	})
	require.NoError(t, err)
	reply, ok := msg.(*wire.ErrorReply)
	require.True(t, ok, "got %T", msg)
	require.Equal(t, "ESession:Invalid session", reply.Error)
}

func TestCallSendFailureCancels(t *testing.T) {
	r, _, _ := newTestRouter(t)
	sendErr := errors.New("socket closed")
	_, err := r.Call(context.Background(), 3, func(context.Context) error { return sendErr })
	require.ErrorIs(t, err, sendErr)
	require.Equal(t, 0, r.InFlight())
}

func TestUnmatchedReplyIsLoggedAndCounted(t *testing.T) {
	r, reader, logger := newTestRouter(t)
	require.NoError(t, r.Route(context.Background(), []byte(tickerAck)))

	require.EqualValues(t, 1, counterTotal(t, reader, telemetry.MetricRepliesOrphaned))
	require.Equal(t, []string{"unmatched reply"}, logger.infos)
}

func TestExpectRejectsDuplicate(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()
	_, err := r.Expect(ctx, 1)
	require.NoError(t, err)
	_, err = r.Expect(ctx, 1)
	require.True(t, errs.HasCode(err, errs.CodeInvalid), "got %v", err)
}

func TestCancelReleasesRequest(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()
	p, err := r.Expect(ctx, 99)
	require.NoError(t, err)
	p.Cancel(ctx)
	require.Equal(t, 0, r.InFlight())

	_, err = r.Expect(ctx, 99)
	require.NoError(t, err, "req_id is reusable after cancel")
}

func TestWaitTimeoutForgetsRequest(t *testing.T) {
	r, reader, logger := newTestRouter(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	p, err := r.Expect(ctx, 42)
	require.NoError(t, err)
	_, err = p.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 0, r.InFlight())

	// A late reply no longer has an owner.
	require.NoError(t, r.Route(context.Background(), []byte(tickerAck)))
	require.EqualValues(t, 1, counterTotal(t, reader, telemetry.MetricRepliesOrphaned))
	require.Len(t, logger.infos, 1)
}

func TestCloseFailsPending(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()
	p, err := r.Expect(ctx, 5)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.Wait(ctx)
		done <- err
	}()
	r.Close()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Close")
	}
	_, err = r.Expect(ctx, 6)
	require.ErrorIs(t, err, ErrClosed)
	r.Close()
}

func TestFeedHandlers(t *testing.T) {
	r, reader, _ := newTestRouter(t)
	ctx := context.Background()

	var trades []wire.TradeMessage
	r.OnChannel(wire.ChannelTrade, func(_ context.Context, msg wire.ChannelMessage) {
		trades = append(trades, msg.(wire.TradeMessage))
	})
	var unhandled []wire.Channel
	r.OnUnhandled(func(_ context.Context, msg wire.ChannelMessage) {
		unhandled = append(unhandled, msg.Channel())
	})

	require.NoError(t, r.Route(ctx, []byte(tradeFrame)))
	require.NoError(t, r.Route(ctx, []byte(heartbeat)))

	require.Len(t, trades, 1)
	require.Equal(t, "BTC/USD", trades[0].Data[0].Symbol)
	require.Equal(t, wire.SideSell, trades[0].Data[0].Side)
	require.Equal(t, []wire.Channel{wire.ChannelHeartbeat}, unhandled)
	require.EqualValues(t, 2, counterTotal(t, reader, telemetry.MetricFramesDecoded))
}

func TestRouteDecodeErrorCounted(t *testing.T) {
	r, reader, logger := newTestRouter(t)
	err := r.Route(context.Background(), []byte(`{"channel":"book","type":"snapshot","data":[]}`))
	require.True(t, errs.HasCode(err, errs.CodeEmptyPayload), "got %v", err)
	require.EqualValues(t, 1, counterTotal(t, reader, telemetry.MetricDecodeErrors))
	require.Equal(t, []string{"decode frame"}, logger.errs)
}

func TestConcurrentCalls(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const n = 32
	var wg sync.WaitGroup
	tickets := make([]*Pending, 0, n)
	for i := int64(1); i <= n; i++ {
		p, err := r.Expect(ctx, i)
		require.NoError(t, err)
		tickets = append(tickets, p)
	}
	for _, p := range tickets {
		wg.Add(1)
		go func(p *Pending) {
			defer wg.Done()
			id := p.ReqID()
			msg, err := p.Wait(ctx)
			if err != nil {
				t.Errorf("await %d: %v", id, err)
				return
			}
			if got, _ := wire.CorrelationID(msg); got != id {
				t.Errorf("await %d got reply for %d", id, got)
			}
		}(p)
	}
	for i := int64(n); i >= 1; i-- {
		reply := `{"method":"pong","req_id":` + strconv.FormatInt(i, 10) + `,"time_in":"a","time_out":"b"}`
		require.NoError(t, r.Route(ctx, []byte(reply)))
	}
	wg.Wait()
	require.Equal(t, 0, r.InFlight())
}
