package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/coachpo/krakenws/errs"
	"github.com/coachpo/krakenws/internal/config"
	"github.com/coachpo/krakenws/internal/router"
	"github.com/coachpo/krakenws/internal/wire"
)

const stamp = `"time_in":"2024-05-15T11:20:43.013486Z","time_out":"2024-05-15T11:20:43.013545Z"`

type request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ReqID  int64           `json:"req_id"`
}

// respondFunc answers one request on the given connection. Returning false
// drops the connection.
type respondFunc func(ctx context.Context, conn *websocket.Conn, connection int, req request) bool

type exchange struct {
	server      *httptest.Server
	connections atomic.Int32

	mu       sync.Mutex
	requests []request
}

func newExchange(t *testing.T, respond respondFunc) *exchange {
	t.Helper()
	ex := &exchange{}
	ex.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		n := int(ex.connections.Add(1))
		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var req request
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}
			ex.mu.Lock()
			ex.requests = append(ex.requests, req)
			ex.mu.Unlock()
			if !respond(ctx, conn, n, req) {
				_ = conn.Close(websocket.StatusGoingAway, "bye")
				return
			}
		}
	}))
	t.Cleanup(ex.server.Close)
	return ex
}

func (ex *exchange) endpoint() string {
	return "ws" + strings.TrimPrefix(ex.server.URL, "http")
}

func (ex *exchange) methods() []string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	out := make([]string, 0, len(ex.requests))
	for _, req := range ex.requests {
		out = append(out, req.Method)
	}
	return out
}

func write(ctx context.Context, conn *websocket.Conn, frame string) bool {
	return conn.Write(ctx, websocket.MessageText, []byte(frame)) == nil
}

func tickerAck(reqID int64) string {
	return fmt.Sprintf(`{"method":"subscribe","req_id":%d,"result":{"channel":"ticker","event_trigger":"trades","snapshot":true,"symbol":"BTC/USD"},"success":true,%s}`, reqID, stamp)
}

func pong(reqID int64) string {
	return fmt.Sprintf(`{"method":"pong","req_id":%d,%s}`, reqID, stamp)
}

// answer acknowledges subscriptions and pings the way the exchange does.
func answer(ctx context.Context, conn *websocket.Conn, _ int, req request) bool {
	switch req.Method {
	case "subscribe":
		return write(ctx, conn, tickerAck(req.ReqID))
	case "ping":
		return write(ctx, conn, pong(req.ReqID))
	default:
		return true
	}
}

func testConfig(endpoint string) config.ConnectionConfig {
	return config.ConnectionConfig{
		Endpoint:       endpoint,
		DialTimeout:    time.Second,
		RequestTimeout: 2 * time.Second,
		ReadLimitBytes: 1 << 20,
		StartReqID:     100,
		RequestRate:    1000,
		RequestBurst:   10,
		Reconnect: config.ReconnectConfig{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			MaxElapsed:      2 * time.Second,
		},
	}
}

func startSession(t *testing.T, cfg config.ConnectionConfig, opts ...Option) *Session {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	r := router.New(router.WithMeter(mp.Meter("test")))
	t.Cleanup(r.Close)
	s := New(cfg, r, append([]Option{WithMeter(mp.Meter("test"))}, opts...)...)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func tickerParams() wire.TickerSubscription {
	return wire.TickerSubscription{Symbol: []string{"BTC/USD"}}
}

func TestSubscribeRoundTrip(t *testing.T) {
	ex := newExchange(t, func(ctx context.Context, conn *websocket.Conn, n int, req request) bool {
		if !answer(ctx, conn, n, req) {
			return false
		}
		if req.Method == "subscribe" {
			return write(ctx, conn, `{"channel":"ticker","type":"update","data":[{"symbol":"BTC/USD","bid":0.10025,"bid_qty":740.0,"ask":0.10036,"ask_qty":1361.44813783,"last":0.10035,"volume":997038.98383185,"vwap":0.10148,"low":0.09979,"high":0.10285,"change":-0.00017,"change_pct":-0.17}]}`)
		}
		return true
	})
	s := startSession(t, testConfig(ex.endpoint()))

	tickers := make(chan wire.ChannelMessage, 1)
	s.Router().OnChannel(wire.ChannelTicker, func(_ context.Context, msg wire.ChannelMessage) {
		tickers <- msg
	})

	reply, err := s.Subscribe(context.Background(), tickerParams())
	require.NoError(t, err)
	require.EqualValues(t, 100, reply.ReqID)
	require.Equal(t, wire.SubscriptionTicker, reply.Result.(wire.SubscriptionAck).SubscriptionChannel())

	select {
	case msg := <-tickers:
		require.Equal(t, wire.ChannelTicker, msg.Channel())
	case <-time.After(2 * time.Second):
		t.Fatal("ticker update not delivered")
	}

	reply, err = s.Ping(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 101, reply.ReqID)
	require.Equal(t, wire.MethodPong, reply.Method)
	require.Equal(t, []string{"subscribe", "ping"}, ex.methods())
}

func TestRejectedSubscription(t *testing.T) {
	ex := newExchange(t, func(ctx context.Context, conn *websocket.Conn, _ int, req request) bool {
		return write(ctx, conn, fmt.Sprintf(`{"error":"Currency pair not supported","method":"subscribe","req_id":%d,"success":false,%s}`, req.ReqID, stamp))
	})
	s := startSession(t, testConfig(ex.endpoint()))

	reply, err := s.Subscribe(context.Background(), tickerParams())
	require.True(t, errs.HasCode(err, errs.CodeRejected), "got %v", err)
	require.NotNil(t, reply)
	require.False(t, reply.Success)
	require.Equal(t, "Currency pair not supported", reply.Error)
}

func TestRequestTimesOutWithoutReply(t *testing.T) {
	ex := newExchange(t, func(context.Context, *websocket.Conn, int, request) bool { return true })
	cfg := testConfig(ex.endpoint())
	cfg.RequestTimeout = 50 * time.Millisecond
	s := startSession(t, cfg)

	_, err := s.Ping(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 0, s.Router().InFlight())
}

func TestKeepaliveSendsPings(t *testing.T) {
	ex := newExchange(t, answer)
	cfg := testConfig(ex.endpoint())
	cfg.PingInterval = 20 * time.Millisecond
	startSession(t, cfg)

	require.Eventually(t, func() bool {
		return len(ex.methods()) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	for _, m := range ex.methods() {
		require.Equal(t, "ping", m)
	}
}

func TestReconnectRunsConnectHooks(t *testing.T) {
	ex := newExchange(t, func(ctx context.Context, conn *websocket.Conn, n int, req request) bool {
		answer(ctx, conn, n, req)
		// The first connection drops right after its subscription.
		return n > 1
	})

	var acks atomic.Int32
	hook := func(ctx context.Context, s *Session) error {
		if _, err := s.Subscribe(ctx, tickerParams()); err != nil {
			return err
		}
		acks.Add(1)
		return nil
	}
	s := startSession(t, testConfig(ex.endpoint()), OnConnect(hook))

	require.Eventually(t, func() bool {
		return ex.connections.Load() >= 2 && acks.Load() >= 2
	}, 3*time.Second, 10*time.Millisecond)
	select {
	case <-s.Done():
		t.Fatalf("session stopped: %v", s.Err())
	default:
	}
}

func TestStartFailsWhenUnreachable(t *testing.T) {
	ex := newExchange(t, answer)
	endpoint := ex.endpoint()
	ex.server.Close()

	cfg := testConfig(endpoint)
	cfg.Reconnect.MaxAttempts = 2
	s := New(cfg, nil)
	err := s.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "dial")

	<-s.Done()
	require.Error(t, s.Err())
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestSendWithoutConnection(t *testing.T) {
	s := New(testConfig("ws://127.0.0.1:0"), nil)
	_, err := s.Ping(context.Background())
	require.True(t, errors.Is(err, ErrNotConnected), "got %v", err)
	require.Equal(t, 0, s.Router().InFlight())
}

func TestCustomDialer(t *testing.T) {
	ex := newExchange(t, answer)
	var dialed atomic.Int32
	dialer := func(ctx context.Context, _ string) (*websocket.Conn, error) {
		dialed.Add(1)
		conn, _, err := websocket.Dial(ctx, ex.endpoint(), nil)
		return conn, err
	}
	s := startSession(t, testConfig("ws://unused.invalid"), WithDialer(dialer))

	_, err := s.Ping(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, dialed.Load())
}
