// Package session keeps one websocket connection to the exchange open and
// turns subscribe, unsubscribe and ping calls into correlated round trips.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/coachpo/krakenws/errs"
	"github.com/coachpo/krakenws/internal/config"
	"github.com/coachpo/krakenws/internal/observability"
	"github.com/coachpo/krakenws/internal/router"
	"github.com/coachpo/krakenws/internal/wire"
)

var (
	// ErrNotConnected is returned when a request is sent while no connection
	// is open.
	ErrNotConnected = errors.New("session not connected")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("session already started")
)

// Dialer opens a websocket connection to endpoint.
type Dialer func(ctx context.Context, endpoint string) (*websocket.Conn, error)

// ConnectHook runs after every successful dial, reconnects included, while
// the read loop is already delivering replies.
type ConnectHook func(ctx context.Context, s *Session) error

// Session is safe for concurrent use once started.
type Session struct {
	cfg     config.ConnectionConfig
	router  *router.Router
	dial    Dialer
	hooks   []ConnectHook
	limiter *rate.Limiter
	nextID  atomic.Int64
	metrics *sessionMetrics
	logger  observability.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	started bool
	err     error

	lifecycle conc.WaitGroup
	done      chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) {
		if d != nil {
			s.dial = d
		}
	}
}

// WithMeter records connection metrics on meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(s *Session) { s.metrics = newSessionMetrics(meter) }
}

// WithLogger overrides the package-level logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// OnConnect appends a hook that runs after each successful dial.
func OnConnect(hook ConnectHook) Option {
	return func(s *Session) {
		if hook != nil {
			s.hooks = append(s.hooks, hook)
		}
	}
}

// New creates a session that routes inbound frames through r. The router is
// owned by the caller and is not closed by the session.
func New(cfg config.ConnectionConfig, r *router.Router, opts ...Option) *Session {
	if r == nil {
		r = router.New()
	}
	limit := rate.Limit(cfg.RequestRate)
	if cfg.RequestRate <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RequestBurst
	if burst <= 0 {
		burst = 1
	}
	s := &Session{
		cfg:     cfg,
		router:  r,
		dial:    dialWebsocket,
		limiter: rate.NewLimiter(limit, burst),
		logger:  observability.Log(),
		done:    make(chan struct{}),
	}
	s.nextID.Store(cfg.StartReqID - 1)
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newSessionMetrics(nil)
	}
	return s
}

func dialWebsocket(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Router returns the router replies and feed messages are delivered to.
func (s *Session) Router() *router.Router { return s.router }

// Start dials the endpoint, retrying with exponential backoff, and keeps the
// connection alive in the background until ctx ends or Close is called.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	conn, err := s.connect(runCtx)
	if err != nil {
		cancel()
		s.finish(err)
		return err
	}
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.metrics.record(runCtx, stateConnected)
	s.logger.Info("connected", observability.Field{Key: "endpoint", Value: s.cfg.Endpoint})
	s.lifecycle.Go(func() { s.run(runCtx, conn) })
	return nil
}

// Done is closed once the session stops for good.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the session stopped. It is nil after a clean Close.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the connection and waits for background goroutines.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	waited := make(chan struct{})
	go func() {
		s.lifecycle.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for session goroutines: %w", ctx.Err())
	}
}

// Subscribe sends a subscribe request and waits for the acknowledgement.
func (s *Session) Subscribe(ctx context.Context, params wire.SubscribeParams) (*wire.MethodReply, error) {
	return s.call(ctx, wire.MethodSubscribe, func(reqID int64) ([]byte, error) {
		return wire.Subscribe(reqID, params)
	})
}

// Unsubscribe sends an unsubscribe request and waits for the acknowledgement.
func (s *Session) Unsubscribe(ctx context.Context, params wire.UnsubscribeParams) (*wire.MethodReply, error) {
	return s.call(ctx, wire.MethodUnsubscribe, func(reqID int64) ([]byte, error) {
		return wire.Unsubscribe(reqID, params)
	})
}

// Ping sends an application-level ping and waits for the pong.
func (s *Session) Ping(ctx context.Context) (*wire.MethodReply, error) {
	return s.call(ctx, wire.MethodPing, wire.Ping)
}

func (s *Session) call(ctx context.Context, method wire.Method, encode func(int64) ([]byte, error)) (*wire.MethodReply, error) {
	reqID := s.nextID.Add(1)
	frame, err := encode(reqID)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	msg, err := s.router.Call(callCtx, reqID, func(ctx context.Context) error {
		return s.send(ctx, frame)
	})
	if err != nil {
		return nil, fmt.Errorf("%s req_id=%d: %w", method, reqID, err)
	}
	switch reply := msg.(type) {
	case *wire.MethodReply:
		if !reply.Success {
			return reply, rejected(string(reply.Method), reqID, reply.Error)
		}
		return reply, nil
	case *wire.ErrorReply:
		return nil, rejected(reply.Method, reqID, reply.Error)
	default:
		return nil, fmt.Errorf("%s req_id=%d: unexpected reply %T", method, reqID, msg)
	}
}

func rejected(method string, reqID int64, reason string) error {
	return errs.New(errs.CodeRejected,
		errs.WithMessage(reason),
		errs.WithField("method", method),
		errs.WithField("req_id", strconv.FormatInt(reqID, 10)))
}

func (s *Session) send(ctx context.Context, frame []byte) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("request rate: %w", err)
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("write websocket: %w", err)
	}
	return nil
}

func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	policy := backoff.NewExponentialBackOff()
	if s.cfg.Reconnect.InitialInterval > 0 {
		policy.InitialInterval = s.cfg.Reconnect.InitialInterval
	}
	if s.cfg.Reconnect.MaxInterval > 0 {
		policy.MaxInterval = s.cfg.Reconnect.MaxInterval
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.cfg.Reconnect.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Error("dial failed",
				observability.Field{Key: "endpoint", Value: s.cfg.Endpoint},
				observability.Field{Key: "error", Value: err},
				observability.Field{Key: "retry_in", Value: next})
		}),
	}
	if s.cfg.Reconnect.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(s.cfg.Reconnect.MaxElapsed))
	}

	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
		defer cancel()
		conn, err := s.dial(dialCtx, s.cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", s.cfg.Endpoint, err)
		}
		return conn, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if s.cfg.ReadLimitBytes > 0 {
		conn.SetReadLimit(s.cfg.ReadLimitBytes)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return conn, nil
}

func (s *Session) run(ctx context.Context, conn *websocket.Conn) {
	for {
		err := s.serve(ctx, conn)
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		if ctx.Err() != nil {
			s.finish(nil)
			return
		}

		s.metrics.record(ctx, stateDisconnected)
		s.logger.Error("connection lost", observability.Field{Key: "error", Value: err})

		next, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.finish(nil)
				return
			}
			s.logger.Error("reconnect failed", observability.Field{Key: "error", Value: err})
			s.finish(fmt.Errorf("reconnect: %w", err))
			return
		}
		s.metrics.record(ctx, stateReconnected)
		s.logger.Info("reconnected", observability.Field{Key: "endpoint", Value: s.cfg.Endpoint})
		conn = next
	}
}

// serve runs the read loop, keepalive and connect hooks for one connection
// and returns the error that ended it.
func (s *Session) serve(ctx context.Context, conn *websocket.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	var wg conc.WaitGroup
	wg.Go(func() {
		readErr <- s.readLoop(connCtx, conn)
		cancel()
	})
	if s.cfg.PingInterval > 0 {
		wg.Go(func() { s.keepalive(connCtx, conn) })
	}
	wg.Go(func() { s.runHooks(connCtx) })
	wg.Wait()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	return <-readErr
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read websocket: %w", err)
		}
		// Undecodable frames are logged and counted by the router.
		_ = s.router.Route(ctx, data)
	}
}

func (s *Session) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("keepalive failed", observability.Field{Key: "error", Value: err})
				_ = conn.Close(websocket.StatusGoingAway, "keepalive failed")
				return
			}
		}
	}
}

func (s *Session) runHooks(ctx context.Context) {
	for _, hook := range s.hooks {
		if err := hook(ctx, s); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("connect hook failed", observability.Field{Key: "error", Value: err})
		}
	}
}

func (s *Session) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	s.err = err
	close(s.done)
}
