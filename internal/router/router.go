// Package router correlates decoded replies with the requests that caused
// them and fans feed messages out to per-channel handlers.
package router

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/krakenws/errs"
	"github.com/coachpo/krakenws/internal/observability"
	"github.com/coachpo/krakenws/internal/telemetry"
	"github.com/coachpo/krakenws/internal/wire"
)

// ErrClosed is returned by Expect and Wait once the router is closed.
var ErrClosed = errors.New("router closed")

// Handler receives feed messages for one channel. Handlers run on the
// goroutine that calls Route and must not block it for long.
type Handler func(ctx context.Context, msg wire.ChannelMessage)

// Router is safe for concurrent use.
type Router struct {
	mu       sync.Mutex
	closed   bool
	pending  map[int64]*Pending
	handlers map[wire.Channel][]Handler
	fallback []Handler

	metrics *routerMetrics
	logger  observability.Logger
	now     func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithMeter records router metrics on meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(r *Router) { r.metrics = newRouterMetrics(meter) }
}

// WithLogger overrides the package-level logger.
func WithLogger(logger observability.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source used for reply latency.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{
		pending:  make(map[int64]*Pending),
		handlers: make(map[wire.Channel][]Handler),
		logger:   observability.Log(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = newRouterMetrics(nil)
	}
	return r
}

// OnChannel registers h for feed messages on channel.
func (r *Router) OnChannel(channel wire.Channel, h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.handlers[channel] = append(r.handlers[channel], h)
	r.mu.Unlock()
}

// OnUnhandled registers h for feed messages on channels with no handler.
func (r *Router) OnUnhandled(h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.fallback = append(r.fallback, h)
	r.mu.Unlock()
}

// Pending is a registered interest in the reply to one request.
type Pending struct {
	router  *Router
	reqID   int64
	reply   chan wire.Message
	created time.Time
}

// ReqID returns the correlation id the ticket waits on.
func (p *Pending) ReqID() int64 { return p.reqID }

// Expect registers interest in the reply to reqID. It must be called before
// the request is sent so that a fast reply cannot arrive unclaimed.
func (r *Router) Expect(ctx context.Context, reqID int64) (*Pending, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if _, ok := r.pending[reqID]; ok {
		return nil, errs.New(errs.CodeInvalid,
			errs.WithMessage("req_id already pending"),
			errs.WithField("req_id", strconv.FormatInt(reqID, 10)))
	}
	p := &Pending{router: r, reqID: reqID, reply: make(chan wire.Message, 1), created: r.now()}
	r.pending[reqID] = p
	r.metrics.addPending(ctx, 1)
	return p, nil
}

// Wait blocks until the reply arrives, ctx ends or the router closes. The
// reply is a *wire.MethodReply or a *wire.ErrorReply; a MethodReply with
// Success false is returned as a value, not an error.
func (p *Pending) Wait(ctx context.Context) (wire.Message, error) {
	select {
	case msg, open := <-p.reply:
		if !open {
			return nil, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		if p.router.forget(ctx, p) {
			p.router.metrics.recordResolved(ctx, "", telemetry.OutcomeTimeout, 0)
			return nil, ctx.Err()
		}
		// Route or Close already claimed the call and will send or close.
		msg, open := <-p.reply
		if !open {
			return nil, ErrClosed
		}
		return msg, nil
	}
}

// Cancel drops interest in the reply. A late reply is then reported as
// unmatched.
func (p *Pending) Cancel(ctx context.Context) {
	p.router.forget(ctx, p)
}

// Call registers reqID, runs send and waits for the reply.
func (r *Router) Call(ctx context.Context, reqID int64, send func(context.Context) error) (wire.Message, error) {
	p, err := r.Expect(ctx, reqID)
	if err != nil {
		return nil, err
	}
	if err := send(ctx); err != nil {
		p.Cancel(ctx)
		return nil, err
	}
	return p.Wait(ctx)
}

func (r *Router) forget(ctx context.Context, p *Pending) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.pending[p.reqID]; !ok || current != p {
		return false
	}
	delete(r.pending, p.reqID)
	r.metrics.addPending(ctx, -1)
	return true
}

// InFlight reports how many requests await a reply.
func (r *Router) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Route decodes one inbound frame and delivers it. Decode failures are
// logged, counted and returned; the caller decides whether to continue.
func (r *Router) Route(ctx context.Context, frame []byte) error {
	msg, err := wire.Decode(frame)
	if err != nil {
		r.metrics.recordDecodeError(ctx, err)
		r.logger.Error("decode frame", observability.Field{Key: "error", Value: err})
		return err
	}
	r.Deliver(ctx, msg)
	return nil
}

// Deliver routes an already decoded message.
func (r *Router) Deliver(ctx context.Context, msg wire.Message) {
	switch m := msg.(type) {
	case wire.ChannelMessage:
		r.metrics.recordFrame(ctx, string(wire.FamilyChannel), string(m.Channel()), "")
		r.dispatch(ctx, m)
	case *wire.MethodReply:
		r.metrics.recordFrame(ctx, string(wire.FamilyMethod), "", string(m.Method))
		outcome := telemetry.OutcomeSuccess
		if !m.Success {
			outcome = telemetry.OutcomeRejected
		}
		r.resolve(ctx, m.ReqID, string(m.Method), outcome, m)
	case *wire.ErrorReply:
		r.metrics.recordFrame(ctx, string(wire.FamilyError), "", m.Method)
		r.resolve(ctx, m.ReqID, m.Method, telemetry.OutcomeError, m)
	}
}

func (r *Router) resolve(ctx context.Context, reqID int64, method, outcome string, msg wire.Message) {
	r.mu.Lock()
	call, ok := r.pending[reqID]
	if ok {
		delete(r.pending, reqID)
	}
	r.mu.Unlock()

	if !ok {
		r.metrics.recordOrphan(ctx, method)
		r.logger.Info("unmatched reply",
			observability.Field{Key: "req_id", Value: reqID},
			observability.Field{Key: "method", Value: method},
			observability.Field{Key: "outcome", Value: outcome})
		return
	}
	r.metrics.addPending(ctx, -1)
	r.metrics.recordResolved(ctx, method, outcome, r.now().Sub(call.created))
	call.reply <- msg
}

func (r *Router) dispatch(ctx context.Context, msg wire.ChannelMessage) {
	r.mu.Lock()
	handlers := r.handlers[msg.Channel()]
	if len(handlers) == 0 {
		handlers = r.fallback
	}
	handlers = append([]Handler(nil), handlers...)
	r.mu.Unlock()

	for _, h := range handlers {
		h(ctx, msg)
	}
}

// Close fails every pending request with ErrClosed and rejects new ones.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, call := range r.pending {
		close(call.reply)
		delete(r.pending, id)
		r.metrics.addPending(context.Background(), -1)
	}
}
