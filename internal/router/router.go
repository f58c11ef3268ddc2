package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"privacy-guardian/internal/logger"
)

// Router errors. Call returns them together with the action's Empty response.
var (
	ErrTimeout = errors.New("router: request timed out")
	ErrClosed  = errors.New("router: closed")
)

// Handler serves requests on the privileged side.
type Handler interface {
	Handle(ctx context.Context, req Request) (Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// Timeouts sets the per-action deadline. Actions without an entry use
// Default.
type Timeouts struct {
	Default   time.Duration
	PerAction map[Action]time.Duration
}

func (t Timeouts) of(a Action) time.Duration {
	if d, ok := t.PerAction[a]; ok && d > 0 {
		return d
	}
	if t.Default > 0 {
		return t.Default
	}
	return 15 * time.Second
}

type result struct {
	resp Response
	err  error
}

// envelope is one in-flight call. reply has room for exactly one answer, so
// a handler finishing after the caller gave up never blocks.
type envelope struct {
	id    string
	ctx   context.Context
	req   Request
	reply chan result
}

// Router is the channel between the two contexts.
type Router struct {
	requests chan envelope
	done     chan struct{}
	once     sync.Once
	timeouts Timeouts
	log      *logger.Logger
}

// New returns an open Router.
func New(timeouts Timeouts, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Discard()
	}
	return &Router{
		requests: make(chan envelope),
		done:     make(chan struct{}),
		timeouts: timeouts,
		log:      log,
	}
}

// Close stops the router. Pending and future calls fail with ErrClosed.
func (r *Router) Close() {
	r.once.Do(func() { close(r.done) })
}

// Call sends req and waits for its response under the action's deadline.
// On timeout or close it returns Empty(req.Action()) and an error; a reply
// arriving later is discarded.
func (r *Router) Call(ctx context.Context, req Request) (Response, error) {
	action := req.Action()
	ctx, cancel := context.WithTimeout(ctx, r.timeouts.of(action))
	defer cancel()

	env := envelope{id: uuid.NewString(), ctx: ctx, req: req, reply: make(chan result, 1)}

	select {
	case r.requests <- env:
	case <-ctx.Done():
		return Empty(action), r.ctxErr(ctx, env)
	case <-r.done:
		return Empty(action), ErrClosed
	}

	select {
	case res := <-env.reply:
		if res.err != nil {
			return Empty(action), res.err
		}
		if res.resp == nil || res.resp.Action() != action {
			return Empty(action), fmt.Errorf("router: handler answered %s with %T", action, res.resp)
		}
		return res.resp, nil
	case <-ctx.Done():
		return Empty(action), r.ctxErr(ctx, env)
	case <-r.done:
		return Empty(action), ErrClosed
	}
}

func (r *Router) ctxErr(ctx context.Context, env envelope) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.log.Warnf("call", "%s %s timed out, late reply will be discarded", env.req.Action(), env.id)
		return ErrTimeout
	}
	return ctx.Err()
}

// Run serves calls with h until ctx ends or the router is closed. Each call
// is handled on its own goroutine.
func (r *Router) Run(ctx context.Context, h Handler) error {
	r.log.Info("run", "router serving")
	for {
		select {
		case env := <-r.requests:
			go r.serve(h, env)
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		}
	}
}

func (r *Router) serve(h Handler, env envelope) {
	var res result
	defer func() {
		if p := recover(); p != nil {
			r.log.Errorf("serve", "%s %s handler panic: %v", env.req.Action(), env.id, p)
			res = result{err: fmt.Errorf("handler panic: %v", p)}
		}
		env.reply <- res
	}()
	r.log.Debugf("serve", "%s %s", env.req.Action(), env.id)
	resp, err := h.Handle(env.ctx, env.req)
	res = result{resp: resp, err: err}
}
