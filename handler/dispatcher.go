package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
)

// TraceSink receives trace events emitted during dispatch. *trace.Log
// satisfies it.
type TraceSink interface {
	Append(core.TraceEvent)
}

// noopSink discards events.
type noopSink struct{}

func (noopSink) Append(core.TraceEvent) {}

// Options configures the Dispatcher.
type Options struct {
	// Timeout bounds each handler call. A call exceeding it fails with
	// core.ErrHandlerTimeout and is not retried.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after a call fails
	// with core.ErrHandlerFailure.
	MaxRetries int

	// RetryBackoff is the pause before a retry attempt.
	RetryBackoff time.Duration

	// RatePerSecond and Burst configure the per-handler rate limiter.
	// RatePerSecond <= 0 disables limiting.
	RatePerSecond float64
	Burst         int

	// BreakerMaxFailures trips the per-handler circuit after that many
	// consecutive failures; BreakerCooldown is how long it stays open.
	BreakerMaxFailures uint32
	BreakerCooldown    time.Duration

	// Trace receives dispatch trace events. Defaults to a discard sink.
	Trace TraceSink

	// Logger receives dispatch diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// handlerState holds the per-handler breaker and limiter, created lazily on
// first dispatch.
type handlerState struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// Dispatcher routes invocations to registered handlers with per-call
// deadlines, bounded retries, rate limiting and circuit breaking. A failed
// or timed-out dispatch never mutates the registry.
type Dispatcher struct {
	registry *Registry
	opts     Options

	mu    sync.Mutex
	state map[string]*handlerState
}

// NewDispatcher constructs a Dispatcher over the given registry.
func NewDispatcher(registry *Registry, optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Timeout:            5 * time.Second,
		MaxRetries:         1,
		RetryBackoff:       100 * time.Millisecond,
		BreakerMaxFailures: 3,
		BreakerCooldown:    30 * time.Second,
		Trace:              noopSink{},
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Dispatcher{
		registry: registry,
		opts:     opts,
		state:    make(map[string]*handlerState),
	}
}

func (d *Dispatcher) stateFor(id string) *handlerState {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.state[id]; ok {
		return s
	}
	s := &handlerState{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    id,
			Timeout: d.opts.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= d.opts.BreakerMaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				d.opts.Logger.Warn("handler circuit state change",
					"handler", name, "from", from.String(), "to", to.String())
			},
		}),
	}
	if d.opts.RatePerSecond > 0 {
		burst := d.opts.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(d.opts.RatePerSecond), burst)
	}
	d.state[id] = s
	return s
}

// Dispatch invokes the named handler with the invocation. The turn index is
// used only for trace attribution. On success the handler's result is
// returned; on failure the error wraps the relevant sentinel from core.
func (d *Dispatcher) Dispatch(ctx context.Context, turnIndex int, handlerID string, inv core.Invocation) (core.Result, error) {
	h, err := d.registry.Get(handlerID)
	if err != nil {
		return core.Result{}, err
	}

	st := d.stateFor(handlerID)
	d.opts.Trace.Append(core.NewHandlerInvokedEvent(turnIndex, handlerID, inv.Operation))

	var lastErr error
	for attempt := 0; attempt <= d.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.opts.RetryBackoff):
			case <-ctx.Done():
				return core.Result{}, ctx.Err()
			}
			d.opts.Logger.Debug("retrying handler call",
				"handler", handlerID, "operation", inv.Operation, "attempt", attempt)
		}

		if st.limiter != nil {
			if err := st.limiter.Wait(ctx); err != nil {
				return core.Result{}, err
			}
		}

		start := time.Now()
		res, err := d.invoke(ctx, st, h, inv)
		dur := time.Since(start)

		switch {
		case err == nil:
			d.opts.Trace.Append(core.NewOperationCompletedEvent(turnIndex, handlerID, inv.Operation, dur))
			d.opts.Logger.Debug("handler call completed",
				"handler", handlerID, "operation", inv.Operation, "duration", dur)
			return res, nil

		case errors.Is(err, core.ErrHandlerTimeout):
			// A timed-out call is gone for good; retrying would double-apply
			// side effects we cannot observe.
			d.opts.Trace.Append(core.NewHandlerTimeoutEvent(turnIndex, handlerID, inv.Operation, d.opts.Timeout))
			return core.Result{}, err

		case errors.Is(err, core.ErrHandlerFailure):
			lastErr = err

		default:
			d.opts.Trace.Append(core.NewOperationFailedEvent(turnIndex, handlerID, inv.Operation, err.Error(), dur))
			return core.Result{}, err
		}
	}

	d.opts.Trace.Append(core.NewOperationFailedEvent(turnIndex, handlerID, inv.Operation, lastErr.Error(), 0))
	return core.Result{}, lastErr
}

// invoke runs one attempt through the circuit breaker with the per-call
// deadline applied.
func (d *Dispatcher) invoke(ctx context.Context, st *handlerState, h core.Handler, inv core.Invocation) (core.Result, error) {
	out, err := st.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()

		res, err := h.Invoke(callCtx, inv)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", core.ErrHandlerTimeout, h.ID())
			}
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return core.Result{}, fmt.Errorf("%w: circuit open for %s", core.ErrHandlerFailure, h.ID())
		}
		return core.Result{}, err
	}
	return out.(core.Result), nil
}
