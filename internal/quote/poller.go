// internal/quote/poller.go
package quote

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-checkout/internal/metrics"
	"github.com/rovshanmuradov/solana-checkout/internal/token"
)

const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 10 * time.Second
)

// Inputs are the user-controlled values that drive quoting.
type Inputs struct {
	Token            token.Token
	Amount           string
	MerchantSelected bool
}

// Status of the controller's current quote.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// State is a snapshot published after every change.
type State struct {
	Status     Status
	Inputs     Inputs
	Quote      *Quote
	Display    Display
	Err        error
	Generation uint64
	UpdatedAt  time.Time
}

type Options struct {
	Destination  token.Token
	Debounce     time.Duration
	PollInterval time.Duration
	Timeout      time.Duration
	Metrics      *metrics.Collector
	// OnChange is called outside the controller lock after each state change,
	// one call at a time and never with a superseded generation. It must not
	// call Update.
	OnChange func(State)
}

// pollHandle owns one debounce-then-poll goroutine.
type pollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *pollHandle) stop() {
	h.cancel()
}

// Controller debounces input changes and keeps a quote fresh by polling.
// Results from superseded inputs are discarded.
type Controller struct {
	source  Source
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Collector

	mu          sync.Mutex
	inputs      Inputs
	generation  uint64
	seq         uint64
	lastApplied uint64
	handle      *pollHandle
	state       State
	stopped     bool

	// emitMu упорядочивает вызовы OnChange
	emitMu     sync.Mutex
	beforeEmit func(gen uint64)
}

func NewController(source Source, opts Options, logger *zap.Logger) *Controller {
	if opts.Destination.IsZero() {
		opts.Destination = token.Settlement
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Controller{
		source:  source,
		opts:    opts,
		logger:  logger.Named("quote-poller"),
		metrics: opts.Metrics,
		state:   State{Status: StatusIdle, Display: UnavailableDisplay()},
	}
}

// RequestFor converts inputs into a quote request. ok is false when the
// inputs cannot be quoted: no merchant, no token or a non-positive amount.
func RequestFor(in Inputs, dest token.Token) (Request, bool) {
	if !in.MerchantSelected || in.Token.IsZero() {
		return Request{}, false
	}
	raw, err := token.ToRaw(in.Amount, in.Token.Decimals)
	if err != nil {
		return Request{}, false
	}
	return Request{InputMint: in.Token.Mint, OutputMint: dest.Mint, Amount: raw}, true
}

// Update replaces the inputs. Any pending debounce and active poll are
// cancelled; valid inputs schedule a new debounce.
func (c *Controller) Update(in Inputs) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.generation++
	gen := c.generation
	c.inputs = in
	if c.handle != nil {
		c.handle.stop()
		c.handle = nil
	}

	status := StatusIdle
	if _, ok := RequestFor(in, c.opts.Destination); ok {
		status = StatusLoading
		ctx, cancel := context.WithCancel(context.Background())
		h := &pollHandle{cancel: cancel, done: make(chan struct{})}
		c.handle = h
		go c.run(ctx, gen, h)
	}
	c.state = State{
		Status:     status,
		Inputs:     in,
		Display:    UnavailableDisplay(),
		Generation: gen,
		UpdatedAt:  time.Now(),
	}
	c.mu.Unlock()

	c.emit(gen)
}

// State returns the latest snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stop tears down the active poll and waits for it to exit. Further
// updates are ignored.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.generation++
	h := c.handle
	c.handle = nil
	c.mu.Unlock()

	if h != nil {
		h.stop()
		<-h.done
	}
}

func (c *Controller) run(ctx context.Context, gen uint64, h *pollHandle) {
	defer close(h.done)

	debounce := time.NewTimer(c.opts.Debounce)
	defer debounce.Stop()
	select {
	case <-ctx.Done():
		return
	case <-debounce.C:
	}

	c.fetch(ctx, gen)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fetch(ctx, gen)
		}
	}
}

func (c *Controller) fetch(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	in := c.inputs
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	req, ok := RequestFor(in, c.opts.Destination)
	if !ok {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	start := time.Now()
	q, err := c.source.Quote(fetchCtx, req)
	c.apply(gen, seq, in, q, err, time.Since(start))
}

func (c *Controller) apply(gen, seq uint64, in Inputs, q *Quote, err error, took time.Duration) {
	c.mu.Lock()
	if gen != c.generation || seq <= c.lastApplied {
		c.mu.Unlock()
		c.metrics.RecordQuote(metrics.QuoteStale, 0)
		c.logger.Debug("Discarding stale quote", zap.Uint64("generation", gen), zap.Uint64("seq", seq))
		return
	}
	c.lastApplied = seq

	next := State{Inputs: in, Generation: gen, UpdatedAt: time.Now()}
	switch {
	case err != nil:
		next.Status = StatusUnavailable
		next.Display = UnavailableDisplay()
		next.Err = err
	default:
		next.Status = StatusReady
		next.Quote = q
		next.Display = DisplayFor(q, in.Token, c.opts.Destination)
	}
	c.state = next
	c.mu.Unlock()

	result := metrics.QuoteOK
	if err != nil {
		result = metrics.QuoteError
		if errors.Is(err, ErrInvalidQuote) {
			result = metrics.QuoteInvalid
		}
		c.logger.Warn("Quote fetch failed", zap.String("symbol", in.Token.Symbol), zap.Error(err))
	}
	c.metrics.RecordQuote(result, took)
	if c.beforeEmit != nil {
		c.beforeEmit(gen)
	}
	c.emit(gen)
}

// emit publishes the current state if gen is still the live generation.
// Re-reading under the lock keeps a result that lost the race with a newer
// Update from reaching listeners after the newer state.
func (c *Controller) emit(gen uint64) {
	if c.opts.OnChange == nil {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("Skipping superseded quote state", zap.Uint64("generation", gen))
		return
	}
	st := c.state
	c.mu.Unlock()

	c.opts.OnChange(st)
}
