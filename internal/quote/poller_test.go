package quote

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-checkout/internal/token"
)

// fakeSource answers with a fixed rate unless fail is set. Delay per input
// amount lets tests reorder responses.
type fakeSource struct {
	mu     sync.Mutex
	calls  []Request
	fail   atomic.Bool
	delays map[uint64]time.Duration
}

func (f *fakeSource) Quote(ctx context.Context, req Request) (*Quote, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	delay := f.delays[req.Amount]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail.Load() {
		return nil, errors.New("boom")
	}
	// 150 USDC per whole SOL.
	return &Quote{InAmount: req.Amount, OutAmount: req.Amount / 1000 * 150}, nil
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestController(t *testing.T, src Source, interval time.Duration) *Controller {
	c := NewController(src, Options{
		Debounce:     20 * time.Millisecond,
		PollInterval: interval,
		Timeout:      time.Second,
	}, zaptest.NewLogger(t))
	t.Cleanup(c.Stop)
	return c
}

func validInputs(amount string) Inputs {
	return Inputs{Token: token.SOL, Amount: amount, MerchantSelected: true}
}

func TestControllerDebouncesRapidUpdates(t *testing.T) {
	src := &fakeSource{}
	c := newTestController(t, src, time.Hour)

	c.Update(validInputs("1"))
	c.Update(validInputs("1.5"))
	c.Update(validInputs("2"))
	assert.Equal(t, StatusLoading, c.State().Status)

	require.Eventually(t, func() bool { return c.State().Status == StatusReady }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, src.count())
	st := c.State()
	assert.Equal(t, uint64(2_000_000_000), st.Quote.InAmount)
	assert.Equal(t, "300", st.Display.Output)
}

func TestControllerPolls(t *testing.T) {
	src := &fakeSource{}
	c := newTestController(t, src, 30*time.Millisecond)

	c.Update(validInputs("1"))
	require.Eventually(t, func() bool { return src.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusReady, c.State().Status)
}

func TestControllerIdleWithoutValidInputs(t *testing.T) {
	src := &fakeSource{}
	c := newTestController(t, src, 10*time.Millisecond)

	c.Update(Inputs{Token: token.SOL, Amount: "1"})
	c.Update(Inputs{Token: token.SOL, Amount: "0", MerchantSelected: true})
	c.Update(Inputs{Token: token.SOL, Amount: "", MerchantSelected: true})
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, 0, src.count())
	st := c.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.Equal(t, Unavailable, st.Display.Output)
}

func TestControllerFailureMarksUnavailable(t *testing.T) {
	src := &fakeSource{}
	src.fail.Store(true)
	var changes atomic.Int32
	c := NewController(src, Options{
		Debounce:     10 * time.Millisecond,
		PollInterval: time.Hour,
		OnChange:     func(State) { changes.Add(1) },
	}, zaptest.NewLogger(t))
	t.Cleanup(c.Stop)

	c.Update(validInputs("1"))
	require.Eventually(t, func() bool { return c.State().Status == StatusUnavailable }, time.Second, 5*time.Millisecond)
	st := c.State()
	assert.Error(t, st.Err)
	assert.Equal(t, Unavailable, st.Display.Rate)
	assert.Equal(t, Unavailable, st.Display.Fee)
	assert.GreaterOrEqual(t, changes.Load(), int32(2))
}

func TestControllerDiscardsSupersededResults(t *testing.T) {
	src := &fakeSource{delays: map[uint64]time.Duration{1_000_000_000: 150 * time.Millisecond}}
	c := newTestController(t, src, time.Hour)

	c.Update(validInputs("1"))
	// let the slow fetch start, then change inputs
	require.Eventually(t, func() bool { return src.count() == 1 }, time.Second, 2*time.Millisecond)
	c.Update(validInputs("2"))

	require.Eventually(t, func() bool { return c.State().Status == StatusReady }, time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	st := c.State()
	assert.Equal(t, uint64(2_000_000_000), st.Quote.InAmount)
}

func TestControllerStopIgnoresUpdates(t *testing.T) {
	src := &fakeSource{}
	c := newTestController(t, src, 10*time.Millisecond)
	c.Update(validInputs("1"))
	c.Stop()
	n := src.count()
	c.Update(validInputs("3"))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, n, src.count())
}

func TestControllerNeverEmitsSupersededState(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []State
	)
	c := NewController(&fakeSource{}, Options{
		Debounce:     10 * time.Millisecond,
		PollInterval: time.Hour,
		Timeout:      time.Second,
		OnChange: func(st State) {
			mu.Lock()
			seen = append(seen, st)
			mu.Unlock()
		},
	}, zaptest.NewLogger(t))
	t.Cleanup(c.Stop)

	// Новые входные данные приходят между применением ответа и его публикацией
	var once sync.Once
	c.beforeEmit = func(uint64) {
		once.Do(func() { c.Update(Inputs{Token: token.SOL}) })
	}

	c.Update(validInputs("1"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, StatusLoading, seen[0].Status)
	assert.Equal(t, StatusIdle, seen[1].Status)
	assert.Greater(t, seen[1].Generation, seen[0].Generation)
	for _, st := range seen {
		assert.NotEqual(t, StatusReady, st.Status)
	}
	assert.Equal(t, StatusIdle, c.State().Status)
}

func TestRequestFor(t *testing.T) {
	req, ok := RequestFor(Inputs{Token: token.USDC, Amount: "12.5", MerchantSelected: true}, token.USDC)
	require.True(t, ok)
	assert.Equal(t, uint64(12_500_000), req.Amount)
	assert.Equal(t, token.USDC.Mint, req.OutputMint)

	_, ok = RequestFor(Inputs{Token: token.USDC, Amount: "0.0000001", MerchantSelected: true}, token.USDC)
	assert.False(t, ok)
}
