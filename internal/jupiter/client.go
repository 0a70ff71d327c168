// internal/jupiter/client.go
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Reference: https://dev.jup.ag/docs/swap-api

const (
	DefaultBaseURL     = "https://api.jup.ag/swap/v1"
	DefaultSlippageBps = 50

	quoteEndpoint = "quote"
	swapEndpoint  = "swap"
)

var ErrEmptySwapTransaction = errors.New("aggregator returned no transaction")

// StatusError is returned for non-200 aggregator responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received http status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type Options struct {
	BaseURL           string
	APIKey            string
	HTTPClient        *http.Client
	RequestsPerSecond int
	// MaxElapsed bounds the total retry time of one call.
	MaxElapsed time.Duration
	// RetryInterval is the first backoff step; zero keeps the library default.
	RetryInterval time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxElapsed time.Duration
	retryStep  time.Duration
	logger     *zap.Logger
}

// NewClient returns a Jupiter client for quoting and building swaps.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = opts.RequestsPerSecond
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/") + "/",
		apiKey:     opts.APIKey,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, burst),
		maxElapsed: opts.MaxElapsed,
		retryStep:  opts.RetryInterval,
		logger:     logger.Named("jupiter"),
	}
}

// GetQuote gets the best route for converting req.Amount of the input mint.
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Amount == 0 {
		return nil, errors.New("amount must be positive")
	}
	slippage := req.SlippageBps
	if slippage <= 0 {
		slippage = DefaultSlippageBps
	}
	query := url.Values{}
	query.Set("inputMint", req.InputMint.String())
	query.Set("outputMint", req.OutputMint.String())
	query.Set("amount", strconv.FormatUint(req.Amount, 10))
	query.Set("slippageBps", strconv.Itoa(slippage))

	body, err := c.do(ctx, http.MethodGet, quoteEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	quote, err := ParseQuote(body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Quote received",
		zap.String("input_mint", quote.InputMint),
		zap.String("in_amount", quote.InAmount),
		zap.String("out_amount", quote.OutAmount))
	return quote, nil
}

// Swap returns a base64 transaction that performs the quoted swap and
// delivers the output to req.DestinationTokenAccount.
func (c *Client) Swap(ctx context.Context, req SwapRequest) (*SwapResponse, error) {
	if req.Quote == nil {
		return nil, errors.New("quote is required")
	}
	payload, err := json.Marshal(swapRequestBody{
		QuoteResponse:           req.Quote.Raw(),
		UserPublicKey:           req.UserPublicKey.String(),
		DestinationTokenAccount: req.DestinationTokenAccount.String(),
		DynamicComputeUnitLimit: req.Policy.DynamicComputeUnitLimit,
		DynamicSlippage:         req.Policy.DynamicSlippage,
		PrioritizationFeeLamports: prioritizationFee{
			PriorityLevelWithMaxLamports: priorityLevelWithMaxLamports{
				MaxLamports:   req.Policy.MaxPriorityLamports,
				PriorityLevel: req.Policy.PriorityLevel,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling swap request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, swapEndpoint, payload)
	if err != nil {
		return nil, err
	}
	var resp SwapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error unmarshalling swap response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, ErrEmptySwapTransaction
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	op := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("error building http request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("x-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, fmt.Errorf("error executing http request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
			if !statusErr.Retryable() {
				return nil, backoff.Permanent(statusErr)
			}
			c.logger.Warn("Retryable aggregator response",
				zap.String("endpoint", path),
				zap.Int("status", resp.StatusCode))
			return nil, statusErr
		}
		return body, nil
	}

	b := backoff.NewExponentialBackOff()
	if c.retryStep > 0 {
		b.InitialInterval = c.retryStep
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(c.maxElapsed),
	)
}
