package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/trigger"
)

const defaultBaseURL = "https://api.jup.ag/swap/v1"

var (
	_ quote.Pricer       = (*Client)(nil)
	_ execution.Executor = (*Client)(nil)
	_ trigger.Placer     = (*Client)(nil)
)

// Client talks to the trading venue over HTTP. It implements quote.Pricer,
// execution.Executor and trigger.Placer.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Options QuoteOptions
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("venue http %d", e.StatusCode)
	}
	return fmt.Sprintf("venue http %d: %s", e.StatusCode, b)
}

// Quote prices a swap. The response is returned undecoded beyond JSON so the
// normalizer can read whichever field names this venue uses.
func (c *Client) Quote(ctx context.Context, req quote.PricingRequest) (quote.Raw, error) {
	if strings.TrimSpace(req.InputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if req.AmountAtomic == 0 {
		return nil, fmt.Errorf("amount is required")
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.AmountAtomic, 10))
	q.Set("slippageBps", strconv.FormatUint(uint64(req.SlippageBps), 10))
	if req.WalletAddress != "" {
		q.Set("taker", req.WalletAddress)
	}
	if req.Fee.PriorityFeeLamports > 0 {
		q.Set("priorityFeeLamports", strconv.FormatUint(req.Fee.PriorityFeeLamports, 10))
	}
	if req.Fee.JitoTipLamports > 0 {
		q.Set("jitoTipLamports", strconv.FormatUint(req.Fee.JitoTipLamports, 10))
	}
	c.Options.apply(q)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var out quote.Raw
	if err := c.do(httpReq, &out); err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	return out, nil
}

// Execute submits a swap and returns the venue's verdict.
func (c *Client) Execute(ctx context.Context, req execution.ExecuteRequest) (execution.ExecuteResponse, error) {
	var out execution.ExecuteResponse
	if err := c.post(ctx, "/execute", req, &out); err != nil {
		return out, fmt.Errorf("execute: %w", err)
	}
	return out, nil
}

// PlaceTriggerOrder registers a conditional order.
func (c *Client) PlaceTriggerOrder(ctx context.Context, p trigger.Params) (trigger.Ack, error) {
	var out trigger.Ack
	if err := c.post(ctx, "/trigger/orders", p, &out); err != nil {
		return out, fmt.Errorf("place trigger order: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("content-type", "application/json")
	return c.do(httpReq, out)
}

func (c *Client) do(httpReq *http.Request, out any) error {
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	// Numbers stay json.Number so atomic amounts above 2^53 survive.
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode venue response: %w", err)
	}
	return nil
}
