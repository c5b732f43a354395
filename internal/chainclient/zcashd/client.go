// Package zcashd is a JSON-RPC client for zcashd-compatible full nodes. It
// speaks the batch form of JSON-RPC so a window of blocks costs one round trip.
package zcashd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/zecdev/chainfeed/internal/chainclient"
	"github.com/zecdev/chainfeed/pkg/metrics"
	"github.com/zecdev/chainfeed/pkg/types"
	"github.com/zecdev/chainfeed/pkg/utils"
)

const (
	methodBlockCount = "getblockcount"
	methodBlock      = "getblock"

	// getblock verbosity 1 returns the header fields plus txids.
	blockVerbosity = 1
	// Error bodies are truncated to this many bytes in TransportError.
	maxErrorBody = 512
)

// Client talks to a node over HTTP POST.
type Client struct {
	url      string
	username string
	password string
	maxBatch int
	http     *http.Client
	metrics  *metrics.Metrics // nil if metrics disabled
}

var _ chainclient.BlockClient = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithMetrics enables metrics collection for the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a new zcashd client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("invalid url: must not be empty")
	}
	if cfg.MaxBatch <= 0 {
		return nil, errors.New("invalid max batch: must be greater than 0")
	}

	c := &Client{
		url:      cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		maxBatch: cfg.MaxBatch,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     *int            `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return e.Message }

// BlockCount returns the height of the most recent block.
func (c *Client) BlockCount(ctx context.Context) (uint64, error) {
	resp, err := c.call(ctx, methodBlockCount, []request{{JSONRPC: "1.0", ID: 0, Method: methodBlockCount, Params: []any{}}})
	if err != nil {
		return 0, err
	}
	var height uint64
	if err := json.Unmarshal(resp[0].Result, &height); err != nil {
		return 0, &types.MalformedResponseError{Op: methodBlockCount, Detail: "result is not a height", Err: err}
	}
	return height, nil
}

// BlocksByHeight fetches blocks with getblock("<height>", 1), one batch per
// MaxBatch heights. The returned slice follows the order of heights.
func (c *Client) BlocksByHeight(ctx context.Context, heights []uint64) ([]*types.Block, error) {
	blocks := make([]*types.Block, 0, len(heights))
	for start := 0; start < len(heights); start += c.maxBatch {
		end := min(start+c.maxBatch, len(heights))
		chunk, err := c.blocksBatch(ctx, heights[start:end])
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, chunk...)
	}
	return blocks, nil
}

func (c *Client) blocksBatch(ctx context.Context, heights []uint64) ([]*types.Block, error) {
	if len(heights) == 0 {
		return nil, nil
	}
	reqs := make([]request, len(heights))
	for i, h := range heights {
		reqs[i] = request{
			JSONRPC: "1.0",
			ID:      i,
			Method:  methodBlock,
			// zcashd takes the height as a string to disambiguate it from a hash.
			Params: []any{strconv.FormatUint(h, 10), blockVerbosity},
		}
	}

	resps, err := c.call(ctx, methodBlock, reqs)
	if err != nil {
		return nil, err
	}

	blocks := make([]*types.Block, len(heights))
	for i, r := range resps {
		var b types.Block
		if err := json.Unmarshal(r.Result, &b); err != nil {
			return nil, &types.MalformedResponseError{
				Op:     methodBlock,
				Detail: fmt.Sprintf("block at height %d", heights[i]),
				Err:    err,
			}
		}
		if b.Height != heights[i] {
			return nil, &types.MalformedResponseError{
				Op:     methodBlock,
				Detail: fmt.Sprintf("requested height %d, got %d", heights[i], b.Height),
			}
		}
		if !utils.IsHash32(b.Hash) {
			return nil, &types.MalformedResponseError{
				Op:     methodBlock,
				Detail: fmt.Sprintf("invalid hash %q at height %d", b.Hash, b.Height),
			}
		}
		blocks[i] = &b
	}
	return blocks, nil
}

// call posts reqs and returns the responses re-keyed to request order. A
// single request is sent as a plain object, more than one as a batch array.
func (c *Client) call(ctx context.Context, method string, reqs []request) ([]response, error) {
	start := time.Now()
	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	resps, err := c.do(ctx, method, reqs)
	c.metrics.RecordRPCCall(method, err, time.Since(start).Seconds())
	return resps, err
}

func (c *Client) do(ctx context.Context, method string, reqs []request) ([]response, error) {
	var payload any = reqs
	if len(reqs) == 1 {
		payload = reqs[0]
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &types.TransportError{Op: method, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.username != "" || c.password != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &types.TransportError{Op: method, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &types.TransportError{Op: method, StatusCode: httpResp.StatusCode, Err: err}
	}

	// zcashd answers RPC errors with HTTP 500 and a JSON body, so only treat
	// the status as fatal when the body is not JSON-RPC.
	resps, decodeErr := decode(raw, len(reqs) > 1)
	if decodeErr != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, &types.TransportError{
				Op:         method,
				StatusCode: httpResp.StatusCode,
				Err:        errors.New(truncate(raw)),
			}
		}
		return nil, &types.MalformedResponseError{Op: method, Detail: "decode body", Err: decodeErr}
	}
	return rekey(method, reqs, resps)
}

func decode(raw []byte, batch bool) ([]response, error) {
	if !batch {
		var r response
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		return []response{r}, nil
	}
	var rs []response
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// rekey validates response ids against reqs and orders responses to match.
func rekey(method string, reqs []request, resps []response) ([]response, error) {
	if len(resps) != len(reqs) {
		return nil, &types.MalformedResponseError{
			Op:     method,
			Detail: fmt.Sprintf("batch response count mismatch: sent %d, got %d", len(reqs), len(resps)),
		}
	}
	for i, r := range resps {
		if r.ID == nil {
			return nil, &types.MalformedResponseError{Op: method, Detail: fmt.Sprintf("missing id at index %d", i)}
		}
	}
	sort.Slice(resps, func(i, j int) bool {
		return *resps[i].ID < *resps[j].ID
	})
	for i, r := range resps {
		if *r.ID != reqs[i].ID {
			return nil, &types.MalformedResponseError{
				Op:     method,
				Detail: fmt.Sprintf("batch response id mismatch at index %d: expected %d, got %d", i, reqs[i].ID, *r.ID),
			}
		}
		if r.Error != nil {
			return nil, &types.TransportError{Op: method, RPCCode: r.Error.Code, Err: r.Error}
		}
		if len(r.Result) == 0 || string(r.Result) == "null" {
			return nil, &types.MalformedResponseError{Op: method, Detail: fmt.Sprintf("empty result for id %d", *r.ID)}
		}
	}
	return resps, nil
}

func truncate(raw []byte) string {
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	if len(raw) == 0 {
		return "empty body"
	}
	return string(raw)
}
