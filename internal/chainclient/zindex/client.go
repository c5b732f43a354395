// Package zindex is a client for the REST API of a Zcash transaction indexer.
package zindex

import (
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

	"github.com/zecdev/chainfeed/internal/chainclient"
	"github.com/zecdev/chainfeed/pkg/metrics"
	"github.com/zecdev/chainfeed/pkg/txparser"
	"github.com/zecdev/chainfeed/pkg/types"
	"github.com/zecdev/chainfeed/pkg/utils"
)

const (
	transactionsPath = "/api/v1/transactions"

	opRecent = "transactions"
	opByType = "transactions_by_type"

	maxErrorBody = 512
)

// Client pages through recent transactions, newest first.
type Client struct {
	base        *url.URL
	maxPageSize int
	http        *http.Client
	metrics     *metrics.Metrics // nil if metrics disabled
}

var _ chainclient.TransactionClient = (*Client)(nil)

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

// New creates a new indexer client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("invalid url: must not be empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if cfg.MaxPageSize <= 0 {
		return nil, errors.New("invalid max page size: must be greater than 0")
	}

	c := &Client{
		base:        base,
		maxPageSize: cfg.MaxPageSize,
		http:        &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type page struct {
	Transactions *[]*types.Transaction `json:"transactions"`
}

// RecentTransactions returns up to limit transactions starting offset entries
// below the newest one.
func (c *Client) RecentTransactions(ctx context.Context, limit, offset int) ([]*types.Transaction, error) {
	return c.get(ctx, opRecent, "", limit, offset)
}

// TransactionsByType is RecentTransactions restricted to one kind.
func (c *Client) TransactionsByType(ctx context.Context, kind txparser.Kind, limit, offset int) ([]*types.Transaction, error) {
	if kind == "" {
		return nil, errors.New("invalid kind: must not be empty")
	}
	return c.get(ctx, opByType, kind, limit, offset)
}

func (c *Client) get(ctx context.Context, op string, kind txparser.Kind, limit, offset int) ([]*types.Transaction, error) {
	if limit <= 0 {
		return nil, errors.New("invalid limit: must be greater than 0")
	}
	if offset < 0 {
		return nil, errors.New("invalid offset: must not be negative")
	}

	start := time.Now()
	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	txs, err := c.fetch(ctx, op, kind, min(limit, c.maxPageSize), offset)
	c.metrics.RecordRPCCall(op, err, time.Since(start).Seconds())
	return txs, err
}

func (c *Client) fetch(ctx context.Context, op string, kind txparser.Kind, limit, offset int) ([]*types.Transaction, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if kind != "" {
		q.Set("type", string(kind))
	}
	u := c.base.JoinPath(transactionsPath)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &types.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &types.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, &types.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(string(raw))}
	}

	var p page
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &types.MalformedResponseError{Op: op, Detail: "decode body", Err: err}
	}
	if p.Transactions == nil {
		return nil, &types.MalformedResponseError{Op: op, Detail: "missing transactions field"}
	}

	txs := *p.Transactions
	for i, tx := range txs {
		if tx == nil {
			return nil, &types.MalformedResponseError{Op: op, Detail: fmt.Sprintf("null transaction at index %d", i)}
		}
		if !utils.IsHash32(tx.TxID) {
			return nil, &types.MalformedResponseError{Op: op, Detail: fmt.Sprintf("invalid txid %q at index %d", tx.TxID, i)}
		}
	}
	return txs, nil
}
