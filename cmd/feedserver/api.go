package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"github.com/zecdev/chainfeed/pkg/feed"
	"github.com/zecdev/chainfeed/pkg/txparser"
	"github.com/zecdev/chainfeed/pkg/types"
)

// maxLoadMore caps the count accepted by the load-more endpoints.
const maxLoadMore = 100

// allFilter is accepted as an explicit "no type filter" value.
const allFilter = "all"

const (
	statusSuccess = "success"
	statusError   = "error"

	codeInvalidParams  = "ERR_INVALID_PARAMS"
	codeNotInitialized = "ERR_NOT_INITIALIZED"
	codeClosed         = "ERR_CLOSED"
	codeInFlight       = "ERR_IN_FLIGHT"
	codeDiscarded      = "ERR_DISCARDED"
	codeUpstream       = "ERR_UPSTREAM"
)

// Server exposes the block feed and the filterable transaction feed over HTTP
type Server struct {
	log     *zap.SugaredLogger
	network string
	blocks  *feed.Engine[*types.Block]
	txs     *feed.Session[*types.Transaction]
	// txFilter is used when a request names no type and no filter is active yet.
	txFilter string
}

// NewServer creates a new API server
func NewServer(
	log *zap.SugaredLogger,
	network string,
	blocks *feed.Engine[*types.Block],
	txs *feed.Session[*types.Transaction],
	txFilter string,
) *Server {
	return &Server{log: log, network: network, blocks: blocks, txs: txs, txFilter: txFilter}
}

// newApp creates the Fiber app with the middleware every deployment uses
func newApp(corsOrigins string) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowHeaders: "*",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	app.Use(logger.New(logger.Config{
		Format: "${method} ${path} - ${status} (${latency})\n",
	}))

	return app
}

// SetupRoutes registers all API routes
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/", s.HandleRoot)

	v1 := app.Group("/v1")
	v1.Get("/status", s.HandleStatus)
	v1.Get("/blocks", s.HandleGetBlocks)
	v1.Post("/blocks/more", s.HandleMoreBlocks)
	v1.Get("/transactions", s.HandleGetTransactions)
	v1.Post("/transactions/more", s.HandleMoreTransactions)
}

// Response represents the standard API response format
type Response struct {
	Status      string      `json:"status"`
	Value       interface{} `json:"value,omitempty"`
	Code        string      `json:"code,omitempty"`
	Description string      `json:"description,omitempty"`
}

// StateView is the JSON form of feed.State
type StateView struct {
	Feed         string     `json:"feed"`
	Phase        string     `json:"phase"`
	HeadInFlight bool       `json:"headInFlight"`
	TailInFlight bool       `json:"tailInFlight"`
	Highest      *int64     `json:"highest,omitempty"`
	Lowest       *int64     `json:"lowest,omitempty"`
	HasMore      bool       `json:"hasMore"`
	Items        int        `json:"items"`
	LastHeadSync *time.Time `json:"lastHeadSync,omitempty"`
	HeadError    string     `json:"headError,omitempty"`
	TailError    string     `json:"tailError,omitempty"`
}

func newStateView(st feed.State) StateView {
	v := StateView{
		Feed:         st.Feed,
		Phase:        st.Phase.String(),
		HeadInFlight: st.HeadInFlight,
		TailInFlight: st.TailInFlight,
		HasMore:      st.HasMore,
		Items:        st.Len,
		HeadError:    errString(st.HeadErr),
		TailError:    errString(st.TailErr),
	}
	if st.Boundaries.Known {
		hi, lo := st.Boundaries.Highest, st.Boundaries.Lowest
		v.Highest, v.Lowest = &hi, &lo
	}
	if !st.LastHeadSync.IsZero() {
		t := st.LastHeadSync.UTC()
		v.LastHeadSync = &t
	}
	return v
}

// StatusView reports both feeds
type StatusView struct {
	Network      string    `json:"network"`
	Blocks       StateView `json:"blocks"`
	Transactions StateView `json:"transactions"`
	TxFilter     string    `json:"txFilter"`
}

// BlockView is a cached block with its window position
type BlockView struct {
	Position int64 `json:"position"`
	*types.Block
	TxCount int `json:"txCount"`
}

// TxView is a cached transaction with its derived kind and stats
type TxView struct {
	Position int64 `json:"position"`
	*types.Transaction
	Kind  txparser.Kind  `json:"kind"`
	Stats txparser.Stats `json:"stats"`
}

// PageView is the window contents of one feed
type PageView[T any] struct {
	Items []T       `json:"items"`
	State StateView `json:"state"`
}

// ResultView is the JSON form of feed.Result
type ResultView struct {
	Direction string `json:"direction"`
	Status    string `json:"status"`
	Fetched   int    `json:"fetched"`
	Added     int    `json:"added"`
	HasMore   bool   `json:"hasMore"`
	Error     string `json:"error,omitempty"`
}

func newResultView(res feed.Result) ResultView {
	return ResultView{
		Direction: res.Direction.String(),
		Status:    res.Status.String(),
		Fetched:   res.Fetched,
		Added:     res.Added,
		HasMore:   res.HasMore,
		Error:     errString(res.Err),
	}
}

func blockPage(snap feed.Snapshot[*types.Block]) PageView[BlockView] {
	items := make([]BlockView, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, BlockView{Position: it.Position, Block: it.Value, TxCount: it.Value.TxCount()})
	}
	return PageView[BlockView]{Items: items, State: newStateView(snap.State)}
}

func txPage(snap feed.Snapshot[*types.Transaction]) PageView[TxView] {
	items := make([]TxView, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, TxView{
			Position:    it.Position,
			Transaction: it.Value,
			Kind:        txparser.Classify(it.Value),
			Stats:       txparser.ComputeStats(it.Value),
		})
	}
	return PageView[TxView]{Items: items, State: newStateView(snap.State)}
}

// HandleRoot returns service identification
func (s *Server) HandleRoot(c *fiber.Ctx) error {
	return c.JSON(Response{
		Status: statusSuccess,
		Value:  "chainfeed",
	})
}

// HandleStatus returns the state of both feeds
func (s *Server) HandleStatus(c *fiber.Ctx) error {
	c.Set("Cache-Control", "no-cache")
	return c.JSON(Response{
		Status: statusSuccess,
		Value: StatusView{
			Network:      s.network,
			Blocks:       newStateView(s.blocks.State()),
			Transactions: newStateView(s.txs.State()),
			TxFilter:     filterLabel(s.txs.Filter()),
		},
	})
}

// HandleGetBlocks returns the cached block window, newest first
func (s *Server) HandleGetBlocks(c *fiber.Ctx) error {
	c.Set("Cache-Control", "no-cache")
	return c.JSON(Response{
		Status: statusSuccess,
		Value:  blockPage(s.blocks.Snapshot()),
	})
}

// HandleMoreBlocks extends the block window at the tail
func (s *Server) HandleMoreBlocks(c *fiber.Ctx) error {
	count, err := parseCount(c, s.blocks.WindowSize())
	if err != nil {
		return invalidParams(c, err)
	}
	return s.respondResult(c, s.blocks.ExtendTail(c.UserContext(), count))
}

// HandleGetTransactions returns the cached transaction window. A type query
// parameter different from the active filter replaces the window with a fresh
// one for that type.
func (s *Server) HandleGetTransactions(c *fiber.Ctx) error {
	c.Set("Cache-Control", "no-cache")

	// Without a type the active filter is kept; "all" clears it.
	var (
		e   *feed.Engine[*types.Transaction]
		err error
	)
	if raw := c.Query("type"); strings.TrimSpace(raw) == "" {
		e, err = s.txs.Resume(c.UserContext(), s.txFilter)
	} else {
		filter, perr := parseFilter(raw)
		if perr != nil {
			return invalidParams(c, perr)
		}
		e, err = s.txs.Switch(c.UserContext(), filter)
	}
	switch {
	case errors.Is(err, feed.ErrClosed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(Response{
			Status:      statusError,
			Code:        codeClosed,
			Description: "Transaction feed is shutting down",
		})
	case e == nil:
		return c.Status(fiber.StatusInternalServerError).JSON(Response{
			Status:      statusError,
			Description: errString(err),
		})
	case err != nil:
		s.log.Warnw("transaction feed initialization failed", "filter", filterLabel(s.txs.Filter()), "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(Response{
			Status:      statusError,
			Value:       txPage(e.Snapshot()),
			Code:        codeUpstream,
			Description: err.Error(),
		})
	}

	return c.JSON(Response{
		Status: statusSuccess,
		Value:  txPage(e.Snapshot()),
	})
}

// HandleMoreTransactions extends the active transaction window at the tail
func (s *Server) HandleMoreTransactions(c *fiber.Ctx) error {
	e := s.txs.Current()
	if e == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(Response{
			Status:      statusError,
			Code:        codeNotInitialized,
			Description: "Transaction feed has not been loaded yet",
		})
	}
	count, err := parseCount(c, e.WindowSize())
	if err != nil {
		return invalidParams(c, err)
	}
	return s.respondResult(c, e.ExtendTail(c.UserContext(), count))
}

// respondResult maps a tail extension outcome to a response. Failures keep
// hasMore in the body so the client can offer to load more again.
func (s *Server) respondResult(c *fiber.Ctx, res feed.Result) error {
	view := newResultView(res)

	switch res.Status {
	case feed.StatusMerged, feed.StatusNoOp:
		return c.JSON(Response{Status: statusSuccess, Value: view})
	case feed.StatusSkipped:
		return c.Status(fiber.StatusConflict).JSON(Response{
			Status:      statusError,
			Value:       view,
			Code:        codeInFlight,
			Description: "A load-more request is already in progress",
		})
	case feed.StatusDiscarded:
		return c.Status(fiber.StatusConflict).JSON(Response{
			Status:      statusError,
			Value:       view,
			Code:        codeDiscarded,
			Description: "Feed was replaced while loading",
		})
	}

	switch {
	case errors.Is(res.Err, feed.ErrNotInitialized):
		return c.Status(fiber.StatusServiceUnavailable).JSON(Response{
			Status:      statusError,
			Value:       view,
			Code:        codeNotInitialized,
			Description: res.Err.Error(),
		})
	case errors.Is(res.Err, feed.ErrClosed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(Response{
			Status:      statusError,
			Value:       view,
			Code:        codeClosed,
			Description: res.Err.Error(),
		})
	default:
		return c.Status(fiber.StatusBadGateway).JSON(Response{
			Status:      statusError,
			Value:       view,
			Code:        codeUpstream,
			Description: errString(res.Err),
		})
	}
}

func invalidParams(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(Response{
		Status:      statusError,
		Code:        codeInvalidParams,
		Description: err.Error(),
	})
}

// parseCount reads the count query parameter, falling back to def.
func parseCount(c *fiber.Ctx, def int) (int, error) {
	raw := c.Query("count")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxLoadMore {
		return 0, fmt.Errorf("invalid count %q: must be between 1 and %d", raw, maxLoadMore)
	}
	return n, nil
}

// parseFilter normalizes a type query value. Empty and "all" select every type.
func parseFilter(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, allFilter) {
		return "", nil
	}
	k, err := txparser.ParseKind(raw)
	if err != nil {
		return "", err
	}
	return k.String(), nil
}

func filterLabel(filter string) string {
	if filter == "" {
		return allFilter
	}
	return filter
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
