package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"promisevault/core"
	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/indexer"
	"promisevault/native/custody"
	"promisevault/native/treasury"
	"promisevault/observability"
)

// Ledger is the part of core.Runtime the server exposes.
type Ledger interface {
	Execute(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	ChainID() uint64
	Program() crypto.Address
	Sequence() (uint64, error)
	Account(addr crypto.Address) (*types.Account, error)
	CustodyAccount(id crypto.Address) (*custody.Account, error)
	Mint(symbol string) (*custody.Mint, error)
	TreasurySummary(id crypto.Address) (*core.TreasurySummary, error)
	Promise(treasuryID, beneficiary crypto.Address) (*treasury.Promise, error)
	Promises(treasuryID crypto.Address) ([]*treasury.Promise, error)
	DeriveAuthority(treasuryID crypto.Address) (crypto.Address, uint8, error)
}

// EventSource answers treasury_listEvents. The indexer implements it.
type EventSource interface {
	Events(ctx context.Context, f indexer.Filter) ([]indexer.Event, error)
}

// Options configures a Server.
type Options struct {
	RateLimitPerSec   float64
	RateLimitBurst    int
	TrustedProxies    []string
	ReadHeaderTimeout time.Duration
	// Events is optional; without it treasury_listEvents reports the indexer
	// as disabled.
	Events EventSource
	Logger *slog.Logger
}

type handlerFunc func(ctx context.Context, params []json.RawMessage) (interface{}, *RPCError)

// Server serves the JSON-RPC API of one runtime.
type Server struct {
	ledger            Ledger
	events            EventSource
	logger            *slog.Logger
	limiter           *clientLimiter
	proxies           proxyList
	readHeaderTimeout time.Duration
	methods           map[string]handlerFunc
}

func NewServer(ledger Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.ReadHeaderTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Server{
		ledger:            ledger,
		events:            opts.Events,
		logger:            logger,
		limiter:           newClientLimiter(opts.RateLimitPerSec, opts.RateLimitBurst),
		proxies:           parseProxies(opts.TrustedProxies),
		readHeaderTimeout: timeout,
	}
	s.methods = map[string]handlerFunc{
		"tx_send":                  s.handleSendTransaction,
		"chain_info":               s.handleChainInfo,
		"account_get":              s.handleAccountGet,
		"custody_getAccount":       s.handleCustodyGetAccount,
		"custody_getMint":          s.handleCustodyGetMint,
		"treasury_get":             s.handleTreasuryGet,
		"treasury_listPromises":    s.handleTreasuryListPromises,
		"treasury_deriveAuthority": s.handleTreasuryDeriveAuthority,
		"treasury_listEvents":      s.handleTreasuryListEvents,
		"promise_get":              s.handlePromiseGet,
	}
	return s
}

// Handler returns the HTTP surface: JSON-RPC on POST /, plus /healthz and
// /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Method(http.MethodPost, "/", otelhttp.NewHandler(http.HandlerFunc(s.handle), "promisevault.rpc"))
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("rpc: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")

	if !s.limiter.allow(s.proxies.clientSource(r)) {
		observability.RPC().RecordThrottle("rate_limit")
		writeError(w, nil, &RPCError{Code: codeRateLimited, Message: "rate limit exceeded"})
		return
	}

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	body, err := io.ReadAll(reader)
	if err != nil {
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, nil, &RPCError{Code: codeInvalidRequest, Message: message})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, req.ID, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}
	handler, ok := s.methods[req.Method]
	if !ok {
		observability.RPC().Observe("unknown", codeMethodNotFound, time.Since(start))
		writeError(w, req.ID, &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: req.Method})
		return
	}

	result, rpcErr := handler(r.Context(), req.Params)
	if rpcErr != nil {
		observability.RPC().Observe(req.Method, rpcErr.Code, time.Since(start))
		writeError(w, req.ID, rpcErr)
		return
	}
	observability.RPC().Observe(req.Method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}

func decodeParam(params []json.RawMessage, index int, name string, out interface{}) *RPCError {
	if index >= len(params) {
		return invalidParams(fmt.Sprintf("%s parameter required", name), nil)
	}
	if err := json.Unmarshal(params[index], out); err != nil {
		return invalidParams(fmt.Sprintf("invalid %s", name), err.Error())
	}
	return nil
}

func addressParam(params []json.RawMessage, index int, name string) (crypto.Address, *RPCError) {
	var text string
	if rpcErr := decodeParam(params, index, name, &text); rpcErr != nil {
		return crypto.Address{}, rpcErr
	}
	addr, err := crypto.ParseAddress(text)
	if err != nil {
		return crypto.Address{}, invalidParams(fmt.Sprintf("invalid %s", name), err.Error())
	}
	return addr, nil
}
