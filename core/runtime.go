package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"promisevault/core/events"
	"promisevault/core/state"
	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/native/custody"
	"promisevault/native/treasury"
	"promisevault/observability"
	"promisevault/storage"
)

// DefaultProgram is the address treasury and custody authorities derive from
// unless the operator configures another one.
var DefaultProgram = crypto.MustBytesToAddress(crypto.Keccak256([]byte("promisevault/treasury-program"))[12:])

// Deposits are the native storage deposits charged per record kind.
type Deposits struct {
	Treasury       uint64
	Promise        uint64
	CustodyAccount uint64
}

// Options configures a Runtime.
type Options struct {
	ChainID  uint64
	Program  crypto.Address
	Deposits Deposits
	// Now returns unix seconds. Defaults to the wall clock.
	Now    func() int64
	Logger *slog.Logger
	// Meter defaults to the global OpenTelemetry meter provider.
	Meter metric.Meter
}

// Sink receives receipts of committed transactions. Publish runs after the
// commit, so a sink failure cannot undo the transaction.
type Sink interface {
	Publish(ctx context.Context, receipt *types.Receipt) error
}

// Runtime executes signed transactions against a key/value database. It is
// the single writer: Execute and the queries share one lock.
type Runtime struct {
	mu       sync.Mutex
	db       storage.Database
	chainID  uint64
	program  crypto.Address
	deposits Deposits
	nowFn    func() int64
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.LedgerMetrics
	otelTx   txInstruments
	sinks    []Sink
}

// NewRuntime binds a runtime to db.
func NewRuntime(db storage.Database, opts Options) (*Runtime, error) {
	if db == nil {
		return nil, fmt.Errorf("core: nil database")
	}
	if opts.ChainID == 0 {
		return nil, fmt.Errorf("core: chain id must be non-zero")
	}
	program := opts.Program
	if program.IsZero() {
		program = DefaultProgram
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().Unix() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter("promisevault/core")
	}
	return &Runtime{
		db:       db,
		chainID:  opts.ChainID,
		program:  program,
		deposits: opts.Deposits,
		nowFn:    nowFn,
		logger:   logger.With(slog.String("component", "runtime")),
		tracer:   otel.Tracer("promisevault/core"),
		metrics:  observability.Ledger(),
		otelTx:   newTxInstruments(meter),
	}, nil
}

// ChainID returns the chain id transactions must carry.
func (r *Runtime) ChainID() uint64 { return r.chainID }

// Program returns the program address authorities derive from.
func (r *Runtime) Program() crypto.Address { return r.program }

// AddSink registers a receipt consumer.
func (r *Runtime) AddSink(sink Sink) {
	if sink == nil {
		return
	}
	r.mu.Lock()
	r.sinks = append(r.sinks, sink)
	r.mu.Unlock()
}

// session wires fresh engine instances to one state view.
type session struct {
	state    *state.Manager
	custody  *custody.Service
	treasury *treasury.Engine
	buffer   *events.Buffer
}

func (r *Runtime) newSession(db storage.Database, signer crypto.Address, now int64) *session {
	manager := state.NewManager(db)
	buffer := &events.Buffer{}

	custodySvc := custody.NewService()
	custodySvc.SetState(manager)
	custodySvc.SetEmitter(buffer)
	custodySvc.SetProgram(r.program)
	custodySvc.SetSigner(signer)
	custodySvc.SetAccountDeposit(r.deposits.CustodyAccount)

	engine := treasury.NewEngine()
	engine.SetState(manager)
	engine.SetCustody(custodySvc)
	engine.SetProgram(r.program)
	engine.SetDeposits(r.deposits.Treasury, r.deposits.Promise)
	engine.SetEmitter(buffer)
	engine.SetNowFunc(func() int64 { return now })

	return &session{state: manager, custody: custodySvc, treasury: engine, buffer: buffer}
}

// Execute validates and applies tx. Either every instruction takes effect
// and the signer's nonce advances, or nothing changes.
func (r *Runtime) Execute(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, fmt.Errorf("core: nil transaction")
	}
	ctx, span := r.tracer.Start(ctx, "core.Execute", trace.WithAttributes(
		attribute.Int("tx.instructions", len(tx.Instructions)),
		attribute.Int64("tx.nonce", int64(tx.Nonce)),
	))
	defer span.End()

	start := time.Now()
	r.mu.Lock()
	receipt, err := r.execute(ctx, tx)
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.Unlock()

	if err != nil {
		category := Classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(category))
		r.metrics.ObserveTransaction(string(category), 0, time.Since(start))
		r.otelTx.record(ctx, category, time.Since(start))
		r.logger.Warn("transaction rejected",
			slog.String("category", string(category)),
			slog.String("error", err.Error()))
		return nil, err
	}
	span.SetAttributes(attribute.String("tx.hash", receipt.TxHash), attribute.Int64("tx.sequence", int64(receipt.Sequence)))
	r.metrics.ObserveTransaction("", receipt.Sequence, time.Since(start))
	r.otelTx.record(ctx, treasury.CategoryNone, time.Since(start))
	r.logger.Info("transaction committed",
		slog.String("tx", receipt.TxHash),
		slog.String("signer", receipt.Signer),
		slog.Uint64("sequence", receipt.Sequence),
		slog.Int("events", len(receipt.Events)))
	r.publish(ctx, sinks, receipt)
	return receipt, nil
}

func (r *Runtime) execute(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tx.ChainID != r.chainID {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrChainIDMismatch, tx.ChainID, r.chainID)
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	signer, err := tx.From()
	if err != nil {
		return nil, err
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	overlay := storage.NewOverlay(r.db)
	committed := false
	defer func() {
		if !committed {
			overlay.Discard()
		}
	}()

	now := r.nowFn()
	sess := r.newSession(overlay, signer, now)
	account, err := sess.state.GetAccount(signer)
	if err != nil {
		return nil, err
	}
	if account.Nonce != tx.Nonce {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrNonceMismatch, tx.Nonce, account.Nonce)
	}

	for i, instr := range tx.Instructions {
		err := sess.apply(signer, instr)
		r.metrics.ObserveInstruction(instr.Kind.String(), err == nil)
		if err != nil {
			return nil, fmt.Errorf("core: instruction %d (%s): %w", i, instr.Kind, err)
		}
	}

	// Instructions may have moved native balance, so reload before bumping.
	account, err = sess.state.GetAccount(signer)
	if err != nil {
		return nil, err
	}
	account.Nonce++
	if err := sess.state.PutAccount(signer, account); err != nil {
		return nil, err
	}
	seq, err := sess.state.Sequence()
	if err != nil {
		return nil, err
	}
	seq++
	if err := sess.state.SetSequence(seq); err != nil {
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, fmt.Errorf("core: commit: %w", err)
	}
	committed = true

	return &types.Receipt{
		Sequence:  seq,
		TxHash:    "0x" + hex.EncodeToString(hash),
		Signer:    signer.String(),
		Timestamp: now,
		Events:    sess.buffer.Drain(),
	}, nil
}

func (r *Runtime) publish(ctx context.Context, sinks []Sink, receipt *types.Receipt) {
	observability.Events().RecordReceipt(receipt)
	r.refreshTreasuryGauges(receipt)
	for _, sink := range sinks {
		if err := sink.Publish(ctx, receipt); err != nil {
			r.logger.Error("receipt sink failed",
				slog.String("tx", receipt.TxHash),
				slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) refreshTreasuryGauges(receipt *types.Receipt) {
	touched := make(map[string]struct{})
	for _, evt := range receipt.Events {
		if id, ok := evt.Attributes["treasury"]; ok {
			touched[id] = struct{}{}
		}
	}
	for id := range touched {
		addr, err := crypto.ParseAddress(id)
		if err != nil {
			continue
		}
		summary, err := r.TreasurySummary(addr)
		if err != nil {
			continue
		}
		if summary.Treasury.Status != treasury.TreasuryOpen {
			r.metrics.ForgetTreasury(id)
			continue
		}
		r.metrics.RecordTreasury(id, summary.Treasury.TotalNonClaimed, summary.CustodyBalance)
	}
}
