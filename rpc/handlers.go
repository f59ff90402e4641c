package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"promisevault/core/types"
	"promisevault/indexer"
)

func (s *Server) handleSendTransaction(ctx context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	var tx types.Transaction
	if rpcErr := decodeParam(params, 0, "transaction", &tx); rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.ledger.Execute(ctx, &tx)
	if err != nil {
		return nil, ledgerError(err)
	}
	return receipt, nil
}

func (s *Server) handleChainInfo(_ context.Context, _ []json.RawMessage) (interface{}, *RPCError) {
	seq, err := s.ledger.Sequence()
	if err != nil {
		return nil, ledgerError(err)
	}
	return ChainInfoResult{
		ChainID:  s.ledger.ChainID(),
		Program:  s.ledger.Program().String(),
		Sequence: seq,
	}, nil
}

func (s *Server) handleAccountGet(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	addr, rpcErr := addressParam(params, 0, "address")
	if rpcErr != nil {
		return nil, rpcErr
	}
	acc, err := s.ledger.Account(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return accountResult(addr, acc), nil
}

func (s *Server) handleCustodyGetAccount(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	id, rpcErr := addressParam(params, 0, "account")
	if rpcErr != nil {
		return nil, rpcErr
	}
	acc, err := s.ledger.CustodyAccount(id)
	if err != nil {
		return nil, ledgerError(err)
	}
	return custodyAccountResult(acc), nil
}

func (s *Server) handleCustodyGetMint(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	var symbol string
	if rpcErr := decodeParam(params, 0, "symbol", &symbol); rpcErr != nil {
		return nil, rpcErr
	}
	mint, err := s.ledger.Mint(symbol)
	if err != nil {
		return nil, ledgerError(err)
	}
	return mintResult(mint), nil
}

func (s *Server) handleTreasuryGet(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	id, rpcErr := addressParam(params, 0, "treasury")
	if rpcErr != nil {
		return nil, rpcErr
	}
	summary, err := s.ledger.TreasurySummary(id)
	if err != nil {
		return nil, ledgerError(err)
	}
	return treasuryResult(summary), nil
}

func (s *Server) handleTreasuryListPromises(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	id, rpcErr := addressParam(params, 0, "treasury")
	if rpcErr != nil {
		return nil, rpcErr
	}
	promises, err := s.ledger.Promises(id)
	if err != nil {
		return nil, ledgerError(err)
	}
	out := make([]PromiseResult, 0, len(promises))
	for _, p := range promises {
		out = append(out, promiseResult(p))
	}
	return out, nil
}

func (s *Server) handleTreasuryDeriveAuthority(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	id, rpcErr := addressParam(params, 0, "treasury")
	if rpcErr != nil {
		return nil, rpcErr
	}
	authority, bump, err := s.ledger.DeriveAuthority(id)
	if err != nil {
		return nil, ledgerError(err)
	}
	return AuthorityResult{Treasury: id.String(), Authority: authority.String(), Bump: bump}, nil
}

// EventsQuery is the parameter object of treasury_listEvents.
type EventsQuery struct {
	Treasury      string `json:"treasury"`
	Beneficiary   string `json:"beneficiary,omitempty"`
	Type          string `json:"type,omitempty"`
	AfterSequence uint64 `json:"afterSequence,omitempty"`
	Limit         int    `json:"limit,omitempty"`
}

func (s *Server) handleTreasuryListEvents(ctx context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	if s.events == nil {
		return nil, &RPCError{Code: codeServerError, Message: "event indexer disabled"}
	}
	var query EventsQuery
	if rpcErr := decodeParam(params, 0, "query", &query); rpcErr != nil {
		return nil, rpcErr
	}
	if strings.TrimSpace(query.Treasury) == "" {
		return nil, invalidParams("treasury required", nil)
	}
	events, err := s.events.Events(ctx, indexer.Filter{
		Treasury:      strings.TrimSpace(query.Treasury),
		Beneficiary:   strings.TrimSpace(query.Beneficiary),
		Type:          strings.TrimSpace(query.Type),
		AfterSequence: query.AfterSequence,
		Limit:         query.Limit,
	})
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: "failed to query events", Data: err.Error()}
	}
	return events, nil
}

func (s *Server) handlePromiseGet(_ context.Context, params []json.RawMessage) (interface{}, *RPCError) {
	treasuryID, rpcErr := addressParam(params, 0, "treasury")
	if rpcErr != nil {
		return nil, rpcErr
	}
	beneficiary, rpcErr := addressParam(params, 1, "beneficiary")
	if rpcErr != nil {
		return nil, rpcErr
	}
	p, err := s.ledger.Promise(treasuryID, beneficiary)
	if err != nil {
		return nil, ledgerError(err)
	}
	return promiseResult(p), nil
}
