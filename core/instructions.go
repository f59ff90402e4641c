package core

import (
	"fmt"
	"math"

	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/native/custody"
	"promisevault/native/treasury"
)

func unixSeconds(field string, v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s %d out of range", ErrInvalidPayload, field, v)
	}
	return int64(v), nil
}

// apply runs one instruction on behalf of signer. Authorisation is left to
// the engines: the signer is the caller for treasury operations and the
// only accepted signer authority for custody operations.
func (s *session) apply(signer crypto.Address, instr types.Instruction) error {
	switch instr.Kind {
	case types.InstrNativeTransfer:
		var p types.NativeTransferPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if p.To.IsZero() {
			return fmt.Errorf("%w: zero recipient", ErrInvalidPayload)
		}
		return s.state.NativeTransfer(signer, p.To, p.Amount)

	case types.InstrCustodyInitAccount:
		var p types.InitAccountPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		_, err := s.custody.InitAccount(signer, custody.AccountID(signer, p.Seed), p.Mint, p.Owner)
		return err

	case types.InstrCustodyMintTo:
		var p types.MintToPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.custody.MintTo(p.Mint, p.Account, custody.SignerAuthority(signer), p.Amount)

	case types.InstrCustodyTransfer:
		var p types.CustodyTransferPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.custody.Transfer(p.From, p.To, custody.SignerAuthority(signer), p.Amount)

	case types.InstrCustodyApprove:
		var p types.ApprovePayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.custody.Approve(p.Account, custody.SignerAuthority(signer), p.Delegate, p.Amount)

	case types.InstrCustodyRevoke:
		var p types.RevokePayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.custody.Revoke(p.Account, custody.SignerAuthority(signer))

	case types.InstrCustodySetCloseAuthority:
		var p types.SetCloseAuthorityPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.custody.SetCloseAuthority(p.Account, custody.SignerAuthority(signer), p.Authority)

	case types.InstrCustodyCloseAccount:
		var p types.CloseAccountPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.custody.CloseAccount(p.Account, p.Destination, custody.SignerAuthority(signer))

	case types.InstrTreasuryOpen:
		var p types.TreasuryOpenPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		start, err := unixSeconds("start time", p.StartTime)
		if err != nil {
			return err
		}
		end, err := unixSeconds("end time", p.EndTime)
		if err != nil {
			return err
		}
		_, err = s.treasury.OpenTreasury(treasury.OpenTreasuryParams{
			Payer:         signer,
			ID:            treasury.TreasuryID(signer, p.Seed),
			Admin:         p.Admin,
			Custody:       p.Custody,
			RentCollector: p.RentCollector,
			Mode:          treasury.Mode(p.Mode),
			StartTime:     start,
			EndTime:       end,
			Bump:          p.Bump,
		})
		return err

	case types.InstrTreasurySetAdmin:
		var p types.TreasurySetAdminPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.treasury.SetAdministrator(signer, p.Treasury, p.Admin)

	case types.InstrTreasurySetStartTime:
		var p types.TreasurySetStartTimePayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		start, err := unixSeconds("start time", p.StartTime)
		if err != nil {
			return err
		}
		return s.treasury.SetStartTime(signer, p.Treasury, start)

	case types.InstrTreasuryClose:
		var p types.TreasuryClosePayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.treasury.CloseTreasury(signer, p.Treasury, p.Destination)

	case types.InstrPromiseOpen:
		var p types.PromiseOpenPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		_, err := s.treasury.OpenPromise(signer, p.Treasury, p.Beneficiary, p.Amount)
		return err

	case types.InstrPromiseSetAmount:
		var p types.PromiseSetAmountPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.treasury.SetPromiseAmount(signer, p.Treasury, p.Beneficiary, p.Amount)

	case types.InstrPromiseClaim:
		var p types.PromiseClaimPayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		_, err := s.treasury.Claim(signer, p.Treasury, p.Destination)
		return err

	case types.InstrPromiseClose:
		var p types.PromiseClosePayload
		if err := instr.Decode(&p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.treasury.ClosePromise(signer, p.Treasury, p.Beneficiary)
	}
	return fmt.Errorf("%w: unknown instruction %s", ErrInvalidPayload, instr.Kind)
}
