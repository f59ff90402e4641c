package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"

	"github.com/holiman/uint256"

	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/native/custody"
	"promisevault/native/treasury"
	"promisevault/rpc"
)

func runCreateTreasury(c *cli, args []string) int {
	fs := newFlagSet("create-treasury", c.stderr)
	var (
		keyPath, mint, modeName, start, end string
		admin, rentCollector, seed          string
		custodySeed, fund, fundingAccount   string
		simulate                            bool
	)
	fs.StringVar(&keyPath, "key", "", "keystore of the creator, who pays deposits")
	fs.StringVar(&mint, "mint", "", "token symbol held in custody")
	fs.StringVar(&modeName, "mode", "fixed", "promise mode: fixed or adjustable")
	fs.StringVar(&start, "start", "", "claims open at this time")
	fs.StringVar(&end, "end", "", "closure allowed from this time (empty disables the gate)")
	fs.StringVar(&admin, "admin", "", "administrator address (defaults to the creator)")
	fs.StringVar(&rentCollector, "rent-collector", "", "receives refunded deposits (defaults to the creator)")
	fs.StringVar(&seed, "seed", "", "hex seed of the treasury id (random when empty)")
	fs.StringVar(&custodySeed, "custody-seed", "", "hex seed of the custody account id (random when empty)")
	fs.StringVar(&fund, "fund", "", "amount moved into custody in the same transaction")
	fs.StringVar(&fundingAccount, "funding-account", "", "custody account owned by the creator that funds the treasury")
	fs.BoolVar(&simulate, "simulate", false, "sign and print without submitting")
	if err := parseFlags(fs, args, false); err != nil {
		return 1
	}
	if mint == "" {
		return c.fail("--mint is required")
	}
	mode, ok := treasury.ParseMode(modeName)
	if !ok {
		return c.fail("--mode must be fixed or adjustable")
	}
	startTime, err := parseTime("start", start, cliNow())
	if err != nil {
		return c.fail("%v", err)
	}
	endTime, err := parseTime("end", end, cliNow())
	if err != nil {
		return c.fail("%v", err)
	}
	seedBytes, err := seedOrRandom("seed", seed)
	if err != nil {
		return c.fail("%v", err)
	}
	custodySeedBytes, err := seedOrRandom("custody-seed", custodySeed)
	if err != nil {
		return c.fail("%v", err)
	}
	var (
		funding crypto.Address
		amount  *uint256.Int
	)
	if fund != "" {
		if amount, err = parseAmount("fund", fund); err != nil {
			return c.fail("%v", err)
		}
		if funding, err = requireAddress("funding-account", fundingAccount); err != nil {
			return c.fail("%v", err)
		}
	}

	ctx, cancel := commandContext()
	defer cancel()
	s, err := c.newSigner(ctx, keyPath)
	if err != nil {
		return c.fail("%v", err)
	}
	adminAddr, err := optionalAddress("admin", admin, s.address())
	if err != nil {
		return c.fail("%v", err)
	}
	collector, err := optionalAddress("rent-collector", rentCollector, s.address())
	if err != nil {
		return c.fail("%v", err)
	}

	id := treasury.TreasuryID(s.address(), seedBytes)
	custodyID := custody.AccountID(s.address(), custodySeedBytes)
	authority, bump, err := treasury.DeriveAuthority(s.program, id)
	if err != nil {
		return c.fail("derive authority: %v", err)
	}
	instrs := make([]types.Instruction, 0, 3)
	initAccount, err := newInstruction(types.InstrCustodyInitAccount, types.InitAccountPayload{
		Seed: custodySeedBytes, Mint: mint, Owner: authority,
	})
	if err != nil {
		return c.fail("%v", err)
	}
	open, err := newInstruction(types.InstrTreasuryOpen, types.TreasuryOpenPayload{
		Seed:          seedBytes,
		Admin:         adminAddr,
		Custody:       custodyID,
		RentCollector: collector,
		Mode:          uint8(mode),
		StartTime:     startTime,
		EndTime:       endTime,
		Bump:          bump,
	})
	if err != nil {
		return c.fail("%v", err)
	}
	instrs = append(instrs, initAccount, open)
	if amount != nil {
		transfer, err := newInstruction(types.InstrCustodyTransfer, types.CustodyTransferPayload{
			From: funding, To: custodyID, Amount: amount,
		})
		if err != nil {
			return c.fail("%v", err)
		}
		instrs = append(instrs, transfer)
	}

	fmt.Fprintf(c.stderr, "treasury %s custody %s authority %s\n", id, custodyID, authority)
	if err := s.send(ctx, simulate, instrs...); err != nil {
		return c.fail("create treasury: %v", err)
	}
	return 0
}

func seedOrRandom(name, value string) ([]byte, error) {
	if value == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	decoded, err := hex.DecodeString(value)
	if err != nil || len(decoded) == 0 {
		return nil, fmt.Errorf("--%s must be non-empty hex", name)
	}
	return decoded, nil
}

// runTreasuryTx handles the commands that take --key, --treasury and
// --simulate plus a few command specific flags.
func runTreasuryTx(c *cli, name string, args []string, register func(fs *flag.FlagSet), build func(id crypto.Address) (types.Instruction, error)) int {
	fs := newFlagSet(name, c.stderr)
	var (
		keyPath, treasuryText string
		simulate              bool
	)
	fs.StringVar(&keyPath, "key", "", "keystore of the signer")
	fs.StringVar(&treasuryText, "treasury", "", "treasury id")
	fs.BoolVar(&simulate, "simulate", false, "sign and print without submitting")
	register(fs)
	if err := parseFlags(fs, args, false); err != nil {
		return 1
	}
	id, err := requireAddress("treasury", treasuryText)
	if err != nil {
		return c.fail("%v", err)
	}
	if keyPath == "" {
		return c.fail("--key is required")
	}
	instr, err := build(id)
	if err != nil {
		return c.fail("%v", err)
	}
	ctx, cancel := commandContext()
	defer cancel()
	s, err := c.newSigner(ctx, keyPath)
	if err != nil {
		return c.fail("%v", err)
	}
	if err := s.send(ctx, simulate, instr); err != nil {
		return c.fail("%s: %v", name, err)
	}
	return 0
}

func runSetStartTime(c *cli, args []string) int {
	var start string
	return runTreasuryTx(c, "set-start-time", args,
		func(fs *flag.FlagSet) { fs.StringVar(&start, "start", "", "new start time") },
		func(id crypto.Address) (types.Instruction, error) {
			if start == "" {
				return types.Instruction{}, fmt.Errorf("--start is required")
			}
			ts, err := parseTime("start", start, cliNow())
			if err != nil {
				return types.Instruction{}, err
			}
			return newInstruction(types.InstrTreasurySetStartTime, types.TreasurySetStartTimePayload{Treasury: id, StartTime: ts})
		})
}

func runSetAdmin(c *cli, args []string) int {
	var admin string
	return runTreasuryTx(c, "set-admin", args,
		func(fs *flag.FlagSet) { fs.StringVar(&admin, "admin", "", "new administrator") },
		func(id crypto.Address) (types.Instruction, error) {
			addr, err := requireAddress("admin", admin)
			if err != nil {
				return types.Instruction{}, err
			}
			return newInstruction(types.InstrTreasurySetAdmin, types.TreasurySetAdminPayload{Treasury: id, Admin: addr})
		})
}

func runCloseTreasury(c *cli, args []string) int {
	var destination string
	return runTreasuryTx(c, "close-treasury", args,
		func(fs *flag.FlagSet) { fs.StringVar(&destination, "destination", "", "custody account receiving the remaining balance") },
		func(id crypto.Address) (types.Instruction, error) {
			addr, err := requireAddress("destination", destination)
			if err != nil {
				return types.Instruction{}, err
			}
			return newInstruction(types.InstrTreasuryClose, types.TreasuryClosePayload{Treasury: id, Destination: addr})
		})
}

// TreasuryView is printed by show-treasury.
type TreasuryView struct {
	Treasury *rpc.TreasuryResult `json:"treasury"`
	Promises []rpc.PromiseResult `json:"promises"`
}

func runShowTreasury(c *cli, args []string) int {
	fs := newFlagSet("show-treasury", c.stderr)
	var treasuryText string
	fs.StringVar(&treasuryText, "treasury", "", "treasury id")
	if err := parseFlags(fs, args, false); err != nil {
		return 1
	}
	id, err := requireAddress("treasury", treasuryText)
	if err != nil {
		return c.fail("%v", err)
	}
	ctx, cancel := commandContext()
	defer cancel()
	t, err := c.ledger().Treasury(ctx, id)
	if err != nil {
		return c.fail("treasury: %v", err)
	}
	promises, err := c.ledger().Promises(ctx, id)
	if err != nil {
		return c.fail("promises: %v", err)
	}
	return c.printJSON(TreasuryView{Treasury: t, Promises: promises})
}

func runDeriveAuthority(c *cli, args []string) int {
	fs := newFlagSet("derive-authority", c.stderr)
	var treasuryText string
	fs.StringVar(&treasuryText, "treasury", "", "treasury id")
	if err := parseFlags(fs, args, false); err != nil {
		return 1
	}
	id, err := requireAddress("treasury", treasuryText)
	if err != nil {
		return c.fail("%v", err)
	}
	ctx, cancel := commandContext()
	defer cancel()
	auth, err := c.ledger().DeriveAuthority(ctx, id)
	if err != nil {
		return c.fail("derive authority: %v", err)
	}
	return c.printJSON(auth)
}
