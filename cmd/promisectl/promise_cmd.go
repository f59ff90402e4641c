package main

import (
	"flag"

	"promisevault/core/types"
	"promisevault/crypto"
)

func runCreatePromise(c *cli, args []string) int {
	var user, amount string
	return runTreasuryTx(c, "create-promise", args,
		func(fs *flag.FlagSet) {
			fs.StringVar(&user, "user", "", "beneficiary address")
			fs.StringVar(&amount, "amount", "", "promised amount")
		},
		func(id crypto.Address) (types.Instruction, error) {
			beneficiary, err := requireAddress("user", user)
			if err != nil {
				return types.Instruction{}, err
			}
			value, err := parseAmount("amount", amount)
			if err != nil {
				return types.Instruction{}, err
			}
			return newInstruction(types.InstrPromiseOpen, types.PromiseOpenPayload{Treasury: id, Beneficiary: beneficiary, Amount: value})
		})
}

func runSetPromiseAmount(c *cli, args []string) int {
	var user, amount string
	return runTreasuryTx(c, "set-promise-amount", args,
		func(fs *flag.FlagSet) {
			fs.StringVar(&user, "user", "", "beneficiary address")
			fs.StringVar(&amount, "amount", "", "new total amount")
		},
		func(id crypto.Address) (types.Instruction, error) {
			beneficiary, err := requireAddress("user", user)
			if err != nil {
				return types.Instruction{}, err
			}
			value, err := parseAmount("amount", amount)
			if err != nil {
				return types.Instruction{}, err
			}
			return newInstruction(types.InstrPromiseSetAmount, types.PromiseSetAmountPayload{Treasury: id, Beneficiary: beneficiary, Amount: value})
		})
}

func runClaim(c *cli, args []string) int {
	var destination string
	return runTreasuryTx(c, "claim", args,
		func(fs *flag.FlagSet) {
			fs.StringVar(&destination, "destination", "", "custody account receiving the claim")
		},
		func(id crypto.Address) (types.Instruction, error) {
			addr, err := requireAddress("destination", destination)
			if err != nil {
				return types.Instruction{}, err
			}
			return newInstruction(types.InstrPromiseClaim, types.PromiseClaimPayload{Treasury: id, Destination: addr})
		})
}

func runClosePromise(c *cli, args []string) int {
	var user string
	return runTreasuryTx(c, "close-promise", args,
		func(fs *flag.FlagSet) {
			fs.StringVar(&user, "user", "", "beneficiary address")
		},
		func(id crypto.Address) (types.Instruction, error) {
			beneficiary, err := requireAddress("user", user)
			if err != nil {
				return types.Instruction{}, err
			}
			return newInstruction(types.InstrPromiseClose, types.PromiseClosePayload{Treasury: id, Beneficiary: beneficiary})
		})
}
