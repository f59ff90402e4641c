package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	rpcEnv          = "PROMISEVAULT_RPC"
	keystorePassEnv = "PROMISEVAULT_KEYSTORE_PASS"
	defaultRPCURL   = "http://127.0.0.1:8645"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type command func(c *cli, args []string) int

var commands = map[string]command{
	"create-treasury":          runCreateTreasury,
	"set-start-time":           runSetStartTime,
	"set-admin":                runSetAdmin,
	"close-treasury":           runCloseTreasury,
	"show-treasury":            runShowTreasury,
	"derive-authority":         runDeriveAuthority,
	"create-promise":           runCreatePromise,
	"set-promise-amount":       runSetPromiseAmount,
	"claim":                    runClaim,
	"close-promise":            runClosePromise,
	"update-promises":          runUpdatePromises,
	"generate-random-promises": runGenerateRandomPromises,
	"export-promises":          runExportPromises,
	"generate-key":             runGenerateKey,
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr, rpcURL: defaultRPCEndpoint()}
	args, err := c.applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
	return cmd(c, args[1:])
}

func defaultRPCEndpoint() string {
	if value := strings.TrimSpace(os.Getenv(rpcEnv)); value != "" {
		return value
	}
	return defaultRPCURL
}

// applyGlobalFlags consumes --rpc flags that precede the command name.
func (c *cli) applyGlobalFlags(args []string) ([]string, error) {
	for len(args) > 0 {
		arg := args[0]
		switch {
		case arg == "--rpc":
			if len(args) < 2 {
				return nil, fmt.Errorf("--rpc requires a URL")
			}
			c.rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(arg, "--rpc="):
			c.rpcURL = strings.TrimPrefix(arg, "--rpc=")
			args = args[1:]
		default:
			return args, nil
		}
	}
	return args, nil
}

func usage() string {
	return `Usage: promisectl [--rpc URL] <command> [flags]

Treasury commands:
  create-treasury     --key FILE --mint SYMBOL [--mode fixed|adjustable] [--start T] [--end T] [--fund AMOUNT --funding-account ID]
  set-start-time      --key FILE --treasury ID --start T
  set-admin           --key FILE --treasury ID --admin ADDRESS
  close-treasury      --key FILE --treasury ID --destination ACCOUNT
  show-treasury       --treasury ID
  derive-authority    --treasury ID

Promise commands:
  create-promise      --key FILE --treasury ID --user ADDRESS --amount AMOUNT
  set-promise-amount  --key FILE --treasury ID --user ADDRESS --amount AMOUNT
  claim               --key FILE --treasury ID --destination ACCOUNT
  close-promise       --key FILE --treasury ID --user ADDRESS
  update-promises     --key FILE --treasury ID MANIFEST...
  generate-random-promises --users N --total AMOUNT --out DIR
  export-promises     --treasury ID --format csv|parquet --out FILE

Keys:
  generate-key        --out FILE

Every mutating command accepts --simulate to sign and print the transaction
without submitting it. Times are unix seconds, RFC3339 or +duration.
The keystore passphrase is read from ` + keystorePassEnv + ` or prompted.`
}
