package main

import (
	"fmt"

	"promisevault/crypto"
)

func runGenerateKey(c *cli, args []string) int {
	fs := newFlagSet("generate-key", c.stderr)
	var out string
	var light bool
	fs.StringVar(&out, "out", "", "keystore file to create")
	fs.BoolVar(&light, "light", false, "use the light scrypt parameters")
	if err := parseFlags(fs, args, false); err != nil {
		return 1
	}
	if out == "" {
		return c.fail("--out is required")
	}
	pass, err := keystorePassphrase.Get()
	if err != nil {
		return c.fail("%v", err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return c.fail("generate key: %v", err)
	}
	strength := crypto.KeystoreStandard
	if light {
		strength = crypto.KeystoreLight
	}
	if err := crypto.SaveKeystore(out, key, pass, strength); err != nil {
		return c.fail("save keystore: %v", err)
	}
	fmt.Fprintln(c.stdout, key.Address().String())
	return 0
}
