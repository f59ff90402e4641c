package types

// Account is the native account of a signer. Balance is denominated in the
// native storage-deposit currency; token value lives in custody accounts.
type Account struct {
	Nonce   uint64 `json:"nonce"`
	Balance uint64 `json:"balance"`
}

// Copy returns an independent copy of the account.
func (a *Account) Copy() *Account {
	if a == nil {
		return &Account{}
	}
	clone := *a
	return &clone
}
