package exports

import (
	"promisevault/native/treasury"
)

// PromiseRow is one line of a treasury ledger export.
type PromiseRow struct {
	Treasury    string
	Mode        string
	Beneficiary string
	TotalAmount string
	NonClaimed  string
	Claimed     string
	Status      string
}

// Rows flattens the open promises of t in the given order.
func Rows(t *treasury.Treasury, promises []*treasury.Promise) ([]PromiseRow, error) {
	rows := make([]PromiseRow, 0, len(promises))
	for _, p := range promises {
		if p == nil {
			continue
		}
		claimed, err := p.Claimed()
		if err != nil {
			return nil, err
		}
		rows = append(rows, PromiseRow{
			Treasury:    t.ID.String(),
			Mode:        t.Mode.String(),
			Beneficiary: p.Beneficiary.String(),
			TotalAmount: p.TotalAmount.Dec(),
			NonClaimed:  p.NonClaimed.Dec(),
			Claimed:     claimed.Dec(),
			Status:      p.Status.String(),
		})
	}
	return rows, nil
}
