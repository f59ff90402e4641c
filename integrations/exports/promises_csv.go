package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
)

var csvHeader = []string{"treasury", "mode", "beneficiary", "total_amount", "non_claimed", "claimed", "status"}

// PromisesCSV renders rows as CSV and returns the payload with its SHA-256
// checksum.
func PromisesCSV(rows []PromiseRow) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(csvHeader); err != nil {
		return nil, "", err
	}
	for _, row := range rows {
		record := []string{row.Treasury, row.Mode, row.Beneficiary, row.TotalAmount, row.NonClaimed, row.Claimed, row.Status}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
