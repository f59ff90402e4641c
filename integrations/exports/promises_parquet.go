package exports

import (
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Amounts are decimal strings; they may exceed 64 bits.
type parquetRow struct {
	Treasury    string `parquet:"name=treasury, type=BYTE_ARRAY, convertedtype=UTF8"`
	Mode        string `parquet:"name=mode, type=BYTE_ARRAY, convertedtype=UTF8"`
	Beneficiary string `parquet:"name=beneficiary, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalAmount string `parquet:"name=total_amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	NonClaimed  string `parquet:"name=non_claimed, type=BYTE_ARRAY, convertedtype=UTF8"`
	Claimed     string `parquet:"name=claimed, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status      string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// WritePromisesParquet writes rows to w as a snappy-compressed parquet file.
func WritePromisesParquet(w io.Writer, rows []PromiseRow) error {
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(w), new(parquetRow), 1)
	if err != nil {
		return fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		pr := &parquetRow{
			Treasury:    row.Treasury,
			Mode:        row.Mode,
			Beneficiary: row.Beneficiary,
			TotalAmount: row.TotalAmount,
			NonClaimed:  row.NonClaimed,
			Claimed:     row.Claimed,
			Status:      row.Status,
		}
		if err := pw.Write(pr); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("exports: parquet flush: %w", err)
	}
	return nil
}
