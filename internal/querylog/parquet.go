package querylog

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

type parquetEntry struct {
	Timestamp    string `parquet:"timestamp"`
	Question     string `parquet:"question"`
	SQLQuery     string `parquet:"sql_query"`
	Success      bool   `parquet:"success"`
	ErrorMessage string `parquet:"error_message,optional"`
}

// WriteParquet encodes entries as a single Parquet file.
func WriteParquet(w io.Writer, entries []Entry) error {
	rows := make([]parquetEntry, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, parquetEntry(entry))
	}

	writer := parquet.NewGenericWriter[parquetEntry](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
