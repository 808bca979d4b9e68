// Package export writes normalized claim items as flat Parquet rows.
package export

import (
	"fmt"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/spf13/afero"

	"github.com/starford/claimline/internal/claims"
)

const dateLayout = "2006-01-02"

// Row is one claim item. Service-only and prescription-only columns are
// optional.
type Row struct {
	Source     string  `parquet:"source"`
	ID         string  `parquet:"id"`
	Kind       string  `parquet:"kind"`
	Label      string  `parquet:"label"`
	Start      string  `parquet:"start"`
	End        string  `parquet:"end"`
	DaysSupply *int32  `parquet:"days_supply,optional"`
	Provider   *string `parquet:"provider,optional"`
	Code       *string `parquet:"code,optional"`
	Charged    *string `parquet:"charged,optional"`
	Paid       *string `parquet:"paid,optional"`
}

// Rows flattens doc into rows tagged with source.
func Rows(source string, doc *claims.TimelineDocument) []Row {
	rows := make([]Row, 0, len(doc.Items))
	for _, it := range doc.Items {
		r := Row{
			Source: source,
			ID:     it.ID,
			Kind:   string(it.Kind),
			Label:  it.Label,
			Start:  it.Interval.Start.UTC().Format(dateLayout),
			End:    it.Interval.End.UTC().Format(dateLayout),
		}
		switch {
		case it.Attributes.Prescription != nil:
			rx := it.Attributes.Prescription
			days := int32(rx.DaysSupply)
			r.DaysSupply = &days
			r.Provider = known(rx.Prescriber)
			r.Code = known(rx.NDC)
			r.Paid = known(rx.Copay)
		case it.Attributes.Service != nil:
			svc := it.Attributes.Service
			r.Provider = known(svc.Provider)
			r.Code = known(svc.ProcedureCode)
			r.Charged = known(svc.ChargedAmount)
			r.Paid = known(svc.PaidAmount)
		}
		rows = append(rows, r)
	}
	return rows
}

func known(s string) *string {
	if s == "" || s == claims.Unknown {
		return nil
	}
	return &s
}

// Writer writes Rows to a Parquet file.
type Writer struct {
	file   afero.File
	writer *parquet.GenericWriter[Row]
	count  int
}

// NewWriter creates (or truncates) filename on fs.
func NewWriter(fs afero.Fs, filename string) (*Writer, error) {
	file, err := fs.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("export: create parquet file: %w", err)
	}
	writer := parquet.NewGenericWriter[Row](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("claimline", "1.0", ""),
	)
	return &Writer{file: file, writer: writer}, nil
}

// Write appends rows.
func (w *Writer) Write(rows []Row) (int, error) {
	n, err := w.writer.Write(rows)
	w.count += n
	if err != nil {
		return n, fmt.Errorf("export: write parquet rows: %w", err)
	}
	return n, nil
}

// Close flushes the final row group and closes the file.
func (w *Writer) Close() error {
	if err := w.writer.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("export: close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the total number of rows written.
func (w *Writer) Count() int { return w.count }
