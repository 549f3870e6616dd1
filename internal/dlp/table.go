package dlp

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"cloudsamples/internal/apperrors"

	"cloud.google.com/go/dlp/apiv2/dlppb"
)

// ReadTable reads CSV data whose first record is the header and converts it
// into a DLP table. Every data row must have as many cells as the header.
func ReadTable(r io.Reader) (*dlppb.Table, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.Validation("input", "CSV input has no header row")
	}
	if err != nil {
		return nil, apperrors.Validation("input", fmt.Sprintf("invalid CSV header: %v", err))
	}

	table := &dlppb.Table{
		Headers: make([]*dlppb.FieldId, 0, len(header)),
	}
	for _, name := range header {
		table.Headers = append(table.Headers, &dlppb.FieldId{Name: name})
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Validation("input", fmt.Sprintf("invalid CSV row: %v", err))
		}
		row := &dlppb.Table_Row{Values: make([]*dlppb.Value, 0, len(record))}
		for _, cell := range record {
			row.Values = append(row.Values, &dlppb.Value{
				Type: &dlppb.Value_StringValue{StringValue: cell},
			})
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// WriteTable writes a DLP table as CSV: the header followed by one record per
// row, using the string form of each value.
func WriteTable(w io.Writer, table *dlppb.Table) error {
	writer := csv.NewWriter(w)

	header := make([]string, 0, len(table.GetHeaders()))
	for _, h := range table.GetHeaders() {
		header = append(header, h.GetName())
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range table.GetRows() {
		record := make([]string, 0, len(row.GetValues()))
		for _, v := range row.GetValues() {
			record = append(record, valueString(v))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// valueString renders a table cell. De-identified cells come back as strings,
// other kinds are formatted so they survive the CSV round trip.
func valueString(v *dlppb.Value) string {
	switch t := v.GetType().(type) {
	case *dlppb.Value_StringValue:
		return t.StringValue
	case *dlppb.Value_IntegerValue:
		return fmt.Sprintf("%d", t.IntegerValue)
	case *dlppb.Value_FloatValue:
		return fmt.Sprintf("%g", t.FloatValue)
	case *dlppb.Value_BooleanValue:
		return fmt.Sprintf("%t", t.BooleanValue)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
