// Package sheets appends finished intake records to a Google Sheet.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"resale-bot/api/internal/catalog"
)

type Writer struct {
	srv     *sheetsapi.Service
	sheetID string
}

// NewWriter builds a writer authenticated with a service account key file.
func NewWriter(ctx context.Context, credentialsPath, sheetID string) (*Writer, error) {
	srv, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Writer{srv: srv, sheetID: sheetID}, nil
}

// Append writes the record's row after the sheet's existing data. The
// column order is a stable contract with the review spreadsheet.
func (w *Writer) Append(ctx context.Context, rec catalog.Record) error {
	row := rec.Row()
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{values}}
	_, err := w.srv.Spreadsheets.Values.Append(w.sheetID, "A1", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append: %w", err)
	}
	return nil
}
