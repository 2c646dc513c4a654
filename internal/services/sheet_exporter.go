package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/zecurx/api/internal/platform/config"
)

const sheetValueInputOption = "USER_ENTERED"

// SheetsExporter appends purchase rows to a Google Sheet using a service
// account. Operations works the internship onboarding roster out of this
// sheet, so rows mirror the columns they already use: date, name, email,
// phone, course, price, payment id.
type SheetsExporter struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	writeRange    string
}

// NewSheetsExporter builds the exporter from service-account credentials.
func NewSheetsExporter(ctx context.Context, cfg config.SheetsConfig) (*SheetsExporter, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	if cfg.CredentialsJSON == "" {
		return nil, errors.New("sheets: service-account credentials are required")
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: build service: %w", err)
	}

	writeRange := cfg.Range
	if writeRange == "" {
		writeRange = "Sheet1!A:G"
	}
	return &SheetsExporter{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		writeRange:    writeRange,
	}, nil
}

// ExportPurchase implements PurchaseExporter.
func (e *SheetsExporter) ExportPurchase(ctx context.Context, record PurchaseRecord) error {
	row := []interface{}{
		record.Date.UTC().Format(time.RFC3339),
		record.Name,
		record.Email,
		record.Phone,
		record.ItemName,
		record.Amount,
		record.PaymentID,
	}

	_, err := e.values.Append(e.spreadsheetID, e.writeRange, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption(sheetValueInputOption).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: append purchase row for %s: %w", record.PaymentID, err)
	}
	return nil
}

// NopPurchaseExporter drops all rows; used when export is disabled and in tests.
type NopPurchaseExporter struct{}

// ExportPurchase implements PurchaseExporter.
func (NopPurchaseExporter) ExportPurchase(context.Context, PurchaseRecord) error { return nil }
