package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"whomst/internal/core"
	"whomst/internal/log"
	ports "whomst/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Header is written to row 1 of an empty sheet. Column A holds the entry
// id, which is how rows are found again.
var Header = []any{"ts", "date", "whomst", "tag", "amount", "notes", "date_override", "valid"}

const validColumn = "H"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	entriesSheet  string
}

// Ensure interface conformance
var (
	_ ports.EntryMirror = (*Client)(nil)
	_ ports.MirrorIndex = (*Client)(nil)
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing service. An empty sheet name means "Entries".
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Entries"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		entriesSheet:  sheetName,
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials", log.FieldComponent, log.ComponentSheets)
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file",
			log.FieldComponent, log.ComponentSheets,
			"path", cfg.CredentialsFile)
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// AppendEntry writes rec to the first free row. If a row with the same id
// already exists its reference is returned and nothing is written.
func (c *Client) AppendEntry(ctx context.Context, rec core.Record) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if !core.ValidID(rec.TS) {
		return "", fmt.Errorf("append entry: invalid id %q", rec.TS)
	}

	ids, err := c.readIDs(ctx)
	if err != nil {
		return "", err
	}
	if row := rowOf(ids, rec.TS); row > 0 {
		return c.rowRef(row), nil
	}

	nextRow := len(ids) + 1
	if len(ids) == 0 {
		if err := c.update(ctx, fmt.Sprintf("%s!A1:H1", c.entriesSheet), Header); err != nil {
			return "", fmt.Errorf("write header in sheet %s: %w", c.entriesSheet, err)
		}
		nextRow = 2
	}

	rng := fmt.Sprintf("%s!A%d:H%d", c.entriesSheet, nextRow, nextRow)
	if err := c.update(ctx, rng, rowValues(rec)); err != nil {
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return c.rowRef(nextRow), nil
}

// MarkRemoved flips the valid column of the row holding id.
func (c *Client) MarkRemoved(ctx context.Context, id string) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	ids, err := c.readIDs(ctx)
	if err != nil {
		return "", err
	}
	row := rowOf(ids, id)
	if row == 0 {
		return "", fmt.Errorf("mark removed %q: %w", id, ports.ErrNotMirrored)
	}
	rng := fmt.Sprintf("%s!%s%d", c.entriesSheet, validColumn, row)
	if err := c.update(ctx, rng, []any{"false"}); err != nil {
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return c.rowRef(row), nil
}

// MirroredIDs returns every id found in column A, header excluded.
func (c *Client) MirroredIDs(ctx context.Context) (map[string]struct{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	ids, err := c.readIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if core.ValidID(id) {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// readIDs returns column A, one string per sheet row.
func (c *Client) readIDs(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", c.entriesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
	}
	return out, nil
}

// RAW keeps ids and amounts as typed; USER_ENTERED would turn ids into
// floats and drop trailing zeros.
func (c *Client) update(ctx context.Context, rng string, row []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (c *Client) rowRef(row int) string {
	return fmt.Sprintf("%s!A%d:H%d", c.entriesSheet, row, row)
}

func rowValues(rec core.Record) []any {
	date := ""
	if eff, err := core.EffectiveDate(rec.TS, rec.DateOverride); err == nil {
		date = eff.Format(core.DisplayLayout)
	}
	return []any{rec.TS, date, rec.Whomst, rec.Tag, rec.Amount, rec.Notes, rec.DateOverride, fmt.Sprint(rec.Valid)}
}

// rowOf returns the 1-based row holding id, or 0.
func rowOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i + 1
		}
	}
	return 0
}
