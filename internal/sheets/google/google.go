package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "conti/internal/sheets"
)

const dateLayout = "2006-01-02 15:04:05"

var header = []any{"Date", "Account ID", "Account", "Transaction ID", "Type", "Description", "Value"}

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client mirrors ledgers into one sheet of a Google spreadsheet, one row per
// transaction.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	mu      sync.Mutex
	sheetID *int64
}

var _ ports.LedgerWriter = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Ledger"
	}

	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "sheet", sheet)

	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheet: sheet}, nil
}

// credentials resolves inline JSON first, then the configured file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func credentials(cfg Config) ([]byte, error) {
	if s := strings.TrimSpace(cfg.CredentialsJSON); s != "" {
		return []byte(s), nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

func (c *Client) AppendRow(ctx context.Context, row ports.LedgerRow) (string, error) {
	values, err := c.readColumn(ctx, "D")
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		if err := c.writeHeader(ctx); err != nil {
			return "", err
		}
	}
	if rows := matchingRows(values, 0, row.TransactionID); len(rows) > 0 {
		return fmt.Sprintf("%s!A%d:G%d", c.sheet, rows[0]+1, rows[0]+1), nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{rowValues(row)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.sheet+"!A:G", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return c.sheet, nil
}

func (c *Client) DeleteTransactionRow(ctx context.Context, txID string) error {
	values, err := c.readColumn(ctx, "D")
	if err != nil {
		return err
	}
	return c.deleteRows(ctx, matchingRows(values, 0, txID))
}

func (c *Client) DeleteAccountRows(ctx context.Context, accountID string) (int, error) {
	values, err := c.readColumn(ctx, "B")
	if err != nil {
		return 0, err
	}
	rows := matchingRows(values, 0, accountID)
	if err := c.deleteRows(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (c *Client) TransactionIDs(ctx context.Context) (map[string]struct{}, error) {
	values, err := c.readColumn(ctx, "D")
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(values))
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if id := strings.TrimSpace(fmt.Sprint(row[0])); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	vr := &gsheet.ValueRange{Values: [][]any{header}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.sheet+"!A1:G1", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header of %s: %w", c.sheet, err)
	}
	return nil
}

func (c *Client) readColumn(ctx context.Context, col string) ([][]any, error) {
	rng := fmt.Sprintf("%s!%s:%s", c.sheet, col, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) deleteRows(ctx context.Context, rows []int) error {
	if len(rows) == 0 {
		return nil
	}
	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: deleteRequests(sheetID, rows)}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete rows from %s: %w", c.sheet, err)
	}
	return nil
}

func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetID != nil {
		return *c.sheetID, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheet {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheet)
}

func rowValues(r ports.LedgerRow) []any {
	typ := r.Type
	if typ == "" {
		typ = "untyped"
	}
	return []any{
		r.CreatedAt.UTC().Format(dateLayout),
		r.AccountID,
		r.AccountName,
		r.TransactionID,
		typ,
		r.Description,
		r.Value.String(),
	}
}

// matchingRows returns the zero-based indexes of rows whose column col
// equals target. The header row never matches.
func matchingRows(values [][]any, col int, target string) []int {
	var out []int
	for i, row := range values {
		if i == 0 || len(row) <= col {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[col])) == target {
			out = append(out, i)
		}
	}
	return out
}

// deleteRequests deletes bottom-up so earlier indexes stay valid.
func deleteRequests(sheetID int64, rows []int) []*gsheet.Request {
	sorted := slices.Clone(rows)
	slices.Sort(sorted)
	slices.Reverse(sorted)

	reqs := make([]*gsheet.Request, 0, len(sorted))
	for _, r := range sorted {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(r),
					EndIndex:   int64(r + 1),
				},
			},
		})
	}
	return reqs
}
