package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"

	"golang.org/x/oauth2"
	gauth "golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultLedgerSheet = "Ledger"
	defaultRunsSheet   = "Runs"
	lastColumn         = "H"
)

// Columns of a ledger sheet, A to H.
var ledgerHeader = []any{"ID", "Date", "Kind", "Category", "Amount", "Memo", "Owner", "Rule"}

var runsHeader = []any{"At", "Owner", "Month", "Applied", "Duplicates", "Failures"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base name without year (e.g. "Ledger"); entries land in "<year> Ledger".
	ledgerBase string
	runsSheet  string

	mu     sync.Mutex
	sheets map[string]int64 // title -> sheet id
}

// Ensure interface conformance
var (
	_ ports.EntryMirror = (*Client)(nil)
	_ ports.RunRecorder = (*Client)(nil)
)

type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Ledger"),
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS for auth.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID:      os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:          os.Getenv("GOOGLE_SHEET_NAME"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
}

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	ledgerBase := strings.TrimSpace(opts.SheetName)
	if ledgerBase == "" {
		ledgerBase = defaultLedgerSheet
	}

	credentials, err := loadCredentials(ctx, opts)
	if err != nil {
		return nil, err
	}

	creds, err := gauth.CredentialsFromJSON(ctx, credentials, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	// oauth2 layers the token source over the pooled transport
	httpCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauth2.NewClient(httpCtx, creds.TokenSource)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID, "sheet", ledgerBase)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ledgerBase:    ledgerBase,
		runsSheet:     defaultRunsSheet,
		sheets:        make(map[string]int64),
	}, nil
}

// loadCredentials prefers inline JSON, then a file path, then
// GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(opts.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(opts.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and keep-alive.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// UpsertEntry writes e to the sheet for its year. An existing row with the
// same id is overwritten in place.
func (c *Client) UpsertEntry(ctx context.Context, e core.LedgerEntry) (string, error) {
	if e.ID <= 0 {
		return "", fmt.Errorf("%w: entry id is required", core.ErrMalformedRow)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.ledgerBase, e.Date.Year())
	if err := c.ensureSheet(ctx, sheet, ledgerHeader); err != nil {
		return "", err
	}

	ids, err := c.readColumnA(ctx, sheet)
	if err != nil {
		return "", err
	}
	row := findRow(ids, e.ID)
	if row == 0 {
		row = len(ids) + 1
	}

	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, row, lastColumn, row)
	vr := &gsheet.ValueRange{Values: [][]any{rowFromEntry(e)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", classifyError(fmt.Errorf("update %s: %w", rng, err))
	}

	return rng, nil
}

// DeleteEntry removes the row for id from every ledger year sheet. A
// missing row is not an error.
func (c *Client) DeleteEntry(ctx context.Context, ownerID string, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	titles, err := c.loadSheets(ctx)
	if err != nil {
		return err
	}

	for title, sheetID := range titles {
		if !isLedgerSheet(title, c.ledgerBase) {
			continue
		}
		ids, err := c.readColumnA(ctx, title)
		if err != nil {
			return err
		}
		row := findRow(ids, id)
		if row == 0 {
			continue
		}

		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "ROWS",
				StartIndex: int64(row - 1),
				EndIndex:   int64(row),
			}},
		}}}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return classifyError(fmt.Errorf("delete row %d in %s: %w", row, title, err))
		}
		slog.InfoContext(ctx, "Deleted ledger row", "sheet", title, "row", row, "entry_id", id, "owner_id", ownerID)
		return nil
	}

	slog.DebugContext(ctx, "Ledger row already absent", "entry_id", id)
	return nil
}

// RecordRun appends a row to the runs sheet.
func (c *Client) RecordRun(ctx context.Context, run ports.Run) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx, c.runsSheet, runsHeader); err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{{
		run.At.UTC().Format(time.RFC3339),
		run.OwnerID,
		run.Month.String(),
		run.Applied,
		run.Duplicates,
		run.Failures,
	}}}
	rng := fmt.Sprintf("%s!A:F", c.runsSheet)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return classifyError(fmt.Errorf("append %s: %w", rng, err))
	}
	return nil
}

func (c *Client) readColumnA(ctx context.Context, sheet string) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classifyError(fmt.Errorf("read %s: %w", rng, err))
	}
	out := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return out, nil
}

// loadSheets refreshes the title -> sheet id map.
func (c *Client) loadSheets(ctx context.Context) (map[string]int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, classifyError(fmt.Errorf("get spreadsheet: %w", err))
	}
	titles := make(map[string]int64, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles[s.Properties.Title] = s.Properties.SheetId
		}
	}

	c.mu.Lock()
	c.sheets = titles
	c.mu.Unlock()
	return titles, nil
}

// ensureSheet creates title with a header row when it does not exist yet.
func (c *Client) ensureSheet(ctx context.Context, title string, header []any) error {
	c.mu.Lock()
	_, known := c.sheets[title]
	c.mu.Unlock()
	if known {
		return nil
	}

	titles, err := c.loadSheets(ctx)
	if err != nil {
		return err
	}
	if _, ok := titles[title]; ok {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return classifyError(fmt.Errorf("add sheet %s: %w", title, err))
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		c.mu.Lock()
		c.sheets[title] = resp.Replies[0].AddSheet.Properties.SheetId
		c.mu.Unlock()
	}

	rng := fmt.Sprintf("%s!A1", title)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return classifyError(fmt.Errorf("write header %s: %w", title, err))
	}
	slog.InfoContext(ctx, "Created sheet", "sheet", title)
	return nil
}

func rowFromEntry(e core.LedgerEntry) []any {
	rule := ""
	if e.SourceRuleID != nil {
		rule = strconv.FormatInt(*e.SourceRuleID, 10)
	}
	return []any{
		strconv.FormatInt(e.ID, 10),
		e.Date.String(),
		string(e.Kind),
		e.Category,
		e.Amount.Amount,
		e.Memo,
		e.OwnerID,
		rule,
	}
}

// findRow returns the 1-based row holding id in column A, or 0.
func findRow(ids []string, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, v := range ids {
		if v == want {
			return i + 1
		}
	}
	return 0
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// isLedgerSheet reports whether title is "<year> <base>".
func isLedgerSheet(title, base string) bool {
	if len(title) != len(base)+5 || title[4] != ' ' || title[5:] != base {
		return false
	}
	_, err := strconv.Atoi(title[:4])
	return err == nil
}

// classifyError maps Sheets API status codes onto the core failure kinds.
func classifyError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
		}
		return err
	}
	switch {
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %w", core.ErrPermissionDenied, err)
	case gerr.Code == http.StatusBadRequest || gerr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", core.ErrMalformedRow, err)
	case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	default:
		return err
	}
}
