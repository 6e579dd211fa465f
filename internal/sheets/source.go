package sheets

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// DefaultExportBaseURL hosts public spreadsheet exports.
const DefaultExportBaseURL = "https://docs.google.com"

// APIRange is the A1 range read through the Sheets API.
const APIRange = "A1:ZZ5000"

// Source fetches a sheet as a table whose first row holds the headers.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([][]string, error)
}

// Error wraps a fetch or parse failure with an operator-facing hint.
type Error struct {
	Hint string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNotConfigured is returned when no spreadsheet is configured.
var ErrNotConfigured = errors.New("sheet source is not configured")

func withHint(err error, hint string) error {
	return &Error{Hint: hint, Err: err}
}

// HintFor returns the hint attached to err, if any.
func HintFor(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Hint
	}
	return ""
}

// ExportConfig configures an ExportSource.
type ExportConfig struct {
	SpreadsheetID string
	SheetName     string
	// URL overrides the export URL built from SpreadsheetID and SheetName.
	URL     string
	Format  Format
	BaseURL string
	Timeout time.Duration
}

// ExportSource downloads a public CSV, GViz, or HTML export.
type ExportSource struct {
	client *resty.Client
	url    string
	format Format
}

// NewExportSource builds an ExportSource from cfg.
func NewExportSource(cfg ExportConfig) (*ExportSource, error) {
	target := cfg.URL
	if target == "" {
		if cfg.SpreadsheetID == "" {
			return nil, withHint(ErrNotConfigured, "set GOOGLE_SHEETS_SPREADSHEET_ID or sheets.url")
		}
		if cfg.Format == "" {
			cfg.Format = FormatCSV
		}
		target = ExportURL(cfg.BaseURL, cfg.SpreadsheetID, cfg.SheetName, cfg.Format)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ExportSource{
		client: resty.New().SetTimeout(cfg.Timeout),
		url:    target,
		format: cfg.Format,
	}, nil
}

// ExportURL builds the gviz export URL for a sheet tab.
func ExportURL(baseURL, spreadsheetID, sheetName string, format Format) string {
	if baseURL == "" {
		baseURL = DefaultExportBaseURL
	}
	out := "csv"
	switch format {
	case FormatGViz:
		out = "json"
	case FormatHTML:
		out = "html"
	}
	q := url.Values{}
	q.Set("tqx", "out:"+out)
	if sheetName != "" {
		q.Set("sheet", sheetName)
	}
	return fmt.Sprintf("%s/spreadsheets/d/%s/gviz/tq?%s",
		strings.TrimRight(baseURL, "/"), url.PathEscape(spreadsheetID), q.Encode())
}

// Name identifies the source in metrics.
func (s *ExportSource) Name() string {
	return "export"
}

// URL returns the export URL being fetched.
func (s *ExportSource) URL() string {
	return s.url
}

// Fetch downloads and parses the export.
func (s *ExportSource) Fetch(ctx context.Context) ([][]string, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, withHint(fmt.Errorf("fetch sheet export: %w", err), "check network access to the spreadsheet host")
	}
	if resp.IsError() {
		hint := "check the spreadsheet id and sheet name"
		if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
			hint = "share the sheet as 'Anyone with the link can view' or publish it to the web"
		}
		return nil, withHint(fmt.Errorf("fetch sheet export: status %d", resp.StatusCode()), hint)
	}

	body := resp.Body()
	format := s.format
	if format == "" {
		format = DetectFormat(resp.Header().Get("Content-Type"), body)
	}
	if format == FormatCSV && DetectFormat(resp.Header().Get("Content-Type"), body) == FormatHTML {
		// Published pubhtml pages carry the data as a table; a private sheet
		// answers with a sign-in page that has none.
		if table, err := ParseHTML(body); err == nil {
			return table, nil
		}
		return nil, withHint(errors.New("sheet export returned html instead of csv"),
			"share the sheet as 'Anyone with the link can view' or publish it to the web")
	}
	table, err := Parse(format, body)
	if err != nil {
		return nil, withHint(err, "check sheets.format matches the export (csv, gviz, html)")
	}
	return table, nil
}

// APISource reads values through the Google Sheets API v4.
type APISource struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	readRange     string
}

// NewAPISource authenticates with a service account JSON document, given raw or base64 encoded.
func NewAPISource(ctx context.Context, spreadsheetID, sheetName, serviceAccount string, opts ...option.ClientOption) (*APISource, error) {
	if spreadsheetID == "" {
		return nil, withHint(ErrNotConfigured, "set GOOGLE_SHEETS_SPREADSHEET_ID")
	}
	if serviceAccount != "" {
		creds, err := DecodeServiceAccount(serviceAccount)
		if err != nil {
			return nil, withHint(err, "GOOGLE_SERVICE_ACCOUNT_JSON must be JSON or base64 JSON")
		}
		opts = append([]option.ClientOption{
			option.WithCredentialsJSON(creds),
			option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope),
		}, opts...)
	}
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, withHint(fmt.Errorf("create sheets service: %w", err), "check the service account credentials")
	}
	return NewAPISourceWithService(svc, spreadsheetID, sheetName), nil
}

// NewAPISourceWithService wraps an existing Sheets service.
func NewAPISourceWithService(svc *sheetsapi.Service, spreadsheetID, sheetName string) *APISource {
	readRange := APIRange
	if sheetName != "" {
		readRange = sheetName + "!" + APIRange
	}
	return &APISource{svc: svc, spreadsheetID: spreadsheetID, readRange: readRange}
}

// Name identifies the source in metrics.
func (s *APISource) Name() string {
	return "api"
}

// Fetch reads the configured range.
func (s *APISource) Fetch(ctx context.Context) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, withHint(fmt.Errorf("read sheet values: %w", err),
			"share the sheet with the service account email and check the sheet name")
	}
	table := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = stringify(v)
		}
		table = append(table, cells)
	}
	return table, nil
}

// DecodeServiceAccount accepts raw JSON or base64-encoded JSON.
func DecodeServiceAccount(raw string) ([]byte, error) {
	trimmed := []byte(strings.TrimSpace(raw))
	if json.Valid(trimmed) {
		return trimmed, nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding} {
		decoded, err := enc.DecodeString(string(trimmed))
		if err != nil {
			continue
		}
		decoded = bytes.TrimSpace(decoded)
		if json.Valid(decoded) {
			return decoded, nil
		}
	}
	return nil, errors.New("service account is neither JSON nor base64 JSON")
}
