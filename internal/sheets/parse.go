// Package sheets turns spreadsheet exports into job descriptors.
package sheets

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Format names a spreadsheet export encoding.
type Format string

// Supported export formats.
const (
	FormatCSV  Format = "csv"
	FormatGViz Format = "gviz"
	FormatHTML Format = "html"
)

// ErrUnknownFormat is returned for unsupported export formats.
var ErrUnknownFormat = errors.New("unknown sheet format")

const (
	gvizMarker = "google.visualization.Query.setResponse("
	utf8BOM    = "\ufeff"
)

// ParseFormat maps a config string to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatGViz, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// DetectFormat guesses the encoding from a response content type and body.
func DetectFormat(contentType string, raw []byte) Format {
	ct := strings.ToLower(contentType)
	body := bytes.TrimSpace(bytes.TrimPrefix(raw, []byte(utf8BOM)))
	switch {
	case strings.Contains(ct, "text/html"), bytes.HasPrefix(body, []byte("<")):
		return FormatHTML
	case bytes.Contains(body, []byte(gvizMarker)), bytes.HasPrefix(body, []byte("{")):
		return FormatGViz
	default:
		return FormatCSV
	}
}

// Parse decodes raw with the given format. The first returned row holds the headers.
func Parse(format Format, raw []byte) ([][]string, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(raw)
	case FormatGViz:
		return ParseGViz(raw)
	case FormatHTML:
		return ParseHTML(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ParseCSV tokenizes a CSV export. Ragged rows and stray quotes are tolerated.
func ParseCSV(raw []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, []byte(utf8BOM))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}

type gvizResponse struct {
	Status string `json:"status"`
	Errors []struct {
		Message         string `json:"message"`
		DetailedMessage string `json:"detailed_message"`
	} `json:"errors"`
	Table struct {
		Cols []struct {
			Label string `json:"label"`
		} `json:"cols"`
		Rows []struct {
			C []*gvizCell `json:"c"`
		} `json:"rows"`
	} `json:"table"`
}

type gvizCell struct {
	V any    `json:"v"`
	F string `json:"f"`
}

// ParseGViz decodes a Google Visualization JSON response, with or without
// its JavaScript wrapper. Column labels become the header row; when every
// label is empty the first data row is treated as headers.
func ParseGViz(raw []byte) ([][]string, error) {
	body := bytes.TrimSpace(raw)
	if i := bytes.Index(body, []byte(gvizMarker)); i >= 0 {
		body = body[i+len(gvizMarker):]
		end := bytes.LastIndexByte(body, ')')
		if end < 0 {
			return nil, errors.New("parse gviz: unterminated response wrapper")
		}
		body = body[:end]
	}

	var resp gvizResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse gviz: %w", err)
	}
	if resp.Status == "error" {
		msg := "query failed"
		if len(resp.Errors) > 0 {
			msg = resp.Errors[0].Message
			if resp.Errors[0].DetailedMessage != "" {
				msg += ": " + resp.Errors[0].DetailedMessage
			}
		}
		return nil, fmt.Errorf("parse gviz: %s", msg)
	}

	width := len(resp.Table.Cols)
	out := make([][]string, 0, len(resp.Table.Rows)+1)
	headers := make([]string, width)
	labeled := false
	for i, col := range resp.Table.Cols {
		headers[i] = col.Label
		if strings.TrimSpace(col.Label) != "" {
			labeled = true
		}
	}
	if labeled {
		out = append(out, headers)
	}
	for _, row := range resp.Table.Rows {
		cells := make([]string, max(width, len(row.C)))
		for i, c := range row.C {
			cells[i] = c.text()
		}
		out = append(out, cells)
	}
	return out, nil
}

func (c *gvizCell) text() string {
	if c == nil {
		return ""
	}
	if c.F != "" {
		return c.F
	}
	return stringify(c.V)
}

// ParseHTML extracts the first table of an HTML export. Google's row
// number and column letter gutters are dropped.
func ParseHTML(raw []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, errors.New("parse html: no table found")
	}

	out := [][]string{}
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find(".column-headers-background").Length() > 0 || tr.HasClass("freezebar-cell") {
			return
		}
		cells := tr.ChildrenFiltered("td, th").
			Not(".row-headers-background, .row-header, .freezebar-cell, [class*='freezebar']")
		if cells.Length() == 0 {
			return
		}
		row := make([]string, 0, cells.Length())
		cells.Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.TrimSpace(cell.Text()))
		})
		out = append(out, row)
	})
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
