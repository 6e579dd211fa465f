package sheets

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestExportURL(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"https://docs.google.com/spreadsheets/d/abc/gviz/tq?sheet=Video+Queue&tqx=out%3Acsv",
		ExportURL("", "abc", "Video Queue", FormatCSV))
	require.Equal(t,
		"http://local/spreadsheets/d/abc/gviz/tq?tqx=out%3Ajson",
		ExportURL("http://local/", "abc", "", FormatGViz))
	require.Contains(t, ExportURL("", "abc", "", FormatHTML), "tqx=out%3Ahtml")
}

func TestNewExportSourceRequiresSpreadsheet(t *testing.T) {
	t.Parallel()

	_, err := NewExportSource(ExportConfig{})
	require.ErrorIs(t, err, ErrNotConfigured)
	require.NotEmpty(t, HintFor(err))
}

func TestExportSourceFetchCSV(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/spreadsheets/d/sheet-1/gviz/tq", r.URL.Path)
		require.Equal(t, "out:csv", r.URL.Query().Get("tqx"))
		require.Equal(t, "Queue", r.URL.Query().Get("sheet"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("title,prompt,status\nMoon,the moon,ready\n"))
	}))
	defer srv.Close()

	src, err := NewExportSource(ExportConfig{
		SpreadsheetID: "sheet-1",
		SheetName:     "Queue",
		Format:        FormatCSV,
		BaseURL:       srv.URL,
	})
	require.NoError(t, err)
	require.Equal(t, "export", src.Name())

	table, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, [][]string{{"title", "prompt", "status"}, {"Moon", "the moon", "ready"}}, table)
}

func TestExportSourceDetectsFormatForExplicitURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<table><tr><td>title</td></tr><tr><td>A</td></tr></table>"))
	}))
	defer srv.Close()

	src, err := NewExportSource(ExportConfig{URL: srv.URL + "/pubhtml"})
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/pubhtml", src.URL())

	table, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, [][]string{{"title"}, {"A"}}, table)
}

func TestExportSourceCSVFormatAcceptsPublishedTable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><table><tr><td>title</td></tr><tr><td>A</td></tr></table></html>"))
	}))
	defer srv.Close()

	src, err := NewExportSource(ExportConfig{URL: srv.URL + "/pubhtml", Format: FormatCSV})
	require.NoError(t, err)

	table, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, [][]string{{"title"}, {"A"}}, table)
}

func TestExportSourceErrorsCarryHints(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "private") {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>Sign in</html>"))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src, err := NewExportSource(ExportConfig{SpreadsheetID: "x", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	require.ErrorContains(t, err, "status 403")
	require.Contains(t, HintFor(err), "Anyone with the link")

	src, err = NewExportSource(ExportConfig{SpreadsheetID: "x", SheetName: "private", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = src.Fetch(context.Background())
	require.ErrorContains(t, err, "html instead of csv")
	require.NotEmpty(t, HintFor(err))
}

func TestAPISourceFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/"), r.URL.Path)
		require.Contains(t, r.URL.Path, "Queue!A1:ZZ5000")
		require.Equal(t, "UNFORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Queue!A1:ZZ5000","majorDimension":"ROWS","values":[["Title","Count","Done"],["Moon",3,true]]}`))
	}))
	defer srv.Close()

	src, err := NewAPISource(context.Background(), "sheet-1", "Queue", "",
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	require.Equal(t, "api", src.Name())

	table, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, [][]string{{"Title", "Count", "Done"}, {"Moon", "3", "true"}}, table)
}

func TestAPISourceRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewAPISource(context.Background(), "", "Queue", "")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewAPISource(context.Background(), "sheet-1", "Queue", "not-json")
	require.Error(t, err)
	require.Contains(t, HintFor(err), "GOOGLE_SERVICE_ACCOUNT_JSON")
}

func TestDecodeServiceAccount(t *testing.T) {
	t.Parallel()

	doc := `{"type":"service_account","client_email":"bot@example.iam.gserviceaccount.com"}`
	got, err := DecodeServiceAccount("  " + doc + "\n")
	require.NoError(t, err)
	require.JSONEq(t, doc, string(got))

	got, err = DecodeServiceAccount(base64.StdEncoding.EncodeToString([]byte(doc)))
	require.NoError(t, err)
	require.JSONEq(t, doc, string(got))

	_, err = DecodeServiceAccount("%%%")
	require.Error(t, err)
}
