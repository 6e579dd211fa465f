package sheets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testDefaults = Defaults{
	Languages: []string{"ar", "en"},
	Voices:    map[string]string{"ar": "onyx", "fr": "nova"},
}

func TestRowsHeaderOnlyIsEmpty(t *testing.T) {
	t.Parallel()

	table, err := ParseCSV([]byte("Title,Prompt,Status\n"))
	require.NoError(t, err)
	rows := Rows(table, testDefaults)
	require.NotNil(t, rows)
	require.Empty(t, rows)
	require.Empty(t, Filter(rows, "ready"))

	require.Empty(t, Rows(nil, testDefaults))
}

func TestRowsNormalizesHeadersAndFallbacks(t *testing.T) {
	t.Parallel()

	table := [][]string{
		{" Topic ", "Script", "Lang", "Voice", "State", "Extra  Notes"},
		{"Moon", "the moon landing", "", "", "Ready", "n1"},
		{"", "", "", "", "", ""},
		{"Paris", "city of light", "fr", "", "done"},
	}
	rows := Rows(table, testDefaults)
	require.Len(t, rows, 2)

	first := rows[0]
	require.Equal(t, 2, first.Sheet.Row)
	require.Equal(t, "Moon", first.Title)
	require.Equal(t, "the moon landing", first.Prompt)
	require.Equal(t, "ar", first.Language)
	require.Equal(t, "onyx", first.Voice)
	require.Equal(t, "Ready", first.Status)
	require.Equal(t, "n1", first.Raw["extra_notes"])
	require.Contains(t, first.Raw, "topic")

	second := rows[1]
	require.Equal(t, 4, second.Sheet.Row)
	require.Equal(t, "fr", second.Language)
	require.Equal(t, "nova", second.Voice)
	require.Equal(t, "", second.Raw["extra_notes"])
}

func TestLanguageDefaultsToEnglish(t *testing.T) {
	t.Parallel()

	rows := Rows([][]string{{"title"}, {"x"}}, Defaults{})
	require.Len(t, rows, 1)
	require.Equal(t, "en", rows[0].Language)
	require.Equal(t, "", rows[0].Voice)
}

func TestFilterByStatus(t *testing.T) {
	t.Parallel()

	rows := Rows([][]string{
		{"title", "status", "youtube_url"},
		{"a", "ready", "https://youtu.be/x"},
		{"b", "processing", ""},
		{"c", " READY ", ""},
	}, testDefaults)
	ready := Filter(rows, "ready")
	require.Len(t, ready, 2)
	require.Equal(t, "a", ready[0].Title)
	require.Equal(t, "c", ready[1].Title)
}

func TestFilterByEmptyLinks(t *testing.T) {
	t.Parallel()

	rows := Rows([][]string{
		{"title", "youtube_url", "video_url"},
		{"a", "https://youtu.be/x", "https://cdn/x.mp4"},
		{"b", "", "https://cdn/b.mp4"},
		{"c", "https://youtu.be/c", ""},
	}, testDefaults)
	ready := Filter(rows, "ready")
	require.Len(t, ready, 2)
	require.Equal(t, "b", ready[0].Title)
	require.Equal(t, "c", ready[1].Title)
}

func TestFilterWithoutMarkersKeepsAll(t *testing.T) {
	t.Parallel()

	rows := Rows([][]string{{"title", "prompt"}, {"a", "p"}, {"b", "q"}}, testDefaults)
	require.Len(t, Filter(rows, "ready"), 2)
}

func TestRowJobRequest(t *testing.T) {
	t.Parallel()

	rows := Rows([][]string{{"title", "prompt", "language"}, {"Moon", "the moon", "en"}}, testDefaults)
	req := rows[0].JobRequest()
	require.Equal(t, "the moon", req.Prompt)
	require.Equal(t, "Moon", req.Title)
	require.Equal(t, "en", req.Language)
	require.NotNil(t, req.Source)
	require.Equal(t, 2, req.Source.Row)
	require.Equal(t, "sheet", req.Meta["source"])

	untitled := Rows([][]string{{"title", "prompt"}, {"Only a title", ""}}, testDefaults)
	require.Equal(t, "Only a title", untitled[0].JobRequest().Prompt)
}

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	require.Equal(t, "youtube_url", NormalizeHeader("  YouTube   URL "))
	require.Equal(t, "", NormalizeHeader("   "))
}
