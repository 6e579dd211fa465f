package sheets

import (
	"regexp"
	"strings"

	"github.com/bossmind/videomaker/internal/video"
)

// Canonical column names recognized in the header row.
const (
	ColumnTitle      = "title"
	ColumnPrompt     = "prompt"
	ColumnLanguage   = "language"
	ColumnVoice      = "voice"
	ColumnStatus     = "status"
	ColumnYouTubeURL = "youtube_url"
	ColumnVideoURL   = "video_url"
)

var aliases = map[string]string{
	"topic":  ColumnTitle,
	"lang":   ColumnLanguage,
	"text":   ColumnPrompt,
	"script": ColumnPrompt,
	"state":  ColumnStatus,
}

var whitespace = regexp.MustCompile(`\s+`)

// Defaults fill in language and voice when a row leaves them blank.
type Defaults struct {
	Languages []string
	Voices    map[string]string
}

// Language returns the first default language, or "en".
func (d Defaults) Language() string {
	if len(d.Languages) > 0 && d.Languages[0] != "" {
		return d.Languages[0]
	}
	return "en"
}

// Row is one task descriptor read from the sheet.
type Row struct {
	Sheet      video.SheetRef    `json:"sheet"`
	Title      string            `json:"title"`
	Prompt     string            `json:"prompt"`
	Language   string            `json:"language"`
	Voice      string            `json:"voice"`
	Status     string            `json:"status,omitempty"`
	YouTubeURL string            `json:"youtubeUrl,omitempty"`
	VideoURL   string            `json:"videoUrl,omitempty"`
	Raw        map[string]string `json:"raw"`

	cols columns
}

type columns struct {
	status, youtube, video bool
}

// JobRequest converts the row into a job creation request. Rows without a
// prompt use their title.
func (r Row) JobRequest() video.JobRequest {
	ref := r.Sheet
	prompt := r.Prompt
	if prompt == "" {
		prompt = r.Title
	}
	return video.JobRequest{
		Prompt:   prompt,
		Title:    r.Title,
		Language: r.Language,
		Voice:    r.Voice,
		Meta:     map[string]any{"source": "sheet", "sheetRow": r.Sheet.Row},
		Source:   &ref,
	}
}

// NormalizeHeader trims, lower-cases, and joins whitespace with underscores.
func NormalizeHeader(h string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), "_")
}

func canonical(h string) string {
	if c, ok := aliases[h]; ok {
		return c
	}
	return h
}

// Rows maps a parsed table to rows. The first record is the header row;
// rows with every cell blank are dropped.
func Rows(table [][]string, d Defaults) []Row {
	out := []Row{}
	if len(table) == 0 {
		return out
	}

	headers := make([]string, len(table[0]))
	index := map[string]int{}
	for i, h := range table[0] {
		headers[i] = NormalizeHeader(h)
		if headers[i] == "" {
			continue
		}
		key := canonical(headers[i])
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}
	cell := func(record []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	_, hasStatus := index[ColumnStatus]
	_, hasYouTube := index[ColumnYouTubeURL]
	_, hasVideo := index[ColumnVideoURL]

	for r, record := range table[1:] {
		if blank(record) {
			continue
		}
		raw := make(map[string]string, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(record) {
				raw[h] = record[i]
			} else {
				raw[h] = ""
			}
		}

		language := cell(record, ColumnLanguage)
		if language == "" {
			language = d.Language()
		}
		voice := cell(record, ColumnVoice)
		if voice == "" {
			voice = d.Voices[strings.ToLower(language)]
		}

		out = append(out, Row{
			Sheet:      video.SheetRef{Row: r + 2},
			Title:      cell(record, ColumnTitle),
			Prompt:     cell(record, ColumnPrompt),
			Language:   language,
			Voice:      voice,
			Status:     cell(record, ColumnStatus),
			YouTubeURL: cell(record, ColumnYouTubeURL),
			VideoURL:   cell(record, ColumnVideoURL),
			Raw:        raw,
			cols:       columns{status: hasStatus, youtube: hasYouTube, video: hasVideo},
		})
	}
	return out
}

// Ready reports whether the row is waiting to be produced. With a status
// column the status must equal readyStatus; otherwise a blank youtube_url or
// video_url marks the row ready, and every row is ready when neither exists.
func (r Row) Ready(readyStatus string) bool {
	if r.cols.status {
		return strings.EqualFold(strings.TrimSpace(r.Status), strings.TrimSpace(readyStatus))
	}
	if !r.cols.youtube && !r.cols.video {
		return true
	}
	return (r.cols.youtube && r.YouTubeURL == "") || (r.cols.video && r.VideoURL == "")
}

// Filter keeps the rows that are Ready.
func Filter(rows []Row, readyStatus string) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Ready(readyStatus) {
			out = append(out, r)
		}
	}
	return out
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
