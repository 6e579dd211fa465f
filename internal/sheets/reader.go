package sheets

import (
	"context"

	"go.uber.org/zap"

	"github.com/bossmind/videomaker/internal/metrics"
)

// QueueOptions controls Reader.Queue.
type QueueOptions struct {
	// All returns every non-empty row instead of only ready ones.
	All bool
}

// Reader reads task rows from a Source.
type Reader struct {
	source      Source
	defaults    Defaults
	readyStatus string
	logger      *zap.Logger
}

// NewReader constructs a Reader. readyStatus defaults to "ready".
func NewReader(source Source, defaults Defaults, readyStatus string, logger *zap.Logger) *Reader {
	if readyStatus == "" {
		readyStatus = "ready"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{source: source, defaults: defaults, readyStatus: readyStatus, logger: logger}
}

// Queue fetches the sheet and returns its rows, ready ones only unless opts.All.
func (r *Reader) Queue(ctx context.Context, opts QueueOptions) ([]Row, error) {
	if r.source == nil {
		return nil, withHint(ErrNotConfigured, "set GOOGLE_SHEETS_SPREADSHEET_ID or sheets.url")
	}
	table, err := r.source.Fetch(ctx)
	metrics.ObserveSheetFetch(r.source.Name(), err)
	if err != nil {
		r.logger.Warn("sheet fetch failed", zap.String("source", r.source.Name()), zap.Error(err))
		return nil, err
	}
	rows := Rows(table, r.defaults)
	if !opts.All {
		rows = Filter(rows, r.readyStatus)
	}
	r.logger.Debug("sheet read", zap.String("source", r.source.Name()), zap.Int("rows", len(rows)))
	return rows, nil
}

// Next returns the first ready row, or nil when none is waiting.
func (r *Reader) Next(ctx context.Context) (*Row, error) {
	rows, err := r.Queue(ctx, QueueOptions{})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &row, nil
}
