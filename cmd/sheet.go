package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bossmind/videomaker/internal/server"
	"github.com/bossmind/videomaker/internal/sheets"
)

func newSheetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Inspect the task spreadsheet",
	}
	cmd.AddCommand(newSheetRowsCmd(), newSheetNextCmd())
	return cmd
}

func newSheetRowsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Print the rows waiting to be produced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader, logger, err := sheetReader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rows, err := reader.Queue(cmd.Context(), sheets.QueueOptions{All: all})
			if err != nil {
				return sheetError(err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"count": len(rows), "rows": rows})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include rows that are not ready")
	return cmd
}

func newSheetNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Print the first row waiting to be produced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader, logger, err := sheetReader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			row, err := reader.Next(cmd.Context())
			if err != nil {
				return sheetError(err)
			}
			if row == nil {
				_, err := fmt.Fprintln(cmd.ErrOrStderr(), "queue is empty")
				return err
			}
			return printJSON(cmd.OutOrStdout(), row)
		},
	}
}

func sheetReader(cmd *cobra.Command) (*sheets.Reader, *zap.Logger, error) {
	cfg, err := resolveConfig(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	logger, err := server.NewLogger(cfg.Logging, nil)
	if err != nil {
		return nil, nil, err
	}
	reader, err := server.NewSheetReader(cmd.Context(), cfg, logger.Named("sheets"))
	if err != nil {
		return nil, nil, err
	}
	return reader, logger, nil
}

func sheetError(err error) error {
	if hint := sheets.HintFor(err); hint != "" {
		return fmt.Errorf("read sheet: %w (hint: %s)", err, hint)
	}
	return fmt.Errorf("read sheet: %w", err)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
