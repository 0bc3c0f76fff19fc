package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/in"
	"mailparser_server/core/service/export"
	"mailparser_server/pkg/logger"

	"github.com/goccy/go-json"
)

// RunParse parses each .eml file and writes one indented JSON result per
// file to w. A file that fails is logged and skipped; the error reports
// how many failed.
func RunParse(ctx context.Context, svc in.ParseService, paths []string, w io.Writer) error {
	if len(paths) == 0 {
		return fmt.Errorf("no .eml files given")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	failed := 0
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.WithError(err).Error("Failed to read %s", path)
			failed++
			continue
		}

		result, err := svc.HandleRaw(ctx, raw, domain.SourceFile, filepath.Base(path))
		if err != nil {
			logger.WithError(err).Error("Failed to parse %s", path)
			failed++
			continue
		}
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

// RunExport projects every result file in dir into a CSV written to w.
// columnsFile may be empty to use the default columns.
func RunExport(dir, columnsFile string, w io.Writer) error {
	cols := export.DefaultColumns
	if columnsFile != "" {
		loaded, err := export.LoadColumns(columnsFile)
		if err != nil {
			return err
		}
		cols = loaded
	}

	records, err := export.ReadDir(dir, func(path string, err error) {
		logger.WithError(err).Warn("Skipping %s", path)
	})
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}

	if err := export.WriteCSV(w, records, cols, export.DefaultJoinSep); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	logger.Info("Exported %d records", len(records))
	return nil
}
