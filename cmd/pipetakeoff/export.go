package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
	"github.com/joseph-ayodele/pipetakeoff/internal/export"
)

// takeoffFile accepts both analyze output and export request bodies.
type takeoffFile struct {
	Materials []entity.MaterialRecord `json:"materials"`
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		format  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "export <materials.json>...",
		Short: "Export one or more takeoff JSON files",
		Long: `Merges the materials of every input file, in order, and writes them as a
CSV, Excel or Parquet takeoff.`,
		Example: `  pipetakeoff export page1.json page2.json --format excel
  pipetakeoff export page1.json --format csv --out takeoff.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			var records []entity.MaterialRecord
			for _, path := range args {
				b, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				var tf takeoffFile
				if err := json.Unmarshal(b, &tf); err != nil {
					return fmt.Errorf("decode %s: %w", path, err)
				}
				records = append(records, tf.Materials...)
			}

			doc, err := export.NewService(opts.logger).Export(cmd.Context(), f, records)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = doc.FileName(time.Now())
			}
			if err := os.WriteFile(outPath, doc.Body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d materials -> %s\n", len(records), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv, excel (xlsx) or parquet")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default takeoff-<timestamp>.<ext>)")

	return cmd
}
