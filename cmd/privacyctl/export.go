package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raaihank/asset-privacy/internal/export"
	"github.com/raaihank/asset-privacy/internal/privacy"
	"github.com/raaihank/asset-privacy/internal/service"
)

var (
	exportOut    string
	exportRedact bool
)

var exportCmd = &cobra.Command{
	Use:   "export RECORD_ID...",
	Short: "Write the mapping tables of records to a parquet audit file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(c *service.Components) error {
			recs := make([]*privacy.ProcessingRecord, 0, len(args))
			for _, id := range args {
				record, err := c.Pipeline.Record(cmd.Context(), id)
				if err != nil {
					return err
				}
				recs = append(recs, record)
			}

			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOut, err)
			}
			rows, err := export.WriteAudit(f, recs, export.Options{Redact: exportRedact})
			if err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", exportOut, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows from %d records to %s\n", rows, len(recs), exportOut)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "audit.parquet", "Output parquet file")
	exportCmd.Flags().BoolVar(&exportRedact, "redact", false, "Omit original values from the export")
}
