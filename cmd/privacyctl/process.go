package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raaihank/asset-privacy/internal/batch"
	"github.com/raaihank/asset-privacy/internal/privacy"
	"github.com/raaihank/asset-privacy/internal/records"
	"github.com/raaihank/asset-privacy/internal/service"
)

var (
	processFull     bool
	processWorkers  int
	processFailFast bool

	decryptRecordID   string
	decryptRecordFile string
	decryptInput      string
	decryptReport     bool

	completeInstructions string
	completeDecrypt      bool
)

var processCmd = &cobra.Command{
	Use:   "process PATH...",
	Short: "Mask documents and store their processing records",
	Long:  "Mask documents and store their processing records. Directories are searched recursively for PDF and text files.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := batch.Expand(args)
		if err != nil {
			return err
		}

		return withPipeline(cmd.Context(), func(c *service.Components) error {
			runner := batch.NewRunner(c.Pipeline, batch.Config{
				Workers:        processWorkers,
				StopOnError:    processFailFast,
				ProgressReport: 100,
			}, c.Logger)

			result, err := runner.Run(cmd.Context(), paths)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, item := range result.Items {
				if item.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", item.Path, item.Err)
					continue
				}
				record := item.Record
				if processFull {
					if err := printJSON(out, record); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%s\t%s\tmasked=%d funds=%d chars=%d pages=%d\n",
					record.ID, record.InputFile, record.TotalMaskedValues,
					record.TotalObfuscatedFunds, record.TotalCharacters, record.PDFMetadata.TotalPages)
			}

			if n := result.ProcessedFailed + result.Skipped; n > 0 {
				return fmt.Errorf("%d of %d documents were not processed", n, result.TotalFiles)
			}
			return nil
		})
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Restore original values in masked text",
	Long: "Restore original values in text derived from a processing record. The text is read from --input, " +
		"or stdin when --input is \"-\". Without input a stored record's AI response or masked text is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (decryptRecordID == "") == (decryptRecordFile == "") {
			return fmt.Errorf("exactly one of --record-id or --record is required")
		}

		text, err := readInput(cmd, decryptInput)
		if err != nil {
			return err
		}

		return withPipeline(cmd.Context(), func(c *service.Components) error {
			var result privacy.DecryptResult
			if decryptRecordFile != "" {
				record, err := records.ReadFile(decryptRecordFile)
				if err != nil {
					return err
				}
				result, err = c.Pipeline.Decrypt(cmd.Context(), text, record)
				if err != nil {
					return err
				}
			} else {
				result, err = c.Pipeline.DecryptStored(cmd.Context(), decryptRecordID, text)
				if err != nil {
					return err
				}
			}

			if decryptReport {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprint(cmd.OutOrStdout(), result.Text)
			if !result.Complete() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d of %d identifiers not found in text\n",
					len(result.Missing), result.Requested)
			}
			return nil
		})
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete RECORD_ID",
	Short: "Send a record's masked text to the AI model and store the answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(c *service.Components) error {
			record, err := c.Pipeline.Complete(cmd.Context(), args[0], completeInstructions)
			if err != nil {
				return err
			}
			if !completeDecrypt {
				fmt.Fprintln(cmd.OutOrStdout(), record.AIResponse)
				return nil
			}
			result, err := c.Pipeline.DecryptStored(cmd.Context(), record.ID, record.AIResponse)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return nil
		})
	},
}

func init() {
	processCmd.Flags().BoolVar(&processFull, "json", false, "Print the full processing record as JSON")
	processCmd.Flags().IntVarP(&processWorkers, "workers", "w", 4, "Number of documents processed concurrently")
	processCmd.Flags().BoolVar(&processFailFast, "fail-fast", false, "Stop at the first document that fails")

	decryptCmd.Flags().StringVar(&decryptRecordID, "record-id", "", "ID of a stored processing record")
	decryptCmd.Flags().StringVar(&decryptRecordFile, "record", "", "Path to a processing record JSON file")
	decryptCmd.Flags().StringVarP(&decryptInput, "input", "i", "", "File with the text to decrypt, or - for stdin")
	decryptCmd.Flags().BoolVar(&decryptReport, "json", false, "Print the decrypt result with counts as JSON")

	completeCmd.Flags().StringVar(&completeInstructions, "instructions", "", "Instructions placed before the extraction guide")
	completeCmd.Flags().BoolVar(&completeDecrypt, "decrypt", false, "Print the answer with original values restored")
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	}
}
