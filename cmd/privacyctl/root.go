package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raaihank/asset-privacy/internal/config"
	"github.com/raaihank/asset-privacy/internal/logger"
	"github.com/raaihank/asset-privacy/internal/service"
)

var version = "0.1.0"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "privacyctl",
	Short:         "Mask financial documents before they reach an AI model",
	Long:          "privacyctl masks numbers and fund names in financial documents, sends the masked text to an AI model and restores the original values in the answer.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print privacyctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "privacyctl version %s\n", version)
	},
}

// Run executes the root command and returns an exit code
func Run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(fundsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
}

// withPipeline loads configuration, builds the pipeline and runs fn with it
func withPipeline(ctx context.Context, fn func(*service.Components) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console", Stderr: true})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	components, err := service.Build(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer components.Close()

	return fn(components)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
