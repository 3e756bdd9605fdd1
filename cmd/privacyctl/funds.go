package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raaihank/asset-privacy/internal/funds"
	"github.com/raaihank/asset-privacy/internal/service"
)

var fundsJSON bool

var fundsCmd = &cobra.Command{
	Use:   "funds",
	Short: "Manage the master fund name registry",
}

var fundsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered fund names and their placeholders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(c *service.Components) error {
			listing := c.Pipeline.ListFunds()
			if fundsJSON {
				return printJSON(cmd.OutOrStdout(), listing)
			}
			for _, name := range listing.Names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", listing.Placeholders[name], name)
			}
			return nil
		})
	},
}

var fundsAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a fund name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(c *service.Components) error {
			m, err := c.Pipeline.AddFund(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return reportMutation(cmd, m)
		})
	},
}

var fundsRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Unregister a fund name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(c *service.Components) error {
			m, err := c.Pipeline.RemoveFund(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return reportMutation(cmd, m)
		})
	},
}

func reportMutation(cmd *cobra.Command, m funds.Mutation) error {
	if m.Placeholder != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", m.Status, m.Placeholder, m.Name)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.Status, m.Name)
	}
	if m.PersistErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", m.PersistErr)
	}
	return nil
}

func init() {
	fundsListCmd.Flags().BoolVar(&fundsJSON, "json", false, "Print the registry as JSON")

	fundsCmd.AddCommand(fundsListCmd)
	fundsCmd.AddCommand(fundsAddCmd)
	fundsCmd.AddCommand(fundsRemoveCmd)
}
