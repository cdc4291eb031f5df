package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/wizard"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a setup configuration file before importing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return err
		}

		data, err := wizard.ParseConfig(info.Name(), info.Size(), f)
		if err != nil {
			var schemaErr *wizard.SchemaError
			if errors.As(err, &schemaErr) {
				for _, p := range schemaErr.Problems {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
				}
			}
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s is valid\n", args[0])
		fmt.Fprintf(out, "  admin:    %s\n", data.AdminUser.Email)
		fmt.Fprintf(out, "  database: %s\n", data.Database.DBName)
		fmt.Fprintf(out, "  mail:     %s\n", data.MailServer.Type)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend reachability and setup state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), settings.Timeout)
		defer cancel()

		api := apiclient.New(settings.BackendURL, settings.Timeout)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend:  %s\n", settings.BackendURL)

		if err := api.Ping(ctx); err != nil {
			fmt.Fprintln(out, "reachable: no")
			return fmt.Errorf("backend unreachable: %w", err)
		}
		fmt.Fprintln(out, "reachable: yes")

		completed, err := api.SetupStatus(ctx)
		if err != nil {
			return fmt.Errorf("query setup status: %w", err)
		}
		fmt.Fprintf(out, "setup:     %s\n", map[bool]string{true: "completed", false: "pending"}[completed])
		return nil
	},
}

var exportTemplateCmd = &cobra.Command{
	Use:   "export-template",
	Short: "Print an empty setup configuration to fill in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := wizard.New().Export()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return err
	},
}
