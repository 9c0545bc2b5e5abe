package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/danmuck/heimdallr-client/internal/config"
	"github.com/danmuck/heimdallr-client/internal/lock"
	"github.com/danmuck/heimdallr-client/internal/logging"
	"github.com/danmuck/heimdallr-client/internal/registry"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show registered endpoints and pending lock claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime(nil)
			paths, err := config.ResolvePaths(runtime.GOOS, os.Getenv)
			if err != nil {
				return err
			}
			cfg := config.DefaultClient(paths)
			endpoints, err := registry.New(cfg.RegistryDir()).List(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := lock.New(cfg.LockOptions()).Rows()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderEndpoints(out, endpoints)
			fmt.Fprintln(out)
			renderClaims(out, rows.Sorted())
			return nil
		},
	}
}

func newInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a client.toml template into the config directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := config.ResolvePaths(runtime.GOOS, os.Getenv)
			if err != nil {
				return err
			}
			if err := paths.Ensure(); err != nil {
				return err
			}
			if err := config.WriteTemplate(paths.ClientPath(), force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", paths.ClientPath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing client.toml")
	return cmd
}

func renderEndpoints(w io.Writer, endpoints []registry.Endpoint) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Endpoints")
	t.AppendHeader(table.Row{"PID", "Address", "File", "Hash", "Descriptor"})
	for _, ep := range endpoints {
		t.AppendRow(table.Row{ep.PID, ep.Address, ep.FileName, ep.FileHash, ep.Path})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}

func renderClaims(w io.Writer, rows []lock.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Lock claims")
	t.AppendHeader(table.Row{"PID", "Name", "Hash", "Seq"})
	for _, row := range rows {
		name := row.Name
		if name == "" {
			name = "<compat>"
		}
		t.AppendRow(table.Row{row.PID, name, row.Hash, row.Seq})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
