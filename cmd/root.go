// Package cmd implements the mwstate command tree.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/grovetools/mwstate/cli"
	"github.com/grovetools/mwstate/pkg/profiling"
	"github.com/grovetools/mwstate/version"
)

// NewRootCmd assembles the mwstate command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand(
		"mwstate",
		"Middleware state store, daemon and build watcher",
	)
	cli.SetVersionTemplate(root, version.GetInfo())
	profiling.NewCobraProfiler().Attach(root)

	root.AddCommand(NewDaemonCmd())
	root.AddCommand(NewStateCmd())
	root.AddCommand(NewDispatchCmd())
	root.AddCommand(NewMonitorCmd())
	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewPathsCmd())
	root.AddCommand(cli.NewVersionCommand("mwstate"))

	cli.ApplyStyledHelpRecursive(root)
	return root
}
