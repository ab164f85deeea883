package cmd

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/grovetools/mwstate/logging"
	"github.com/grovetools/mwstate/tui/monitor"
)

func NewMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Live view of the daemon's store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := requireDaemon(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			restore := logging.SetGlobalOutput(io.Discard)
			defer restore()
			if err := monitor.Run(cmd.Context(), client); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		},
	}
}
