package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/logging"
	"github.com/grovetools/mwstate/pkg/action"
)

func NewDispatchCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "dispatch [action-json]",
		Short: "Dispatch an action to the daemon's store",
		Long: `Decode an action and submit it to the running daemon as a VIEW_ACTION.

The action is read from the argument, from --file, or from stdin when
the argument is "-".

Examples:
  mwstate dispatch '{"type":"SUBSCRIBE_TO_MASK","mask":"task.*"}'
  echo '{"type":"LOG_MIDDLEWARE_TASK_QUEUE"}' | mwstate dispatch -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readActionInput(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}
			a, err := action.Decode(data)
			if err != nil {
				return err
			}

			client, err := requireDaemon(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := client.Dispatch(ctx, a); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success(fmt.Sprintf("Dispatched %s", a.Kind()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the action from a file")
	return cmd
}

func readActionInput(stdin io.Reader, args []string, file string) ([]byte, error) {
	switch {
	case file != "":
		return os.ReadFile(file)
	case len(args) == 1 && args[0] == "-":
		return io.ReadAll(stdin)
	case len(args) == 1 && strings.TrimSpace(args[0]) != "":
		return []byte(args[0]), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, "no action given; pass JSON, '-' or --file")
}
