package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/grovetools/mwstate/cli"
	"github.com/grovetools/mwstate/config"
	"github.com/grovetools/mwstate/pkg/watch"
	"github.com/grovetools/mwstate/tui/components/table"
	"github.com/grovetools/mwstate/util/pathutil"
)

func NewWatchCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild and restart on source changes",
		Long: `Watch the source tree and run the configured rule tasks on change.

Without watch.rules in mwstate.yml the built-in GUI rules are used.

Examples:
  mwstate watch
  mwstate watch --list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd, "watch")
			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			rules := cfg.Watch.Rules
			if len(rules) == 0 {
				rules = watch.DefaultRules()
			}
			if list {
				fmt.Fprintln(cmd.OutOrStdout(), rulesTable(rules))
				return nil
			}

			root, err := pathutil.Expand(cfg.Watch.Root)
			if err != nil {
				return err
			}
			w, err := watch.New(watch.Options{
				Root:     root,
				Debounce: cfg.Watch.Debounce.Std(),
				Rules:    rules,
				Logger:   logger,
				Stdout:   cmd.OutOrStdout(),
				Stderr:   cmd.ErrOrStderr(),
				OnRun: func(rule string, err error) {
					if err != nil {
						cli.NewErrorHandler(false, cmd.ErrOrStderr()).Handle(err)
					}
				},
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger.WithField("root", root).WithField("rules", len(rules)).Info("Watching for changes")
			return w.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "Print the active rules and exit")
	return cmd
}

func rulesTable(rules []config.WatchRule) string {
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		tasks := make([]string, 0, len(r.Tasks))
		for _, t := range r.Tasks {
			tasks = append(tasks, strings.Join(t, " "))
		}
		mode := "run"
		if r.Restart {
			mode = "restart"
		}
		rows = append(rows, []string{r.Name, strings.Join(r.Files, "\n"), strings.Join(tasks, "\n"), mode})
	}
	return table.Render([]string{"RULE", "FILES", "TASKS", "MODE"}, rows)
}
