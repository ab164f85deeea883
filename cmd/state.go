package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/mwstate/cli"
	"github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/pkg/daemon"
	"github.com/grovetools/mwstate/pkg/notify"
	"github.com/grovetools/mwstate/pkg/store"
	"github.com/grovetools/mwstate/tui/components/table"
)

// connect returns a client for the configured daemon socket, falling back
// to an empty in-process store.
func connect(cmd *cobra.Command) (daemon.Client, error) {
	cfg, _, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return daemon.NewWithSocket(socketPath(cfg)), nil
}

// requireDaemon is connect for commands that are meaningless without the daemon.
func requireDaemon(cmd *cobra.Command) (daemon.Client, error) {
	cfg, _, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	sock := socketPath(cfg)
	client := daemon.NewWithSocket(sock)
	if !client.IsRunning() {
		client.Close()
		return nil, errors.New(errors.ErrCodeNotConnected, "mwstate daemon is not running").
			WithDetail("socket", sock)
	}
	return client, nil
}

func NewStateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "state [namespace]",
		Short: "Print the middleware store state",
		Long: `Print the store kept by the daemon, or one namespace of it.

Namespaces: subscriptions, services, methods, events.

Examples:
  mwstate state
  mwstate state subscriptions -o table
  mwstate state events --json`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"subscriptions", "services", "methods", "events"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cli.GetOptions(cmd).JSONOutput {
				output = "json"
			}
			ns := notify.None
			if len(args) == 1 {
				ns = notify.Namespace(args[0])
				if !isNamespace(ns) {
					return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown namespace %q", args[0]))
				}
			}

			client, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			st, err := client.GetState(ctx)
			if err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), st, ns, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format: yaml, json, table")
	return cmd
}

func isNamespace(ns notify.Namespace) bool {
	for _, n := range notify.Namespaces {
		if n == ns {
			return true
		}
	}
	return false
}

func selectNamespace(st *store.State, ns notify.Namespace) interface{} {
	switch ns {
	case notify.Subscriptions:
		return st.Subscriptions
	case notify.Services:
		return st.Services
	case notify.Methods:
		return st.Methods
	case notify.Events:
		return st.Events
	}
	return st
}

func printState(w io.Writer, st *store.State, ns notify.Namespace, output string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(selectNamespace(st, ns))
	case "yaml":
		// Go through JSON so keys and raw event args read the same in both formats.
		raw, err := json.Marshal(selectNamespace(st, ns))
		if err != nil {
			return err
		}
		var doc interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		data, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "table":
		for _, section := range stateTables(st, ns) {
			fmt.Fprintln(w, section)
		}
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown output format %q", output))
}

func stateTables(st *store.State, ns notify.Namespace) []string {
	var out []string
	if ns == notify.None || ns == notify.Subscriptions {
		masks := make([]string, 0, len(st.Subscriptions))
		for mask := range st.Subscriptions {
			masks = append(masks, mask)
		}
		sort.Strings(masks)
		rows := make([][]string, 0, len(masks))
		for _, mask := range masks {
			rows = append(rows, []string{mask, strconv.Itoa(st.Subscriptions[mask])})
		}
		out = append(out, table.Render([]string{"MASK", "SUBSCRIBERS"}, rows))
	}
	if ns == notify.None || ns == notify.Services || ns == notify.Methods {
		rows := make([][]string, 0, len(st.Services))
		for _, svc := range st.Services {
			methods := "-"
			if list, ok := st.Methods[svc.Name]; ok {
				names := make([]string, 0, len(list))
				for _, m := range list {
					names = append(names, m.Name)
				}
				methods = strings.Join(names, ", ")
			}
			rows = append(rows, []string{svc.Name, svc.Description, methods})
		}
		out = append(out, table.Render([]string{"SERVICE", "DESCRIPTION", "METHODS"}, rows))
	}
	if ns == notify.None || ns == notify.Events {
		rows := make([][]string, 0, len(st.Events))
		for _, ev := range st.Events {
			received := ""
			if !ev.ReceivedAt.IsZero() {
				received = ev.ReceivedAt.Format(time.RFC3339)
			}
			detail := string(ev.Args)
			if len(ev.Extra) > 0 {
				if data, err := json.Marshal(ev.Extra); err == nil {
					detail = strings.TrimSpace(detail + " " + string(data))
				}
			}
			rows = append(rows, []string{received, ev.Name, detail})
		}
		out = append(out, table.Render([]string{"RECEIVED", "EVENT", "ARGS"}, rows))
	}
	return out
}
