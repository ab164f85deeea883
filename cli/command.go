// Package cli holds the command scaffolding shared by the mwstate commands.
package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/mwstate/config"
	"github.com/grovetools/mwstate/logging"
)

// CommandOptions holds the standard persistent flags.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a command carrying the standard mwstate flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to mwstate.yml config file")

	SetStyledHelp(cmd)
	return cmd
}

// GetLogger returns the component logger adjusted by --verbose and --json.
func GetLogger(cmd *cobra.Command, component string) *logrus.Entry {
	entry := logging.NewLogger(component)

	opts := GetOptions(cmd)
	if opts.Verbose {
		entry.Logger.SetLevel(logrus.DebugLevel)
	}
	if opts.JSONOutput {
		entry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return entry
}

// GetOptions extracts the standard flags from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// LoadConfig loads the file named by --config, or the merged configuration
// visible from the working directory when the flag is empty.
func LoadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	if path := GetOptions(cmd).ConfigFile; path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFrom(cwd)
	if err != nil {
		return nil, "", err
	}
	// No project file is fine; defaults apply.
	path, _ := config.FindConfigFile(cwd)
	return cfg, path, nil
}
