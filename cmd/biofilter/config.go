package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"biofilter/internal/config"
)

var configDefaults bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Biofilter configuration",
	Long:  "View the effective Biofilter run configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration a run would use: the built-in defaults, merged
with the config file, merged with any persistent CLI flags.

Examples:
  biofilter config show                    # effective config as YAML
  biofilter config show --defaults         # built-in defaults only
  biofilter --config run.yaml config show  # effective config for run.yaml`,
	RunE: runConfigShow,
}

func init() {
	configShowCmd.Flags().BoolVar(&configDefaults, "defaults", false, "Show built-in defaults, ignoring config file and flags")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	var opts *config.Options
	if configDefaults {
		opts = config.DefaultOptions()
	} else {
		var err error
		if opts, err = loadRunOptions(); err != nil {
			return err
		}
	}

	out, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	os.Stdout.Write(out)
	return nil
}
