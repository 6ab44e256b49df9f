package main

import (
	"github.com/spf13/cobra"

	"biofilter/internal/version"
)

var (
	configFlag    string
	knowledgeFlag string
	ldprofileFlag string
	seedFlag      int64
	workersFlag   int
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "biofilter",
	Short: "Biofilter - knowledge-driven genomic association analysis",
	Long: `Biofilter resolves SNPs, positions, regions, genes and groups against a
compiled LOKI prior-knowledge database, builds scored pairwise interaction
models, and runs the PARIS permutation significance test over pathway
feature fingerprints.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("Biofilter version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"Configuration file (default: ./biofilter.{yaml,json,toml})")
	rootCmd.PersistentFlags().StringVar(&knowledgeFlag, "knowledge", "",
		"Path to the compiled LOKI knowledge database")
	rootCmd.PersistentFlags().StringVar(&ldprofileFlag, "ldprofile", "",
		"LD profile for gene region boundaries (default: canonical)")
	rootCmd.PersistentFlags().Int64Var(&seedFlag, "seed", 0,
		"Random seed for deterministic permutation replay")
	rootCmd.PersistentFlags().IntVar(&workersFlag, "workers", 0,
		"Worker count for parallel phases (0 = one per CPU)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: human, json")
}
