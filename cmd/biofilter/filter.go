package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"biofilter/internal/input"
	"biofilter/internal/logging"
	"biofilter/internal/loki"
	"biofilter/internal/resolve"
)

var (
	filterGenesFile  string
	filterGroupsFile string
	filterSNPsFile   string
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Resolve input identifiers against the knowledge database",
	Long: `Resolve gene, group, and SNP identifiers to knowledge entities and report
each identifier's candidates. Identifier lines may carry a leading type
column ("entrez<TAB>1001"); the special types "-" (primary label only) and
"=" (internal id) are honored. Unresolvable identifiers are reported as
misses, never errors.`,
	RunE: runFilter,
}

func init() {
	filterCmd.Flags().StringVar(&filterGenesFile, "genes", "", "Gene identifier list file")
	filterCmd.Flags().StringVar(&filterGroupsFile, "groups", "", "Group identifier list file")
	filterCmd.Flags().StringVar(&filterSNPsFile, "snps", "", "SNP rs-number list file")
	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, args []string) error {
	if filterGenesFile == "" && filterGroupsFile == "" && filterSNPsFile == "" {
		return fmt.Errorf("at least one of --genes, --groups, --snps is required")
	}

	_, logger, db, err := beginRun("filter")
	if err != nil {
		return err
	}
	defer db.Close()

	resolver := resolve.NewResolver(db, logger, resolve.ReduceNone, true)

	if filterGenesFile != "" {
		if err := filterIdentifiers(resolver, db, loki.KindGene, filterGenesFile); err != nil {
			return err
		}
	}
	if filterGroupsFile != "" {
		if err := filterIdentifiers(resolver, db, loki.KindGroup, filterGroupsFile); err != nil {
			return err
		}
	}
	if filterSNPsFile != "" {
		if err := filterSNPs(db, filterSNPsFile, logger); err != nil {
			return err
		}
	}

	tally := resolver.Tally()
	logger.Info("Resolution finished", map[string]interface{}{
		"matched":   tally.One,
		"ambiguous": tally.Many,
		"misses":    tally.Zero,
	})
	return nil
}

func filterIdentifiers(resolver *resolve.Resolver, db *loki.DB, kind loki.Kind, path string) error {
	r, err := input.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	ids, err := input.ReadIdentifiers(r)
	if err != nil {
		return err
	}

	fmt.Printf("#%s\tinput\tentity\tlabel\n", kind)
	for _, id := range ids {
		dt := resolve.ParseDeclaredType(id.Type)
		entities, err := resolver.Resolve(kind, dt, id.Value)
		if err != nil {
			return err
		}
		if len(entities) == 0 {
			fmt.Printf("%s\t%s\t-\t-\n", kind, id.Value)
			continue
		}
		for _, e := range entities {
			label, _, _, err := db.LabelOf(kind, e)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\t%d\t%s\n", kind, id.Value, e, label)
		}
	}
	return nil
}

func filterSNPs(db *loki.DB, path string, logger *logging.Logger) error {
	r, err := input.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	var skipped []string
	snps, err := input.ReadSNPs(r, func(row int, err error) {
		skipped = append(skipped, fmt.Sprintf("row %d: %v", row, err))
	})
	if err != nil {
		return err
	}
	for _, s := range skipped {
		logger.Warn("Skipped SNP record", map[string]interface{}{"reason": s})
	}

	fmt.Printf("#snp\tinput\tcurrent\tchr\tpos\n")
	for _, rs := range snps {
		cur, merged, err := db.CurrentRS(rs)
		if err != nil {
			return err
		}
		if merged {
			logger.Warn("rs number was merged", map[string]interface{}{
				"input":   fmt.Sprintf("rs%d", rs),
				"current": fmt.Sprintf("rs%d", cur),
			})
		}
		loci, err := db.SNPLoci(cur)
		if err != nil {
			return err
		}
		if len(loci) == 0 {
			fmt.Printf("snp\trs%d\trs%d\t-\t-\n", rs, cur)
			continue
		}
		for _, l := range loci {
			fmt.Printf("snp\trs%d\trs%d\t%s\t%d\n", rs, cur, loki.ChromosomeName(l.Chr), l.Pos)
		}
	}
	return nil
}
