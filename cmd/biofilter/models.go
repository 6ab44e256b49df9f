package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"biofilter/internal/config"
	"biofilter/internal/input"
	"biofilter/internal/logging"
	"biofilter/internal/loki"
	"biofilter/internal/model"
	"biofilter/internal/resolve"
)

var (
	modelGenesFile    string
	modelAltGenesFile string
	modelSNPsFile     string
	modelMaxCount     int
	modelMinScore     int
	modelMaxGroupSize int
	modelAllPairwise  bool
	modelNoSort       bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Generate scored pairwise interaction models",
	Long: `Build gene-gene interaction models from the knowledge database: every
candidate pair is scored by the distinct sources and qualifying groups that
contain both genes. With --snps, surviving gene pairs are expanded into
SNP-SNP models over the input SNPs tagging each gene.`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().StringVar(&modelGenesFile, "genes", "", "Gene identifier list file (required)")
	modelsCmd.Flags().StringVar(&modelAltGenesFile, "alt-genes", "", "Alternate gene set for cross-set models")
	modelsCmd.Flags().StringVar(&modelSNPsFile, "snps", "", "SNP list for SNP-level model expansion")
	modelsCmd.Flags().IntVar(&modelMaxCount, "max-count", -1, "Maximum models to emit (0 = unlimited)")
	modelsCmd.Flags().IntVar(&modelMinScore, "min-score", -1, "Minimum source count to keep a model")
	modelsCmd.Flags().IntVar(&modelMaxGroupSize, "max-group-size", -1, "Largest group counted toward scores (0 = unlimited)")
	modelsCmd.Flags().BoolVar(&modelAllPairwise, "all-pairwise", false, "Emit every pair, unscored and unfiltered")
	modelsCmd.Flags().BoolVar(&modelNoSort, "no-sort", false, "Skip score ordering of the output")
	modelsCmd.MarkFlagRequired("genes")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	opts, logger, db, err := beginRun("models")
	if err != nil {
		return err
	}
	defer db.Close()
	if err := applyModelFlags(opts); err != nil {
		return err
	}

	genes, err := resolveGeneFile(db, logger, modelGenesFile)
	if err != nil {
		return err
	}
	var altGenes []loki.EntityID
	if modelAltGenesFile != "" {
		opts.Models.AlternateFiltering = true
		if altGenes, err = resolveGeneFile(db, logger, modelAltGenesFile); err != nil {
			return err
		}
	}
	if !opts.Models.AlternateFiltering {
		// without alternate filtering the run degrades to self-pairing
		altGenes = nil
	}

	ms, err := buildMembershipFor(db, logger, opts, append(append([]loki.EntityID{}, genes...), altGenes...))
	if err != nil {
		return err
	}

	gen := model.NewGenerator(ms, logger, opts.Models, opts.Run.Workers)
	models, err := gen.Generate(cmd.Context(), genes, altGenes)
	if err != nil {
		return err
	}

	if modelSNPsFile == "" {
		return printGeneModels(db, models)
	}

	geneSNPs, err := mapInputSNPs(db, logger, opts, append(append([]loki.EntityID{}, genes...), altGenes...), modelSNPsFile)
	if err != nil {
		return err
	}
	snps := model.ExpandSNPs(models, geneSNPs, opts.Models.MaximumCount)

	fmt.Printf("#snpA\tsnpB\tsources\tgroups\n")
	for _, m := range snps {
		fmt.Printf("rs%d\trs%d\t%d\t%d\n", m.A, m.B, m.Score.Sources, m.Score.Groups)
	}
	return nil
}

// applyModelFlags merges the models command flags over the loaded options
// and re-checks the ranges, so a flag cannot smuggle in a value the config
// file would have been rejected for.
func applyModelFlags(opts *config.Options) error {
	mo := &opts.Models
	if modelMaxCount >= 0 {
		mo.MaximumCount = modelMaxCount
	}
	if modelMinScore >= 0 {
		mo.MinimumScore = modelMinScore
	}
	if modelMaxGroupSize >= 0 {
		mo.MaximumGroupSize = modelMaxGroupSize
	}
	if modelAllPairwise {
		mo.AllPairwise = true
	}
	if modelNoSort {
		mo.Sort = false
	}
	return opts.Validate()
}

// resolveGeneFile reads an identifier file and resolves every line to gene
// entities. Ambiguous user input keeps all candidates; only knowledge-side
// membership goes through the ambiguity heuristics.
func resolveGeneFile(db *loki.DB, logger *logging.Logger, path string) ([]loki.EntityID, error) {
	r, err := input.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	ids, err := input.ReadIdentifiers(r)
	if err != nil {
		return nil, err
	}

	resolver := resolve.NewResolver(db, logger, resolve.ReduceNone, true)
	seen := make(map[loki.EntityID]struct{})
	var genes []loki.EntityID
	for _, id := range ids {
		entities, err := resolver.Resolve(loki.KindGene, resolve.ParseDeclaredType(id.Type), id.Value)
		if err != nil {
			return nil, err
		}
		for _, e := range entities {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			genes = append(genes, e)
		}
	}
	sort.Slice(genes, func(i, j int) bool { return genes[i] < genes[j] })

	tally := resolver.Tally()
	logger.Info("Resolved gene file", map[string]interface{}{
		"file":   path,
		"genes":  len(genes),
		"misses": tally.Zero,
	})
	return genes, nil
}

// buildMembershipFor resolves the membership of every group containing any
// of the given genes.
func buildMembershipFor(db *loki.DB, logger *logging.Logger, opts *config.Options, genes []loki.EntityID) (*resolve.Membership, error) {
	seen := make(map[loki.EntityID]struct{})
	var groups []loki.EntityID
	for _, g := range genes {
		gs, err := db.GroupsOf(g)
		if err != nil {
			return nil, err
		}
		for _, grp := range gs {
			if _, ok := seen[grp]; ok {
				continue
			}
			seen[grp] = struct{}{}
			groups = append(groups, grp)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	resolver := resolve.NewResolver(db, logger,
		resolve.ParseHeuristic(opts.Ambiguity.Reduce), opts.Ambiguity.Allow)
	return resolver.BuildMembership(groups)
}

// mapInputSNPs associates each input SNP with the genes whose regions
// contain one of its placements.
func mapInputSNPs(db *loki.DB, logger *logging.Logger, opts *config.Options, genes []loki.EntityID, path string) (map[loki.EntityID][]int64, error) {
	r, err := input.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	snps, err := input.ReadSNPs(r, func(row int, err error) {
		logger.Warn("Skipped SNP record", map[string]interface{}{
			"row":   row,
			"error": err.Error(),
		})
	})
	if err != nil {
		return nil, err
	}

	matcher := runMatcher(opts)
	out := make(map[loki.EntityID][]int64)
	for _, gene := range genes {
		region, err := db.RegionOf(gene)
		if err != nil {
			return nil, err
		}
		if region == nil {
			continue
		}
		for _, rs := range snps {
			cur, _, err := db.CurrentRS(rs)
			if err != nil {
				return nil, err
			}
			loci, err := db.SNPLoci(cur)
			if err != nil {
				return nil, err
			}
			for _, l := range loci {
				if matcher.Contains(*region, opts.Matching.PositionMargin, l.Chr, l.Pos) {
					out[gene] = append(out[gene], cur)
					break
				}
			}
		}
	}
	return out, nil
}

func printGeneModels(db *loki.DB, models []model.Model) error {
	fmt.Printf("#geneA\tgeneB\tsources\tgroups\n")
	for _, m := range models {
		la, _, _, err := db.LabelOf(loki.KindGene, m.A)
		if err != nil {
			return err
		}
		lb, _, _, err := db.LabelOf(loki.KindGene, m.B)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%d\t%d\n", la, lb, m.Score.Sources, m.Score.Groups)
	}
	return nil
}
