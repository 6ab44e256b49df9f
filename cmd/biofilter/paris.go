package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"biofilter/internal/config"
	"biofilter/internal/input"
	"biofilter/internal/interval"
	"biofilter/internal/logging"
	"biofilter/internal/loki"
	"biofilter/internal/paris"
	"biofilter/internal/resolve"
)

var (
	parisPositionsFile string
	parisRegionsFile   string
	parisDetails       bool
	parisPermutations  int
	parisPValue        float64
	parisMaxPValue     float64
)

var parisCmd = &cobra.Command{
	Use:   "paris",
	Short: "Run the PARIS pathway permutation analysis",
	Long: `PARIS (Pathway Analysis by Randomization Incorporating Structure) folds
input SNPs and positions into LD-block features, stratifies the genome-wide
features into size bins, and permutes each group's significant-feature count
against random draws from those bins to produce an empirical p-value per
group (and, with --details, per gene).`,
	RunE: runParis,
}

func init() {
	parisCmd.Flags().StringVar(&parisPositionsFile, "positions", "", "Position file: chr, snp, pos, pvalue (required)")
	parisCmd.Flags().StringVar(&parisRegionsFile, "ld-regions", "", "LD block region file: chr, start, stop, label (required)")
	parisCmd.Flags().BoolVar(&parisDetails, "details", false, "Report per-gene sub-results within each group")
	parisCmd.Flags().IntVar(&parisPermutations, "permutations", 0, "Permutation count override")
	parisCmd.Flags().Float64Var(&parisPValue, "p-value", 0, "Significance threshold override")
	parisCmd.Flags().Float64Var(&parisMaxPValue, "max-p-value", 0, "Early-stop threshold: report only a bound past it")
	parisCmd.MarkFlagRequired("positions")
	parisCmd.MarkFlagRequired("ld-regions")
	rootCmd.AddCommand(parisCmd)
}

func runParis(cmd *cobra.Command, args []string) error {
	opts, logger, db, err := beginRun("paris")
	if err != nil {
		return err
	}
	defer db.Close()
	if err := applyParisFlags(opts); err != nil {
		return err
	}

	inputs, err := readParisInputs(db, logger, opts)
	if err != nil {
		return err
	}
	ldRegions, err := readLDRegions(logger, opts)
	if err != nil {
		return err
	}

	groups, err := db.Groups()
	if err != nil {
		return err
	}
	resolver := resolve.NewResolver(db, logger,
		resolve.ParseHeuristic(opts.Ambiguity.Reduce), opts.Ambiguity.Allow)
	ms, err := resolver.BuildMembership(groups)
	if err != nil {
		return err
	}

	regions, labels, err := geneRegions(db, ms)
	if err != nil {
		return err
	}

	engine := paris.NewEngine(opts.Paris, opts.Matching, logger, opts.Run.RandomSeed, opts.Run.Workers)
	engine.BuildFeatures(inputs, ldRegions)
	engine.MapGenes(regions)
	engine.SetGeneLabels(labels)
	if err := engine.Bin(); err != nil {
		return err
	}

	results, err := engine.RunGroups(cmd.Context(), ms, groups)
	if err != nil {
		return err
	}
	return printParisResults(db, results)
}

// applyParisFlags merges the paris command flags over the loaded options and
// re-checks the ranges, so a flag cannot smuggle in a value the config file
// would have been rejected for.
func applyParisFlags(opts *config.Options) error {
	po := &opts.Paris
	if parisDetails {
		po.Details = true
	}
	if parisPermutations > 0 {
		po.PermutationCount = parisPermutations
	}
	if parisPValue > 0 {
		po.PValue = parisPValue
	}
	if parisMaxPValue > 0 {
		po.MaxPValue = parisMaxPValue
		po.MaxPValueSet = true
	}
	return opts.Validate()
}

func readParisInputs(store loki.Store, logger *logging.Logger, opts *config.Options) ([]paris.Input, error) {
	r, err := input.Open(parisPositionsFile)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	positions, err := input.ReadPositions(r, func(row int, err error) {
		logger.Warn("Skipped position record", map[string]interface{}{
			"row":   row,
			"error": err.Error(),
		})
	})
	if err != nil {
		return nil, err
	}
	return parisInputs(store, logger, opts, positions)
}

// parisInputs applies the chromosome enforcement policy: when enabled, an
// input whose declared chromosome disagrees with the knowledge database's
// placement of its rs number is discarded. Labels the store does not know
// are kept as declared.
func parisInputs(store loki.Store, logger *logging.Logger, opts *config.Options, positions []input.Position) ([]paris.Input, error) {
	inputs := make([]paris.Input, 0, len(positions))
	for _, p := range positions {
		if opts.Paris.EnforceInputChromosome {
			if rs, ok := loki.ParseRS(p.Label); ok {
				cur, _, err := store.CurrentRS(rs)
				if err != nil {
					return nil, err
				}
				loci, err := store.SNPLoci(cur)
				if err != nil {
					return nil, err
				}
				if len(loci) > 0 && !lociInclude(loci, p.Chr) {
					logger.Warn("Input chromosome disagrees with knowledge placement", map[string]interface{}{
						"snp":      p.Label,
						"declared": loki.ChromosomeName(p.Chr),
					})
					continue
				}
			}
		}
		inputs = append(inputs, paris.Input{Label: p.Label, Chr: p.Chr, Pos: p.Pos, P: p.P})
	}
	return inputs, nil
}

func lociInclude(loci []loki.Locus, chr int) bool {
	for _, l := range loci {
		if l.Chr == chr {
			return true
		}
	}
	return false
}

func readLDRegions(logger *logging.Logger, opts *config.Options) ([]interval.Region, error) {
	r, err := input.Open(parisRegionsFile)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	conv := runConvention(opts)
	named, err := input.ReadRegions(r, interval.DefaultConvention(), conv, func(row int, err error) {
		logger.Warn("Skipped LD region record", map[string]interface{}{
			"row":   row,
			"error": err.Error(),
		})
	})
	if err != nil {
		return nil, err
	}

	regions := make([]interval.Region, len(named))
	for i, n := range named {
		regions[i] = n.Region
	}
	return regions, nil
}

// geneRegions fetches the canonical region and label of every resolved gene.
func geneRegions(store loki.Store, ms *resolve.Membership) (map[loki.EntityID]*interval.Region, map[loki.EntityID]string, error) {
	regions := make(map[loki.EntityID]*interval.Region, len(ms.GeneGroups))
	labels := make(map[loki.EntityID]string, len(ms.GeneGroups))
	for gene := range ms.GeneGroups {
		region, err := store.RegionOf(gene)
		if err != nil {
			return nil, nil, err
		}
		regions[gene] = region

		label, _, _, err := store.LabelOf(loki.KindGene, gene)
		if err != nil {
			return nil, nil, err
		}
		labels[gene] = label
	}
	return regions, labels, nil
}

func printParisResults(store loki.Store, results []paris.GroupResult) error {
	fmt.Printf("#group\tdescription\tgenes\tfeatures\tsimple\tsimpleSig\tcomplex\tcomplexSig\tpvalue\n")
	for _, r := range results {
		_, description, _, err := store.LabelOf(loki.KindGroup, r.Group)
		if err != nil {
			return err
		}
		fp := r.Fingerprint
		fmt.Printf("%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Label, description, r.GeneCount,
			fp.Features, fp.Simple, fp.SimpleSig, fp.Complex, fp.ComplexSig, r.P)
		for _, g := range r.Genes {
			gfp := g.Fingerprint
			fmt.Printf("-\t%s\t1\t%d\t%d\t%d\t%d\t%d\t%s\n",
				g.Label, gfp.Features, gfp.Simple, gfp.SimpleSig, gfp.Complex, gfp.ComplexSig, g.P)
		}
	}
	return nil
}
