package config

import (
	"github.com/spf13/viper"
)

// Options represents the complete configuration of one Biofilter run.
type Options struct {
	Knowledge KnowledgeOptions `yaml:"knowledge" mapstructure:"knowledge"`
	Matching  MatchingOptions  `yaml:"matching" mapstructure:"matching"`
	Models    ModelOptions     `yaml:"models" mapstructure:"models"`
	Ambiguity AmbiguityOptions `yaml:"ambiguity" mapstructure:"ambiguity"`
	Paris     ParisOptions     `yaml:"paris" mapstructure:"paris"`
	Run       RunOptions       `yaml:"run" mapstructure:"run"`
	Logging   LoggingOptions   `yaml:"logging" mapstructure:"logging"`
}

// KnowledgeOptions locates the compiled knowledge database.
type KnowledgeOptions struct {
	Path      string `yaml:"path" mapstructure:"path"`
	LDProfile string `yaml:"ldProfile" mapstructure:"ldProfile"`
}

// MatchingOptions controls region and position matching.
type MatchingOptions struct {
	PositionMargin int     `yaml:"positionMargin" mapstructure:"positionMargin"`
	MatchPercent   float64 `yaml:"matchPercent" mapstructure:"matchPercent"`
	MatchBases     int     `yaml:"matchBases" mapstructure:"matchBases"`
	CoordinateBase int     `yaml:"coordinateBase" mapstructure:"coordinateBase"`
	HalfOpen       bool    `yaml:"halfOpen" mapstructure:"halfOpen"`

	// PercentWaived is resolved at load time: a bases threshold given without
	// an explicit percent waives the percent requirement entirely.
	PercentWaived bool `yaml:"-" mapstructure:"-"`
}

// ModelOptions controls pairwise model generation.
type ModelOptions struct {
	MaximumCount       int  `yaml:"maximumCount" mapstructure:"maximumCount"`
	MaximumGroupSize   int  `yaml:"maximumGroupSize" mapstructure:"maximumGroupSize"`
	MinimumScore       int  `yaml:"minimumScore" mapstructure:"minimumScore"`
	AllPairwise        bool `yaml:"allPairwise" mapstructure:"allPairwise"`
	AlternateFiltering bool `yaml:"alternateFiltering" mapstructure:"alternateFiltering"`
	Sort               bool `yaml:"sort" mapstructure:"sort"`
}

// AmbiguityOptions controls how ambiguous group membership is handled.
type AmbiguityOptions struct {
	Allow  bool   `yaml:"allow" mapstructure:"allow"`
	Reduce string `yaml:"reduce" mapstructure:"reduce"` // no, implication, quality, any
}

// ParisOptions controls the PARIS permutation analysis.
type ParisOptions struct {
	PValue                 float64 `yaml:"pValue" mapstructure:"pValue"`
	ZeroPValues            string  `yaml:"zeroPValues" mapstructure:"zeroPValues"` // ignore, insignificant, significant
	MaxPValue              float64 `yaml:"maxPValue" mapstructure:"maxPValue"`
	PermutationCount       int     `yaml:"permutationCount" mapstructure:"permutationCount"`
	BinSize                int     `yaml:"binSize" mapstructure:"binSize"`
	PositionMargin         int     `yaml:"positionMargin" mapstructure:"positionMargin"`
	EnforceInputChromosome bool    `yaml:"enforceInputChromosome" mapstructure:"enforceInputChromosome"`
	Details                bool    `yaml:"details" mapstructure:"details"`

	// MaxPValueSet distinguishes an explicit threshold from the unset default;
	// early stopping only happens when a threshold was actually given.
	MaxPValueSet bool `yaml:"-" mapstructure:"-"`
}

// RunOptions controls execution-level behavior.
type RunOptions struct {
	RandomSeed int64 `yaml:"randomSeed" mapstructure:"randomSeed"`
	Workers    int   `yaml:"workers" mapstructure:"workers"`
}

// LoggingOptions contains logging configuration.
type LoggingOptions struct {
	Format string `yaml:"format" mapstructure:"format"`
	Level  string `yaml:"level" mapstructure:"level"`
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		Knowledge: KnowledgeOptions{
			Path:      "loki.db",
			LDProfile: "",
		},
		Matching: MatchingOptions{
			PositionMargin: 0,
			MatchPercent:   100,
			MatchBases:     0,
			CoordinateBase: 1,
			HalfOpen:       false,
		},
		Models: ModelOptions{
			MaximumCount:       0, // unlimited
			MaximumGroupSize:   30,
			MinimumScore:       2,
			AllPairwise:        false,
			AlternateFiltering: false,
			Sort:               true,
		},
		Ambiguity: AmbiguityOptions{
			Allow:  false,
			Reduce: "no",
		},
		Paris: ParisOptions{
			PValue:                 0.05,
			ZeroPValues:            "ignore",
			MaxPValue:              0,
			PermutationCount:       1000,
			BinSize:                10000,
			PositionMargin:         0,
			EnforceInputChromosome: false,
			Details:                false,
		},
		Run: RunOptions{
			RandomSeed: 0,
			Workers:    0, // 0 means one per CPU
		},
		Logging: LoggingOptions{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadOptions loads configuration from the given file, merged over the
// defaults. An empty path looks for biofilter.{yaml,json,toml} in the working
// directory; a missing file is not an error.
func LoadOptions(path string) (*Options, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("biofilter")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return DefaultOptions(), nil
		}
		return nil, &ConfigError{Field: "file", Message: err.Error()}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, &ConfigError{Field: "file", Message: err.Error()}
	}

	opts.Paris.MaxPValueSet = v.IsSet("paris.maxPValue")
	opts.resolveMatchParams(v.IsSet("matching.matchPercent"))
	return &opts, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultOptions()
	v.SetDefault("knowledge.path", d.Knowledge.Path)
	v.SetDefault("knowledge.ldProfile", d.Knowledge.LDProfile)
	v.SetDefault("matching.positionMargin", d.Matching.PositionMargin)
	v.SetDefault("matching.matchPercent", d.Matching.MatchPercent)
	v.SetDefault("matching.matchBases", d.Matching.MatchBases)
	v.SetDefault("matching.coordinateBase", d.Matching.CoordinateBase)
	v.SetDefault("matching.halfOpen", d.Matching.HalfOpen)
	v.SetDefault("models.maximumCount", d.Models.MaximumCount)
	v.SetDefault("models.maximumGroupSize", d.Models.MaximumGroupSize)
	v.SetDefault("models.minimumScore", d.Models.MinimumScore)
	v.SetDefault("models.allPairwise", d.Models.AllPairwise)
	v.SetDefault("models.alternateFiltering", d.Models.AlternateFiltering)
	v.SetDefault("models.sort", d.Models.Sort)
	v.SetDefault("ambiguity.allow", d.Ambiguity.Allow)
	v.SetDefault("ambiguity.reduce", d.Ambiguity.Reduce)
	v.SetDefault("paris.pValue", d.Paris.PValue)
	v.SetDefault("paris.zeroPValues", d.Paris.ZeroPValues)
	v.SetDefault("paris.permutationCount", d.Paris.PermutationCount)
	v.SetDefault("paris.binSize", d.Paris.BinSize)
	v.SetDefault("paris.positionMargin", d.Paris.PositionMargin)
	v.SetDefault("paris.enforceInputChromosome", d.Paris.EnforceInputChromosome)
	v.SetDefault("paris.details", d.Paris.Details)
	v.SetDefault("run.randomSeed", d.Run.RandomSeed)
	v.SetDefault("run.workers", d.Run.Workers)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
}

// resolveMatchParams applies the bases/percent interplay once, here, so the
// matcher never has to guess whether the percent was defaulted: giving a bases
// threshold without an explicit percent waives the percent requirement.
func (o *Options) resolveMatchParams(percentExplicit bool) {
	o.Matching.PercentWaived = o.Matching.MatchBases > 0 && !percentExplicit
}

// SetMatchBases records a bases threshold arriving from a CLI flag, applying
// the same waiver rule as file-based configuration.
func (o *Options) SetMatchBases(bases int, percentExplicit bool) {
	o.Matching.MatchBases = bases
	o.resolveMatchParams(percentExplicit)
}

// Validate checks if the configuration is valid.
func (o *Options) Validate() error {
	if o.Knowledge.Path == "" {
		return &ConfigError{Field: "knowledge.path", Message: "knowledge database path is required"}
	}
	if o.Matching.MatchPercent <= 0 || o.Matching.MatchPercent > 100 {
		return &ConfigError{Field: "matching.matchPercent", Message: "must be in (0, 100]"}
	}
	if o.Matching.MatchBases < 0 {
		return &ConfigError{Field: "matching.matchBases", Message: "must be non-negative"}
	}
	if o.Matching.PositionMargin < 0 {
		return &ConfigError{Field: "matching.positionMargin", Message: "must be non-negative"}
	}
	if o.Matching.CoordinateBase < 0 {
		return &ConfigError{Field: "matching.coordinateBase", Message: "must be non-negative"}
	}
	if o.Models.MaximumCount < 0 {
		return &ConfigError{Field: "models.maximumCount", Message: "must be non-negative (0 = unlimited)"}
	}
	if o.Models.MaximumGroupSize < 0 {
		return &ConfigError{Field: "models.maximumGroupSize", Message: "must be non-negative (0 = unlimited)"}
	}
	if o.Models.MinimumScore < 1 {
		return &ConfigError{Field: "models.minimumScore", Message: "must be at least 1"}
	}
	switch o.Ambiguity.Reduce {
	case "no", "implication", "quality", "any":
	default:
		return &ConfigError{Field: "ambiguity.reduce", Message: "must be one of: no, implication, quality, any"}
	}
	if o.Paris.PValue <= 0 || o.Paris.PValue > 1 {
		return &ConfigError{Field: "paris.pValue", Message: "must be in (0, 1]"}
	}
	switch o.Paris.ZeroPValues {
	case "ignore", "insignificant", "significant":
	default:
		return &ConfigError{Field: "paris.zeroPValues", Message: "must be one of: ignore, insignificant, significant"}
	}
	if o.Paris.MaxPValueSet && (o.Paris.MaxPValue <= 0 || o.Paris.MaxPValue > 1) {
		return &ConfigError{Field: "paris.maxPValue", Message: "must be in (0, 1]"}
	}
	if o.Paris.PermutationCount < 1 {
		return &ConfigError{Field: "paris.permutationCount", Message: "must be at least 1"}
	}
	if o.Paris.BinSize < 1 {
		return &ConfigError{Field: "paris.binSize", Message: "must be at least 1"}
	}
	if o.Paris.PositionMargin < 0 {
		return &ConfigError{Field: "paris.positionMargin", Message: "must be non-negative"}
	}
	if o.Run.Workers < 0 {
		return &ConfigError{Field: "run.workers", Message: "must be non-negative (0 = one per CPU)"}
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
