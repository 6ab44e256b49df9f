package main

import (
	"github.com/google/uuid"

	"biofilter/internal/config"
	"biofilter/internal/interval"
	"biofilter/internal/logging"
	"biofilter/internal/loki"
)

// loadRunOptions merges the config file over the defaults and applies the
// persistent CLI flags on top.
func loadRunOptions() (*config.Options, error) {
	opts, err := config.LoadOptions(configFlag)
	if err != nil {
		return nil, err
	}

	if knowledgeFlag != "" {
		opts.Knowledge.Path = knowledgeFlag
	}
	if ldprofileFlag != "" {
		opts.Knowledge.LDProfile = ldprofileFlag
	}
	if seedFlag != 0 {
		opts.Run.RandomSeed = seedFlag
	}
	if workersFlag > 0 {
		opts.Run.Workers = workersFlag
	}
	if logLevelFlag != "" {
		opts.Logging.Level = logLevelFlag
	}
	if logFormatFlag != "" {
		opts.Logging.Format = logFormatFlag
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func runConvention(opts *config.Options) interval.Convention {
	return interval.Convention{
		CoordinateBase: opts.Matching.CoordinateBase,
		HalfOpen:       opts.Matching.HalfOpen,
	}
}

// runMatcher builds the overlap matcher for knowledge-store regions, which
// are always canonical 1-based closed; runConvention only applies when
// reading user input files.
func runMatcher(opts *config.Options) interval.Matcher {
	return interval.NewMatcher(interval.DefaultConvention(), interval.Params{
		Percent:       opts.Matching.MatchPercent,
		Bases:         opts.Matching.MatchBases,
		PercentWaived: opts.Matching.PercentWaived,
	})
}

func newRunLogger(opts *config.Options) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Format: logging.Format(opts.Logging.Format),
		Level:  logging.LogLevel(opts.Logging.Level),
	})
}

// beginRun loads options, builds the logger, and opens the knowledge
// database. Every analysis command starts here; the run id ties together log
// lines from one invocation.
func beginRun(command string) (*config.Options, *logging.Logger, *loki.DB, error) {
	opts, err := loadRunOptions()
	if err != nil {
		return nil, nil, nil, err
	}

	logger := newRunLogger(opts)
	logger.Info("Starting analysis", map[string]interface{}{
		"command": command,
		"runId":   uuid.New().String(),
		"seed":    opts.Run.RandomSeed,
	})

	db, err := loki.Open(opts.Knowledge.Path, opts.Knowledge.LDProfile, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return opts, logger, db, nil
}
