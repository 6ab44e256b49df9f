// Package input reads user-supplied SNP, position, and region files.
// Files are tab-delimited with a header row, optionally gzip-compressed.
// Malformed records are skipped and reported to the caller's error callback;
// they never abort a run.
package input

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/klauspost/compress/gzip"

	bferrors "biofilter/internal/errors"
	"biofilter/internal/interval"
	"biofilter/internal/loki"
)

// ErrorFunc receives each skipped record: the 1-based data row number and
// the reason. A nil ErrorFunc drops the reports silently.
type ErrorFunc func(row int, err error)

// Open opens an input file, transparently decompressing a .gz suffix.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipFile{file: f, Reader: zr}, nil
}

type gzipFile struct {
	file *os.File
	*gzip.Reader
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	ferr := g.file.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}

func tsvReader(r io.Reader) gocsv.CSVReader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.Comment = '#'
	return cr
}

// ReadSNPs reads a SNP list: one rs number per line, optionally with
// trailing columns. Tokens that do not parse as rs numbers are reported and
// skipped.
func ReadSNPs(r io.Reader, onErr ErrorFunc) ([]int64, error) {
	var out []int64
	row := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		row++
		token := strings.Fields(line)[0]
		rs, ok := loki.ParseRS(token)
		if !ok {
			report(onErr, row, bferrors.Newf(bferrors.MatchData, "invalid rs number %q", token))
			continue
		}
		out = append(out, rs)
	}
	return out, scanner.Err()
}

// Position is one parsed position-file record. P is NaN when the p-value
// column did not parse; such records still participate in matching, they are
// just never significant.
type Position struct {
	Label string
	Chr   int
	Pos   int
	P     float64
}

type positionRecord struct {
	Chr   string `csv:"chr"`
	Label string `csv:"snp"`
	Pos   string `csv:"pos"`
	P     string `csv:"pvalue"`
}

// ReadPositions reads a position file with columns chr, snp, pos, pvalue.
// A record without a usable chromosome or position is skipped via onErr; a
// record whose p-value does not parse is kept with P = NaN so it still
// matches features, only as insignificant.
func ReadPositions(r io.Reader, onErr ErrorFunc) ([]Position, error) {
	var records []*positionRecord
	if err := gocsv.UnmarshalCSV(tsvReader(r), &records); err != nil {
		return nil, bferrors.New(bferrors.MatchData, "failed to parse position file", err)
	}

	out := make([]Position, 0, len(records))
	for i, rec := range records {
		row := i + 1

		chr := loki.ParseChromosome(rec.Chr)
		if chr == 0 {
			report(onErr, row, bferrors.Newf(bferrors.MatchData, "unrecognized chromosome %q", rec.Chr))
			continue
		}
		pos, err := strconv.Atoi(rec.Pos)
		if err != nil {
			report(onErr, row, bferrors.Newf(bferrors.MatchData, "invalid position %q", rec.Pos))
			continue
		}
		p, err := strconv.ParseFloat(rec.P, 64)
		if err != nil {
			p = math.NaN()
		}

		out = append(out, Position{Label: rec.Label, Chr: chr, Pos: pos, P: p})
	}
	return out, nil
}

// NamedRegion is one parsed region-file record.
type NamedRegion struct {
	Label  string
	Region interval.Region
}

type regionRecord struct {
	Chr   string `csv:"chr"`
	Start string `csv:"start"`
	Stop  string `csv:"stop"`
	Label string `csv:"label"`
}

// ReadRegions reads a region file with columns chr, start, stop, label and
// normalizes each region from the input convention into the run convention.
// Malformed intervals (start past stop, bad chromosome) are skipped via
// onErr.
func ReadRegions(r io.Reader, run, in interval.Convention, onErr ErrorFunc) ([]NamedRegion, error) {
	var records []*regionRecord
	if err := gocsv.UnmarshalCSV(tsvReader(r), &records); err != nil {
		return nil, bferrors.New(bferrors.MatchData, "failed to parse region file", err)
	}

	out := make([]NamedRegion, 0, len(records))
	for i, rec := range records {
		row := i + 1

		chr := loki.ParseChromosome(rec.Chr)
		if chr == 0 {
			report(onErr, row, bferrors.Newf(bferrors.MatchData, "unrecognized chromosome %q", rec.Chr))
			continue
		}
		start, err := strconv.Atoi(rec.Start)
		if err != nil {
			report(onErr, row, bferrors.Newf(bferrors.MatchData, "invalid start %q", rec.Start))
			continue
		}
		stop, err := strconv.Atoi(rec.Stop)
		if err != nil {
			report(onErr, row, bferrors.Newf(bferrors.MatchData, "invalid stop %q", rec.Stop))
			continue
		}

		region := run.Normalize(interval.Region{Chr: chr, Start: start, Stop: stop}, in)
		if !region.Valid() {
			report(onErr, row, bferrors.Newf(bferrors.MatchData, "malformed interval %s", region))
			continue
		}
		out = append(out, NamedRegion{Label: rec.Label, Region: region})
	}
	return out, nil
}

// Identifier is one parsed identifier-file record: a value with an optional
// declared type column.
type Identifier struct {
	Type  string
	Value string
}

// ReadIdentifiers reads a gene or group list: one identifier per line, with
// an optional leading type column separated by a tab ("entrez\t1001" or just
// "A2M").
func ReadIdentifiers(r io.Reader) ([]Identifier, error) {
	var out []Identifier

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) == 2 {
			out = append(out, Identifier{Type: parts[0], Value: parts[1]})
		} else {
			out = append(out, Identifier{Value: parts[0]})
		}
	}
	return out, scanner.Err()
}

func report(onErr ErrorFunc, row int, err error) {
	if onErr != nil {
		onErr(row, err)
	}
}
