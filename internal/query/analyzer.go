package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownAnalyzer is a configuration error for an analyzer name outside the
	// supported set.
	ErrUnknownAnalyzer = errors.New("unknown analyzer")

	// ErrUnknownBoolOp is a configuration error for a boolean operator other than
	// should or must.
	ErrUnknownBoolOp = errors.New("unknown boolean operator")

	// ErrPageSizeExceedsWindow is returned when a single page could never fit in the
	// result window.
	ErrPageSizeExceedsWindow = errors.New("page size exceeds the result window")
)

// Analyzer names a search analyzer. Keyword fields are indexed once per analyzer
// as sub-fields, such as name.ngram.
type Analyzer int

const (
	AnalyzerDefault Analyzer = iota
	AnalyzerKeyword
	AnalyzerNgram
	AnalyzerStandard
	AnalyzerSynonym
	AnalyzerURL
)

var analyzerNames = [...]string{
	AnalyzerDefault:  "default",
	AnalyzerKeyword:  "keyword",
	AnalyzerNgram:    "ngram",
	AnalyzerStandard: "standard",
	AnalyzerSynonym:  "synonym",
	AnalyzerURL:      "url",
}

func (a Analyzer) String() string {
	if a < 0 || int(a) >= len(analyzerNames) {
		return fmt.Sprintf("Analyzer(%d)", int(a))
	}
	return analyzerNames[a]
}

// ParseAnalyzer returns the Analyzer called name. The empty name is the default
// analyzer.
func ParseAnalyzer(name string) (Analyzer, error) {
	if name == "" {
		return AnalyzerDefault, nil
	}
	for a, n := range analyzerNames {
		if strings.EqualFold(n, name) {
			return Analyzer(a), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAnalyzer, name)
}

// BoolOp is the occurrence type combining keyword clauses.
type BoolOp int

const (
	BoolShould BoolOp = iota
	BoolMust
)

func (b BoolOp) String() string {
	switch b {
	case BoolShould:
		return "should"
	case BoolMust:
		return "must"
	default:
		return fmt.Sprintf("BoolOp(%d)", int(b))
	}
}

// ParseBoolOp returns the BoolOp called name. The empty name is should.
func ParseBoolOp(name string) (BoolOp, error) {
	switch strings.ToLower(name) {
	case "", "should":
		return BoolShould, nil
	case "must":
		return BoolMust, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBoolOp, name)
	}
}
