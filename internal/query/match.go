package query

import (
	"strings"

	"github.com/zetsubou/tagstore/pkg/search"
)

// FieldMatch matches Keywords against one field under one analyzer.
type FieldMatch struct {
	Field    string
	Keywords string
	Analyzer Analyzer
}

func multiMatch(query string, fuzziness int, fields []string) search.Query {
	mm := map[string]any{
		"query":     query,
		"fuzziness": fuzziness,
	}
	// Without fields the backend searches every field.
	if len(fields) > 0 {
		mm["fields"] = fields
	}
	return search.Query{"multi_match": mm}
}

func constantScore(filter search.Query) search.Query {
	return search.Query{"constant_score": map[string]any{"filter": filter}}
}

// keywordClauses builds one constant-score clause per keyword over fields.
func keywordClauses(keywords []string, fuzziness int, fields []string) []any {
	clauses := make([]any, 0, len(keywords))
	for _, k := range keywords {
		clauses = append(clauses, constantScore(multiMatch(k, fuzziness, fields)))
	}
	return clauses
}

// ngramClauses matches every character of the joined keywords against the ngram
// sub-fields and the whole keywords against the other fields.
func ngramClauses(keywords []string, fuzziness int, fields []string) []any {
	var ngramFields, otherFields []string
	for _, f := range fields {
		if strings.HasSuffix(f, AnalyzerNgram.String()) {
			ngramFields = append(ngramFields, f)
		} else {
			otherFields = append(otherFields, f)
		}
	}

	// A group without fields is left out instead of widening to every field.
	clauses := []any{}
	if len(ngramFields) > 0 {
		var chars []string
		for _, c := range strings.Join(keywords, "") {
			chars = append(chars, string(c))
		}
		clauses = append(clauses, keywordClauses(chars, fuzziness, ngramFields)...)
	}
	if len(otherFields) > 0 {
		clauses = append(clauses, keywordClauses(keywords, fuzziness, otherFields)...)
	}
	return clauses
}

// buildMatchQuery turns a keyword string into a bool query. Field pairs naming a
// field outside fieldNames degrade to plain keywords.
func buildMatchQuery(
	keywords string,
	analyzer Analyzer,
	fields []string,
	fuzziness int,
	op BoolOp,
	fieldNames map[string]struct{},
) search.Query {
	kw := ParseKeywords(keywords)
	includes, restIncludes := splitKnown(kw.Includes, fieldNames)
	excludes, restExcludes := splitKnown(kw.Excludes, fieldNames)

	plain := make([]string, 0, len(kw.Remaining)+len(restIncludes)+len(restExcludes))
	plain = append(plain, kw.Remaining...)
	plain = append(plain, restIncludes...)
	plain = append(plain, restExcludes...)

	var clauses []any
	if analyzer == AnalyzerNgram {
		clauses = ngramClauses(plain, fuzziness, fields)
	} else {
		clauses = keywordClauses(plain, fuzziness, fields)
	}

	for _, inc := range includes {
		clauses = append(clauses, constantScore(search.Query{"multi_match": map[string]any{
			"query":     inc.Value,
			"fuzziness": fuzziness,
			"fields":    inc.Field + ".*",
		}}))
	}

	mustNot := make([]any, 0, len(excludes))
	for _, exc := range excludes {
		if exc.Value != "" {
			mustNot = append(mustNot, search.Query{"term": map[string]any{
				exc.Field + ".keyword": map[string]any{"value": exc.Value},
			}})
			continue
		}
		mustNot = append(mustNot, search.Query{"exists": map[string]any{"field": exc.Field}})
	}

	if clauses == nil {
		clauses = []any{}
	}
	return search.Query{"bool": map[string]any{
		op.String(): clauses,
		"must_not":   mustNot,
	}}
}

// fieldClauses builds the per-field clauses of an advanced search. The ngram
// analyzer matches every non-space character on its own.
func fieldClauses(matches []FieldMatch, fuzziness int) []any {
	var clauses []any
	for _, m := range matches {
		field := m.Field + "." + m.Analyzer.String()

		var terms []string
		if m.Analyzer == AnalyzerNgram {
			for _, c := range strings.ReplaceAll(m.Keywords, " ", "") {
				terms = append(terms, string(c))
			}
		} else {
			terms = strings.Fields(m.Keywords)
		}
		clauses = append(clauses, keywordClauses(terms, fuzziness, []string{field})...)
	}
	return clauses
}

func randomScore(query search.Query, seed int64, field string) search.Query {
	return search.Query{"function_score": map[string]any{
		"query":        query,
		"random_score": map[string]any{"seed": seed, "field": field},
	}}
}
