package memory

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/zetsubou/tagstore/pkg/search"
)

// analyzerSuffixes are sub-field names that resolve to their base field, the way a
// multi-field mapping indexes one source value under several analyzers.
var analyzerSuffixes = map[string]struct{}{
	"*":        {},
	"keyword":  {},
	"default":  {},
	"ngram":    {},
	"standard": {},
	"synonym":  {},
	"url":      {},
}

// normalize turns a query built from Go values into its generic JSON form.
func normalize(q search.Query) (map[string]any, error) {
	if len(q) == 0 {
		return map[string]any{"match_all": map[string]any{}}, nil
	}
	b, err := json.Marshal(q)
	if err != nil {
		return nil, search.MalformedQueryError("%v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, search.MalformedQueryError("%v", err)
	}
	return out, nil
}

func normalizeValues(values []any) ([]any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, search.MalformedQueryError("search_after: %v", err)
	}
	var out []any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, search.MalformedQueryError("search_after: %v", err)
	}
	return out, nil
}

func single(q map[string]any) (string, any, error) {
	if len(q) != 1 {
		return "", nil, search.MalformedQueryError("query clause must have exactly one key, got %d", len(q))
	}
	for k, v := range q {
		return k, v, nil
	}
	panic("unreachable")
}

func asObject(v any, clause string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, search.MalformedQueryError("%s expects an object", clause)
	}
	return m, nil
}

func asClauses(v any, clause string) ([]map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			m, err := asObject(e, clause)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, search.MalformedQueryError("%s expects an object or a list", clause)
	}
}

// match reports whether d satisfies q and its relevance score.
func match(q map[string]any, d *document) (bool, float64, error) {
	kind, body, err := single(q)
	if err != nil {
		return false, 0, err
	}

	switch kind {
	case "match_all":
		return true, 1, nil

	case "ids":
		m, err := asObject(body, kind)
		if err != nil {
			return false, 0, err
		}
		values, _ := m["values"].([]any)
		for _, v := range values {
			if scalarString(v) == d.id {
				return true, 1, nil
			}
		}
		return false, 0, nil

	case "term":
		m, err := asObject(body, kind)
		if err != nil {
			return false, 0, err
		}
		field, spec, err := single(m)
		if err != nil {
			return false, 0, err
		}
		want := spec
		if obj, ok := spec.(map[string]any); ok {
			want = obj["value"]
		}
		return containsTerm(fieldValues(d, field), want), 1, nil

	case "terms":
		m, err := asObject(body, kind)
		if err != nil {
			return false, 0, err
		}
		delete(m, "boost")
		field, spec, err := single(m)
		if err != nil {
			return false, 0, err
		}
		wants, ok := spec.([]any)
		if !ok {
			return false, 0, search.MalformedQueryError("terms expects a list of values")
		}
		values := fieldValues(d, field)
		for _, w := range wants {
			if containsTerm(values, w) {
				return true, 1, nil
			}
		}
		return false, 0, nil

	case "exists":
		m, err := asObject(body, kind)
		if err != nil {
			return false, 0, err
		}
		field, _ := m["field"].(string)
		return len(fieldValues(d, field)) > 0, 1, nil

	case "multi_match":
		return multiMatch(body, d)

	case "constant_score":
		m, err := asObject(body, kind)
		if err != nil {
			return false, 0, err
		}
		filter, err := asObject(m["filter"], "constant_score.filter")
		if err != nil {
			return false, 0, err
		}
		ok, _, err := match(filter, d)
		if err != nil || !ok {
			return false, 0, err
		}
		boost := 1.0
		if b, ok := m["boost"].(float64); ok {
			boost = b
		}
		return true, boost, nil

	case "bool":
		return boolMatch(body, d)

	case "function_score":
		return functionScore(body, d)

	default:
		return false, 0, search.MalformedQueryError("unsupported query %q", kind)
	}
}

func boolMatch(body any, d *document) (bool, float64, error) {
	m, err := asObject(body, "bool")
	if err != nil {
		return false, 0, err
	}
	clauses := make(map[string][]map[string]any, 4)
	for _, occur := range []string{"must", "filter", "should", "must_not"} {
		if clauses[occur], err = asClauses(m[occur], "bool."+occur); err != nil {
			return false, 0, err
		}
	}

	var score float64
	for _, c := range clauses["must"] {
		ok, s, err := match(c, d)
		if err != nil || !ok {
			return false, 0, err
		}
		score += s
	}
	for _, c := range clauses["filter"] {
		ok, _, err := match(c, d)
		if err != nil || !ok {
			return false, 0, err
		}
	}
	for _, c := range clauses["must_not"] {
		ok, _, err := match(c, d)
		if err != nil {
			return false, 0, err
		}
		if ok {
			return false, 0, nil
		}
	}

	minShould := 0
	if len(clauses["must"]) == 0 && len(clauses["filter"]) == 0 && len(clauses["should"]) > 0 {
		minShould = 1
	}
	if v, ok := m["minimum_should_match"].(float64); ok {
		minShould = int(v)
	}
	matchedShould := 0
	for _, c := range clauses["should"] {
		ok, s, err := match(c, d)
		if err != nil {
			return false, 0, err
		}
		if ok {
			matchedShould++
			score += s
		}
	}
	if matchedShould < minShould {
		return false, 0, nil
	}
	return true, score, nil
}

// multiMatch is a case-insensitive substring match of any query term against any
// of the fields. Fuzziness is accepted and ignored.
func multiMatch(body any, d *document) (bool, float64, error) {
	m, err := asObject(body, "multi_match")
	if err != nil {
		return false, 0, err
	}
	query := strings.ToLower(fmt.Sprint(m["query"]))
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return false, 0, nil
	}

	var fields []string
	switch f := m["fields"].(type) {
	case string:
		fields = []string{f}
	case []any:
		for _, e := range f {
			fields = append(fields, fmt.Sprint(e))
		}
	case nil:
		fields = []string{"*"}
	default:
		return false, 0, search.MalformedQueryError("multi_match.fields must be a string or a list")
	}

	var score float64
	for _, field := range fields {
		var values []any
		if field == "*" {
			values = leaves(d.source)
		} else {
			values = fieldValues(d, field)
		}
		for _, v := range values {
			text := strings.ToLower(fmt.Sprint(v))
			for _, t := range terms {
				if strings.Contains(text, t) {
					score++
				}
			}
		}
	}
	return score > 0, score, nil
}

func functionScore(body any, d *document) (bool, float64, error) {
	m, err := asObject(body, "function_score")
	if err != nil {
		return false, 0, err
	}
	inner := map[string]any{"match_all": map[string]any{}}
	if q, ok := m["query"]; ok {
		if inner, err = asObject(q, "function_score.query"); err != nil {
			return false, 0, err
		}
	}
	ok, score, err := match(inner, d)
	if err != nil || !ok {
		return false, 0, err
	}

	random, ok := m["random_score"]
	if !ok {
		return true, score, nil
	}
	rs, err := asObject(random, "random_score")
	if err != nil {
		return false, 0, err
	}
	seed := fmt.Sprint(rs["seed"])
	value := d.id
	if field, ok := rs["field"].(string); ok {
		if values := fieldValues(d, field); len(values) > 0 {
			value = scalarString(values[0])
		}
	}
	r := float64(xxhash.Sum64String(seed+"\x00"+value)) / math.MaxUint64
	if score == 0 {
		score = 1
	}
	return true, score * r, nil
}

func containsTerm(values []any, want any) bool {
	target := scalarString(want)
	for _, v := range values {
		if scalarString(v) == target {
			return true
		}
	}
	return false
}

// scalarString formats a JSON scalar so that 3, 3.0 and "3" compare equal.
func scalarString(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// fieldValues resolves a dotted field path to the scalar values beneath it. A path
// ending in an analyzer sub-field, such as name.keyword or attributes.*, resolves
// to its base field.
func fieldValues(d *document, field string) []any {
	if field == "" {
		return nil
	}
	if field == "id" || field == "_id" {
		if v, ok := lookup(d.source, "id"); ok {
			return flatten(v)
		}
		return []any{d.id}
	}
	if v, ok := lookup(d.source, field); ok {
		return flatten(v)
	}
	if dot := strings.LastIndexByte(field, '.'); dot > 0 {
		if _, ok := analyzerSuffixes[field[dot+1:]]; ok {
			return fieldValues(d, field[:dot])
		}
	}
	return nil
}

func lookup(node map[string]any, path string) (any, bool) {
	if v, ok := node[path]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	if !found {
		return nil, false
	}
	child, ok := node[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return lookup(child, rest)
}

func flatten(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		var out []any
		for _, e := range t {
			out = append(out, flatten(e)...)
		}
		return out
	case map[string]any:
		return leaves(t)
	default:
		return []any{t}
	}
}

func leaves(node map[string]any) []any {
	var out []any
	for _, v := range node {
		out = append(out, flatten(v)...)
	}
	return out
}
