package memory

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/zetsubou/tagstore/pkg/search"
)

type sortKey struct {
	field string
	desc  bool
}

type sortKeys []sortKey

// parseSort reads a sort specification. An empty one sorts by descending score.
func parseSort(spec []any) (sortKeys, error) {
	if len(spec) == 0 {
		return sortKeys{{field: "_score", desc: true}}, nil
	}
	keys := make(sortKeys, 0, len(spec))
	for _, s := range spec {
		switch t := s.(type) {
		case string:
			keys = append(keys, sortKey{field: t, desc: t == "_score"})
		case map[string]any:
			for field, opts := range t {
				key := sortKey{field: field, desc: field == "_score"}
				switch o := opts.(type) {
				case string:
					key.desc = strings.EqualFold(o, "desc")
				case map[string]any:
					if order, ok := o["order"].(string); ok {
						key.desc = strings.EqualFold(order, "desc")
					}
				default:
					return nil, search.MalformedQueryError("sort options for %s must be a string or an object", field)
				}
				keys = append(keys, key)
			}
		default:
			return nil, search.MalformedQueryError("sort entries must be strings or objects, got %T", s)
		}
	}
	return keys, nil
}

// values returns the sort values of s. A trailing index-order value breaks ties so
// that search_after always lands on a unique position.
func (k sortKeys) values(s *scored) []any {
	out := make([]any, 0, len(k)+1)
	for _, key := range k {
		switch key.field {
		case "_score":
			out = append(out, s.score)
		case "_doc":
			out = append(out, float64(s.doc.pos))
		default:
			values := fieldValues(s.doc, key.field)
			if len(values) == 0 {
				out = append(out, nil)
				continue
			}
			out = append(out, values[0])
		}
	}
	return append(out, float64(s.doc.pos))
}

func compareValues(keys sortKeys, a, b []any) int {
	for i := range min(len(a), len(b)) {
		desc := i < len(keys) && keys[i].desc
		if c := compareValue(a[i], b[i], desc); c != 0 {
			return c
		}
	}
	return 0
}

// compareValue orders numbers before strings, with missing values last whatever
// the direction.
func compareValue(a, b any, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	var c int
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	switch {
	case aNum && bNum:
		c = cmp.Compare(af, bf)
	case aNum:
		c = -1
	case bNum:
		c = 1
	default:
		c = strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
	if desc {
		return -c
	}
	return c
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
