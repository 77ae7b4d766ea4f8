package query

import (
	"strings"
)

// FieldPair is a field=value term of a keyword string. Value is empty for a bare
// -field exclusion.
type FieldPair struct {
	Field string
	Value string
}

// Keywords is a parsed keyword string.
type Keywords struct {
	Includes []FieldPair
	Excludes []FieldPair

	// Remaining holds the free-text keywords. A double-quoted group is one keyword.
	Remaining []string
}

// ParseKeywords splits a keyword string into field includes (field=value), field
// excludes (-field=value or -field) and plain keywords. Double quotes group
// spaces into one term. Input with an unbalanced quote is taken literally as plain
// keywords.
func ParseKeywords(input string) Keywords {
	var kw Keywords
	if strings.Count(input, `"`)%2 == 1 {
		kw.Remaining = strings.Fields(input)
		return kw
	}

	p := keywordParser{kw: &kw}
	p.reset()
	for i, c := range []rune(input) {
		if i == 0 {
			switch c {
			case '-':
				p.included = false
			case '"':
				p.inQuotes = true
			default:
				p.name.WriteRune(c)
			}
			continue
		}

		switch {
		case c == ' ':
			if p.inQuotes {
				p.write(c)
				continue
			}
			p.flush()
		case c == '"':
			switch {
			case !p.inQuotes:
				p.inQuotes = true
			case !p.isName:
				p.flush()
			default:
				p.inQuotes = false
			}
		case c == '-' && p.name.Len() == 0:
			p.included = false
		case c == '=' && p.isName:
			p.isName = false
		default:
			p.write(c)
		}
	}
	p.flush()
	return kw
}

type keywordParser struct {
	kw *Keywords

	name  strings.Builder
	value strings.Builder

	included bool
	isName   bool
	inQuotes bool
}

func (p *keywordParser) write(c rune) {
	if p.isName {
		p.name.WriteRune(c)
		return
	}
	p.value.WriteRune(c)
}

// flush records the current term and starts a new one.
func (p *keywordParser) flush() {
	name := strings.TrimSpace(p.name.String())
	value := strings.TrimSpace(p.value.String())

	switch {
	case !p.isName:
		// field= with no value is dropped.
		if name != "" && value != "" {
			pair := FieldPair{Field: name, Value: value}
			if p.included {
				p.kw.Includes = append(p.kw.Includes, pair)
			} else {
				p.kw.Excludes = append(p.kw.Excludes, pair)
			}
		}
	case name == "":
	case !p.included:
		p.kw.Excludes = append(p.kw.Excludes, FieldPair{Field: name})
	default:
		p.kw.Remaining = append(p.kw.Remaining, name)
	}
	p.reset()
}

func (p *keywordParser) reset() {
	p.name.Reset()
	p.value.Reset()
	p.included = true
	p.isName = true
	p.inQuotes = false
}

// splitKnown keeps the pairs whose field is a mapped field name. The others fall
// back to plain keywords, field and value alike.
func splitKnown(pairs []FieldPair, fieldNames map[string]struct{}) ([]FieldPair, []string) {
	var known []FieldPair
	var rest []string
	for _, p := range pairs {
		if _, ok := fieldNames[p.Field]; ok {
			known = append(known, p)
			continue
		}
		rest = append(rest, p.Field)
		if p.Value != "" {
			rest = append(rest, p.Value)
		}
	}
	return known, rest
}
