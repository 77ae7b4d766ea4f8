// Package tag keeps the tag graph consistent across the relational store, which
// owns tokens and edges, and the search index, which holds one denormalized
// projection document per tag.
package tag

import (
	"errors"
	"slices"
	"strconv"

	"github.com/zetsubou/tagstore/pkg/storage"
)

var (
	// ErrSelfReference if a tag lists itself as a category, synonym or representative.
	ErrSelfReference = errors.New("tag references itself")

	// ErrWriteConflict if the projection changed between the read that computed a
	// delta and the write of the result.
	ErrWriteConflict = errors.New("tag projection was modified concurrently")

	// ErrProjectionWrite if the relational write committed but the projection could
	// not be written. The stores stay inconsistent until the next write or repair.
	ErrProjectionWrite = errors.New("tag projection write failed")
)

// NotFoundError returns the error for a tag that cannot be served.
func NotFoundError(id int64) error {
	return &storage.NotFoundError{Entity: "tag", ID: id}
}

// Spec is the desired state of one tag. A nil ID creates a new token, otherwise
// the token with that id is renamed to Name and its relationships replaced.
type Spec struct {
	ID               *int64
	Name             string
	CategoryIDs      []int64
	SynonymIDs       []int64
	RepresentativeID *int64
	Attributes       map[int64]string
}

// Projection is the search index document of a tag. It holds ids only.
type Projection struct {
	ID               int64            `json:"id"`
	CategoryIDs      []int64          `json:"category_ids"`
	SynonymIDs       []int64          `json:"synonym_ids"`
	RepresentativeID *int64           `json:"representative_id"`
	Attributes       map[int64]string `json:"attributes"`
}

func (p *Projection) docID() string {
	return docID(p.ID)
}

// references reports whether the projection links to token id.
func (p *Projection) references(id int64) bool {
	return slices.Contains(p.CategoryIDs, id) ||
		slices.Contains(p.SynonymIDs, id) ||
		(p.RepresentativeID != nil && *p.RepresentativeID == id)
}

// withoutReference returns a copy of p with every link to token id removed.
func (p *Projection) withoutReference(id int64) *Projection {
	out := *p
	out.CategoryIDs = slices.DeleteFunc(slices.Clone(p.CategoryIDs), func(v int64) bool { return v == id })
	out.SynonymIDs = slices.DeleteFunc(slices.Clone(p.SynonymIDs), func(v int64) bool { return v == id })
	if p.RepresentativeID != nil && *p.RepresentativeID == id {
		out.RepresentativeID = nil
	}
	return &out
}

func (p *Projection) equal(o *Projection) bool {
	if p.ID != o.ID ||
		!slices.Equal(p.CategoryIDs, o.CategoryIDs) ||
		!slices.Equal(p.SynonymIDs, o.SynonymIDs) ||
		(p.RepresentativeID == nil) != (o.RepresentativeID == nil) ||
		(p.RepresentativeID != nil && *p.RepresentativeID != *o.RepresentativeID) ||
		len(p.Attributes) != len(o.Attributes) {
		return false
	}
	for k, v := range p.Attributes {
		if ov, ok := o.Attributes[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// normalize sorts the id lists and makes empty collections non-nil so that
// projections compare and encode the same way whatever their origin.
func (p *Projection) normalize() {
	p.CategoryIDs = normalizeIDs(p.CategoryIDs)
	p.SynonymIDs = normalizeIDs(p.SynonymIDs)
	if p.Attributes == nil {
		p.Attributes = map[int64]string{}
	}
}

// Row is a projection joined with the name of its token.
type Row struct {
	Projection
	Name string `json:"name"`
}

// TokenRef is a resolved token.
type TokenRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AttributeValue is a resolved attribute of a tag.
type AttributeValue struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Interpretation is the display form of a tag with every id resolved to a name.
type Interpretation struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Categories     []TokenRef       `json:"categories"`
	Synonyms       []TokenRef       `json:"synonyms"`
	Representative *TokenRef        `json:"representative"`
	Attributes     []AttributeValue `json:"attributes"`
}

func minimalInterpretation(t *storage.Token) *Interpretation {
	return &Interpretation{
		ID:         t.ID,
		Name:       t.Name,
		Categories: []TokenRef{},
		Synonyms:   []TokenRef{},
		Attributes: []AttributeValue{},
	}
}

// normalizeIDs returns the unique ids in ascending order, never nil.
func normalizeIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		out = []int64{}
	}
	return out
}

// delta returns the ids of want missing from have and the ids of have missing
// from want. Both inputs are sorted and unique.
func delta(want, have []int64) (add, del []int64) {
	i, j := 0, 0
	for i < len(want) && j < len(have) {
		switch {
		case want[i] == have[j]:
			i++
			j++
		case want[i] < have[j]:
			add = append(add, want[i])
			i++
		default:
			del = append(del, have[j])
			j++
		}
	}
	add = append(add, want[i:]...)
	del = append(del, have[j:]...)
	return add, del
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func linkedIDs(edges []*storage.Edge) []int64 {
	ids := make([]int64, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.LinkedID)
	}
	return normalizeIDs(ids)
}

func sortedAttributeIDs(attrs map[int64]string) []int64 {
	ids := make([]int64, 0, len(attrs))
	for id := range attrs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
