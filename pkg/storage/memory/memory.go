package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"go.opentelemetry.io/otel"

	"github.com/zetsubou/tagstore/pkg/storage"
)

var tracer = otel.Tracer("tagstore/pkg/storage/memory")

// StorageOption defines a function type used for configuring a [MemoryBackend] instance.
type StorageOption func(dataStore *MemoryBackend)

// WithInitialTokenID makes generated token ids start at id. Tests use it to keep
// ids of different fixtures apart.
func WithInitialTokenID(id int64) StorageOption {
	return func(ds *MemoryBackend) {
		ds.state.nextTokenID = id
	}
}

// state is one immutable-after-commit version of the whole store.
type state struct {
	nextTokenID int64
	nextEdgeID  int64
	nextAttrID  int64

	tokens     *treemap.Map // int64 => string
	attributes *treemap.Map // int64 => string
	edges      map[storage.EdgeKind]map[int64]*storage.Edge
}

func newState() *state {
	s := &state{
		nextTokenID: 1,
		nextEdgeID:  1,
		nextAttrID:  1,
		tokens:      treemap.NewWith(utils.Int64Comparator),
		attributes:  treemap.NewWith(utils.Int64Comparator),
		edges:       make(map[storage.EdgeKind]map[int64]*storage.Edge, len(storage.EdgeKinds)),
	}
	for _, kind := range storage.EdgeKinds {
		s.edges[kind] = make(map[int64]*storage.Edge)
	}
	return s
}

func (s *state) clone() *state {
	c := newState()
	c.nextTokenID = s.nextTokenID
	c.nextEdgeID = s.nextEdgeID
	c.nextAttrID = s.nextAttrID

	it := s.tokens.Iterator()
	for it.Next() {
		c.tokens.Put(it.Key(), it.Value())
	}
	it = s.attributes.Iterator()
	for it.Next() {
		c.attributes.Put(it.Key(), it.Value())
	}
	for kind, edges := range s.edges {
		for id, e := range edges {
			cp := *e
			c.edges[kind][id] = &cp
		}
	}
	return c
}

func (s *state) token(id int64) (*storage.Token, bool) {
	v, ok := s.tokens.Get(id)
	if !ok {
		return nil, false
	}
	return &storage.Token{ID: id, Name: v.(string)}, true
}

func (s *state) attribute(id int64) (*storage.Attribute, bool) {
	v, ok := s.attributes.Get(id)
	if !ok {
		return nil, false
	}
	return &storage.Attribute{ID: id, Name: v.(string)}, true
}

func (s *state) allTokens() []*storage.Token {
	out := make([]*storage.Token, 0, s.tokens.Size())
	it := s.tokens.Iterator()
	for it.Next() {
		out = append(out, &storage.Token{ID: it.Key().(int64), Name: it.Value().(string)})
	}
	return out
}

func (s *state) findEdge(kind storage.EdgeKind, tokenID, linkedID int64) *storage.Edge {
	for _, e := range s.edges[kind] {
		if e.TokenID == tokenID && e.LinkedID == linkedID {
			return e
		}
	}
	return nil
}

func (s *state) edgesOf(kind storage.EdgeKind, tokenID int64) []*storage.Edge {
	var out []*storage.Edge
	for _, e := range s.edges[kind] {
		if e.TokenID == tokenID {
			cp := *e
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *storage.Edge) int {
		return cmp.Compare(a.LinkedID, b.LinkedID)
	})
	return out
}

func (s *state) attributeIDByName(name string) (int64, bool) {
	it := s.attributes.Iterator()
	for it.Next() {
		if it.Value().(string) == name {
			return it.Key().(int64), true
		}
	}
	return 0, false
}

// MemoryBackend provides an ephemeral memory-backed implementation of [storage.TagDatastore].
// Transactions work on a private copy of the state that replaces the shared one on
// commit, and at most one transaction is open at a time. These instances may be
// safely shared by multiple go-routines.
type MemoryBackend struct {
	mu    sync.RWMutex
	state *state // GUARDED_BY(mu)

	// txSlot holds a token while a transaction is open.
	txSlot chan struct{}
}

// Ensures that [MemoryBackend] implements the [storage.TagDatastore] interface.
var _ storage.TagDatastore = (*MemoryBackend)(nil)

// New creates a new [MemoryBackend] given the options.
func New(opts ...StorageOption) *MemoryBackend {
	ds := &MemoryBackend{
		state:  newState(),
		txSlot: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

func (s *MemoryBackend) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Close does not do anything for [MemoryBackend].
func (s *MemoryBackend) Close() {}

// IsReady see [storage.TagDatastore].IsReady.
func (s *MemoryBackend) IsReady(context.Context) (storage.ReadinessStatus, error) {
	return storage.ReadinessStatus{IsReady: true}, nil
}

// ReadToken see [storage.TokenReader].ReadToken.
func (s *MemoryBackend) ReadToken(ctx context.Context, id int64) (*storage.Token, error) {
	_, span := tracer.Start(ctx, "memory.ReadToken")
	defer span.End()

	t, ok := s.snapshot().token(id)
	if !ok {
		return nil, storage.TokenNotFoundError(id)
	}
	return t, nil
}

// ReadTokens see [storage.TokenReader].ReadTokens.
func (s *MemoryBackend) ReadTokens(ctx context.Context, ids []int64) (map[int64]*storage.Token, error) {
	_, span := tracer.Start(ctx, "memory.ReadTokens")
	defer span.End()

	st := s.snapshot()
	out := make(map[int64]*storage.Token, len(ids))
	for _, id := range ids {
		if t, ok := st.token(id); ok {
			out[id] = t
		}
	}
	return out, nil
}

// ReadTokensByName see [storage.TokenReader].ReadTokensByName.
func (s *MemoryBackend) ReadTokensByName(ctx context.Context, name string, opts storage.ListOptions) ([]*storage.Token, error) {
	_, span := tracer.Start(ctx, "memory.ReadTokensByName")
	defer span.End()

	var matched []*storage.Token
	for _, t := range s.snapshot().allTokens() {
		if t.Name == name {
			matched = append(matched, t)
		}
	}
	return paginate(matched, opts), nil
}

// ReadTokensWithPrefix see [storage.TokenReader].ReadTokensWithPrefix.
func (s *MemoryBackend) ReadTokensWithPrefix(ctx context.Context, prefix string, opts storage.ListOptions) ([]*storage.Token, error) {
	_, span := tracer.Start(ctx, "memory.ReadTokensWithPrefix")
	defer span.End()

	return s.tokensWithPrefix(s.snapshot(), prefix, nil, opts), nil
}

// ReadTokensWithPrefixInCategory see [storage.TokenReader].ReadTokensWithPrefixInCategory.
func (s *MemoryBackend) ReadTokensWithPrefixInCategory(ctx context.Context, prefix string, categoryID int64, opts storage.ListOptions) ([]*storage.Token, error) {
	_, span := tracer.Start(ctx, "memory.ReadTokensWithPrefixInCategory")
	defer span.End()

	st := s.snapshot()
	members := make(map[int64]struct{})
	for _, e := range st.edges[storage.EdgeCategory] {
		if e.LinkedID == categoryID {
			members[e.TokenID] = struct{}{}
		}
	}
	return s.tokensWithPrefix(st, prefix, members, opts), nil
}

func (s *MemoryBackend) tokensWithPrefix(st *state, prefix string, members map[int64]struct{}, opts storage.ListOptions) []*storage.Token {
	lower := strings.ToLower(prefix)
	var matched []*storage.Token
	for _, t := range st.allTokens() {
		if members != nil {
			if _, ok := members[t.ID]; !ok {
				continue
			}
		}
		if strings.HasPrefix(strings.ToLower(t.Name), lower) {
			matched = append(matched, t)
		}
	}
	slices.SortStableFunc(matched, func(a, b *storage.Token) int {
		return strings.Compare(a.Name, b.Name)
	})
	return paginate(matched, opts)
}

// ListTokens see [storage.TokenReader].ListTokens.
func (s *MemoryBackend) ListTokens(ctx context.Context, opts storage.ListOptions) ([]*storage.Token, error) {
	_, span := tracer.Start(ctx, "memory.ListTokens")
	defer span.End()

	return paginate(s.snapshot().allTokens(), opts), nil
}

// CountTokens see [storage.TokenReader].CountTokens.
func (s *MemoryBackend) CountTokens(context.Context) (int64, error) {
	return int64(s.snapshot().tokens.Size()), nil
}

// ReadEdges see [storage.EdgeReader].ReadEdges.
func (s *MemoryBackend) ReadEdges(ctx context.Context, kind storage.EdgeKind, tokenID int64) ([]*storage.Edge, error) {
	_, span := tracer.Start(ctx, "memory.ReadEdges")
	defer span.End()

	if !kind.Valid() {
		return nil, storage.InvalidEdgeError(kind, tokenID, 0)
	}
	return s.snapshot().edgesOf(kind, tokenID), nil
}

// ReadAttribute see [storage.AttributeBackend].ReadAttribute.
func (s *MemoryBackend) ReadAttribute(_ context.Context, id int64) (*storage.Attribute, error) {
	a, ok := s.snapshot().attribute(id)
	if !ok {
		return nil, storage.AttributeNotFoundError(id)
	}
	return a, nil
}

// ReadAttributes see [storage.AttributeBackend].ReadAttributes.
func (s *MemoryBackend) ReadAttributes(_ context.Context, ids []int64) (map[int64]*storage.Attribute, error) {
	st := s.snapshot()
	out := make(map[int64]*storage.Attribute, len(ids))
	for _, id := range ids {
		if a, ok := st.attribute(id); ok {
			out[id] = a
		}
	}
	return out, nil
}

// ReadAttributeByName see [storage.AttributeBackend].ReadAttributeByName.
func (s *MemoryBackend) ReadAttributeByName(_ context.Context, name string) (*storage.Attribute, error) {
	name = storage.NormalizeAttributeName(name)
	st := s.snapshot()
	id, ok := st.attributeIDByName(name)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Attribute{ID: id, Name: name}, nil
}

// ListAttributes see [storage.AttributeBackend].ListAttributes.
func (s *MemoryBackend) ListAttributes(_ context.Context, opts storage.ListOptions) ([]*storage.Attribute, error) {
	st := s.snapshot()
	out := make([]*storage.Attribute, 0, st.attributes.Size())
	it := st.attributes.Iterator()
	for it.Next() {
		out = append(out, &storage.Attribute{ID: it.Key().(int64), Name: it.Value().(string)})
	}
	return paginate(out, opts), nil
}

// CountAttributes see [storage.AttributeBackend].CountAttributes.
func (s *MemoryBackend) CountAttributes(context.Context) (int64, error) {
	return int64(s.snapshot().attributes.Size()), nil
}

// CreateAttribute see [storage.AttributeBackend].CreateAttribute.
func (s *MemoryBackend) CreateAttribute(ctx context.Context, name string) (*storage.Attribute, error) {
	name = storage.NormalizeAttributeName(name)
	if err := storage.ValidateName(name, storage.MaxAttributeNameLength); err != nil {
		return nil, err
	}

	var created *storage.Attribute
	err := s.update(ctx, func(st *state) error {
		if _, ok := st.attributeIDByName(name); ok {
			return storage.ErrCollision
		}
		created = &storage.Attribute{ID: st.nextAttrID, Name: name}
		st.attributes.Put(created.ID, name)
		st.nextAttrID++
		return nil
	})
	return created, err
}

// RenameAttribute see [storage.AttributeBackend].RenameAttribute.
func (s *MemoryBackend) RenameAttribute(ctx context.Context, id int64, name string) error {
	name = storage.NormalizeAttributeName(name)
	if err := storage.ValidateName(name, storage.MaxAttributeNameLength); err != nil {
		return err
	}

	return s.update(ctx, func(st *state) error {
		if _, ok := st.attribute(id); !ok {
			return storage.AttributeNotFoundError(id)
		}
		if other, ok := st.attributeIDByName(name); ok && other != id {
			return storage.ErrCollision
		}
		st.attributes.Put(id, name)
		return nil
	})
}

// DeleteAttribute see [storage.AttributeBackend].DeleteAttribute.
func (s *MemoryBackend) DeleteAttribute(ctx context.Context, id int64) error {
	return s.update(ctx, func(st *state) error {
		if _, ok := st.attribute(id); !ok {
			return storage.AttributeNotFoundError(id)
		}
		st.attributes.Remove(id)
		return nil
	})
}

// update applies fn in its own transaction.
func (s *MemoryBackend) update(ctx context.Context, fn func(st *state) error) error {
	return storage.RunInTx(ctx, s, func(tx storage.TagTx) error {
		return fn(tx.(*memoryTx).st)
	})
}

// BeginTx see [storage.TagDatastore].BeginTx.
func (s *MemoryBackend) BeginTx(ctx context.Context) (storage.TagTx, error) {
	select {
	case s.txSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &memoryTx{backend: s, st: s.snapshot().clone()}, nil
}

type memoryTx struct {
	backend *MemoryBackend
	st      *state
	closed  bool
}

var _ storage.TagTx = (*memoryTx)(nil)

func (t *memoryTx) release() {
	t.closed = true
	<-t.backend.txSlot
}

func (t *memoryTx) Commit() error {
	if t.closed {
		return storage.ErrTransactionClosed
	}
	t.backend.mu.Lock()
	t.backend.state = t.st
	t.backend.mu.Unlock()
	t.release()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.closed {
		return nil
	}
	t.release()
	return nil
}

func (t *memoryTx) check() error {
	if t.closed {
		return storage.ErrTransactionClosed
	}
	return nil
}

func (t *memoryTx) ReadToken(_ context.Context, id int64) (*storage.Token, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	tok, ok := t.st.token(id)
	if !ok {
		return nil, storage.TokenNotFoundError(id)
	}
	return tok, nil
}

func (t *memoryTx) CreateToken(_ context.Context, name string) (*storage.Token, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if err := storage.ValidateName(name, storage.MaxTokenNameLength); err != nil {
		return nil, err
	}
	tok := &storage.Token{ID: t.st.nextTokenID, Name: name}
	t.st.tokens.Put(tok.ID, name)
	t.st.nextTokenID++
	return tok, nil
}

func (t *memoryTx) RenameToken(_ context.Context, id int64, name string) error {
	if err := t.check(); err != nil {
		return err
	}
	if err := storage.ValidateName(name, storage.MaxTokenNameLength); err != nil {
		return err
	}
	if _, ok := t.st.token(id); !ok {
		return storage.TokenNotFoundError(id)
	}
	t.st.tokens.Put(id, name)
	return nil
}

func (t *memoryTx) DeleteToken(_ context.Context, id int64) error {
	if err := t.check(); err != nil {
		return err
	}
	t.st.tokens.Remove(id)
	for _, edges := range t.st.edges {
		for edgeID, e := range edges {
			if e.TokenID == id || e.LinkedID == id {
				delete(edges, edgeID)
			}
		}
	}
	return nil
}

func (t *memoryTx) ReadEdge(_ context.Context, kind storage.EdgeKind, tokenID, linkedID int64) (*storage.Edge, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	e := t.st.findEdge(kind, tokenID, linkedID)
	if e == nil {
		return nil, storage.EdgeNotFoundError(kind, linkedID)
	}
	cp := *e
	return &cp, nil
}

func (t *memoryTx) ReadEdges(_ context.Context, kind storage.EdgeKind, tokenID int64) ([]*storage.Edge, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, storage.InvalidEdgeError(kind, tokenID, 0)
	}
	return t.st.edgesOf(kind, tokenID), nil
}

func (t *memoryTx) validateLink(kind storage.EdgeKind, tokenID, linkedID int64) error {
	if !kind.Valid() || tokenID == linkedID {
		return storage.InvalidEdgeError(kind, tokenID, linkedID)
	}
	if _, ok := t.st.token(tokenID); !ok {
		return storage.TokenNotFoundError(tokenID)
	}
	if _, ok := t.st.token(linkedID); !ok {
		return storage.TokenNotFoundError(linkedID)
	}
	return nil
}

func (t *memoryTx) WriteEdge(_ context.Context, kind storage.EdgeKind, tokenID, linkedID int64) (*storage.Edge, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if err := t.validateLink(kind, tokenID, linkedID); err != nil {
		return nil, err
	}
	if t.st.findEdge(kind, tokenID, linkedID) != nil {
		return nil, storage.ErrCollision
	}
	if kind == storage.EdgeRepresentative && len(t.st.edgesOf(kind, tokenID)) > 0 {
		return nil, storage.ErrCollision
	}

	e := &storage.Edge{ID: t.st.nextEdgeID, Kind: kind, TokenID: tokenID, LinkedID: linkedID}
	t.st.edges[kind][e.ID] = e
	t.st.nextEdgeID++
	cp := *e
	return &cp, nil
}

func (t *memoryTx) UpdateEdgeLink(_ context.Context, kind storage.EdgeKind, edgeID, linkedID int64) error {
	if err := t.check(); err != nil {
		return err
	}
	if !kind.Valid() {
		return storage.InvalidEdgeError(kind, 0, linkedID)
	}
	e, ok := t.st.edges[kind][edgeID]
	if !ok {
		return storage.EdgeNotFoundError(kind, edgeID)
	}
	if e.LinkedID == linkedID {
		return nil
	}
	if err := t.validateLink(kind, e.TokenID, linkedID); err != nil {
		return err
	}
	if t.st.findEdge(kind, e.TokenID, linkedID) != nil {
		return storage.ErrCollision
	}
	e.LinkedID = linkedID
	return nil
}

func (t *memoryTx) DeleteEdge(_ context.Context, kind storage.EdgeKind, tokenID, linkedID int64) error {
	if err := t.check(); err != nil {
		return err
	}
	if e := t.st.findEdge(kind, tokenID, linkedID); e != nil {
		delete(t.st.edges[kind], e.ID)
	}
	return nil
}

func (t *memoryTx) DeleteEdges(_ context.Context, kind storage.EdgeKind, tokenID int64) error {
	if err := t.check(); err != nil {
		return err
	}
	for id, e := range t.st.edges[kind] {
		if e.TokenID == tokenID {
			delete(t.st.edges[kind], id)
		}
	}
	return nil
}

func (t *memoryTx) ReadAttribute(_ context.Context, id int64) (*storage.Attribute, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	a, ok := t.st.attribute(id)
	if !ok {
		return nil, storage.AttributeNotFoundError(id)
	}
	return a, nil
}

// paginate applies ordering direction, skip and limit to rows already sorted
// ascending.
func paginate[T any](rows []T, opts storage.ListOptions) []T {
	opts = opts.WithDefaults()
	if opts.Desc {
		rows = slices.Clone(rows)
		slices.Reverse(rows)
	}
	if opts.Skip >= len(rows) {
		return nil
	}
	rows = rows[opts.Skip:]
	if len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows
}
