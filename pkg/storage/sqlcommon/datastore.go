package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"

	sq "github.com/Masterminds/squirrel"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zetsubou/tagstore/pkg/logger"
	"github.com/zetsubou/tagstore/pkg/storage"
)

var tracer = otel.Tracer("tagstore/pkg/storage/sqlcommon")

const (
	tokenTable     = "tag_token"
	attributeTable = "tag_attribute"
)

// Datastore implements [storage.TagDatastore] on top of a [DBInfo].
type Datastore struct {
	*DBInfo

	logger           logger.Logger
	dbStatsCollector prometheus.Collector
	versionReady     atomic.Bool
}

// Ensures that Datastore implements the TagDatastore interface.
var _ storage.TagDatastore = (*Datastore)(nil)

// NewDatastore wraps info. collector, when not nil, is unregistered on Close.
func NewDatastore(info *DBInfo, cfg *Config, collector prometheus.Collector) *Datastore {
	return &Datastore{
		DBInfo:           info,
		logger:           cfg.Logger,
		dbStatsCollector: collector,
	}
}

func (d *Datastore) startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, d.dialect+"."+name)
}

// DB returns the underlying connection pool.
func (d *Datastore) DB() *sql.DB {
	return d.db
}

// Close see [storage.TagDatastore].Close.
func (d *Datastore) Close() {
	if d.dbStatsCollector != nil {
		prometheus.Unregister(d.dbStatsCollector)
	}
	d.db.Close()
}

// IsReady see [IsReady].
func (d *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	status, err := IsReady(ctx, d.versionReady.Load(), d.db)
	if err != nil {
		return status, err
	}
	d.versionReady.Store(status.IsReady)
	return status, nil
}

// ReadToken see [storage.TokenReader].ReadToken.
func (d *Datastore) ReadToken(ctx context.Context, id int64) (*storage.Token, error) {
	ctx, span := d.startTrace(ctx, "ReadToken")
	defer span.End()

	return readToken(ctx, d.DBInfo, d.stbl, id)
}

func readToken(ctx context.Context, info *DBInfo, stbl sq.StatementBuilderType, id int64) (*storage.Token, error) {
	var tok storage.Token
	err := stbl.
		Select("id", "name").
		From(tokenTable).
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&tok.ID, &tok.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.TokenNotFoundError(id)
		}
		return nil, info.handleSQLError(err)
	}
	return &tok, nil
}

// ReadTokens see [storage.TokenReader].ReadTokens.
func (d *Datastore) ReadTokens(ctx context.Context, ids []int64) (map[int64]*storage.Token, error) {
	ctx, span := d.startTrace(ctx, "ReadTokens")
	defer span.End()

	out := make(map[int64]*storage.Token, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	tokens, err := d.queryTokens(ctx, d.stbl.
		Select("id", "name").
		From(tokenTable).
		Where(sq.Eq{"id": storage.UniqueIDs(ids)}))
	if err != nil {
		return nil, err
	}
	for _, tok := range tokens {
		out[tok.ID] = tok
	}
	return out, nil
}

// ReadTokensByName see [storage.TokenReader].ReadTokensByName.
func (d *Datastore) ReadTokensByName(ctx context.Context, name string, opts storage.ListOptions) ([]*storage.Token, error) {
	ctx, span := d.startTrace(ctx, "ReadTokensByName")
	defer span.End()

	sb := d.stbl.
		Select("id", "name").
		From(tokenTable).
		Where(sq.Eq{"name": name})
	return d.queryTokens(ctx, paginate(sb, opts, "id"))
}

// ReadTokensWithPrefix see [storage.TokenReader].ReadTokensWithPrefix.
func (d *Datastore) ReadTokensWithPrefix(ctx context.Context, prefix string, opts storage.ListOptions) ([]*storage.Token, error) {
	ctx, span := d.startTrace(ctx, "ReadTokensWithPrefix")
	defer span.End()

	sb := d.stbl.
		Select("id", "name").
		From(tokenTable).
		Where("LOWER(name) LIKE ? ESCAPE '!'", prefixPattern(prefix))
	return d.queryTokens(ctx, paginate(sb, opts, "name", "id"))
}

// ReadTokensWithPrefixInCategory see [storage.TokenReader].ReadTokensWithPrefixInCategory.
func (d *Datastore) ReadTokensWithPrefixInCategory(ctx context.Context, prefix string, categoryID int64, opts storage.ListOptions) ([]*storage.Token, error) {
	ctx, span := d.startTrace(ctx, "ReadTokensWithPrefixInCategory")
	defer span.End()

	sb := d.stbl.
		Select("t.id", "t.name").
		From(tokenTable + " t").
		Join(storage.EdgeCategory.Table() + " c ON c.token_id = t.id").
		Where(sq.Eq{"c.linked_id": categoryID}).
		Where("LOWER(t.name) LIKE ? ESCAPE '!'", prefixPattern(prefix))
	return d.queryTokens(ctx, paginate(sb, opts, "t.name", "t.id"))
}

// ListTokens see [storage.TokenReader].ListTokens.
func (d *Datastore) ListTokens(ctx context.Context, opts storage.ListOptions) ([]*storage.Token, error) {
	ctx, span := d.startTrace(ctx, "ListTokens")
	defer span.End()

	sb := d.stbl.Select("id", "name").From(tokenTable)
	return d.queryTokens(ctx, paginate(sb, opts, "id"))
}

// CountTokens see [storage.TokenReader].CountTokens.
func (d *Datastore) CountTokens(ctx context.Context) (int64, error) {
	ctx, span := d.startTrace(ctx, "CountTokens")
	defer span.End()

	return d.count(ctx, tokenTable)
}

func (d *Datastore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := d.stbl.Select("COUNT(*)").From(table).QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, d.handleSQLError(err)
	}
	return n, nil
}

func (d *Datastore) queryTokens(ctx context.Context, sb sq.SelectBuilder) ([]*storage.Token, error) {
	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, d.handleSQLError(err)
	}
	defer rows.Close()

	var out []*storage.Token
	for rows.Next() {
		var tok storage.Token
		if err := rows.Scan(&tok.ID, &tok.Name); err != nil {
			return nil, d.handleSQLError(err)
		}
		out = append(out, &tok)
	}
	if err := rows.Err(); err != nil {
		return nil, d.handleSQLError(err)
	}
	return out, nil
}

// ReadEdges see [storage.EdgeReader].ReadEdges.
func (d *Datastore) ReadEdges(ctx context.Context, kind storage.EdgeKind, tokenID int64) ([]*storage.Edge, error) {
	ctx, span := d.startTrace(ctx, "ReadEdges")
	defer span.End()

	return readEdges(ctx, d.DBInfo, d.stbl, kind, tokenID)
}

func readEdges(ctx context.Context, info *DBInfo, stbl sq.StatementBuilderType, kind storage.EdgeKind, tokenID int64) ([]*storage.Edge, error) {
	if !kind.Valid() {
		return nil, storage.InvalidEdgeError(kind, tokenID, 0)
	}

	rows, err := stbl.
		Select("id", "token_id", "linked_id").
		From(kind.Table()).
		Where(sq.Eq{"token_id": tokenID}).
		OrderBy("linked_id").
		QueryContext(ctx)
	if err != nil {
		return nil, info.handleSQLError(err)
	}
	defer rows.Close()

	var out []*storage.Edge
	for rows.Next() {
		e := storage.Edge{Kind: kind}
		if err := rows.Scan(&e.ID, &e.TokenID, &e.LinkedID); err != nil {
			return nil, info.handleSQLError(err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, info.handleSQLError(err)
	}
	return out, nil
}

// ReadAttribute see [storage.AttributeBackend].ReadAttribute.
func (d *Datastore) ReadAttribute(ctx context.Context, id int64) (*storage.Attribute, error) {
	ctx, span := d.startTrace(ctx, "ReadAttribute")
	defer span.End()

	return readAttribute(ctx, d.DBInfo, d.stbl, sq.Eq{"id": id}, storage.AttributeNotFoundError(id))
}

func readAttribute(ctx context.Context, info *DBInfo, stbl sq.StatementBuilderType, where sq.Eq, notFound error) (*storage.Attribute, error) {
	var a storage.Attribute
	err := stbl.
		Select("id", "name").
		From(attributeTable).
		Where(where).
		QueryRowContext(ctx).
		Scan(&a.ID, &a.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound
		}
		return nil, info.handleSQLError(err)
	}
	return &a, nil
}

// ReadAttributes see [storage.AttributeBackend].ReadAttributes.
func (d *Datastore) ReadAttributes(ctx context.Context, ids []int64) (map[int64]*storage.Attribute, error) {
	ctx, span := d.startTrace(ctx, "ReadAttributes")
	defer span.End()

	out := make(map[int64]*storage.Attribute, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	attrs, err := d.queryAttributes(ctx, d.stbl.
		Select("id", "name").
		From(attributeTable).
		Where(sq.Eq{"id": storage.UniqueIDs(ids)}))
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		out[a.ID] = a
	}
	return out, nil
}

// ReadAttributeByName see [storage.AttributeBackend].ReadAttributeByName.
func (d *Datastore) ReadAttributeByName(ctx context.Context, name string) (*storage.Attribute, error) {
	ctx, span := d.startTrace(ctx, "ReadAttributeByName")
	defer span.End()

	name = storage.NormalizeAttributeName(name)
	return readAttribute(ctx, d.DBInfo, d.stbl, sq.Eq{"name": name}, storage.ErrNotFound)
}

// ListAttributes see [storage.AttributeBackend].ListAttributes.
func (d *Datastore) ListAttributes(ctx context.Context, opts storage.ListOptions) ([]*storage.Attribute, error) {
	ctx, span := d.startTrace(ctx, "ListAttributes")
	defer span.End()

	sb := d.stbl.Select("id", "name").From(attributeTable)
	return d.queryAttributes(ctx, paginate(sb, opts, "id"))
}

// CountAttributes see [storage.AttributeBackend].CountAttributes.
func (d *Datastore) CountAttributes(ctx context.Context) (int64, error) {
	ctx, span := d.startTrace(ctx, "CountAttributes")
	defer span.End()

	return d.count(ctx, attributeTable)
}

// CreateAttribute see [storage.AttributeBackend].CreateAttribute.
func (d *Datastore) CreateAttribute(ctx context.Context, name string) (*storage.Attribute, error) {
	ctx, span := d.startTrace(ctx, "CreateAttribute")
	defer span.End()

	name = storage.NormalizeAttributeName(name)
	if err := storage.ValidateName(name, storage.MaxAttributeNameLength); err != nil {
		return nil, err
	}

	id, err := d.insertID(ctx, d.stbl.
		Insert(attributeTable).
		Columns("name").
		Values(name))
	if err != nil {
		return nil, d.handleSQLError(err)
	}
	return &storage.Attribute{ID: id, Name: name}, nil
}

// RenameAttribute see [storage.AttributeBackend].RenameAttribute.
func (d *Datastore) RenameAttribute(ctx context.Context, id int64, name string) error {
	ctx, span := d.startTrace(ctx, "RenameAttribute")
	defer span.End()

	name = storage.NormalizeAttributeName(name)
	if err := storage.ValidateName(name, storage.MaxAttributeNameLength); err != nil {
		return err
	}

	affected, err := d.exec(ctx, d.stbl.
		Update(attributeTable).
		Set("name", name).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return d.handleSQLError(err)
	}
	if affected == 0 {
		// MySQL reports zero affected rows when the name did not change.
		_, err := d.ReadAttribute(ctx, id)
		return err
	}
	return nil
}

// DeleteAttribute see [storage.AttributeBackend].DeleteAttribute.
func (d *Datastore) DeleteAttribute(ctx context.Context, id int64) error {
	ctx, span := d.startTrace(ctx, "DeleteAttribute")
	defer span.End()

	affected, err := d.exec(ctx, d.stbl.
		Delete(attributeTable).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return d.handleSQLError(err)
	}
	if affected == 0 {
		return storage.AttributeNotFoundError(id)
	}
	return nil
}

func (d *Datastore) queryAttributes(ctx context.Context, sb sq.SelectBuilder) ([]*storage.Attribute, error) {
	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, d.handleSQLError(err)
	}
	defer rows.Close()

	var out []*storage.Attribute
	for rows.Next() {
		var a storage.Attribute
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, d.handleSQLError(err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, d.handleSQLError(err)
	}
	return out, nil
}

// BeginTx see [storage.TagDatastore].BeginTx.
func (d *Datastore) BeginTx(ctx context.Context) (storage.TagTx, error) {
	var tx *sql.Tx
	err := d.retry(func() error {
		var err error
		tx, err = d.db.BeginTx(ctx, nil)
		return err
	})
	if err != nil {
		return nil, d.handleSQLError(err)
	}

	return &sqlTx{
		info: d.DBInfo,
		tx:   tx,
		stbl: d.stbl.RunWith(tx),
	}, nil
}

// paginate orders sb by columns, ascending or descending as a whole, and applies
// skip and limit.
func paginate(sb sq.SelectBuilder, opts storage.ListOptions, columns ...string) sq.SelectBuilder {
	opts = opts.WithDefaults()
	for _, col := range columns {
		if opts.Desc {
			col += " DESC"
		}
		sb = sb.OrderBy(col)
	}
	sb = sb.Limit(uint64(opts.Limit))
	if opts.Skip > 0 {
		sb = sb.Offset(uint64(opts.Skip))
	}
	return sb
}
