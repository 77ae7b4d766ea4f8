package sqlcommon

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/zetsubou/tagstore/pkg/storage"
)

// sqlTx implements [storage.TagTx] on a database transaction.
type sqlTx struct {
	info *DBInfo
	tx   *sql.Tx
	stbl sq.StatementBuilderType
}

var _ storage.TagTx = (*sqlTx)(nil)

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return t.info.handleSQLError(err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return t.info.handleSQLError(err)
	}
	return nil
}

func (t *sqlTx) ReadToken(ctx context.Context, id int64) (*storage.Token, error) {
	return readToken(ctx, t.info, t.stbl, id)
}

func (t *sqlTx) CreateToken(ctx context.Context, name string) (*storage.Token, error) {
	if err := storage.ValidateName(name, storage.MaxTokenNameLength); err != nil {
		return nil, err
	}

	id, err := t.info.insertID(ctx, t.stbl.
		Insert(tokenTable).
		Columns("name").
		Values(name))
	if err != nil {
		return nil, t.info.handleSQLError(err)
	}
	return &storage.Token{ID: id, Name: name}, nil
}

func (t *sqlTx) RenameToken(ctx context.Context, id int64, name string) error {
	if err := storage.ValidateName(name, storage.MaxTokenNameLength); err != nil {
		return err
	}

	affected, err := t.info.exec(ctx, t.stbl.
		Update(tokenTable).
		Set("name", name).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return t.info.handleSQLError(err)
	}
	if affected == 0 {
		_, err := t.ReadToken(ctx, id)
		return err
	}
	return nil
}

func (t *sqlTx) DeleteToken(ctx context.Context, id int64) error {
	// Edges go first so the outcome never depends on foreign key enforcement.
	for _, kind := range storage.EdgeKinds {
		_, err := t.info.exec(ctx, t.stbl.
			Delete(kind.Table()).
			Where(sq.Or{sq.Eq{"token_id": id}, sq.Eq{"linked_id": id}}))
		if err != nil {
			return t.info.handleSQLError(err)
		}
	}

	_, err := t.info.exec(ctx, t.stbl.
		Delete(tokenTable).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return t.info.handleSQLError(err)
	}
	return nil
}

func (t *sqlTx) ReadEdge(ctx context.Context, kind storage.EdgeKind, tokenID, linkedID int64) (*storage.Edge, error) {
	if !kind.Valid() {
		return nil, storage.InvalidEdgeError(kind, tokenID, linkedID)
	}

	e := storage.Edge{Kind: kind}
	err := t.stbl.
		Select("id", "token_id", "linked_id").
		From(kind.Table()).
		Where(sq.Eq{"token_id": tokenID, "linked_id": linkedID}).
		QueryRowContext(ctx).
		Scan(&e.ID, &e.TokenID, &e.LinkedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.EdgeNotFoundError(kind, linkedID)
		}
		return nil, t.info.handleSQLError(err)
	}
	return &e, nil
}

func (t *sqlTx) ReadEdges(ctx context.Context, kind storage.EdgeKind, tokenID int64) ([]*storage.Edge, error) {
	return readEdges(ctx, t.info, t.stbl, kind, tokenID)
}

// validateLink reports the first of tokenID and linkedID that does not exist.
func (t *sqlTx) validateLink(ctx context.Context, kind storage.EdgeKind, tokenID, linkedID int64) error {
	if !kind.Valid() || tokenID == linkedID {
		return storage.InvalidEdgeError(kind, tokenID, linkedID)
	}
	for _, id := range []int64{tokenID, linkedID} {
		if _, err := t.ReadToken(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) WriteEdge(ctx context.Context, kind storage.EdgeKind, tokenID, linkedID int64) (*storage.Edge, error) {
	if err := t.validateLink(ctx, kind, tokenID, linkedID); err != nil {
		return nil, err
	}

	id, err := t.info.insertID(ctx, t.stbl.
		Insert(kind.Table()).
		Columns("token_id", "linked_id").
		Values(tokenID, linkedID))
	if err != nil {
		return nil, t.info.handleSQLError(err,
			ForeignKeyRef{Column: "token_id", ID: tokenID},
			ForeignKeyRef{Column: "linked_id", ID: linkedID})
	}
	return &storage.Edge{ID: id, Kind: kind, TokenID: tokenID, LinkedID: linkedID}, nil
}

func (t *sqlTx) UpdateEdgeLink(ctx context.Context, kind storage.EdgeKind, edgeID, linkedID int64) error {
	if !kind.Valid() {
		return storage.InvalidEdgeError(kind, 0, linkedID)
	}

	var tokenID, current int64
	err := t.stbl.
		Select("token_id", "linked_id").
		From(kind.Table()).
		Where(sq.Eq{"id": edgeID}).
		QueryRowContext(ctx).
		Scan(&tokenID, &current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EdgeNotFoundError(kind, edgeID)
		}
		return t.info.handleSQLError(err)
	}
	if current == linkedID {
		return nil
	}
	if err := t.validateLink(ctx, kind, tokenID, linkedID); err != nil {
		return err
	}

	_, err = t.info.exec(ctx, t.stbl.
		Update(kind.Table()).
		Set("linked_id", linkedID).
		Where(sq.Eq{"id": edgeID}))
	if err != nil {
		return t.info.handleSQLError(err, ForeignKeyRef{Column: "linked_id", ID: linkedID})
	}
	return nil
}

func (t *sqlTx) DeleteEdge(ctx context.Context, kind storage.EdgeKind, tokenID, linkedID int64) error {
	if !kind.Valid() {
		return storage.InvalidEdgeError(kind, tokenID, linkedID)
	}

	_, err := t.info.exec(ctx, t.stbl.
		Delete(kind.Table()).
		Where(sq.Eq{"token_id": tokenID, "linked_id": linkedID}))
	if err != nil {
		return t.info.handleSQLError(err)
	}
	return nil
}

func (t *sqlTx) DeleteEdges(ctx context.Context, kind storage.EdgeKind, tokenID int64) error {
	if !kind.Valid() {
		return storage.InvalidEdgeError(kind, tokenID, 0)
	}

	_, err := t.info.exec(ctx, t.stbl.
		Delete(kind.Table()).
		Where(sq.Eq{"token_id": tokenID}))
	if err != nil {
		return t.info.handleSQLError(err)
	}
	return nil
}

func (t *sqlTx) ReadAttribute(ctx context.Context, id int64) (*storage.Attribute, error) {
	return readAttribute(ctx, t.info, t.stbl, sq.Eq{"id": id}, storage.AttributeNotFoundError(id))
}
