package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/stage"
)

// Row is a stored record plus its bookkeeping columns.
type Row struct {
	// UID is a ULID that identifies the row independently of stage and internal_id
	UID       string
	Record    *stage.Record
	CreatedAt int64
	UpdatedAt int64
}

// ListFilter narrows List and Count.
type ListFilter struct {
	Stage  *stage.Category // nil means all stages
	Limit  int             // 0 means no limit
	Offset int
}

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.QwError{
	Code:    errors.ErrAlreadyExists,
	Status:  409,
	Message: "unique constraint violation",
}

// Querier is satisfied by *sql.DB and *sql.Tx, so the single-row helpers
// can take part in a caller's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectColumns = `SELECT uid, stage, internal_id, body, created_at, updated_at FROM records`

// Insert stores a record whose internal_id is already assigned.
func Insert(ctx context.Context, db Querier, row *Row) error {
	return insert(ctx, db, row)
}

// InsertNext assigns the next free internal_id of the record's stage and
// stores it, in one transaction. The assigned id is written back to row.Record.
func InsertNext(ctx context.Context, db *sql.DB, row *Row) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(internal_id), 0) + 1 FROM records WHERE stage = ?`,
		string(row.Record.Stage()),
	).Scan(&next)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := row.Record.SetInt(stage.FieldInternalID, next); err != nil {
		return 0, err
	}

	if err := insert(ctx, tx, row); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return next, nil
}

func insert(ctx context.Context, db Querier, row *Row) error {
	internalID, ok := row.Record.InternalID()
	if !ok {
		return errors.NewInvalidRequest("record has no internal_id")
	}
	body, err := row.Record.ToJSON()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO records (uid, stage, internal_id, remote_id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		row.UID, string(row.Record.Stage()), internalID, remoteID(row.Record),
		string(body), row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// Replace overwrites the stored body of an existing record, addressed by its
// stage and internal_id. Sets updated_at to the current time.
func Replace(ctx context.Context, db Querier, r *stage.Record) error {
	internalID, ok := r.InternalID()
	if !ok {
		return errors.NewInvalidRequest("record has no internal_id")
	}
	body, err := r.ToJSON()
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, `
		UPDATE records
		SET body = ?, remote_id = ?, updated_at = ?
		WHERE stage = ? AND internal_id = ?
	`, string(body), remoteID(r), time.Now().Unix(), string(r.Stage()), internalID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(r.Label())
	}
	return nil
}

// Upsert inserts row, or replaces the body of the record with the same stage
// and internal_id. The existing uid and created_at are kept on replace.
func Upsert(ctx context.Context, db Querier, row *Row) error {
	internalID, ok := row.Record.InternalID()
	if !ok {
		return errors.NewInvalidRequest("record has no internal_id")
	}
	body, err := row.Record.ToJSON()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO records (uid, stage, internal_id, remote_id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stage, internal_id) DO UPDATE SET
			remote_id = excluded.remote_id,
			body = excluded.body,
			updated_at = excluded.updated_at
	`,
		row.UID, string(row.Record.Stage()), internalID, remoteID(row.Record),
		string(body), row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetByInternalID retrieves a record by stage and internal_id.
func GetByInternalID(ctx context.Context, db Querier, c stage.Category, internalID int) (*Row, error) {
	row := db.QueryRowContext(ctx, selectColumns+` WHERE stage = ? AND internal_id = ?`, string(c), internalID)
	r, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(fmt.Sprintf("%s/%d", c, internalID))
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetByRemoteID retrieves the record linked to an issue number.
func GetByRemoteID(ctx context.Context, db Querier, remote int) (*Row, error) {
	row := db.QueryRowContext(ctx, selectColumns+` WHERE remote_id = ?`, remote)
	r, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(fmt.Sprintf("issue #%d", remote))
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List returns records ordered by stage then internal_id.
func List(ctx context.Context, db Querier, f ListFilter) ([]*Row, error) {
	where, args := f.where()
	query := selectColumns + where + ` ORDER BY stage, internal_id`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []*Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// Count returns the number of records matching the filter (ignoring paging).
func Count(ctx context.Context, db Querier, f ListFilter) (int, error) {
	where, args := f.where()
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`+where, args...).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

func (f ListFilter) where() (string, []any) {
	if f.Stage == nil {
		return "", nil
	}
	return ` WHERE stage = ?`, []any{string(*f.Stage)}
}

// Delete permanently removes a record.
func Delete(ctx context.Context, db Querier, c stage.Category, internalID int) error {
	result, err := db.ExecContext(ctx, `DELETE FROM records WHERE stage = ? AND internal_id = ?`, string(c), internalID)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(fmt.Sprintf("%s/%d", c, internalID))
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRow scans one row and decodes its body. sql.ErrNoRows is returned as is.
func scanRow(s scanner) (*Row, error) {
	var (
		r          Row
		stageName  string
		internalID int
		body       string
	)
	if err := s.Scan(&r.UID, &stageName, &internalID, &body, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, errors.NewInternal(err)
	}

	rec, err := stage.FromJSON([]byte(body))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("corrupt record %s/%d: %w", stageName, internalID, err))
	}
	r.Record = rec
	return &r, nil
}

func remoteID(r *stage.Record) sql.NullInt64 {
	n, ok := r.RemoteID()
	if !ok {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
