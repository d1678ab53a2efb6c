package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// dialect holds the few statements that differ between SQL backends.
type dialect struct {
	name string

	// lockSuffix is appended to the find query so the rows read by the
	// reconciler stay locked until the transaction ends.
	lockSuffix string
}

const recordColumns = "`id`, `user`, `session_id`, `timestamp`, `action`, `service_provider`"

// sqlStore implements the transactional part of Store on top of database/sql.
// SQLiteStore and MySQLStore embed it and only add connection setup and schema.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

// WithTx runs fn inside a database transaction.
func (s *sqlStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr(s.dialect.name, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return persistErr(s.dialect.name, "commit transaction", err)
	}
	return nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx      *sql.Tx
	dialect dialect
}

// FindActive returns the newest record for the pair. Two rows are read so a
// duplicate can be reported without scanning the whole key.
func (t *sqlTx) FindActive(ctx context.Context, user, serviceProvider string) (*SessionRecord, error) {
	query := "SELECT " + recordColumns + `
	FROM session_state
	WHERE ` + "`user`" + ` = ? AND service_provider = ?
	ORDER BY ` + "`timestamp`" + ` DESC, id DESC
	LIMIT 2` + t.dialect.lockSuffix

	records, err := t.query(ctx, "find session record", query, user, serviceProvider)
	if err != nil {
		return nil, err
	}

	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return records[0], fmt.Errorf("%s: %w: user=%s service_provider=%s",
			t.dialect.name, ErrDuplicateRecords, user, serviceProvider)
	}
}

// ListByKey returns every record for the pair, newest first.
func (t *sqlTx) ListByKey(ctx context.Context, user, serviceProvider string) ([]*SessionRecord, error) {
	query := "SELECT " + recordColumns + `
	FROM session_state
	WHERE ` + "`user`" + ` = ? AND service_provider = ?
	ORDER BY ` + "`timestamp`" + ` DESC, id DESC` + t.dialect.lockSuffix

	return t.query(ctx, "list session records", query, user, serviceProvider)
}

// Insert creates a new row with all columns.
func (t *sqlTx) Insert(ctx context.Context, rec *SessionRecord) (int64, error) {
	query := "INSERT INTO session_state (`user`, session_id, `timestamp`, `action`, service_provider) VALUES (?, ?, ?, ?, ?)"

	res, err := t.tx.ExecContext(ctx, query,
		rec.User,
		rec.SessionID,
		rec.Timestamp.UTC(),
		rec.Action.String(),
		rec.ServiceProvider,
	)
	if err != nil {
		return 0, persistErr(t.dialect.name, "insert session record", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, persistErr(t.dialect.name, "read inserted id", err)
	}
	rec.ID = id
	return id, nil
}

// UpdateAction mutates the action and timestamp of a row.
func (t *sqlTx) UpdateAction(ctx context.Context, id int64, action Action, ts time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE session_state SET `action` = ?, `timestamp` = ? WHERE id = ?",
		action.String(), ts.UTC(), id,
	)
	if err != nil {
		return persistErr(t.dialect.name, "update session record", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return persistErr(t.dialect.name, "update session record", err)
	}
	if n == 0 {
		return persistErr(t.dialect.name, "update session record", fmt.Errorf("%w: id=%d", ErrRecordNotFound, id))
	}
	return nil
}

// Delete removes a row. A missing row is not an error.
func (t *sqlTx) Delete(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM session_state WHERE id = ?", id); err != nil {
		return persistErr(t.dialect.name, "delete session record", err)
	}
	return nil
}

func (t *sqlTx) query(ctx context.Context, op, query string, args ...any) ([]*SessionRecord, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr(t.dialect.name, op, err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, persistErr(t.dialect.name, op, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, persistErr(t.dialect.name, op, err)
	}
	return records, nil
}

// scanRecord scans a session record from sql.Rows.
func scanRecord(rows *sql.Rows) (*SessionRecord, error) {
	var (
		rec    SessionRecord
		action string
	)
	err := rows.Scan(
		&rec.ID,
		&rec.User,
		&rec.SessionID,
		&rec.Timestamp,
		&action,
		&rec.ServiceProvider,
	)
	if err != nil {
		return nil, fmt.Errorf("scan session record: %w", err)
	}

	rec.Action, err = ParseAction(action)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
