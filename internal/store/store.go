package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/pkg/logger"
	"github.com/jwlim/sectorpulse/pkg/sqlite"
)

// Store is the generic SQLite-backed entity store. One table per entity
// kind, schema derived from the kind descriptor, primary key = natural key.
// All writes are replace-on-conflict; rows are never appended or mutated
// in place, so re-ingesting a batch is idempotent.
type Store struct {
	db     *sqlite.DB
	logger *logger.Logger
	now    func() time.Time
}

// New creates a store on an opened database and ensures the schema exists
func New(db *sqlite.DB, log *logger.Logger) (*Store, error) {
	s := &Store{
		db:     db,
		logger: log,
		now:    time.Now,
	}

	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return s, nil
}

// migrate creates one table and one (id, date) index per registered kind
func (s *Store) migrate(ctx context.Context) error {
	for _, kind := range contracts.Kinds {
		if _, err := s.db.Handle.ExecContext(ctx, createTableSQL(kind)); err != nil {
			return fmt.Errorf("create table %s: %w", kind.Name, err)
		}

		indexSQL := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_id_date ON %s (%s, %s)",
			kind.Name, kind.Name, kind.IDColumn, kind.DateColumn,
		)
		if _, err := s.db.Handle.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index on %s: %w", kind.Name, err)
		}
	}

	s.logger.WithField("tables", len(contracts.Kinds)).Debug("Schema migrated")
	return nil
}

// createTableSQL renders the CREATE TABLE statement for a kind descriptor.
// Key columns are TEXT (dates are ISO strings, ids are codes); attribute
// columns follow their declared type; every table carries ingested_at.
func createTableSQL(kind contracts.Kind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", kind.Name)

	for _, col := range kind.KeyColumns {
		fmt.Fprintf(&b, "\t%s TEXT NOT NULL,\n", col)
	}
	for _, col := range kind.Columns {
		fmt.Fprintf(&b, "\t%s %s,\n", col.Name, sqlType(col.Type))
	}
	b.WriteString("\tingested_at INTEGER NOT NULL,\n")
	fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n)", strings.Join(kind.KeyColumns, ", "))

	return b.String()
}

func sqlType(t contracts.ColumnType) string {
	switch t {
	case contracts.TypeInteger:
		return "INTEGER"
	case contracts.TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// UpsertBatch writes every row of the batch with replace-on-conflict
// semantics inside one transaction. A batch that fails natural-key
// validation is rejected before anything is written. Returns the number
// of rows written.
func (s *Store) UpsertBatch(ctx context.Context, batch contracts.Batch) (int, error) {
	if len(batch.Rows) == 0 {
		return 0, nil
	}

	if err := contracts.ValidateBatch(batch); err != nil {
		return 0, err
	}

	kind := batch.Kind
	cols := kind.AllColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+1), ", ")

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s, ingested_at) VALUES (%s)",
		kind.Name, strings.Join(cols, ", "), placeholders,
	)

	tx, err := s.db.Handle.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	ingestedAt := s.now().Unix()
	written := 0
	for _, row := range batch.Rows {
		args := make([]interface{}, 0, len(cols)+1)
		for _, col := range cols {
			args = append(args, row[col])
		}
		args = append(args, ingestedAt)

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("upsert into %s: %w", kind.Name, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert tx: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"kind": kind.Name,
		"rows": written,
	}).Debug("Batch upserted")

	return written, nil
}

// Select reads rows matching the query: exact date or [Start,End] range,
// optional multi-id IN filter, ordered by trading date (then natural key
// for a stable order within one date).
func (s *Store) Select(ctx context.Context, kind contracts.Kind, query contracts.RangeQuery) ([]contracts.Row, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	where, args := whereClause(kind, query)

	direction := "ASC"
	if query.Desc {
		direction = "DESC"
	}

	cols := kind.AllColumns()
	stmt := fmt.Sprintf(
		"SELECT %s, ingested_at FROM %s %s ORDER BY %s %s, %s",
		strings.Join(cols, ", "), kind.Name, where,
		kind.DateColumn, direction, strings.Join(kind.KeyColumns, ", "),
	)

	rows, err := s.db.Handle.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", kind.Name, err)
	}
	defer rows.Close()

	var result []contracts.Row
	for rows.Next() {
		values := make([]interface{}, len(cols)+1)
		scanTargets := make([]interface{}, len(cols)+1)
		for i := range values {
			scanTargets[i] = &values[i]
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind.Name, err)
		}

		row := make(contracts.Row, len(cols)+1)
		for i, col := range cols {
			row[col] = normalize(values[i])
		}
		row["ingested_at"] = normalize(values[len(cols)])
		result = append(result, row)
	}

	return result, rows.Err()
}

// normalize maps driver values onto the small set of types Row promises
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return val
	}
}

// whereClause renders the filter for Select and Spans. Identifiers come
// from our own kind declarations; only values are bound as placeholders.
func whereClause(kind contracts.Kind, query contracts.RangeQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if len(query.IDs) == 1 {
		conds = append(conds, fmt.Sprintf("%s = ?", kind.IDColumn))
		args = append(args, query.IDs[0])
	} else if len(query.IDs) > 1 {
		in := strings.TrimSuffix(strings.Repeat("?, ", len(query.IDs)), ", ")
		conds = append(conds, fmt.Sprintf("%s IN (%s)", kind.IDColumn, in))
		for _, id := range query.IDs {
			args = append(args, id)
		}
	}

	if query.IsExact() {
		conds = append(conds, fmt.Sprintf("%s = ?", kind.DateColumn))
		args = append(args, query.Exact.Format(contracts.DateLayout))
	} else if query.HasRange() {
		conds = append(conds, fmt.Sprintf("%s BETWEEN ? AND ?", kind.DateColumn))
		args = append(args,
			query.Start.Format(contracts.DateLayout),
			query.End.Format(contracts.DateLayout))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Exists reports whether any row exists for the entity id
func (s *Store) Exists(ctx context.Context, kind contracts.Kind, id string) (bool, error) {
	stmt := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? LIMIT 1", kind.Name, kind.IDColumn)

	var one int
	err := s.db.Handle.QueryRowContext(ctx, stmt, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists check on %s: %w", kind.Name, err)
	}
	return true, nil
}

// Spans returns the completeness witness (min/max trading date) per id.
// Ids with no rows are absent from the result map.
func (s *Store) Spans(ctx context.Context, kind contracts.Kind, ids []string) (map[string]contracts.Span, error) {
	if len(ids) == 0 {
		return map[string]contracts.Span{}, nil
	}

	in := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	stmt := fmt.Sprintf(
		"SELECT %s, MIN(%s), MAX(%s) FROM %s WHERE %s IN (%s) GROUP BY %s",
		kind.IDColumn, kind.DateColumn, kind.DateColumn,
		kind.Name, kind.IDColumn, in, kind.IDColumn,
	)

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.Handle.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("span query on %s: %w", kind.Name, err)
	}
	defer rows.Close()

	spans := make(map[string]contracts.Span, len(ids))
	for rows.Next() {
		var id, minStr, maxStr string
		if err := rows.Scan(&id, &minStr, &maxStr); err != nil {
			return nil, fmt.Errorf("scan span row: %w", err)
		}

		minDate, err := time.Parse(contracts.DateLayout, minStr)
		if err != nil {
			return nil, fmt.Errorf("parse span min %q: %w", minStr, err)
		}
		maxDate, err := time.Parse(contracts.DateLayout, maxStr)
		if err != nil {
			return nil, fmt.Errorf("parse span max %q: %w", maxStr, err)
		}

		spans[id] = contracts.Span{ID: id, Min: minDate, Max: maxDate}
	}

	return spans, rows.Err()
}

// DeleteByID removes every row of one entity id. Administrative only;
// normal operation never deletes.
func (s *Store) DeleteByID(ctx context.Context, kind contracts.Kind, id string) (int64, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", kind.Name, kind.IDColumn)

	res, err := s.db.Handle.ExecContext(ctx, stmt, id)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", kind.Name, err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(map[string]interface{}{
		"kind":    kind.Name,
		"id":      id,
		"deleted": deleted,
	}).Info("Entity rows deleted")

	return deleted, nil
}
