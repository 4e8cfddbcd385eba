package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/google/uuid"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/logger"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"
)

// defaultMaxDedupeRead bounds the in-memory anti-join read; a target
// holding more pk tuples than this fails the load (see readExistingKeys).
const defaultMaxDedupeRead = 200_000

// MSSQLSink is the Sink implementation backed by SQL Server. One instance
// is shared by every platform pipeline in a run; writes to the same
// target table are serialized via a per-table mutex held for the whole
// Load. The mutex is taken before any connection is used; each statement
// inside the Load leases its connection from the pool while it is held.
type MSSQLSink struct {
	db       *sql.DB
	schema   string
	testMode bool

	tableLocksMu sync.Mutex
	tableLocks   map[string]*sync.Mutex
}

// NewMSSQLSink wraps an already-opened *sql.DB (see pkg/database.ConnectSQL)
// as a Sink. schema is the warehouse schema all tables live under.
func NewMSSQLSink(db *sql.DB, schema string, testMode bool) *MSSQLSink {
	return &MSSQLSink{
		db:         db,
		schema:     schema,
		testMode:   testMode,
		tableLocks: map[string]*sync.Mutex{},
	}
}

func (s *MSSQLSink) lockFor(table string) *sync.Mutex {
	s.tableLocksMu.Lock()
	defer s.tableLocksMu.Unlock()
	m, ok := s.tableLocks[table]
	if !ok {
		m = &sync.Mutex{}
		s.tableLocks[table] = m
	}
	return m
}

func (s *MSSQLSink) qualify(table string) string {
	return fmt.Sprintf("[%s].[%s]", s.schema, table)
}

// resolveTableName applies the test-mode suffix. Callers pass the
// logical table name; this returns the physical one.
func (s *MSSQLSink) resolveTableName(table string, suffix string) string {
	if s.testMode {
		if suffix == "" {
			suffix = "_test"
		}
		if !strings.HasSuffix(table, suffix) {
			return table + suffix
		}
	}
	return table
}

func (s *MSSQLSink) Close() error {
	return s.db.Close()
}

func (s *MSSQLSink) TableExists(ctx context.Context, table string) (bool, error) {
	const q = `SELECT COUNT(*) FROM sys.tables t JOIN sys.schemas sc ON t.schema_id = sc.schema_id WHERE sc.name = @p1 AND t.name = @p2`
	var count int
	if err := s.db.QueryRowContext(ctx, q, s.schema, table).Scan(&count); err != nil {
		return false, &ConnectionFailure{Cause: err}
	}
	return count > 0, nil
}

func (s *MSSQLSink) Query(ctx context.Context, query string, args ...interface{}) (*tabular.Payload, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ConnectionFailure{Cause: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &ConnectionFailure{Cause: err}
	}
	payload := tabular.NewPayload(cols...)

	scanTargets := make([]interface{}, len(cols))
	values := make([]interface{}, len(cols))
	for i := range values {
		scanTargets[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, &ConnectionFailure{Cause: err}
		}
		row := make(tabular.Row, len(cols))
		copy(row, values)
		payload.Rows = append(payload.Rows, row)
	}
	return payload, rows.Err()
}

// schemaFor reads the target table's column names, types, and nullability
// from the SQL Server catalog.
func (s *MSSQLSink) schemaFor(ctx context.Context, table string) (*tabular.Schema, error) {
	const q = `
		SELECT c.name, ty.name, c.is_nullable
		FROM sys.columns c
		JOIN sys.types ty ON c.user_type_id = ty.user_type_id
		JOIN sys.tables t ON c.object_id = t.object_id
		JOIN sys.schemas sc ON t.schema_id = sc.schema_id
		WHERE sc.name = @p1 AND t.name = @p2
		ORDER BY c.column_id`
	rows, err := s.db.QueryContext(ctx, q, s.schema, table)
	if err != nil {
		return nil, &ConnectionFailure{Cause: err}
	}
	defer rows.Close()

	schema := &tabular.Schema{Table: table}
	for rows.Next() {
		var name, sqlType string
		var nullable bool
		if err := rows.Scan(&name, &sqlType, &nullable); err != nil {
			return nil, &ConnectionFailure{Cause: err}
		}
		schema.Columns = append(schema.Columns, tabular.ColumnSchema{
			Name:     name,
			Type:     sqlTypeToColumnType(sqlType),
			Nullable: nullable,
		})
	}
	if len(schema.Columns) == 0 {
		return nil, &IntegrityError{Table: table, Msg: "table not found in warehouse catalog"}
	}
	return schema, rows.Err()
}

func sqlTypeToColumnType(sqlType string) tabular.ColumnType {
	switch strings.ToLower(sqlType) {
	case "int", "bigint", "smallint", "tinyint":
		return tabular.TypeInteger
	case "float", "real", "decimal", "numeric", "money", "smallmoney":
		return tabular.TypeFloating
	case "bit":
		return tabular.TypeBoolean
	case "date":
		return tabular.TypeDate
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return tabular.TypeTimestamp
	default:
		return tabular.TypeString
	}
}

// detectPKColumns reads the target's primary-key column set from the
// catalog when the caller has not supplied one. Under increment mode,
// date-typed columns are excluded since increment mode accumulates over
// lifetime, not per day.
func (s *MSSQLSink) detectPKColumns(ctx context.Context, table string, schema *tabular.Schema, excludeDate bool) ([]string, error) {
	const q = `
		SELECT c.name
		FROM sys.indexes i
		JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id
		JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id
		JOIN sys.tables t ON i.object_id = t.object_id
		JOIN sys.schemas sc ON t.schema_id = sc.schema_id
		WHERE sc.name = @p1 AND t.name = @p2 AND i.is_primary_key = 1
		ORDER BY ic.key_ordinal`
	rows, err := s.db.QueryContext(ctx, q, s.schema, table)
	if err != nil {
		return nil, &ConnectionFailure{Cause: err}
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &ConnectionFailure{Cause: err}
		}
		if excludeDate {
			if cs, ok := schema.ColumnByName(name); ok && cs.Type == tabular.TypeDate {
				continue
			}
		}
		cols = append(cols, name)
	}
	if len(cols) == 0 {
		return nil, &IntegrityError{Table: table, Msg: "no pk_columns configured and none detected from catalog"}
	}
	return cols, rows.Err()
}

// Load implements the Sink contract. It always type-aligns before
// writing, then dispatches to the load-mode-specific algorithm.
func (s *MSSQLSink) Load(ctx context.Context, payload *tabular.Payload, table string, opts LoadOptions) (int64, error) {
	if payload.Empty() {
		logger.Infof("payload empty, skipping load to %s", table)
		return 0, nil
	}

	if s.testMode && !opts.TestModeSuffix {
		logger.Warnf("test mode: skipping load to %s (test_mode_suffix not enabled for this table)", table)
		return 0, nil
	}

	physical := s.resolveTableName(table, "")
	lock := s.lockFor(physical)
	lock.Lock()
	defer lock.Unlock()

	schema, err := s.schemaFor(ctx, physical)
	if err != nil {
		return 0, err
	}

	aligned, warnings, err := AlignPayload(payload, schema)
	if err != nil {
		return 0, err
	}
	for _, w := range warnings {
		logger.Warnf("%s: %s", physical, w)
	}

	pkColumns := opts.PKColumns
	needsPK := opts.Mode == Upsert || opts.Mode == Increment
	if len(pkColumns) == 0 && needsPK {
		pkColumns, err = s.detectPKColumns(ctx, physical, schema, opts.Mode == Increment)
		if err != nil {
			return 0, err
		}
	}

	maxDedupeRead := opts.MaxDedupeRead
	if maxDedupeRead <= 0 {
		maxDedupeRead = defaultMaxDedupeRead
	}

	switch opts.Mode {
	case Append:
		return s.loadAppend(ctx, physical, aligned, pkColumns, maxDedupeRead)
	case Replace:
		return s.loadReplace(ctx, physical, aligned)
	case Upsert:
		return s.loadUpsert(ctx, physical, aligned, pkColumns)
	case Increment:
		return s.loadIncrement(ctx, physical, aligned, pkColumns, opts.IncrementColumns)
	default:
		return 0, &IntegrityError{Table: physical, Msg: fmt.Sprintf("unknown load mode %q", opts.Mode)}
	}
}

// loadAppend streams rows directly, optionally deduping against existing
// pk tuples first.
func (s *MSSQLSink) loadAppend(ctx context.Context, table string, payload *tabular.Payload, pkColumns []string, maxDedupeRead int) (int64, error) {
	if len(pkColumns) > 0 {
		existing, err := s.readExistingKeys(ctx, table, pkColumns, maxDedupeRead)
		if err != nil {
			return 0, err
		}
		payload = filterExistingKeys(payload, pkColumns, existing)
	}
	if payload.Empty() {
		return 0, nil
	}
	n, err := s.bulkCopy(ctx, table, payload)
	return n, err
}

// loadReplace truncates then appends without dedupe.
func (s *MSSQLSink) loadReplace(ctx context.Context, table string, payload *tabular.Payload) (int64, error) {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", s.qualify(table))); err != nil {
		return 0, &ConnectionFailure{Cause: err}
	}
	return s.bulkCopy(ctx, table, payload)
}

// readExistingKeys pulls up to limit existing pk tuples into memory for
// the anti-join. Above the bound it returns an error; there is no staged
// anti-join fallback.
func (s *MSSQLSink) readExistingKeys(ctx context.Context, table string, pkColumns []string, limit int) (map[string]bool, error) {
	cols := strings.Join(quoteIdents(pkColumns), ", ")
	q := fmt.Sprintf("SELECT TOP (%d) %s FROM %s", limit+1, cols, s.qualify(table))
	existing, err := s.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(existing.Rows) > limit {
		return nil, fmt.Errorf("existing key set for %s exceeds in-memory dedupe bound (%d); staged anti-join not implemented for this call path", table, limit)
	}
	return buildKeySet(existing, pkColumns), nil
}

// stageTable creates and bulk-loads a local temp table holding payload,
// named `#<table>_stage_<uuid>` with a fresh dash-free uuid per call. A named local temp table (rather than
// an anonymous or permanent `*_source` table) lets a caller inspecting
// sys.tables mid-run identify in-flight staging.
func (s *MSSQLSink) stageTable(ctx context.Context, tx *sql.Tx, table string, payload *tabular.Payload) (string, error) {
	stageName := fmt.Sprintf("#%s_stage_%s", table, strings.ReplaceAll(uuid.NewString(), "-", ""))

	ddl := fmt.Sprintf("SELECT TOP 0 %s INTO %s FROM %s", strings.Join(quoteIdents(payload.Columns), ", "), stageName, s.qualify(table))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return "", &ConnectionFailure{Cause: err}
	}

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(stageName, mssql.BulkOptions{}, payload.Columns...))
	if err != nil {
		return "", &ConnectionFailure{Cause: err}
	}
	defer stmt.Close()

	for _, row := range payload.Rows {
		if _, err := stmt.ExecContext(ctx, []interface{}(row)...); err != nil {
			return "", &ConnectionFailure{Cause: err}
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return "", &ConnectionFailure{Cause: err}
	}
	return stageName, nil
}

// loadUpsert stages the payload then MERGEs on pk: matched rows have
// every non-pk column replaced, unmatched rows are inserted.
func (s *MSSQLSink) loadUpsert(ctx context.Context, table string, payload *tabular.Payload, pkColumns []string) (int64, error) {
	if len(pkColumns) == 0 {
		return 0, &IntegrityError{Table: table, Msg: "upsert requires pk_columns"}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &ConnectionFailure{Cause: err}
	}
	defer tx.Rollback()

	stage, err := s.stageTable(ctx, tx, table, payload)
	if err != nil {
		return 0, err
	}

	nonPK := subtract(payload.Columns, pkColumns)
	onClause := joinOn("t", "s", pkColumns)
	setClause := joinSet("t", "s", nonPK)
	insertCols := strings.Join(quoteIdents(payload.Columns), ", ")
	insertVals := strings.Join(prefixIdents("s", payload.Columns), ", ")

	merge := fmt.Sprintf(`
		MERGE %s AS t
		USING %s AS s
		ON %s
		WHEN MATCHED THEN UPDATE SET %s
		WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);`,
		s.qualify(table), stage, onClause, setClause, insertCols, insertVals)

	res, err := tx.ExecContext(ctx, merge)
	if err != nil {
		return 0, &ConstraintViolation{Table: table, Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &ConnectionFailure{Cause: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// loadIncrement stages the payload, partitions it into existing vs new
// keys, additively UPDATEs the existing rows' increment_columns and
// touches last_updated_date, and inserts the new rows as-is.
func (s *MSSQLSink) loadIncrement(ctx context.Context, table string, payload *tabular.Payload, pkColumns, incrementColumns []string) (int64, error) {
	if len(pkColumns) == 0 {
		return 0, &IntegrityError{Table: table, Msg: "increment requires pk_columns"}
	}
	if len(incrementColumns) == 0 {
		return 0, &IntegrityError{Table: table, Msg: "increment requires increment_columns"}
	}

	existing, err := s.readExistingKeys(ctx, table, pkColumns, defaultMaxDedupeRead)
	if err != nil {
		return 0, err
	}
	matched, unmatched := partitionByExistence(payload, pkColumns, existing)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &ConnectionFailure{Cause: err}
	}
	defer tx.Rollback()

	var total int64

	if !matched.Empty() {
		stage, err := s.stageTable(ctx, tx, table, matched)
		if err != nil {
			return 0, err
		}
		onClause := joinOn("t", "s", pkColumns)
		var incSets []string
		for _, c := range incrementColumns {
			incSets = append(incSets, fmt.Sprintf("t.[%s] = t.[%s] + s.[%s]", c, c, c))
		}
		incSets = append(incSets, "t.[last_updated_date] = SYSUTCDATETIME()")
		update := fmt.Sprintf(`UPDATE t SET %s FROM %s AS t JOIN %s AS s ON %s`,
			strings.Join(incSets, ", "), s.qualify(table), stage, onClause)
		res, err := tx.ExecContext(ctx, update)
		if err != nil {
			return 0, &ConstraintViolation{Table: table, Cause: err}
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if !unmatched.Empty() {
		if err := tx.Commit(); err != nil {
			return 0, &ConnectionFailure{Cause: err}
		}
		n, err := s.bulkCopy(ctx, table, unmatched)
		if err != nil {
			return total, err
		}
		return total + n, nil
	}

	if err := tx.Commit(); err != nil {
		return 0, &ConnectionFailure{Cause: err}
	}
	return total, nil
}

// bulkCopy streams payload's rows into table via SQL Server's bulk-copy
// facility.
func (s *MSSQLSink) bulkCopy(ctx context.Context, table string, payload *tabular.Payload) (int64, error) {
	if payload.Empty() {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &ConnectionFailure{Cause: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, payload.Columns...))
	if err != nil {
		return 0, &ConnectionFailure{Cause: err}
	}
	defer stmt.Close()

	for _, row := range payload.Rows {
		if _, err := stmt.ExecContext(ctx, []interface{}(row)...); err != nil {
			return 0, &ConstraintViolation{Table: table, Cause: err}
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, &ConstraintViolation{Table: table, Cause: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &ConnectionFailure{Cause: err}
	}
	return int64(len(payload.Rows)), nil
}

func quoteIdents(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("[%s]", n)
	}
	return out
}

func prefixIdents(prefix string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%s.[%s]", prefix, n)
	}
	return out
}

func subtract(all, minus []string) []string {
	skip := map[string]bool{}
	for _, m := range minus {
		skip[m] = true
	}
	var out []string
	for _, a := range all {
		if !skip[a] {
			out = append(out, a)
		}
	}
	return out
}

func joinOn(left, right string, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s.[%s] = %s.[%s]", left, c, right, c)
	}
	return strings.Join(parts, " AND ")
}

func joinSet(left, right string, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s.[%s] = %s.[%s]", left, c, right, c)
	}
	return strings.Join(parts, ", ")
}
