package datarecording

import (
	"context"
	"database/sql"
	"os"
	"reflect"
	"strconv"

	"github.com/pkg/errors"
)

// QueryParams selects and orders the rows of a query.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, such as "Op = ?".
	Where string

	// Args fill the placeholders of Where.
	Args []any

	// OrderBy is a sort order without the ORDER BY keywords, such as
	// "StartTime DESC".
	OrderBy string

	// Limit caps the number of rows returned. 0 returns all rows.
	Limit int

	// Offset skips rows. It only applies together with Limit.
	Offset int
}

// DataReader reads the rows written by a DataRecorder.
type DataReader interface {
	// MapTable tells the reader which struct the rows of a table decode
	// into.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the tables present in the database.
	ListTables(ctx context.Context) ([]string, error)

	// Query returns pointers to the mapped struct for the selected rows and
	// the number of rows matching Where, regardless of Limit and Offset.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	// Close closes the database.
	Close() error
}

// Rows maps table to T, runs the query, and returns the rows as values.
func Rows[T any](
	ctx context.Context,
	reader DataReader,
	tableName string,
	params QueryParams,
) ([]T, int, error) {
	var zero T
	reader.MapTable(tableName, zero)

	results, total, err := reader.Query(ctx, tableName, params)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]T, len(results))
	for i, r := range results {
		rows[i] = *r.(*T)
	}

	return rows, total, nil
}

type sqliteReader struct {
	db      *sql.DB
	typeMap map[string]reflect.Type
}

// NewReader opens a recorded database. The database must exist.
func NewReader(path string) (DataReader, error) {
	filename := Filename(path)

	_, err := os.Stat(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "no database at %s", filename)
	}

	db, err := sql.Open("sqlite3", "file:"+filename+"?mode=ro")
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", filename)
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a DataReader over an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		db:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, errors.Wrap(err, "cannot list tables")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string

		err = rows.Scan(&name)
		if err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	structType, ok := r.typeMap[tableName]
	if !ok {
		return nil, 0, errors.Errorf("table %s is not mapped", tableName)
	}

	from := " FROM " + quote(tableName)
	if params.Where != "" {
		from += " WHERE " + params.Where
	}

	query := "SELECT *" + from
	if params.OrderBy != "" {
		query += " ORDER BY " + params.OrderBy
	}

	if params.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(params.Limit)
		if params.Offset > 0 {
			query += " OFFSET " + strconv.Itoa(params.Offset)
		}
	}

	// The count and the rows come from the same snapshot.
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, errors.Wrap(err, "cannot begin query")
	}
	defer func() { _ = tx.Rollback() }()

	var total int

	err = tx.QueryRowContext(ctx, "SELECT COUNT(*)"+from, params.Args...).
		Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "cannot count rows of %s", tableName)
	}

	rows, err := tx.QueryContext(ctx, query, params.Args...)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "cannot query %s", tableName)
	}
	defer rows.Close()

	results, err := scanInto(rows, structType)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "cannot read rows of %s", tableName)
	}

	return results, total, nil
}

// scanInto decodes each row into a new struct of type st, matching columns to
// fields by name. Columns without a field are dropped.
func scanInto(rows *sql.Rows, st reflect.Type) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fieldIndex := make([]int, len(columns))
	for i, c := range columns {
		fieldIndex[i] = -1

		if f, ok := st.FieldByName(c); ok && len(f.Index) == 1 {
			fieldIndex[i] = f.Index[0]
		}
	}

	var results []any

	for rows.Next() {
		ptr := reflect.New(st)
		targets := make([]any, len(columns))

		for i, idx := range fieldIndex {
			if idx < 0 {
				targets[i] = new(any)
				continue
			}

			targets[i] = ptr.Elem().Field(idx).Addr().Interface()
		}

		err = rows.Scan(targets...)
		if err != nil {
			return nil, err
		}

		results = append(results, ptr.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
